// Package edgetts streams neural voices from the Edge read-aloud websocket.
package edgetts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"salsatempo/pkg/config"
	"salsatempo/pkg/tracker"
	"salsatempo/pkg/tts"
)

const (
	statsName   = "tts.edge"
	dialRetries = 3
)

// Provider implements tts.Provider for Microsoft Edge TTS.
type Provider struct {
	voiceID string
	tracker *tracker.Tracker
	dialer  *websocket.Dialer
}

// NewProvider creates an Edge TTS provider. Connection details come from
// the EDGE_TTS_* environment variables at synthesis time.
func NewProvider(cfg config.EdgeTTSConfig, t *tracker.Tracker) *Provider {
	return &Provider{voiceID: cfg.VoiceID, tracker: t, dialer: websocket.DefaultDialer}
}

// Synthesize writes an mp3 to outputPath. voice falls back to the configured
// voice unless it names a neural voice.
func (p *Provider) Synthesize(ctx context.Context, text, voice, outputPath string) (string, error) {
	if !strings.Contains(voice, "Neural") {
		voice = p.voiceID
	}
	if voice == "" {
		return "", errors.New("edge tts: no voice configured")
	}

	audio, err := p.stream(ctx, voice, text)
	tts.Log("edge", text, 0, err)
	if err != nil {
		p.count((*tracker.Tracker).TrackFailure)
		return "", err
	}

	if err := tts.WriteAudio(tts.EnsureExt(outputPath, "mp3"), bytes.NewReader(audio)); err != nil {
		p.count((*tracker.Tracker).TrackFailure)
		return "", fmt.Errorf("edge tts: write output: %w", err)
	}
	p.count((*tracker.Tracker).TrackSuccess)
	return "mp3", nil
}

func (p *Provider) count(fn func(*tracker.Tracker, string)) {
	if p.tracker != nil {
		fn(p.tracker, statsName)
	}
}

// stream runs one request and returns the concatenated audio. Nothing is
// returned unless the service signals turn.end.
func (p *Provider) stream(ctx context.Context, voice, text string) ([]byte, error) {
	conn, err := p.dial(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	// Unblock ReadMessage when ctx ends
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	if err := conn.WriteMessage(websocket.TextMessage, []byte(configMessage())); err != nil {
		return nil, fmt.Errorf("edge tts: send speech.config: %w", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, []byte(ssmlMessage(newID(), buildSSML(voice, text)))); err != nil {
		return nil, fmt.Errorf("edge tts: send ssml: %w", err)
	}

	var audio bytes.Buffer
	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("edge tts: read: %w", err)
		}
		switch kind {
		case websocket.TextMessage:
			if textPath(string(data)) == "turn.end" {
				return audio.Bytes(), nil
			}
		case websocket.BinaryMessage:
			audio.Write(audioPayload(data))
		}
	}
}

func (p *Provider) dial(ctx context.Context) (*websocket.Conn, error) {
	// Without credentials retrying is pointless, so this counts as fatal
	if missing := MissingEnv(); len(missing) > 0 {
		return nil, tts.NewFatalError(0, "edge tts not configured, missing "+strings.Join(missing, ", "))
	}
	ep := endpointFromEnv()

	var lastErr error
	for attempt := 1; attempt <= dialRetries; attempt++ {
		conn, resp, err := p.dialer.DialContext(ctx, ep.url(time.Now()), ep.header())
		if err == nil {
			return conn, nil
		}
		lastErr = err
		if resp != nil {
			slog.Warn("EdgeTTS: handshake rejected", "status", resp.Status, "attempt", attempt)
			if tts.IsFatalStatus(resp.StatusCode) {
				return nil, tts.NewFatalError(resp.StatusCode, "edge tts handshake rejected")
			}
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(attempt) * 500 * time.Millisecond):
		}
	}
	return nil, fmt.Errorf("edge tts: dial failed after %d attempts: %w", dialRetries, lastErr)
}
