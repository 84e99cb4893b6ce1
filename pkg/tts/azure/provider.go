// Package azure synthesizes speech with the Azure Speech REST API.
package azure

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"salsatempo/pkg/config"
	"salsatempo/pkg/tracker"
	"salsatempo/pkg/tts"
)

const (
	statsName    = "tts.azure"
	outputFormat = "audio-24khz-160kbitrate-mono-mp3"
	// errorBodyLimit caps how much of a failed response ends up in the error.
	errorBodyLimit = 512
)

// Provider implements tts.Provider for Azure Speech.
type Provider struct {
	cfg      config.AzureSpeechConfig
	language string
	endpoint string
	client   *http.Client
	tracker  *tracker.Tracker
}

// NewProvider creates an Azure Speech provider. language is the xml:lang
// used for voice IDs without a locale prefix.
func NewProvider(cfg config.AzureSpeechConfig, language string, t *tracker.Tracker) *Provider {
	return &Provider{
		cfg:      cfg,
		language: language,
		endpoint: fmt.Sprintf("https://%s.tts.speech.microsoft.com/cognitiveservices/v1", cfg.Region),
		client:   &http.Client{Timeout: 30 * time.Second},
		tracker:  t,
	}
}

// Synthesize posts text as SSML and stores the mp3 reply at outputPath.
func (p *Provider) Synthesize(ctx context.Context, text, voice, outputPath string) (string, error) {
	if !strings.Contains(voice, "Neural") {
		voice = p.cfg.VoiceID
	}
	switch {
	case voice == "":
		return "", fmt.Errorf("azure speech: no voice configured")
	case p.cfg.Key == "" || p.cfg.Region == "":
		return "", tts.NewFatalError(0, "azure speech key or region not configured")
	}

	status, err := p.fetch(ctx, voice, text, tts.EnsureExt(outputPath, "mp3"))
	tts.Log("azure", text, status, err)
	if err != nil {
		p.track((*tracker.Tracker).TrackFailure)
		return "", err
	}
	p.track((*tracker.Tracker).TrackSuccess)
	return "mp3", nil
}

func (p *Provider) track(fn func(*tracker.Tracker, string)) {
	if p.tracker != nil {
		fn(p.tracker, statsName)
	}
}

// fetch returns the HTTP status alongside any error so callers can log it.
func (p *Provider) fetch(ctx context.Context, voice, text, dest string) (int, error) {
	body := tts.SSML(voice, p.language, text)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, strings.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("azure speech: build request: %w", err)
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", p.cfg.Key)
	req.Header.Set("Content-Type", "application/ssml+xml")
	req.Header.Set("X-Microsoft-OutputFormat", outputFormat)
	req.Header.Set("User-Agent", "salsatempo")

	resp, err := p.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("azure speech: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return resp.StatusCode, statusError(resp)
	}
	if err := tts.WriteAudio(dest, resp.Body); err != nil {
		return resp.StatusCode, fmt.Errorf("azure speech: %w", err)
	}
	return resp.StatusCode, nil
}

func statusError(resp *http.Response) error {
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
	msg := strings.TrimSpace(string(snippet))
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	if tts.IsFatalStatus(resp.StatusCode) {
		return tts.NewFatalError(resp.StatusCode, "azure speech: "+msg)
	}
	return fmt.Errorf("azure speech: status %d: %s", resp.StatusCode, msg)
}
