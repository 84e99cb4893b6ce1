// Package gtts synthesizes speech through the Google Translate TTS endpoint.
package gtts

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"salsatempo/pkg/config"
	"salsatempo/pkg/tracker"
	"salsatempo/pkg/tts"
)

const statsName = "tts.gtts"

// maxTextLen is the longest text the endpoint accepts in a single request.
const maxTextLen = 200

// Provider implements tts.Provider for Google Translate TTS.
type Provider struct {
	url     string
	slow    bool
	client  *http.Client
	limiter *rate.Limiter
	tracker *tracker.Tracker
}

// NewProvider creates a gTTS provider. Requests are spaced to stay under
// RequestsPerMinute.
func NewProvider(cfg config.GTTSConfig, t *tracker.Tracker) *Provider {
	endpoint := cfg.BaseURL
	if endpoint == "" {
		tld := cfg.TLD
		if tld == "" {
			tld = "com"
		}
		endpoint = fmt.Sprintf("https://translate.google.%s/translate_tts", tld)
	}
	rpm := cfg.RequestsPerMinute
	if rpm <= 0 {
		rpm = 50
	}
	return &Provider{
		url:     endpoint,
		slow:    cfg.Slow,
		client:  &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), 1),
		tracker: t,
	}
}

// Synthesize fetches an mp3 of text spoken in language voice (e.g. "es").
func (p *Provider) Synthesize(ctx context.Context, text, voice, outputPath string) (string, error) {
	if text == "" {
		return "", errors.New("text cannot be empty")
	}
	if len(text) > maxTextLen {
		return "", fmt.Errorf("text too long: %d characters (max %d)", len(text), maxTextLen)
	}
	if voice == "" {
		voice = "en"
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait cancelled: %w", err)
	}

	speed := "1"
	if p.slow {
		speed = "0.3"
	}
	q := url.Values{}
	q.Set("ie", "UTF-8")
	q.Set("q", text)
	q.Set("tl", voice)
	q.Set("client", "tw-ob")
	q.Set("ttsspeed", speed)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url+"?"+q.Encode(), http.NoBody)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := p.client.Do(req)
	if err != nil {
		err = fmt.Errorf("gtts: request: %w", err)
	} else {
		err = p.save(resp, tts.EnsureExt(outputPath, "mp3"))
		resp.Body.Close()
	}

	status := 0
	if resp != nil {
		status = resp.StatusCode
	}
	tts.Log("gtts", text, status, err)
	if err != nil {
		p.fail()
		return "", err
	}
	if p.tracker != nil {
		p.tracker.TrackSuccess(statsName)
	}
	return "mp3", nil
}

func (p *Provider) save(resp *http.Response, dest string) error {
	if resp.StatusCode != http.StatusOK {
		msg := fmt.Sprintf("gtts: status %d", resp.StatusCode)
		if tts.IsFatalStatus(resp.StatusCode) {
			return tts.NewFatalError(resp.StatusCode, msg)
		}
		return errors.New(msg)
	}
	if err := tts.WriteAudio(dest, resp.Body); err != nil {
		return fmt.Errorf("gtts: %w", err)
	}
	return nil
}

func (p *Provider) fail() {
	if p.tracker != nil {
		p.tracker.TrackFailure(statsName)
	}
}

