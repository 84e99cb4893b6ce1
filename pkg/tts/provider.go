// Package tts defines the speech synthesis contract shared by the engines.
package tts

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// MinAudioSize is the smallest clip accepted as a real synthesis result.
// Engines answer some failures with a short error body in place of audio.
const MinAudioSize = 1024

// Provider turns text into an audio file.
type Provider interface {
	// Synthesize writes audio for text to outputPath and returns its
	// format ("mp3", "wav"). voice is a language code for gTTS and a
	// voice ID for the other engines.
	Synthesize(ctx context.Context, text, voice, outputPath string) (string, error)
}

// FatalError means the engine is unusable for the rest of the run (bad
// credentials, quota, outage) and the caller should switch engines.
type FatalError struct {
	StatusCode int // 0 when no HTTP exchange happened
	Message    string
}

func (e *FatalError) Error() string {
	if e.StatusCode == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s (HTTP %d)", e.Message, e.StatusCode)
}

func NewFatalError(statusCode int, message string) *FatalError {
	return &FatalError{StatusCode: statusCode, Message: message}
}

// IsFatalError reports whether err or anything it wraps is a FatalError.
func IsFatalError(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}

// IsFatalStatus reports whether an HTTP status means the engine should be abandoned.
func IsFatalStatus(code int) bool {
	switch code {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusTooManyRequests:
		return true
	}
	return code >= http.StatusInternalServerError
}
