package tts

import (
	"log/slog"
	"sync/atomic"
	"unicode/utf8"
)

var requestLog atomic.Pointer[slog.Logger]

// SetLogger directs the per-request synthesis log. nil restores the default logger.
func SetLogger(l *slog.Logger) {
	requestLog.Store(l)
}

func logger() *slog.Logger {
	if l := requestLog.Load(); l != nil {
		return l
	}
	return slog.Default()
}

// maxLoggedText keeps one runaway input from flooding the log.
const maxLoggedText = 80

// Log records one synthesis request. Every engine calls it once per request.
func Log(engine, text string, status int, err error) {
	if utf8.RuneCountInString(text) > maxLoggedText {
		text = string([]rune(text)[:maxLoggedText]) + "…"
	}
	if err != nil {
		logger().Warn("TTS request failed", "engine", engine, "status", status, "text", text, "error", err)
		return
	}
	logger().Info("TTS request", "engine", engine, "status", status, "text", text)
}
