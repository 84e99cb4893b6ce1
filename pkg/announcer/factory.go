package announcer

import (
	"fmt"

	"salsatempo/pkg/config"
	"salsatempo/pkg/tracker"
	"salsatempo/pkg/tts"
	"salsatempo/pkg/tts/azure"
	"salsatempo/pkg/tts/edgetts"
	"salsatempo/pkg/tts/gtts"
)

// NewTTSProvider returns a TTS provider based on configuration.
func NewTTSProvider(cfg *config.TTSConfig, language string, t *tracker.Tracker) (tts.Provider, error) {
	switch cfg.Engine {
	case "gtts", "google":
		return gtts.NewProvider(cfg.GTTS, t), nil
	case "edge", "edge-tts":
		return edgetts.NewProvider(cfg.EdgeTTS, t), nil
	case "azure", "azure-speech":
		return azure.NewProvider(cfg.AzureSpeech, language, t), nil
	default:
		return nil, fmt.Errorf("unknown tts engine: %s", cfg.Engine)
	}
}

// NewFallbackProvider returns the engine to switch to when the configured one
// fails hard, or nil when none is usable.
func NewFallbackProvider(cfg *config.TTSConfig, t *tracker.Tracker) tts.Provider {
	switch cfg.Engine {
	case "gtts", "google":
		if len(edgetts.MissingEnv()) == 0 {
			return edgetts.NewProvider(cfg.EdgeTTS, t)
		}
		return nil
	default:
		return gtts.NewProvider(cfg.GTTS, t)
	}
}
