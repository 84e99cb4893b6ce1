package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration.
type Config struct {
	Log       LogConfig       `yaml:"log"`
	DB        DBConfig        `yaml:"db"`
	Analyzer  AnalyzerConfig  `yaml:"analyzer"`
	Engine    EngineConfig    `yaml:"engine"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	Announcer AnnouncerConfig `yaml:"announcer"`
	TTS       TTSConfig       `yaml:"tts"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Server LogSettings `yaml:"server"`
	TTS    LogSettings `yaml:"tts"`
	// Trace enables per-beat debug logging from the render path. Each line
	// is written from the audio callback, so a slow log disk can cause
	// audible dropouts; leave it off during practice.
	Trace bool `yaml:"trace"`
}

// LogSettings holds settings for a specific logger.
type LogSettings struct {
	Path  string `yaml:"path"`
	Level string `yaml:"level"`
}

// DBConfig holds database settings.
type DBConfig struct {
	Path string `yaml:"path"`
}

// AnalyzerConfig holds beat tracking parameters.
type AnalyzerConfig struct {
	FFTSize   int     `yaml:"fft_size"`   // STFT window, power of two
	HopLength int     `yaml:"hop_length"` // samples between onset frames
	StartBPM  float64 `yaml:"start_bpm"`  // centre of the tempo prior
	Tightness float64 `yaml:"tightness"`  // penalty for deviating from the period
}

// EngineConfig holds render engine settings.
type EngineConfig struct {
	BlockSize        int     `yaml:"block_size"`  // frames per render call
	Attenuation      float64 `yaml:"attenuation"` // main track gain
	IdleBeats        int     `yaml:"idle_beats"`  // beats between figures
	StartGroup       string  `yaml:"start_group"`
	ArribaSwitchProb float64 `yaml:"arriba_switch_prob"`
	GuapeaSwitchProb float64 `yaml:"guapea_switch_prob"`
	Seed             int64   `yaml:"seed"` // 0 means seeded from the clock
}

// CatalogConfig points to an optional figure table overriding the built-in one.
type CatalogConfig struct {
	Path string `yaml:"path"`
}

// AnnouncerConfig holds settings for the spoken figure announcements.
type AnnouncerConfig struct {
	Enabled   bool     `yaml:"enabled"`
	Language  string   `yaml:"language"` // e.g. "es"
	ClipDir   string   `yaml:"clip_dir"`
	Volume    float64  `yaml:"volume"` // overlay channel level, may exceed 1.0
	QueueSize int      `yaml:"queue_size"`
	Timeout   Duration `yaml:"timeout"` // per synthesis
	// Engine retry delay after an ordinary failure, doubling up to RetryMax
	RetryBase Duration `yaml:"retry_base"`
	RetryMax  Duration `yaml:"retry_max"`
}

// GTTSConfig holds settings for Google Translate TTS.
type GTTSConfig struct {
	BaseURL           string `yaml:"base_url"`
	TLD               string `yaml:"tld"`
	Slow              bool   `yaml:"slow"`
	RequestsPerMinute int    `yaml:"requests_per_minute"`
}

// EdgeTTSConfig holds settings for Edge TTS.
type EdgeTTSConfig struct {
	VoiceID string `yaml:"voice"` // e.g. "es-CU-BelkysNeural"
}

// AzureSpeechConfig holds settings for Azure Speech TTS.
type AzureSpeechConfig struct {
	Key     string `yaml:"key"`
	Region  string `yaml:"region"` // e.g., "eastus"
	VoiceID string `yaml:"voice"`
}

// TTSConfig holds Text-To-Speech settings.
type TTSConfig struct {
	Engine      string            `yaml:"engine"`
	GTTS        GTTSConfig        `yaml:"gtts"`
	EdgeTTS     EdgeTTSConfig     `yaml:"edge_tts"`
	AzureSpeech AzureSpeechConfig `yaml:"azure_speech"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Log: LogConfig{
			Server: LogSettings{
				Path:  "./logs/salsatempo.log",
				Level: "INFO",
			},
			TTS: LogSettings{
				Path:  "./logs/tts.log",
				Level: "INFO",
			},
		},
		DB: DBConfig{
			Path: "./data/salsatempo.db",
		},
		Analyzer: AnalyzerConfig{
			FFTSize:   2048,
			HopLength: 512,
			StartBPM:  120,
			Tightness: 100,
		},
		Engine: EngineConfig{
			BlockSize:        2048,
			Attenuation:      0.5,
			IdleBeats:        24,
			StartGroup:       "Arriba",
			ArribaSwitchProb: 0.7,
			GuapeaSwitchProb: 0.005,
		},
		Announcer: AnnouncerConfig{
			Enabled:   true,
			Language:  "es",
			ClipDir:   "./data/figures_audio",
			Volume:    4.0,
			QueueSize: 4,
			Timeout:   Duration(30 * time.Second),
			RetryBase: Duration(2 * time.Second),
			RetryMax:  Duration(time.Minute),
		},
		TTS: TTSConfig{
			Engine: "gtts",
			GTTS: GTTSConfig{
				BaseURL:           "https://translate.google.com/translate_tts",
				TLD:               "com",
				RequestsPerMinute: 50,
			},
			EdgeTTS: EdgeTTSConfig{
				VoiceID: "es-CU-BelkysNeural",
			},
			AzureSpeech: AzureSpeechConfig{
				VoiceID: "es-CU-BelkysNeural",
			},
		},
	}
}

// Load loads the configuration from the given path.
// If the file does not exist, it creates it with default values.
// Existing files are merged over the defaults but never written back, to keep user comments.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}

		// Secrets from env as a fallback, never saved back to disk
		if cfg.TTS.AzureSpeech.Key == "" {
			if key := os.Getenv("AZURE_SPEECH_KEY"); key != "" {
				cfg.TTS.AzureSpeech.Key = key
			}
		}
		if cfg.TTS.AzureSpeech.Region == "" {
			if region := os.Getenv("AZURE_SPEECH_REGION"); region != "" {
				cfg.TTS.AzureSpeech.Region = region
			}
		}

		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		return cfg, nil
	}

	if err := Save(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to save config file: %w", err)
	}

	return cfg, nil
}

var languageRe = regexp.MustCompile(`^[a-z]{2}(-[A-Z]{2})?$`)

// Validate checks values that would otherwise fail deep inside the engine.
func (c *Config) Validate() error {
	if !languageRe.MatchString(c.Announcer.Language) {
		return fmt.Errorf("invalid announcer language '%s': must be 'xx' or 'xx-YY' (e.g. 'es', 'es-CU')", c.Announcer.Language)
	}
	if c.Engine.BlockSize <= 0 {
		return fmt.Errorf("engine.block_size must be positive, got %d", c.Engine.BlockSize)
	}
	if c.Engine.IdleBeats < 0 {
		return fmt.Errorf("engine.idle_beats must not be negative, got %d", c.Engine.IdleBeats)
	}
	if n := c.Analyzer.FFTSize; n <= 0 || n&(n-1) != 0 {
		return fmt.Errorf("analyzer.fft_size must be a power of two, got %d", n)
	}
	if c.Analyzer.HopLength <= 0 {
		return fmt.Errorf("analyzer.hop_length must be positive, got %d", c.Analyzer.HopLength)
	}
	if c.Analyzer.StartBPM <= 0 {
		return fmt.Errorf("analyzer.start_bpm must be positive, got %v", c.Analyzer.StartBPM)
	}
	if c.Analyzer.Tightness < 0 {
		return fmt.Errorf("analyzer.tightness must not be negative, got %v", c.Analyzer.Tightness)
	}
	for name, p := range map[string]float64{
		"engine.arriba_switch_prob": c.Engine.ArribaSwitchProb,
		"engine.guapea_switch_prob": c.Engine.GuapeaSwitchProb,
	} {
		if p < 0 || p > 1 {
			return fmt.Errorf("%s must be within [0,1], got %v", name, p)
		}
	}
	if c.Engine.StartGroup == "" {
		return fmt.Errorf("engine.start_group must not be empty")
	}
	return nil
}

// Save writes the configuration to the path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# SalsaTempo Configuration
# ------------------------
# Supported Units:
#   Duration: ns, us (or µs), ms, s, m, h, d (day), w (week)

`)
	data = append(header, data...)

	reEngine := regexp.MustCompile(`(?m)^(\s+)engine:`)
	data = reEngine.ReplaceAll(data, []byte("${1}# Options: gtts, edge-tts, azure-speech\n${1}engine:"))

	reTrace := regexp.MustCompile(`(?m)^(\s+)trace:`)
	data = reTrace.ReplaceAll(data, []byte("${1}# Per-beat debug log written from the audio callback; may cause dropouts\n${1}trace:"))

	reVolume := regexp.MustCompile(`(?m)^(\s+)volume:`)
	data = reVolume.ReplaceAll(data, []byte("${1}# Announcement level; values above 1.0 play louder than the track\n${1}volume:"))

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// GenerateDefault creates a default config file at the given path.
// Returns nil if the file already exists.
func GenerateDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	return Save(path, DefaultConfig())
}
