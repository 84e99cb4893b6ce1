package probe

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"salsatempo/pkg/config"
	"salsatempo/pkg/tts/edgetts"
)

// Pinger is satisfied by *sql.DB and the db wrapper.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Database verifies the cache database answers.
func Database(p Pinger) Probe {
	return Probe{
		Name:     "Analysis Cache",
		Check:    p.PingContext,
		Critical: false, // analysis still runs uncached
	}
}

// ClipDir verifies the announcement clip directory can be written.
func ClipDir(dir string) Probe {
	return Probe{
		Name: "Clip Directory",
		Check: func(context.Context) error {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return err
			}
			f, err := os.CreateTemp(dir, ".probe-*")
			if err != nil {
				return fmt.Errorf("not writable: %w", err)
			}
			name := f.Name()
			f.Close()
			return os.Remove(name)
		},
		Critical: false, // playback runs without announcements
	}
}

// TTSEngine verifies the configured engine has what it needs to synthesize.
func TTSEngine(cfg *config.TTSConfig) Probe {
	return Probe{
		Name: "TTS Engine",
		Check: func(context.Context) error {
			var errs []error
			switch strings.ToLower(cfg.Engine) {
			case "gtts", "google":
				if cfg.GTTS.BaseURL == "" && cfg.GTTS.TLD == "" {
					errs = append(errs, errors.New("gtts needs base_url or tld"))
				}
			case "edge", "edge-tts":
				if missing := edgetts.MissingEnv(); len(missing) > 0 {
					errs = append(errs, fmt.Errorf("missing environment: %s", strings.Join(missing, ", ")))
				}
			case "azure", "azure-speech":
				if cfg.AzureSpeech.Key == "" {
					errs = append(errs, errors.New("azure_speech.key not set"))
				}
				if cfg.AzureSpeech.Region == "" {
					errs = append(errs, errors.New("azure_speech.region not set"))
				}
			default:
				errs = append(errs, fmt.Errorf("unknown engine %q", cfg.Engine))
			}
			return errors.Join(errs...)
		},
		Critical: false,
	}
}

// SourceFile verifies the track to play exists and is a regular file.
func SourceFile(path string) Probe {
	return Probe{
		Name: "Source File",
		Check: func(context.Context) error {
			info, err := os.Stat(path)
			if err != nil {
				return err
			}
			if info.IsDir() {
				return fmt.Errorf("%s is a directory", filepath.Clean(path))
			}
			return nil
		},
		Critical: true,
	}
}
