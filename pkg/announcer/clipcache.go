package announcer

import (
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"salsatempo/pkg/tts"
)

// ClipCache maps figure names to synthesized clips on disk, one directory
// per language. Clips persist across sessions.
type ClipCache struct {
	dir  string
	lang string
}

// NewClipCache creates a cache rooted at dir for lang.
func NewClipCache(dir, lang string) *ClipCache {
	return &ClipCache{dir: dir, lang: lang}
}

// Dir returns the directory holding clips for the cache's language.
func (c *ClipCache) Dir() string {
	return filepath.Join(c.dir, c.lang)
}

// Path returns where the clip for name lives, whether or not it exists.
func (c *ClipCache) Path(name string) string {
	return filepath.Join(c.Dir(), sanitize(name)+".mp3")
}

// Lookup returns the clip path if a usable clip is cached.
func (c *ClipCache) Lookup(name string) (string, bool) {
	p := c.Path(name)
	if tts.VerifyAudioFile(p) != nil {
		return "", false
	}
	return p, true
}

// sanitize keeps letters and digits (accents included), maps whitespace to
// underscores and drops everything else.
func sanitize(name string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(name) {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r), r == '-', r == '_':
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "_"
	}
	return b.String()
}

// store moves a finished temp file into place.
func (c *ClipCache) store(name, tmpPath string) (string, error) {
	final := c.Path(name)
	if err := os.Rename(tmpPath, final); err != nil {
		return "", err
	}
	return final, nil
}
