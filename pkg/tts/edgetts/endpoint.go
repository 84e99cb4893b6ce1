package edgetts

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Env lists the environment variables the websocket handshake needs.
var Env = []string{
	"EDGE_TTS_ORIGIN",
	"EDGE_TTS_USER_AGENT",
	"EDGE_TTS_TRUSTED_CLIENT_TOKEN",
	"EDGE_TTS_SEC_MS_GEC_VERSION",
	"EDGE_TTS_BASE_URL",
}

// MissingEnv returns the names from Env that are unset.
func MissingEnv() []string {
	var missing []string
	for _, k := range Env {
		if os.Getenv(k) == "" {
			missing = append(missing, k)
		}
	}
	return missing
}

// endpoint is the handshake configuration read from the environment.
type endpoint struct {
	baseURL   string
	origin    string
	userAgent string
	token     string
	version   string
}

func endpointFromEnv() endpoint {
	return endpoint{
		baseURL:   os.Getenv("EDGE_TTS_BASE_URL"),
		origin:    os.Getenv("EDGE_TTS_ORIGIN"),
		userAgent: os.Getenv("EDGE_TTS_USER_AGENT"),
		token:     os.Getenv("EDGE_TTS_TRUSTED_CLIENT_TOKEN"),
		version:   os.Getenv("EDGE_TTS_SEC_MS_GEC_VERSION"),
	}
}

func (e endpoint) url(now time.Time) string {
	q := url.Values{}
	q.Set("TrustedClientToken", e.token)
	q.Set("Sec-MS-GEC", secMSGec(e.token, now))
	q.Set("Sec-MS-GEC-Version", e.version)
	return e.baseURL + "?" + q.Encode()
}

func (e endpoint) header() http.Header {
	h := http.Header{}
	h.Set("Origin", e.origin)
	h.Set("User-Agent", e.userAgent)
	h.Set("Pragma", "no-cache")
	h.Set("Cache-Control", "no-cache")
	h.Set("Accept-Language", "es-ES,es;q=0.9,en;q=0.8")
	h.Set("Cookie", "muid="+newID())
	return h
}

// windowsEpochOffset is the seconds between 1601-01-01 and 1970-01-01.
const windowsEpochOffset = 11644473600

// secMSGec hashes the Windows file time, rounded down to five minutes, with
// the client token. A skewed local clock makes the token stale.
func secMSGec(token string, now time.Time) string {
	secs := now.Unix() + windowsEpochOffset
	secs -= secs % 300
	ticks := secs * 10_000_000 // 100ns units
	sum := sha256.Sum256([]byte(fmt.Sprintf("%d%s", ticks, token)))
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

func newID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
