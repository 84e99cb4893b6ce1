package tts

import (
	"strings"
	"testing"
)

func TestSSML(t *testing.T) {
	tests := []struct {
		name  string
		voice string
		text  string
		want  []string
	}{
		{"Locale from voice", "es-CU-BelkysNeural", "Dile que no", []string{"xml:lang='es-CU'", "<voice name='es-CU-BelkysNeural'>Dile que no</voice>"}},
		{"Fallback language", "custom", "Dame", []string{"xml:lang='es'"}},
		{"Accents kept", "es-ES-ElviraNeural", "Vacílala", []string{"Vacílala"}},
		{"Escaped", "es-CU-BelkysNeural", "<b>Prima</b> & Kentucky's", []string{"&lt;b&gt;Prima&lt;/b&gt; &amp; Kentucky&apos;s"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SSML(tt.voice, "es", tt.text)
			for _, w := range tt.want {
				if !strings.Contains(got, w) {
					t.Errorf("SSML() = %s, want substring %s", got, w)
				}
			}
		})
	}
}
