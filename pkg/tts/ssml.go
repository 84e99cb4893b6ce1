package tts

import (
	"fmt"
	"strings"
)

var xmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	"\"", "&quot;",
	"'", "&apos;",
)

// SSML wraps text in a single-voice speak document. xml:lang is taken from
// the voice ID, or lang when the ID carries no locale.
func SSML(voice, lang, text string) string {
	return fmt.Sprintf(`<speak version='1.0' xmlns='http://www.w3.org/2001/10/synthesis' xml:lang='%s'><voice name='%s'>%s</voice></speak>`,
		LocaleOf(voice, lang), voice, xmlEscaper.Replace(text))
}
