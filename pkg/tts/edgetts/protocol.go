package edgetts

import (
	"encoding/binary"
	"fmt"
	"strings"

	"salsatempo/pkg/tts"
)

const outputFormat = "audio-24khz-48kbitrate-mono-mp3"

func configMessage() string {
	return "Content-Type:application/json; charset=utf-8\r\nPath:speech.config\r\n\r\n" +
		`{"context":{"synthesis":{"audio":{"metadataoptions":{"sentenceBoundaryEnabled":"false","wordBoundaryEnabled":"false"},"outputFormat":"` +
		outputFormat + `"}}}}`
}

func ssmlMessage(requestID, ssml string) string {
	return fmt.Sprintf("X-RequestId:%s\r\nContent-Type:application/ssml+xml\r\nPath:ssml\r\n\r\n%s", requestID, ssml)
}

func buildSSML(voice, text string) string {
	return tts.SSML(voice, "en-US", text)
}

// textPath returns the Path header of a text frame.
func textPath(msg string) string {
	head, _, _ := strings.Cut(msg, "\r\n\r\n")
	for _, line := range strings.Split(head, "\r\n") {
		if v, ok := strings.CutPrefix(line, "Path:"); ok {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// audioPayload strips the length-prefixed header of a binary frame. Frames
// too short to hold their header carry no audio.
func audioPayload(frame []byte) []byte {
	if len(frame) < 2 {
		return nil
	}
	n := int(binary.BigEndian.Uint16(frame))
	if len(frame) < 2+n {
		return nil
	}
	return frame[2+n:]
}
