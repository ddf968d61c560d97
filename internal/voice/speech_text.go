package voice

import "strings"

var speechSanitizer = strings.NewReplacer("*", "", "_", "", "`", "")

// SanitizeSpeechText strips markdown emphasis characters so the synthesizer
// does not read them aloud.
func SanitizeSpeechText(text string) string {
	return strings.TrimSpace(speechSanitizer.Replace(text))
}
