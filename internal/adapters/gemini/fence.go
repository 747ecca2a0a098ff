package gemini

import (
	"regexp"
	"strings"
)

var fencePattern = regexp.MustCompile("(?s)^```(?:json)?\\s*\\n?(.*?)\\n?\\s*```$")

// stripFence unwraps a ```json ... ``` block. Text without a fence is
// returned trimmed.
func stripFence(text string) string {
	text = strings.TrimSpace(text)
	if m := fencePattern.FindStringSubmatch(text); m != nil && m[1] != "" {
		return strings.TrimSpace(m[1])
	}
	return text
}
