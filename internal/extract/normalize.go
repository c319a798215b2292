package extract

import (
	"regexp"
	"strings"
)

var (
	spaceRuns   = regexp.MustCompile(`[ \t]+`)
	newlineRuns = regexp.MustCompile(`\n{3,}`)
)

// Normalize canonicalizes raw extracted text: Windows and Mac line endings
// become LF, non-breaking spaces become plain spaces, runs of spaces and
// tabs collapse to one space, three or more consecutive newlines collapse
// to a paragraph break, and the result is trimmed. Paragraph breaks that
// already exist are preserved.
func Normalize(text string) string {
	if text == "" {
		return ""
	}

	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = strings.ReplaceAll(text, "\u00a0", " ")
	text = spaceRuns.ReplaceAllString(text, " ")
	text = newlineRuns.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
