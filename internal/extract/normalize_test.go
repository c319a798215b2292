package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize_LineEndings(t *testing.T) {
	assert.Equal(t, "a\nb\nc", Normalize("a\r\nb\rc"))
}

func TestNormalize_WhitespaceRuns(t *testing.T) {
	assert.Equal(t, "a b c", Normalize("a  \t b  c"))
}

func TestNormalize_NewlineRuns(t *testing.T) {
	assert.Equal(t, "a\n\nb", Normalize("a\n\n\n\n\nb"))
	// Existing paragraph breaks survive.
	assert.Equal(t, "a\n\nb", Normalize("a\n\nb"))
}

func TestNormalize_Trim(t *testing.T) {
	assert.Equal(t, "text", Normalize("  \n text \n\n "))
	assert.Equal(t, "", Normalize("   \n\t  "))
	assert.Equal(t, "", Normalize(""))
}

func TestJoinPages(t *testing.T) {
	pages := []Page{
		{Number: 1, Text: "first"},
		{Number: 2, Text: ""},
		{Number: 3, Text: "third"},
	}

	joined := JoinPages(pages)
	assert.Equal(t, "--- PAGE 1 ---\nfirst\n\n--- PAGE 2 ---\n\n\n--- PAGE 3 ---\nthird", joined)
}

func TestHasText(t *testing.T) {
	assert.False(t, HasText(nil))
	assert.False(t, HasText([]Page{{Number: 1}, {Number: 2}}))
	assert.True(t, HasText([]Page{{Number: 1}, {Number: 2, Text: "x"}}))
}
