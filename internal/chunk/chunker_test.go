package chunk

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sandjman56/LAWAgent-test/internal/extract"
)

func TestSplit_EmptyDocument(t *testing.T) {
	assert.Empty(t, Split(nil, DefaultOptions()))
	assert.Empty(t, Split([]extract.Page{{Number: 1, Text: ""}}, DefaultOptions()))
}

func TestSplit_SmallInputIsOneChunk(t *testing.T) {
	pages := []extract.Page{{Number: 1, Text: "Short paragraph.\n\nAnother one."}}

	chunks := Split(pages, DefaultOptions())
	require.Len(t, chunks, 1)
	assert.Equal(t, 0, chunks[0].Index)
	assert.Equal(t, "Short paragraph.\n\nAnother one.", chunks[0].Text)
	assert.Equal(t, 1, chunks[0].PageStart)
	assert.Equal(t, 1, chunks[0].PageEnd)
}

func TestSplit_OverlapSeedsNextChunk(t *testing.T) {
	pages := []extract.Page{
		{Number: 1, Text: strings.Repeat("A", 100)},
		{Number: 2, Text: strings.Repeat("B", 100)},
	}

	chunks := Split(pages, Options{Size: 150, Overlap: 20})
	require.Len(t, chunks, 2)

	assert.Equal(t, strings.Repeat("A", 100), chunks[0].Text)
	assert.Equal(t, 1, chunks[0].PageStart)
	assert.Equal(t, 1, chunks[0].PageEnd)

	// The second chunk starts with the trailing overlap of the first and
	// spans both pages.
	assert.Equal(t, strings.Repeat("A", 20)+"\n\n"+strings.Repeat("B", 100), chunks[1].Text)
	assert.Equal(t, 1, chunks[1].PageStart)
	assert.Equal(t, 2, chunks[1].PageEnd)
}

func TestSplit_BufferCarriesAcrossPages(t *testing.T) {
	pages := []extract.Page{
		{Number: 1, Text: "First page paragraph."},
		{Number: 2, Text: "Second page paragraph."},
	}

	chunks := Split(pages, Options{Size: 200, Overlap: 20})
	require.Len(t, chunks, 1)
	assert.Equal(t, "First page paragraph.\n\nSecond page paragraph.", chunks[0].Text)
	assert.Equal(t, 1, chunks[0].PageStart)
	assert.Equal(t, 2, chunks[0].PageEnd)
}

func TestSplit_OversizeParagraphHardSplit(t *testing.T) {
	pages := []extract.Page{{Number: 3, Text: strings.Repeat("x", 450)}}

	chunks := Split(pages, Options{Size: 200, Overlap: 50})
	require.Len(t, chunks, 3)
	assert.Equal(t, 200, len(chunks[0].Text))
	assert.Equal(t, 200, len(chunks[1].Text))
	assert.Equal(t, 50, len(chunks[2].Text))

	// No overlap between hard-split slices.
	assert.Equal(t, strings.Repeat("x", 450), chunks[0].Text+chunks[1].Text+chunks[2].Text)
	for _, c := range chunks {
		assert.Equal(t, 3, c.PageStart)
		assert.Equal(t, 3, c.PageEnd)
	}
}

func TestSplit_IndicesAndPageInvariants(t *testing.T) {
	var pages []extract.Page
	for p := 1; p <= 5; p++ {
		pages = append(pages, extract.Page{
			Number: p,
			Text:   strings.Repeat("word ", 60) + "\n\n" + strings.Repeat("text ", 60),
		})
	}

	chunks := Split(pages, Options{Size: 300, Overlap: 40})
	require.NotEmpty(t, chunks)
	for i, c := range chunks {
		assert.Equal(t, i, c.Index)
		assert.LessOrEqual(t, c.PageStart, c.PageEnd)
		assert.NotEmpty(t, c.Text)
		assert.Equal(t, EstimateTokens(c.Text), c.TokenCount)
	}
}

func TestSplit_OverlapClampTerminates(t *testing.T) {
	pages := []extract.Page{{Number: 1, Text: "aaaa\n\nbbbb\n\ncccc\n\ndddd"}}

	// Overlap larger than the chunk size is clamped rather than looping.
	chunks := Split(pages, Options{Size: 10, Overlap: 50})
	require.NotEmpty(t, chunks)
	for _, c := range chunks {
		assert.NotEmpty(t, c.Text)
	}
}

func TestSplit_ReconstructionWithoutOverlap(t *testing.T) {
	pages := []extract.Page{
		{Number: 1, Text: "one\n\ntwo\n\nthree"},
		{Number: 2, Text: "four\n\nfive"},
	}

	chunks := Split(pages, Options{Size: 9, Overlap: 0})
	var parts []string
	for _, c := range chunks {
		parts = append(parts, c.Text)
	}
	assert.Equal(t, "one\n\ntwo\n\nthree\n\nfour\n\nfive", strings.Join(parts, "\n\n"))
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 1, EstimateTokens(""))
	assert.Equal(t, 1, EstimateTokens("abc"))
	assert.Equal(t, 25, EstimateTokens(strings.Repeat("a", 100)))
}
