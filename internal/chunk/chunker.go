// Package chunk splits normalized page text into bounded, overlapping
// chunks with page-range provenance.
package chunk

import (
	"strings"

	"github.com/sandjman56/LAWAgent-test/internal/extract"
)

// Default chunking parameters.
const (
	DefaultSize    = 1800
	DefaultOverlap = 200
)

// Options configures the chunker.
type Options struct {
	// Size is the target maximum chunk length in characters.
	Size int
	// Overlap is the number of trailing characters of a flushed chunk
	// carried into the next one. Values >= Size are clamped to Size-1 so
	// the buffer always shrinks at a cut point.
	Overlap int
}

// DefaultOptions returns the standard chunking parameters.
func DefaultOptions() Options {
	return Options{Size: DefaultSize, Overlap: DefaultOverlap}
}

// Chunk is one ordered slice of the document text.
type Chunk struct {
	Index      int
	Text       string
	TokenCount int
	PageStart  int
	PageEnd    int
}

// EstimateTokens approximates the token count of text. A character-based
// proxy, not a real tokenizer.
func EstimateTokens(text string) int {
	if n := len(text) / 4; n > 1 {
		return n
	}
	return 1
}

type splitter struct {
	opts   Options
	chunks []Chunk

	buffer    string
	pageStart int
	pageEnd   int
}

// Split chunks the document greedily on paragraph boundaries. The running
// buffer carries across page boundaries, so one chunk may span several
// pages; page_start is the page active when the buffer was seeded and
// page_end the page active at flush time. An entirely empty document
// produces zero chunks.
func Split(pages []extract.Page, opts Options) []Chunk {
	if opts.Size < 1 {
		opts.Size = DefaultSize
	}
	if opts.Overlap < 0 {
		opts.Overlap = 0
	}
	if opts.Overlap >= opts.Size {
		opts.Overlap = opts.Size - 1
	}

	s := &splitter{opts: opts}
	for _, page := range pages {
		for _, paragraph := range strings.Split(page.Text, "\n\n") {
			paragraph = strings.TrimSpace(paragraph)
			if paragraph == "" {
				continue
			}
			s.append(paragraph, page.Number)
		}
	}
	s.flush()
	return s.chunks
}

func (s *splitter) append(paragraph string, page int) {
	if s.buffer == "" {
		if len(paragraph) > s.opts.Size {
			s.hardSplit(paragraph, page)
			return
		}
		s.buffer = paragraph
		s.pageStart = page
		s.pageEnd = page
		return
	}

	candidate := s.buffer + "\n\n" + paragraph
	if len(candidate) <= s.opts.Size {
		s.buffer = candidate
		s.pageEnd = page
		return
	}

	// Cut point: flush the buffer, then seed the next one with its
	// trailing overlap so context survives the boundary. The seeded
	// buffer may briefly exceed the target size; it is emitted whole at
	// the next cut point or at end of input.
	flushed := s.buffer
	flushedEnd := s.pageEnd
	s.flush()

	if s.opts.Overlap > 0 {
		tail := flushed
		if len(tail) > s.opts.Overlap {
			tail = tail[len(tail)-s.opts.Overlap:]
		}
		s.buffer = strings.TrimSpace(tail + "\n\n" + paragraph)
		s.pageStart = flushedEnd
	} else {
		s.buffer = paragraph
		s.pageStart = page
	}
	s.pageEnd = page
}

func (s *splitter) hardSplit(paragraph string, page int) {
	// A single paragraph longer than the chunk size: fixed-size slices,
	// no overlap carried.
	for start := 0; start < len(paragraph); start += s.opts.Size {
		end := start + s.opts.Size
		if end > len(paragraph) {
			end = len(paragraph)
		}
		s.emit(paragraph[start:end], page, page)
	}
}

func (s *splitter) flush() {
	text := strings.TrimSpace(s.buffer)
	s.buffer = ""
	if text == "" {
		return
	}
	s.emit(text, s.pageStart, s.pageEnd)
}

func (s *splitter) emit(text string, pageStart, pageEnd int) {
	s.chunks = append(s.chunks, Chunk{
		Index:      len(s.chunks),
		Text:       text,
		TokenCount: EstimateTokens(text),
		PageStart:  pageStart,
		PageEnd:    pageEnd,
	})
}
