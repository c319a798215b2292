// Package analyze provides the pluggable per-chunk issue-spotting
// function and its provider implementations.
package analyze

import (
	"context"

	"github.com/sandjman56/LAWAgent-test/internal/storage"
)

// Options carries per-request overrides for an analysis run. Zero values
// mean "use the provider default".
type Options struct {
	Prompt    string
	Model     string
	MaxTokens int
}

// Findings is the structured result of analyzing one chunk.
type Findings struct {
	Summary string          `json:"summary"`
	Issues  []storage.Issue `json:"issues"`
}

// Analyzer inspects one chunk of document text and reports findings. A
// transport or provider failure surfaces as an error; the caller aborts
// the job on the first one.
type Analyzer interface {
	Analyze(ctx context.Context, text string, index int, opts Options) (*Findings, error)
}
