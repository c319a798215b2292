package analyze

import (
	"context"
	"fmt"
	"strings"

	"github.com/sandjman56/LAWAgent-test/internal/storage"
)

var severityScale = []string{"low", "medium", "high"}

// StubAnalyzer produces deterministic findings without calling any
// provider. The default when no API key is configured; also used in tests.
type StubAnalyzer struct{}

// NewStubAnalyzer creates a stub analyzer.
func NewStubAnalyzer() *StubAnalyzer {
	return &StubAnalyzer{}
}

// Analyze derives findings from the chunk text alone: the summary is a
// flattened preview of the first 280 characters, severity cycles with the
// chunk index.
func (a *StubAnalyzer) Analyze(_ context.Context, text string, index int, _ Options) (*Findings, error) {
	preview := text
	if len(preview) > 280 {
		preview = preview[:280]
	}
	preview = strings.ReplaceAll(strings.TrimSpace(preview), "\n", " ")

	summary := preview
	if summary == "" {
		summary = "No substantive text detected in this section."
	}

	excerpt := preview
	if len(excerpt) > 200 {
		excerpt = excerpt[:200]
	}

	return &Findings{
		Summary: summary,
		Issues: []storage.Issue{
			{
				Title:           fmt.Sprintf("Potential issue %d", index+1),
				Severity:        severityScale[index%len(severityScale)],
				EvidenceExcerpt: excerpt,
				Citations:       []string{},
			},
		},
	}, nil
}
