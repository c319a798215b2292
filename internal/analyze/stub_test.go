package analyze

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStubAnalyzer_DeterministicFindings(t *testing.T) {
	stub := NewStubAnalyzer()

	findings, err := stub.Analyze(context.Background(), "The party of the first part\nshall indemnify.", 0, Options{})
	require.NoError(t, err)
	assert.Equal(t, "The party of the first part shall indemnify.", findings.Summary)
	require.Len(t, findings.Issues, 1)
	assert.Equal(t, "Potential issue 1", findings.Issues[0].Title)
	assert.Equal(t, "low", findings.Issues[0].Severity)
	assert.NotNil(t, findings.Issues[0].Citations)
}

func TestStubAnalyzer_SeverityCyclesWithIndex(t *testing.T) {
	stub := NewStubAnalyzer()

	for i, want := range []string{"low", "medium", "high", "low"} {
		findings, err := stub.Analyze(context.Background(), "text", i, Options{})
		require.NoError(t, err)
		assert.Equal(t, want, findings.Issues[0].Severity)
	}
}

func TestStubAnalyzer_EmptyTextPlaceholder(t *testing.T) {
	stub := NewStubAnalyzer()

	findings, err := stub.Analyze(context.Background(), "   ", 2, Options{})
	require.NoError(t, err)
	assert.Equal(t, "No substantive text detected in this section.", findings.Summary)
}

func TestStubAnalyzer_ExcerptCapped(t *testing.T) {
	stub := NewStubAnalyzer()

	findings, err := stub.Analyze(context.Background(), strings.Repeat("a", 500), 0, Options{})
	require.NoError(t, err)
	assert.Len(t, findings.Summary, 280)
	assert.Len(t, findings.Issues[0].EvidenceExcerpt, 200)
}
