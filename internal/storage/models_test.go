package storage

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalysisResult_ProgressWireShape(t *testing.T) {
	result := ProgressResult(Progress{CompletedChunks: 3, TotalChunks: 10})

	data, err := json.Marshal(result)
	require.NoError(t, err)
	assert.JSONEq(t, `{"progress":{"completed_chunks":3,"total_chunks":10}}`, string(data))

	var decoded AnalysisResult
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.NotNil(t, decoded.Progress)
	assert.Nil(t, decoded.Report)
	assert.Equal(t, 3, decoded.Progress.CompletedChunks)
	assert.Equal(t, 10, decoded.Progress.TotalChunks)
}

func TestAnalysisResult_ReportWireShape(t *testing.T) {
	generated := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	result := ReportResult(Report{
		DocumentSummary: "summary",
		Issues: []Issue{{
			Title:           "Missing clause",
			Severity:        "high",
			EvidenceExcerpt: "excerpt",
			Citations:       []string{"§12"},
			PageRange:       []int{2, 3},
		}},
		Metadata: ReportMetadata{NumChunks: 4, GeneratedAt: generated},
	})

	data, err := json.Marshal(result)
	require.NoError(t, err)

	// The report serializes flat, without a discriminating envelope.
	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Contains(t, raw, "document_summary")
	assert.NotContains(t, raw, "progress")

	var decoded AnalysisResult
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.NotNil(t, decoded.Report)
	assert.Nil(t, decoded.Progress)
	assert.Equal(t, "summary", decoded.Report.DocumentSummary)
	require.Len(t, decoded.Report.Issues, 1)
	assert.Equal(t, []int{2, 3}, decoded.Report.Issues[0].PageRange)
	assert.Equal(t, 4, decoded.Report.Metadata.NumChunks)
}

func TestAnalysisResult_EmptyIsNull(t *testing.T) {
	data, err := json.Marshal(AnalysisResult{})
	require.NoError(t, err)
	assert.Equal(t, "null", string(data))
}
