// Package storage provides database models and repositories for LAWAgent.
package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// UploadStatus represents the processing status of an uploaded document.
type UploadStatus string

const (
	UploadStatusUploaded   UploadStatus = "uploaded"
	UploadStatusExtracting UploadStatus = "extracting"
	UploadStatusReady      UploadStatus = "ready"
	UploadStatusAnalyzing  UploadStatus = "analyzing"
	UploadStatusDone       UploadStatus = "done"
	UploadStatusError      UploadStatus = "error"
)

// AnalysisStatus represents the status of an issue-spotting job.
type AnalysisStatus string

const (
	AnalysisStatusQueued  AnalysisStatus = "queued"
	AnalysisStatusRunning AnalysisStatus = "running"
	AnalysisStatusDone    AnalysisStatus = "done"
	AnalysisStatusError   AnalysisStatus = "error"
)

// Upload represents one ingested document and its processing status.
type Upload struct {
	ID        uuid.UUID    `json:"id" db:"id"`
	Filename  string       `json:"filename" db:"filename"`
	SizeBytes int64        `json:"size_bytes" db:"size_bytes"`
	Pages     int          `json:"pages" db:"pages"`
	Notes     *string      `json:"notes,omitempty" db:"notes"`
	CaseID    *string      `json:"case_id,omitempty" db:"case_id"`
	Status    UploadStatus `json:"status" db:"status"`
	Error     *string      `json:"error,omitempty" db:"error"`
	CreatedAt time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt time.Time    `json:"updated_at" db:"updated_at"`
}

// Chunk represents one ordered, page-provenance-tagged slice of a
// document's normalized text. Chunks are immutable once written.
type Chunk struct {
	ID         uuid.UUID `json:"id" db:"id"`
	UploadID   uuid.UUID `json:"upload_id" db:"upload_id"`
	Index      int       `json:"index" db:"idx"`
	Text       string    `json:"text" db:"text"`
	TokenCount int       `json:"token_count" db:"token_count"`
	PageStart  int       `json:"page_start" db:"page_start"`
	PageEnd    int       `json:"page_end" db:"page_end"`
}

// Analysis represents one issue-spotting run over an Upload's chunks.
type Analysis struct {
	ID        uuid.UUID       `json:"id" db:"id"`
	UploadID  uuid.UUID       `json:"upload_id" db:"upload_id"`
	Status    AnalysisStatus  `json:"status" db:"status"`
	Result    *AnalysisResult `json:"result,omitempty" db:"result_json"`
	Error     *string         `json:"error,omitempty" db:"error"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}

// Progress tracks per-chunk completion while an analysis is running.
type Progress struct {
	CompletedChunks int `json:"completed_chunks"`
	TotalChunks     int `json:"total_chunks"`
}

// Issue is a single finding produced by the issue spotter.
type Issue struct {
	Title           string   `json:"title"`
	Severity        string   `json:"severity"`
	EvidenceExcerpt string   `json:"evidence_excerpt"`
	Citations       []string `json:"citations"`
	PageRange       []int    `json:"page_range,omitempty"`
}

// ReportMetadata carries bookkeeping fields for a final report.
type ReportMetadata struct {
	NumChunks   int       `json:"num_chunks"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Report is the final aggregated payload of a completed analysis.
type Report struct {
	DocumentSummary string         `json:"document_summary"`
	Issues          []Issue        `json:"issues"`
	Metadata        ReportMetadata `json:"metadata"`
}

// AnalysisResult is the tagged result payload of an analysis, discriminated
// by the analysis status: Progress while running, Report once done. Exactly
// one of the two fields is set.
type AnalysisResult struct {
	Progress *Progress
	Report   *Report
}

// ProgressResult wraps a Progress into a result payload.
func ProgressResult(p Progress) *AnalysisResult {
	return &AnalysisResult{Progress: &p}
}

// ReportResult wraps a Report into a result payload.
func ReportResult(r Report) *AnalysisResult {
	return &AnalysisResult{Report: &r}
}

type progressEnvelope struct {
	Progress *Progress `json:"progress"`
}

// MarshalJSON serializes the payload in its wire shape: a {"progress": ...}
// envelope while running, the flat report object once done.
func (r AnalysisResult) MarshalJSON() ([]byte, error) {
	if r.Report != nil {
		return json.Marshal(r.Report)
	}
	if r.Progress != nil {
		return json.Marshal(progressEnvelope{Progress: r.Progress})
	}
	return []byte("null"), nil
}

// UnmarshalJSON recovers the tagged payload by probing for the progress
// envelope first and falling back to the report shape.
func (r *AnalysisResult) UnmarshalJSON(data []byte) error {
	var env progressEnvelope
	if err := json.Unmarshal(data, &env); err == nil && env.Progress != nil {
		r.Progress = env.Progress
		r.Report = nil
		return nil
	}

	var report Report
	if err := json.Unmarshal(data, &report); err != nil {
		return fmt.Errorf("decode analysis result: %w", err)
	}
	r.Report = &report
	r.Progress = nil
	return nil
}
