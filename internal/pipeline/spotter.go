package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sandjman56/LAWAgent-test/internal/analyze"
	"github.com/sandjman56/LAWAgent-test/internal/observability"
	"github.com/sandjman56/LAWAgent-test/internal/storage"
)

// Fixed summary used when no chunk produced any findings.
const noFindingsSummary = "No significant findings were generated."

// Spotter runs one issue-spotting job: strictly sequential per-chunk
// analysis with incremental progress writes and a final aggregated report.
type Spotter struct {
	store    *storage.Store
	analyzer analyze.Analyzer
	log      *observability.Logger
}

// NewSpotter creates a Spotter.
func NewSpotter(store *storage.Store, analyzer analyze.Analyzer, log *observability.Logger) *Spotter {
	return &Spotter{
		store:    store,
		analyzer: analyzer,
		log:      log.WithComponent("spotter"),
	}
}

// Run executes the analysis job. Chunk failures land on the Analysis row
// and revert the Upload to ready; only store-level errors propagate so the
// job runner can log them.
func (s *Spotter) Run(ctx context.Context, analysisID, uploadID uuid.UUID, opts analyze.Options) error {
	_, err := s.store.Analyses.GetByID(ctx, analysisID)
	if err == nil {
		_, err = s.store.Uploads.GetByID(ctx, uploadID)
	}
	if errors.Is(err, storage.ErrNotFound) {
		// Internal consistency error: the rows we were asked to drive do
		// not exist. Nothing to transition.
		s.log.Error().
			Str("analysis_id", analysisID.String()).
			Str("upload_id", uploadID.String()).
			Msg("analysis or upload row missing, skipping job")
		return nil
	}
	if err != nil {
		return fmt.Errorf("load analysis: %w", err)
	}

	chunks, err := s.store.Chunks.ListByUpload(ctx, uploadID)
	if err != nil {
		return fmt.Errorf("load chunks: %w", err)
	}
	total := len(chunks)

	if err := s.store.Uploads.SetStatus(ctx, uploadID, storage.UploadStatusAnalyzing); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("mark analyzing: %w", err)
	}
	if err := s.store.Analyses.SetRunning(ctx, analysisID, storage.Progress{TotalChunks: total}); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("mark running: %w", err)
	}

	s.log.Info().
		Str("analysis_id", analysisID.String()).
		Str("upload_id", uploadID.String()).
		Int("chunks", total).
		Msg("analysis started")

	var (
		summaries []string
		issues    []storage.Issue
	)

	for _, c := range chunks {
		findings, err := s.analyzer.Analyze(ctx, c.Text, c.Index, opts)
		if err != nil {
			// Abort the remaining chunks. Progress persisted so far is
			// retained; the document itself stays usable, so the Upload
			// goes back to ready rather than error.
			s.log.Error().
				Str("analysis_id", analysisID.String()).
				Int("chunk_index", c.Index).
				Err(err).
				Msg("chunk analysis failed")
			if ferr := s.store.Analyses.Fail(ctx, analysisID, err.Error()); ferr != nil && !errors.Is(ferr, storage.ErrNotFound) {
				return fmt.Errorf("record analysis failure: %w", ferr)
			}
			if uerr := s.store.Uploads.SetStatus(ctx, uploadID, storage.UploadStatusReady); uerr != nil && !errors.Is(uerr, storage.ErrNotFound) {
				return fmt.Errorf("revert upload status: %w", uerr)
			}
			return nil
		}

		if findings.Summary != "" {
			summaries = append(summaries, findings.Summary)
		}
		for _, issue := range findings.Issues {
			issues = append(issues, defaultIssue(issue, c))
		}

		err = s.store.Analyses.SetProgress(ctx, analysisID, storage.Progress{
			CompletedChunks: c.Index + 1,
			TotalChunks:     total,
		})
		if errors.Is(err, storage.ErrNotFound) {
			// The analysis row is gone or no longer running: the upload
			// was deleted mid-flight. Stop writing on its behalf.
			s.log.Warn().
				Str("analysis_id", analysisID.String()).
				Msg("analysis no longer running, abandoning job")
			return nil
		}
		if err != nil {
			return fmt.Errorf("persist progress: %w", err)
		}
	}

	report := storage.Report{
		DocumentSummary: joinSummaries(summaries),
		Issues:          issues,
		Metadata: storage.ReportMetadata{
			NumChunks:   total,
			GeneratedAt: time.Now().UTC(),
		},
	}
	if report.Issues == nil {
		report.Issues = []storage.Issue{}
	}

	if err := s.store.Analyses.Complete(ctx, analysisID, report); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("record completion: %w", err)
	}
	if err := s.store.Uploads.SetStatus(ctx, uploadID, storage.UploadStatusDone); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("mark upload done: %w", err)
	}

	s.log.Info().
		Str("analysis_id", analysisID.String()).
		Str("upload_id", uploadID.String()).
		Int("issues", len(report.Issues)).
		Msg("analysis complete")
	return nil
}

// defaultIssue fills the fields a provider may omit from an issue.
func defaultIssue(issue storage.Issue, c *storage.Chunk) storage.Issue {
	if len(issue.PageRange) != 2 {
		issue.PageRange = []int{c.PageStart, c.PageEnd}
	}
	if issue.Severity == "" {
		issue.Severity = "medium"
	}
	if issue.Title == "" {
		issue.Title = fmt.Sprintf("Chunk %d insight", c.Index)
	}
	if issue.EvidenceExcerpt == "" {
		excerpt := c.Text
		if len(excerpt) > 200 {
			excerpt = excerpt[:200]
		}
		issue.EvidenceExcerpt = excerpt
	}
	if issue.Citations == nil {
		issue.Citations = []string{}
	}
	return issue
}

func joinSummaries(summaries []string) string {
	if len(summaries) == 0 {
		return noFindingsSummary
	}
	return strings.Join(summaries, "\n\n")
}
