package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/sandjman56/LAWAgent-test/internal/jobs"
	"github.com/sandjman56/LAWAgent-test/internal/observability"
	"github.com/sandjman56/LAWAgent-test/internal/storage"
)

// AnalysisHandler handles issue-spotting job requests.
type AnalysisHandler struct {
	store *storage.Store
	queue jobs.Queue
	log   *observability.Logger
}

// NewAnalysisHandler creates an AnalysisHandler.
func NewAnalysisHandler(store *storage.Store, queue jobs.Queue, log *observability.Logger) *AnalysisHandler {
	return &AnalysisHandler{
		store: store,
		queue: queue,
		log:   log.WithComponent("analyses"),
	}
}

type analysisCreateRequest struct {
	Prompt    string `json:"prompt"`
	Model     string `json:"model"`
	MaxTokens int    `json:"max_tokens"`
}

type analysisCreateResponse struct {
	AnalysisID uuid.UUID              `json:"analysis_id"`
	Status     storage.AnalysisStatus `json:"status"`
}

// Start queues a new analysis job for a ready upload.
func (h *AnalysisHandler) Start(w http.ResponseWriter, r *http.Request) {
	uploadID, ok := parseID(w, r, "uploadID")
	if !ok {
		return
	}

	var req analysisCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	upload, err := h.store.Uploads.GetByID(r.Context(), uploadID)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "upload not found")
		return
	}
	if err != nil {
		h.log.Error().Err(err).Msg("loading upload failed")
		writeError(w, http.StatusInternalServerError, "failed to load upload")
		return
	}

	if upload.Status != storage.UploadStatusReady && upload.Status != storage.UploadStatusDone {
		writeError(w, http.StatusBadRequest, "upload is not ready for analysis")
		return
	}

	analysis := &storage.Analysis{UploadID: uploadID}
	if err := h.store.Analyses.Create(r.Context(), analysis); err != nil {
		h.log.Error().Err(err).Msg("creating analysis row failed")
		writeError(w, http.StatusInternalServerError, "failed to create analysis")
		return
	}

	job := jobs.Job{
		Kind:       jobs.KindRunAnalysis,
		UploadID:   uploadID,
		AnalysisID: analysis.ID,
		Prompt:     req.Prompt,
		Model:      req.Model,
		MaxTokens:  req.MaxTokens,
	}
	if err := h.queue.Enqueue(r.Context(), job); err != nil {
		h.log.Error().Str("analysis_id", analysis.ID.String()).Err(err).Msg("queueing analysis job failed")
		writeError(w, http.StatusInternalServerError, "failed to queue analysis")
		return
	}

	h.log.Info().
		Str("analysis_id", analysis.ID.String()).
		Str("upload_id", uploadID.String()).
		Msg("analysis queued")

	writeJSON(w, http.StatusAccepted, analysisCreateResponse{
		AnalysisID: analysis.ID,
		Status:     analysis.Status,
	})
}

type analysisStatusResponse struct {
	AnalysisID uuid.UUID              `json:"analysis_id"`
	Status     storage.AnalysisStatus `json:"status"`
	Progress   storage.Progress       `json:"progress"`
	Error      *string                `json:"error,omitempty"`
}

// Status reports the state and chunk progress of an analysis.
func (h *AnalysisHandler) Status(w http.ResponseWriter, r *http.Request) {
	analysisID, ok := parseID(w, r, "analysisID")
	if !ok {
		return
	}

	analysis, err := h.store.Analyses.GetByID(r.Context(), analysisID)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "analysis not found")
		return
	}
	if err != nil {
		h.log.Error().Err(err).Msg("loading analysis failed")
		writeError(w, http.StatusInternalServerError, "failed to load analysis")
		return
	}

	progress, err := h.progressFor(r, analysis)
	if err != nil {
		h.log.Error().Err(err).Msg("deriving progress failed")
		writeError(w, http.StatusInternalServerError, "failed to load analysis")
		return
	}

	writeJSON(w, http.StatusOK, analysisStatusResponse{
		AnalysisID: analysis.ID,
		Status:     analysis.Status,
		Progress:   progress,
		Error:      analysis.Error,
	})
}

// progressFor returns the stored progress counters, deriving them from the
// chunk count for rows that predate the first progress write or already
// hold a final report.
func (h *AnalysisHandler) progressFor(r *http.Request, analysis *storage.Analysis) (storage.Progress, error) {
	if analysis.Result != nil && analysis.Result.Progress != nil {
		return *analysis.Result.Progress, nil
	}

	total, err := h.store.Chunks.CountByUpload(r.Context(), analysis.UploadID)
	if err != nil {
		return storage.Progress{}, err
	}

	completed := 0
	if analysis.Status == storage.AnalysisStatusDone {
		completed = total
	}
	return storage.Progress{CompletedChunks: completed, TotalChunks: total}, nil
}

type analysisResultResponse struct {
	AnalysisID uuid.UUID              `json:"analysis_id"`
	Status     storage.AnalysisStatus `json:"status"`
	Result     *storage.Report        `json:"result"`
}

// Result returns the final report. Only a done analysis has one; anything
// else is signalled as not ready or surfaces the stored error.
func (h *AnalysisHandler) Result(w http.ResponseWriter, r *http.Request) {
	analysisID, ok := parseID(w, r, "analysisID")
	if !ok {
		return
	}

	analysis, err := h.store.Analyses.GetByID(r.Context(), analysisID)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "analysis not found")
		return
	}
	if err != nil {
		h.log.Error().Err(err).Msg("loading analysis failed")
		writeError(w, http.StatusInternalServerError, "failed to load analysis")
		return
	}

	if analysis.Status == storage.AnalysisStatusError {
		msg := "analysis failed"
		if analysis.Error != nil && *analysis.Error != "" {
			msg = *analysis.Error
		}
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	if analysis.Status != storage.AnalysisStatusDone {
		writeError(w, http.StatusBadRequest, "analysis not complete yet")
		return
	}
	if analysis.Result == nil || analysis.Result.Report == nil {
		writeError(w, http.StatusBadRequest, "analysis result unavailable")
		return
	}

	writeJSON(w, http.StatusOK, analysisResultResponse{
		AnalysisID: analysis.ID,
		Status:     analysis.Status,
		Result:     analysis.Result.Report,
	})
}
