package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/sandjman56/LAWAgent-test/internal/extract"
	"github.com/sandjman56/LAWAgent-test/internal/jobs"
	"github.com/sandjman56/LAWAgent-test/internal/observability"
	"github.com/sandjman56/LAWAgent-test/internal/storage"
)

// UploadLimits holds the intake validation limits.
type UploadLimits struct {
	MaxBytes int64
	MaxMB    int
	MaxPages int
}

// UploadHandler handles document intake and lifecycle requests.
type UploadHandler struct {
	store  *storage.Store
	files  *storage.FileStore
	queue  jobs.Queue
	limits UploadLimits
	log    *observability.Logger
}

// NewUploadHandler creates an UploadHandler.
func NewUploadHandler(store *storage.Store, files *storage.FileStore, queue jobs.Queue, limits UploadLimits, log *observability.Logger) *UploadHandler {
	return &UploadHandler{
		store:  store,
		files:  files,
		queue:  queue,
		limits: limits,
		log:    log.WithComponent("uploads"),
	}
}

type uploadCreateResponse struct {
	UploadID  uuid.UUID            `json:"upload_id"`
	Filename  string               `json:"filename"`
	SizeBytes int64                `json:"size_bytes"`
	Pages     int                  `json:"pages"`
	Status    storage.UploadStatus `json:"status"`
}

// Create accepts a multipart PDF upload, validates it, persists the raw
// file and the Upload row, and queues background processing.
func (h *UploadHandler) Create(w http.ResponseWriter, r *http.Request) {
	// Slack over the limit so an oversize body is rejected by our size
	// check with a 413 instead of an opaque read error.
	r.Body = http.MaxBytesReader(w, r.Body, h.limits.MaxBytes+(1<<20))

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "multipart field 'file' is required")
		return
	}
	defer file.Close()

	if ct := header.Header.Get("Content-Type"); ct != "" && !strings.EqualFold(ct, "application/pdf") {
		writeError(w, http.StatusUnsupportedMediaType, "only application/pdf files are allowed")
		return
	}

	uploadID := uuid.New()

	size, err := h.files.SavePDF(uploadID, file, h.limits.MaxBytes)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrEmpty):
			writeError(w, http.StatusBadRequest, "uploaded file is empty")
		case errors.Is(err, storage.ErrNotPDF):
			writeError(w, http.StatusUnsupportedMediaType, "file is not a valid PDF")
		case errors.Is(err, storage.ErrTooLarge):
			writeError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("file exceeds the %d MB limit", h.limits.MaxMB))
		default:
			h.log.Error().Err(err).Msg("storing upload failed")
			writeError(w, http.StatusInternalServerError, "failed to store upload")
		}
		return
	}

	pages, err := extract.PageCount(h.files.PDFPath(uploadID))
	if err != nil {
		_ = h.files.Remove(uploadID)
		writeError(w, http.StatusUnsupportedMediaType, "file is not a readable PDF")
		return
	}
	if pages > h.limits.MaxPages {
		_ = h.files.Remove(uploadID)
		writeError(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("document has %d pages; limit is %d pages", pages, h.limits.MaxPages))
		return
	}

	upload := &storage.Upload{
		ID:        uploadID,
		Filename:  sanitizeFilename(header.Filename),
		SizeBytes: size,
		Pages:     pages,
		Notes:     optionalForm(r, "notes"),
		CaseID:    optionalForm(r, "case_id"),
	}
	if err := h.store.Uploads.Create(r.Context(), upload); err != nil {
		_ = h.files.Remove(uploadID)
		h.log.Error().Err(err).Msg("creating upload row failed")
		writeError(w, http.StatusInternalServerError, "failed to record upload")
		return
	}

	if err := h.queue.Enqueue(r.Context(), jobs.Job{Kind: jobs.KindProcessUpload, UploadID: uploadID}); err != nil {
		h.log.Error().Str("upload_id", uploadID.String()).Err(err).Msg("queueing processing job failed")
		writeError(w, http.StatusInternalServerError, "failed to queue processing")
		return
	}

	h.log.Info().
		Str("upload_id", uploadID.String()).
		Str("filename", upload.Filename).
		Int64("size_bytes", size).
		Int("pages", pages).
		Msg("upload accepted")

	writeJSON(w, http.StatusCreated, uploadCreateResponse{
		UploadID:  upload.ID,
		Filename:  upload.Filename,
		SizeBytes: upload.SizeBytes,
		Pages:     upload.Pages,
		Status:    upload.Status,
	})
}

// List returns all uploads, newest first, optionally filtered by case tag.
func (h *UploadHandler) List(w http.ResponseWriter, r *http.Request) {
	var caseID *string
	if v := r.URL.Query().Get("case_id"); v != "" {
		caseID = &v
	}

	uploads, err := h.store.Uploads.List(r.Context(), caseID)
	if err != nil {
		h.log.Error().Err(err).Msg("listing uploads failed")
		writeError(w, http.StatusInternalServerError, "failed to list uploads")
		return
	}
	if uploads == nil {
		uploads = []*storage.Upload{}
	}
	writeJSON(w, http.StatusOK, uploads)
}

type uploadStatusResponse struct {
	UploadID  uuid.UUID            `json:"upload_id"`
	Filename  string               `json:"filename"`
	Status    storage.UploadStatus `json:"status"`
	Pages     int                  `json:"pages"`
	NumChunks int                  `json:"num_chunks"`
	SizeBytes int64                `json:"size_bytes"`
	Error     *string              `json:"error,omitempty"`
}

// Status reports the processing state of one upload.
func (h *UploadHandler) Status(w http.ResponseWriter, r *http.Request) {
	uploadID, ok := parseID(w, r, "uploadID")
	if !ok {
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

	chunkCount, err := h.store.Chunks.CountByUpload(r.Context(), uploadID)
	if err != nil {
		h.log.Error().Err(err).Msg("counting chunks failed")
		writeError(w, http.StatusInternalServerError, "failed to load upload")
		return
	}

	writeJSON(w, http.StatusOK, uploadStatusResponse{
		UploadID:  upload.ID,
		Filename:  upload.Filename,
		Status:    upload.Status,
		Pages:     upload.Pages,
		NumChunks: chunkCount,
		SizeBytes: upload.SizeBytes,
		Error:     upload.Error,
	})
}

// Download serves the stored original document.
func (h *UploadHandler) Download(w http.ResponseWriter, r *http.Request) {
	uploadID, ok := parseID(w, r, "uploadID")
	if !ok {
		return
	}

	path := h.files.PDFPath(uploadID)
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.pdf"`, uploadID))
	http.ServeFile(w, r, path)
}

// Text serves the derived page-delimited full-text file.
func (h *UploadHandler) Text(w http.ResponseWriter, r *http.Request) {
	uploadID, ok := parseID(w, r, "uploadID")
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	http.ServeFile(w, r, h.files.TextPath(uploadID))
}

type uploadDeleteResponse struct {
	UploadID uuid.UUID `json:"upload_id"`
	Status   string    `json:"status"`
}

// Delete tombstones an upload: its chunks and analyses are dropped, the
// row is marked errored, and the files are removed.
func (h *UploadHandler) Delete(w http.ResponseWriter, r *http.Request) {
	uploadID, ok := parseID(w, r, "uploadID")
	if !ok {
		return
	}

	err := h.store.WithTx(r.Context(), func(repos *storage.Repos) error {
		if err := repos.Uploads.MarkDeleted(r.Context(), uploadID); err != nil {
			return err
		}
		if err := repos.Chunks.DeleteByUpload(r.Context(), uploadID); err != nil {
			return err
		}
		return repos.Analyses.DeleteByUpload(r.Context(), uploadID)
	})
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "upload not found")
		return
	}
	if err != nil {
		h.log.Error().Err(err).Msg("deleting upload failed")
		writeError(w, http.StatusInternalServerError, "failed to delete upload")
		return
	}

	if err := h.files.Remove(uploadID); err != nil {
		h.log.Warn().Str("upload_id", uploadID.String()).Err(err).Msg("removing upload files failed")
	}

	writeJSON(w, http.StatusOK, uploadDeleteResponse{UploadID: uploadID, Status: "deleted"})
}

func parseID(w http.ResponseWriter, r *http.Request, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid identifier")
		return uuid.Nil, false
	}
	return id, true
}

func optionalForm(r *http.Request, field string) *string {
	if v := r.FormValue(field); v != "" {
		return &v
	}
	return nil
}

func sanitizeFilename(name string) string {
	name = strings.ReplaceAll(filepath.Base(name), "\x00", "")
	if name == "" || name == "." || name == string(filepath.Separator) {
		return "upload.pdf"
	}
	return name
}
