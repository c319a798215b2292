package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Common errors
var (
	ErrNotFound = errors.New("record not found")
)

// DB represents a database connection interface. It is satisfied by both
// *sql.DB and *sql.Tx so repositories can run inside scoped transactions.
type DB interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// Repos bundles the repositories bound to one DB handle.
type Repos struct {
	Uploads  *UploadRepository
	Chunks   *ChunkRepository
	Analyses *AnalysisRepository
}

// NewRepos creates all repositories with the given database handle.
func NewRepos(db DB) *Repos {
	return &Repos{
		Uploads:  NewUploadRepository(db),
		Chunks:   NewChunkRepository(db),
		Analyses: NewAnalysisRepository(db),
	}
}

// Store owns the database connection and exposes the repositories plus a
// scoped-transaction helper. Each orchestrator step runs either a single
// repository call or one WithTx block; no long-lived locks are held.
type Store struct {
	db *sql.DB
	*Repos
}

// NewStore creates a Store over an open database connection.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, Repos: NewRepos(db)}
}

// DB returns the underlying connection, for health checks.
func (s *Store) DB() *sql.DB {
	return s.db
}

// WithTx runs fn inside a transaction that commits on normal return and
// rolls back when fn returns an error or panics.
func (s *Store) WithTx(ctx context.Context, fn func(r *Repos) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(NewRepos(tx)); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// UploadRepository handles upload CRUD operations.
type UploadRepository struct {
	db DB
}

// NewUploadRepository creates a new upload repository.
func NewUploadRepository(db DB) *UploadRepository {
	return &UploadRepository{db: db}
}

const uploadColumns = `id, filename, size_bytes, pages, notes, case_id, status, error, created_at, updated_at`

// Create creates a new upload row.
func (r *UploadRepository) Create(ctx context.Context, upload *Upload) error {
	if upload.ID == uuid.Nil {
		upload.ID = uuid.New()
	}
	if upload.Status == "" {
		upload.Status = UploadStatusUploaded
	}
	upload.CreatedAt = time.Now().UTC()
	upload.UpdatedAt = upload.CreatedAt

	query := `
		INSERT INTO uploads (` + uploadColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.db.ExecContext(ctx, query,
		upload.ID, upload.Filename, upload.SizeBytes, upload.Pages,
		upload.Notes, upload.CaseID, upload.Status, upload.Error,
		upload.CreatedAt, upload.UpdatedAt,
	)
	return err
}

func scanUpload(row interface{ Scan(...interface{}) error }) (*Upload, error) {
	upload := &Upload{}
	err := row.Scan(
		&upload.ID, &upload.Filename, &upload.SizeBytes, &upload.Pages,
		&upload.Notes, &upload.CaseID, &upload.Status, &upload.Error,
		&upload.CreatedAt, &upload.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return upload, nil
}

// GetByID retrieves an upload by ID.
func (r *UploadRepository) GetByID(ctx context.Context, id uuid.UUID) (*Upload, error) {
	query := `SELECT ` + uploadColumns + ` FROM uploads WHERE id = $1`
	return scanUpload(r.db.QueryRowContext(ctx, query, id))
}

// List lists uploads, newest first, optionally filtered by case tag.
func (r *UploadRepository) List(ctx context.Context, caseID *string) ([]*Upload, error) {
	query := `SELECT ` + uploadColumns + ` FROM uploads`
	args := []interface{}{}
	if caseID != nil {
		query += ` WHERE case_id = $1`
		args = append(args, *caseID)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var uploads []*Upload
	for rows.Next() {
		upload, err := scanUpload(rows)
		if err != nil {
			return nil, err
		}
		uploads = append(uploads, upload)
	}
	return uploads, rows.Err()
}

func (r *UploadRepository) exec(ctx context.Context, query string, args ...interface{}) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// SetStatus transitions an upload to the given status.
func (r *UploadRepository) SetStatus(ctx context.Context, id uuid.UUID, status UploadStatus) error {
	query := `UPDATE uploads SET status = $1, updated_at = $2 WHERE id = $3`
	return r.exec(ctx, query, status, time.Now().UTC(), id)
}

// SetReady marks extraction as complete: status ready, page count set,
// error cleared.
func (r *UploadRepository) SetReady(ctx context.Context, id uuid.UUID, pages int) error {
	query := `UPDATE uploads SET status = $1, pages = $2, error = NULL, updated_at = $3 WHERE id = $4`
	return r.exec(ctx, query, UploadStatusReady, pages, time.Now().UTC(), id)
}

// SetError transitions an upload to the error state with a cause.
func (r *UploadRepository) SetError(ctx context.Context, id uuid.UUID, message string) error {
	query := `UPDATE uploads SET status = $1, error = $2, updated_at = $3 WHERE id = $4`
	return r.exec(ctx, query, UploadStatusError, message, time.Now().UTC(), id)
}

// MarkDeleted tombstones an upload on explicit delete.
func (r *UploadRepository) MarkDeleted(ctx context.Context, id uuid.UUID) error {
	return r.SetError(ctx, id, "deleted by user")
}

// ChunkRepository handles chunk operations. Chunks are written in bulk and
// never mutated afterwards.
type ChunkRepository struct {
	db DB
}

// NewChunkRepository creates a new chunk repository.
func NewChunkRepository(db DB) *ChunkRepository {
	return &ChunkRepository{db: db}
}

const chunkColumns = `id, upload_id, idx, text, token_count, page_start, page_end`

// Replace deletes all prior chunks for the upload and inserts the given
// set. Run inside a transaction together with the ready flip so a reader
// never observes ready with stale chunks.
func (r *ChunkRepository) Replace(ctx context.Context, uploadID uuid.UUID, chunks []Chunk) error {
	if err := r.DeleteByUpload(ctx, uploadID); err != nil {
		return err
	}

	query := `
		INSERT INTO chunks (` + chunkColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	for i := range chunks {
		chunk := &chunks[i]
		if chunk.ID == uuid.Nil {
			chunk.ID = uuid.New()
		}
		chunk.UploadID = uploadID
		if _, err := r.db.ExecContext(ctx, query,
			chunk.ID, chunk.UploadID, chunk.Index, chunk.Text,
			chunk.TokenCount, chunk.PageStart, chunk.PageEnd,
		); err != nil {
			return fmt.Errorf("insert chunk %d: %w", chunk.Index, err)
		}
	}
	return nil
}

// ListByUpload retrieves all chunks of an upload in index order.
func (r *ChunkRepository) ListByUpload(ctx context.Context, uploadID uuid.UUID) ([]*Chunk, error) {
	query := `SELECT ` + chunkColumns + ` FROM chunks WHERE upload_id = $1 ORDER BY idx`
	rows, err := r.db.QueryContext(ctx, query, uploadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []*Chunk
	for rows.Next() {
		chunk := &Chunk{}
		if err := rows.Scan(
			&chunk.ID, &chunk.UploadID, &chunk.Index, &chunk.Text,
			&chunk.TokenCount, &chunk.PageStart, &chunk.PageEnd,
		); err != nil {
			return nil, err
		}
		chunks = append(chunks, chunk)
	}
	return chunks, rows.Err()
}

// CountByUpload returns the number of chunks persisted for an upload.
func (r *ChunkRepository) CountByUpload(ctx context.Context, uploadID uuid.UUID) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM chunks WHERE upload_id = $1`
	err := r.db.QueryRowContext(ctx, query, uploadID).Scan(&count)
	return count, err
}

// DeleteByUpload removes all chunks belonging to an upload.
func (r *ChunkRepository) DeleteByUpload(ctx context.Context, uploadID uuid.UUID) error {
	query := `DELETE FROM chunks WHERE upload_id = $1`
	_, err := r.db.ExecContext(ctx, query, uploadID)
	return err
}

// AnalysisRepository handles analysis job operations.
type AnalysisRepository struct {
	db DB
}

// NewAnalysisRepository creates a new analysis repository.
func NewAnalysisRepository(db DB) *AnalysisRepository {
	return &AnalysisRepository{db: db}
}

const analysisColumns = `id, upload_id, status, result_json, error, created_at, updated_at`

func marshalResult(result *AnalysisResult) (interface{}, error) {
	if result == nil {
		return nil, nil
	}
	data, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("encode analysis result: %w", err)
	}
	return string(data), nil
}

// Create creates a new analysis row.
func (r *AnalysisRepository) Create(ctx context.Context, analysis *Analysis) error {
	if analysis.ID == uuid.Nil {
		analysis.ID = uuid.New()
	}
	if analysis.Status == "" {
		analysis.Status = AnalysisStatusQueued
	}
	analysis.CreatedAt = time.Now().UTC()
	analysis.UpdatedAt = analysis.CreatedAt

	resultJSON, err := marshalResult(analysis.Result)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO analyses (` + analysisColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = r.db.ExecContext(ctx, query,
		analysis.ID, analysis.UploadID, analysis.Status, resultJSON,
		analysis.Error, analysis.CreatedAt, analysis.UpdatedAt,
	)
	return err
}

func scanAnalysis(row interface{ Scan(...interface{}) error }) (*Analysis, error) {
	analysis := &Analysis{}
	var resultJSON sql.NullString
	err := row.Scan(
		&analysis.ID, &analysis.UploadID, &analysis.Status, &resultJSON,
		&analysis.Error, &analysis.CreatedAt, &analysis.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if resultJSON.Valid && resultJSON.String != "" {
		result := &AnalysisResult{}
		if err := json.Unmarshal([]byte(resultJSON.String), result); err != nil {
			return nil, err
		}
		analysis.Result = result
	}
	return analysis, nil
}

// GetByID retrieves an analysis by ID.
func (r *AnalysisRepository) GetByID(ctx context.Context, id uuid.UUID) (*Analysis, error) {
	query := `SELECT ` + analysisColumns + ` FROM analyses WHERE id = $1`
	return scanAnalysis(r.db.QueryRowContext(ctx, query, id))
}

// LatestByUpload retrieves the most recent analysis for an upload.
func (r *AnalysisRepository) LatestByUpload(ctx context.Context, uploadID uuid.UUID) (*Analysis, error) {
	query := `SELECT ` + analysisColumns + ` FROM analyses WHERE upload_id = $1 ORDER BY created_at DESC LIMIT 1`
	return scanAnalysis(r.db.QueryRowContext(ctx, query, uploadID))
}

func (r *AnalysisRepository) exec(ctx context.Context, query string, args ...interface{}) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// SetRunning transitions an analysis to running with initial progress.
func (r *AnalysisRepository) SetRunning(ctx context.Context, id uuid.UUID, progress Progress) error {
	resultJSON, err := marshalResult(ProgressResult(progress))
	if err != nil {
		return err
	}
	query := `UPDATE analyses SET status = $1, result_json = $2, updated_at = $3 WHERE id = $4`
	return r.exec(ctx, query, AnalysisStatusRunning, resultJSON, time.Now().UTC(), id)
}

// SetProgress persists updated progress counters. The status guard keeps a
// late write from clobbering a terminal state.
func (r *AnalysisRepository) SetProgress(ctx context.Context, id uuid.UUID, progress Progress) error {
	resultJSON, err := marshalResult(ProgressResult(progress))
	if err != nil {
		return err
	}
	query := `UPDATE analyses SET result_json = $1, updated_at = $2 WHERE id = $3 AND status = $4`
	return r.exec(ctx, query, resultJSON, time.Now().UTC(), id, AnalysisStatusRunning)
}

// Complete transitions an analysis to done with the final report.
func (r *AnalysisRepository) Complete(ctx context.Context, id uuid.UUID, report Report) error {
	resultJSON, err := marshalResult(ReportResult(report))
	if err != nil {
		return err
	}
	query := `UPDATE analyses SET status = $1, result_json = $2, error = NULL, updated_at = $3 WHERE id = $4`
	return r.exec(ctx, query, AnalysisStatusDone, resultJSON, time.Now().UTC(), id)
}

// Fail transitions an analysis to error with a cause. Progress persisted so
// far is retained.
func (r *AnalysisRepository) Fail(ctx context.Context, id uuid.UUID, message string) error {
	query := `UPDATE analyses SET status = $1, error = $2, updated_at = $3 WHERE id = $4`
	return r.exec(ctx, query, AnalysisStatusError, message, time.Now().UTC(), id)
}

// DeleteByUpload removes all analyses belonging to an upload.
func (r *AnalysisRepository) DeleteByUpload(ctx context.Context, uploadID uuid.UUID) error {
	query := `DELETE FROM analyses WHERE upload_id = $1`
	_, err := r.db.ExecContext(ctx, query, uploadID)
	return err
}
