// Package pipeline holds the two background orchestrators: document
// processing (extract + chunk + persist) and issue spotting.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/sandjman56/LAWAgent-test/internal/chunk"
	"github.com/sandjman56/LAWAgent-test/internal/extract"
	"github.com/sandjman56/LAWAgent-test/internal/observability"
	"github.com/sandjman56/LAWAgent-test/internal/storage"
)

// PageExtractor is the part of the extractor the processor needs.
// Satisfied by *extract.Extractor; faked in tests.
type PageExtractor interface {
	Extract(ctx context.Context, path string) ([]extract.Page, error)
}

// Processor drives one upload through extraction, chunking, and
// persistence, transitioning the Upload state as it goes.
type Processor struct {
	store     *storage.Store
	files     *storage.FileStore
	extractor PageExtractor
	chunkOpts chunk.Options
	log       *observability.Logger
}

// NewProcessor creates a Processor.
func NewProcessor(store *storage.Store, files *storage.FileStore, extractor PageExtractor, chunkOpts chunk.Options, log *observability.Logger) *Processor {
	return &Processor{
		store:     store,
		files:     files,
		extractor: extractor,
		chunkOpts: chunkOpts,
		log:       log.WithComponent("processor"),
	}
}

// ProcessUpload runs the extraction pipeline for one upload. Failures are
// recorded on the Upload row rather than returned; the only error paths
// out of here are store-level ones the job runner should log and drop.
func (p *Processor) ProcessUpload(ctx context.Context, uploadID uuid.UUID) error {
	upload, err := p.store.Uploads.GetByID(ctx, uploadID)
	if errors.Is(err, storage.ErrNotFound) {
		p.log.Warn().Str("upload_id", uploadID.String()).Msg("upload row missing, skipping processing")
		return nil
	}
	if err != nil {
		return fmt.Errorf("load upload: %w", err)
	}

	if err := p.store.Uploads.SetStatus(ctx, uploadID, storage.UploadStatusExtracting); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("mark extracting: %w", err)
	}

	p.log.Info().
		Str("upload_id", uploadID.String()).
		Str("filename", upload.Filename).
		Msg("extraction started")

	pages, err := p.extractor.Extract(ctx, p.files.PDFPath(uploadID))
	if err != nil {
		p.log.Error().Str("upload_id", uploadID.String()).Err(err).Msg("extraction failed")
		if serr := p.store.Uploads.SetError(ctx, uploadID, err.Error()); serr != nil && !errors.Is(serr, storage.ErrNotFound) {
			return fmt.Errorf("record extraction failure: %w", serr)
		}
		// No chunks were persisted; drop the raw file and any partial
		// derived text so the tree holds no orphans.
		if rerr := p.files.Remove(uploadID); rerr != nil {
			p.log.Warn().Str("upload_id", uploadID.String()).Err(rerr).Msg("cleanup of upload files failed")
		}
		return nil
	}

	chunks := chunk.Split(pages, p.chunkOpts)

	if err := p.files.WriteText(uploadID, extract.JoinPages(pages)); err != nil {
		p.log.Error().Str("upload_id", uploadID.String()).Err(err).Msg("writing derived text failed")
		if serr := p.store.Uploads.SetError(ctx, uploadID, err.Error()); serr != nil && !errors.Is(serr, storage.ErrNotFound) {
			return fmt.Errorf("record text write failure: %w", serr)
		}
		// Same cleanup as the extraction branch: no chunks are persisted
		// yet, so the raw file and any partial text come off disk.
		if rerr := p.files.Remove(uploadID); rerr != nil {
			p.log.Warn().Str("upload_id", uploadID.String()).Err(rerr).Msg("cleanup of upload files failed")
		}
		return nil
	}

	rows := make([]storage.Chunk, len(chunks))
	for i, c := range chunks {
		rows[i] = storage.Chunk{
			UploadID:   uploadID,
			Index:      c.Index,
			Text:       c.Text,
			TokenCount: c.TokenCount,
			PageStart:  c.PageStart,
			PageEnd:    c.PageEnd,
		}
	}

	// Chunk replacement and the ready flip commit together so a reader
	// never observes ready with stale or missing chunks.
	err = p.store.WithTx(ctx, func(r *storage.Repos) error {
		if err := r.Chunks.Replace(ctx, uploadID, rows); err != nil {
			return err
		}
		return r.Uploads.SetReady(ctx, uploadID, len(pages))
	})
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			p.log.Warn().Str("upload_id", uploadID.String()).Msg("upload deleted during processing")
			return nil
		}
		return fmt.Errorf("persist chunks: %w", err)
	}

	p.log.Info().
		Str("upload_id", uploadID.String()).
		Int("pages", len(pages)).
		Int("chunks", len(chunks)).
		Msg("extraction complete")
	return nil
}
