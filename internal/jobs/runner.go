package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/sandjman56/LAWAgent-test/internal/analyze"
	"github.com/sandjman56/LAWAgent-test/internal/observability"
)

// UploadProcessor handles process_upload jobs. Satisfied by
// *pipeline.Processor.
type UploadProcessor interface {
	ProcessUpload(ctx context.Context, uploadID uuid.UUID) error
}

// AnalysisRunner handles run_analysis jobs. Satisfied by
// *pipeline.Spotter.
type AnalysisRunner interface {
	Run(ctx context.Context, analysisID, uploadID uuid.UUID, opts analyze.Options) error
}

// Runner consumes the job queue with a fixed worker pool. A panicking job
// is logged and dropped; it never takes the process down.
type Runner struct {
	queue     Queue
	processor UploadProcessor
	spotter   AnalysisRunner
	workers   int
	log       *observability.Logger
	wg        sync.WaitGroup
}

// NewRunner creates a Runner with the given worker count.
func NewRunner(queue Queue, processor UploadProcessor, spotter AnalysisRunner, workers int, log *observability.Logger) *Runner {
	if workers < 1 {
		workers = 1
	}
	return &Runner{
		queue:     queue,
		processor: processor,
		spotter:   spotter,
		workers:   workers,
		log:       log.WithComponent("jobs"),
	}
}

// Start launches the worker goroutines. They exit when the context is
// cancelled or the queue is closed.
func (r *Runner) Start(ctx context.Context) {
	for i := 0; i < r.workers; i++ {
		r.wg.Add(1)
		go func(worker int) {
			defer r.wg.Done()
			r.work(ctx, worker)
		}(i)
	}
	r.log.Info().Int("workers", r.workers).Msg("job runner started")
}

// Stop closes the queue and waits for in-flight jobs to finish.
func (r *Runner) Stop() {
	_ = r.queue.Close()
	r.wg.Wait()
	r.log.Info().Msg("job runner stopped")
}

func (r *Runner) work(ctx context.Context, worker int) {
	for {
		job, err := r.queue.Dequeue(ctx)
		if errors.Is(err, ErrClosed) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return
		}
		if err != nil {
			r.log.Error().Int("worker", worker).Err(err).Msg("dequeue failed")
			continue
		}

		if err := r.dispatch(ctx, job); err != nil {
			r.log.Error().
				Int("worker", worker).
				Str("kind", job.Kind).
				Str("upload_id", job.UploadID.String()).
				Err(err).
				Msg("job failed")
		}
	}
}

func (r *Runner) dispatch(ctx context.Context, job Job) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("job panic: %v", p)
		}
	}()

	switch job.Kind {
	case KindProcessUpload:
		return r.processor.ProcessUpload(ctx, job.UploadID)
	case KindRunAnalysis:
		return r.spotter.Run(ctx, job.AnalysisID, job.UploadID, analyze.Options{
			Prompt:    job.Prompt,
			Model:     job.Model,
			MaxTokens: job.MaxTokens,
		})
	default:
		return fmt.Errorf("unknown job kind: %s", job.Kind)
	}
}
