package jobs

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sandjman56/LAWAgent-test/internal/analyze"
	"github.com/sandjman56/LAWAgent-test/internal/observability"
)

func TestMemoryQueue_FIFO(t *testing.T) {
	q := NewMemoryQueue(4)
	ctx := context.Background()

	first := Job{Kind: KindProcessUpload, UploadID: uuid.New()}
	second := Job{Kind: KindRunAnalysis, UploadID: uuid.New(), AnalysisID: uuid.New()}

	require.NoError(t, q.Enqueue(ctx, first))
	require.NoError(t, q.Enqueue(ctx, second))

	got, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, got)

	got, err = q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, second, got)
}

func TestMemoryQueue_DequeueHonorsContext(t *testing.T) {
	q := NewMemoryQueue(1)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := q.Dequeue(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMemoryQueue_Close(t *testing.T) {
	q := NewMemoryQueue(2)
	ctx := context.Background()

	buffered := Job{Kind: KindProcessUpload, UploadID: uuid.New()}
	require.NoError(t, q.Enqueue(ctx, buffered))
	require.NoError(t, q.Close())

	// Already-buffered jobs drain before the closed signal surfaces.
	got, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, buffered, got)

	_, err = q.Dequeue(ctx)
	assert.ErrorIs(t, err, ErrClosed)

	assert.ErrorIs(t, q.Enqueue(ctx, buffered), ErrClosed)
	assert.NoError(t, q.Close()) // idempotent
}

func TestMemoryQueue_CloseUnblocksFullBufferEnqueue(t *testing.T) {
	q := NewMemoryQueue(1)
	ctx := context.Background()
	require.NoError(t, q.Enqueue(ctx, Job{Kind: KindProcessUpload, UploadID: uuid.New()}))

	errCh := make(chan error, 1)
	go func() {
		errCh <- q.Enqueue(ctx, Job{Kind: KindProcessUpload, UploadID: uuid.New()})
	}()

	// Let the second enqueue park on the full buffer before closing.
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, q.Close())

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("enqueue did not return after close")
	}
}

type recordingProcessor struct {
	mu  sync.Mutex
	ids []uuid.UUID
	ch  chan struct{}
}

func (p *recordingProcessor) ProcessUpload(_ context.Context, uploadID uuid.UUID) error {
	p.mu.Lock()
	p.ids = append(p.ids, uploadID)
	p.mu.Unlock()
	p.ch <- struct{}{}
	return nil
}

type recordingSpotter struct {
	mu   sync.Mutex
	runs [][2]uuid.UUID
	opts analyze.Options
	ch   chan struct{}
}

func (s *recordingSpotter) Run(_ context.Context, analysisID, uploadID uuid.UUID, opts analyze.Options) error {
	s.mu.Lock()
	s.runs = append(s.runs, [2]uuid.UUID{analysisID, uploadID})
	s.opts = opts
	s.mu.Unlock()
	s.ch <- struct{}{}
	return nil
}

type panickingProcessor struct {
	ch chan struct{}
}

func (p *panickingProcessor) ProcessUpload(context.Context, uuid.UUID) error {
	defer func() { p.ch <- struct{}{} }()
	panic("boom")
}

func waitFor(t *testing.T, ch chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for job")
	}
}

func TestRunner_DispatchesByKind(t *testing.T) {
	q := NewMemoryQueue(8)
	processor := &recordingProcessor{ch: make(chan struct{}, 1)}
	spotter := &recordingSpotter{ch: make(chan struct{}, 1)}

	runner := NewRunner(q, processor, spotter, 2, observability.NopLogger())
	runner.Start(context.Background())
	defer runner.Stop()

	uploadID := uuid.New()
	analysisID := uuid.New()
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, Job{Kind: KindProcessUpload, UploadID: uploadID}))
	waitFor(t, processor.ch)

	require.NoError(t, q.Enqueue(ctx, Job{
		Kind:       KindRunAnalysis,
		UploadID:   uploadID,
		AnalysisID: analysisID,
		Prompt:     "focus on indemnities",
		MaxTokens:  256,
	}))
	waitFor(t, spotter.ch)

	processor.mu.Lock()
	assert.Equal(t, []uuid.UUID{uploadID}, processor.ids)
	processor.mu.Unlock()

	spotter.mu.Lock()
	require.Len(t, spotter.runs, 1)
	assert.Equal(t, analysisID, spotter.runs[0][0])
	assert.Equal(t, uploadID, spotter.runs[0][1])
	assert.Equal(t, "focus on indemnities", spotter.opts.Prompt)
	assert.Equal(t, 256, spotter.opts.MaxTokens)
	spotter.mu.Unlock()
}

func TestRunner_SurvivesPanickingJob(t *testing.T) {
	q := NewMemoryQueue(8)
	panicking := &panickingProcessor{ch: make(chan struct{}, 1)}
	spotter := &recordingSpotter{ch: make(chan struct{}, 1)}

	runner := NewRunner(q, panicking, spotter, 1, observability.NopLogger())
	runner.Start(context.Background())
	defer runner.Stop()

	ctx := context.Background()
	require.NoError(t, q.Enqueue(ctx, Job{Kind: KindProcessUpload, UploadID: uuid.New()}))
	waitFor(t, panicking.ch)

	// The single worker is still alive and keeps consuming.
	require.NoError(t, q.Enqueue(ctx, Job{Kind: KindRunAnalysis, UploadID: uuid.New(), AnalysisID: uuid.New()}))
	waitFor(t, spotter.ch)
}
