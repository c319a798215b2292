// Package jobs provides the background job queue and worker pool that
// drive the document and analysis pipelines.
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Job kinds.
const (
	KindProcessUpload = "process_upload"
	KindRunAnalysis   = "run_analysis"
)

// ErrClosed is returned by queue operations after Close.
var ErrClosed = errors.New("job queue closed")

// Job is one unit of background work.
type Job struct {
	Kind       string    `json:"kind"`
	UploadID   uuid.UUID `json:"upload_id"`
	AnalysisID uuid.UUID `json:"analysis_id,omitempty"`
	Prompt     string    `json:"prompt,omitempty"`
	Model      string    `json:"model,omitempty"`
	MaxTokens  int       `json:"max_tokens,omitempty"`
}

// Queue hands jobs from request handlers to the worker pool. Dequeue
// blocks until a job is available, the context is cancelled, or the queue
// is closed.
type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Dequeue(ctx context.Context) (Job, error)
	Close() error
}

// MemoryQueue is an in-process buffered queue. Jobs are lost on restart;
// the Redis queue covers deployments that need durability.
//
// Shutdown is signalled on a separate done channel so the job channel is
// never closed: a concurrent or buffer-blocked Enqueue observes ErrClosed
// instead of sending on a closed channel.
type MemoryQueue struct {
	ch   chan Job
	done chan struct{}
	once sync.Once
}

// NewMemoryQueue creates a memory queue with the given buffer size.
func NewMemoryQueue(size int) *MemoryQueue {
	if size < 1 {
		size = 1
	}
	return &MemoryQueue{
		ch:   make(chan Job, size),
		done: make(chan struct{}),
	}
}

// Enqueue adds a job, blocking while the buffer is full.
func (q *MemoryQueue) Enqueue(ctx context.Context, job Job) error {
	select {
	case <-q.done:
		return ErrClosed
	default:
	}

	select {
	case q.ch <- job:
		return nil
	case <-q.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dequeue removes the next job. Jobs buffered before Close drain ahead of
// the closed signal.
func (q *MemoryQueue) Dequeue(ctx context.Context) (Job, error) {
	select {
	case job := <-q.ch:
		return job, nil
	default:
	}

	select {
	case job := <-q.ch:
		return job, nil
	case <-q.done:
		return Job{}, ErrClosed
	case <-ctx.Done():
		return Job{}, ctx.Err()
	}
}

// Close shuts the queue. Jobs already buffered are still delivered, and an
// Enqueue blocked on a full buffer returns ErrClosed.
func (q *MemoryQueue) Close() error {
	q.once.Do(func() { close(q.done) })
	return nil
}

// RedisQueue is a durable queue over a Redis list: LPUSH to enqueue,
// blocking BRPOP to dequeue. Jobs survive process restarts.
type RedisQueue struct {
	client *redis.Client
	key    string
}

// RedisOptions configures the Redis-backed queue.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Key      string
}

// NewRedisQueue creates a Redis queue and verifies connectivity.
func NewRedisQueue(ctx context.Context, opts RedisOptions) (*RedisQueue, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	key := opts.Key
	if key == "" {
		key = "lawagent:jobs"
	}
	return &RedisQueue{client: client, key: key}, nil
}

// Enqueue pushes the JSON-encoded job onto the list.
func (q *RedisQueue) Enqueue(ctx context.Context, job Job) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job: %w", err)
	}
	if err := q.client.LPush(ctx, q.key, payload).Err(); err != nil {
		return fmt.Errorf("enqueue job: %w", err)
	}
	return nil
}

// Dequeue pops the next job, polling in short blocking windows so context
// cancellation is honored promptly.
func (q *RedisQueue) Dequeue(ctx context.Context) (Job, error) {
	for {
		vals, err := q.client.BRPop(ctx, 5*time.Second, q.key).Result()
		if errors.Is(err, redis.ErrClosed) {
			return Job{}, ErrClosed
		}
		if errors.Is(err, redis.Nil) {
			if ctx.Err() != nil {
				return Job{}, ctx.Err()
			}
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return Job{}, ctx.Err()
			}
			return Job{}, fmt.Errorf("dequeue job: %w", err)
		}

		var job Job
		if err := json.Unmarshal([]byte(vals[1]), &job); err != nil {
			return Job{}, fmt.Errorf("decode job: %w", err)
		}
		return job, nil
	}
}

// Close releases the Redis connection.
func (q *RedisQueue) Close() error {
	return q.client.Close()
}
