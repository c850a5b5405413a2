package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/houzhh15/scribe/cmd/server/internal/orchestrator"
	"github.com/houzhh15/scribe/pkg/logger"
	"github.com/houzhh15/scribe/pkg/metrics"
	"github.com/houzhh15/scribe/pkg/transcript"
)

// Transcriber is the pipeline entry point. orchestrator.Pipeline implements it.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath, languageHint string, opts ...orchestrator.Option) (*transcript.Result, error)
}

// Runner executes jobs in the background, at most maxConcurrent at a time.
type Runner struct {
	store    Store
	pipeline Transcriber
	sem      *semaphore.Weighted
	logger   *slog.Logger

	baseCtx  context.Context
	shutdown context.CancelFunc

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	wg      sync.WaitGroup
}

// NewRunner creates a Runner. maxConcurrent below 1 is treated as 1.
func NewRunner(store Store, pipeline Transcriber, maxConcurrent int64, log *slog.Logger) *Runner {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	if log == nil {
		log = logger.Discard()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		store:    store,
		pipeline: pipeline,
		sem:      semaphore.NewWeighted(maxConcurrent),
		logger:   log.With("component", "jobs"),
		baseCtx:  ctx,
		shutdown: cancel,
		cancels:  make(map[string]context.CancelFunc),
	}
}

// Submit records job as pending and starts it in the background. The runner
// takes ownership of audioPath and removes it once the job ends.
func (r *Runner) Submit(ctx context.Context, job *Job, audioPath string) error {
	now := time.Now()
	job.Status = StatusPending
	job.CreatedAt = now
	job.UpdatedAt = now
	if err := r.store.Create(ctx, job); err != nil {
		return err
	}

	jobCtx, cancel := context.WithCancel(r.baseCtx)
	r.mu.Lock()
	r.cancels[job.ID] = cancel
	r.mu.Unlock()

	r.wg.Add(1)
	go r.run(jobCtx, job.ID, job.Language, audioPath)
	return nil
}

// Cancel stops a pending or running job. The job ends in the cancelled
// state; chunk files already created are still cleaned up by the pipeline.
func (r *Runner) Cancel(ctx context.Context, id string) error {
	job, err := r.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if job.Status.Terminal() {
		return fmt.Errorf("job %s already %s", id, job.Status)
	}

	r.mu.Lock()
	cancel, ok := r.cancels[id]
	r.mu.Unlock()
	if ok {
		cancel()
		return nil
	}

	// Owned by another process or lost on restart: mark it directly.
	_, err = r.store.Update(ctx, id, func(j *Job) error {
		if j.Status.Terminal() {
			return nil
		}
		finish(j, StatusCancelled)
		return nil
	})
	return err
}

// Active reports the number of jobs not yet finished by this runner.
func (r *Runner) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.cancels)
}

// Shutdown cancels all jobs and waits for them to finish or ctx to expire.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.shutdown()
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Runner) run(ctx context.Context, id, language, audioPath string) {
	log := r.logger.With(slog.String("job_id", id))
	defer r.wg.Done()
	defer func() {
		r.mu.Lock()
		if cancel, ok := r.cancels[id]; ok {
			cancel()
			delete(r.cancels, id)
		}
		r.mu.Unlock()
		if err := os.Remove(audioPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Warn("failed to remove upload", slog.String("path", audioPath), slog.Any("error", err))
		}
	}()

	if err := r.sem.Acquire(ctx, 1); err != nil {
		r.complete(log, id, StatusCancelled, nil, nil)
		return
	}
	defer r.sem.Release(1)

	r.update(log, id, func(j *Job) error {
		j.Status = StatusTranscribing
		return nil
	})

	result, err := r.pipeline.Transcribe(ctx, audioPath, language, orchestrator.WithProgress(func(done, total int) {
		r.update(log, id, func(j *Job) error {
			j.Progress = done * 100 / total
			return nil
		})
	}))

	switch {
	case ctx.Err() != nil:
		r.complete(log, id, StatusCancelled, nil, nil)
	case err != nil:
		r.complete(log, id, StatusFailed, nil, err)
	default:
		r.complete(log, id, StatusCompleted, result, nil)
	}
}

func (r *Runner) complete(log *slog.Logger, id string, status Status, result *transcript.Result, cause error) {
	r.update(log, id, func(j *Job) error {
		finish(j, status)
		j.Result = result
		if status == StatusCompleted {
			j.Progress = 100
		}
		if cause != nil {
			j.Error = cause.Error()
			j.ErrorCode = string(orchestrator.ErrorCodeOf(cause))
		}
		return nil
	})
	metrics.RecordJob(string(status))

	attrs := []any{slog.String("status", string(status))}
	if cause != nil {
		attrs = append(attrs, slog.Any("error", cause))
		log.Error("job finished", attrs...)
		return
	}
	log.Info("job finished", attrs...)
}

// update writes with a background context so a cancelled job can still
// record its final state.
func (r *Runner) update(log *slog.Logger, id string, fn func(*Job) error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := r.store.Update(ctx, id, fn); err != nil {
		if errors.Is(err, ErrNotFound) {
			log.Debug("job record gone, skipping update")
			return
		}
		log.Warn("failed to update job", slog.Any("error", err))
	}
}

func finish(j *Job, status Status) {
	now := time.Now()
	j.Status = status
	j.CompletedAt = &now
}
