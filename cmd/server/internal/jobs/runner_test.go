package jobs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/houzhh15/scribe/cmd/server/internal/orchestrator"
	"github.com/houzhh15/scribe/cmd/server/internal/orchestrator/whisper"
	"github.com/houzhh15/scribe/pkg/transcript"
)

// twoChunkSegmenter copies the input into two chunk files.
type twoChunkSegmenter struct{ dir string }

func (s twoChunkSegmenter) Segment(ctx context.Context, audioPath string, thresholdBytes int64, segmentDuration int) ([]string, error) {
	var out []string
	for i := 0; i < 2; i++ {
		p := filepath.Join(s.dir, fmt.Sprintf("%s_chunk_%03d.mp3", filepath.Base(audioPath), i))
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// gatedRecognizer blocks every call until gate is closed or ctx ends, and
// tracks peak concurrency.
type gatedRecognizer struct {
	gate    chan struct{}
	running int32
	peak    int32
	calls   int32
}

func (g *gatedRecognizer) Recognize(ctx context.Context, audio []byte, opts *whisper.RecognizeOptions) (*transcript.ChunkResult, error) {
	atomic.AddInt32(&g.calls, 1)
	n := atomic.AddInt32(&g.running, 1)
	defer atomic.AddInt32(&g.running, -1)
	for {
		p := atomic.LoadInt32(&g.peak)
		if n <= p || atomic.CompareAndSwapInt32(&g.peak, p, n) {
			break
		}
	}

	if g.gate != nil {
		select {
		case <-g.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return &transcript.ChunkResult{
		Text:     "hello",
		Words:    []transcript.RawWord{{Text: "hello", Start: transcript.At(0), End: transcript.At(1)}},
		Language: "en",
	}, nil
}

func (g *gatedRecognizer) HealthCheck(ctx context.Context) (bool, error) { return true, nil }
func (g *gatedRecognizer) Name() string                                  { return "gated" }

func newTestRunner(t *testing.T, rec whisper.Recognizer, maxConcurrent int64) (*Runner, Store) {
	t.Helper()
	pipeline := orchestrator.NewPipeline(twoChunkSegmenter{dir: t.TempDir()}, rec,
		orchestrator.Config{SizeThresholdBytes: 1, SegmentDuration: 300}, nil)
	store := NewMemoryStore(0)
	runner := NewRunner(store, pipeline, maxConcurrent, nil)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = runner.Shutdown(ctx)
	})
	return runner, store
}

func writeUpload(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte("audio bytes"), 0o644))
	return path
}

func waitForStatus(t *testing.T, store Store, id string, want Status) *Job {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		job, err := store.Get(context.Background(), id)
		if err == nil && job.Status == want {
			return job
		}
		time.Sleep(5 * time.Millisecond)
	}
	job, _ := store.Get(context.Background(), id)
	t.Fatalf("job %s did not reach %s, last: %+v", id, want, job)
	return nil
}

func TestRunner_CompletesJob(t *testing.T) {
	runner, store := newTestRunner(t, &gatedRecognizer{}, 2)
	upload := writeUpload(t, "a.mp3")

	require.NoError(t, runner.Submit(context.Background(), &Job{ID: "job-1", Filename: "a.mp3"}, upload))

	job := waitForStatus(t, store, "job-1", StatusCompleted)
	require.NotNil(t, job.Result)
	assert.Equal(t, "hello hello", job.Result.RawText)
	assert.Equal(t, 100, job.Progress)
	assert.NotNil(t, job.CompletedAt)

	require.Eventually(t, func() bool {
		_, err := os.Stat(upload)
		return errors.Is(err, os.ErrNotExist)
	}, 2*time.Second, 5*time.Millisecond, "upload must be removed")
}

func TestRunner_FailedJobRecordsCode(t *testing.T) {
	runner, store := newTestRunner(t, &gatedRecognizer{}, 1)
	missing := filepath.Join(t.TempDir(), "gone.mp3")

	require.NoError(t, runner.Submit(context.Background(), &Job{ID: "job-2"}, missing))

	job := waitForStatus(t, store, "job-2", StatusFailed)
	assert.Equal(t, string(orchestrator.AUDIO_NOT_FOUND), job.ErrorCode)
	assert.NotEmpty(t, job.Error)
	assert.Nil(t, job.Result)
}

func TestRunner_CancelRunningJob(t *testing.T) {
	rec := &gatedRecognizer{gate: make(chan struct{})}
	runner, store := newTestRunner(t, rec, 1)

	require.NoError(t, runner.Submit(context.Background(), &Job{ID: "job-3"}, writeUpload(t, "c.mp3")))
	waitForStatus(t, store, "job-3", StatusTranscribing)

	require.NoError(t, runner.Cancel(context.Background(), "job-3"))

	job := waitForStatus(t, store, "job-3", StatusCancelled)
	assert.Nil(t, job.Result)
	require.Eventually(t, func() bool { return runner.Active() == 0 }, 2*time.Second, 5*time.Millisecond)

	err := runner.Cancel(context.Background(), "job-3")
	assert.Error(t, err, "terminal jobs cannot be cancelled again")
	assert.ErrorIs(t, runner.Cancel(context.Background(), "nope"), ErrNotFound)
}

func TestRunner_LimitsConcurrency(t *testing.T) {
	rec := &gatedRecognizer{gate: make(chan struct{})}
	runner, store := newTestRunner(t, rec, 2)

	ids := []string{"j1", "j2", "j3", "j4"}
	for _, id := range ids {
		require.NoError(t, runner.Submit(context.Background(), &Job{ID: id}, writeUpload(t, id+".mp3")))
	}

	require.Eventually(t, func() bool { return atomic.LoadInt32(&rec.running) == 2 }, 2*time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)

	pending := 0
	for _, id := range ids {
		job, err := store.Get(context.Background(), id)
		require.NoError(t, err)
		if job.Status == StatusPending {
			pending++
		}
	}
	assert.Equal(t, 2, pending)

	close(rec.gate)
	for _, id := range ids {
		waitForStatus(t, store, id, StatusCompleted)
	}
	assert.LessOrEqual(t, atomic.LoadInt32(&rec.peak), int32(2))
}

func TestRunner_CancelPendingJob(t *testing.T) {
	rec := &gatedRecognizer{gate: make(chan struct{})}
	runner, store := newTestRunner(t, rec, 1)

	require.NoError(t, runner.Submit(context.Background(), &Job{ID: "first"}, writeUpload(t, "1.mp3")))
	waitForStatus(t, store, "first", StatusTranscribing)
	require.NoError(t, runner.Submit(context.Background(), &Job{ID: "second"}, writeUpload(t, "2.mp3")))

	require.NoError(t, runner.Cancel(context.Background(), "second"))
	waitForStatus(t, store, "second", StatusCancelled)

	close(rec.gate)
	waitForStatus(t, store, "first", StatusCompleted)
}

func TestRunner_DuplicateSubmit(t *testing.T) {
	runner, store := newTestRunner(t, &gatedRecognizer{}, 1)
	require.NoError(t, runner.Submit(context.Background(), &Job{ID: "dup"}, writeUpload(t, "d.mp3")))
	waitForStatus(t, store, "dup", StatusCompleted)

	err := runner.Submit(context.Background(), &Job{ID: "dup"}, writeUpload(t, "e.mp3"))
	assert.ErrorIs(t, err, ErrExists)
}

func TestRunner_ShutdownCancelsJobs(t *testing.T) {
	rec := &gatedRecognizer{gate: make(chan struct{})}
	runner, store := newTestRunner(t, rec, 1)

	require.NoError(t, runner.Submit(context.Background(), &Job{ID: "s"}, writeUpload(t, "s.mp3")))
	waitForStatus(t, store, "s", StatusTranscribing)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, runner.Shutdown(ctx))

	waitForStatus(t, store, "s", StatusCancelled)
}
