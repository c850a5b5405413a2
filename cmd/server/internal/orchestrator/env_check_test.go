package orchestrator

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/houzhh15/scribe/cmd/server/internal/orchestrator/whisper"
	"github.com/houzhh15/scribe/pkg/transcript"
)

type probeRecognizer struct {
	ok  bool
	err error
}

func (p probeRecognizer) Recognize(ctx context.Context, audio []byte, opts *whisper.RecognizeOptions) (*transcript.ChunkResult, error) {
	return nil, nil
}
func (p probeRecognizer) HealthCheck(ctx context.Context) (bool, error) { return p.ok, p.err }
func (p probeRecognizer) Name() string                                  { return "probe" }

func TestCheckEnvironment_Ready(t *testing.T) {
	status := CheckEnvironment(context.Background(), EnvironmentInput{
		AccountID:  "acct",
		APIToken:   "abcdefghijkl",
		FFmpegPath: "/nonexistent/ffmpeg",
		WorkDir:    filepath.Join(t.TempDir(), "work"),
		Recognizer: probeRecognizer{ok: true},
	})

	assert.True(t, status.Ready, "issues: %v", status.Issues)
	assert.Equal(t, "abcd...ijkl", status.Details.Credentials.Masked)
	assert.True(t, status.Details.Recognizer.Reachable)
	assert.True(t, status.Details.WorkDir.Writable)
	// missing ffmpeg only warns
	assert.False(t, status.Details.FFmpeg.Available)
	assert.Len(t, status.Warnings, 1)
}

func TestCheckEnvironment_Issues(t *testing.T) {
	status := CheckEnvironment(context.Background(), EnvironmentInput{
		WorkDir:    "",
		Recognizer: probeRecognizer{err: errors.New("401")},
	})

	assert.False(t, status.Ready)
	assert.Len(t, status.Issues, 4)
	assert.Equal(t, "401", status.Details.Recognizer.Error)
	assert.False(t, status.Details.WorkDir.Writable)
}
