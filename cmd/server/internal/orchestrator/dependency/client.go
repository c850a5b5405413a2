package dependency

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/houzhh15/scribe/pkg/metrics"
)

// DependencyClient is the facade the pipeline uses to run codec commands
// without dealing with command construction or execution details.
type DependencyClient struct {
	executor DependencyExecutor
	config   ExecutorConfig
}

// NewClient creates a DependencyClient backed by a LocalExecutor.
func NewClient(config ExecutorConfig) *DependencyClient {
	return NewClientWithExecutor(NewLocalExecutor(config), config)
}

// NewClientWithExecutor creates a DependencyClient around an existing executor.
func NewClientWithExecutor(executor DependencyExecutor, config ExecutorConfig) *DependencyClient {
	return &DependencyClient{executor: executor, config: config}
}

// SplitAudio stream-copies inputPath into fixed-length segments written to
// outputPattern, a printf-style pattern such as "/tmp/talk_ab12_chunk_%03d.mp3".
//
// Timestamps are reset per segment so word timings reported for a chunk are
// relative to that chunk's start. No re-encoding happens.
//
// Example:
//
//	err := client.SplitAudio(ctx, "/data/talk.mp3", "/tmp/talk_ab12_chunk_%03d.mp3", 300)
func (c *DependencyClient) SplitAudio(ctx context.Context, inputPath, outputPattern string, segmentSeconds int) error {
	if segmentSeconds <= 0 {
		return fmt.Errorf("segment duration must be positive, got %d", segmentSeconds)
	}

	inputPath, err := filepath.Abs(inputPath)
	if err != nil {
		return fmt.Errorf("resolve input path: %w", err)
	}
	outputPattern, err = filepath.Abs(outputPattern)
	if err != nil {
		return fmt.Errorf("resolve output pattern: %w", err)
	}

	req := CommandRequest{
		Command: "ffmpeg",
		Args: []string{
			"-hide_banner",
			"-loglevel", "error",
			"-y",
			"-i", inputPath,
			"-f", "segment",
			"-segment_time", strconv.Itoa(segmentSeconds),
			"-c", "copy",
			"-reset_timestamps", "1",
			outputPattern,
		},
		InputFiles: []string{inputPath},
		Timeout:    c.config.DefaultTimeout,
	}

	if err := ValidateCommandRequest(req, c.config); err != nil {
		return fmt.Errorf("command validation failed: %w", err)
	}

	resp, err := c.executor.ExecuteCommand(ctx, req)
	if err != nil {
		metrics.RecordCommandExecution(req.Command, executionStatus(ctx, err), resp.Duration.Seconds())
		return fmt.Errorf("audio split failed: %w", err)
	}

	if !resp.Success || resp.ExitCode != 0 {
		metrics.RecordCommandExecution(req.Command, "failed", resp.Duration.Seconds())
		return fmt.Errorf("audio split failed (exit code %d): %s", resp.ExitCode, resp.Stderr)
	}

	metrics.RecordCommandExecution(req.Command, "success", resp.Duration.Seconds())
	return nil
}

// HealthCheck verifies that the underlying executor is ready.
func (c *DependencyClient) HealthCheck(ctx context.Context) error {
	return c.executor.HealthCheck(ctx)
}

func executionStatus(ctx context.Context, err error) string {
	if ctx.Err() != nil {
		return "timeout"
	}
	if strings.Contains(err.Error(), "timeout") {
		return "timeout"
	}
	return "failed"
}
