package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/houzhh15/scribe/cmd/server/internal/config"
	"github.com/houzhh15/scribe/cmd/server/internal/orchestrator"
	"github.com/houzhh15/scribe/cmd/server/internal/orchestrator/dependency"
	"github.com/houzhh15/scribe/cmd/server/internal/orchestrator/segment"
	"github.com/houzhh15/scribe/cmd/server/internal/orchestrator/whisper"
)

// chunkDir 返回切片文件所在目录
func chunkDir(cfg *config.Config) string {
	return filepath.Join(cfg.Pipeline.WorkDir, "chunks")
}

// uploadDir 返回上传文件所在目录
func uploadDir(cfg *config.Config) string {
	return filepath.Join(cfg.Pipeline.WorkDir, "uploads")
}

// buildPipeline 组装识别后端、ffmpeg 执行器、切片器与流水线
func buildPipeline(cfg *config.Config, log *slog.Logger) (*orchestrator.Pipeline, *whisper.CloudflareImpl, error) {
	dir := chunkDir(cfg)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("create chunk dir: %w", err)
	}

	recognizer := whisper.NewCloudflareImpl(whisper.CloudflareConfig{
		BaseURL:   cfg.Recognizer.BaseURL,
		AccountID: cfg.Recognizer.AccountID,
		APIToken:  cfg.Recognizer.APIToken,
		Model:     cfg.Recognizer.Model,
	})

	depClient := dependency.NewClient(dependency.ExecutorConfig{
		WorkDir:          dir,
		LocalBinaryPaths: map[string]string{"ffmpeg": cfg.Pipeline.FFmpegPath},
		DefaultTimeout:   cfg.Pipeline.SplitTimeout,
		AllowedCommands:  []string{"ffmpeg"},
	})

	segmenter := segment.New(depClient, dir, log)
	pipeline := orchestrator.NewPipeline(segmenter, recognizer, orchestrator.Config{
		SizeThresholdBytes: cfg.Pipeline.SizeThresholdBytes,
		SegmentDuration:    cfg.Pipeline.SegmentDuration,
		ChunkTimeout:       cfg.Recognizer.ChunkTimeout,
	}, log)

	return pipeline, recognizer, nil
}

func environmentInput(cfg *config.Config, recognizer whisper.Recognizer) orchestrator.EnvironmentInput {
	return orchestrator.EnvironmentInput{
		AccountID:  cfg.Recognizer.AccountID,
		APIToken:   cfg.Recognizer.APIToken,
		FFmpegPath: cfg.Pipeline.FFmpegPath,
		WorkDir:    cfg.Pipeline.WorkDir,
		Recognizer: recognizer,
	}
}
