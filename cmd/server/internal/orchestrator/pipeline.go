// Package orchestrator runs the chunked transcription pipeline: split the
// input, recognize each chunk in order, stitch the timeline and render the
// text and subtitle outputs.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/houzhh15/scribe/cmd/server/internal/orchestrator/whisper"
	"github.com/houzhh15/scribe/pkg/logger"
	"github.com/houzhh15/scribe/pkg/metrics"
	"github.com/houzhh15/scribe/pkg/transcript"
)

// UnknownLanguage is reported when no hint was given and the first chunk did
// not detect a language.
const UnknownLanguage = "unknown"

// Segmenter produces the ordered chunk list for an input file.
type Segmenter interface {
	Segment(ctx context.Context, audioPath string, thresholdBytes int64, segmentDuration int) ([]string, error)
}

// Config holds the pipeline tunables.
type Config struct {
	// SizeThresholdBytes is the largest file sent without splitting.
	SizeThresholdBytes int64
	// SegmentDuration is the nominal chunk length in seconds. It is also the
	// offset advance applied for a chunk that yields no words.
	SegmentDuration int
	// ChunkTimeout bounds each recognition call. Zero disables it.
	ChunkTimeout time.Duration
}

// Pipeline transcribes one file at a time. It holds no per-call state and is
// safe for concurrent use.
type Pipeline struct {
	segmenter  Segmenter
	recognizer whisper.Recognizer
	cfg        Config
	logger     *slog.Logger
}

// NewPipeline wires a Pipeline.
func NewPipeline(segmenter Segmenter, recognizer whisper.Recognizer, cfg Config, log *slog.Logger) *Pipeline {
	if log == nil {
		log = logger.Discard()
	}
	if cfg.SegmentDuration <= 0 {
		cfg.SegmentDuration = int(transcript.DefaultSegmentDuration)
	}
	return &Pipeline{
		segmenter:  segmenter,
		recognizer: recognizer,
		cfg:        cfg,
		logger:     log.With("component", "pipeline"),
	}
}

type runOptions struct {
	progress func(done, total int)
}

// Option customizes a single Transcribe call.
type Option func(*runOptions)

// WithProgress registers a callback invoked after each chunk with the number
// of chunks processed so far and the total.
func WithProgress(fn func(done, total int)) Option {
	return func(o *runOptions) { o.progress = fn }
}

// Transcribe runs the full pipeline for audioPath.
//
// Backend failures, timeouts and split failures degrade the output but do
// not fail the call. An *OrchError is returned only when the input is missing
// or unreadable or a chunk cannot be read from disk. If ctx is cancelled
// between chunks the remaining chunk files are removed and ctx.Err() is
// returned.
func (p *Pipeline) Transcribe(ctx context.Context, audioPath, languageHint string, opts ...Option) (*transcript.Result, error) {
	var ro runOptions
	for _, opt := range opts {
		opt(&ro)
	}

	started := time.Now()
	log := p.logger.With(slog.String("path", audioPath))

	if err := checkInput(audioPath); err != nil {
		return nil, err
	}

	chunks, err := p.segmenter.Segment(ctx, audioPath, p.cfg.SizeThresholdBytes, p.cfg.SegmentDuration)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, os.ErrNotExist) {
			return nil, NewAudioNotFoundError(audioPath, err)
		}
		return nil, NewAudioUnreadableError(audioPath, err)
	}

	log.Info("transcription started", slog.Int("chunks", len(chunks)), slog.String("language_hint", languageHint))

	results := make([]transcript.ChunkResult, 0, len(chunks))
	language := languageHint
	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			p.removeChunks(audioPath, chunks[i:])
			return nil, err
		}

		result, err := p.transcribeChunk(ctx, i, chunk, languageHint)
		p.removeChunks(audioPath, chunks[i:i+1])
		if err != nil {
			p.removeChunks(audioPath, chunks[i+1:])
			return nil, err
		}

		if i == 0 && languageHint == "" {
			language = result.Language
		}
		results = append(results, result)

		if ro.progress != nil {
			ro.progress(i+1, len(chunks))
		}
	}

	if language == "" {
		language = UnknownLanguage
	}

	words, raw := transcript.Reconcile(results, float64(p.cfg.SegmentDuration))

	empty := 0
	for _, r := range results {
		if r.IsEmpty() {
			empty++
		}
	}

	out := &transcript.Result{
		FormattedText: transcript.FormatText(words, raw),
		RawText:       raw,
		WordCount:     len(strings.Fields(raw)),
		Language:      language,
		Words:         words,
		VTT:           transcript.GenerateVTT(words),
		ChunkCount:    len(chunks),
		EmptyChunks:   empty,
	}

	metrics.RecordPipelineDuration(time.Since(started).Seconds())
	log.Info("transcription finished",
		slog.Int("word_count", out.WordCount),
		slog.Int("empty_chunks", empty),
		slog.String("language", language),
		slog.Duration("elapsed", time.Since(started)))

	return out, nil
}

func checkInput(audioPath string) error {
	info, err := os.Stat(audioPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return NewAudioNotFoundError(audioPath, err)
		}
		return NewAudioUnreadableError(audioPath, err)
	}
	if info.IsDir() {
		return NewAudioUnreadableError(audioPath, fmt.Errorf("is a directory"))
	}
	return nil
}

// transcribeChunk reads one chunk and sends it to the recognizer. Any backend
// failure yields an empty ChunkResult. Only a local read error is returned.
func (p *Pipeline) transcribeChunk(ctx context.Context, index int, path, languageHint string) (transcript.ChunkResult, error) {
	audio, err := os.ReadFile(path)
	if err != nil {
		logger.LogChunkEvent(p.logger, "transcribe", "error", index, 0, string(CHUNK_READ_FAILED),
			slog.String("chunk", path), slog.Any("error", err))
		return transcript.ChunkResult{}, NewChunkReadError(path, err)
	}

	callCtx := ctx
	if p.cfg.ChunkTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, p.cfg.ChunkTimeout)
		defer cancel()
	}

	start := time.Now()
	result, err := p.recognizer.Recognize(callCtx, audio, &whisper.RecognizeOptions{Language: languageHint})
	elapsed := time.Since(start)

	if err != nil {
		code := classifyBackendError(err)
		metrics.RecordChunk("degraded", elapsed.Seconds())
		metrics.RecordChunkError(string(code))
		logger.LogChunkEvent(p.logger, "transcribe", "error", index, elapsed.Milliseconds(), string(code),
			slog.String("recognizer", p.recognizer.Name()),
			slog.Any("error", err))
		return transcript.ChunkResult{}, nil
	}
	if result == nil {
		result = &transcript.ChunkResult{}
	}

	action := "success"
	if result.IsEmpty() {
		action = "empty"
	}
	metrics.RecordChunk(action, elapsed.Seconds())
	logger.LogChunkEvent(p.logger, "transcribe", action, index, elapsed.Milliseconds(), "")
	return *result, nil
}

// removeChunks deletes generated chunk files. The original input is never
// removed. Failures are logged only.
func (p *Pipeline) removeChunks(audioPath string, chunks []string) {
	for _, chunk := range chunks {
		if chunk == audioPath {
			continue
		}
		if err := os.Remove(chunk); err != nil && !errors.Is(err, os.ErrNotExist) {
			p.logger.Warn("failed to remove chunk file",
				slog.String("chunk", chunk),
				slog.String("error_code", string(CLEANUP_FAILED)),
				slog.Any("error", err))
		}
	}
}
