// Package segment splits oversized audio files into fixed-duration chunks.
package segment

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/houzhh15/scribe/pkg/logger"
	"github.com/houzhh15/scribe/pkg/metrics"
)

// DefaultSegmentDuration is the nominal chunk length in seconds.
const DefaultSegmentDuration = 300

// defaultExt is used when the input has no extension. Matroska accepts any
// codec under stream copy.
const defaultExt = ".mka"

// Splitter performs the stream-copy split. dependency.DependencyClient
// implements it.
type Splitter interface {
	SplitAudio(ctx context.Context, inputPath, outputPattern string, segmentSeconds int) error
}

// Segmenter decides whether a file needs splitting and produces the ordered
// chunk list.
type Segmenter struct {
	splitter Splitter
	workDir  string
	logger   *slog.Logger
	newRunID func() string
}

// New creates a Segmenter writing chunk files into workDir.
func New(splitter Splitter, workDir string, log *slog.Logger) *Segmenter {
	if log == nil {
		log = logger.Discard()
	}
	return &Segmenter{
		splitter: splitter,
		workDir:  workDir,
		logger:   log.With("component", "segment"),
		newRunID: func() string { return strings.ReplaceAll(uuid.NewString(), "-", "")[:12] },
	}
}

// Segment returns the chunk paths for audioPath in chronological order.
//
// Files at or below thresholdBytes are returned unchanged as a single chunk.
// Larger files are split into segmentDuration-second pieces. If splitting fails
// or yields nothing, the original path is returned as the only chunk and any
// partial output is removed. An error is returned only when the input cannot
// be stat'ed or ctx is done.
func (s *Segmenter) Segment(ctx context.Context, audioPath string, thresholdBytes int64, segmentDuration int) ([]string, error) {
	info, err := os.Stat(audioPath)
	if err != nil {
		return nil, err
	}
	if info.Size() <= thresholdBytes {
		return []string{audioPath}, nil
	}
	if segmentDuration <= 0 {
		segmentDuration = DefaultSegmentDuration
	}

	// ffmpeg gets absolute paths; the returned fallback keeps the caller's path.
	input, err := filepath.Abs(audioPath)
	if err != nil {
		return nil, err
	}
	workDir, err := filepath.Abs(s.workDir)
	if err != nil {
		return nil, err
	}

	prefix, ext := s.chunkPrefix(workDir, input)
	pattern := prefix + "_chunk_%03d" + ext

	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return s.fallback(ctx, audioPath, prefix, ext, fmt.Errorf("create work dir: %w", err))
	}

	s.logger.Info("splitting audio",
		slog.String("path", audioPath),
		slog.Int64("size_bytes", info.Size()),
		slog.Int("segment_seconds", segmentDuration))

	if err := s.splitter.SplitAudio(ctx, input, pattern, segmentDuration); err != nil {
		return s.fallback(ctx, audioPath, prefix, ext, err)
	}

	chunks, err := listChunks(prefix, ext)
	if err != nil {
		return s.fallback(ctx, audioPath, prefix, ext, err)
	}
	if len(chunks) == 0 {
		return s.fallback(ctx, audioPath, prefix, ext, fmt.Errorf("split produced no chunk files"))
	}

	s.logger.Info("audio split complete", slog.String("path", audioPath), slog.Int("chunks", len(chunks)))
	return chunks, nil
}

// chunkPrefix builds "<workDir>/<stem>_<runid>" for this invocation.
func (s *Segmenter) chunkPrefix(workDir, audioPath string) (string, string) {
	base := filepath.Base(audioPath)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	if ext == "" {
		ext = defaultExt
	}
	// '%' would be read as a verb by the segment muxer.
	stem = strings.ReplaceAll(stem, "%", "_")
	return filepath.Join(workDir, stem+"_"+s.newRunID()), ext
}

func (s *Segmenter) fallback(ctx context.Context, audioPath, prefix, ext string, cause error) ([]string, error) {
	if partial, _ := listChunks(prefix, ext); len(partial) > 0 {
		for _, p := range partial {
			if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
				s.logger.Warn("failed to remove partial chunk", slog.String("path", p), slog.Any("error", err))
			}
		}
	}

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	metrics.RecordSplitFallback()
	s.logger.Warn("split failed, using unsplit file",
		slog.String("path", audioPath),
		slog.String("error_code", "SPLIT_FAILED"),
		slog.Any("error", cause))
	return []string{audioPath}, nil
}

var chunkIndexPattern = regexp.MustCompile(`_chunk_(\d+)$`)

// listChunks finds the chunk files for a prefix and orders them by their
// numeric index rather than by directory listing order.
func listChunks(prefix, ext string) ([]string, error) {
	matches, err := filepath.Glob(globEscape(prefix) + "_chunk_*" + globEscape(ext))
	if err != nil {
		return nil, err
	}

	type indexed struct {
		path  string
		index int
	}
	var found []indexed
	for _, m := range matches {
		name := strings.TrimSuffix(m, ext)
		sub := chunkIndexPattern.FindStringSubmatch(name)
		if sub == nil {
			continue
		}
		idx, err := strconv.Atoi(sub[1])
		if err != nil {
			continue
		}
		found = append(found, indexed{path: m, index: idx})
	}

	sort.Slice(found, func(i, j int) bool { return found[i].index < found[j].index })

	paths := make([]string, len(found))
	for i, f := range found {
		paths[i] = f.path
	}
	return paths, nil
}

func globEscape(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteRune('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
