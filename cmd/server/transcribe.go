package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/houzhh15/scribe/cmd/server/internal/orchestrator"
	"github.com/houzhh15/scribe/cmd/server/internal/orchestrator/whisper"
	"github.com/houzhh15/scribe/pkg/transcript"
)

// runTranscribe 离线转写单个文件并写出 .txt/.vtt/.json
func runTranscribe(args []string) int {
	fs := flag.NewFlagSet("transcribe", flag.ContinueOnError)
	var input, output, lang, format string
	var check bool
	fs.Usage = func() {
		exe := filepath.Base(os.Args[0])
		fmt.Fprintf(fs.Output(), "Usage: %s transcribe -i <audio> [-o <base>] [-language xx] [-format text|vtt|json|all]\n", exe)
		fmt.Fprintf(fs.Output(), "       %s transcribe -check\n\n", exe)
		fmt.Fprintln(fs.Output(), "Options:")
		fs.PrintDefaults()
	}
	fs.StringVar(&input, "i", "", "Path to the input audio file (required)")
	fs.StringVar(&output, "o", "", "Output path without extension (default: input path without extension)")
	fs.StringVar(&lang, "language", "", "Language hint, e.g. en or zh-CN (default: auto-detect)")
	fs.StringVar(&format, "format", "all", "Output format: text|vtt|json|all")
	fs.BoolVar(&check, "check", false, "Check credentials, recognizer, ffmpeg and work dir, then exit")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if !check && input == "" {
		fs.Usage()
		return 2
	}
	if !validFormat(format) {
		fmt.Fprintln(os.Stderr, "invalid -format:", format)
		fs.Usage()
		return 2
	}

	cfg, logInstance, err := loadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	log := logInstance.With("component", "cli")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pipeline, recognizer, err := buildPipeline(cfg, logInstance)
	if err != nil {
		fmt.Fprintln(os.Stderr, "init pipeline:", err)
		return 1
	}

	if check {
		status := orchestrator.CheckEnvironment(ctx, environmentInput(cfg, recognizer))
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(status)
		if !status.Ready {
			return 1
		}
		return 0
	}

	hint, err := whisper.NormalizeLanguage(lang)
	if err != nil {
		log.Warn("ignoring language hint, auto-detecting", "language", lang, "error", err)
		hint = ""
	}

	result, err := pipeline.Transcribe(ctx, input, hint, orchestrator.WithProgress(func(done, total int) {
		fmt.Fprintf(os.Stderr, "chunk %d/%d done\n", done, total)
	}))
	if err != nil {
		fmt.Fprintln(os.Stderr, "transcribe:", err)
		return 1
	}

	written, err := writeOutputs(result, outputBase(input, output), format)
	if err != nil {
		fmt.Fprintln(os.Stderr, "write output:", err)
		return 1
	}

	fmt.Fprintf(os.Stderr, "language=%s words=%d chunks=%d empty=%d\n",
		result.Language, result.WordCount, result.ChunkCount, result.EmptyChunks)
	for _, p := range written {
		fmt.Println(p)
	}
	return 0
}

func validFormat(f string) bool {
	switch f {
	case "text", "vtt", "json", "all":
		return true
	}
	return false
}

// outputBase 返回输出文件的公共前缀（不含扩展名）
func outputBase(input, output string) string {
	if output != "" {
		return output
	}
	return strings.TrimSuffix(input, filepath.Ext(input))
}

// writeOutputs 按格式写出结果文件，返回写出的路径
func writeOutputs(result *transcript.Result, base, format string) ([]string, error) {
	type target struct {
		ext   string
		write func(io.Writer) error
	}
	text := target{".txt", func(w io.Writer) error {
		_, err := io.WriteString(w, result.FormattedText+"\n")
		return err
	}}
	vtt := target{".vtt", func(w io.Writer) error {
		_, err := io.WriteString(w, result.VTT)
		return err
	}}
	js := target{".json", func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(result)
	}}

	var targets []target
	switch format {
	case "text":
		targets = []target{text}
	case "vtt":
		targets = []target{vtt}
	case "json":
		targets = []target{js}
	default:
		targets = []target{text, vtt, js}
	}

	if dir := filepath.Dir(base); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	written := make([]string, 0, len(targets))
	for _, t := range targets {
		path := base + t.ext
		f, err := os.Create(path)
		if err != nil {
			return written, err
		}
		werr := t.write(f)
		if cerr := f.Close(); werr == nil {
			werr = cerr
		}
		if werr != nil {
			return written, fmt.Errorf("%s: %w", path, werr)
		}
		written = append(written, path)
	}
	return written, nil
}
