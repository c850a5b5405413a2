package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/houzhh15/scribe/pkg/transcript"
)

func sampleResult() *transcript.Result {
	words := []transcript.TimedWord{{Text: "Hello", Start: 0, End: 0.5}, {Text: "world.", Start: 0.6, End: 1.2}}
	return &transcript.Result{
		FormattedText: transcript.FormatText(words, "Hello world."),
		RawText:       "Hello world.",
		WordCount:     2,
		Language:      "en",
		Words:         words,
		VTT:           transcript.GenerateVTT(words),
		ChunkCount:    1,
	}
}

func TestOutputBase(t *testing.T) {
	assert.Equal(t, "/data/talk", outputBase("/data/talk.mp3", ""))
	assert.Equal(t, "/out/x", outputBase("/data/talk.mp3", "/out/x"))
	assert.Equal(t, "noext", outputBase("noext", ""))
}

func TestValidFormat(t *testing.T) {
	for _, f := range []string{"text", "vtt", "json", "all"} {
		assert.True(t, validFormat(f), f)
	}
	assert.False(t, validFormat("srt"))
	assert.False(t, validFormat(""))
}

func TestWriteOutputs_All(t *testing.T) {
	base := filepath.Join(t.TempDir(), "nested", "talk")

	written, err := writeOutputs(sampleResult(), base, "all")
	require.NoError(t, err)
	assert.Equal(t, []string{base + ".txt", base + ".vtt", base + ".json"}, written)

	txt, err := os.ReadFile(base + ".txt")
	require.NoError(t, err)
	assert.Equal(t, "Hello world.\n", string(txt))

	vtt, err := os.ReadFile(base + ".vtt")
	require.NoError(t, err)
	assert.Equal(t, "WEBVTT\n\n00:00:00.000 --> 00:00:01.200\nHello world.\n\n", string(vtt))

	raw, err := os.ReadFile(base + ".json")
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "en", decoded["language"])
}

func TestWriteOutputs_Single(t *testing.T) {
	base := filepath.Join(t.TempDir(), "talk")

	written, err := writeOutputs(sampleResult(), base, "vtt")
	require.NoError(t, err)
	assert.Equal(t, []string{base + ".vtt"}, written)
	_, err = os.Stat(base + ".txt")
	assert.True(t, os.IsNotExist(err))
}

func TestRunTranscribe_UsageErrors(t *testing.T) {
	assert.Equal(t, 2, runTranscribe([]string{}))
	assert.Equal(t, 2, runTranscribe([]string{"-i", "a.mp3", "-format", "srt"}))
	assert.Equal(t, 2, runTranscribe([]string{"-bogus"}))
}
