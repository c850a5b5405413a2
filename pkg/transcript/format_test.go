package transcript

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatText(t *testing.T) {
	tests := []struct {
		name  string
		words []TimedWord
		raw   string
		want  string
	}{
		{
			name:  "long pause splits lines",
			words: []TimedWord{{"hello", 0, 0.5}, {"there", 2.5, 3}},
			want:  "hello\nthere",
		},
		{
			name:  "short pause keeps line",
			words: []TimedWord{{"hello", 0, 0.5}, {"there", 0.6, 1}},
			want:  "hello there",
		},
		{
			name:  "exactly threshold keeps line",
			words: []TimedWord{{"a", 0, 1}, {"b", 2.5, 3}},
			want:  "a b",
		},
		{
			name: "sentence punctuation closes line",
			words: []TimedWord{
				{"Hi.", 0, 0.3}, {"How", 0.4, 0.6}, {"are", 0.7, 0.8}, {"you?", 0.9, 1},
				{"Fine…", 1.1, 1.2}, {"好。", 1.3, 1.4}, {"ok", 1.5, 1.6},
			},
			want: "Hi.\nHow are you?\nFine…\n好。\nok",
		},
		{
			name:  "trailing space before punctuation check",
			words: []TimedWord{{" end. ", 0, 1}, {"next", 1.1, 1.2}},
			want:  "end.\nnext",
		},
		{
			name:  "first word with late start is not a pause",
			words: []TimedWord{{"late", 40, 41}, {"start", 41.1, 41.5}},
			want:  "late start",
		},
		{
			name: "no timing falls back to punctuation split",
			raw:  "First one.  Second one! Third? 第四。 第五",
			want: "First one.\nSecond one!\nThird?\n第四。\n第五",
		},
		{
			name: "punctuation without whitespace does not split",
			raw:  "version 1.2 is out.next",
			want: "version 1.2 is out.next",
		},
		{
			name: "empty",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatText(tt.words, tt.raw))
		})
	}
}

var cueTiming = regexp.MustCompile(`^\d{2}:\d{2}:\d{2}\.\d{3} --> \d{2}:\d{2}:\d{2}\.\d{3}$`)

func TestGenerateVTT_Empty(t *testing.T) {
	assert.Equal(t, "", GenerateVTT(nil))
	assert.Equal(t, "", GenerateVTT([]TimedWord{}))
}

func TestGenerateVTT_Cues(t *testing.T) {
	words := []TimedWord{
		{"Hello", 0, 0.5},
		{"world.", 0.6, 1.2},
		{"This", 1.5, 2},
		{"runs", 2.5, 4},
		{"long", 4.5, 6.6},
		{"tail", 7, 7.5},
	}

	got := GenerateVTT(words)

	want := "WEBVTT\n\n" +
		"00:00:00.000 --> 00:00:01.200\nHello world.\n\n" +
		"00:00:01.500 --> 00:00:06.600\nThis runs long\n\n" +
		"00:00:07.000 --> 00:00:07.500\ntail\n\n"
	assert.Equal(t, want, got)

	assert.True(t, strings.HasPrefix(got, "WEBVTT\n\n"))
	for _, line := range strings.Split(got, "\n") {
		if strings.Contains(line, "-->") {
			assert.Regexp(t, cueTiming, line)
		}
	}
}

func TestGenerateVTT_EllipsisDoesNotCloseCue(t *testing.T) {
	got := GenerateVTT([]TimedWord{{"wait…", 0, 0.5}, {"what？", 0.6, 1}})

	assert.Equal(t, "WEBVTT\n\n00:00:00.000 --> 00:00:01.000\nwait… what？\n\n", got)
}

func TestGenerateVTT_SkipsBlankCues(t *testing.T) {
	got := GenerateVTT([]TimedWord{{" ", 0, 6}, {"word", 6, 6.5}})

	assert.Equal(t, "WEBVTT\n\n00:00:06.000 --> 00:00:06.500\nword\n\n", got)
}

func TestFormatTimestamp(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "00:00:00.000"},
		{1.5, "00:00:01.500"},
		{59.9996, "00:01:00.000"},
		{298.7, "00:04:58.700"},
		{3723.004, "01:02:03.004"},
		{-3, "00:00:00.000"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatTimestamp(tt.in), "input %v", tt.in)
	}
}
