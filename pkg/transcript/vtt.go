package transcript

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// maxCueDuration closes a subtitle cue once it spans this many seconds.
const maxCueDuration = 5.0

// GenerateVTT renders words as WebVTT cues. A cue closes when it spans at
// least five seconds or its latest word ends a sentence. Cues whose text is
// blank are skipped. Empty input yields an empty string.
func GenerateVTT(words []TimedWord) string {
	if len(words) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("WEBVTT\n\n")

	var cue []string
	cueStart := 0.0
	for _, w := range words {
		if len(cue) == 0 {
			cueStart = w.Start
		}
		cue = append(cue, w.Text)

		if w.End-cueStart >= maxCueDuration || endsSentence(w.Text, false) {
			writeCue(&b, cueStart, w.End, cue)
			cue = cue[:0]
		}
	}

	if len(cue) > 0 {
		writeCue(&b, cueStart, words[len(words)-1].End, cue)
	}

	return b.String()
}

func writeCue(b *strings.Builder, start, end float64, words []string) {
	text := strings.TrimSpace(strings.Join(words, " "))
	if text == "" {
		return
	}
	fmt.Fprintf(b, "%s --> %s\n%s\n\n", FormatTimestamp(start), FormatTimestamp(end), text)
}

// FormatTimestamp formats seconds as HH:MM:SS.mmm, rounded to the millisecond.
func FormatTimestamp(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}
	d := time.Duration(math.Round(seconds*1000)) * time.Millisecond
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second
	d -= s * time.Second
	ms := d / time.Millisecond
	return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, s, ms)
}
