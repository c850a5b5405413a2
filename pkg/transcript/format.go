package transcript

import (
	"strings"
	"unicode"
)

// pauseThreshold is the silence, in seconds, treated as a paragraph break.
const pauseThreshold = 1.5

// sentenceEnders closes a line in the formatter. The subtitle generator uses
// the same set without the ellipsis.
var sentenceEnders = []rune{'.', '!', '?', '。', '？', '！', '…'}

func endsSentence(text string, withEllipsis bool) bool {
	r, ok := lastRune(text)
	if !ok {
		return false
	}
	for _, e := range sentenceEnders {
		if e == '…' && !withEllipsis {
			continue
		}
		if r == e {
			return true
		}
	}
	return false
}

func lastRune(s string) (rune, bool) {
	rs := []rune(s)
	if len(rs) == 0 {
		return 0, false
	}
	return rs[len(rs)-1], true
}

// FormatText breaks the transcript into readable lines.
//
// With word timing, a line ends after a word ending in sentence punctuation,
// and a pause longer than 1.5s before a word starts a new line. Without word
// timing the raw text is split after sentence punctuation followed by
// whitespace. Lines are trimmed and empty lines dropped.
func FormatText(words []TimedWord, rawText string) string {
	if len(words) == 0 {
		return formatPlain(rawText)
	}

	var lines []string
	var current []string
	flush := func() {
		if len(current) > 0 {
			lines = append(lines, strings.Join(current, " "))
			current = current[:0]
		}
	}

	for i, w := range words {
		if i > 0 && w.Start-words[i-1].End > pauseThreshold {
			flush()
		}
		current = append(current, w.Text)
		if endsSentence(strings.TrimRightFunc(w.Text, unicode.IsSpace), true) {
			flush()
		}
	}
	flush()

	return joinLines(lines)
}

// formatPlain splits text after '.', '!', '?' and their full-width forms when
// whitespace follows.
func formatPlain(text string) string {
	if text == "" {
		return ""
	}

	var lines []string
	var b strings.Builder
	rs := []rune(text)
	for i := 0; i < len(rs); i++ {
		b.WriteRune(rs[i])
		if !isPlainTerminator(rs[i]) || i+1 >= len(rs) || !unicode.IsSpace(rs[i+1]) {
			continue
		}
		lines = append(lines, b.String())
		b.Reset()
		for i+1 < len(rs) && unicode.IsSpace(rs[i+1]) {
			i++
		}
	}
	lines = append(lines, b.String())

	return joinLines(lines)
}

func isPlainTerminator(r rune) bool {
	switch r {
	case '.', '!', '?', '。', '？', '！':
		return true
	}
	return false
}

func joinLines(lines []string) string {
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n")
}
