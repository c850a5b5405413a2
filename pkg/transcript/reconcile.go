package transcript

import "strings"

const (
	// DefaultSegmentDuration is the nominal length of one chunk in seconds.
	DefaultSegmentDuration = 300.0

	// fallbackWordDuration is used when a word has a start but no end.
	fallbackWordDuration = 0.1
)

// Reconcile rewrites chunk-relative word timings onto the absolute timeline
// of the whole file and concatenates the chunk texts.
//
// Chunks must be in chronological order. After a chunk with words, the next
// chunk starts where the latest word ended. A chunk without words advances
// the timeline by segmentDuration, the nominal chunk length, so that later
// chunks do not collapse onto the same instant. For a short final chunk this
// overestimates, which is accepted.
//
// Missing starts continue from the previous word of the same chunk (or the
// chunk offset), missing ends get a 0.1s duration. Starts never go backwards
// and ends never precede their start.
func Reconcile(chunks []ChunkResult, segmentDuration float64) ([]TimedWord, string) {
	if segmentDuration <= 0 {
		segmentDuration = DefaultSegmentDuration
	}

	words := make([]TimedWord, 0)
	texts := make([]string, 0, len(chunks))
	offset := 0.0
	floor := 0.0

	for _, chunk := range chunks {
		if chunk.Text != "" {
			texts = append(texts, chunk.Text)
		}

		if len(chunk.Words) == 0 {
			offset += segmentDuration
			continue
		}

		cursor := offset
		lastWordEnd := offset
		for _, raw := range chunk.Words {
			start := cursor
			if raw.Start.Valid {
				start = raw.Start.Value + offset
			}
			start = max(start, floor)

			end := start + fallbackWordDuration
			if raw.End.Valid {
				end = raw.End.Value + offset
			}
			end = max(end, start)

			words = append(words, TimedWord{Text: raw.Text, Start: start, End: end})
			floor = start
			cursor = end
			lastWordEnd = max(lastWordEnd, end)
		}
		offset = lastWordEnd
	}

	return words, strings.Join(texts, " ")
}
