// Package transcript holds the word-level data model shared by the transcription
// pipeline and the pure algorithms that operate on it: stitching independently
// timed chunk results onto one timeline, paragraph formatting and WebVTT output.
package transcript

import (
	"bytes"
	"encoding/json"
)

// Seconds is an optional timestamp reported by the recognition backend.
// The backend does not guarantee timing for every word, so absence is a
// normal value rather than a decode error.
type Seconds struct {
	Value float64
	Valid bool
}

// At returns a present timestamp.
func At(v float64) Seconds {
	return Seconds{Value: v, Valid: true}
}

// UnmarshalJSON accepts JSON numbers as present values. Anything else
// (null, strings, booleans, objects) decodes as absent without error.
func (s *Seconds) UnmarshalJSON(data []byte) error {
	*s = Seconds{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil
	}
	c := data[0]
	if c != '-' && (c < '0' || c > '9') {
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return nil
	}
	*s = At(v)
	return nil
}

// MarshalJSON writes absent values as null.
func (s Seconds) MarshalJSON() ([]byte, error) {
	if !s.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(s.Value)
}

// RawWord is one word as returned for a single chunk, timed relative to
// the start of that chunk.
type RawWord struct {
	Text  string  `json:"word"`
	Start Seconds `json:"start"`
	End   Seconds `json:"end"`
}

// ChunkResult is the normalized outcome of transcribing one chunk. The zero
// value (no text, no words) is what a failed chunk contributes.
type ChunkResult struct {
	Text     string    `json:"text"`
	Words    []RawWord `json:"words"`
	Language string    `json:"language,omitempty"`
}

// IsEmpty reports whether the chunk produced no timed words.
func (c ChunkResult) IsEmpty() bool {
	return len(c.Words) == 0
}

// TimedWord is a word placed on the absolute timeline of the input file.
// End is never before Start.
type TimedWord struct {
	Text  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Result is the final record produced once per input file.
type Result struct {
	FormattedText string      `json:"formatted_text"`
	RawText       string      `json:"raw_text"`
	WordCount     int         `json:"word_count"`
	Language      string      `json:"language"`
	Words         []TimedWord `json:"words"`
	VTT           string      `json:"vtt"`

	// ChunkCount and EmptyChunks describe how the input was processed.
	ChunkCount  int `json:"chunk_count"`
	EmptyChunks int `json:"empty_chunks"`
}
