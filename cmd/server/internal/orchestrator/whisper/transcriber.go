// Package whisper is the client side of the speech recognition backend.
// It sends one audio chunk per request and returns the chunk-local transcript.
package whisper

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/language"

	"github.com/houzhh15/scribe/pkg/transcript"
)

// Recognizer is the standard interface for recognition backends.
type Recognizer interface {
	// Recognize transcribes one chunk of encoded audio.
	//
	// Parameters:
	//   - ctx: Context for timeout control and cancellation
	//   - audio: Raw bytes of the chunk file, in any container the backend accepts
	//   - options: Optional parameters (language hint)
	//
	// Returns:
	//   - *transcript.ChunkResult: Text and chunk-relative word timings
	//   - error: Non-nil on transport failure, non-2xx status, a rejected request
	//     or an undecodable response
	//
	// Silence is not an error: it returns an empty ChunkResult.
	Recognize(ctx context.Context, audio []byte, options *RecognizeOptions) (*transcript.ChunkResult, error)

	// HealthCheck verifies that the backend is reachable and the credentials are valid.
	HealthCheck(ctx context.Context) (bool, error)

	// Name returns the identifier of this implementation, used in logs.
	Name() string
}

// RecognizeOptions defines optional parameters for Recognize.
type RecognizeOptions struct {
	// Language is a hint for the spoken language (ISO 639-1, e.g. "en", "vi").
	// It does not request translation. Empty means auto-detect.
	Language string
}

// ErrRejected is returned when the backend answers 2xx with success=false.
var ErrRejected = errors.New("recognition request rejected")

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API returned status %d: %s", e.StatusCode, e.Body)
}

// NormalizeLanguage reduces a BCP 47 tag such as "en-US" or "zh_Hans" to its
// base language code. Empty, "auto" and "und" mean auto-detect and yield "".
func NormalizeLanguage(tag string) (string, error) {
	tag = strings.TrimSpace(tag)
	switch strings.ToLower(tag) {
	case "", "auto", "und":
		return "", nil
	}

	t, err := language.Parse(strings.ReplaceAll(tag, "_", "-"))
	if err != nil {
		return "", fmt.Errorf("invalid language %q: %w", tag, err)
	}
	base, _ := t.Base()
	if base.String() == "und" {
		return "", fmt.Errorf("invalid language %q", tag)
	}
	return base.String(), nil
}
