package whisper

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestImpl(url string) *CloudflareImpl {
	return NewCloudflareImpl(CloudflareConfig{
		BaseURL:   url,
		AccountID: "acct",
		APIToken:  "secret",
		Model:     "@cf/openai/whisper",
	})
}

// TestCloudflareImpl tests the Workers AI HTTP client.
func TestCloudflareImpl(t *testing.T) {
	t.Run("successful recognition", func(t *testing.T) {
		var gotBody map[string]json.RawMessage
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/accounts/acct/ai/run/@cf/openai/whisper", r.URL.Path)
			assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

			w.Header().Set("Content-Type", "application/json")
			io.WriteString(w, `{
				"success": true,
				"errors": [],
				"result": {
					"text": "Hello world",
					"words": [
						{"word": "Hello", "start": 0.1, "end": 0.5},
						{"word": "world", "start": null, "end": 1.2}
					],
					"transcription_info": {"language": "en"}
				}
			}`)
		}))
		defer server.Close()

		result, err := newTestImpl(server.URL).Recognize(context.Background(), []byte{0, 7, 255}, &RecognizeOptions{Language: "en"})
		require.NoError(t, err)

		var audio []int
		require.NoError(t, json.Unmarshal(gotBody["audio"], &audio))
		assert.Equal(t, []int{0, 7, 255}, audio)
		assert.JSONEq(t, `"en"`, string(gotBody["language"]))

		assert.Equal(t, "Hello world", result.Text)
		assert.Equal(t, "en", result.Language)
		require.Len(t, result.Words, 2)
		assert.Equal(t, "Hello", result.Words[0].Text)
		assert.True(t, result.Words[0].Start.Valid)
		assert.False(t, result.Words[1].Start.Valid)
		assert.InDelta(t, 1.2, result.Words[1].End.Value, 1e-9)
	})

	t.Run("language omitted without hint", func(t *testing.T) {
		var gotBody map[string]json.RawMessage
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
			io.WriteString(w, `{"success": true, "result": {"text": "", "language": "vi"}}`)
		}))
		defer server.Close()

		result, err := newTestImpl(server.URL).Recognize(context.Background(), nil, nil)
		require.NoError(t, err)

		_, hasLang := gotBody["language"]
		assert.False(t, hasLang)
		assert.JSONEq(t, `[]`, string(gotBody["audio"]))
		assert.True(t, result.IsEmpty())
		assert.Equal(t, "vi", result.Language)
	})

	t.Run("server returns error status", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
			io.WriteString(w, `{"success": false}`)
		}))
		defer server.Close()

		_, err := newTestImpl(server.URL).Recognize(context.Background(), []byte{1}, nil)

		var statusErr *StatusError
		require.ErrorAs(t, err, &statusErr)
		assert.Equal(t, http.StatusTooManyRequests, statusErr.StatusCode)
	})

	t.Run("success flag false", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, `{"success": false, "errors": [{"code": 5006, "message": "audio too large"}]}`)
		}))
		defer server.Close()

		_, err := newTestImpl(server.URL).Recognize(context.Background(), []byte{1}, nil)

		require.ErrorIs(t, err, ErrRejected)
		assert.Contains(t, err.Error(), "audio too large")
	})

	t.Run("malformed response", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, `not json`)
		}))
		defer server.Close()

		_, err := newTestImpl(server.URL).Recognize(context.Background(), []byte{1}, nil)
		assert.Error(t, err)
	})

	t.Run("context deadline", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		}))
		defer server.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		_, err := newTestImpl(server.URL).Recognize(ctx, []byte{1}, nil)
		assert.True(t, errors.Is(err, context.DeadlineExceeded), "got %v", err)
	})

	t.Run("health check success", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/user/tokens/verify", r.URL.Path)
			assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
			io.WriteString(w, `{"success": true, "result": {"status": "active"}}`)
		}))
		defer server.Close()

		ok, err := newTestImpl(server.URL + "/").HealthCheck(context.Background())
		assert.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("health check invalid token", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer server.Close()

		ok, err := newTestImpl(server.URL).HealthCheck(context.Background())
		assert.Error(t, err)
		assert.False(t, ok)
	})

	t.Run("name", func(t *testing.T) {
		assert.Equal(t, "cloudflare-workers-ai", newTestImpl("").Name())
		assert.Equal(t, DefaultBaseURL, newTestImpl("").baseURL)
	})
}

func TestEncodeRunBody(t *testing.T) {
	body, err := encodeRunBody([]byte{1, 2, 3}, `x"y`)
	require.NoError(t, err)
	assert.Equal(t, `{"audio":[1,2,3],"language":"x\"y"}`, string(body))
	assert.True(t, json.Valid(body))
}

func TestNormalizeLanguage(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"", "", false},
		{"auto", "", false},
		{"en", "en", false},
		{"EN", "en", false},
		{"en-US", "en", false},
		{"zh_Hans_CN", "zh", false},
		{"vi", "vi", false},
		{"!!", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := NormalizeLanguage(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
