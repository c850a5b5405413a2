package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/houzhh15/scribe/pkg/transcript"
)

// DefaultBaseURL is the Cloudflare API v4 root.
const DefaultBaseURL = "https://api.cloudflare.com/client/v4"

// maxErrorBody caps how much of a failed response is kept for the error message.
const maxErrorBody = 4096

// CloudflareConfig configures CloudflareImpl.
type CloudflareConfig struct {
	BaseURL   string // default DefaultBaseURL
	AccountID string
	APIToken  string
	Model     string // e.g. "@cf/openai/whisper"
	// HTTPClient overrides the default client. Per-chunk deadlines are applied
	// through the request context.
	HTTPClient *http.Client
}

// CloudflareImpl implements Recognizer against Cloudflare Workers AI.
//
// API endpoint: POST {BaseURL}/accounts/{account}/ai/run/{model}
// The request body carries the audio as a JSON array of byte values.
type CloudflareImpl struct {
	baseURL    string
	accountID  string
	apiToken   string
	model      string
	httpClient *http.Client
}

// NewCloudflareImpl creates a client for the given account and model.
func NewCloudflareImpl(cfg CloudflareConfig) *CloudflareImpl {
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Minute}
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	return &CloudflareImpl{
		baseURL:    base,
		accountID:  cfg.AccountID,
		apiToken:   cfg.APIToken,
		model:      cfg.Model,
		httpClient: client,
	}
}

type apiMessage struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type runResponse struct {
	Success bool         `json:"success"`
	Errors  []apiMessage `json:"errors"`
	Result  *struct {
		Text              string               `json:"text"`
		Words             []transcript.RawWord `json:"words"`
		Language          string               `json:"language"`
		TranscriptionInfo *struct {
			Language string `json:"language"`
		} `json:"transcription_info"`
	} `json:"result"`
}

// Recognize sends one chunk to the model and parses the word-timed result.
func (c *CloudflareImpl) Recognize(ctx context.Context, audio []byte, options *RecognizeOptions) (*transcript.ChunkResult, error) {
	lang := ""
	if options != nil {
		lang = options.Language
	}
	body, err := encodeRunBody(audio, lang)
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/accounts/%s/ai/run/%s", c.baseURL, c.accountID, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(bodyBytes)}
	}

	var parsed runResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to parse JSON response: %w", err)
	}
	if !parsed.Success {
		return nil, fmt.Errorf("%w: %s", ErrRejected, joinMessages(parsed.Errors))
	}

	result := &transcript.ChunkResult{}
	if parsed.Result == nil {
		return result, nil
	}
	result.Text = parsed.Result.Text
	result.Words = parsed.Result.Words
	result.Language = parsed.Result.Language
	if result.Language == "" && parsed.Result.TranscriptionInfo != nil {
		result.Language = parsed.Result.TranscriptionInfo.Language
	}
	return result, nil
}

// HealthCheck verifies the API token against {BaseURL}/user/tokens/verify.
func (c *CloudflareImpl) HealthCheck(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/user/tokens/verify", nil)
	if err != nil {
		return false, fmt.Errorf("failed to create health check request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("health check request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("health check failed: status %d", resp.StatusCode)
	}

	var parsed struct {
		Success bool         `json:"success"`
		Errors  []apiMessage `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return false, fmt.Errorf("failed to parse health check response: %w", err)
	}
	if !parsed.Success {
		return false, fmt.Errorf("token verification failed: %s", joinMessages(parsed.Errors))
	}
	return true, nil
}

// Name returns the identifier of this implementation.
func (c *CloudflareImpl) Name() string {
	return "cloudflare-workers-ai"
}

// encodeRunBody writes {"audio":[b0,b1,...],"language":"xx"}. encoding/json
// would emit []byte as base64, which the endpoint does not accept.
func encodeRunBody(audio []byte, lang string) ([]byte, error) {
	buf := make([]byte, 0, len(audio)*4+64)
	buf = append(buf, `{"audio":[`...)
	for i, b := range audio {
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = strconv.AppendUint(buf, uint64(b), 10)
	}
	buf = append(buf, ']')
	if lang != "" {
		quoted, err := json.Marshal(lang)
		if err != nil {
			return nil, fmt.Errorf("failed to encode language: %w", err)
		}
		buf = append(buf, `,"language":`...)
		buf = append(buf, quoted...)
	}
	buf = append(buf, '}')
	return buf, nil
}

func joinMessages(msgs []apiMessage) string {
	if len(msgs) == 0 {
		return "no error details"
	}
	parts := make([]string, 0, len(msgs))
	for _, m := range msgs {
		parts = append(parts, fmt.Sprintf("%d %s", m.Code, m.Message))
	}
	return strings.Join(parts, "; ")
}
