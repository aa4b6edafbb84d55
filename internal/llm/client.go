// Package llm is an HTTP client for the hosted generative-language API.
// It covers the two operations the coaching pipeline needs: text
// generation (optionally with inline image bytes) and text embedding.
package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"
)

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	defaultTimeout = 60 * time.Second
	maxRetries     = 3
	initialBackoff = 500 * time.Millisecond
)

// Client calls the generative-language API with an API key.
type Client struct {
	apiKey     string
	baseURL    string
	genModel   string
	embedModel string
	httpClient *http.Client
}

var _ Generator = (*Client)(nil)
var _ EmbedderClient = (*Client)(nil)

// NewClient creates a Client using the given API key and model names.
func NewClient(apiKey, genModel, embedModel string) *Client {
	return &Client{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		genModel:   genModel,
		embedModel: embedModel,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
}

// NewClientWithBaseURL creates a client pointing at a custom base URL (for testing).
func NewClientWithBaseURL(apiKey, genModel, embedModel, baseURL string) *Client {
	c := NewClient(apiKey, genModel, embedModel)
	c.baseURL = strings.TrimSuffix(baseURL, "/")
	return c
}

// Generate sends a prompt (and optional inline image) to the generation
// model and returns the first candidate's text. Retries on 429 and 5xx
// with exponential backoff.
func (c *Client) Generate(ctx context.Context, prompt string, image *ImageData) (string, error) {
	parts := []part{{Text: prompt}}
	if image != nil {
		parts = append(parts, part{InlineData: &inlineData{
			MIMEType: image.MIMEType,
			Data:     base64.StdEncoding.EncodeToString(image.Data),
		}})
	}
	req := generateRequest{Contents: []content{{Parts: parts}}}

	url := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, c.genModel)
	body, err := c.postWithRetry(ctx, url, req)
	if err != nil {
		return "", err
	}

	var resp generateResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("decoding generate response: %w", err)
	}
	if resp.Error != nil {
		return "", fmt.Errorf("model error %d: %s", resp.Error.Code, resp.Error.Message)
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("model returned no candidates")
	}

	var sb strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	return sb.String(), nil
}

// EmbedText returns the embedding vector for the given text.
func (c *Client) EmbedText(ctx context.Context, text string) ([]float32, error) {
	req := embedRequest{Content: content{Parts: []part{{Text: text}}}}

	url := fmt.Sprintf("%s/models/%s:embedContent", c.baseURL, c.embedModel)
	body, err := c.postWithRetry(ctx, url, req)
	if err != nil {
		return nil, err
	}

	var resp embedResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decoding embed response: %w", err)
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("model error %d: %s", resp.Error.Code, resp.Error.Message)
	}
	if len(resp.Embedding.Values) == 0 {
		return nil, fmt.Errorf("model returned empty embedding")
	}
	return resp.Embedding.Values, nil
}

// postWithRetry POSTs a JSON payload and returns the response body.
// 429 and 5xx responses are retried with exponential backoff; other
// failures are returned immediately.
func (c *Client) postWithRetry(ctx context.Context, url string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	var lastErr error
	for attempt := range maxRetries {
		respBody, err := c.post(ctx, url, body)
		if err == nil {
			return respBody, nil
		}

		if !isRetryable(err) {
			return nil, err
		}

		lastErr = err
		if attempt < maxRetries-1 {
			backoff := time.Duration(float64(initialBackoff) * math.Pow(2, float64(attempt)))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}
	}

	return nil, fmt.Errorf("giving up after %d retries: %w", maxRetries, lastErr)
}

// retryableError marks HTTP 429 and 5xx responses.
type retryableError struct {
	status int
}

func (e *retryableError) Error() string {
	return fmt.Sprintf("retryable upstream status %d", e.status)
}

func isRetryable(err error) bool {
	_, ok := err.(*retryableError)
	return ok
}

func (c *Client) post(ctx context.Context, url string, body []byte) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		io.Copy(io.Discard, resp.Body)
		return nil, &retryableError{status: resp.StatusCode}
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
	}
	return respBody, nil
}
