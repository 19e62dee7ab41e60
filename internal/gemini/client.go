// Package gemini is a thin typed HTTP client for the Gemini REST API.
// It covers the four calls the generation service needs: synchronous
// content generation, long-running video submission, operation polling,
// and authenticated result download.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

// Static errors for Gemini client operations.
var (
	// ErrAPIKeyNotSet is returned when no API key is configured and the
	// GEMINI_API_KEY environment variable is not set.
	ErrAPIKeyNotSet = errors.New("gemini: GEMINI_API_KEY environment variable is not set")
	// ErrRateLimited is returned when the API responds with HTTP 429.
	ErrRateLimited = errors.New("gemini: rate limited (429)")
	// ErrServerError is returned when the API responds with a 5xx status.
	ErrServerError = errors.New("gemini: server error")
	// ErrRequestFailed is returned for any other non-2xx response.
	ErrRequestFailed = errors.New("gemini: request failed")
	// ErrOperationNameRequired is returned when polling without an operation name.
	ErrOperationNameRequired = errors.New("gemini: operation name is required")
	// ErrNoOperationReturned is returned when a video submission yields no
	// operation name.
	ErrNoOperationReturned = errors.New("gemini: submit failed: no operation name returned")
)

// Client defines the interface for interacting with the Gemini API.
type Client interface {
	// GenerateContent performs a synchronous model call (image edit, image
	// generation, speech synthesis).
	GenerateContent(ctx context.Context, model string, req GenerateContentRequest) (*GenerateContentResponse, error)

	// SubmitVideo starts a long-running video generation and returns the
	// operation name used to poll it.
	SubmitVideo(ctx context.Context, model string, req SubmitVideoRequest) (operationName string, err error)

	// PollOperation fetches the current state of a long-running operation.
	PollOperation(ctx context.Context, operationName string) (*Operation, error)

	// DownloadFile fetches the bytes behind a result URI with the API key
	// attached.
	DownloadFile(ctx context.Context, uri string) ([]byte, error)
}

// HTTPClient is the HTTP implementation of the Gemini Client interface.
type HTTPClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// ClientOption is a function that configures an HTTPClient.
type ClientOption func(*HTTPClient)

// WithAPIKey sets the API key for authentication.
func WithAPIKey(key string) ClientOption {
	return func(hc *HTTPClient) {
		hc.apiKey = key
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(hc *HTTPClient) {
		hc.httpClient = c
	}
}

// WithBaseURL sets a custom base URL for the Gemini API.
func WithBaseURL(u string) ClientOption {
	return func(hc *HTTPClient) {
		hc.baseURL = u
	}
}

// NewClient creates a new Gemini HTTP client.
// The API key can be set via the WithAPIKey option. If not provided,
// it is read from the environment variable GEMINI_API_KEY; a missing
// key is a hard error.
func NewClient(opts ...ClientOption) (*HTTPClient, error) {
	c := &HTTPClient{
		baseURL:    "https://generativelanguage.googleapis.com/v1beta",
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.apiKey == "" {
		c.apiKey = os.Getenv("GEMINI_API_KEY")
	}
	if c.apiKey == "" {
		return nil, ErrAPIKeyNotSet
	}

	return c, nil
}

// GenerateContent performs a synchronous model call.
func (c *HTTPClient) GenerateContent(ctx context.Context, model string, req GenerateContentRequest) (*GenerateContentResponse, error) {
	endpoint := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, url.PathEscape(model))

	var resp GenerateContentResponse
	if err := c.doJSON(ctx, http.MethodPost, endpoint, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SubmitVideo starts a long-running video generation job.
func (c *HTTPClient) SubmitVideo(ctx context.Context, model string, req SubmitVideoRequest) (string, error) {
	endpoint := fmt.Sprintf("%s/models/%s:predictLongRunning", c.baseURL, url.PathEscape(model))

	var resp submitVideoResponse
	if err := c.doJSON(ctx, http.MethodPost, endpoint, req, &resp); err != nil {
		return "", err
	}
	if resp.Name == "" {
		return "", ErrNoOperationReturned
	}
	return resp.Name, nil
}

// PollOperation fetches the current state of a long-running operation.
func (c *HTTPClient) PollOperation(ctx context.Context, operationName string) (*Operation, error) {
	if operationName == "" {
		return nil, ErrOperationNameRequired
	}

	endpoint := c.baseURL + "/" + strings.TrimLeft(operationName, "/")

	var op Operation
	if err := c.doJSON(ctx, http.MethodGet, endpoint, nil, &op); err != nil {
		return nil, err
	}
	return &op, nil
}

// DownloadFile fetches the bytes behind a result URI. Relative URIs are
// resolved against the API base URL.
func (c *HTTPClient) DownloadFile(ctx context.Context, uri string) ([]byte, error) {
	target := uri
	if !strings.HasPrefix(uri, "http://") && !strings.HasPrefix(uri, "https://") {
		target = c.baseURL + "/" + strings.TrimLeft(uri, "/")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("gemini: create download request: %w", err)
	}
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gemini: download file: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return nil, c.statusError(resp.StatusCode, body)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("gemini: read download body: %w", err)
	}
	return data, nil
}

// doJSON performs a single JSON request/response round trip.
func (c *HTTPClient) doJSON(ctx context.Context, method, endpoint string, body, result any) error {
	var bodyReader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("gemini: marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, bodyReader)
	if err != nil {
		return fmt.Errorf("gemini: create request: %w", err)
	}
	req.Header.Set("x-goog-api-key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("gemini: request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("gemini: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.statusError(resp.StatusCode, respBody)
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("gemini: unmarshal response: %w", err)
		}
	}
	return nil
}

// statusError maps a non-2xx response to a typed error carrying the
// provider's stated message when one is present.
func (c *HTTPClient) statusError(status int, body []byte) error {
	message := strings.TrimSpace(string(body))
	var apiErr apiErrorResponse
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
		message = apiErr.Error.Message
	}

	switch {
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", ErrRateLimited, message)
	case status >= 500:
		return fmt.Errorf("%w %d: %s", ErrServerError, status, message)
	default:
		return fmt.Errorf("%w with status %d: %s", ErrRequestFailed, status, message)
	}
}
