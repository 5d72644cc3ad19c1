// Package sdk is a Go client for the voice conversation API
package sdk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client wraps calls to the voice backend
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a client. The timeout covers a full voice turn.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
}

// APIError is a non-2xx response from the backend
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	RetryAfter time.Duration
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("backend returned %d %s: %s", e.StatusCode, e.Code, e.Message)
}

// IsCode reports whether err is an APIError with the given classification code
func IsCode(err error, code string) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}

// newRequest creates an authenticated request
func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	return req, nil
}

// doJSON is a helper to perform JSON requests to the backend
func (c *Client) doJSON(ctx context.Context, method, path string, in any, out any) error {
	// Create request body if input is provided
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewBuffer(b)
	}

	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(resp)
	}

	// If no output expected, return early
	if out == nil {
		return nil
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

// decodeError converts an error response into an *APIError
func decodeError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode, Code: http.StatusText(resp.StatusCode)}

	if seconds := resp.Header.Get("Retry-After"); seconds != "" {
		var n int
		if _, err := fmt.Sscanf(seconds, "%d", &n); err == nil && n > 0 {
			apiErr.RetryAfter = time.Duration(n) * time.Second
		}
	}

	b, _ := io.ReadAll(resp.Body)

	var body ErrorBody
	if err := json.Unmarshal(b, &body); err == nil && body.Error != "" {
		apiErr.Code = body.Error
		apiErr.Message = body.Message
		return apiErr
	}

	// Envelope responses from the session endpoints
	var envelope ApiResponse[any]
	if err := json.Unmarshal(b, &envelope); err == nil && envelope.Message != "" {
		apiErr.Message = envelope.Message
		return apiErr
	}

	apiErr.Message = strings.TrimSpace(string(b))
	return apiErr
}
