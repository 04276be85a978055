// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// ClientError represents an error from the backend client.
type ClientError struct {
	Type       ErrorType
	StatusCode int // HTTP status for ErrTypeStatus, otherwise 0
	Message    string
	Cause      error
}

func (e *ClientError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *ClientError) Unwrap() error {
	return e.Cause
}

// Is matches sentinel errors by type.
func (e *ClientError) Is(target error) bool {
	t, ok := target.(*ClientError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// ErrorType categorizes client errors for handling.
type ErrorType int

const (
	ErrTypeUnknown ErrorType = iota
	ErrTypeConnection
	ErrTypeTimeout
	ErrTypeStatus
	ErrTypeInvalidResponse
	ErrTypeCancelled
)

// String returns a short name for the error type.
func (t ErrorType) String() string {
	switch t {
	case ErrTypeConnection:
		return "connection"
	case ErrTypeTimeout:
		return "timeout"
	case ErrTypeStatus:
		return "status"
	case ErrTypeInvalidResponse:
		return "invalid_response"
	case ErrTypeCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Sentinel errors for easy checking with errors.Is.
var (
	ErrUnreachable     = &ClientError{Type: ErrTypeConnection, Message: "backend is unreachable"}
	ErrTimeout         = &ClientError{Type: ErrTypeTimeout, Message: "request timed out"}
	ErrBadStatus       = &ClientError{Type: ErrTypeStatus, Message: "unexpected response status"}
	ErrInvalidResponse = &ClientError{Type: ErrTypeInvalidResponse, Message: "invalid response from backend"}
	ErrCancelled       = &ClientError{Type: ErrTypeCancelled, Message: "request cancelled"}
)

// maxErrorBody bounds how much of a failed response is read for its detail.
const maxErrorBody = 4 << 10

// =============================================================================
// CLIENT CONFIGURATION
// =============================================================================

// ClientConfig holds configuration options for the backend client.
type ClientConfig struct {
	// BaseURL is the backend API base URL (default: http://localhost:8000)
	BaseURL string

	// Timeout for non-streaming requests (default: 30s). Streams have no
	// overall timeout; they end when the server closes them or the
	// caller cancels the context.
	Timeout time.Duration

	// RequestsPerSecond limits outgoing requests (0 = unlimited).
	RequestsPerSecond float64

	// Burst is the limiter's bucket size (default: 1).
	Burst int

	// UserAgent is sent with every request.
	UserAgent string
}

// DefaultBaseURL matches the backend's default listen address.
const DefaultBaseURL = "http://localhost:8000"

// DefaultConfig returns the default client configuration.
func DefaultConfig() *ClientConfig {
	return &ClientConfig{
		BaseURL:   DefaultBaseURL,
		Timeout:   30 * time.Second,
		Burst:     1,
		UserAgent: "agentchat",
	}
}

// =============================================================================
// CLIENT
// =============================================================================

// Client talks to the agent chat backend. It is safe for concurrent use.
type Client struct {
	config       *ClientConfig
	httpClient   *http.Client
	streamClient *http.Client
	limiter      *rate.Limiter
}

// NewClient creates a client with default configuration.
func NewClient() *Client {
	return NewClientWithConfig(DefaultConfig())
}

// NewClientWithConfig creates a client, filling zero fields with defaults.
func NewClientWithConfig(config *ClientConfig) *Client {
	if config == nil {
		config = DefaultConfig()
	}

	defaults := DefaultConfig()
	if config.BaseURL == "" {
		config.BaseURL = defaults.BaseURL
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	if config.Timeout == 0 {
		config.Timeout = defaults.Timeout
	}
	if config.Burst <= 0 {
		config.Burst = defaults.Burst
	}
	if config.UserAgent == "" {
		config.UserAgent = defaults.UserAgent
	}

	limit := rate.Inf
	if config.RequestsPerSecond > 0 {
		limit = rate.Limit(config.RequestsPerSecond)
	}

	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		// No Timeout: it would cut long replies off mid-stream. The
		// request context owns the stream's lifetime.
		streamClient: &http.Client{},
		limiter:      rate.NewLimiter(limit, config.Burst),
	}
}

// Config returns the client's configuration.
func (c *Client) Config() *ClientConfig {
	return c.config
}

// =============================================================================
// CONVERSATIONS
// =============================================================================

// StartConversation asks the backend for a new conversation ID.
func (c *Client) StartConversation(ctx context.Context) (string, error) {
	req, err := c.newRequest(ctx, http.MethodPost, "/api/chat/start", nil)
	if err != nil {
		return "", err
	}

	resp, err := c.do(ctx, c.httpClient, req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return "", err
	}

	var start StartResponse
	if err := json.NewDecoder(resp.Body).Decode(&start); err != nil {
		return "", &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to decode start response", Cause: err}
	}
	if start.ConversationID == "" {
		return "", &ClientError{Type: ErrTypeInvalidResponse, Message: "start response has no conversation_id"}
	}
	return start.ConversationID, nil
}

// OpenStream sends a chat message and returns the streamed reply body.
// The caller must close the body. Cancelling ctx aborts the request and
// releases the connection.
func (c *Client) OpenStream(ctx context.Context, conversationID string, body StreamRequest) (io.ReadCloser, error) {
	if conversationID == "" {
		return nil, &ClientError{Type: ErrTypeUnknown, Message: "conversation id is required"}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, &ClientError{Type: ErrTypeUnknown, Message: "failed to marshal request", Cause: err}
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/api/chat/stream/"+url.PathEscape(conversationID), payload)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/plain")

	resp, err := c.do(ctx, c.streamClient, req)
	if err != nil {
		return nil, err
	}
	if err := checkStatus(resp); err != nil {
		resp.Body.Close()
		return nil, err
	}
	return resp.Body, nil
}

// Status reports the agent's availability.
func (c *Client) Status(ctx context.Context) (*AgentStatus, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/chat/status", nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.do(ctx, c.httpClient, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	var status AgentStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to decode status response", Cause: err}
	}
	return &status, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func (c *Client) newRequest(ctx context.Context, method, path string, body []byte) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+path, reader)
	if err != nil {
		return nil, &ClientError{Type: ErrTypeConnection, Message: "failed to create request", Cause: err}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("User-Agent", c.config.UserAgent)
	return req, nil
}

// do waits for the rate limiter and sends req, classifying failures.
func (c *Client) do(ctx context.Context, hc *http.Client, req *http.Request) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, classifyError(ctx, err)
	}
	resp, err := hc.Do(req)
	if err != nil {
		return nil, classifyError(ctx, err)
	}
	return resp, nil
}

func classifyError(ctx context.Context, err error) error {
	switch {
	case errors.Is(ctx.Err(), context.Canceled):
		return &ClientError{Type: ErrTypeCancelled, Message: "request cancelled", Cause: context.Canceled}
	case errors.Is(err, context.DeadlineExceeded), errors.Is(ctx.Err(), context.DeadlineExceeded):
		return &ClientError{Type: ErrTypeTimeout, Message: "request timed out", Cause: err}
	default:
		var urlErr *url.Error
		if errors.As(err, &urlErr) && urlErr.Timeout() {
			return &ClientError{Type: ErrTypeTimeout, Message: "request timed out", Cause: err}
		}
		return &ClientError{Type: ErrTypeConnection, Message: "backend is unreachable", Cause: err}
	}
}

// checkStatus turns a non-2xx response into a ClientError carrying the
// backend's error detail when it sent one.
func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	detail := strings.TrimSpace(string(raw))

	var eb errorBody
	if json.Unmarshal(raw, &eb) == nil {
		switch {
		case eb.Detail != "":
			detail = eb.Detail
		case eb.Error != "":
			detail = eb.Error
		}
	}

	msg := fmt.Sprintf("backend returned %s", resp.Status)
	if detail != "" {
		msg += ": " + detail
	}
	return &ClientError{Type: ErrTypeStatus, StatusCode: resp.StatusCode, Message: msg}
}

// IsConnection reports whether err means the backend could not be reached.
func IsConnection(err error) bool {
	return errors.Is(err, ErrUnreachable)
}

// IsCancelled reports whether err came from a cancelled request context.
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled) || errors.Is(err, context.Canceled)
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var ce *ClientError
	if errors.As(err, &ce) {
		return ce.StatusCode
	}
	return 0
}
