// Package client is a typed HTTP client for the delivery API, used by the
// CLI dashboards.
package client

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

	"github.com/NovaByteCorp/deliverypro/internal/dto"
	"github.com/NovaByteCorp/deliverypro/internal/lifecycle"
	"github.com/NovaByteCorp/deliverypro/internal/presentation/http/response"
)

var (
	ErrUnauthorized = errors.New("api rejected credentials")
	ErrNotFound     = errors.New("resource not found")
	ErrConflict     = errors.New("conflicting state")
)

// APIError is a failure envelope returned by the API.
type APIError struct {
	StatusCode int
	Kind       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api error %d", e.StatusCode)
	}
	return fmt.Sprintf("api error %d (%s): %s", e.StatusCode, e.Kind, e.Message)
}

// Is lets callers match on the sentinel errors above.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case ErrConflict:
		return e.StatusCode == http.StatusConflict
	}
	return false
}

// Client talks to the HTTP API with a bearer token.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// New creates a client. A non-positive timeout falls back to five seconds.
func New(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Board loads the driver dashboard.
func (c *Client) Board(ctx context.Context) (*dto.BoardResponse, error) {
	var out dto.BoardResponse
	if err := c.do(ctx, http.MethodGet, "/driver/board", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Order loads one order.
func (c *Client) Order(ctx context.Context, id string) (*dto.OrderResponse, error) {
	var out dto.OrderResponse
	if err := c.do(ctx, http.MethodGet, "/orders/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Act fires a lifecycle action on an order.
func (c *Client) Act(ctx context.Context, id string, action lifecycle.Action, reason string) (*dto.OrderResponse, error) {
	path, ok := dto.ActionPath(action)
	if !ok {
		return nil, fmt.Errorf("unsupported action %q", action)
	}
	var body any
	if action == lifecycle.ActionReject {
		body = dto.RejectRequest{Reason: reason}
	}
	var out dto.OrderResponse
	if err := c.do(ctx, http.MethodPost, "/orders/"+url.PathEscape(id)+"/"+path, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, dst any) error {
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		return fmt.Errorf("invalid api url: %w", err)
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var env response.Envelope[json.RawMessage]
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode >= http.StatusBadRequest || !env.Success {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if env.Error != nil {
			apiErr.Kind = env.Error.Kind
			apiErr.Message = env.Error.Message
		}
		return apiErr
	}
	if dst == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, dst); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	return nil
}
