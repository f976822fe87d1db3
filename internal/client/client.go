package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"
)

const refreshPath = "/refresh-token"

// ErrSessionExpired means the refresh token was rejected and the user has
// to log in again.
var ErrSessionExpired = errors.New("session expired, please log in again")

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// Client talks to the marketplace API with cookie-based sessions. A request
// rejected with 401 triggers one refresh and one retry.
type Client struct {
	baseURL    string
	httpClient *http.Client

	mu        sync.Mutex
	onExpired []func()
}

func NewClient(baseURL string) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Jar:     jar,
			Timeout: 10 * time.Second,
		},
	}, nil
}

// doJSON sends in as JSON and decodes the response into out. Either may be
// nil.
func (c *Client) doJSON(ctx context.Context, method, path string, in, out interface{}) error {
	body, err := c.doAuthed(ctx, method, path, in)
	if err != nil {
		return err
	}
	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

// doAuthed performs the request and, on 401, refreshes the session and
// retries exactly once.
func (c *Client) doAuthed(ctx context.Context, method, path string, in interface{}) ([]byte, error) {
	status, body, err := c.send(ctx, method, path, in)
	if err != nil {
		return nil, err
	}
	if status == http.StatusUnauthorized {
		if err := c.refresh(ctx); err != nil {
			return nil, err
		}
		status, body, err = c.send(ctx, method, path, in)
		if err != nil {
			return nil, err
		}
	}
	if err := checkStatus(status, body); err != nil {
		return nil, err
	}
	return body, nil
}

// doPublic performs a request without the refresh retry.
func (c *Client) doPublic(ctx context.Context, method, path string, in, out interface{}) error {
	status, body, err := c.send(ctx, method, path, in)
	if err != nil {
		return err
	}
	if err := checkStatus(status, body); err != nil {
		return err
	}
	if out == nil || len(body) == 0 {
		return nil
	}
	return json.Unmarshal(body, out)
}

// OnSessionExpired registers fn to run whenever a refresh is rejected.
func (c *Client) OnSessionExpired(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onExpired = append(c.onExpired, fn)
}

func (c *Client) refresh(ctx context.Context) error {
	status, body, err := c.send(ctx, http.MethodPost, refreshPath, nil)
	if err != nil {
		return err
	}
	if status < 200 || status >= 300 {
		c.sessionExpired()
		return fmt.Errorf("%w: %v", ErrSessionExpired, checkStatus(status, body))
	}
	return nil
}

func (c *Client) sessionExpired() {
	c.mu.Lock()
	hooks := append([]func(){}, c.onExpired...)
	c.mu.Unlock()
	for _, fn := range hooks {
		fn()
	}
}

func (c *Client) send(ctx context.Context, method, path string, in interface{}) (int, []byte, error) {
	var reader io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return 0, nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, nil, err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, body, nil
}

func checkStatus(status int, body []byte) error {
	if status >= 200 && status < 300 {
		return nil
	}
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	msg := http.StatusText(status)
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Error != "" {
			msg = payload.Error
		} else if payload.Message != "" {
			msg = payload.Message
		}
	}
	return &APIError{StatusCode: status, Message: msg}
}

func withQuery(path string, q url.Values) string {
	if len(q) == 0 {
		return path
	}
	return path + "?" + q.Encode()
}
