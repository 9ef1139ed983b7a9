package notion

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

const (
	DefaultBaseURL = "https://api.notion.com"
	DefaultVersion = "2022-06-28"

	// maxErrorBody bounds how much of a failed response is kept for logging.
	maxErrorBody = 8 << 10
)

// HTTPDoer is satisfied by *http.Client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// APIError is returned for any non-2xx answer from the API.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("notion %s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

// ClientOptions configures a Client. Token is required; the rest default.
type ClientOptions struct {
	BaseURL string
	Token   string
	Version string
	Timeout time.Duration
	HTTP    HTTPDoer
}

// Client is a minimal Notion REST client. It is safe for sequential use and
// holds no mutable state.
type Client struct {
	baseURL string
	token   string
	version string
	http    HTTPDoer
}

func NewClient(opts ClientOptions) (*Client, error) {
	if opts.Token == "" {
		return nil, errors.New("notion: token is required")
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	version := opts.Version
	if version == "" {
		version = DefaultVersion
	}
	doer := opts.HTTP
	if doer == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		doer = &http.Client{Timeout: timeout}
	}
	return &Client{baseURL: baseURL, token: opts.Token, version: version, http: doer}, nil
}

// QueryDatabase runs POST /v1/databases/{id}/query. Only the first page of
// results is returned.
func (c *Client) QueryDatabase(ctx context.Context, databaseID string, q QueryRequest) (QueryResponse, error) {
	var out QueryResponse
	path := "/v1/databases/" + databaseID + "/query"
	if err := c.do(ctx, http.MethodPost, path, q, &out); err != nil {
		return QueryResponse{}, err
	}
	return out, nil
}

// CreatePage runs POST /v1/pages.
func (c *Client) CreatePage(ctx context.Context, req CreatePageRequest) (Page, error) {
	var out Page
	if err := c.do(ctx, http.MethodPost, "/v1/pages", req, &out); err != nil {
		return Page{}, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("notion: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("notion: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Notion-Version", c.version)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("notion %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &APIError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
		}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("notion %s %s: decode response: %w", method, path, err)
	}
	return nil
}
