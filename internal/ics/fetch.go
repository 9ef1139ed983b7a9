package ics

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	appLog "notioncal/internal/log"
)

// HTTPDoer is satisfied by *http.Client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Fetcher retrieves raw ICS payloads from http(s) URLs or local files.
// Nothing is cached between calls.
type Fetcher struct {
	client HTTPDoer
}

// NewFetcher creates a Fetcher using a plain http.Client with the given
// timeout. A nil client in NewFetcherWithClient falls back to the same.
func NewFetcher(timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Fetcher{client: &http.Client{Timeout: timeout}}
}

func NewFetcherWithClient(client HTTPDoer) *Fetcher {
	if client == nil {
		return NewFetcher(0)
	}
	return &Fetcher{client: client}
}

// Fetch returns the ICS text found at location. Remote locations must answer
// with a 2xx status; anything else is an error.
func (f *Fetcher) Fetch(ctx context.Context, location string) ([]byte, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return nil, errors.New("ics location is empty")
	}

	if !isRemote(location) {
		path := strings.TrimPrefix(location, "file://")
		appLog.Info("ics read start", "path", path)
		body, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read ics: %w", err)
		}
		return body, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, fmt.Errorf("build ics request: %w", err)
	}
	req.Header.Set("Accept", "text/calendar, */*;q=0.5")

	appLog.Info("ics fetch start", "url", redactURL(location))

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch ics: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetch ics %s: unexpected status %s", redactURL(location), resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read ics body: %w", err)
	}

	appLog.Info("ics fetch success", "url", redactURL(location), "status", resp.StatusCode, "bytes", len(body))
	return body, nil
}

func isRemote(location string) bool {
	lower := strings.ToLower(location)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// redactURL hides sensitive parts of an ICS URL for logging purposes.
// Private feed URLs usually embed a secret in the path or query:
//
//	https://example.com/path/to/private.ics?token=abcd
//	-> https://example.com/...(redacted)
func redactURL(u string) string {
	const redactedSuffix = "/...(redacted)"

	scheme := strings.Index(u, "://")
	if scheme == -1 {
		return "ics://...(redacted)"
	}
	hostStart := scheme + 3

	hostEnd := strings.IndexByte(u[hostStart:], '/')
	if hostEnd == -1 {
		hostEnd = len(u) - hostStart
	}
	// Drop any query string attached directly to the host.
	host := u[:hostStart+hostEnd]
	if q := strings.IndexByte(host, '?'); q != -1 {
		host = host[:q]
	}
	if at := strings.LastIndexByte(host, '@'); at != -1 {
		host = u[:hostStart] + host[at+1:]
	}
	return host + redactedSuffix
}
