// Package remote provides the HTTP client for the budget replica service.
// The replica is a profile-scoped document store: each collection is one
// JSON document fetched and replaced wholesale.
package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	requestTimeout = 10 * time.Second
	maxBodySize    = 4 << 20 // 4 MB
)

var (
	// ErrUnauthorized indicates the API token is missing, expired or invalid.
	ErrUnauthorized = errors.New("remote: unauthorized (check ENVEL_REMOTE_TOKEN)")
	// ErrNotFound indicates the collection has never been written remotely.
	ErrNotFound = errors.New("remote: collection not found")
	// ErrRateLimited indicates the replica rate limit was hit.
	ErrRateLimited = errors.New("remote: rate limited")
)

// Client talks to a budget replica endpoint.
type Client struct {
	baseURL string
	token   string
	profile string
	http    *http.Client
}

// NewClient creates a client for the given endpoint and profile.
// Returns nil if baseURL is empty, which callers treat as "no replica
// configured" — every remote operation is then skipped.
func NewClient(baseURL, token, profile string) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil
	}
	if profile == "" {
		profile = "default"
	}
	return &Client{
		baseURL: baseURL,
		token:   strings.TrimSpace(token),
		profile: profile,
		http:    &http.Client{},
	}
}

// Load fetches the remote document for a collection.
func (c *Client) Load(ctx context.Context, collection string) ([]byte, error) {
	return c.do(ctx, http.MethodGet, collection, nil)
}

// Save replaces the remote document for a collection.
func (c *Client) Save(ctx context.Context, collection string, body []byte) error {
	_, err := c.do(ctx, http.MethodPut, collection, body)
	return err
}

func (c *Client) do(ctx context.Context, method, collection string, body []byte) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	url := fmt.Sprintf("%s/v1/profiles/%s/%s", c.baseURL, c.profile, collection)

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("remote: creating request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("remote: request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, ErrUnauthorized
	case http.StatusNotFound:
		return nil, ErrNotFound
	case http.StatusTooManyRequests:
		return nil, ErrRateLimited
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("remote: unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("remote: reading response: %w", err)
	}
	return data, nil
}
