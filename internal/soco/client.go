package soco

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrUnreachable is returned when the soco-cli server is not running or does
// not respond within the client timeout.
var ErrUnreachable = errors.New("soco-cli server unreachable")

// Client issues speaker commands against the soco-cli HTTP API.
// Calls are single blocking round trips with a bounded timeout and no
// retries: a transient failure surfaces directly to the caller.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for the soco-cli server at baseURL.
// A zero timeout defaults to 30 seconds; speaker actions can be slow.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// BaseURL returns the server URL this client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Invoke sends one action for a named speaker and returns the server's
// response verbatim. Transport failures map to ErrUnreachable; a command
// that ran but failed comes back with a nonzero ExitCode, not an error.
func (c *Client) Invoke(ctx context.Context, speaker, action string, args ...string) (*CommandResult, error) {
	parts := make([]string, 0, len(args)+2)
	parts = append(parts, url.PathEscape(speaker), url.PathEscape(action))
	for _, a := range args {
		parts = append(parts, url.PathEscape(a))
	}

	var res CommandResult
	if err := c.getJSON(ctx, "/"+strings.Join(parts, "/"), &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Speakers returns the names of all speakers the server knows about.
func (c *Client) Speakers(ctx context.Context) ([]string, error) {
	var resp struct {
		Speakers []string `json:"speakers"`
	}
	if err := c.getJSON(ctx, "/speakers", &resp); err != nil {
		return nil, err
	}
	return resp.Speakers, nil
}

// Rediscover asks the server to rescan the network and returns the
// refreshed speaker list.
func (c *Client) Rediscover(ctx context.Context) ([]string, error) {
	var resp struct {
		Speakers []string `json:"speakers"`
	}
	if err := c.getJSON(ctx, "/rediscover", &resp); err != nil {
		return nil, err
	}
	return resp.Speakers, nil
}

// Ping checks whether the server answers HTTP at all. Any response counts;
// the root path serves a usage page.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	resp.Body.Close()
	return nil
}

func (c *Client) getJSON(ctx context.Context, path string, v interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("soco-cli server: unexpected status %d for %s", resp.StatusCode, path)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode soco-cli response: %w", err)
	}
	return nil
}
