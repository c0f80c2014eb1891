package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrUnreachable is returned when the voice provider cannot be reached.
var ErrUnreachable = fmt.Errorf("voice provider unreachable")

const (
	defaultModel = "gpt-4o-realtime-preview"
	defaultVoice = "verse"
)

// Client mints ephemeral realtime session tokens against the OpenAI API so
// the frontend can open a voice connection without ever seeing the API key.
type Client struct {
	// BaseURL of the API; tests point it at a local server.
	BaseURL string

	apiKey string
	http   *http.Client
}

// NewClient creates a token-minting client. An empty key yields an
// unconfigured client; Mint then fails and Configured reports false.
func NewClient(apiKey string) *Client {
	return &Client{
		BaseURL: "https://api.openai.com",
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// Configured reports whether an API key is set.
func (c *Client) Configured() bool {
	return c != nil && c.apiKey != ""
}

// Session is the provider's response, relayed verbatim.
type Session struct {
	Status int
	Body   []byte
}

// Mint requests an ephemeral realtime session token. Empty model and voice
// fall back to defaults. The provider's status code and body are returned
// unchanged so the caller can relay them.
func (c *Client) Mint(ctx context.Context, model, voiceName string) (*Session, error) {
	if !c.Configured() {
		return nil, fmt.Errorf("no API key configured")
	}
	if model == "" {
		model = defaultModel
	}
	if voiceName == "" {
		voiceName = defaultVoice
	}

	payload, err := json.Marshal(map[string]string{
		"model": model,
		"voice": voiceName,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.BaseURL+"/v1/realtime/sessions", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	return &Session{Status: resp.StatusCode, Body: body}, nil
}
