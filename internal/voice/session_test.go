package voice

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestMintDefaultsAndAuth(t *testing.T) {
	var gotAuth string
	var gotBody map[string]string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&gotBody)
		if r.URL.Path != "/v1/realtime/sessions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"client_secret":{"value":"ephemeral"}}`))
	}))
	defer upstream.Close()

	c := NewClient("sk-test")
	c.BaseURL = upstream.URL

	session, err := c.Mint(context.Background(), "", "")
	if err != nil {
		t.Fatal(err)
	}
	if gotAuth != "Bearer sk-test" {
		t.Errorf("auth = %q", gotAuth)
	}
	if gotBody["model"] != "gpt-4o-realtime-preview" || gotBody["voice"] != "verse" {
		t.Errorf("body = %v", gotBody)
	}
	if session.Status != http.StatusCreated {
		t.Errorf("status = %d", session.Status)
	}
}

func TestMintUnconfigured(t *testing.T) {
	var c *Client
	if c.Configured() {
		t.Error("nil client should not be configured")
	}
	if NewClient("").Configured() {
		t.Error("empty key should not be configured")
	}
	if _, err := NewClient("").Mint(context.Background(), "", ""); err == nil {
		t.Error("expected error from unconfigured client")
	}
}

func TestMintUnreachable(t *testing.T) {
	c := NewClient("sk-test")
	c.BaseURL = "http://127.0.0.1:1"

	_, err := c.Mint(context.Background(), "m", "v")
	if !errors.Is(err, ErrUnreachable) {
		t.Errorf("err = %v, want ErrUnreachable", err)
	}
}
