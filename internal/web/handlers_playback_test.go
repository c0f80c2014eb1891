package web

import (
	"encoding/json"
	"net/http"
	"net/url"
	"testing"
)

func lastCall(p *fakeProxy) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.calls) == 0 {
		return ""
	}
	return p.calls[len(p.calls)-1]
}

func TestShuffleRoundTrip(t *testing.T) {
	srv, _, proxy := setupTestServer(t, "")
	proxy.results = map[string]string{"shuffle": "on"}

	w := doJSON(t, srv, "GET", "/api/speakers/Kitchen/shuffle", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var got map[string]bool
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if !got["enabled"] {
		t.Error("expected shuffle enabled")
	}

	w = doJSON(t, srv, "POST", "/api/speakers/Kitchen/shuffle", map[string]bool{"enabled": false})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if call := lastCall(proxy); call != "Kitchen/shuffle/off" {
		t.Errorf("proxy call = %q, want %q", call, "Kitchen/shuffle/off")
	}
}

func TestSetShuffleRequiresEnabled(t *testing.T) {
	srv, _, _ := setupTestServer(t, "")
	w := doJSON(t, srv, "POST", "/api/speakers/Kitchen/shuffle", map[string]string{})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestSleepTimer(t *testing.T) {
	srv, _, proxy := setupTestServer(t, "")

	w := doJSON(t, srv, "POST", "/api/speakers/Den/sleep", map[string]string{"duration": "30m"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if call := lastCall(proxy); call != "Den/sleep_timer/30m" {
		t.Errorf("proxy call = %q", call)
	}

	w = doJSON(t, srv, "DELETE", "/api/speakers/Den/sleep", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if call := lastCall(proxy); call != "Den/sleep_timer/off" {
		t.Errorf("proxy call = %q", call)
	}
}

func TestSeek(t *testing.T) {
	srv, _, proxy := setupTestServer(t, "")

	w := doJSON(t, srv, "POST", "/api/speakers/Den/seek", map[string]string{"position": "00:01:30"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if call := lastCall(proxy); call != "Den/seek/00:01:30" {
		t.Errorf("proxy call = %q", call)
	}
}

func TestGroupVolume(t *testing.T) {
	srv, _, proxy := setupTestServer(t, "")
	proxy.results = map[string]string{"group_volume": "45"}

	w := doJSON(t, srv, "GET", "/api/speakers/Kitchen/group-volume", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var got map[string]int
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got["volume"] != 45 {
		t.Errorf("volume = %d, want 45", got["volume"])
	}

	level := 120
	w = doJSON(t, srv, "POST", "/api/speakers/Kitchen/group-volume", map[string]int{"level": level})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	// Clamped to 100.
	if call := lastCall(proxy); call != "Kitchen/group_volume/100" {
		t.Errorf("proxy call = %q", call)
	}
}

func TestTransfer(t *testing.T) {
	srv, _, proxy := setupTestServer(t, "")

	w := doJSON(t, srv, "POST", "/api/speakers/Kitchen/transfer", map[string]string{"to": "Den"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if call := lastCall(proxy); call != "Kitchen/transfer_playback/Den" {
		t.Errorf("proxy call = %q", call)
	}
}

func TestQueueLengthAndPosition(t *testing.T) {
	srv, _, proxy := setupTestServer(t, "")
	proxy.results = map[string]string{"queue_length": "12", "queue_position": "3"}

	w := doJSON(t, srv, "GET", "/api/speakers/Kitchen/queue/length", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var length map[string]int
	if err := json.Unmarshal(w.Body.Bytes(), &length); err != nil {
		t.Fatal(err)
	}
	if length["length"] != 12 {
		t.Errorf("length = %d, want 12", length["length"])
	}

	w = doJSON(t, srv, "GET", "/api/speakers/Kitchen/queue/position", nil)
	var pos map[string]int
	if err := json.Unmarshal(w.Body.Bytes(), &pos); err != nil {
		t.Fatal(err)
	}
	if pos["position"] != 3 {
		t.Errorf("position = %d, want 3", pos["position"])
	}
}

func TestSaveQueue(t *testing.T) {
	srv, _, proxy := setupTestServer(t, "")

	w := doJSON(t, srv, "POST", "/api/speakers/Kitchen/queue/save", map[string]string{"title": "Dinner"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if call := lastCall(proxy); call != "Kitchen/save_queue/Dinner" {
		t.Errorf("proxy call = %q", call)
	}
}

func TestPlayFavoriteByNumber(t *testing.T) {
	srv, _, proxy := setupTestServer(t, "")
	proxy.results = map[string]string{"list_favs": "1: Morning Jazz\n2: Radio Paradise\n"}

	w := doJSON(t, srv, "POST", "/api/speakers/Kitchen/favorites/play-number", map[string]int{"number": 2})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if call := lastCall(proxy); call != "Kitchen/play_fav/Radio%20Paradise" {
		t.Errorf("proxy call = %q", call)
	}
}

func TestPlayFavoriteByNumberUnknown(t *testing.T) {
	srv, _, proxy := setupTestServer(t, "")
	proxy.results = map[string]string{"list_favs": "1: Morning Jazz\n"}

	w := doJSON(t, srv, "POST", "/api/speakers/Kitchen/favorites/play-number", map[string]int{"number": 9})
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestPlaylistTrackListing(t *testing.T) {
	srv, _, proxy := setupTestServer(t, "")
	proxy.results = map[string]string{"list_playlist_tracks": "1: Sinnerman\n2: Feeling Good\n"}

	w := doJSON(t, srv, "GET", "/api/speakers/Den/playlists/Nina%20Hits/tracks", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var got struct {
		Tracks []struct {
			Number int    `json:"number"`
			Name   string `json:"name"`
		} `json:"tracks"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if len(got.Tracks) != 2 || got.Tracks[1].Name != "Feeling Good" {
		t.Errorf("tracks = %+v", got.Tracks)
	}
	if call := lastCall(proxy); call != "Den/list_playlist_tracks/Nina%20Hits" {
		t.Errorf("proxy call = %q", call)
	}
}

func TestAddShareLinkToQueue(t *testing.T) {
	srv, _, proxy := setupTestServer(t, "")

	link := "https://open.spotify.com/track/abc123"
	w := doJSON(t, srv, "POST", "/api/speakers/Kitchen/queue/sharelink", map[string]string{"url": link})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	want := "Kitchen/add_sharelink_to_queue/" + url.PathEscape(link)
	if call := lastCall(proxy); call != want {
		t.Errorf("proxy call = %q, want %q", call, want)
	}
}

func TestAddShareLinkRequiresURL(t *testing.T) {
	srv, _, _ := setupTestServer(t, "")

	w := doJSON(t, srv, "POST", "/api/speakers/Kitchen/queue/sharelink", map[string]string{})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestGlobalCommand(t *testing.T) {
	srv, _, proxy := setupTestServer(t, "")

	w := doJSON(t, srv, "POST", "/api/command", map[string]interface{}{
		"speaker": "Den",
		"action":  "volume",
		"args":    []string{"25"},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if call := lastCall(proxy); call != "Den/volume/25" {
		t.Errorf("proxy call = %q", call)
	}

	w = doJSON(t, srv, "POST", "/api/command", map[string]string{"action": "volume"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestExecuteMacroByName(t *testing.T) {
	srv, db, proxy := setupTestServer(t, "")
	seedMacro(t, db, "evening")

	w := doJSON(t, srv, "POST", "/api/macros/execute", map[string]interface{}{
		"name":      "evening",
		"arguments": []string{"35"},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}

	proxy.mu.Lock()
	calls := append([]string(nil), proxy.calls...)
	proxy.mu.Unlock()
	if len(calls) == 0 || calls[0] != "speaker1/volume/35" {
		t.Errorf("calls = %v", calls)
	}

	w = doJSON(t, srv, "POST", "/api/macros/execute", map[string]string{"name": "missing"})
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}
