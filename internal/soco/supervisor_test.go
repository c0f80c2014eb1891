package soco

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// newTestSupervisor supervises a long-running dummy process while the health
// check is answered by a local HTTP server standing in for soco-cli.
func newTestSupervisor(t *testing.T) (*Supervisor, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	t.Cleanup(srv.Close)

	sup := NewSupervisor(SupervisorConfig{
		Executable:   "sleep",
		Args:         []string{"60"},
		StartTimeout: 5 * time.Second,
		PollInterval: 50 * time.Millisecond,
	}, NewClient(srv.URL, time.Second), testLogger())
	t.Cleanup(func() { sup.Stop() })
	return sup, srv
}

func TestStartAndStatus(t *testing.T) {
	sup, srv := newTestSupervisor(t)

	st, err := sup.Start(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !st.Running {
		t.Error("running = false after start")
	}
	if st.PID == 0 {
		t.Error("pid not recorded")
	}
	if st.URL != srv.URL {
		t.Errorf("url = %q, want %q", st.URL, srv.URL)
	}
	if st.StartedAt.IsZero() {
		t.Error("started_at not recorded")
	}

	if got := sup.Status(); got.PID != st.PID {
		t.Errorf("status pid = %d, want %d", got.PID, st.PID)
	}
}

func TestStartTwiceIsNoOp(t *testing.T) {
	sup, _ := newTestSupervisor(t)

	first, err := sup.Start(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	second, err := sup.Start(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if first.PID != second.PID {
		t.Errorf("second start pid = %d, want %d", second.PID, first.PID)
	}
	if !second.StartedAt.Equal(first.StartedAt) {
		t.Errorf("second start changed started_at: %v -> %v", first.StartedAt, second.StartedAt)
	}
}

func TestStop(t *testing.T) {
	sup, _ := newTestSupervisor(t)

	if _, err := sup.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	st := sup.Stop()
	if st.Running {
		t.Error("running = true after stop")
	}
	if st.PID != 0 {
		t.Errorf("pid = %d after stop, want 0", st.PID)
	}

	// Stop while stopped is a no-op.
	st = sup.Stop()
	if st.Running {
		t.Error("running = true after second stop")
	}
}

func TestStartTimeout(t *testing.T) {
	// Health endpoint that no longer answers.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	sup := NewSupervisor(SupervisorConfig{
		Executable:   "sleep",
		Args:         []string{"60"},
		StartTimeout: 300 * time.Millisecond,
		PollInterval: 50 * time.Millisecond,
	}, NewClient(url, time.Second), testLogger())
	t.Cleanup(func() { sup.Stop() })

	_, err := sup.Start(context.Background())
	if !errors.Is(err, ErrStartTimeout) {
		t.Fatalf("err = %v, want ErrStartTimeout", err)
	}
	if st := sup.Status(); st.Running {
		t.Error("running = true after failed start")
	}
}

func TestStartBadExecutable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	t.Cleanup(srv.Close)

	sup := NewSupervisor(SupervisorConfig{
		Executable: "definitely-not-a-real-binary",
	}, NewClient(srv.URL, time.Second), testLogger())

	if _, err := sup.Start(context.Background()); err == nil {
		t.Fatal("expected error for missing executable")
	}
}
