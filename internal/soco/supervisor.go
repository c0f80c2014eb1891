package soco

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

// ErrStartTimeout is returned when the server process does not become
// reachable within the configured start window.
var ErrStartTimeout = errors.New("soco-cli server did not become reachable")

// SupervisorConfig configures the server process.
type SupervisorConfig struct {
	Executable   string        // soco-cli server binary
	Args         []string      // full argument list
	StartTimeout time.Duration // window for the health check to pass
	PollInterval time.Duration // health check interval during startup
}

// Supervisor owns the lifecycle of the soco-cli HTTP server process:
// Stopped -> Starting -> Running -> Stopped. One instance process-wide.
// Start and Stop are serialized by the mutex; concurrent callers get
// last-call-wins semantics on the shared status.
type Supervisor struct {
	cfg    SupervisorConfig
	client *Client
	logger *slog.Logger

	mu     sync.Mutex
	cmd    *exec.Cmd
	gen    uint64 // incremented per launch, guards the reaper
	status ServerStatus
}

// NewSupervisor creates a supervisor for the server the client points at.
func NewSupervisor(cfg SupervisorConfig, client *Client, logger *slog.Logger) *Supervisor {
	if cfg.StartTimeout <= 0 {
		cfg.StartTimeout = 15 * time.Second
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 250 * time.Millisecond
	}
	return &Supervisor{
		cfg:    cfg,
		client: client,
		logger: logger.With("component", "soco"),
		status: ServerStatus{URL: client.BaseURL()},
	}
}

// Start launches the server process and blocks until it answers HTTP or the
// start window elapses. Calling Start while Running is a no-op that returns
// the current status.
func (s *Supervisor) Start(ctx context.Context) (ServerStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status.Running {
		return s.status, nil
	}

	cmd := exec.Command(s.cfg.Executable, s.cfg.Args...)
	if err := cmd.Start(); err != nil {
		return s.status, fmt.Errorf("start %s: %w", s.cfg.Executable, err)
	}
	s.cmd = cmd
	s.gen++
	gen := s.gen
	s.logger.Info("soco-cli server starting", "pid", cmd.Process.Pid, "url", s.client.BaseURL())

	// Reap the process and mark the server stopped if it dies on its own.
	go func() {
		err := cmd.Wait()
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.gen != gen {
			return // a newer launch owns the status
		}
		s.cmd = nil
		s.status.Running = false
		s.status.PID = 0
		s.status.StartedAt = time.Time{}
		s.logger.Info("soco-cli server exited", "err", err)
	}()

	if err := s.waitReachable(ctx); err != nil {
		s.logger.Error("soco-cli server health check failed", "err", err)
		s.terminateLocked()
		return s.status, err
	}

	s.status = ServerStatus{
		Running:   true,
		PID:       cmd.Process.Pid,
		URL:       s.client.BaseURL(),
		StartedAt: time.Now(),
	}
	s.logger.Info("soco-cli server running", "pid", s.status.PID)
	return s.status, nil
}

// Stop terminates the server process. Calling Stop while Stopped is a no-op.
func (s *Supervisor) Stop() ServerStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.status.Running && s.cmd == nil {
		return s.status
	}
	s.terminateLocked()
	s.logger.Info("soco-cli server stopped")
	return s.status
}

// Status returns a point-in-time snapshot of the server state. It is not
// guaranteed consistent with a start or stop in flight.
func (s *Supervisor) Status() ServerStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// waitReachable polls the health endpoint until it answers or the start
// window elapses. Called with the mutex held; the poll budget is bounded,
// so status readers block at most for the start window.
func (s *Supervisor) waitReachable(ctx context.Context) error {
	deadline := time.Now().Add(s.cfg.StartTimeout)
	for {
		pingCtx, cancel := context.WithTimeout(ctx, s.cfg.PollInterval)
		err := s.client.Ping(pingCtx)
		cancel()
		if err == nil {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w after %s", ErrStartTimeout, s.cfg.StartTimeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.cfg.PollInterval):
		}
	}
}

// terminateLocked kills the current process and resets status.
// Must be called with the mutex held.
func (s *Supervisor) terminateLocked() {
	if s.cmd != nil && s.cmd.Process != nil {
		// Ask politely first; the reaper goroutine collects the exit.
		if err := s.cmd.Process.Signal(syscall.SIGTERM); err != nil {
			s.cmd.Process.Kill()
		} else {
			// Escalate if the process ignores SIGTERM.
			proc := s.cmd.Process
			go func() {
				time.Sleep(5 * time.Second)
				proc.Kill()
			}()
		}
	}
	s.gen++ // detach any pending reaper from the status fields
	s.cmd = nil
	s.status.Running = false
	s.status.PID = 0
	s.status.StartedAt = time.Time{}
}
