package soco

import "time"

// CommandResult is the outcome of a single speaker command, preserved
// verbatim from the soco-cli HTTP API response.
type CommandResult struct {
	Speaker  string   `json:"speaker"`
	Action   string   `json:"action"`
	Args     []string `json:"args"`
	ExitCode int      `json:"exit_code"`
	Result   string   `json:"result"`
	ErrorMsg string   `json:"error_msg"`
}

// OK reports whether the command succeeded.
func (r *CommandResult) OK() bool {
	return r.ExitCode == 0
}

// ServerStatus is a point-in-time snapshot of the soco-cli server process.
type ServerStatus struct {
	Running   bool      `json:"running"`
	PID       int       `json:"pid,omitempty"`
	URL       string    `json:"url"`
	StartedAt time.Time `json:"started_at,omitempty"`
}
