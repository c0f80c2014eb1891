package macro

import (
	"context"
	"fmt"
	"log/slog"

	"sndctl/internal/events"
	"sndctl/internal/soco"
	"sndctl/internal/store"
)

// CommandRunner dispatches a single speaker command. *soco.Client satisfies
// it; tests substitute a stub.
type CommandRunner interface {
	Invoke(ctx context.Context, speaker, action string, args ...string) (*soco.CommandResult, error)
}

// Execution is the outcome of one macro run: per-step results in definition
// order plus an overall success flag.
type Execution struct {
	Macro   string               `json:"macro"`
	Results []soco.CommandResult `json:"results"`
	Success bool                 `json:"success"`
}

// Executor resolves macro arguments and dispatches the steps sequentially
// through a CommandRunner. Steps never run in parallel; definition order is
// the observable order.
type Executor struct {
	store  store.Store
	runner CommandRunner
	bus    *events.Bus
	logger *slog.Logger

	// ContinueOnError keeps executing after a failing step, aggregating the
	// failure into the result list. This matches how macros of independent
	// speaker commands behave; set false to stop at the first failure.
	ContinueOnError bool
}

// NewExecutor creates a macro executor. bus may be nil.
func NewExecutor(st store.Store, runner CommandRunner, bus *events.Bus, logger *slog.Logger) *Executor {
	return &Executor{
		store:           st,
		runner:          runner,
		bus:             bus,
		logger:          logger.With("component", "macro"),
		ContinueOnError: true,
	}
}

// Execute looks up a macro, resolves its arguments, and runs every step.
// Lookup and argument errors return before any step runs; once dispatch
// starts, the run always returns an Execution. A step whose command fails
// (nonzero exit code) does not abort the run unless ContinueOnError is
// false; a step the proxy never answered is recorded with exit code -1.
func (e *Executor) Execute(ctx context.Context, name string, args []string) (*Execution, error) {
	m, err := e.store.GetMacro(name)
	if err != nil {
		return nil, err
	}

	resolved, err := ResolveArgs(m, args)
	if err != nil {
		return nil, fmt.Errorf("macro %q: %w", name, err)
	}

	steps := SplitSteps(m.Definition)
	exec := &Execution{
		Macro:   name,
		Results: make([]soco.CommandResult, 0, len(steps)),
		Success: true,
	}

	e.emit(events.EventMacroStarted, map[string]interface{}{
		"macro": name,
		"steps": len(steps),
	})
	e.logger.Info("macro started", "macro", name, "steps", len(steps), "args", args)

	for i, tmpl := range steps {
		step, err := ParseStep(Substitute(tmpl, resolved))
		if err != nil {
			return nil, fmt.Errorf("macro %q step %d: %w", name, i+1, err)
		}

		res, err := e.runner.Invoke(ctx, step.Speaker, step.Action, step.Args...)
		if err != nil {
			// The proxy never answered; record the failure in place of the
			// missing response so the result list stays one entry per step.
			res = &soco.CommandResult{
				Speaker:  step.Speaker,
				Action:   step.Action,
				Args:     step.Args,
				ExitCode: -1,
				ErrorMsg: err.Error(),
			}
		}

		exec.Results = append(exec.Results, *res)
		if !res.OK() {
			exec.Success = false
			e.logger.Warn("macro step failed", "macro", name, "step", i+1,
				"speaker", step.Speaker, "action", step.Action, "exit_code", res.ExitCode, "err", res.ErrorMsg)
		}

		e.emit(events.EventMacroStep, map[string]interface{}{
			"macro":  name,
			"step":   i + 1,
			"result": *res,
		})

		if !res.OK() && !e.ContinueOnError {
			break
		}
	}

	e.emit(events.EventMacroFinished, map[string]interface{}{
		"macro":   name,
		"success": exec.Success,
	})
	e.logger.Info("macro finished", "macro", name, "success", exec.Success)
	return exec, nil
}

func (e *Executor) emit(eventType string, data map[string]interface{}) {
	if e.bus != nil {
		e.bus.Emit(events.Event{Type: eventType, Data: data})
	}
}
