//go:build no_automation

package main

import (
	"log/slog"

	"sndctl/internal/events"
	"sndctl/internal/macro"
	"sndctl/internal/speakers"
	"sndctl/internal/web"
)

type autoStopper struct{}

func (a *autoStopper) Stop() {}

func initAutomation(_ *events.Bus, _ *speakers.Service, _ *macro.Executor, _ *Config, _ *slog.Logger) (*autoStopper, []web.ServerOption) {
	return &autoStopper{}, nil
}
