//go:build no_mqtt

package main

import (
	"log/slog"

	"sndctl/internal/events"
	"sndctl/internal/macro"
	"sndctl/internal/speakers"
)

type mqttStopper struct{}

func (m *mqttStopper) Stop() {}

func initMQTT(_ *events.Bus, _ *speakers.Service, _ *macro.Executor, _ *Config, _ *slog.Logger) *mqttStopper {
	return &mqttStopper{}
}
