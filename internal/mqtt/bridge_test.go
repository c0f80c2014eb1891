//go:build !no_mqtt

package mqtt

import (
	"encoding/json"
	"testing"

	"sndctl/internal/events"
	"sndctl/internal/soco"
	"sndctl/internal/store"
)

func TestSpeakerStateMessage(t *testing.T) {
	sp := &store.Speaker{
		Name:   "Living Room",
		Volume: 35,
		Muted:  false,
		State:  "playing",
		Track:  "So What",
	}

	msg, ok := buildEventMessage("sndctl", events.Event{Type: events.EventSpeakerState, Data: sp})
	if !ok {
		t.Fatal("expected a message for speaker state")
	}
	if msg.Topic != "sndctl/living_room" {
		t.Errorf("topic = %q, want %q", msg.Topic, "sndctl/living_room")
	}
	if !msg.Retained {
		t.Error("speaker state should be retained")
	}

	var decoded store.Speaker
	if err := json.Unmarshal(msg.Payload, &decoded); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if decoded.Name != "Living Room" || decoded.Volume != 35 || decoded.Track != "So What" {
		t.Errorf("payload = %+v", decoded)
	}
}

func TestCommandResultMessage(t *testing.T) {
	res := &soco.CommandResult{
		Speaker:  "Kitchen",
		Action:   "volume",
		Args:     []string{"30"},
		ExitCode: 0,
		Result:   "",
	}

	msg, ok := buildEventMessage("sndctl", events.Event{Type: events.EventCommandResult, Data: res})
	if !ok {
		t.Fatal("expected a message for command result")
	}
	if msg.Topic != "sndctl/event/command" {
		t.Errorf("topic = %q", msg.Topic)
	}
	if msg.Retained {
		t.Error("command results should not be retained")
	}

	var decoded soco.CommandResult
	if err := json.Unmarshal(msg.Payload, &decoded); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if decoded.Speaker != "Kitchen" || decoded.Action != "volume" {
		t.Errorf("payload = %+v", decoded)
	}
}

func TestMacroMessageCarriesEventType(t *testing.T) {
	data := map[string]interface{}{
		"macro": "movie_night",
		"steps": 3,
	}

	msg, ok := buildEventMessage("sndctl", events.Event{Type: events.EventMacroFinished, Data: data})
	if !ok {
		t.Fatal("expected a message for macro finished")
	}
	if msg.Topic != "sndctl/event/macro" {
		t.Errorf("topic = %q", msg.Topic)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(msg.Payload, &decoded); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if decoded["event"] != events.EventMacroFinished {
		t.Errorf("event = %v, want %q", decoded["event"], events.EventMacroFinished)
	}
	if decoded["macro"] != "movie_night" {
		t.Errorf("macro = %v", decoded["macro"])
	}

	// The source map must not be mutated.
	if _, ok := data["event"]; ok {
		t.Error("source event data was mutated")
	}
}

func TestProxyStateMessage(t *testing.T) {
	status := &soco.ServerStatus{Running: true, PID: 4242, URL: "http://127.0.0.1:8000"}

	msg, ok := buildEventMessage("sndctl", events.Event{Type: events.EventProxyState, Data: status})
	if !ok {
		t.Fatal("expected a message for proxy state")
	}
	if msg.Topic != "sndctl/bridge/proxy" {
		t.Errorf("topic = %q", msg.Topic)
	}
	if !msg.Retained {
		t.Error("proxy state should be retained")
	}
}

func TestUnknownEventProducesNoMessage(t *testing.T) {
	if _, ok := buildEventMessage("sndctl", events.Event{Type: "something_else"}); ok {
		t.Error("unexpected message for unknown event type")
	}
	// Wrong payload type for a known event.
	if _, ok := buildEventMessage("sndctl", events.Event{Type: events.EventSpeakerState, Data: "nope"}); ok {
		t.Error("unexpected message for malformed speaker state")
	}
}

func TestSpeakerTopicName(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"Kitchen", "kitchen"},
		{"Living Room", "living_room"},
		{"Den 2", "den_2"},
	}
	for _, tt := range tests {
		if got := speakerTopicName(tt.name); got != tt.want {
			t.Errorf("speakerTopicName(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestSpeakerFromSetTopic(t *testing.T) {
	tests := []struct {
		topic  string
		want   string
		wantOK bool
	}{
		{"sndctl/kitchen/set", "kitchen", true},
		{"sndctl/living_room/set", "living room", true},
		{"sndctl/command", "", false},
		{"sndctl/macro/run", "", false},
		{"other/kitchen/set", "", false},
		{"sndctl//set", "", false},
		{"sndctl/a/b/set", "", false},
	}
	for _, tt := range tests {
		got, ok := speakerFromSetTopic("sndctl", tt.topic)
		if ok != tt.wantOK || got != tt.want {
			t.Errorf("speakerFromSetTopic(%q) = %q, %v; want %q, %v", tt.topic, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestParseSetCommand(t *testing.T) {
	tests := []struct {
		name       string
		payload    string
		wantVolume int
		hasVolume  bool
		wantMute   bool
		hasMute    bool
		wantState  string
	}{
		{name: "volume", payload: `{"volume":40}`, wantVolume: 40, hasVolume: true},
		{name: "mute", payload: `{"mute":true}`, wantMute: true, hasMute: true},
		{name: "state lowercase", payload: `{"state":"play"}`, wantState: "PLAY"},
		{name: "combined", payload: `{"volume":20,"state":"PAUSE"}`, wantVolume: 20, hasVolume: true, wantState: "PAUSE"},
		{name: "empty", payload: `{}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, err := parseSetCommand([]byte(tt.payload))
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if (cmd.Volume != nil) != tt.hasVolume {
				t.Fatalf("volume present = %v, want %v", cmd.Volume != nil, tt.hasVolume)
			}
			if tt.hasVolume && *cmd.Volume != tt.wantVolume {
				t.Errorf("volume = %d, want %d", *cmd.Volume, tt.wantVolume)
			}
			if (cmd.Mute != nil) != tt.hasMute {
				t.Fatalf("mute present = %v, want %v", cmd.Mute != nil, tt.hasMute)
			}
			if tt.hasMute && *cmd.Mute != tt.wantMute {
				t.Errorf("mute = %v, want %v", *cmd.Mute, tt.wantMute)
			}
			if cmd.State != tt.wantState {
				t.Errorf("state = %q, want %q", cmd.State, tt.wantState)
			}
		})
	}

	if _, err := parseSetCommand([]byte("not json")); err == nil {
		t.Error("expected error for invalid JSON")
	}
}

func TestMustJSON(t *testing.T) {
	result := mustJSON(map[string]string{"hello": "world"})
	var parsed map[string]string
	if err := json.Unmarshal(result, &parsed); err != nil {
		t.Fatalf("mustJSON output not valid JSON: %v", err)
	}
	if parsed["hello"] != "world" {
		t.Errorf("parsed value = %q", parsed["hello"])
	}
}
