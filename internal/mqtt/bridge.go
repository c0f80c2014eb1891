//go:build !no_mqtt

package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"sndctl/internal/events"
	"sndctl/internal/macro"
	"sndctl/internal/soco"
	"sndctl/internal/speakers"
	"sndctl/internal/store"
)

// Config holds MQTT bridge configuration.
type Config struct {
	Broker      string
	Username    string
	Password    string
	TopicPrefix string
}

// Bridge mirrors application events onto an MQTT broker and accepts
// speaker and macro commands over command topics.
type Bridge struct {
	client   pahomqtt.Client
	bus      *events.Bus
	speakers *speakers.Service
	executor *macro.Executor
	prefix   string
	logger   *slog.Logger
	unsub    func()
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewBridge creates and connects an MQTT bridge.
func NewBridge(bus *events.Bus, svc *speakers.Service, exec *macro.Executor, cfg Config, logger *slog.Logger) (*Bridge, error) {
	ctx, cancel := context.WithCancel(context.Background())
	b := &Bridge{
		bus:      bus,
		speakers: svc,
		executor: exec,
		prefix:   cfg.TopicPrefix,
		logger:   logger.With("component", "mqtt"),
		ctx:      ctx,
		cancel:   cancel,
	}

	opts := pahomqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID("sndctl").
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetWill(cfg.TopicPrefix+"/bridge/state", "offline", 1, true).
		SetOnConnectHandler(func(_ pahomqtt.Client) {
			b.logger.Info("MQTT connected")
			b.publishBridgeState("online")
			b.subscribeCommands()
		}).
		SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
			b.logger.Warn("MQTT connection lost", "err", err)
		})

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	client := pahomqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		cancel()
		return nil, fmt.Errorf("mqtt connect timeout")
	}
	if err := token.Error(); err != nil {
		cancel()
		return nil, fmt.Errorf("mqtt connect: %w", err)
	}

	b.client = client
	return b, nil
}

// Start subscribes to application events and begins MQTT publishing.
func (b *Bridge) Start() {
	b.unsub = b.bus.OnAll(b.handleEvent)
	b.logger.Info("MQTT bridge started", "prefix", b.prefix)
}

// Stop publishes offline state, unsubscribes, and disconnects.
func (b *Bridge) Stop() {
	b.cancel()
	if b.unsub != nil {
		b.unsub()
	}
	b.publishBridgeState("offline")
	b.client.Disconnect(1000)
	b.logger.Info("MQTT bridge stopped")
}

func (b *Bridge) handleEvent(event events.Event) {
	msg, ok := buildEventMessage(b.prefix, event)
	if !ok {
		return
	}
	b.publish(msg.Topic, msg.Payload, msg.Retained)
}

// message is a single outbound MQTT publication.
type message struct {
	Topic    string
	Payload  []byte
	Retained bool
}

// buildEventMessage maps a bus event to its MQTT topic and payload.
// Speaker snapshots and proxy state are retained; command and macro
// events are transient.
func buildEventMessage(prefix string, event events.Event) (message, bool) {
	switch event.Type {
	case events.EventSpeakerState:
		sp, ok := event.Data.(*store.Speaker)
		if !ok || sp.Name == "" {
			return message{}, false
		}
		return message{
			Topic:    prefix + "/" + speakerTopicName(sp.Name),
			Payload:  mustJSON(sp),
			Retained: true,
		}, true

	case events.EventCommandResult:
		res, ok := event.Data.(*soco.CommandResult)
		if !ok {
			return message{}, false
		}
		return message{
			Topic:   prefix + "/event/command",
			Payload: mustJSON(res),
		}, true

	case events.EventMacroStarted, events.EventMacroStep, events.EventMacroFinished:
		data, ok := event.Data.(map[string]interface{})
		if !ok {
			return message{}, false
		}
		payload := make(map[string]interface{}, len(data)+1)
		for k, v := range data {
			payload[k] = v
		}
		payload["event"] = event.Type
		return message{
			Topic:   prefix + "/event/macro",
			Payload: mustJSON(payload),
		}, true

	case events.EventProxyState:
		return message{
			Topic:    prefix + "/bridge/proxy",
			Payload:  mustJSON(event.Data),
			Retained: true,
		}, true
	}
	return message{}, false
}

func (b *Bridge) subscribeCommands() {
	b.client.Subscribe(b.prefix+"/command", 1, func(_ pahomqtt.Client, msg pahomqtt.Message) {
		b.handleCommand(msg.Payload())
	})
	b.client.Subscribe(b.prefix+"/macro/run", 1, func(_ pahomqtt.Client, msg pahomqtt.Message) {
		b.handleMacroRun(msg.Payload())
	})
	b.client.Subscribe(b.prefix+"/+/set", 1, func(_ pahomqtt.Client, msg pahomqtt.Message) {
		b.handleSet(msg.Topic(), msg.Payload())
	})
}

// handleCommand runs a raw speaker command published as
// {"speaker":"Kitchen","action":"volume","args":["30"]}.
func (b *Bridge) handleCommand(payload []byte) {
	var cmd struct {
		Speaker string   `json:"speaker"`
		Action  string   `json:"action"`
		Args    []string `json:"args"`
	}
	if err := json.Unmarshal(payload, &cmd); err != nil {
		b.logger.Warn("invalid command JSON", "err", err)
		return
	}
	if cmd.Speaker == "" || cmd.Action == "" {
		b.logger.Warn("command missing speaker or action")
		return
	}

	ctx, cancel := context.WithTimeout(b.ctx, 10*time.Second)
	defer cancel()
	if _, err := b.speakers.Invoke(ctx, cmd.Speaker, cmd.Action, cmd.Args...); err != nil {
		b.logger.Warn("MQTT command failed", "speaker", cmd.Speaker, "action", cmd.Action, "err", err)
	}
}

// handleMacroRun executes a stored macro published as
// {"name":"movie_night","args":["Den"]}.
func (b *Bridge) handleMacroRun(payload []byte) {
	var req struct {
		Name string   `json:"name"`
		Args []string `json:"args"`
	}
	if err := json.Unmarshal(payload, &req); err != nil {
		b.logger.Warn("invalid macro run JSON", "err", err)
		return
	}
	if req.Name == "" {
		b.logger.Warn("macro run missing name")
		return
	}

	ctx, cancel := context.WithTimeout(b.ctx, 2*time.Minute)
	defer cancel()
	if _, err := b.executor.Execute(ctx, req.Name, req.Args); err != nil {
		b.logger.Warn("MQTT macro run failed", "macro", req.Name, "err", err)
	}
}

func (b *Bridge) handleSet(topic string, payload []byte) {
	speaker, ok := speakerFromSetTopic(b.prefix, topic)
	if !ok {
		return
	}
	cmd, err := parseSetCommand(payload)
	if err != nil {
		b.logger.Warn("invalid set JSON", "topic", topic, "err", err)
		return
	}

	ctx, cancel := context.WithTimeout(b.ctx, 10*time.Second)
	defer cancel()

	if cmd.Volume != nil {
		if err := b.speakers.SetVolume(ctx, speaker, *cmd.Volume); err != nil {
			b.logger.Warn("set volume failed", "speaker", speaker, "err", err)
		}
	}
	if cmd.Mute != nil {
		if err := b.speakers.SetMute(ctx, speaker, *cmd.Mute); err != nil {
			b.logger.Warn("set mute failed", "speaker", speaker, "err", err)
		}
	}

	switch cmd.State {
	case "":
	case "PLAY":
		if _, err := b.speakers.Invoke(ctx, speaker, "play"); err != nil {
			b.logger.Warn("play failed", "speaker", speaker, "err", err)
		}
	case "PAUSE":
		if _, err := b.speakers.Invoke(ctx, speaker, "pause"); err != nil {
			b.logger.Warn("pause failed", "speaker", speaker, "err", err)
		}
	case "TOGGLE":
		if _, err := b.speakers.PlayPause(ctx, speaker); err != nil {
			b.logger.Warn("play/pause failed", "speaker", speaker, "err", err)
		}
	case "NEXT":
		if err := b.speakers.Next(ctx, speaker); err != nil {
			b.logger.Warn("next failed", "speaker", speaker, "err", err)
		}
	case "PREVIOUS":
		if err := b.speakers.Previous(ctx, speaker); err != nil {
			b.logger.Warn("previous failed", "speaker", speaker, "err", err)
		}
	default:
		b.logger.Warn("unknown state command", "speaker", speaker, "state", cmd.State)
	}
}

// setCommand is the decoded payload of a <prefix>/<speaker>/set message.
type setCommand struct {
	Volume *int
	Mute   *bool
	State  string
}

func parseSetCommand(payload []byte) (setCommand, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return setCommand{}, err
	}

	var cmd setCommand
	if v, ok := toFloat64(raw["volume"]); ok {
		level := int(v)
		cmd.Volume = &level
	}
	if m, ok := raw["mute"].(bool); ok {
		cmd.Mute = &m
	}
	if s, ok := raw["state"].(string); ok {
		cmd.State = strings.ToUpper(s)
	}
	return cmd, nil
}

func (b *Bridge) publishBridgeState(state string) {
	b.publish(b.prefix+"/bridge/state", []byte(state), true)
}

func (b *Bridge) publish(topic string, payload []byte, retained bool) {
	token := b.client.Publish(topic, 1, retained, payload)
	go func() {
		if !token.WaitTimeout(5 * time.Second) {
			b.logger.Warn("MQTT publish timeout", "topic", topic)
		} else if err := token.Error(); err != nil {
			b.logger.Warn("MQTT publish error", "topic", topic, "err", err)
		}
	}()
}

// speakerTopicName derives the MQTT topic segment for a speaker name:
// lowercased, spaces replaced with underscores.
func speakerTopicName(name string) string {
	return strings.ReplaceAll(strings.ToLower(name), " ", "_")
}

// speakerFromSetTopic extracts the speaker name from <prefix>/<speaker>/set.
// Underscores are mapped back to spaces; the control proxy matches speaker
// names case-insensitively.
func speakerFromSetTopic(prefix, topic string) (string, bool) {
	rest, ok := strings.CutPrefix(topic, prefix+"/")
	if !ok {
		return "", false
	}
	name, ok := strings.CutSuffix(rest, "/set")
	if !ok || name == "" || strings.Contains(name, "/") {
		return "", false
	}
	return strings.ReplaceAll(name, "_", " "), true
}

func toFloat64(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func mustJSON(v interface{}) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		return []byte("{}")
	}
	return data
}
