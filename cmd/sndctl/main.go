package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"gopkg.in/yaml.v3"

	"sndctl/internal/events"
	"sndctl/internal/macro"
	"sndctl/internal/soco"
	"sndctl/internal/speakers"
	"sndctl/internal/store"
	"sndctl/internal/web"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

type Config struct {
	Web struct {
		Listen         string   `yaml:"listen"`
		APIKey         string   `yaml:"api_key"`
		AllowedOrigins []string `yaml:"allowed_origins"`
		Wwwroot        string   `yaml:"wwwroot"`
	} `yaml:"web"`
	Store struct {
		Path string `yaml:"path"`
	} `yaml:"store"`
	Soco struct {
		Port          int      `yaml:"port"`
		Executable    string   `yaml:"executable"`
		Args          []string `yaml:"args"`
		UseLocalCache bool     `yaml:"use_local_cache"`
		Timeout       string   `yaml:"timeout"`
		StartTimeout  string   `yaml:"start_timeout"`
	} `yaml:"soco"`
	MQTT struct {
		Enabled     bool   `yaml:"enabled"`
		Broker      string `yaml:"broker"`
		Username    string `yaml:"username"`
		Password    string `yaml:"password"`
		TopicPrefix string `yaml:"topic_prefix"`
	} `yaml:"mqtt"`
	Voice struct {
		OpenAIAPIKey string `yaml:"openai_api_key"`
	} `yaml:"voice"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	Exec struct {
		Allowlist []string `yaml:"allowlist"`
		Timeout   string   `yaml:"timeout"`
	} `yaml:"exec"`
	ScriptsDir string `yaml:"scripts_dir"`
}

func (c *Config) validate() error {
	if c.Soco.Port < 1 || c.Soco.Port > 65535 {
		return fmt.Errorf("soco.port must be 1-65535, got %d", c.Soco.Port)
	}
	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		return fmt.Errorf("mqtt.broker is required when mqtt is enabled")
	}
	return nil
}

func main() {
	// Temporary logger for config loading errors.
	bootLogger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cfgPath := "config.yaml"
	if len(os.Args) > 1 {
		cfgPath = os.Args[1]
	}

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		bootLogger.Error("load config", "err", err)
		os.Exit(1)
	}

	if err := cfg.validate(); err != nil {
		bootLogger.Error("invalid config", "err", err)
		os.Exit(1)
	}

	// Create configured logger.
	logger := newLogger(cfg)
	slog.SetDefault(logger)
	logger.Info("sndctl starting", "version", version)

	// Open store
	db, err := store.NewBoltStore(cfg.Store.Path)
	if err != nil {
		logger.Error("open store", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	// Proxy client and process supervisor
	proxyURL := "http://localhost:" + strconv.Itoa(cfg.Soco.Port)
	client := soco.NewClient(proxyURL, parseDuration(cfg.Soco.Timeout, 10*time.Second, logger, "soco.timeout"))
	supervisor := soco.NewSupervisor(soco.SupervisorConfig{
		Executable:   cfg.Soco.Executable,
		Args:         socoArgs(cfg),
		StartTimeout: parseDuration(cfg.Soco.StartTimeout, 15*time.Second, logger, "soco.start_timeout"),
	}, client, logger)

	bus := events.NewBus(logger)
	svc := speakers.NewService(client, db, bus, logger)
	executor := macro.NewExecutor(db, client, bus, logger)

	// Launch the proxy server if an executable is configured.
	if cfg.Soco.Executable != "" {
		startCtx, startCancel := context.WithTimeout(context.Background(), 30*time.Second)
		if _, err := supervisor.Start(startCtx); err != nil {
			logger.Warn("proxy server did not start, use POST /api/server/start to retry", "err", err)
		}
		startCancel()
	}

	// Start automation engine (no-op when built with no_automation tag).
	auto, autoWebOpts := initAutomation(bus, svc, executor, cfg, logger)

	// Start web server
	webOpts := []web.ServerOption{web.WithVersion(version)}
	if cfg.Web.APIKey != "" {
		webOpts = append(webOpts, web.WithAPIKey(cfg.Web.APIKey))
	}
	if len(cfg.Web.AllowedOrigins) > 0 {
		webOpts = append(webOpts, web.WithAllowedOrigins(cfg.Web.AllowedOrigins))
	}
	if cfg.Web.Wwwroot != "" {
		webOpts = append(webOpts, web.WithWwwroot(cfg.Web.Wwwroot))
	}
	if cfg.Voice.OpenAIAPIKey != "" {
		webOpts = append(webOpts, web.WithVoiceKey(cfg.Voice.OpenAIAPIKey))
	}
	webOpts = append(webOpts, autoWebOpts...)

	webServer := web.NewServer(db, svc, executor, supervisor, bus, logger, webOpts...)

	httpServer := &http.Server{
		Addr:         cfg.Web.Listen,
		Handler:      webServer,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("web server starting", "addr", cfg.Web.Listen)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", "err", err)
		}
	}()

	// Start MQTT bridge (no-op when built with no_mqtt tag).
	mqtt := initMQTT(bus, svc, executor, cfg, logger)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	signal.Stop(sigCh)
	logger.Info("shutting down", "signal", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	auto.Stop()
	mqtt.Stop()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown", "err", err)
	}
	webServer.Stop()
	supervisor.Stop()

	logger.Info("goodbye")
}

// socoArgs builds the argument list for the soco-cli HTTP API server.
// Explicit soco.args win; otherwise the port and cache flags are derived
// from the config.
func socoArgs(cfg *Config) []string {
	if len(cfg.Soco.Args) > 0 {
		return cfg.Soco.Args
	}
	args := []string{"--port", strconv.Itoa(cfg.Soco.Port)}
	if cfg.Soco.UseLocalCache {
		args = append(args, "--use-local-speaker-list")
	}
	return args
}

func loadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Web.Listen == "" {
		cfg.Web.Listen = "127.0.0.1:8000"
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = "sndctl.db"
	}
	if cfg.Soco.Port == 0 {
		cfg.Soco.Port = 8001
	}
	if cfg.ScriptsDir == "" {
		cfg.ScriptsDir = "scripts"
	}
	if cfg.MQTT.TopicPrefix == "" {
		cfg.MQTT.TopicPrefix = "sndctl"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
	return &cfg, nil
}

func parseDuration(value string, fallback time.Duration, logger *slog.Logger, field string) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		logger.Warn("invalid duration, using default", "field", field, "value", value, "default", fallback)
		return fallback
	}
	return d
}

func newLogger(cfg *Config) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch strings.ToLower(cfg.Log.Format) {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, opts)
	default:
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}
