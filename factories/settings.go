package factories

import (
	"context"
	"fmt"
	"os"

	"marionette/core"
	"marionette/session"
	"marionette/socket"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
)

// SettingsConfig is the top-level config loaded from settings.json.
type SettingsConfig struct {
	// Client is the stream configuration handed to the session client.
	Client session.Config `json:"client"`
	// LogDir, when set, receives one JSONL log file per session.
	LogDir string `json:"log_dir,omitempty"`
	// LogURL, when set, is a websocket that receives session logs live.
	LogURL string `json:"log_url,omitempty"`
}

// DefaultSettingsConfig returns a SettingsConfig pre-filled with client defaults.
func DefaultSettingsConfig() SettingsConfig {
	return SettingsConfig{
		Client: session.DefaultConfig(),
	}
}

// SettingsConfigFromJSON parses a JSON blob into a SettingsConfig. Keys
// missing from the blob keep their defaults.
func SettingsConfigFromJSON(data []byte) (SettingsConfig, error) {
	cfg := DefaultSettingsConfig()
	if err := sonic.ConfigStd.Unmarshal(data, &cfg); err != nil {
		return DefaultSettingsConfig(), fmt.Errorf("settings: %w", err)
	}
	if err := cfg.Client.LandmarkConfig().Filter.Validate(); err != nil {
		return DefaultSettingsConfig(), fmt.Errorf("settings: landmarks: %w", err)
	}
	return cfg, nil
}

// SettingsConfigFromFile reads and parses a SettingsConfig from a JSON file.
func SettingsConfigFromFile(path string) (SettingsConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return DefaultSettingsConfig(), fmt.Errorf("settings: read %q: %w", path, err)
	}
	return SettingsConfigFromJSON(data)
}

// NewClient builds a session client from settings. When LogDir or LogURL is
// set the client also logs to a per-session file or socket; the returned func
// closes them and must be called once the client is closed.
func NewClient(settings SettingsConfig, logger *core.Logger) (*session.Client, func(), error) {
	if logger == nil {
		logger = core.GetLogger()
	}
	sessionID := uuid.New().String()

	var writers core.MultiLogWriter
	if settings.LogDir != "" {
		writer, err := core.NewSessionLogWriter(settings.LogDir, sessionID, settings.Client.Host)
		if err != nil {
			return nil, nil, fmt.Errorf("settings: %w", err)
		}
		writers = append(writers, writer)
	}
	if settings.LogURL != "" {
		sink := socket.NewClient(socket.ClientConfig{URL: settings.LogURL, Name: "log", Logger: logger})
		if err := sink.Connect(context.Background()); err != nil {
			writers.Close()
			return nil, nil, fmt.Errorf("settings: log sink: %w", err)
		}
		writers = append(writers, socket.NewLogWriter(sink, sessionID))
	}

	if len(writers) == 0 {
		return session.NewClient(settings.Client, logger, session.WithSessionID(sessionID)), func() {}, nil
	}
	sessionLogger := core.NewSessionLogger(logger, writers)
	client := session.NewClient(settings.Client, sessionLogger, session.WithSessionID(sessionID))
	return client, writers.Close, nil
}
