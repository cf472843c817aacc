package main

import (
	"context"
	"encoding/base64"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"marionette/core"
	"marionette/events/stream"
	"marionette/factories"
	"marionette/landmark"
	"marionette/session"
	"marionette/transports/webrtc"

	"github.com/joho/godotenv"
	pion "github.com/pion/webrtc/v4"
	"github.com/sirupsen/logrus"
)

func main() {
	var (
		settingsPath string
		code         string
		h264Path     string
		logDir       string
		logURL       string
	)
	flag.StringVar(&settingsPath, "settings", "", "path to settings.json (default $SETTINGS_PATH or ./settings.json)")
	flag.StringVar(&code, "code", "", "backend access code (default $MARIONETTE_CODE)")
	flag.StringVar(&h264Path, "h264", "", "Annex-B H.264 file to publish as the camera feed")
	flag.StringVar(&logDir, "log-dir", "", "directory for per-session JSONL logs")
	flag.StringVar(&logURL, "log-url", "", "websocket URL receiving session logs live")
	flag.Parse()

	if err := godotenv.Load(".env.local"); err != nil {
		core.GetLogger().With(map[string]any{"error": err}).Warn("No .env.local file found or failed to load")
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		setLogLevel(level)
	}

	settings := loadSettings(settingsPath)
	if host := os.Getenv("MARIONETTE_HOST"); host != "" {
		settings.Client.Host = host
	}
	if logDir != "" {
		settings.LogDir = logDir
	}
	if logURL != "" {
		settings.LogURL = logURL
	}
	if code == "" {
		code = os.Getenv("MARIONETTE_CODE")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, settings, code, h264Path); err != nil {
		core.GetLogger().With(map[string]any{"error": err}).Error("session failed")
		os.Exit(1)
	}
	core.GetLogger().Info("Shutting down...")
}

func run(ctx context.Context, settings factories.SettingsConfig, code, h264Path string) error {
	client, closeLog, err := factories.NewClient(settings, core.GetLogger())
	if err != nil {
		return err
	}
	defer closeLog()
	defer client.Close()

	logger := client.Logger()
	ctx = core.ContextWithSessionLogger(ctx, logger)

	client.On(stream.InferenceResult, logResults(logger, settings.Client.FrameRate))
	client.On(stream.Error, func(packet *core.EventPacket) {
		ev := packet.Event.(*stream.ErrorEvent)
		logger.With(map[string]any{"message": string(ev.Message), "error": ev.Err}).Warn("stream error")
	})
	client.On(stream.IceCandidate, func(packet *core.EventPacket) {
		logger.With(map[string]any{"state": packet.Event.(*stream.IceCandidateEvent).State}).Info("ice state")
	})

	connectCtx, connectCancel := context.WithTimeout(ctx, 30*time.Second)
	defer connectCancel()
	if err := client.Connect(connectCtx, code); err != nil {
		return err
	}
	track, err := client.LoadStream(session.Config{})
	if err != nil {
		return err
	}
	if err := client.Publish(connectCtx); err != nil {
		return err
	}
	defer client.Stop()

	if h264Path != "" {
		go streamFile(ctx, track, h264Path, client.Config().FrameRate)
	}

	select {
	case <-ctx.Done():
	case <-client.Done():
		logger.Warn("result socket closed")
	}
	return nil
}

// logResults logs landmark counts for roughly one frame per second.
func logResults(logger *core.Logger, frameRate int) core.Listener {
	if frameRate <= 0 {
		frameRate = 1
	}
	return func(packet *core.EventPacket) {
		ev := packet.Event.(*stream.InferenceResultEvent)
		if int(ev.Sequence)%frameRate != 0 {
			return
		}
		attrs := map[string]any{"sequence": ev.Sequence, "fps": ev.FPS}
		for _, part := range core.BodyParts() {
			if points, ok := ev.Landmarks.Get(part); ok {
				attrs[part.Name()] = len(points)
			}
		}
		if pose, ok := ev.Landmarks.Get(core.Pose); ok {
			visible := 0
			for _, p := range landmark.Mask(pose, landmark.PoseDisplayRanges...) {
				if p.Visibility != nil && *p.Visibility > 0.5 {
					visible++
				}
			}
			attrs["pose_visible"] = visible
		}
		logger.With(attrs).Info("landmarks")
	}
}

func streamFile(ctx context.Context, track *pion.TrackLocalStaticSample, path string, frameRate int) {
	logger := core.SessionLoggerFromContext(ctx)
	if logger == nil {
		logger = core.GetLogger()
	}

	f, err := os.Open(path)
	if err != nil {
		logger.With(map[string]any{"path": path, "error": err}).Error("failed to open video file")
		return
	}
	defer f.Close()

	if err := webrtc.StreamH264(ctx, track, f, frameRate); err != nil && ctx.Err() == nil {
		logger.With(map[string]any{"path": path, "error": err}).Error("video stream failed")
		return
	}
	logger.With(map[string]any{"path": path}).Info("video stream finished")
}

// loadSettings loads SettingsConfig from SETTINGS_JSON_B64, or from a file.
func loadSettings(path string) factories.SettingsConfig {
	if b64 := os.Getenv("SETTINGS_JSON_B64"); b64 != "" {
		data, err := base64.StdEncoding.DecodeString(b64)
		if err != nil {
			core.GetLogger().With(map[string]any{"error": err}).Error("failed to decode SETTINGS_JSON_B64")
			return factories.DefaultSettingsConfig()
		}
		settings, err := factories.SettingsConfigFromJSON(data)
		if err != nil {
			core.GetLogger().With(map[string]any{"error": err}).Error("failed to parse SETTINGS_JSON_B64")
			return factories.DefaultSettingsConfig()
		}
		core.GetLogger().Info("loaded settings from SETTINGS_JSON_B64")
		return settings
	}

	if path == "" {
		path = getEnv("SETTINGS_PATH", "./settings.json")
	}
	settings, err := factories.SettingsConfigFromFile(path)
	if err != nil {
		core.GetLogger().With(map[string]any{"path": path, "error": err}).Warn("failed to load settings, using defaults")
	}
	return settings
}

// setLogLevel swaps the global logger for one filtering below level.
func setLogLevel(level string) {
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		core.GetLogger().With(map[string]any{"level": level, "error": err}).Warn("invalid LOG_LEVEL, keeping default")
		return
	}
	base := logrus.New()
	base.SetOutput(os.Stdout)
	base.SetLevel(parsed)
	base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	core.SetLogger(*core.NewLogrusLogger(base))
}

// getEnv gets an environment variable with a default fallback
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
