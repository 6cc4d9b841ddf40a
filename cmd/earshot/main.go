// Command earshot is the speech detection daemon: it captures microphone
// audio, confirms speech with a VAD and an audio event classifier, and
// publishes confirmed utterances to the dialogue transport.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/earshot-dev/earshot/internal/app"
	"github.com/earshot-dev/earshot/internal/capture"
	"github.com/earshot-dev/earshot/internal/config"
	"github.com/earshot-dev/earshot/internal/observe"
	"github.com/earshot-dev/earshot/internal/transport"
	"github.com/earshot-dev/earshot/pkg/classify"
	"github.com/earshot-dev/earshot/pkg/classify/onnx"
	"github.com/earshot-dev/earshot/pkg/vad"
	"github.com/earshot-dev/earshot/pkg/vad/energy"
	"github.com/earshot-dev/earshot/pkg/vad/silero"
)

// version is stamped at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, reloadable, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "earshot: %v\n", err)
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	level := &slog.LevelVar{}
	level.Set(slogLevel(cfg.Server.LogLevel))
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	slog.Info("earshot starting",
		"version", version,
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Backend registry ──────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinBackends(ctx, reg)

	// ── Instantiate providers ─────────────────────────────────────────────────
	providers, err := buildProviders(cfg, reg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	// ── Application ───────────────────────────────────────────────────────────
	opts := []app.Option{app.WithLogLevelVar(level)}
	if reloadable {
		opts = append(opts, app.WithConfigReload(*configPath))
	}

	application, err := app.New(ctx, cfg, providers, opts...)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	slog.Info("listening for speech, press Ctrl+C to shut down",
		"session_id", application.SessionID())

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("shutdown signal received, stopping")
	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// loadConfig reads the config file at path. A missing file is not an error:
// the daemon runs on built-in defaults (energy VAD, local MQTT broker), which
// also disables hot reloading.
func loadConfig(path string) (cfg *config.Config, reloadable bool, err error) {
	cfg, err = config.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		cfg = config.Default()
		return cfg, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return cfg, true, nil
}

// ── Backend wiring ───────────────────────────────────────────────────────────

// registerBuiltinBackends wires all built-in backend factories into reg.
// The ONNX-backed backends (silero, onnx, and the PortAudio mic) require a
// cgo build; their factories surface a descriptive error otherwise.
func registerBuiltinBackends(ctx context.Context, reg *config.Registry) {
	reg.RegisterVAD("energy", func(config.VADConfig) (vad.Engine, error) {
		return &energy.Engine{}, nil
	})

	reg.RegisterVAD("silero", func(cfg config.VADConfig) (vad.Engine, error) {
		eng, err := silero.New(cfg.ModelPath, cfg.LibraryPath)
		if err != nil {
			return nil, err
		}
		return eng, nil
	})

	reg.RegisterClassifier("onnx", func(cfg config.ClassifierConfig) (classify.Classifier, error) {
		c, err := onnx.New(onnx.Config{
			ModelPath:    cfg.ModelPath,
			ClassMapPath: cfg.ClassMapPath,
			LibraryPath:  cfg.LibraryPath,
		})
		if err != nil {
			return nil, err
		}
		return c, nil
	})

	reg.RegisterCapture("mic", func(cfg config.CaptureConfig) (capture.Source, error) {
		mic, err := capture.NewMic(cfg.SampleRate, cfg.FrameSize, cfg.Device)
		if err != nil {
			return nil, err
		}
		return mic, nil
	})

	// Transport factories close over the signal context: the initial broker
	// connection should abort on Ctrl+C, not hang.
	reg.RegisterTransport("mqtt", func(cfg config.TransportConfig) (transport.Publisher, error) {
		clientID := cfg.ClientID
		if clientID == "" {
			clientID = "earshot-" + ulid.Make().String()
		}
		m, err := transport.NewMQTT(ctx, transport.MQTTConfig{
			BrokerURL: cfg.BrokerURL,
			ClientID:  clientID,
			WillTopic: transport.Topics{Prefix: cfg.TopicPrefix}.Presence(clientID),
		})
		if err != nil {
			return nil, err
		}
		return m, nil
	})

	reg.RegisterTransport("websocket", func(cfg config.TransportConfig) (transport.Publisher, error) {
		ws, err := transport.NewWebSocket(ctx, transport.WebSocketConfig{
			URL: cfg.URL,
		})
		if err != nil {
			return nil, err
		}
		return ws, nil
	})
}

// buildProviders instantiates the configured backends using the registry and
// returns them in an [app.Providers] struct for the application to consume.
// The microphone is not opened here: the app acquires it through OpenSource
// when the detector starts, so a failed broker connection never leaves the
// audio device claimed.
func buildProviders(cfg *config.Config, reg *config.Registry) (*app.Providers, error) {
	ps := &app.Providers{}

	engine, err := reg.CreateVAD(cfg.VAD)
	if err != nil {
		return nil, fmt.Errorf("create vad backend %q: %w", cfg.VAD.Backend, err)
	}
	ps.VAD = engine
	slog.Info("backend created", "kind", "vad", "name", cfg.VAD.Backend)

	if cfg.Classifier.Enabled {
		classifier, err := reg.CreateClassifier("onnx", cfg.Classifier)
		if err != nil {
			return nil, fmt.Errorf("create classifier: %w", err)
		}
		ps.Classifier = classifier
		slog.Info("backend created", "kind", "classifier", "name", "onnx")
	}

	publisher, err := reg.CreateTransport(cfg.Transport)
	if err != nil {
		return nil, fmt.Errorf("create transport %q: %w", cfg.Transport.Kind, err)
	}
	ps.Publisher = publisher
	slog.Info("backend created", "kind", "transport", "name", cfg.Transport.Kind)

	ps.OpenSource = func(context.Context) (capture.Source, error) {
		return reg.CreateCapture("mic", cfg.Capture)
	}

	return ps, nil
}

// ── Logger ───────────────────────────────────────────────────────────────────

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
