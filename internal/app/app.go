// Package app wires all earshot subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run executes the detection pipeline plus the admin HTTP
// server, and Shutdown tears everything down in order.
//
// For testing, inject mock implementations via the Providers struct and
// functional options (WithMetrics, WithLogLevelVar, etc.).
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/earshot-dev/earshot/internal/capture"
	"github.com/earshot-dev/earshot/internal/config"
	"github.com/earshot-dev/earshot/internal/detect"
	"github.com/earshot-dev/earshot/internal/eventlog"
	"github.com/earshot-dev/earshot/internal/health"
	"github.com/earshot-dev/earshot/internal/observe"
	"github.com/earshot-dev/earshot/internal/resilience"
	"github.com/earshot-dev/earshot/internal/transport"
	"github.com/earshot-dev/earshot/pkg/audio"
	"github.com/earshot-dev/earshot/pkg/classify"
	"github.com/earshot-dev/earshot/pkg/vad"
)

// Providers holds one interface value per provider slot. Populated by
// main.go via the config registry; tests fill it with mocks.
type Providers struct {
	// VAD creates the voice activity detection sessions. Required.
	VAD vad.Engine

	// Classifier scores completed utterances. Nil (or classifier.enabled
	// false in the config) disables the gate's classification step.
	Classifier classify.Classifier

	// Publisher delivers stream frames, markers, and utterances. Required.
	// New wraps it in a circuit breaker; exhaustion drops payloads rather
	// than queueing them.
	Publisher transport.Publisher

	// Source delivers capture frames. Optional; consumed by the first
	// detector start.
	Source capture.Source

	// OpenSource acquires a fresh capture source. Used when the detector
	// restarts after Source has been consumed.
	OpenSource func(ctx context.Context) (capture.Source, error)

	// Sink receives local pipeline events. Nil means events are dropped.
	Sink detect.EventSink
}

// App owns all subsystem lifetimes and orchestrates the speech detection
// pipeline.
type App struct {
	cfg       *config.Config
	providers *Providers

	sessionID string
	metrics   *observe.Metrics
	logLevel  *slog.LevelVar
	watchPath string

	// Subsystems initialised in New and torn down in Shutdown.
	publisher *transport.Guarded
	encoder   *audio.OpusEncoder
	server    *http.Server
	watcher   *config.Watcher

	// mu guards the detector slot and runCtx, which hot reloads swap from
	// the watcher goroutine.
	mu       sync.Mutex
	detector *detect.Detector
	runCtx   context.Context

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithMetrics injects a metrics bundle instead of the package default.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithLogLevelVar hands the App the level var backing the process logger so
// hot config reloads can retune it.
func WithLogLevelVar(v *slog.LevelVar) Option {
	return func(a *App) { a.logLevel = v }
}

// WithConfigReload watches the config file at path and hot-applies the
// changes a running pipeline can absorb (log level, gate tuning).
func WithConfigReload(path string) Option {
	return func(a *App) { a.watchPath = path }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together. The providers struct
// comes from main.go (populated via the config registry); cfg must already be
// validated.
//
// New performs all initialisation synchronously: session identity, the
// breaker-guarded publisher, the classifier gate, the optional Opus stream
// encoder, and the detector. Nothing touches the audio device until Run.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if providers == nil || providers.VAD == nil {
		return nil, fmt.Errorf("app: a VAD engine is required")
	}
	if providers.Publisher == nil {
		return nil, fmt.Errorf("app: a transport publisher is required")
	}

	a := &App{
		cfg:       cfg,
		providers: providers,
		metrics:   observe.DefaultMetrics(),
	}
	for _, o := range opts {
		o(a)
	}

	// ── 1. Session identity ──────────────────────────────────────────────
	a.sessionID = cfg.Transport.SessionID
	if a.sessionID == "" {
		a.sessionID = ulid.Make().String()
		slog.Info("generated session id", "session_id", a.sessionID)
	}

	// ── 2. Guarded publisher ─────────────────────────────────────────────
	breaker := resilience.New(resilience.Config{
		Name:         "publish",
		MaxFailures:  cfg.Transport.Breaker.FailureThreshold,
		ResetTimeout: cfg.Transport.Breaker.ResetTimeout,
	})
	a.publisher = transport.Guard(providers.Publisher, breaker)
	a.closers = append(a.closers, a.publisher.Close)

	// ── 3. Stream encoder ────────────────────────────────────────────────
	if cfg.Detection.Streaming && cfg.Detection.Codec == config.CodecOpus {
		enc, err := audio.NewOpusEncoder(cfg.Capture.SampleRate, cfg.Detection.OpusFrameMs)
		if err != nil {
			return nil, fmt.Errorf("app: init opus encoder: %w", err)
		}
		a.encoder = enc
	}

	// ── 4. Event log ─────────────────────────────────────────────────────
	if providers.Sink == nil && cfg.Detection.EventLog != "" {
		sink, err := eventlog.NewFileSink(cfg.Detection.EventLog, a.sessionID)
		if err != nil {
			return nil, fmt.Errorf("app: init event log: %w", err)
		}
		providers.Sink = sink
		a.closers = append(a.closers, sink.Close)
	}

	// ── 5. Detector ──────────────────────────────────────────────────────
	det, err := a.buildDetector(cfg)
	if err != nil {
		return nil, fmt.Errorf("app: init detector: %w", err)
	}
	a.detector = det

	return a, nil
}

// buildDetector assembles a detector (including its classifier gate) from
// cfg and the provider slots. Called from New and again on hot gate reloads.
func (a *App) buildDetector(cfg *config.Config) (*detect.Detector, error) {
	classifier := a.providers.Classifier
	if !cfg.Classifier.Enabled {
		classifier = nil
	}
	gate := detect.NewSpeechGate(classifier, detect.GateConfig{
		SpeechThreshold:   cfg.Classifier.SpeechThreshold,
		ClassifyThreshold: cfg.Classifier.ClassifyThreshold,
		SpeechCategories:  cfg.Classifier.SpeechCategories,
		IgnoreCategories:  cfg.Classifier.IgnoreCategories,
		FailOpen:          !cfg.Classifier.FailClosed,
	})

	return detect.NewDetector(detect.DetectorConfig{
		SampleRate: cfg.Capture.SampleRate,
		VAD: vad.Config{
			SampleRate:              cfg.Capture.SampleRate,
			FrameSize:               cfg.Capture.FrameSize,
			PositiveSpeechThreshold: cfg.VAD.PositiveSpeechThreshold,
			NegativeSpeechThreshold: cfg.VAD.NegativeSpeechThreshold,
			RedemptionFrames:        cfg.VAD.RedemptionFrames,
			PreSpeechPadFrames:      cfg.VAD.PreSpeechPadFrames,
			MinSpeechFrames:         cfg.VAD.MinSpeechFrames,
		},
		Streaming: cfg.Detection.Streaming,
		QoS:       byte(cfg.Transport.QoS),
	}, detect.Deps{
		Engine:     a.providers.VAD,
		Gate:       gate,
		Source:     a.takeSource(),
		OpenSource: a.providers.OpenSource,
		Publisher:  a.publisher,
		Topics: transport.Topics{
			Prefix:    cfg.Transport.TopicPrefix,
			SessionID: a.sessionID,
		},
		Sink:    a.providers.Sink,
		Encoder: a.encoder,
		Metrics: a.metrics,
	})
}

// takeSource hands out the initial capture source exactly once; rebuilt
// detectors go through OpenSource instead.
func (a *App) takeSource() capture.Source {
	src := a.providers.Source
	a.providers.Source = nil
	return src
}

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run starts the detector and the admin HTTP server and blocks until ctx is
// cancelled or the server fails. When ctx is done, Run returns context.Canceled
// (or the underlying cause).
func (a *App) Run(ctx context.Context) error {
	a.mu.Lock()
	a.runCtx = ctx
	det := a.detector
	a.mu.Unlock()

	if err := det.Start(ctx); err != nil {
		return fmt.Errorf("app: start detector: %w", err)
	}

	// ── Config hot reload ────────────────────────────────────────────────
	if a.watchPath != "" {
		w, err := config.NewWatcher(a.watchPath, a.applyConfig)
		if err != nil {
			slog.Warn("config watcher unavailable", "path", a.watchPath, "err", err)
		} else {
			a.watcher = w
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	// ── Admin HTTP server: /metrics, /healthz, /readyz ───────────────────
	srv := &http.Server{
		Addr:              a.cfg.Server.ListenAddr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	a.server = srv

	g.Go(func() error {
		err := srv.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("app: admin server: %w", err)
	})

	g.Go(func() error {
		<-gctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutCtx)
		return gctx.Err()
	})

	slog.Info("app running",
		"session_id", a.sessionID,
		"listen_addr", a.cfg.Server.ListenAddr,
		"streaming", a.cfg.Detection.Streaming,
	)
	return g.Wait()
}

// Handler returns the admin HTTP handler: Prometheus metrics plus liveness
// and readiness probes, wrapped in the telemetry middleware.
func (a *App) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	health.New(
		health.Transport(a.publisher),
		health.Detector(a.detectorRunning),
		health.Classifier(a.classifierReady),
	).Register(mux)
	return observe.Middleware(a.metrics)(mux)
}

func (a *App) detectorRunning() bool {
	a.mu.Lock()
	det := a.detector
	a.mu.Unlock()
	return det != nil && det.Running()
}

func (a *App) classifierReady() bool {
	a.mu.Lock()
	det := a.detector
	a.mu.Unlock()
	return det != nil && det.Gate().Ready()
}

// SessionID returns the session identifier carried in every published topic.
func (a *App) SessionID() string { return a.sessionID }

// ─── Config reload ───────────────────────────────────────────────────────────

// applyConfig is the watcher callback. It hot-applies what a running
// pipeline can absorb and logs a warning for everything else.
func (a *App) applyConfig(old, new *config.Config) {
	diff := config.Diff(old, new)
	if !diff.Changed() {
		return
	}

	if diff.LogLevelChanged && a.logLevel != nil {
		a.logLevel.Set(slogLevel(diff.NewLogLevel))
		slog.Info("log level changed", "level", diff.NewLogLevel)
	}

	if diff.ClassifierChanged {
		if err := a.restartDetector(new); err != nil {
			slog.Error("failed to apply gate tuning", "err", err)
		} else {
			slog.Info("classifier gate retuned")
		}
	}

	if diff.RequiresRestart {
		slog.Warn("config change requires a restart to take effect")
	}

	a.mu.Lock()
	a.cfg = new
	a.mu.Unlock()
}

// restartDetector rebuilds the detector with fresh gate tuning and swaps it
// in. Any utterance in flight at the swap is dropped, matching the pipeline's
// drop-not-resend contract.
func (a *App) restartDetector(cfg *config.Config) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.runCtx == nil || a.runCtx.Err() != nil {
		return fmt.Errorf("pipeline is not running")
	}

	a.detector.Stop()
	det, err := a.buildDetector(cfg)
	if err != nil {
		return err
	}
	if err := det.Start(a.runCtx); err != nil {
		return err
	}
	a.detector = det
	return nil
}

// slogLevel maps a config log level onto the slog scale.
func slogLevel(l config.LogLevel) slog.Level {
	switch l {
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

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown stops all subsystems in order. It respects the context deadline;
// remaining closers are skipped (and logged) once the deadline passes.
// Calling Shutdown more than once is safe.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))

		if a.watcher != nil {
			a.watcher.Stop()
		}

		// Release the audio device before severing the transport.
		a.mu.Lock()
		det := a.detector
		a.mu.Unlock()
		if det != nil {
			det.Stop()
		}

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}
