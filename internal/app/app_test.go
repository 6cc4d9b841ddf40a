package app_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/earshot-dev/earshot/internal/app"
	"github.com/earshot-dev/earshot/internal/capture"
	"github.com/earshot-dev/earshot/internal/config"
	transportmock "github.com/earshot-dev/earshot/internal/transport/mock"
	vadmock "github.com/earshot-dev/earshot/pkg/vad/mock"
)

// testConfig returns a validated config suitable for in-process tests.
func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Server.ListenAddr = "127.0.0.1:0"
	cfg.Transport.SessionID = "test-session"
	return cfg
}

func testProviders() (*app.Providers, *transportmock.Publisher, *capture.Fake) {
	pub := transportmock.NewPublisher()
	src := &capture.Fake{}
	return &app.Providers{
		VAD:       &vadmock.Engine{},
		Publisher: pub,
		Source:    src,
	}, pub, src
}

func TestNew_RequiresVADEngine(t *testing.T) {
	t.Parallel()

	pub := transportmock.NewPublisher()
	_, err := app.New(context.Background(), testConfig(), &app.Providers{Publisher: pub})
	if err == nil {
		t.Fatal("expected an error for a missing VAD engine")
	}
}

func TestNew_RequiresPublisher(t *testing.T) {
	t.Parallel()

	_, err := app.New(context.Background(), testConfig(), &app.Providers{VAD: &vadmock.Engine{}})
	if err == nil {
		t.Fatal("expected an error for a missing publisher")
	}
}

func TestNew_GeneratesSessionID(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Transport.SessionID = ""
	providers, _, _ := testProviders()

	a, err := app.New(context.Background(), cfg, providers)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if a.SessionID() == "" {
		t.Error("expected a generated session id")
	}
}

func TestNew_KeepsConfiguredSessionID(t *testing.T) {
	t.Parallel()

	providers, _, _ := testProviders()
	a, err := app.New(context.Background(), testConfig(), providers)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := a.SessionID(); got != "test-session" {
		t.Errorf("SessionID = %q, want %q", got, "test-session")
	}
}

func TestHandler_ServesProbesAndMetrics(t *testing.T) {
	t.Parallel()

	providers, _, _ := testProviders()
	a, err := app.New(context.Background(), testConfig(), providers)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	srv := httptest.NewServer(a.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("/healthz status = %d, want 200", resp.StatusCode)
	}

	// The detector has not started, so readiness must fail.
	resp, err = http.Get(srv.URL + "/readyz")
	if err != nil {
		t.Fatalf("GET /readyz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("/readyz status = %d, want 503", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("/metrics status = %d, want 200", resp.StatusCode)
	}
}

func TestRun_StartsDetectorAndStopsOnCancel(t *testing.T) {
	t.Parallel()

	providers, _, src := testProviders()
	a, err := app.New(context.Background(), testConfig(), providers)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	// Wait for the capture source to come up.
	deadline := time.After(2 * time.Second)
	for !src.Running() {
		select {
		case <-deadline:
			t.Fatal("capture source never started")
		case err := <-done:
			t.Fatalf("Run returned early: %v", err)
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestShutdown_IsIdempotent(t *testing.T) {
	t.Parallel()

	providers, pub, _ := testProviders()
	a, err := app.New(context.Background(), testConfig(), providers)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := a.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if err := a.Shutdown(context.Background()); err != nil {
		t.Fatalf("second Shutdown: %v", err)
	}
	if pub.CloseCallCount != 1 {
		t.Errorf("publisher Close calls = %d, want 1", pub.CloseCallCount)
	}
}
