package config_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/earshot-dev/earshot/internal/capture"
	"github.com/earshot-dev/earshot/internal/config"
	"github.com/earshot-dev/earshot/internal/transport"
	"github.com/earshot-dev/earshot/pkg/classify"
	classifymock "github.com/earshot-dev/earshot/pkg/classify/mock"
	"github.com/earshot-dev/earshot/pkg/vad"
	vadmock "github.com/earshot-dev/earshot/pkg/vad/mock"
)

func TestLoadFromReader_Valid(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  listen_addr: ":9090"
  log_level: debug
capture:
  sample_rate: 16000
  frame_size: 512
vad:
  backend: silero
  model_path: /models/silero_vad.onnx
  positive_speech_threshold: 0.6
classifier:
  enabled: true
  model_path: /models/yamnet.onnx
  class_map_path: /models/class_map.csv
transport:
  kind: mqtt
  broker_url: "mqtt://broker:1883"
  session_id: test-session
  qos: 1
detection:
  streaming: true
  codec: opus
  opus_frame_ms: 20
`
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.ListenAddr != ":9090" {
		t.Errorf("listen_addr: got %q", cfg.Server.ListenAddr)
	}
	if cfg.VAD.Backend != config.VADSilero {
		t.Errorf("vad backend: got %q", cfg.VAD.Backend)
	}
	if cfg.VAD.PositiveSpeechThreshold != 0.6 {
		t.Errorf("positive threshold: got %v", cfg.VAD.PositiveSpeechThreshold)
	}
	if !cfg.Detection.Streaming {
		t.Error("streaming: got false")
	}
	if cfg.Detection.Codec != config.CodecOpus {
		t.Errorf("codec: got %q", cfg.Detection.Codec)
	}
}

func TestLoadFromReader_EmptyGetsDefaults(t *testing.T) {
	t.Parallel()
	cfg, err := config.LoadFromReader(strings.NewReader(""))
	if err != nil {
		t.Fatalf("unexpected error for empty config: %v", err)
	}
	if cfg.Server.ListenAddr != ":8086" {
		t.Errorf("default listen_addr: got %q", cfg.Server.ListenAddr)
	}
	if cfg.Server.LogLevel != config.LogInfo {
		t.Errorf("default log_level: got %q", cfg.Server.LogLevel)
	}
	if cfg.Capture.SampleRate != 16000 {
		t.Errorf("default sample_rate: got %d", cfg.Capture.SampleRate)
	}
	if cfg.Capture.FrameSize != 480 {
		t.Errorf("default frame_size: got %d", cfg.Capture.FrameSize)
	}
	if cfg.VAD.Backend != config.VADEnergy {
		t.Errorf("default vad backend: got %q", cfg.VAD.Backend)
	}
	if cfg.Transport.Kind != config.TransportMQTT {
		t.Errorf("default transport kind: got %q", cfg.Transport.Kind)
	}
	if cfg.Transport.Breaker.FailureThreshold != 5 {
		t.Errorf("default breaker threshold: got %d", cfg.Transport.Breaker.FailureThreshold)
	}
	if cfg.Transport.Breaker.ResetTimeout != 30*time.Second {
		t.Errorf("default breaker reset: got %v", cfg.Transport.Breaker.ResetTimeout)
	}
	if cfg.Detection.Codec != config.CodecPCM {
		t.Errorf("default codec: got %q", cfg.Detection.Codec)
	}
}

func TestLoadFromReader_UnknownFieldRejected(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  listen_adress: ":8086"
`
	if _, err := config.LoadFromReader(strings.NewReader(yaml)); err == nil {
		t.Fatal("expected error for misspelled field, got nil")
	}
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  log_level: verbose
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for invalid log level, got nil")
	}
	if !strings.Contains(err.Error(), "log_level") {
		t.Errorf("error should mention log_level, got: %v", err)
	}
}

func TestValidate_SileroRequiresModelPath(t *testing.T) {
	t.Parallel()
	yaml := `
vad:
  backend: silero
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for silero without model_path, got nil")
	}
	if !strings.Contains(err.Error(), "model_path") {
		t.Errorf("error should mention model_path, got: %v", err)
	}
}

func TestValidate_ClassifierRequiresPaths(t *testing.T) {
	t.Parallel()
	yaml := `
classifier:
  enabled: true
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for enabled classifier without paths, got nil")
	}
	if !strings.Contains(err.Error(), "model_path") || !strings.Contains(err.Error(), "class_map_path") {
		t.Errorf("error should mention both paths, got: %v", err)
	}
}

func TestValidate_WebSocketRequiresURL(t *testing.T) {
	t.Parallel()
	yaml := `
transport:
  kind: websocket
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for websocket without url, got nil")
	}
	if !strings.Contains(err.Error(), "transport.url") {
		t.Errorf("error should mention transport.url, got: %v", err)
	}
}

func TestValidate_QoSOutOfRange(t *testing.T) {
	t.Parallel()
	yaml := `
transport:
  kind: mqtt
  broker_url: "mqtt://localhost:1883"
  qos: 3
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for qos 3, got nil")
	}
}

func TestValidate_InvalidOpusFrame(t *testing.T) {
	t.Parallel()
	yaml := `
detection:
  codec: opus
  opus_frame_ms: 25
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for 25ms opus frames, got nil")
	}
	if !strings.Contains(err.Error(), "opus_frame_ms") {
		t.Errorf("error should mention opus_frame_ms, got: %v", err)
	}
}

func TestValidate_NegativeAbovePositiveThreshold(t *testing.T) {
	t.Parallel()
	yaml := `
vad:
  backend: energy
  positive_speech_threshold: 0.4
  negative_speech_threshold: 0.6
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for negative > positive threshold, got nil")
	}
}

func TestValidate_MultipleErrors(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  log_level: loud
transport:
  kind: carrier-pigeon
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected joined errors, got nil")
	}
	if !strings.Contains(err.Error(), "log_level") || !strings.Contains(err.Error(), "transport.kind") {
		t.Errorf("error should list both failures, got: %v", err)
	}
}

// --- Registry ---

func TestRegistry_UnknownVAD(t *testing.T) {
	t.Parallel()
	r := config.NewRegistry()
	_, err := r.CreateVAD(config.VADConfig{Backend: config.VADSilero})
	if !errors.Is(err, config.ErrBackendNotRegistered) {
		t.Errorf("got %v, want ErrBackendNotRegistered", err)
	}
}

func TestRegistry_UnknownTransport(t *testing.T) {
	t.Parallel()
	r := config.NewRegistry()
	_, err := r.CreateTransport(config.TransportConfig{Kind: config.TransportMQTT})
	if !errors.Is(err, config.ErrBackendNotRegistered) {
		t.Errorf("got %v, want ErrBackendNotRegistered", err)
	}
}

func TestRegistry_RegisteredVAD(t *testing.T) {
	t.Parallel()
	r := config.NewRegistry()
	eng := &vadmock.Engine{}
	r.RegisterVAD("energy", func(config.VADConfig) (vad.Engine, error) {
		return eng, nil
	})

	got, err := r.CreateVAD(config.VADConfig{Backend: config.VADEnergy})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != eng {
		t.Error("factory result not returned")
	}
}

func TestRegistry_RegisteredClassifier(t *testing.T) {
	t.Parallel()
	r := config.NewRegistry()
	cl := &classifymock.Classifier{}
	r.RegisterClassifier("onnx", func(config.ClassifierConfig) (classify.Classifier, error) {
		return cl, nil
	})

	got, err := r.CreateClassifier("onnx", config.ClassifierConfig{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != cl {
		t.Error("factory result not returned")
	}
}

func TestRegistry_RegisteredCapture(t *testing.T) {
	t.Parallel()
	r := config.NewRegistry()
	src := &capture.Fake{}
	r.RegisterCapture("fake", func(config.CaptureConfig) (capture.Source, error) {
		return src, nil
	})

	got, err := r.CreateCapture("fake", config.CaptureConfig{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != src {
		t.Error("factory result not returned")
	}
}

func TestRegistry_FactoryError(t *testing.T) {
	t.Parallel()
	r := config.NewRegistry()
	boom := errors.New("no broker")
	r.RegisterTransport("mqtt", func(config.TransportConfig) (transport.Publisher, error) {
		return nil, boom
	})

	_, err := r.CreateTransport(config.TransportConfig{Kind: config.TransportMQTT})
	if !errors.Is(err, boom) {
		t.Errorf("got %v, want factory error", err)
	}
}
