package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML configuration file at path and returns a validated
// [Config] with defaults applied. It is a convenience wrapper around
// [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults, and
// validates the result. Useful in tests where configs are constructed from
// string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	cfg.ApplyDefaults()
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Capture
	if cfg.Capture.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("capture.sample_rate %d must be positive", cfg.Capture.SampleRate))
	}
	if cfg.Capture.FrameSize <= 0 {
		errs = append(errs, fmt.Errorf("capture.frame_size %d must be positive", cfg.Capture.FrameSize))
	}

	// VAD
	if !cfg.VAD.Backend.IsValid() {
		errs = append(errs, fmt.Errorf("vad.backend %q is invalid; valid values: silero, energy", cfg.VAD.Backend))
	}
	if cfg.VAD.Backend == VADSilero && cfg.VAD.ModelPath == "" {
		errs = append(errs, errors.New("vad.model_path is required when vad.backend is silero"))
	}
	if cfg.VAD.PositiveSpeechThreshold < 0 || cfg.VAD.PositiveSpeechThreshold > 1 {
		errs = append(errs, fmt.Errorf("vad.positive_speech_threshold %.2f is out of range [0, 1]", cfg.VAD.PositiveSpeechThreshold))
	}
	if cfg.VAD.NegativeSpeechThreshold < 0 || cfg.VAD.NegativeSpeechThreshold > cfg.VAD.PositiveSpeechThreshold {
		errs = append(errs, fmt.Errorf("vad.negative_speech_threshold %.2f is out of range [0, positive_speech_threshold]", cfg.VAD.NegativeSpeechThreshold))
	}
	if cfg.VAD.RedemptionFrames < 0 {
		errs = append(errs, fmt.Errorf("vad.redemption_frames %d must be non-negative", cfg.VAD.RedemptionFrames))
	}
	if cfg.VAD.PreSpeechPadFrames < 0 {
		errs = append(errs, fmt.Errorf("vad.pre_speech_pad_frames %d must be non-negative", cfg.VAD.PreSpeechPadFrames))
	}
	if cfg.VAD.MinSpeechFrames < 0 {
		errs = append(errs, fmt.Errorf("vad.min_speech_frames %d must be non-negative", cfg.VAD.MinSpeechFrames))
	}

	// Classifier
	if cfg.Classifier.Enabled {
		if cfg.Classifier.ModelPath == "" {
			errs = append(errs, errors.New("classifier.model_path is required when classifier.enabled is true"))
		}
		if cfg.Classifier.ClassMapPath == "" {
			errs = append(errs, errors.New("classifier.class_map_path is required when classifier.enabled is true"))
		}
	}
	if cfg.Classifier.SpeechThreshold < 0 || cfg.Classifier.SpeechThreshold > 1 {
		errs = append(errs, fmt.Errorf("classifier.speech_threshold %.2f is out of range [0, 1]", cfg.Classifier.SpeechThreshold))
	}
	if cfg.Classifier.ClassifyThreshold < 0 || cfg.Classifier.ClassifyThreshold > 1 {
		errs = append(errs, fmt.Errorf("classifier.classify_threshold %.2f is out of range [0, 1]", cfg.Classifier.ClassifyThreshold))
	}

	// Transport
	if !cfg.Transport.Kind.IsValid() {
		errs = append(errs, fmt.Errorf("transport.kind %q is invalid; valid values: mqtt, websocket", cfg.Transport.Kind))
	}
	if cfg.Transport.Kind == TransportMQTT && cfg.Transport.BrokerURL == "" {
		errs = append(errs, errors.New("transport.broker_url is required when transport.kind is mqtt"))
	}
	if cfg.Transport.Kind == TransportWebSocket && cfg.Transport.URL == "" {
		errs = append(errs, errors.New("transport.url is required when transport.kind is websocket"))
	}
	if cfg.Transport.QoS < 0 || cfg.Transport.QoS > 2 {
		errs = append(errs, fmt.Errorf("transport.qos %d is out of range [0, 2]", cfg.Transport.QoS))
	}
	if cfg.Transport.Breaker.FailureThreshold < 1 {
		errs = append(errs, fmt.Errorf("transport.breaker.failure_threshold %d must be at least 1", cfg.Transport.Breaker.FailureThreshold))
	}
	if cfg.Transport.Breaker.ResetTimeout <= 0 {
		errs = append(errs, fmt.Errorf("transport.breaker.reset_timeout %v must be positive", cfg.Transport.Breaker.ResetTimeout))
	}

	// Detection
	if !cfg.Detection.Codec.IsValid() {
		errs = append(errs, fmt.Errorf("detection.codec %q is invalid; valid values: pcm, opus", cfg.Detection.Codec))
	}
	if cfg.Detection.Codec == CodecOpus {
		switch cfg.Detection.OpusFrameMs {
		case 5, 10, 20, 40, 60:
		default:
			errs = append(errs, fmt.Errorf("detection.opus_frame_ms %d is invalid; valid values: 5, 10, 20, 40, 60", cfg.Detection.OpusFrameMs))
		}
	}

	return errors.Join(errs...)
}
