// Package config provides the configuration schema, loader, and backend
// registry for the Earshot speech detection service.
package config

import "time"

// LogLevel controls log verbosity for the Earshot service.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// VADBackend selects the voice activity detection implementation.
type VADBackend string

const (
	// VADSilero uses the Silero VAD ONNX model.
	VADSilero VADBackend = "silero"

	// VADEnergy uses a pure-Go RMS energy detector. No model files
	// required; noticeably less accurate than silero.
	VADEnergy VADBackend = "energy"
)

// IsValid reports whether b is a recognised VAD backend.
func (b VADBackend) IsValid() bool {
	return b == VADSilero || b == VADEnergy
}

// TransportKind selects the pub/sub transport implementation.
type TransportKind string

const (
	TransportMQTT      TransportKind = "mqtt"
	TransportWebSocket TransportKind = "websocket"
)

// IsValid reports whether k is a recognised transport kind.
func (k TransportKind) IsValid() bool {
	return k == TransportMQTT || k == TransportWebSocket
}

// Codec selects the wire encoding for streamed audio frames.
type Codec string

const (
	// CodecPCM streams raw little-endian 16-bit PCM.
	CodecPCM Codec = "pcm"

	// CodecOpus streams Opus packets.
	CodecOpus Codec = "opus"
)

// IsValid reports whether c is a recognised codec.
func (c Codec) IsValid() bool {
	return c == CodecPCM || c == CodecOpus
}

// Config is the root configuration structure for Earshot.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Capture    CaptureConfig    `yaml:"capture"`
	VAD        VADConfig        `yaml:"vad"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Transport  TransportConfig  `yaml:"transport"`
	Detection  DetectionConfig  `yaml:"detection"`
}

// ServerConfig holds network and logging settings for the admin HTTP server
// (metrics and health endpoints).
type ServerConfig struct {
	// ListenAddr is the TCP address the admin server listens on
	// (e.g., ":8086").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// CaptureConfig holds microphone capture parameters. The VAD backends are
// trained for 16 kHz mono; changing SampleRate is only useful with the
// energy backend.
type CaptureConfig struct {
	// SampleRate is the capture rate in Hz.
	SampleRate int `yaml:"sample_rate"`

	// FrameSize is the number of samples per capture frame.
	FrameSize int `yaml:"frame_size"`

	// Device selects an input device by name substring. Empty picks the
	// system default.
	Device string `yaml:"device"`
}

// VADConfig selects and tunes the voice activity detection backend.
type VADConfig struct {
	// Backend selects the implementation.
	Backend VADBackend `yaml:"backend"`

	// ModelPath is the Silero ONNX model file. Ignored by the energy
	// backend.
	ModelPath string `yaml:"model_path"`

	// LibraryPath is the ONNX Runtime shared library. Empty uses the
	// runtime's default lookup.
	LibraryPath string `yaml:"library_path"`

	// PositiveSpeechThreshold is the per-frame probability above which a
	// frame counts towards starting a segment.
	PositiveSpeechThreshold float64 `yaml:"positive_speech_threshold"`

	// NegativeSpeechThreshold is the probability below which a frame
	// counts towards ending a segment.
	NegativeSpeechThreshold float64 `yaml:"negative_speech_threshold"`

	// RedemptionFrames is how many sub-threshold frames are tolerated
	// before an active segment ends.
	RedemptionFrames int `yaml:"redemption_frames"`

	// PreSpeechPadFrames is how many pre-onset frames are prepended to
	// each segment.
	PreSpeechPadFrames int `yaml:"pre_speech_pad_frames"`

	// MinSpeechFrames is the minimum segment length; shorter segments are
	// discarded as misfires.
	MinSpeechFrames int `yaml:"min_speech_frames"`
}

// ClassifierConfig tunes the per-utterance audio classifier gate.
type ClassifierConfig struct {
	// Enabled turns classification on. When false every VAD-confirmed
	// segment is treated as speech.
	Enabled bool `yaml:"enabled"`

	// ModelPath is the YAMNet-style ONNX classification model.
	ModelPath string `yaml:"model_path"`

	// ClassMapPath is the AudioSet class-map CSV matching the model.
	ClassMapPath string `yaml:"class_map_path"`

	// LibraryPath is the ONNX Runtime shared library. Empty uses the
	// runtime's default lookup.
	LibraryPath string `yaml:"library_path"`

	// SpeechThreshold is the score a speech category must exceed for a
	// segment to count as speech. Zero selects the default.
	SpeechThreshold float64 `yaml:"speech_threshold"`

	// ClassifyThreshold is the score a non-speech category must exceed to
	// be reported. Zero selects the default.
	ClassifyThreshold float64 `yaml:"classify_threshold"`

	// SpeechCategories overrides the human-speech label set.
	SpeechCategories []string `yaml:"speech_categories"`

	// IgnoreCategories overrides the skip-list.
	IgnoreCategories []string `yaml:"ignore_categories"`

	// FailClosed suppresses dispatch entirely when the classifier is
	// unavailable. The default (false) passes VAD-confirmed segments
	// through as speech.
	FailClosed bool `yaml:"fail_closed"`
}

// TransportConfig selects and tunes the pub/sub transport.
type TransportConfig struct {
	// Kind selects the implementation.
	Kind TransportKind `yaml:"kind"`

	// BrokerURL is the MQTT broker address (e.g., "mqtt://localhost:1883").
	// Used when Kind is "mqtt".
	BrokerURL string `yaml:"broker_url"`

	// URL is the WebSocket endpoint (e.g., "wss://backend.example.com/audio").
	// Used when Kind is "websocket".
	URL string `yaml:"url"`

	// ClientID is the MQTT client identifier. Empty derives one from the
	// session ID.
	ClientID string `yaml:"client_id"`

	// SessionID identifies this client in every published topic. Empty
	// generates a random one at startup.
	SessionID string `yaml:"session_id"`

	// TopicPrefix is the deployment namespace prepended to every topic.
	TopicPrefix string `yaml:"topic_prefix"`

	// QoS is the MQTT quality-of-service level (0-2). Ignored by the
	// websocket transport.
	QoS int `yaml:"qos"`

	// Breaker tunes the circuit breaker guarding publishes.
	Breaker BreakerConfig `yaml:"breaker"`
}

// BreakerConfig tunes the publish circuit breaker.
type BreakerConfig struct {
	// FailureThreshold is the consecutive-failure count that opens the
	// breaker.
	FailureThreshold int `yaml:"failure_threshold"`

	// ResetTimeout is how long the breaker stays open before probing.
	ResetTimeout time.Duration `yaml:"reset_timeout"`
}

// DetectionConfig tunes the detection pipeline itself.
type DetectionConfig struct {
	// Streaming enables per-frame forwarding of in-progress utterances.
	// When false, confirmed utterances are sent as one-shot WAV payloads.
	Streaming bool `yaml:"streaming"`

	// Codec selects the stream frame encoding. Ignored when Streaming is
	// false.
	Codec Codec `yaml:"codec"`

	// OpusFrameMs is the Opus frame duration in milliseconds (5, 10, 20,
	// 40 or 60). Ignored unless Codec is "opus".
	OpusFrameMs int `yaml:"opus_frame_ms"`

	// EventLog is a path to an append-only JSON-lines log of pipeline
	// events. Empty disables event logging.
	EventLog string `yaml:"event_log"`
}

// Default returns a Config populated with the built-in defaults: energy VAD
// at 16 kHz, classifier disabled, MQTT transport against a local broker,
// streaming PCM dispatch.
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills zero-valued fields with the built-in defaults. Called
// by the loader after decoding so a partial YAML file yields a runnable
// config.
func (c *Config) ApplyDefaults() {
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = ":8086"
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = LogInfo
	}
	if c.Capture.SampleRate == 0 {
		c.Capture.SampleRate = 16000
	}
	if c.Capture.FrameSize == 0 {
		c.Capture.FrameSize = 480
	}
	if c.VAD.Backend == "" {
		c.VAD.Backend = VADEnergy
	}
	if c.VAD.PositiveSpeechThreshold == 0 {
		c.VAD.PositiveSpeechThreshold = 0.5
	}
	if c.VAD.NegativeSpeechThreshold == 0 {
		c.VAD.NegativeSpeechThreshold = 0.35
	}
	if c.VAD.RedemptionFrames == 0 {
		c.VAD.RedemptionFrames = 8
	}
	if c.VAD.PreSpeechPadFrames == 0 {
		c.VAD.PreSpeechPadFrames = 3
	}
	if c.VAD.MinSpeechFrames == 0 {
		c.VAD.MinSpeechFrames = 4
	}
	if c.Transport.Kind == "" {
		c.Transport.Kind = TransportMQTT
	}
	if c.Transport.BrokerURL == "" && c.Transport.Kind == TransportMQTT {
		c.Transport.BrokerURL = "mqtt://localhost:1883"
	}
	if c.Transport.Breaker.FailureThreshold == 0 {
		c.Transport.Breaker.FailureThreshold = 5
	}
	if c.Transport.Breaker.ResetTimeout == 0 {
		c.Transport.Breaker.ResetTimeout = 30 * time.Second
	}
	if c.Detection.Codec == "" {
		c.Detection.Codec = CodecPCM
	}
	if c.Detection.OpusFrameMs == 0 {
		c.Detection.OpusFrameMs = 20
	}
}
