// Package vad defines the Engine interface for Voice Activity Detection backends.
//
// A VAD engine wraps a frame-level speech detector (e.g., Silero VAD or a
// simple energy detector) and surfaces it as a stateful, per-stream session.
// Each session maintains its own internal state (probability smoothing,
// segment accumulation) so that multiple concurrent audio streams can be
// processed independently.
//
// VAD is synchronous by design: Process returns immediately with a per-frame
// result, making it suitable for low-latency pipeline stages. Segment
// boundaries (start/end) are derived inside the session using redemption-frame
// hysteresis, so callers receive both raw per-frame probabilities and
// higher-level segment events from the same call.
//
// Implementations must be safe for concurrent use across different sessions.
// A single Session must not be shared across goroutines unless the
// implementation explicitly documents thread safety for that type.
package vad

// Config holds the parameters for a VAD session.
type Config struct {
	// SampleRate is the audio sample rate in Hz. Must match the rate of the
	// frames passed to Process. The detection pipeline runs at 16000.
	SampleRate int

	// FrameSize is the number of samples per frame. Process returns an error
	// if the supplied frame does not match this size.
	FrameSize int

	// PositiveSpeechThreshold is the probability above which a frame counts
	// towards starting a speech segment. Range: [0.0, 1.0]. Typical: 0.5.
	PositiveSpeechThreshold float64

	// NegativeSpeechThreshold is the probability below which a frame counts
	// towards ending a speech segment. Must be ≤ PositiveSpeechThreshold.
	// Typical: 0.35.
	NegativeSpeechThreshold float64

	// RedemptionFrames is the number of consecutive sub-threshold frames
	// tolerated before an active segment is considered ended. Higher values
	// bridge short pauses at the cost of end-of-segment latency.
	RedemptionFrames int

	// PreSpeechPadFrames is the number of frames preceding the detected onset
	// that are prepended to the segment audio, recovering speech lost during
	// onset confirmation.
	PreSpeechPadFrames int

	// MinSpeechFrames is the minimum segment length in frames. Shorter
	// segments are discarded without emitting a SegmentEnd event.
	MinSpeechFrames int
}

// Session represents an active VAD session for a single audio stream. Each
// session maintains its own detection state; Reset clears this state without
// closing the session.
type Session interface {
	// Process analyses a single mono float32 frame and returns the per-frame
	// result, including any segment boundary event detected on this frame.
	// Returns an error if the frame size is wrong or the engine encounters an
	// internal failure.
	//
	// Process is called synchronously in the capture loop; it must not block.
	Process(frame []float32) (Result, error)

	// Reset clears all accumulated detection state (probability history,
	// buffered segment audio) without closing the session. Use this when the
	// audio stream is interrupted or restarted.
	Reset()

	// Close releases all resources associated with the session. After Close,
	// Process must return an error and Reset must be a no-op. Calling Close
	// more than once is safe and returns nil.
	Close() error
}

// Engine is the factory for VAD sessions. It is the top-level interface
// implemented by each VAD backend.
//
// Implementations must be safe for concurrent use: multiple goroutines may
// call NewSession simultaneously to create independent sessions.
type Engine interface {
	// NewSession creates a new VAD session with the given configuration.
	// Returns an error if the configuration is invalid or the engine cannot
	// allocate resources for the session.
	NewSession(cfg Config) (Session, error)
}

// Validate reports whether the config is internally consistent. Engines call
// this from NewSession before allocating resources.
func (c Config) Validate() error {
	switch {
	case c.SampleRate <= 0:
		return errConfig("sample rate must be positive")
	case c.FrameSize <= 0:
		return errConfig("frame size must be positive")
	case c.PositiveSpeechThreshold < 0 || c.PositiveSpeechThreshold > 1:
		return errConfig("positive speech threshold must be in [0,1]")
	case c.NegativeSpeechThreshold < 0 || c.NegativeSpeechThreshold > c.PositiveSpeechThreshold:
		return errConfig("negative speech threshold must be in [0, positive threshold]")
	case c.RedemptionFrames < 0:
		return errConfig("redemption frames must be non-negative")
	case c.PreSpeechPadFrames < 0:
		return errConfig("pre-speech pad frames must be non-negative")
	case c.MinSpeechFrames < 0:
		return errConfig("min speech frames must be non-negative")
	}
	return nil
}

type errConfig string

func (e errConfig) Error() string { return "vad: invalid config: " + string(e) }
