package detect

// SpeechEvent carries one confirmed speech utterance to local listeners.
type SpeechEvent struct {
	// ChunkID is the utterance's correlation token, matching the identifier
	// on every transport message for the same segment.
	ChunkID string

	// Audio is the full segment's mono float32 samples.
	Audio []float32

	// WAV is the segment encoded as a 16-bit PCM RIFF/WAVE buffer.
	WAV []byte
}

// EventSink receives local pipeline events for UI and telemetry consumers.
// Implementations are invoked from the serialized frame-delivery path and
// must not block; hand work off to a channel or goroutine if needed.
//
// Each Detector owns exactly one sink supplied at construction; there is no
// ambient global emitter, so event routing stays explicit and testable.
type EventSink interface {
	// Listening is emitted when the detector begins or stops capturing.
	Listening(active bool)

	// SegmentStarted is emitted when the VAD reports a speech onset.
	SegmentStarted(chunkID string)

	// Speaking is emitted whenever the probability filter produces a
	// verdict. UI feedback only; never a transport decision.
	Speaking(v Verdict)

	// Classified is emitted once per gated utterance that produced
	// non-speech classifications.
	Classified(results []Classification)

	// Speech is emitted once per utterance the gate confirmed as human
	// speech.
	Speech(ev SpeechEvent)
}

// NopSink is an EventSink that ignores every event. Embed it to implement
// only the events a listener cares about.
type NopSink struct{}

var _ EventSink = NopSink{}

func (NopSink) Listening(bool)              {}
func (NopSink) SegmentStarted(string)       {}
func (NopSink) Speaking(Verdict)            {}
func (NopSink) Classified([]Classification) {}
func (NopSink) Speech(SpeechEvent)          {}
