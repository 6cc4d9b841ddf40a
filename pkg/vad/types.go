package vad

// Result is the outcome of processing one audio frame.
type Result struct {
	// IsSpeech is the probability that the frame contains speech (0.0–1.0).
	IsSpeech float64

	// NotSpeech is the probability that the frame does not contain speech.
	// For binary models this is 1 − IsSpeech.
	NotSpeech float64

	// Event is the segment boundary detected on this frame, if any.
	Event EventType

	// Segment holds the full accumulated segment audio (including pre-speech
	// padding) when Event is EventSegmentEnd; nil otherwise. The slice is
	// owned by the caller after Process returns.
	Segment []float32
}

// EventType enumerates segment boundary events derived by a VAD session.
type EventType int

const (
	// EventNone indicates no boundary on this frame.
	EventNone EventType = iota

	// EventSegmentStart indicates a speech segment has just begun.
	EventSegmentStart

	// EventSegmentEnd indicates a speech segment has just ended; the Result
	// carries the full segment audio.
	EventSegmentEnd
)

// String returns the human-readable name of the event type.
func (e EventType) String() string {
	switch e {
	case EventNone:
		return "NONE"
	case EventSegmentStart:
		return "SEGMENT_START"
	case EventSegmentEnd:
		return "SEGMENT_END"
	default:
		return "UNKNOWN"
	}
}
