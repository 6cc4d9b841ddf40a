package vad

// Segmenter turns a stream of per-frame speech probabilities into segment
// boundary events using redemption-frame hysteresis. Engine implementations
// embed a Segmenter so that every backend derives boundaries identically:
// the backend supplies probabilities, the Segmenter supplies events.
//
// Not safe for concurrent use; confine to one session.
type Segmenter struct {
	cfg Config

	active     bool
	redemption int

	// prePad is a fixed-capacity ring of the most recent idle frames,
	// prepended to the segment on onset.
	prePad  [][]float32
	preNext int
	preLen  int

	segment     []float32
	frameCount  int
	speechCount int
}

// NewSegmenter creates a Segmenter for the given session config. The config
// is assumed validated.
func NewSegmenter(cfg Config) *Segmenter {
	return &Segmenter{
		cfg:    cfg,
		prePad: make([][]float32, max(cfg.PreSpeechPadFrames, 0)),
	}
}

// Push consumes one frame with its speech probability and returns the
// boundary event detected on this frame. When the event is EventSegmentEnd,
// the returned slice holds the full segment audio including pre-speech
// padding; a nil slice on EventSegmentEnd marks a misfire (segment shorter
// than MinSpeechFrames) whose audio was discarded.
func (s *Segmenter) Push(frame []float32, p float64) (EventType, []float32) {
	if !s.active {
		if p >= s.cfg.PositiveSpeechThreshold {
			s.begin(frame)
			return EventSegmentStart, nil
		}
		s.pushPrePad(frame)
		return EventNone, nil
	}

	s.segment = append(s.segment, frame...)
	s.frameCount++
	if p >= s.cfg.PositiveSpeechThreshold {
		s.speechCount++
	}

	if p < s.cfg.NegativeSpeechThreshold {
		s.redemption++
		if s.redemption >= s.cfg.RedemptionFrames {
			return EventSegmentEnd, s.finish()
		}
	} else {
		s.redemption = 0
	}
	return EventNone, nil
}

// Active reports whether a speech segment is currently open.
func (s *Segmenter) Active() bool { return s.active }

// Reset clears all accumulated state, abandoning any open segment.
func (s *Segmenter) Reset() {
	s.active = false
	s.redemption = 0
	s.segment = nil
	s.frameCount = 0
	s.speechCount = 0
	s.preNext = 0
	s.preLen = 0
	for i := range s.prePad {
		s.prePad[i] = nil
	}
}

func (s *Segmenter) begin(frame []float32) {
	s.active = true
	s.redemption = 0
	s.frameCount = 1
	s.speechCount = 1

	// Flush pre-speech padding oldest-first, then the onset frame.
	s.segment = nil
	n := len(s.prePad)
	for i := range s.preLen {
		idx := (s.preNext + n - s.preLen + i) % n
		s.segment = append(s.segment, s.prePad[idx]...)
	}
	s.segment = append(s.segment, frame...)
	s.preLen = 0
}

func (s *Segmenter) finish() []float32 {
	seg := s.segment
	short := s.speechCount < s.cfg.MinSpeechFrames
	s.active = false
	s.redemption = 0
	s.segment = nil
	s.frameCount = 0
	s.speechCount = 0
	if short {
		return nil
	}
	return seg
}

func (s *Segmenter) pushPrePad(frame []float32) {
	if len(s.prePad) == 0 {
		return
	}
	cp := make([]float32, len(frame))
	copy(cp, frame)
	s.prePad[s.preNext] = cp
	s.preNext = (s.preNext + 1) % len(s.prePad)
	if s.preLen < len(s.prePad) {
		s.preLen++
	}
}
