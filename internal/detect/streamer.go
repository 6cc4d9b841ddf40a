package detect

const (
	// sampleHistorySize is the moving-average window over weighted
	// per-frame scores.
	sampleHistorySize = 10

	// preBufferSize is the number of idle frames retained for pre-roll
	// flushing at stream onset.
	preBufferSize = 5

	// startThreshold is the score above which streaming begins: applied to
	// the instantaneous probability on the first-ever speech (fast path)
	// and to the moving average otherwise.
	startThreshold = 0.5

	// stopThreshold is the moving average below which a streaming frame
	// counts as silence.
	stopThreshold = 0.3

	// silenceFramesToStop is the number of consecutive silent frames that
	// ends the stream.
	silenceFramesToStop = 5
)

// SpeechStreamer decides, frame by frame, which frames constitute an active
// speech segment suitable for immediate forwarding to a remote listener. A
// small pre-roll buffer is flushed at onset so the several-frame delay of
// the moving-average confirmation does not clip early phonemes, and an
// instantaneous fast path on the very first utterance favours low perceived
// latency before any average exists to trust.
//
// OnFrame must be called once per VAD frame in chronological order; skipped
// frames silently degrade segmentation accuracy. The streamer is pure
// transformation: it never errors and performs no I/O.
type SpeechStreamer struct {
	history   *Ring[float64]
	preBuffer *Ring[[]float32]

	streaming           bool
	silence             int
	firstSpeechDetected bool
}

// NewSpeechStreamer creates an idle streamer.
func NewSpeechStreamer() *SpeechStreamer {
	return &SpeechStreamer{
		history:   NewRing[float64](sampleHistorySize),
		preBuffer: NewRing[[]float32](preBufferSize),
	}
}

// Streaming reports whether a segment is currently being forwarded.
func (s *SpeechStreamer) Streaming() bool { return s.streaming }

// OnFrame consumes one frame with its speech/not-speech probabilities and
// returns the frames to forward now: nothing while idle, pre-roll plus the
// current frame at onset, and the current frame alone while streaming.
// Returned frames are either internal pre-roll copies or the caller's own
// frame; the caller must consume them before the next OnFrame call.
func (s *SpeechStreamer) OnFrame(frame []float32, isSpeech, notSpeech float64) [][]float32 {
	weighted := -notSpeech
	if isSpeech > 0 {
		weighted = isSpeech
	}
	s.history.Push(weighted)

	if s.streaming {
		if s.average() < stopThreshold {
			s.silence++
			if s.silence >= silenceFramesToStop {
				s.stop()
			}
		} else {
			s.silence = 0
		}
		return [][]float32{frame}
	}

	// Idle: decide onset before committing the frame to the pre-roll, so an
	// onset flush never duplicates the current frame.
	fastPath := !s.firstSpeechDetected && isSpeech > startThreshold
	if fastPath || s.average() > startThreshold {
		s.firstSpeechDetected = true
		return s.begin(frame)
	}

	cp := make([]float32, len(frame))
	copy(cp, frame)
	s.preBuffer.Push(cp)
	return nil
}

// Reset returns the streamer to its initial state, including the first-ever
// speech fast-path flag. Use when the capture session itself restarts.
func (s *SpeechStreamer) Reset() {
	s.stop()
	s.history.Clear()
	s.firstSpeechDetected = false
}

// begin transitions to streaming and flushes the pre-roll plus the onset
// frame.
func (s *SpeechStreamer) begin(frame []float32) [][]float32 {
	s.streaming = true
	s.silence = 0

	out := make([][]float32, 0, s.preBuffer.Len()+1)
	s.preBuffer.Each(func(f []float32) { out = append(out, f) })
	out = append(out, frame)
	s.preBuffer.Clear()
	return out
}

// stop transitions back to idle and discards any stale pre-roll so the next
// segment does not leak old audio.
func (s *SpeechStreamer) stop() {
	s.streaming = false
	s.silence = 0
	s.preBuffer.Clear()
}

// average returns the moving average over the weighted score history, or 0
// when the history is empty.
func (s *SpeechStreamer) average() float64 {
	if s.history.Len() == 0 {
		return 0
	}
	var sum float64
	s.history.Each(func(v float64) { sum += v })
	return sum / float64(s.history.Len())
}
