// Package detect implements the core speech-detection pipeline: a debounced
// speaking-probability filter for UI feedback, a low-latency utterance
// streamer with pre-roll buffering, a classifier-backed speech/noise gate,
// and the Detector orchestrator that ties them to a VAD session, a capture
// source, and a pub/sub transport.
//
// The pipeline is callback-driven and single-threaded: the capture loop
// delivers frames serially, and no two segment callbacks run concurrently.
// Correctness of the per-segment state therefore depends on that
// serialization, not on locks; only the Detector's lifecycle operations
// (Start/Stop) are guarded for cross-goroutine use.
package detect

import "time"

const (
	// minSpeechSamples is the number of frame observations required before
	// the filter will return a verdict.
	minSpeechSamples = 10

	// minSpeechLength gates verdicts until a segment has run this long.
	minSpeechLength = 800 * time.Millisecond

	// maxSpeechLength is the runaway safety valve: a segment exceeding this
	// is silently reset rather than reported.
	maxSpeechLength = 20 * time.Second

	// noiseFloorRatio is the minimum positive-sample ratio below which the
	// filter refuses a verdict entirely.
	noiseFloorRatio = 0.2

	// speakingRatio is the positive-sample ratio above which the verdict
	// reports active speech.
	speakingRatio = 0.6

	// DefaultPositiveThreshold is the per-frame probability above which a
	// frame counts as a positive speech sample.
	DefaultPositiveThreshold = 0.85
)

// Verdict is the filter's debounced judgment of whether the user is
// currently speaking. It feeds live UI state, never transport decisions.
type Verdict struct {
	// Speaking reports whether the positive-sample ratio cleared the
	// speaking threshold.
	Speaking bool

	// Probability is the positive-sample ratio over the observation window.
	Probability float64

	// SpeechLength is the elapsed time since the segment started. Not
	// monotonic across the runaway reset.
	SpeechLength time.Duration
}

// FrameProbabilityFilter turns per-frame speech probabilities into a
// debounced speaking signal over a fixed sliding window with duration
// bounds. It is a pure debouncer: deterministic given its inputs and the
// injected clock, with no I/O.
//
// The filter is inert until MarkStart is called (when the VAD reports a
// segment onset) and returns to inert on Reset.
type FrameProbabilityFilter struct {
	positiveThreshold float64
	now               func() time.Time

	samples   *Ring[bool]
	started   bool
	startTime time.Time
}

// NewFrameProbabilityFilter creates a filter using positiveThreshold for
// per-frame classification (≤0 selects DefaultPositiveThreshold) and now as
// the clock (nil selects time.Now).
func NewFrameProbabilityFilter(positiveThreshold float64, now func() time.Time) *FrameProbabilityFilter {
	if positiveThreshold <= 0 {
		positiveThreshold = DefaultPositiveThreshold
	}
	if now == nil {
		now = time.Now
	}
	return &FrameProbabilityFilter{
		positiveThreshold: positiveThreshold,
		now:               now,
		samples:           NewRing[bool](minSpeechSamples),
	}
}

// MarkStart begins a new observation segment. Any prior window content is
// discarded.
func (f *FrameProbabilityFilter) MarkStart() {
	f.samples.Clear()
	f.started = true
	f.startTime = f.now()
}

// Reset returns the filter to the inert state.
func (f *FrameProbabilityFilter) Reset() {
	f.samples.Clear()
	f.started = false
	f.startTime = time.Time{}
}

// Observe records one frame's speech probability and returns a verdict when
// the window is mature. The second return value is false while the filter
// declines to judge: before MarkStart, before the window fills, before the
// minimum segment duration, below the noise floor, or right after the
// runaway reset.
func (f *FrameProbabilityFilter) Observe(isSpeech float64) (Verdict, bool) {
	if !f.started {
		return Verdict{}, false
	}

	f.samples.Push(isSpeech > f.positiveThreshold)
	if f.samples.Len() < minSpeechSamples {
		return Verdict{}, false
	}

	elapsed := f.now().Sub(f.startTime)
	if elapsed < minSpeechLength {
		return Verdict{}, false
	}
	if elapsed > maxSpeechLength {
		// Runaway segment: silently restart the window and clock rather
		// than error. The next observation behaves as segment start, so
		// SpeechLength is not monotonic across this boundary.
		f.MarkStart()
		return Verdict{}, false
	}

	positives := 0
	f.samples.Each(func(b bool) {
		if b {
			positives++
		}
	})
	ratio := float64(positives) / float64(f.samples.Len())
	if ratio < noiseFloorRatio {
		return Verdict{}, false
	}

	return Verdict{
		Speaking:     ratio > speakingRatio,
		Probability:  ratio,
		SpeechLength: elapsed,
	}, true
}
