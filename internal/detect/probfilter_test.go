package detect

import (
	"testing"
	"time"
)

// filterClock is a manually advanced clock for deterministic filter tests.
type filterClock struct {
	t time.Time
}

func newFilterClock() *filterClock {
	return &filterClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *filterClock) now() time.Time { return c.t }

func (c *filterClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestFilterWindowNeverExceedsCap(t *testing.T) {
	clock := newFilterClock()
	f := NewFrameProbabilityFilter(0, clock.now)
	f.MarkStart()

	for i := 0; i < 25; i++ {
		clock.advance(100 * time.Millisecond)
		f.Observe(0.9)
		if f.samples.Len() > minSpeechSamples {
			t.Fatalf("window length = %d after %d observations, want <= %d",
				f.samples.Len(), i+1, minSpeechSamples)
		}
	}
}

func TestFilterNoVerdictBeforeMinimumDuration(t *testing.T) {
	clock := newFilterClock()
	f := NewFrameProbabilityFilter(0, clock.now)
	f.MarkStart()

	// 15 observations but only 750ms elapsed: window is full, duration
	// gate still closed.
	for i := 0; i < 15; i++ {
		clock.advance(50 * time.Millisecond)
		if _, ok := f.Observe(0.99); ok {
			t.Fatalf("verdict returned at %v, want none before %v",
				time.Duration(i+1)*50*time.Millisecond, minSpeechLength)
		}
	}

	clock.advance(100 * time.Millisecond)
	v, ok := f.Observe(0.99)
	if !ok {
		t.Fatal("no verdict after minimum duration elapsed")
	}
	if !v.Speaking {
		t.Errorf("Speaking = false, want true (probability %v)", v.Probability)
	}
}

func TestFilterRunawayReset(t *testing.T) {
	clock := newFilterClock()
	f := NewFrameProbabilityFilter(0, clock.now)
	f.MarkStart()

	// Run well past the runaway cutoff at 100ms per frame.
	for i := 0; i < 205; i++ {
		clock.advance(100 * time.Millisecond)
		f.Observe(0.9)
	}

	// The segment crossed 20s, so the filter restarted its window and
	// clock. The next observation must behave like a fresh segment start:
	// no verdict until the window refills and 800ms re-elapses.
	clock.advance(100 * time.Millisecond)
	if _, ok := f.Observe(0.9); ok {
		t.Fatal("verdict immediately after runaway reset")
	}

	for i := 0; i < 9; i++ {
		clock.advance(100 * time.Millisecond)
		f.Observe(0.9)
	}
	v, ok := f.Observe(0.9)
	if !ok {
		t.Fatal("no verdict after window refilled post-reset")
	}
	if v.SpeechLength > maxSpeechLength {
		t.Errorf("SpeechLength = %v not reset, want < %v", v.SpeechLength, maxSpeechLength)
	}
}

func TestFilterInertUntilMarkStart(t *testing.T) {
	clock := newFilterClock()
	f := NewFrameProbabilityFilter(0, clock.now)

	for i := 0; i < 20; i++ {
		clock.advance(100 * time.Millisecond)
		if _, ok := f.Observe(1.0); ok {
			t.Fatal("verdict from filter that was never started")
		}
	}
}

func TestFilterNoiseFloorSuppressesVerdict(t *testing.T) {
	clock := newFilterClock()
	f := NewFrameProbabilityFilter(0, clock.now)
	f.MarkStart()

	// One positive in ten is below the noise floor ratio.
	probs := []float64{0.9, 0.1, 0.1, 0.1, 0.1, 0.1, 0.1, 0.1, 0.1, 0.1}
	var got bool
	for _, p := range probs {
		clock.advance(100 * time.Millisecond)
		_, got = f.Observe(p)
	}
	if got {
		t.Error("verdict returned below the noise floor")
	}
}

func TestFilterVerdictBelowSpeakingRatioIsNotSpeaking(t *testing.T) {
	clock := newFilterClock()
	f := NewFrameProbabilityFilter(0, clock.now)
	f.MarkStart()

	// Four positives in ten: above the noise floor, below the speaking
	// ratio.
	probs := []float64{0.9, 0.9, 0.9, 0.9, 0.1, 0.1, 0.1, 0.1, 0.1, 0.1}
	var (
		v  Verdict
		ok bool
	)
	for _, p := range probs {
		clock.advance(100 * time.Millisecond)
		v, ok = f.Observe(p)
	}
	if !ok {
		t.Fatal("no verdict above the noise floor")
	}
	if v.Speaking {
		t.Errorf("Speaking = true at ratio %v, want false", v.Probability)
	}
}

func TestFilterResetReturnsToInert(t *testing.T) {
	clock := newFilterClock()
	f := NewFrameProbabilityFilter(0, clock.now)
	f.MarkStart()
	for i := 0; i < 10; i++ {
		clock.advance(100 * time.Millisecond)
		f.Observe(0.9)
	}

	f.Reset()
	clock.advance(100 * time.Millisecond)
	if _, ok := f.Observe(0.9); ok {
		t.Error("verdict after Reset without MarkStart")
	}
}
