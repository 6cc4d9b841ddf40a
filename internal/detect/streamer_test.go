package detect

import "testing"

func frameOf(v float32, n int) []float32 {
	f := make([]float32, n)
	for i := range f {
		f[i] = v
	}
	return f
}

func TestStreamerFastPathOnset(t *testing.T) {
	s := NewSpeechStreamer()

	// Seed the pre-roll with three quiet frames.
	for i := 0; i < 3; i++ {
		if out := s.OnFrame(frameOf(float32(i+1), 4), 0.0, 0.9); out != nil {
			t.Fatalf("idle frame %d forwarded: %v", i, out)
		}
	}
	if s.Streaming() {
		t.Fatal("streaming before any speech")
	}

	// First-ever speech probability above the start threshold takes the
	// fast path: pre-roll plus the current frame, immediately.
	onset := frameOf(9, 4)
	out := s.OnFrame(onset, 0.9, 0.1)
	if !s.Streaming() {
		t.Fatal("not streaming after fast-path onset")
	}
	if len(out) != 4 {
		t.Fatalf("onset returned %d frames, want 4 (3 pre-roll + current)", len(out))
	}
	for i := 0; i < 3; i++ {
		if out[i][0] != float32(i+1) {
			t.Errorf("pre-roll frame %d = %v, want %v", i, out[i][0], float32(i+1))
		}
	}
	if out[3][0] != 9 {
		t.Errorf("last forwarded frame = %v, want the onset frame", out[3][0])
	}
}

func TestStreamerOnsetDoesNotDuplicateCurrentFrame(t *testing.T) {
	s := NewSpeechStreamer()
	out := s.OnFrame(frameOf(7, 4), 0.9, 0.1)
	if len(out) != 1 {
		t.Fatalf("onset with empty pre-roll returned %d frames, want 1", len(out))
	}
}

func TestStreamerFastPathOnlyOnFirstSpeech(t *testing.T) {
	s := NewSpeechStreamer()

	// Consume the fast path, then drive the stream to a stop.
	s.OnFrame(frameOf(1, 4), 0.9, 0.1)
	for i := 0; i < 30 && s.Streaming(); i++ {
		s.OnFrame(frameOf(1, 4), 0.0, 0.9)
	}
	if s.Streaming() {
		t.Fatal("stream did not stop on sustained silence")
	}

	// A single high-probability frame no longer triggers onset: the
	// moving average over the silent history is still low.
	out := s.OnFrame(frameOf(1, 4), 0.9, 0.1)
	if out != nil || s.Streaming() {
		t.Error("second onset took the fast path, want moving-average confirmation")
	}
}

func TestStreamerOffsetLatency(t *testing.T) {
	s := NewSpeechStreamer()

	// Establish a confidently speaking stream so the moving average is
	// saturated at 0.9.
	for i := 0; i < 12; i++ {
		s.OnFrame(frameOf(1, 4), 0.9, 0.1)
	}
	if !s.Streaming() {
		t.Fatal("not streaming after sustained speech")
	}

	// Feed silence. The moving average drops below the stop threshold
	// after enough negative samples; from that point exactly five
	// consecutive silent frames must pass before the stream stops.
	belowSince := -1
	frames := 0
	for s.Streaming() {
		frames++
		if frames > 40 {
			t.Fatal("stream never stopped")
		}
		out := s.OnFrame(frameOf(1, 4), 0.0, 0.9)
		if len(out) != 1 {
			t.Fatalf("streaming frame %d forwarded %d frames, want 1", frames, len(out))
		}
		if belowSince == -1 && s.average() < stopThreshold {
			belowSince = frames
		}
	}
	stoppedAt := frames
	if got := stoppedAt - belowSince; got != silenceFramesToStop-1 {
		t.Errorf("stopped %d frames after average first dropped, want %d",
			got+1, silenceFramesToStop)
	}

	// Idle again: the pre-roll must have been cleared at stop, so the next
	// onset forwards only what accumulated since.
	if out := s.OnFrame(frameOf(2, 4), 0.0, 0.9); out != nil {
		t.Fatalf("idle frame forwarded after stop: %v", out)
	}
}

func TestStreamerPreRollCapacity(t *testing.T) {
	s := NewSpeechStreamer()
	for i := 0; i < 20; i++ {
		s.OnFrame(frameOf(float32(i), 4), 0.0, 0.9)
	}
	if got := s.preBuffer.Len(); got != preBufferSize {
		t.Errorf("pre-roll length = %d, want %d", got, preBufferSize)
	}
}

func TestStreamerResetClearsFastPathFlag(t *testing.T) {
	s := NewSpeechStreamer()
	s.OnFrame(frameOf(1, 4), 0.9, 0.1)
	s.Reset()
	if s.Streaming() {
		t.Fatal("streaming after Reset")
	}

	// Fast path is available again after a full reset.
	out := s.OnFrame(frameOf(1, 4), 0.9, 0.1)
	if out == nil || !s.Streaming() {
		t.Error("fast path unavailable after Reset")
	}
}
