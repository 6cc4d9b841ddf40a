package audio

import (
	"math"
	"testing"
)

// tone returns n samples of a quiet sine so the encoder has real signal.
func tone(n int) []float32 {
	s := make([]float32, n)
	for i := range s {
		s[i] = 0.2 * float32(math.Sin(2*math.Pi*440*float64(i)/16000))
	}
	return s
}

func TestNewOpusEncoderRejectsUnsupportedFrameDuration(t *testing.T) {
	t.Parallel()

	for _, ms := range []int{0, 25, 30, 100} {
		if _, err := NewOpusEncoder(16000, ms); err == nil {
			t.Errorf("NewOpusEncoder(16000, %d) succeeded, want error", ms)
		}
	}
}

func TestOpusEncoderRechunksAcrossCalls(t *testing.T) {
	enc, err := NewOpusEncoder(16000, 20)
	if err != nil {
		t.Fatalf("NewOpusEncoder: %v", err)
	}

	// 480-sample VAD frames against 320-sample Opus frames: the first call
	// yields one packet and carries 160 samples into the second, which then
	// completes twice.
	pkts, err := enc.Encode(tone(480))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(pkts) != 1 {
		t.Fatalf("first call packets = %d, want 1", len(pkts))
	}

	pkts, err = enc.Encode(tone(480))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(pkts) != 2 {
		t.Fatalf("second call packets = %d, want 2", len(pkts))
	}

	// 960 samples made exactly 3 packets, so nothing is buffered.
	pkt, err := enc.Flush()
	if err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if pkt != nil {
		t.Errorf("Flush after aligned input = %d bytes, want nil", len(pkt))
	}
}

func TestOpusEncoderFlushEncodesTail(t *testing.T) {
	enc, err := NewOpusEncoder(16000, 20)
	if err != nil {
		t.Fatalf("NewOpusEncoder: %v", err)
	}

	pkts, err := enc.Encode(tone(100))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(pkts) != 0 {
		t.Fatalf("sub-frame input produced %d packets, want 0", len(pkts))
	}

	pkt, err := enc.Flush()
	if err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if pkt == nil {
		t.Fatal("Flush dropped the buffered tail")
	}

	// The tail is consumed: flushing again yields nothing.
	pkt, err = enc.Flush()
	if err != nil || pkt != nil {
		t.Errorf("second Flush = (%v, %v), want (nil, nil)", pkt, err)
	}
}

func TestOpusEncoderResetDiscardsTail(t *testing.T) {
	enc, err := NewOpusEncoder(16000, 20)
	if err != nil {
		t.Fatalf("NewOpusEncoder: %v", err)
	}

	if _, err := enc.Encode(tone(100)); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	enc.Reset()

	pkt, err := enc.Flush()
	if err != nil || pkt != nil {
		t.Errorf("Flush after Reset = (%v, %v), want (nil, nil)", pkt, err)
	}
}
