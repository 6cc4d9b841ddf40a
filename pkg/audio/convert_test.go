package audio

import (
	"math"
	"testing"
	"time"
)

func TestPCM16RoundTrip(t *testing.T) {
	t.Parallel()

	in := []float32{0, 0.5, -0.5, 0.999, -0.999}
	out := PCM16ToFloat32(Float32ToPCM16(in))

	if len(out) != len(in) {
		t.Fatalf("length mismatch: want %d, got %d", len(in), len(out))
	}
	for i := range in {
		if diff := math.Abs(float64(out[i] - in[i])); diff > 1.0/32768.0*2 {
			t.Errorf("sample %d: want ≈%v, got %v (diff %v)", i, in[i], out[i], diff)
		}
	}
}

func TestFloat32ToPCM16Clamps(t *testing.T) {
	t.Parallel()

	out := PCM16ToFloat32(Float32ToPCM16([]float32{2.0, -2.0}))
	if out[0] < 0.99 {
		t.Errorf("positive overdrive not clamped to full scale: got %v", out[0])
	}
	if out[1] > -0.99 {
		t.Errorf("negative overdrive not clamped to full scale: got %v", out[1])
	}
}

func TestPCM16ToFloat32IgnoresTrailingOddByte(t *testing.T) {
	t.Parallel()

	got := PCM16ToFloat32([]byte{0x00, 0x40, 0xFF})
	if len(got) != 1 {
		t.Fatalf("want 1 sample, got %d", len(got))
	}
}

func TestRMS(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		samples []float32
		want    float64
	}{
		{name: "empty", samples: nil, want: 0},
		{name: "silence", samples: make([]float32, 160), want: 0},
		{name: "full-scale DC", samples: []float32{1, 1, 1, 1}, want: 1},
		{name: "half-scale alternating", samples: []float32{0.5, -0.5, 0.5, -0.5}, want: 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := RMS(tt.samples)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("want %v, got %v", tt.want, got)
			}
		})
	}
}

func TestFrameDuration(t *testing.T) {
	t.Parallel()

	f := Frame{Samples: make([]float32, 480), SampleRate: 16000}
	if got := f.Duration(); got != 30*time.Millisecond {
		t.Errorf("want 30ms, got %v", got)
	}

	if got := (Frame{Samples: make([]float32, 480)}).Duration(); got != 0 {
		t.Errorf("zero sample rate: want 0, got %v", got)
	}
}
