// Package audio provides the PCM sample types and encoding helpers shared by
// the Earshot detection pipeline: float32/int16 conversions, RMS energy,
// WAV container encoding, and an Opus frame codec for bandwidth-constrained
// stream transports.
//
// All pipeline audio is mono float32 in the range [-1.0, 1.0]. Conversion to
// 16-bit little-endian PCM happens only at the transport boundary.
package audio

import "time"

// Frame is a single fixed-length window of mono audio flowing through the
// detection pipeline. Frames are ephemeral: the capture loop owns the sample
// slice for the duration of one callback, and downstream components must copy
// what they retain.
type Frame struct {
	// Samples holds normalised mono PCM in [-1.0, 1.0].
	Samples []float32

	// SampleRate in Hz. The detection pipeline runs at 16000.
	SampleRate int

	// Timestamp marks when this frame was captured, relative to stream start.
	Timestamp time.Duration
}

// Duration returns the wall-clock length of the frame.
func (f Frame) Duration() time.Duration {
	if f.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(f.Samples)) * time.Second / time.Duration(f.SampleRate)
}
