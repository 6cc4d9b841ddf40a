// Package capture acquires microphone audio and delivers it to the
// detection pipeline as fixed-size mono float32 frames.
//
// A [Source] delivers frames serially to a single callback. The pipeline's
// serialization guarantee rests on this: no two frame callbacks run
// concurrently, and segment state in the detector needs no locking as a
// result. Pause and Resume toggle delivery without releasing the underlying
// device; only Close releases it.
package capture

import (
	"context"
	"time"
)

// FrameFunc receives one captured frame. The sample slice is owned by the
// source and only valid for the duration of the call; implementations must
// copy what they retain. elapsed is the time since capture started.
type FrameFunc func(samples []float32, elapsed time.Duration)

// Source is a microphone (or microphone-like) frame producer.
type Source interface {
	// Start begins delivering frames to fn. Returns an error if the device
	// cannot be acquired or the source is already running. Frame delivery
	// stops when ctx is cancelled or Close is called.
	Start(ctx context.Context, fn FrameFunc) error

	// Pause suspends frame delivery without releasing the device.
	// Idempotent.
	Pause()

	// Resume restarts frame delivery after Pause. Idempotent.
	Resume()

	// Close stops delivery and releases the device. Calling Close more than
	// once is safe.
	Close() error
}
