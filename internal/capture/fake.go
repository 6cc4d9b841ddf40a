package capture

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Fake is an in-memory Source for tests and file-driven replay. Frames are
// delivered synchronously from Feed, preserving the serial-delivery
// contract.
type Fake struct {
	mu      sync.Mutex
	fn      FrameFunc
	paused  bool
	running bool
	closed  bool
	elapsed time.Duration

	// FrameDuration is the synthetic per-frame clock advance applied on
	// each Feed. Zero means no clock advance.
	FrameDuration time.Duration

	// PauseCallCount and ResumeCallCount record lifecycle calls.
	PauseCallCount  int
	ResumeCallCount int
}

var _ Source = (*Fake)(nil)

// Start records the callback. Frames flow only when Feed is called.
func (f *Fake) Start(_ context.Context, fn FrameFunc) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return errors.New("capture: fake closed")
	}
	if f.running {
		return errors.New("capture: fake already running")
	}
	f.fn = fn
	f.running = true
	return nil
}

// Feed delivers one frame synchronously, advancing the synthetic clock.
// Frames fed while paused or stopped are dropped, as a real device's would
// be.
func (f *Fake) Feed(samples []float32) {
	f.mu.Lock()
	fn := f.fn
	deliver := f.running && !f.paused && !f.closed
	f.elapsed += f.FrameDuration
	elapsed := f.elapsed
	f.mu.Unlock()

	if deliver && fn != nil {
		fn(samples, elapsed)
	}
}

// Pause suspends delivery.
func (f *Fake) Pause() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paused = true
	f.PauseCallCount++
}

// Resume restarts delivery.
func (f *Fake) Resume() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paused = false
	f.ResumeCallCount++
}

// Running reports whether Start has been called and Close has not.
func (f *Fake) Running() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running
}

// Paused reports whether the source is currently paused.
func (f *Fake) Paused() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.paused
}

// Close stops delivery permanently.
func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.running = false
	return nil
}
