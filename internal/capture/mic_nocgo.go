//go:build !cgo

package capture

import (
	"context"
	"errors"
)

// Mic is unavailable without cgo (PortAudio bindings).
type Mic struct{}

var _ Source = (*Mic)(nil)

var errNoCgo = errors.New("capture: microphone requires cgo and PortAudio")

// NewMic always returns an error in builds without cgo.
func NewMic(sampleRate, frameSize int, device string) (*Mic, error) { return nil, errNoCgo }

// Start always returns an error in builds without cgo.
func (m *Mic) Start(context.Context, FrameFunc) error { return errNoCgo }

// Pause is a no-op in builds without cgo.
func (m *Mic) Pause() {}

// Resume is a no-op in builds without cgo.
func (m *Mic) Resume() {}

// Close is a no-op in builds without cgo.
func (m *Mic) Close() error { return nil }
