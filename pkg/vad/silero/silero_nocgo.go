//go:build !cgo

// Package silero implements a VAD engine backed by the Silero VAD ONNX model.
// Without cgo the ONNX Runtime bindings are unavailable; New always fails and
// callers should fall back to the energy backend.
package silero

import (
	"errors"

	"github.com/earshot-dev/earshot/pkg/vad"
)

// Engine is unavailable without cgo.
type Engine struct{}

var _ vad.Engine = (*Engine)(nil)

// New always returns an error in builds without cgo.
func New(modelPath, libraryPath string) (*Engine, error) {
	return nil, errors.New("silero: requires cgo and the ONNX Runtime shared library")
}

// NewSession always returns an error in builds without cgo.
func (e *Engine) NewSession(cfg vad.Config) (vad.Session, error) {
	return nil, errors.New("silero: requires cgo and the ONNX Runtime shared library")
}
