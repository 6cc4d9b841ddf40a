//go:build !cgo

// Package onnx implements a classify.Classifier backed by a YAMNet-style
// ONNX audio event model. Without cgo the ONNX Runtime bindings are
// unavailable; New always fails.
package onnx

import (
	"context"
	"errors"

	"github.com/earshot-dev/earshot/pkg/classify"
)

// Config locates the model and its label map on disk.
type Config struct {
	ModelPath    string
	ClassMapPath string
	LibraryPath  string
	InputName    string
	OutputName   string
}

// Classifier is unavailable without cgo.
type Classifier struct{}

var _ classify.Classifier = (*Classifier)(nil)

var errNoCgo = errors.New("onnx: requires cgo and the ONNX Runtime shared library")

// New always returns an error in builds without cgo.
func New(cfg Config) (*Classifier, error) { return nil, errNoCgo }

// Start always returns an error in builds without cgo.
func (c *Classifier) Start(context.Context) error { return errNoCgo }

// Classify always returns an error in builds without cgo.
func (c *Classifier) Classify(context.Context, []float32, int) ([]classify.Score, error) {
	return nil, errNoCgo
}

// Close is a no-op in builds without cgo.
func (c *Classifier) Close() error { return nil }
