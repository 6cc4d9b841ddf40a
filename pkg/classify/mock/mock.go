// Package mock provides a test double for the classify.Classifier interface.
//
// Script per-call results via Scores and inspect recorded Classify calls.
package mock

import (
	"context"
	"sync"

	"github.com/earshot-dev/earshot/pkg/classify"
)

// ClassifyCall records a single invocation of Classifier.Classify.
type ClassifyCall struct {
	// Samples is a copy of the audio passed to Classify.
	Samples []float32

	// SampleRate is the rate passed to Classify.
	SampleRate int
}

// Classifier is a mock implementation of classify.Classifier.
type Classifier struct {
	mu sync.Mutex

	// Scores is returned by every Classify call.
	Scores []classify.Score

	// Labels is returned by Categories. Optional.
	Labels []string

	// StartErr, if non-nil, is returned by Start.
	StartErr error

	// ClassifyErr, if non-nil, is returned by every Classify call.
	ClassifyErr error

	// CloseErr, if non-nil, is returned by Close.
	CloseErr error

	// --- Call records ---

	// StartCallCount is the number of times Start was called.
	StartCallCount int

	// ClassifyCalls records every call to Classify in order.
	ClassifyCalls []ClassifyCall

	// CloseCallCount is the number of times Close was called.
	CloseCallCount int
}

// Start records the call and returns StartErr.
func (c *Classifier) Start(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.StartCallCount++
	return c.StartErr
}

// Classify records the call and returns Scores, ClassifyErr.
func (c *Classifier) Classify(_ context.Context, samples []float32, sampleRate int) ([]classify.Score, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := make([]float32, len(samples))
	copy(cp, samples)
	c.ClassifyCalls = append(c.ClassifyCalls, ClassifyCall{Samples: cp, SampleRate: sampleRate})
	if c.ClassifyErr != nil {
		return nil, c.ClassifyErr
	}
	return c.Scores, nil
}

// Close records the call and returns CloseErr.
func (c *Classifier) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.CloseCallCount++
	return c.CloseErr
}

// Categories returns Labels.
func (c *Classifier) Categories() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.Labels))
	copy(out, c.Labels)
	return out
}

// ResetCalls clears all recorded call history. Thread-safe.
func (c *Classifier) ResetCalls() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.StartCallCount = 0
	c.ClassifyCalls = nil
	c.CloseCallCount = 0
}

// Ensure Classifier implements the interfaces at compile time.
var (
	_ classify.Classifier = (*Classifier)(nil)
	_ classify.Categories = (*Classifier)(nil)
)
