// Package classify defines the Classifier interface for categorical audio
// event classification backends.
//
// A classifier scores a completed utterance's audio against a fixed label
// set (e.g., the AudioSet ontology used by YAMNet-style models): "Speech",
// "Music", "Static", and so on. The detection pipeline uses these scores to
// decide whether a VAD-confirmed segment is genuine human speech or ambient
// noise, and to surface non-speech categories for telemetry.
//
// Classification is invoked once per utterance, not per frame, so
// implementations may take tens of milliseconds per call. Start/Close bracket
// the model lifecycle: Start loads the model, Close releases it.
package classify

import "context"

// Score is one category's probability for a classified audio buffer.
type Score struct {
	// Index is the class index in the model's label map. Stable across calls
	// for a given model; used to key category sets resolved at load time.
	Index int

	// Category is the human-readable label (e.g., "Speech", "Static").
	Category string

	// Probability is the model's score for this category (0.0–1.0).
	Probability float64
}

// Classifier scores audio buffers against a categorical label set.
//
// Implementations must be safe for sequential use from a single goroutine;
// concurrent Classify calls require explicit documentation by the backend.
type Classifier interface {
	// Start loads the model and prepares the backend for Classify calls.
	// Calling Start on an already-started classifier is a no-op.
	Start(ctx context.Context) error

	// Classify scores the given mono float32 audio. Returns the scored
	// categories, typically ordered by descending probability. Backends may
	// omit categories below an internal floor. Returns an error if the
	// backend is not started or inference fails.
	Classify(ctx context.Context, samples []float32, sampleRate int) ([]Score, error)

	// Close releases the model. Calling Close more than once is safe, and a
	// closed classifier may be started again.
	Close() error
}

// Categories reports the label map of a backend: index → category name.
// Implemented by backends whose label set is known at load time, letting
// callers resolve category-name sets into index sets once instead of
// comparing strings per utterance.
type Categories interface {
	Categories() []string
}
