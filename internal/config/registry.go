package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/earshot-dev/earshot/internal/capture"
	"github.com/earshot-dev/earshot/internal/transport"
	"github.com/earshot-dev/earshot/pkg/classify"
	"github.com/earshot-dev/earshot/pkg/vad"
)

// ErrBackendNotRegistered is returned by Create* methods when no factory has
// been registered under the requested backend name.
var ErrBackendNotRegistered = errors.New("config: backend not registered")

// Registry maps backend names to their constructor functions for each
// pluggable pipeline stage. The cgo-gated backends (silero, onnx classifier,
// portaudio capture) register themselves only when compiled in, so a missing
// registration at runtime means "not built with this backend" rather than a
// wiring bug. Safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	vad        map[string]func(VADConfig) (vad.Engine, error)
	classifier map[string]func(ClassifierConfig) (classify.Classifier, error)
	capture    map[string]func(CaptureConfig) (capture.Source, error)
	transport  map[string]func(TransportConfig) (transport.Publisher, error)
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		vad:        make(map[string]func(VADConfig) (vad.Engine, error)),
		classifier: make(map[string]func(ClassifierConfig) (classify.Classifier, error)),
		capture:    make(map[string]func(CaptureConfig) (capture.Source, error)),
		transport:  make(map[string]func(TransportConfig) (transport.Publisher, error)),
	}
}

// RegisterVAD registers a VAD engine factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterVAD(name string, factory func(VADConfig) (vad.Engine, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.vad[name] = factory
}

// RegisterClassifier registers a classifier factory under name.
func (r *Registry) RegisterClassifier(name string, factory func(ClassifierConfig) (classify.Classifier, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.classifier[name] = factory
}

// RegisterCapture registers a capture source factory under name.
func (r *Registry) RegisterCapture(name string, factory func(CaptureConfig) (capture.Source, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.capture[name] = factory
}

// RegisterTransport registers a publisher factory under name.
func (r *Registry) RegisterTransport(name string, factory func(TransportConfig) (transport.Publisher, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transport[name] = factory
}

// CreateVAD instantiates the VAD engine registered under cfg.Backend.
// Returns [ErrBackendNotRegistered] if no factory has been registered for
// that name.
func (r *Registry) CreateVAD(cfg VADConfig) (vad.Engine, error) {
	r.mu.RLock()
	factory, ok := r.vad[string(cfg.Backend)]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: vad/%q", ErrBackendNotRegistered, cfg.Backend)
	}
	return factory(cfg)
}

// CreateClassifier instantiates the classifier registered under name.
func (r *Registry) CreateClassifier(name string, cfg ClassifierConfig) (classify.Classifier, error) {
	r.mu.RLock()
	factory, ok := r.classifier[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: classifier/%q", ErrBackendNotRegistered, name)
	}
	return factory(cfg)
}

// CreateCapture instantiates the capture source registered under name.
func (r *Registry) CreateCapture(name string, cfg CaptureConfig) (capture.Source, error) {
	r.mu.RLock()
	factory, ok := r.capture[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: capture/%q", ErrBackendNotRegistered, name)
	}
	return factory(cfg)
}

// CreateTransport instantiates the publisher registered under cfg.Kind.
func (r *Registry) CreateTransport(cfg TransportConfig) (transport.Publisher, error) {
	r.mu.RLock()
	factory, ok := r.transport[string(cfg.Kind)]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: transport/%q", ErrBackendNotRegistered, cfg.Kind)
	}
	return factory(cfg)
}
