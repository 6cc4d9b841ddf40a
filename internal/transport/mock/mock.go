// Package mock provides a call-recording test double for the transport
// Publisher interface.
package mock

import (
	"context"
	"sync"

	"github.com/earshot-dev/earshot/internal/transport"
)

// PublishCall records a single invocation of Publisher.Publish.
type PublishCall struct {
	// Topic is the topic passed to Publish.
	Topic string

	// Payload is a copy of the payload bytes.
	Payload []byte

	// JSON is the json flag passed to Publish.
	JSON bool

	// QoS is the quality-of-service level passed to Publish.
	QoS byte
}

// Publisher is a mock implementation of transport.Publisher.
type Publisher struct {
	mu sync.Mutex

	// PublishErr, if non-nil, is returned by every Publish call.
	PublishErr error

	// CloseErr, if non-nil, is returned by Close.
	CloseErr error

	// ConnectedResult is returned by Connected. Defaults to true via the
	// zero value being overridden in NewPublisher; set explicitly when
	// constructing the struct literal directly.
	ConnectedResult bool

	// PublishCalls records every call to Publish in order.
	PublishCalls []PublishCall

	// CloseCallCount is the number of times Close was called.
	CloseCallCount int
}

// NewPublisher returns a connected mock publisher.
func NewPublisher() *Publisher {
	return &Publisher{ConnectedResult: true}
}

// Publish records the call and returns PublishErr.
func (p *Publisher) Publish(_ context.Context, topic string, payload []byte, json bool, qos byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	cp := make([]byte, len(payload))
	copy(cp, payload)
	p.PublishCalls = append(p.PublishCalls, PublishCall{Topic: topic, Payload: cp, JSON: json, QoS: qos})
	return p.PublishErr
}

// Connected returns ConnectedResult.
func (p *Publisher) Connected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ConnectedResult
}

// Close records the call and returns CloseErr.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.CloseCallCount++
	return p.CloseErr
}

// Calls returns a snapshot of recorded publish calls. Thread-safe.
func (p *Publisher) Calls() []PublishCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]PublishCall, len(p.PublishCalls))
	copy(out, p.PublishCalls)
	return out
}

// ResetCalls clears all recorded call history. Thread-safe.
func (p *Publisher) ResetCalls() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.PublishCalls = nil
	p.CloseCallCount = 0
}

// Ensure Publisher implements the interfaces at compile time.
var (
	_ transport.Publisher = (*Publisher)(nil)
	_ transport.Connected = (*Publisher)(nil)
)
