// Package transport defines the pub/sub publishing boundary between the
// detection pipeline and the backend, with MQTT and WebSocket
// implementations.
//
// The pipeline's contract is fire-and-forget: a failed publish is logged and
// the audio dropped, never queued or resent. The [Guarded] decorator wraps a
// publisher in a circuit breaker so that a dead backend fails publishes fast
// instead of stalling the capture loop on every frame.
package transport

import "context"

// Publisher dispatches payloads to a pub/sub topic.
//
// Implementations must be safe for concurrent use; the detector publishes
// from the capture loop while lifecycle code may publish markers from other
// goroutines during shutdown.
type Publisher interface {
	// Publish sends payload on the given topic. json marks the payload as a
	// JSON document rather than raw binary (implementations use it for
	// content-type metadata where the protocol has any). qos is the MQTT
	// quality-of-service level; non-MQTT backends ignore it.
	Publish(ctx context.Context, topic string, payload []byte, json bool, qos byte) error

	// Close releases the connection. Calling Close more than once is safe.
	Close() error
}

// Connected is implemented by publishers that can report link state, used
// by readiness checks.
type Connected interface {
	Connected() bool
}
