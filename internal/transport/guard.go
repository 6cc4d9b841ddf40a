package transport

import (
	"context"

	"github.com/earshot-dev/earshot/internal/resilience"
)

// Guarded wraps a Publisher in a circuit breaker. While the breaker is open,
// publishes fail immediately with [resilience.ErrCircuitOpen] instead of
// waiting out a broker timeout on every frame of a stream.
type Guarded struct {
	inner   Publisher
	breaker *resilience.CircuitBreaker
}

var _ Publisher = (*Guarded)(nil)

// Guard wraps pub with the given breaker. A nil breaker gets defaults.
func Guard(pub Publisher, breaker *resilience.CircuitBreaker) *Guarded {
	if breaker == nil {
		breaker = resilience.New(resilience.Config{Name: "transport"})
	}
	return &Guarded{inner: pub, breaker: breaker}
}

// Publish forwards through the breaker.
func (g *Guarded) Publish(ctx context.Context, topic string, payload []byte, json bool, qos byte) error {
	return g.breaker.Execute(func() error {
		return g.inner.Publish(ctx, topic, payload, json, qos)
	})
}

// Connected reports the inner publisher's link state when it exposes one,
// gated on the breaker not being open.
func (g *Guarded) Connected() bool {
	if g.breaker.State() == resilience.StateOpen {
		return false
	}
	if c, ok := g.inner.(Connected); ok {
		return c.Connected()
	}
	return true
}

// Close closes the inner publisher.
func (g *Guarded) Close() error { return g.inner.Close() }
