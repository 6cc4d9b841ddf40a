package health

import (
	"context"
	"errors"

	"github.com/earshot-dev/earshot/internal/transport"
)

// Transport returns a checker that fails while the publisher's broker link
// is down. Publishers that cannot report link state always pass.
func Transport(pub transport.Publisher) Checker {
	return Checker{
		Name: "transport",
		Check: func(_ context.Context) error {
			c, ok := pub.(transport.Connected)
			if !ok {
				return nil
			}
			if !c.Connected() {
				return errors.New("not connected to broker")
			}
			return nil
		},
	}
}

// Detector returns a checker that fails while the detection pipeline is not
// listening.
func Detector(running func() bool) Checker {
	return Checker{
		Name: "detector",
		Check: func(_ context.Context) error {
			if !running() {
				return errors.New("detector not running")
			}
			return nil
		},
	}
}

// Classifier returns a checker that fails while the audio event classifier
// is configured but not loaded.
func Classifier(ready func() bool) Checker {
	return Checker{
		Name: "classifier",
		Check: func(_ context.Context) error {
			if !ready() {
				return errors.New("classifier not loaded")
			}
			return nil
		},
	}
}
