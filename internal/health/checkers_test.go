package health

import (
	"context"
	"testing"

	"github.com/earshot-dev/earshot/internal/transport/mock"
)

func TestTransportChecker(t *testing.T) {
	pub := mock.NewPublisher()

	c := Transport(pub)
	if c.Name != "transport" {
		t.Errorf("name = %q, want transport", c.Name)
	}
	if err := c.Check(context.Background()); err != nil {
		t.Errorf("connected publisher failed check: %v", err)
	}

	pub.ConnectedResult = false
	if err := c.Check(context.Background()); err == nil {
		t.Error("disconnected publisher passed check")
	}
}

func TestDetectorChecker(t *testing.T) {
	running := false
	c := Detector(func() bool { return running })

	if err := c.Check(context.Background()); err == nil {
		t.Error("stopped detector passed check")
	}
	running = true
	if err := c.Check(context.Background()); err != nil {
		t.Errorf("running detector failed check: %v", err)
	}
}

func TestClassifierChecker(t *testing.T) {
	ready := false
	c := Classifier(func() bool { return ready })

	if err := c.Check(context.Background()); err == nil {
		t.Error("unloaded classifier passed check")
	}
	ready = true
	if err := c.Check(context.Background()); err != nil {
		t.Errorf("loaded classifier failed check: %v", err)
	}
}
