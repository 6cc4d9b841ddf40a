package detect

import (
	"context"
	"errors"
	"testing"

	"github.com/earshot-dev/earshot/pkg/classify"
	"github.com/earshot-dev/earshot/pkg/classify/mock"
)

func testAudio(n int) []float32 {
	a := make([]float32, n)
	for i := range a {
		a[i] = 0.1
	}
	return a
}

func TestGatePassesSpeech(t *testing.T) {
	cl := &mock.Classifier{Scores: []classify.Score{
		{Index: 0, Category: "Speech", Probability: 0.8},
		{Index: 137, Category: "Music", Probability: 0.2},
	}}
	g := NewSpeechGate(cl, GateConfig{})
	if err := g.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	matchSpeech, list := g.Evaluate(context.Background(), testAudio(160), 16000)
	if !matchSpeech {
		t.Error("matchSpeech = false for a confident Speech score")
	}
	if len(list) != 0 {
		t.Errorf("classifications = %v, want none (Music below threshold)", list)
	}
}

func TestGateClassificationDedupKeepsMax(t *testing.T) {
	cl := &mock.Classifier{Scores: []classify.Score{
		{Index: 137, Category: "Music", Probability: 0.4},
		{Index: 138, Category: "Music", Probability: 0.6},
	}}
	g := NewSpeechGate(cl, GateConfig{})
	if err := g.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	matchSpeech, list := g.Evaluate(context.Background(), testAudio(160), 16000)
	if matchSpeech {
		t.Error("matchSpeech = true with no speech category")
	}
	if len(list) != 1 {
		t.Fatalf("classifications = %d entries, want 1", len(list))
	}
	if list[0].Category != "Music" || list[0].Probability != 0.6 {
		t.Errorf("classification = %+v, want Music @ 0.6", list[0])
	}
}

func TestGateSkipListSuppressesEverything(t *testing.T) {
	cl := &mock.Classifier{Scores: []classify.Score{
		{Index: 506, Category: "Silence", Probability: 0.95},
		{Index: 509, Category: "Static", Probability: 0.7},
	}}
	g := NewSpeechGate(cl, GateConfig{})
	if err := g.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	matchSpeech, list := g.Evaluate(context.Background(), testAudio(160), 16000)
	if matchSpeech {
		t.Error("matchSpeech = true for skip-listed categories")
	}
	if len(list) != 0 {
		t.Errorf("classifications = %v, want none", list)
	}
}

func TestGateResolvesIndexSetsFromLabels(t *testing.T) {
	labels := []string{"Speech", "Music", "Silence"}
	cl := &mock.Classifier{
		Labels: labels,
		// The category strings here are deliberately wrong: with the
		// label map available the gate must key off indices alone.
		Scores: []classify.Score{
			{Index: 0, Category: "mangled", Probability: 0.9},
		},
	}
	g := NewSpeechGate(cl, GateConfig{})
	if err := g.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	matchSpeech, _ := g.Evaluate(context.Background(), testAudio(160), 16000)
	if !matchSpeech {
		t.Error("index 0 (Speech) not recognised via the resolved index set")
	}
}

func TestGateEmptyAudioIsNoOp(t *testing.T) {
	cl := &mock.Classifier{Scores: []classify.Score{
		{Index: 0, Category: "Speech", Probability: 0.9},
	}}
	g := NewSpeechGate(cl, GateConfig{})
	if err := g.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	matchSpeech, list := g.Evaluate(context.Background(), nil, 16000)
	if matchSpeech || list != nil {
		t.Errorf("Evaluate(empty) = (%v, %v), want (false, nil)", matchSpeech, list)
	}
	if len(cl.ClassifyCalls) != 0 {
		t.Error("classifier invoked for empty audio")
	}
}

func TestGateFailPolicy(t *testing.T) {
	t.Run("start failure fail-open", func(t *testing.T) {
		cl := &mock.Classifier{StartErr: errors.New("model missing")}
		g := NewSpeechGate(cl, GateConfig{FailOpen: true})
		if err := g.Start(context.Background()); err == nil {
			t.Fatal("Start returned nil for a failing classifier")
		}

		matchSpeech, list := g.Evaluate(context.Background(), testAudio(160), 16000)
		if !matchSpeech {
			t.Error("fail-open gate rejected a VAD-confirmed segment")
		}
		if list != nil {
			t.Errorf("classifications = %v, want nil", list)
		}
	})

	t.Run("start failure fail-closed", func(t *testing.T) {
		cl := &mock.Classifier{StartErr: errors.New("model missing")}
		g := NewSpeechGate(cl, GateConfig{FailOpen: false})
		_ = g.Start(context.Background())

		matchSpeech, _ := g.Evaluate(context.Background(), testAudio(160), 16000)
		if matchSpeech {
			t.Error("fail-closed gate passed a segment without classification")
		}
	})

	t.Run("classify error applies policy", func(t *testing.T) {
		cl := &mock.Classifier{ClassifyErr: errors.New("inference failed")}
		g := NewSpeechGate(cl, GateConfig{FailOpen: true})
		if err := g.Start(context.Background()); err != nil {
			t.Fatalf("Start: %v", err)
		}

		matchSpeech, list := g.Evaluate(context.Background(), testAudio(160), 16000)
		if !matchSpeech || list != nil {
			t.Errorf("Evaluate = (%v, %v), want (true, nil)", matchSpeech, list)
		}
	})

	t.Run("nil classifier", func(t *testing.T) {
		g := NewSpeechGate(nil, GateConfig{FailOpen: true})
		if err := g.Start(context.Background()); err != nil {
			t.Fatalf("Start: %v", err)
		}
		matchSpeech, _ := g.Evaluate(context.Background(), testAudio(160), 16000)
		if !matchSpeech {
			t.Error("nil-classifier gate with fail-open rejected a segment")
		}
	})
}

func TestGateCustomCategories(t *testing.T) {
	cl := &mock.Classifier{Scores: []classify.Score{
		{Index: 3, Category: "Shout", Probability: 0.7},
		{Index: 9, Category: "Hum", Probability: 0.5},
	}}
	g := NewSpeechGate(cl, GateConfig{
		SpeechCategories: []string{"Shout"},
		IgnoreCategories: []string{"Hum"},
	})
	if err := g.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	matchSpeech, list := g.Evaluate(context.Background(), testAudio(160), 16000)
	if !matchSpeech {
		t.Error("custom speech category not recognised")
	}
	if len(list) != 0 {
		t.Errorf("classifications = %v, want none (Hum ignored)", list)
	}
}
