package detect

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/earshot-dev/earshot/pkg/classify"
)

const (
	// defaultSpeechThreshold is the score a human-speech category must
	// exceed for the segment to count as genuine speech.
	defaultSpeechThreshold = 0.5

	// defaultClassifyThreshold is the score a non-speech category must
	// exceed to appear in the classification output.
	defaultClassifyThreshold = 0.3
)

// defaultSpeechCategories are the AudioSet labels that indicate human
// speech.
var defaultSpeechCategories = []string{
	"Speech",
	"Male speech, man speaking",
	"Female speech, woman speaking",
	"Child speech, kid speaking",
	"Conversation",
	"Narration, monologue",
}

// defaultIgnoreCategories are labels excluded from both speech detection and
// classification output.
var defaultIgnoreCategories = []string{
	"Static",
	"Silence",
	"White noise",
}

// Classification is one non-speech category detected in an utterance.
type Classification struct {
	// Category is the classifier's label for the sound.
	Category string

	// Probability is the classifier's score, deduplicated per category by
	// keeping the maximum seen within one utterance.
	Probability float64
}

// GateConfig tunes the speech/noise gate.
type GateConfig struct {
	// SpeechThreshold gates the human-speech decision. Zero selects the
	// default.
	SpeechThreshold float64

	// ClassifyThreshold gates classification output. Zero selects the
	// default.
	ClassifyThreshold float64

	// SpeechCategories overrides the human-speech label set. Nil selects
	// the defaults.
	SpeechCategories []string

	// IgnoreCategories overrides the skip-list. Nil selects the defaults.
	IgnoreCategories []string

	// FailOpen controls behaviour when the classifier is unavailable
	// (failed to start or errors at classification time): true treats
	// VAD-confirmed segments as speech, false suppresses dispatch entirely.
	FailOpen bool
}

// SpeechGate wraps a categorical classifier and decides, per completed
// utterance, whether the audio is human speech at all and which non-speech
// categories are present.
//
// The human-speech and ignore label sets are resolved once at construction:
// into class-index sets when the backend exposes its label map, falling back
// to name sets otherwise. No per-utterance string table lookups.
type SpeechGate struct {
	classifier classify.Classifier
	cfg        GateConfig

	speechIdx    map[int]struct{}
	ignoreIdx    map[int]struct{}
	speechByName map[string]struct{}
	ignoreByName map[string]struct{}

	// ready is set once Start succeeded; when unset the gate applies the
	// FailOpen policy instead of classifying. Atomic because readiness
	// probes read it off the callback path.
	ready atomic.Bool
}

// NewSpeechGate creates a gate over the given classifier. A nil classifier
// is valid and means classification is unavailable; the FailOpen policy then
// applies to every segment.
func NewSpeechGate(classifier classify.Classifier, cfg GateConfig) *SpeechGate {
	if cfg.SpeechThreshold <= 0 {
		cfg.SpeechThreshold = defaultSpeechThreshold
	}
	if cfg.ClassifyThreshold <= 0 {
		cfg.ClassifyThreshold = defaultClassifyThreshold
	}
	if cfg.SpeechCategories == nil {
		cfg.SpeechCategories = defaultSpeechCategories
	}
	if cfg.IgnoreCategories == nil {
		cfg.IgnoreCategories = defaultIgnoreCategories
	}

	g := &SpeechGate{
		classifier:   classifier,
		cfg:          cfg,
		speechByName: toSet(cfg.SpeechCategories),
		ignoreByName: toSet(cfg.IgnoreCategories),
	}

	// Resolve label names into index sets when the backend can enumerate
	// its label map.
	if cats, ok := classifier.(classify.Categories); ok {
		labels := cats.Categories()
		if len(labels) > 0 {
			g.speechIdx = make(map[int]struct{})
			g.ignoreIdx = make(map[int]struct{})
			for i, label := range labels {
				if _, ok := g.speechByName[label]; ok {
					g.speechIdx[i] = struct{}{}
				}
				if _, ok := g.ignoreByName[label]; ok {
					g.ignoreIdx[i] = struct{}{}
				}
			}
		}
	}
	return g
}

// Start starts the underlying classifier. Failure is absorbed: the gate
// logs, stays not-ready, and Evaluate applies the FailOpen policy. The
// returned error reports the underlying cause for callers that want it, but
// the gate remains usable either way.
func (g *SpeechGate) Start(ctx context.Context) error {
	if g.classifier == nil {
		return nil
	}
	if err := g.classifier.Start(ctx); err != nil {
		slog.Warn("speech gate: classifier start failed, applying fail policy",
			"err", err, "fail_open", g.cfg.FailOpen)
		return fmt.Errorf("detect: start classifier: %w", err)
	}
	g.ready.Store(true)
	return nil
}

// Ready reports whether classification is available: either the classifier
// started successfully, or there is no classifier and gating is a policy
// decision only.
func (g *SpeechGate) Ready() bool {
	return g.classifier == nil || g.ready.Load()
}

// Close closes the underlying classifier.
func (g *SpeechGate) Close() error {
	g.ready.Store(false)
	if g.classifier == nil {
		return nil
	}
	return g.classifier.Close()
}

// Evaluate classifies one completed utterance. It returns whether the
// segment is human speech and the deduplicated non-speech classifications.
//
// Empty audio is a no-op: not speech, no classifications, no error. When the
// classifier is unavailable or fails, the FailOpen policy decides the speech
// verdict and no classifications are produced.
func (g *SpeechGate) Evaluate(ctx context.Context, samples []float32, sampleRate int) (bool, []Classification) {
	if len(samples) == 0 {
		return false, nil
	}
	if g.classifier == nil || !g.ready.Load() {
		return g.cfg.FailOpen, nil
	}

	scores, err := g.classifier.Classify(ctx, samples, sampleRate)
	if err != nil {
		slog.Error("speech gate: classification failed, applying fail policy",
			"err", err, "fail_open", g.cfg.FailOpen)
		return g.cfg.FailOpen, nil
	}

	matchSpeech := false
	best := make(map[string]float64)
	order := make([]string, 0, 4)

	for _, s := range scores {
		if g.ignored(s) {
			continue
		}
		if g.isSpeechCategory(s) {
			if s.Probability > g.cfg.SpeechThreshold {
				matchSpeech = true
			}
			continue
		}
		if s.Probability > g.cfg.ClassifyThreshold {
			if prev, seen := best[s.Category]; !seen {
				best[s.Category] = s.Probability
				order = append(order, s.Category)
			} else if s.Probability > prev {
				best[s.Category] = s.Probability
			}
		}
	}

	var list []Classification
	for _, cat := range order {
		list = append(list, Classification{Category: cat, Probability: best[cat]})
	}
	return matchSpeech, list
}

func (g *SpeechGate) ignored(s classify.Score) bool {
	if g.ignoreIdx != nil {
		_, ok := g.ignoreIdx[s.Index]
		return ok
	}
	_, ok := g.ignoreByName[s.Category]
	return ok
}

func (g *SpeechGate) isSpeechCategory(s classify.Score) bool {
	if g.speechIdx != nil {
		_, ok := g.speechIdx[s.Index]
		return ok
	}
	_, ok := g.speechByName[s.Category]
	return ok
}

func toSet(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return set
}
