//go:build cgo

// Package onnx implements a classify.Classifier backed by a YAMNet-style
// ONNX audio event model.
//
// The model is expected to take a mono float32 waveform at 16kHz and emit a
// [frames, classes] score matrix; scores are mean-pooled over frames into a
// single score per class. The class label map is loaded from a CSV file in
// the AudioSet class-map format (index, mid, display name).
package onnx

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/earshot-dev/earshot/pkg/classify"
)

// requiredSampleRate is the only input rate YAMNet-style models accept.
const requiredSampleRate = 16000

// scoreFloor drops categories the model scored effectively zero, keeping
// Classify results small.
const scoreFloor = 0.01

// ortInit guards the process-wide ONNX Runtime environment initialisation.
var ortInit sync.Once

// Config locates the model and its label map on disk.
type Config struct {
	// ModelPath is the ONNX model file.
	ModelPath string

	// ClassMapPath is the AudioSet-format CSV mapping class indices to names.
	ClassMapPath string

	// LibraryPath optionally points at the ONNX Runtime shared library;
	// empty means the platform default lookup.
	LibraryPath string

	// InputName and OutputName override the model's tensor names. Defaults:
	// "waveform" and "scores".
	InputName  string
	OutputName string
}

// Classifier scores audio with an ONNX audio event model.
type Classifier struct {
	cfg     Config
	labels  []string
	session *ort.DynamicAdvancedSession
	started bool
}

var _ classify.Classifier = (*Classifier)(nil)
var _ classify.Categories = (*Classifier)(nil)

// New creates a Classifier from the given config. The model itself is not
// loaded until Start.
func New(cfg Config) (*Classifier, error) {
	if cfg.ModelPath == "" {
		return nil, errors.New("onnx: model path required")
	}
	if cfg.ClassMapPath == "" {
		return nil, errors.New("onnx: class map path required")
	}
	if cfg.InputName == "" {
		cfg.InputName = "waveform"
	}
	if cfg.OutputName == "" {
		cfg.OutputName = "scores"
	}

	labels, err := loadClassMap(cfg.ClassMapPath)
	if err != nil {
		return nil, err
	}
	return &Classifier{cfg: cfg, labels: labels}, nil
}

// Categories returns the loaded label map, index-ordered.
func (c *Classifier) Categories() []string {
	out := make([]string, len(c.labels))
	copy(out, c.labels)
	return out
}

// Start loads the ONNX model. No-op if already started.
func (c *Classifier) Start(_ context.Context) error {
	if c.started {
		return nil
	}

	if c.cfg.LibraryPath != "" {
		ort.SetSharedLibraryPath(c.cfg.LibraryPath)
	}
	var initErr error
	ortInit.Do(func() {
		if err := ort.InitializeEnvironment(); err != nil {
			initErr = fmt.Errorf("onnx: initialise onnx runtime: %w", err)
		}
	})
	if initErr != nil {
		return initErr
	}

	sess, err := ort.NewDynamicAdvancedSession(
		c.cfg.ModelPath,
		[]string{c.cfg.InputName},
		[]string{c.cfg.OutputName},
		nil,
	)
	if err != nil {
		return fmt.Errorf("onnx: create session: %w", err)
	}
	c.session = sess
	c.started = true
	return nil
}

// Classify runs the model over the full buffer and returns mean-pooled
// per-class scores above the internal floor, ordered by descending
// probability.
func (c *Classifier) Classify(ctx context.Context, samples []float32, sampleRate int) ([]classify.Score, error) {
	if !c.started {
		return nil, errors.New("onnx: classifier not started")
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("onnx: %w", err)
	}
	if sampleRate != requiredSampleRate {
		return nil, fmt.Errorf("onnx: sample rate %d, want %d", sampleRate, requiredSampleRate)
	}
	if len(samples) == 0 {
		return nil, nil
	}

	input, err := ort.NewTensor(ort.NewShape(int64(len(samples))), samples)
	if err != nil {
		return nil, fmt.Errorf("onnx: create input tensor: %w", err)
	}
	defer input.Destroy()

	outputs := []ort.Value{nil}
	if err := c.session.Run([]ort.Value{input}, outputs); err != nil {
		return nil, fmt.Errorf("onnx: inference: %w", err)
	}
	out, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, errors.New("onnx: unexpected output tensor type")
	}
	defer out.Destroy()

	return c.pool(out)
}

// pool mean-pools a [frames, classes] score matrix into per-class scores.
func (c *Classifier) pool(scores *ort.Tensor[float32]) ([]classify.Score, error) {
	shape := scores.GetShape()
	if len(shape) != 2 || int(shape[1]) != len(c.labels) {
		return nil, fmt.Errorf("onnx: unexpected score shape %v for %d classes", shape, len(c.labels))
	}
	frames, classes := int(shape[0]), int(shape[1])
	if frames == 0 {
		return nil, nil
	}

	data := scores.GetData()
	pooled := make([]float64, classes)
	for f := range frames {
		row := data[f*classes : (f+1)*classes]
		for i, v := range row {
			pooled[i] += float64(v)
		}
	}

	var result []classify.Score
	for i, sum := range pooled {
		p := sum / float64(frames)
		if p < scoreFloor {
			continue
		}
		result = append(result, classify.Score{Index: i, Category: c.labels[i], Probability: p})
	}
	sort.Slice(result, func(a, b int) bool { return result[a].Probability > result[b].Probability })
	return result, nil
}

// Close releases the model session. Safe to call more than once; a closed
// classifier may be started again, which reloads the model.
func (c *Classifier) Close() error {
	if !c.started {
		return nil
	}
	c.started = false
	sess := c.session
	c.session = nil
	if sess != nil {
		return sess.Destroy()
	}
	return nil
}

// loadClassMap parses an AudioSet class-map CSV: header row, then
// index, mid, display name.
func loadClassMap(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("onnx: open class map: %w", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("onnx: parse class map: %w", err)
	}
	if len(rows) < 2 {
		return nil, errors.New("onnx: class map empty")
	}

	labels := make([]string, len(rows)-1)
	for _, row := range rows[1:] {
		if len(row) < 3 {
			return nil, fmt.Errorf("onnx: malformed class map row %v", row)
		}
		idx, err := strconv.Atoi(row[0])
		if err != nil || idx < 0 || idx >= len(labels) {
			return nil, fmt.Errorf("onnx: bad class index %q", row[0])
		}
		labels[idx] = row[2]
	}
	return labels, nil
}
