// Package energy implements a pure-Go VAD engine based on RMS signal energy.
//
// It is far less accurate than a neural detector but has no model or cgo
// dependency, making it the always-available fallback backend and the
// default for tests and development. The per-frame speech probability is a
// saturating function of frame energy relative to a pivot level, so the
// output lands in the same [0, 1] scale the pipeline expects from neural
// backends.
package energy

import (
	"errors"
	"fmt"

	"github.com/earshot-dev/earshot/pkg/audio"
	"github.com/earshot-dev/earshot/pkg/vad"
)

// defaultPivot is the RMS level mapped to probability 0.5. Chosen for close
// microphone speech at 16kHz; quiet rooms sit well below it.
const defaultPivot = 0.015

// Engine creates RMS-based VAD sessions.
type Engine struct {
	// Pivot overrides the RMS level mapped to probability 0.5. Zero means
	// the default.
	Pivot float64
}

var _ vad.Engine = (*Engine)(nil)

// NewSession creates an energy VAD session.
func (e *Engine) NewSession(cfg vad.Config) (vad.Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	pivot := e.Pivot
	if pivot <= 0 {
		pivot = defaultPivot
	}
	return &session{
		cfg:       cfg,
		pivot:     pivot,
		segmenter: vad.NewSegmenter(cfg),
	}, nil
}

type session struct {
	cfg       vad.Config
	pivot     float64
	segmenter *vad.Segmenter
	closed    bool
}

var _ vad.Session = (*session)(nil)

var errClosed = errors.New("energy: session closed")

func (s *session) Process(frame []float32) (vad.Result, error) {
	if s.closed {
		return vad.Result{}, errClosed
	}
	if len(frame) != s.cfg.FrameSize {
		return vad.Result{}, fmt.Errorf("energy: frame size %d, want %d", len(frame), s.cfg.FrameSize)
	}

	level := audio.RMS(frame)
	p := level / (level + s.pivot)

	event, segment := s.segmenter.Push(frame, p)
	return vad.Result{
		IsSpeech:  p,
		NotSpeech: 1 - p,
		Event:     event,
		Segment:   segment,
	}, nil
}

func (s *session) Reset() {
	if s.closed {
		return
	}
	s.segmenter.Reset()
}

func (s *session) Close() error {
	s.closed = true
	return nil
}
