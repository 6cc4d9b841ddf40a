// Package eventlog persists pipeline events as append-only JSON lines in a
// local file, suitable for debugging a detection session after the fact.
//
// The sink methods are called from the serialized frame-delivery path and
// must not block, so records are handed to a writer goroutine through a
// buffered channel. When the channel is full the record is dropped and
// counted; disk stalls never back-pressure the audio pipeline.
package eventlog

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/earshot-dev/earshot/internal/detect"
)

// Compile-time interface check.
var _ detect.EventSink = (*FileSink)(nil)

// Record is a single pipeline event written to the log.
type Record struct {
	Timestamp time.Time `json:"timestamp"`
	SessionID string    `json:"session_id"`
	Event     string    `json:"event"`
	ChunkID   string    `json:"chunk_id,omitempty"`

	// Active accompanies "listening" events.
	Active *bool `json:"active,omitempty"`

	// Speaking and Probability accompany "speaking" events.
	Speaking    *bool   `json:"speaking,omitempty"`
	Probability float64 `json:"probability,omitempty"`

	// Categories accompanies "classified" events.
	Categories []categoryScore `json:"categories,omitempty"`

	// AudioBytes accompanies "speech" events with the WAV payload size.
	AudioBytes int `json:"audio_bytes,omitempty"`
}

type categoryScore struct {
	Category    string  `json:"category"`
	Probability float64 `json:"probability"`
}

// FileSink writes pipeline events as JSON lines to a local file. The file is
// created if it does not exist and appended to otherwise.
type FileSink struct {
	sessionID string
	records   chan Record

	mu      sync.Mutex
	dropped int
	closed  bool
	done    chan struct{}
}

// queueDepth bounds how many records may be pending on disk writes.
const queueDepth = 256

// NewFileSink opens (or creates) the log at path and starts the writer
// goroutine. Call Close to flush and release the file.
func NewFileSink(path, sessionID string) (*FileSink, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("eventlog: open file: %w", err)
	}

	s := &FileSink{
		sessionID: sessionID,
		records:   make(chan Record, queueDepth),
		done:      make(chan struct{}),
	}
	go s.writeLoop(f)
	return s, nil
}

func (s *FileSink) writeLoop(f *os.File) {
	defer close(s.done)
	defer f.Close()

	enc := json.NewEncoder(f)
	for rec := range s.records {
		if err := enc.Encode(rec); err != nil {
			slog.Warn("event log write failed", "err", err)
		}
	}
}

// emit queues one record, dropping it when the writer is behind.
func (s *FileSink) emit(rec Record) {
	rec.Timestamp = time.Now().UTC()
	rec.SessionID = s.sessionID

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.records <- rec:
	default:
		s.dropped++
	}
}

// Listening records capture lifecycle transitions.
func (s *FileSink) Listening(active bool) {
	s.emit(Record{Event: "listening", Active: &active})
}

// SegmentStarted records a speech onset.
func (s *FileSink) SegmentStarted(chunkID string) {
	s.emit(Record{Event: "segment_started", ChunkID: chunkID})
}

// Speaking records a probability filter verdict.
func (s *FileSink) Speaking(v detect.Verdict) {
	s.emit(Record{Event: "speaking", Speaking: &v.Speaking, Probability: v.Probability})
}

// Classified records the non-speech categories found in an utterance.
func (s *FileSink) Classified(results []detect.Classification) {
	scores := make([]categoryScore, len(results))
	for i, r := range results {
		scores[i] = categoryScore{Category: r.Category, Probability: r.Probability}
	}
	s.emit(Record{Event: "classified", Categories: scores})
}

// Speech records a confirmed utterance. The audio itself is not logged, only
// its correlation token and payload size.
func (s *FileSink) Speech(ev detect.SpeechEvent) {
	s.emit(Record{Event: "speech", ChunkID: ev.ChunkID, AudioBytes: len(ev.WAV)})
}

// Dropped reports how many records were discarded because the writer could
// not keep up.
func (s *FileSink) Dropped() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// Close flushes pending records and releases the file. Calling Close more
// than once is safe.
func (s *FileSink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.records)
	s.mu.Unlock()

	<-s.done
	return nil
}
