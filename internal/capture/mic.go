//go:build cgo

package capture

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"
)

// Mic captures from a PortAudio input device. Frames are delivered from the
// PortAudio stream callback goroutine, one at a time, in capture order.
type Mic struct {
	sampleRate int
	frameSize  int
	device     string

	mu      sync.Mutex
	stream  *portaudio.Stream
	paused  bool
	running bool
	closed  bool
	started time.Time
}

var _ Source = (*Mic)(nil)

// NewMic creates a microphone source producing frameSize-sample mono frames
// at the given rate. A non-empty device selects an input device by
// case-insensitive name substring; empty picks the system default. PortAudio
// is initialised lazily on Start.
func NewMic(sampleRate, frameSize int, device string) (*Mic, error) {
	if sampleRate <= 0 || frameSize <= 0 {
		return nil, fmt.Errorf("capture: invalid mic params rate=%d frame=%d", sampleRate, frameSize)
	}
	return &Mic{sampleRate: sampleRate, frameSize: frameSize, device: device}, nil
}

// Start opens the input stream and begins delivering frames.
func (m *Mic) Start(ctx context.Context, fn FrameFunc) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return fmt.Errorf("capture: mic closed")
	}
	if m.running {
		return fmt.Errorf("capture: mic already running")
	}

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("capture: initialise portaudio: %w", err)
	}

	m.started = time.Now()
	cb := func(in []float32) {
		m.mu.Lock()
		paused := m.paused || m.closed
		started := m.started
		m.mu.Unlock()
		if paused {
			return
		}
		if ctx.Err() != nil {
			return
		}
		fn(in, time.Since(started))
	}

	stream, err := m.openStream(cb)
	if err != nil {
		_ = portaudio.Terminate()
		return err
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		_ = portaudio.Terminate()
		return fmt.Errorf("capture: start stream: %w", err)
	}

	m.stream = stream
	m.running = true
	slog.Info("microphone capture started",
		"sample_rate", m.sampleRate, "frame_size", m.frameSize, "device", m.device)

	// Release the device when the context ends.
	go func() {
		<-ctx.Done()
		_ = m.Close()
	}()
	return nil
}

// openStream opens either the default input stream or the first input device
// whose name matches the configured substring.
func (m *Mic) openStream(cb func([]float32)) (*portaudio.Stream, error) {
	if m.device == "" {
		stream, err := portaudio.OpenDefaultStream(1, 0, float64(m.sampleRate), m.frameSize, cb)
		if err != nil {
			return nil, fmt.Errorf("capture: open default stream: %w", err)
		}
		return stream, nil
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("capture: list devices: %w", err)
	}
	want := strings.ToLower(m.device)
	for _, dev := range devices {
		if dev.MaxInputChannels < 1 || !strings.Contains(strings.ToLower(dev.Name), want) {
			continue
		}
		params := portaudio.LowLatencyParameters(dev, nil)
		params.Input.Channels = 1
		params.SampleRate = float64(m.sampleRate)
		params.FramesPerBuffer = m.frameSize
		stream, err := portaudio.OpenStream(params, cb)
		if err != nil {
			return nil, fmt.Errorf("capture: open stream on %q: %w", dev.Name, err)
		}
		return stream, nil
	}
	return nil, fmt.Errorf("capture: no input device matching %q", m.device)
}

// Pause suspends frame delivery. The device stays open; PortAudio keeps
// filling its buffers, but frames are dropped at the callback.
func (m *Mic) Pause() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paused = true
}

// Resume restarts frame delivery after Pause.
func (m *Mic) Resume() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paused = false
}

// Close stops the stream and releases the device.
func (m *Mic) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	if !m.running {
		return nil
	}
	m.running = false

	var firstErr error
	if err := m.stream.Stop(); err != nil {
		firstErr = fmt.Errorf("capture: stop stream: %w", err)
	}
	if err := m.stream.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("capture: close stream: %w", err)
	}
	if err := portaudio.Terminate(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("capture: terminate portaudio: %w", err)
	}
	slog.Info("microphone capture stopped")
	return firstErr
}
