package detect

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/earshot-dev/earshot/internal/capture"
	"github.com/earshot-dev/earshot/internal/observe"
	"github.com/earshot-dev/earshot/internal/transport"
	"github.com/earshot-dev/earshot/pkg/audio"
	"github.com/earshot-dev/earshot/pkg/vad"
)

// SegmentSink receives the serialized per-frame callbacks derived from a VAD
// session. The VAD loop is the sole driver and invokes the methods strictly
// in order: OnSegmentStart fires before the onset frame's OnFrame,
// OnSegmentEnd fires after the closing frame's OnFrame. No two calls run
// concurrently.
type SegmentSink interface {
	// OnSegmentStart fires when the VAD confirms a speech onset.
	OnSegmentStart()

	// OnFrame fires once per captured frame with the frame samples and the
	// VAD's speech / not-speech probabilities.
	OnFrame(frame []float32, isSpeech, notSpeech float64)

	// OnSegmentEnd fires when a segment closes. audio holds the full
	// segment including pre-roll; it is nil for a misfire (a segment
	// discarded for being shorter than the configured minimum).
	OnSegmentEnd(audio []float32)
}

// Dispatch translates one per-frame VAD result into SegmentSink calls,
// preserving the start → frame → end ordering contract.
func Dispatch(res vad.Result, frame []float32, sink SegmentSink) {
	if res.Event == vad.EventSegmentStart {
		sink.OnSegmentStart()
	}
	sink.OnFrame(frame, res.IsSpeech, res.NotSpeech)
	if res.Event == vad.EventSegmentEnd {
		sink.OnSegmentEnd(res.Segment)
	}
}

// streamMarker is the JSON completion marker closing a streamed utterance.
// The backend uses IsSpeech to decide whether to keep or discard the frames
// it buffered for this chunk.
type streamMarker struct {
	IsSpeech bool `json:"isSpeech"`
}

// DetectorConfig tunes one Detector instance.
type DetectorConfig struct {
	// SampleRate is the capture sample rate in Hz.
	SampleRate int

	// VAD configures the underlying VAD session.
	VAD vad.Config

	// Streaming enables per-frame forwarding through the SpeechStreamer.
	// When false, confirmed utterances are dispatched as one-shot WAV
	// payloads instead.
	Streaming bool

	// QoS is the MQTT quality-of-service level for all publishes.
	QoS byte
}

// Deps are the Detector's collaborators.
type Deps struct {
	// Engine creates the VAD session on Start. Required.
	Engine vad.Engine

	// Gate decides per utterance whether the audio is human speech.
	// Required (construct with a nil classifier to disable gating).
	Gate *SpeechGate

	// Source delivers capture frames. Optional; consumed by the first
	// Start. Later Starts acquire a fresh source via OpenSource, since
	// Stop releases the device.
	Source capture.Source

	// OpenSource acquires a capture source when none is available.
	OpenSource func(ctx context.Context) (capture.Source, error)

	// Publisher dispatches stream frames, markers, and utterances.
	// Required.
	Publisher transport.Publisher

	// Topics builds the publish topic names.
	Topics transport.Topics

	// Sink receives local pipeline events. Nil selects NopSink.
	Sink EventSink

	// Encoder optionally compresses stream frames as Opus packets. Nil
	// streams raw 16-bit PCM.
	Encoder *audio.OpusEncoder

	// Metrics records pipeline telemetry. Nil selects the package default.
	Metrics *observe.Metrics
}

// Detector manages the capture → detect → classify → dispatch lifecycle for
// one microphone session.
//
// All segment state (chunk identifier, streamer, probability filter) is
// touched only from the serialized capture callback path; the mutex guards
// the lifecycle transitions (Start/Stop) and the chunk identifier, which
// Stop clears from outside the callback path.
type Detector struct {
	cfg  DetectorConfig
	deps Deps

	filter   *FrameProbabilityFilter
	streamer *SpeechStreamer
	entropy  *ulid.MonotonicEntropy

	mu        sync.Mutex
	running   bool
	source    capture.Source
	session   vad.Session
	chunkID   string
	inSegment bool
	ctx       context.Context
	cancel    context.CancelFunc

	wasStreaming bool
}

// NewDetector creates a stopped detector. Call Start to begin listening.
func NewDetector(cfg DetectorConfig, deps Deps) (*Detector, error) {
	if deps.Engine == nil {
		return nil, errors.New("detect: nil VAD engine")
	}
	if deps.Gate == nil {
		return nil, errors.New("detect: nil speech gate")
	}
	if deps.Publisher == nil {
		return nil, errors.New("detect: nil publisher")
	}
	if deps.Source == nil && deps.OpenSource == nil {
		return nil, errors.New("detect: no capture source and no way to open one")
	}
	if deps.Sink == nil {
		deps.Sink = NopSink{}
	}
	if deps.Metrics == nil {
		deps.Metrics = observe.DefaultMetrics()
	}
	return &Detector{
		cfg:      cfg,
		deps:     deps,
		filter:   NewFrameProbabilityFilter(0, nil),
		streamer: NewSpeechStreamer(),
		entropy:  ulid.Monotonic(rand.Reader, 0),
	}, nil
}

// Start begins listening. It is idempotent: a running detector is stopped
// first. Classifier startup is best-effort (a failure is logged and gating
// falls back to the configured fail policy); a VAD session failure aborts
// the start and is returned.
func (d *Detector) Start(ctx context.Context) error {
	d.Stop()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)

	if err := d.deps.Gate.Start(ctx); err != nil {
		slog.Warn("detector: classifier unavailable", "err", err)
	}

	session, err := d.deps.Engine.NewSession(d.cfg.VAD)
	if err != nil {
		cancel()
		return fmt.Errorf("detect: start VAD session: %w", err)
	}

	source := d.deps.Source
	d.deps.Source = nil
	if source == nil {
		if d.deps.OpenSource == nil {
			cancel()
			_ = session.Close()
			return errors.New("detect: capture source already consumed and no OpenSource configured")
		}
		source, err = d.deps.OpenSource(ctx)
		if err != nil {
			cancel()
			_ = session.Close()
			return fmt.Errorf("detect: acquire capture source: %w", err)
		}
	}

	d.session = session
	d.source = source
	d.ctx = ctx
	d.cancel = cancel

	if err := source.Start(ctx, d.onCaptureFrame); err != nil {
		cancel()
		_ = session.Close()
		_ = source.Close()
		d.session = nil
		d.source = nil
		return fmt.Errorf("detect: start capture: %w", err)
	}

	d.running = true
	d.filter.Reset()
	d.streamer.Reset()
	d.wasStreaming = false

	d.deps.Metrics.ActiveDetectors.Add(ctx, 1)
	d.deps.Sink.Listening(true)
	slog.Info("detector started",
		"sample_rate", d.cfg.SampleRate,
		"streaming", d.cfg.Streaming,
	)
	return nil
}

// Stop tears the detector down: capture stops, the VAD session and
// classifier close, listeners are notified, and the chunk identifier is
// cleared. Idempotent; stopping a stopped detector leaves state equivalent
// to a fresh instance.
//
// Stop is not a barrier for a capture callback already in flight: such a
// callback may still run once, finds the cleared chunk identifier or a
// closed session, and drops its work.
func (d *Detector) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.chunkID = ""
	d.inSegment = false
	if !d.running {
		return
	}
	d.running = false

	if d.cancel != nil {
		d.cancel()
	}
	if d.source != nil {
		if err := d.source.Close(); err != nil {
			slog.Error("detector: close capture source", "err", err)
		}
		d.source = nil
	}
	if d.session != nil {
		if err := d.session.Close(); err != nil {
			slog.Error("detector: close VAD session", "err", err)
		}
		d.session = nil
	}
	if err := d.deps.Gate.Close(); err != nil {
		slog.Error("detector: close classifier", "err", err)
	}

	d.filter.Reset()
	d.streamer.Reset()
	d.wasStreaming = false
	if d.deps.Encoder != nil {
		// The stream is abandoned, not completed: discard the carry rather
		// than encode it.
		d.deps.Encoder.Reset()
	}

	d.deps.Metrics.ActiveDetectors.Add(context.Background(), -1)
	d.deps.Sink.Listening(false)
	slog.Info("detector stopped")
}

// Running reports whether the detector is currently listening.
func (d *Detector) Running() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}

// onCaptureFrame is the capture.FrameFunc: one VAD inference per frame, then
// the result fans out through the SegmentSink methods below.
func (d *Detector) onCaptureFrame(samples []float32, _ time.Duration) {
	d.mu.Lock()
	session := d.session
	ctx := d.ctx
	d.mu.Unlock()
	if session == nil {
		return
	}

	start := time.Now()
	res, err := session.Process(samples)
	if err != nil {
		// A closed session right after Stop is expected; anything else is
		// a real inference failure.
		slog.Debug("detector: VAD process failed", "err", err)
		d.deps.Metrics.RecordPipelineError(ctx, "vad")
		return
	}
	d.deps.Metrics.VADDuration.Record(ctx, time.Since(start).Seconds())
	d.deps.Metrics.FramesProcessed.Add(ctx, 1)

	Dispatch(res, samples, d)
}

// OnSegmentStart implements SegmentSink: restart the probability filter and
// establish the utterance's chunk identifier. An identifier already minted
// by an early streamer onset is kept so every frame of the utterance shares
// it; only OnSegmentEnd and Stop retire identifiers.
func (d *Detector) OnSegmentStart() {
	d.filter.MarkStart()

	d.mu.Lock()
	id := d.chunkID
	if id == "" {
		id = d.freshChunkLocked()
	}
	d.inSegment = true
	ctx := d.ctx
	d.mu.Unlock()

	d.deps.Metrics.SegmentsStarted.Add(ctx, 1)
	d.deps.Sink.SegmentStarted(id)
	slog.Debug("speech segment started", "chunk_id", id)
}

// OnFrame implements SegmentSink: forward stream frames when streaming, and
// feed the probability filter for UI verdicts. Verdicts never influence
// transport decisions.
func (d *Detector) OnFrame(frame []float32, isSpeech, notSpeech float64) {
	if d.cfg.Streaming {
		out := d.streamer.OnFrame(frame, isSpeech, notSpeech)
		closed := d.trackStreamState()
		for _, f := range out {
			d.publishStreamFrame(f)
		}
		if closed {
			d.finishStream()
		}
	}

	if v, ok := d.filter.Observe(isSpeech); ok {
		d.mu.Lock()
		ctx := d.ctx
		d.mu.Unlock()
		d.deps.Metrics.RecordSpeakingVerdict(ctx, v.Speaking)
		d.deps.Sink.Speaking(v)
	}
}

// OnSegmentEnd implements SegmentSink: gate the utterance and dispatch it.
// The chunk identifier is retired here so the next utterance mints a new
// one; identifiers are never reused.
func (d *Detector) OnSegmentEnd(segment []float32) {
	d.filter.Reset()

	d.mu.Lock()
	id := d.chunkID
	d.chunkID = ""
	d.inSegment = false
	ctx := d.ctx
	d.mu.Unlock()
	if id == "" || ctx == nil {
		// Stopped while this callback was in flight, or a misfire before
		// any onset was seen. Nothing to dispatch.
		return
	}

	// Any Opus tail buffered for this chunk goes out before the verdict so
	// the closing samples never bleed into the next utterance.
	if d.cfg.Streaming {
		d.flushEncoder(ctx, id)
	}

	if len(segment) == 0 {
		// Misfire: the VAD discarded the segment as too short.
		d.deps.Metrics.RecordSegmentCompleted(ctx, "misfire", 0)
		return
	}
	seconds := float64(len(segment)) / float64(d.cfg.SampleRate)

	classifyStart := time.Now()
	cctx, span := observe.StartSpan(ctx, "classify segment")
	span.SetAttributes(observe.Attr("chunk_id", id))
	matchSpeech, classifications := d.deps.Gate.Evaluate(cctx, segment, d.cfg.SampleRate)
	span.End()
	d.deps.Metrics.ClassifyDuration.Record(ctx, time.Since(classifyStart).Seconds())

	if len(classifications) > 0 {
		d.deps.Sink.Classified(classifications)
	}

	if !matchSpeech {
		slog.Debug("segment rejected by speech gate",
			"chunk_id", id, "classifications", len(classifications))
		if d.cfg.Streaming {
			d.publishMarker(ctx, id, false)
		}
		d.deps.Metrics.RecordSegmentCompleted(ctx, "rejected", seconds)
		return
	}

	wav, err := audio.EncodeWAV(segment, d.cfg.SampleRate, 1, 16)
	if err != nil {
		slog.Error("detector: WAV encode failed", "err", err, "chunk_id", id)
		d.deps.Metrics.RecordPipelineError(ctx, "encode")
		return
	}

	d.deps.Sink.Speech(SpeechEvent{ChunkID: id, Audio: segment, WAV: wav})

	if d.cfg.Streaming {
		d.publishMarker(ctx, id, true)
	} else {
		d.sendSpeechAudio(ctx, id, wav)
	}
	d.deps.Metrics.RecordSegmentCompleted(ctx, "speech", seconds)
	slog.Info("speech detected", "chunk_id", id, "seconds", seconds)
}

// sendSpeechAudio is the non-streaming dispatch path: capture pauses while
// the full WAV publishes, and always resumes afterwards so a transport
// failure never leaves the microphone muted.
func (d *Detector) sendSpeechAudio(ctx context.Context, id string, wav []byte) {
	ctx, span := observe.StartSpan(ctx, "dispatch utterance")
	span.SetAttributes(observe.Attr("chunk_id", id))
	defer span.End()

	d.mu.Lock()
	source := d.source
	d.mu.Unlock()

	if source != nil {
		source.Pause()
		defer source.Resume()
	}

	topic := d.deps.Topics.Utterance(id)
	if err := d.deps.Publisher.Publish(ctx, topic, wav, false, d.cfg.QoS); err != nil {
		slog.Error("detector: utterance publish failed, dropping segment",
			"err", err, "topic", topic)
		d.deps.Metrics.RecordPublish(ctx, "utterance", "error")
		return
	}
	d.deps.Metrics.RecordPublish(ctx, "utterance", "ok")
}

// publishStreamFrame forwards one stream frame as binary PCM or Opus. A
// failed publish drops the frame; the stream itself keeps going.
func (d *Detector) publishStreamFrame(frame []float32) {
	d.mu.Lock()
	id := d.chunkID
	if id == "" {
		// Streamer onset can precede the VAD's confirmed segment start.
		// Mint the chunk identifier here so pre-roll frames and the later
		// SegmentStarted event share it.
		id = d.freshChunkLocked()
	}
	ctx := d.ctx
	d.mu.Unlock()
	if ctx == nil {
		return
	}

	topic := d.deps.Topics.Stream(id)

	payloads, err := d.encodeStreamFrame(frame)
	if err != nil {
		slog.Error("detector: stream frame encode failed", "err", err)
		d.deps.Metrics.RecordPipelineError(ctx, "encode")
		return
	}
	for _, p := range payloads {
		if err := d.deps.Publisher.Publish(ctx, topic, p, false, d.cfg.QoS); err != nil {
			slog.Error("detector: stream publish failed, dropping frame",
				"err", err, "topic", topic)
			d.deps.Metrics.RecordPublish(ctx, "stream", "error")
			continue
		}
		d.deps.Metrics.RecordPublish(ctx, "stream", "ok")
	}
}

// encodeStreamFrame converts one float32 frame into wire payloads.
func (d *Detector) encodeStreamFrame(frame []float32) ([][]byte, error) {
	if d.deps.Encoder == nil {
		return [][]byte{audio.Float32ToPCM16(frame)}, nil
	}
	return d.deps.Encoder.Encode(frame)
}

// publishMarker closes a streamed chunk with the JSON completion marker.
func (d *Detector) publishMarker(ctx context.Context, id string, isSpeech bool) {
	payload, err := json.Marshal(streamMarker{IsSpeech: isSpeech})
	if err != nil {
		slog.Error("detector: marker marshal failed", "err", err)
		return
	}
	topic := d.deps.Topics.Stream(id)
	if err := d.deps.Publisher.Publish(ctx, topic, payload, true, d.cfg.QoS); err != nil {
		slog.Error("detector: marker publish failed",
			"err", err, "topic", topic, "is_speech", isSpeech)
		d.deps.Metrics.RecordPublish(ctx, "marker", "error")
		return
	}
	d.deps.Metrics.RecordPublish(ctx, "marker", "ok")
}

// trackStreamState keeps the active-stream gauge in step with the
// streamer's idle/streaming transitions. Returns true when the stream just
// closed so the caller can finish it after the final frames publish.
func (d *Detector) trackStreamState() bool {
	now := d.streamer.Streaming()
	if now == d.wasStreaming {
		return false
	}
	d.wasStreaming = now

	d.mu.Lock()
	ctx := d.ctx
	d.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}
	if now {
		d.deps.Metrics.ActiveStreams.Add(ctx, 1)
		return false
	}
	d.deps.Metrics.ActiveStreams.Add(ctx, -1)
	return true
}

// finishStream runs when the streamer goes idle: the Opus tail flushes
// under the chunk that produced it, and an identifier minted by a stream
// the VAD never confirmed is retired so it cannot leak into a later
// utterance.
func (d *Detector) finishStream() {
	d.mu.Lock()
	id := d.chunkID
	ctx := d.ctx
	if !d.inSegment {
		d.chunkID = ""
	}
	d.mu.Unlock()
	if id == "" || ctx == nil {
		return
	}
	d.flushEncoder(ctx, id)
}

// flushEncoder publishes any buffered Opus tail under the given chunk. A
// nil encoder or an empty carry is a no-op.
func (d *Detector) flushEncoder(ctx context.Context, id string) {
	if d.deps.Encoder == nil {
		return
	}
	pkt, err := d.deps.Encoder.Flush()
	if err != nil {
		slog.Error("detector: opus flush failed", "err", err)
		d.deps.Metrics.RecordPipelineError(ctx, "encode")
		return
	}
	if pkt == nil {
		return
	}
	topic := d.deps.Topics.Stream(id)
	if err := d.deps.Publisher.Publish(ctx, topic, pkt, false, d.cfg.QoS); err != nil {
		slog.Error("detector: stream publish failed, dropping frame",
			"err", err, "topic", topic)
		d.deps.Metrics.RecordPublish(ctx, "stream", "error")
		return
	}
	d.deps.Metrics.RecordPublish(ctx, "stream", "ok")
}

// freshChunkLocked mints a new ULID chunk identifier. Caller holds d.mu.
func (d *Detector) freshChunkLocked() string {
	id := ulid.MustNew(ulid.Timestamp(time.Now()), d.entropy).String()
	d.chunkID = id
	return id
}

// Gate returns the detector's speech gate, for readiness probes.
func (d *Detector) Gate() *SpeechGate { return d.deps.Gate }

// ChunkID returns the current chunk identifier, empty when no utterance is
// active or the detector is stopped.
func (d *Detector) ChunkID() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.chunkID
}
