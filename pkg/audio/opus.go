package audio

import (
	"fmt"

	"layeh.com/gopus"
)

// opusMaxPacketBytes is a generous upper bound for one encoded Opus packet.
const opusMaxPacketBytes = 4000

// OpusEncoder compresses a stream of pipeline frames into Opus packets.
// Opus only accepts fixed frame durations (2.5–60 ms), while VAD frames are
// typically 30 ms or larger, so the encoder re-chunks input internally:
// samples are carried over between calls until a full Opus frame is
// available. Create one encoder per stream; not safe for concurrent use.
type OpusEncoder struct {
	enc        *gopus.Encoder
	frameSize  int // samples per Opus frame
	sampleRate int
	carry      []int16
}

// NewOpusEncoder creates a mono Opus encoder for voice audio at the given
// sample rate. frameMs must be one of the durations Opus supports for a
// single packet: 2.5 is not representable here, so 5, 10, 20, 40 or 60.
func NewOpusEncoder(sampleRate, frameMs int) (*OpusEncoder, error) {
	switch frameMs {
	case 5, 10, 20, 40, 60:
	default:
		return nil, fmt.Errorf("audio: opus frame duration %dms not supported", frameMs)
	}
	enc, err := gopus.NewEncoder(sampleRate, 1, gopus.Voip)
	if err != nil {
		return nil, fmt.Errorf("audio: create opus encoder: %w", err)
	}
	return &OpusEncoder{
		enc:        enc,
		frameSize:  sampleRate * frameMs / 1000,
		sampleRate: sampleRate,
	}, nil
}

// Encode appends samples to the internal carry buffer and returns one encoded
// Opus packet per complete frame now available. A short tail remains buffered
// until the next call; use [OpusEncoder.Flush] at end of stream.
func (e *OpusEncoder) Encode(samples []float32) ([][]byte, error) {
	e.carry = append(e.carry, Float32ToInt16(samples)...)

	var packets [][]byte
	for len(e.carry) >= e.frameSize {
		pkt, err := e.enc.Encode(e.carry[:e.frameSize], e.frameSize, opusMaxPacketBytes)
		if err != nil {
			return packets, fmt.Errorf("audio: opus encode: %w", err)
		}
		packets = append(packets, pkt)
		e.carry = e.carry[e.frameSize:]
	}

	// Reclaim the backing array once it has been fully consumed so long
	// streams do not pin stale sample memory.
	if len(e.carry) == 0 {
		e.carry = nil
	}
	return packets, nil
}

// Reset discards any buffered tail samples without encoding them. Use when
// a stream is abandoned rather than completed.
func (e *OpusEncoder) Reset() {
	e.carry = nil
}

// Flush zero-pads and encodes any buffered tail samples, returning the final
// packet, or nil when nothing is buffered. Resets the carry buffer.
func (e *OpusEncoder) Flush() ([]byte, error) {
	if len(e.carry) == 0 {
		return nil, nil
	}
	padded := make([]int16, e.frameSize)
	copy(padded, e.carry)
	e.carry = nil

	pkt, err := e.enc.Encode(padded, e.frameSize, opusMaxPacketBytes)
	if err != nil {
		return nil, fmt.Errorf("audio: opus flush: %w", err)
	}
	return pkt, nil
}
