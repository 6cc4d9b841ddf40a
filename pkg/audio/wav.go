package audio

import (
	"encoding/binary"
	"fmt"
)

// wavHeaderSize is the fixed size of the RIFF/WAVE header for PCM data.
const wavHeaderSize = 44

// EncodeWAV wraps normalised float32 samples in a minimal RIFF/WAVE
// container. Only 16-bit PCM is supported; bitDepth exists so callers can
// state their expectation explicitly and fail loudly on anything else.
func EncodeWAV(samples []float32, sampleRate, channels, bitDepth int) ([]byte, error) {
	if bitDepth != 16 {
		return nil, fmt.Errorf("audio: unsupported WAV bit depth %d (only 16 supported)", bitDepth)
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("audio: invalid WAV sample rate %d", sampleRate)
	}
	if channels <= 0 {
		return nil, fmt.Errorf("audio: invalid WAV channel count %d", channels)
	}

	pcm := Float32ToPCM16(samples)
	byteRate := sampleRate * channels * bitDepth / 8
	blockAlign := channels * bitDepth / 8
	dataSize := len(pcm)

	buf := make([]byte, wavHeaderSize+dataSize)

	// RIFF chunk descriptor
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataSize)) // file size − 8
	copy(buf[8:12], "WAVE")

	// fmt sub-chunk
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)                 // sub-chunk size (PCM)
	binary.LittleEndian.PutUint16(buf[20:22], 1)                  // audio format: PCM
	binary.LittleEndian.PutUint16(buf[22:24], uint16(channels))   // num channels
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate)) // sample rate
	binary.LittleEndian.PutUint32(buf[28:32], uint32(byteRate))   // byte rate
	binary.LittleEndian.PutUint16(buf[32:34], uint16(blockAlign)) // block align
	binary.LittleEndian.PutUint16(buf[34:36], uint16(bitDepth))   // bits per sample

	// data sub-chunk
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))
	copy(buf[44:], pcm)

	return buf, nil
}
