// Package encoder packs 16-bit PCM into the containers transcription
// backends accept: FLAC for cloud uploads and WAV for local servers.
package encoder

import (
	"encoding/binary"
	"time"
)

const (
	BitsPerSample = 16
	BlockSize     = 4096
)

// Encoder consumes PCM in blocks of at most BlockSize frames.
type Encoder interface {
	EncodeBlock(block []int16) error
	Close() error
	Bytes() []byte
	TotalFrames() uint64
	EncodeTime() time.Duration
}

// Int16FromBytes reinterprets little-endian 16-bit PCM.
func Int16FromBytes(b []byte) []int16 {
	out := make([]int16, len(b)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(b[i*2:]))
	}
	return out
}

// BytesFromInt16 is the inverse of Int16FromBytes.
func BytesFromInt16(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}
