package encoder

import (
	"math"
	"testing"
)

func sine(n, rate int) []int16 {
	out := make([]int16, n)
	for i := range out {
		out[i] = int16(8000 * math.Sin(2*math.Pi*440*float64(i)/float64(rate)))
	}
	return out
}

func TestEncodeFLAC(t *testing.T) {
	samples := sine(16000, 16000)

	data, err := EncodeFLAC(samples, 16000, 1)
	if err != nil {
		t.Fatalf("EncodeFLAC: %v", err)
	}
	if len(data) < 4 || string(data[:4]) != "fLaC" {
		t.Fatal("output does not start with FLAC magic")
	}
	t.Logf("raw %d bytes, flac %d bytes", len(samples)*2, len(data))
}

func TestFlacEncoderFrames(t *testing.T) {
	enc, err := NewFlac(16000, 1)
	if err != nil {
		t.Fatalf("NewFlac: %v", err)
	}
	samples := sine(BlockSize*2+100, 16000)
	var fed uint64
	for i := 0; i < len(samples); i += BlockSize {
		end := min(i+BlockSize, len(samples))
		if err := enc.EncodeBlock(samples[i:end]); err != nil {
			t.Fatalf("EncodeBlock at %d: %v", i, err)
		}
		fed += uint64(end - i)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if enc.TotalFrames() != fed {
		t.Errorf("TotalFrames = %d, want %d", enc.TotalFrames(), fed)
	}
}

func TestFlacEncoderEmpty(t *testing.T) {
	enc, err := NewFlac(16000, 1)
	if err != nil {
		t.Fatalf("NewFlac: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("Close on empty encoder: %v", err)
	}
	if enc.TotalFrames() != 0 {
		t.Errorf("TotalFrames = %d, want 0", enc.TotalFrames())
	}
	if len(enc.Bytes()) == 0 {
		t.Error("expected non-empty FLAC output (at least header)")
	}
}

func TestFlacStereoCountsFrames(t *testing.T) {
	enc, err := NewFlac(48000, 2)
	if err != nil {
		t.Fatalf("NewFlac: %v", err)
	}
	interleaved := sine(2000, 48000)
	if err := enc.EncodeBlock(interleaved); err != nil {
		t.Fatalf("EncodeBlock: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if enc.TotalFrames() != 1000 {
		t.Errorf("TotalFrames = %d, want 1000", enc.TotalFrames())
	}
}

func TestNewFlacRejectsChannels(t *testing.T) {
	if _, err := NewFlac(16000, 6); err == nil {
		t.Error("expected error for 6 channels")
	}
}
