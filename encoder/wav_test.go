package encoder

import (
	"bytes"
	"testing"
)

func TestWAVRoundTrip(t *testing.T) {
	in := sine(8000, 16000)

	data, err := EncodeWAV(in, 16000, 1)
	if err != nil {
		t.Fatalf("EncodeWAV: %v", err)
	}
	if string(data[:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		t.Fatalf("bad header %q", data[:12])
	}
	if len(data) != 44+len(in)*2 {
		t.Errorf("len = %d, want %d", len(data), 44+len(in)*2)
	}

	out, rate, ch, err := DecodeWAV(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("DecodeWAV: %v", err)
	}
	if rate != 16000 || ch != 1 {
		t.Errorf("format = %d Hz x%d", rate, ch)
	}
	if len(out) != len(in) {
		t.Fatalf("decoded %d samples, want %d", len(out), len(in))
	}
	for i := range in {
		if out[i] != in[i] {
			t.Fatalf("sample %d = %d, want %d", i, out[i], in[i])
		}
	}
}

func TestDecodeWAVRejectsGarbage(t *testing.T) {
	if _, _, _, err := DecodeWAV(bytes.NewReader([]byte("definitely not audio"))); err == nil {
		t.Error("expected error")
	}
}

func TestPCMBytes(t *testing.T) {
	in := []int16{0, 1, -1, 32767, -32768}
	b := BytesFromInt16(in)
	if len(b) != 10 || b[2] != 1 || b[4] != 0xff {
		t.Fatalf("bytes = %v", b)
	}
	out := Int16FromBytes(b)
	for i := range in {
		if out[i] != in[i] {
			t.Errorf("sample %d = %d, want %d", i, out[i], in[i])
		}
	}
}
