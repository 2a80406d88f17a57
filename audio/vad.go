package audio

import (
	"fmt"
	"sync"

	webrtcvad "github.com/maxhawkins/go-webrtcvad"

	"hotscribe/encoder"
)

// FrameMs is the analysis frame length. WebRTC VAD accepts 10, 20 or 30 ms.
const FrameMs = 30

// VoiceDetector classifies a single FrameMs frame.
type VoiceDetector interface {
	IsSpeech(frame []int16, sampleRate int) (bool, error)
}

// DetectorFactory builds a detector for one recording at the given
// aggressiveness (0 least, 3 most aggressive at filtering non-speech).
type DetectorFactory func(aggressiveness int) (VoiceDetector, error)

type webrtcDetector struct {
	vad *webrtcvad.VAD
}

// NewWebRTCDetector is the default DetectorFactory.
func NewWebRTCDetector(aggressiveness int) (VoiceDetector, error) {
	v, err := webrtcvad.New()
	if err != nil {
		return nil, err
	}
	if err := v.SetMode(aggressiveness); err != nil {
		return nil, fmt.Errorf("vad mode %d: %w", aggressiveness, err)
	}
	return &webrtcDetector{vad: v}, nil
}

func (d *webrtcDetector) IsSpeech(frame []int16, sampleRate int) (bool, error) {
	return d.vad.Process(sampleRate, encoder.BytesFromInt16(frame))
}

// EnergyDetector flags a frame as speech when its mean absolute amplitude
// reaches Threshold. It stands in for WebRTC in tests and the -test mode,
// where fixtures are synthetic.
type EnergyDetector struct {
	Threshold int

	mu     sync.Mutex
	frames int
}

func (d *EnergyDetector) IsSpeech(frame []int16, _ int) (bool, error) {
	d.mu.Lock()
	d.frames++
	d.mu.Unlock()
	if len(frame) == 0 {
		return false, nil
	}
	var sum int64
	for _, s := range frame {
		if s < 0 {
			sum -= int64(s)
		} else {
			sum += int64(s)
		}
	}
	return sum/int64(len(frame)) >= int64(d.Threshold), nil
}

// Frames reports how many frames were classified.
func (d *EnergyDetector) Frames() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.frames
}

// EnergyDetectorFactory returns a factory that shares det across recordings.
func EnergyDetectorFactory(det *EnergyDetector) DetectorFactory {
	return func(int) (VoiceDetector, error) { return det, nil }
}
