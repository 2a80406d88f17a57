// Package beep plays short synthesized cues when a transcription completes
// or fails. Playback is asynchronous and best effort.
package beep

import (
	"math"
	"sync"
	"sync/atomic"

	"hotscribe/log"
)

type Sound int

const (
	Complete Sound = iota
	Error
)

const sampleRate = 44100

type tone struct {
	freq   float64
	dur    float64
	volume float64
	decay  float64
}

var (
	completeTone = tone{freq: 900, dur: 0.12, volume: 0.5, decay: 40}
	errorTone    = tone{freq: 350, dur: 0.08, volume: 0.6, decay: 30}
	errorGap     = 0.05
)

var (
	enabled atomic.Bool
	once    sync.Once
	cues    map[Sound][]int16
)

// SetEnabled switches playback on or off; it is off until enabled.
func SetEnabled(on bool) { enabled.Store(on) }

func Enabled() bool { return enabled.Load() }

// Play starts the cue in the background and returns immediately.
func Play(s Sound) {
	if !enabled.Load() {
		return
	}
	samples := cue(s)
	go func() {
		if err := play(samples, sampleRate); err != nil {
			log.Debugf("beep: %v", err)
		}
	}()
}

func cue(s Sound) []int16 {
	once.Do(func() {
		cues = map[Sound][]int16{
			Complete: synth(sampleRate, completeTone),
			Error:    double(sampleRate, errorTone, errorGap),
		}
	})
	return cues[s]
}

// synth renders a mono sine with an exponential decay envelope.
func synth(rate int, t tone) []int16 {
	n := int(float64(rate) * t.dur)
	out := make([]int16, n)
	for i := range out {
		x := float64(i) / float64(rate)
		env := math.Exp(-x * t.decay)
		out[i] = int16(math.Sin(2*math.Pi*t.freq*x) * 32767 * t.volume * env)
	}
	return out
}

func double(rate int, t tone, gap float64) []int16 {
	one := synth(rate, t)
	silence := make([]int16, int(float64(rate)*gap))
	out := make([]int16, 0, 2*len(one)+len(silence))
	out = append(out, one...)
	out = append(out, silence...)
	return append(out, one...)
}
