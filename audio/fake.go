package audio

import (
	"bytes"
	"fmt"
	"os"
	"sync"
	"time"

	"hotscribe/encoder"
)

const fakeBlockFrames = 480

// FakeContext plays a fixed PCM buffer into every capture it opens.
type FakeContext struct {
	pcm        []int16
	sampleRate int
	realtime   bool
	padSilence bool
}

type FakeOption func(*FakeContext)

// Realtime paces delivery at the sample rate from a goroutine. Without it
// Start delivers the whole buffer synchronously.
func Realtime() FakeOption { return func(f *FakeContext) { f.realtime = true } }

// PadSilence keeps feeding silent blocks after the buffer is exhausted, so
// VAD recordings end on their own.
func PadSilence() FakeOption { return func(f *FakeContext) { f.padSilence = true } }

func NewFakeContext(samples []int16, sampleRate int, opts ...FakeOption) *FakeContext {
	f := &FakeContext{pcm: samples, sampleRate: sampleRate}
	for _, o := range opts {
		o(f)
	}
	return f
}

// NewFakeContextFromWAV loads a mono 16-bit WAV fixture.
func NewFakeContextFromWAV(path string, opts ...FakeOption) (*FakeContext, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	samples, rate, channels, err := encoder.DecodeWAV(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if channels != 1 {
		return nil, fmt.Errorf("%s: %d channels, fixture must be mono", path, channels)
	}
	return NewFakeContext(samples, rate, opts...), nil
}

func (f *FakeContext) SampleRate() int { return f.sampleRate }

func (f *FakeContext) Devices() ([]DeviceInfo, error) {
	return []DeviceInfo{{ID: "fake", Name: "Fake Microphone"}}, nil
}

func (f *FakeContext) Close() {}

func (f *FakeContext) NewCapture(_ *DeviceInfo, cfg CaptureConfig) (CaptureDevice, error) {
	if f.sampleRate != 0 && int(cfg.SampleRate) != f.sampleRate {
		return nil, fmt.Errorf("fake capture: fixture is %d Hz, %d Hz requested", f.sampleRate, cfg.SampleRate)
	}
	return &FakeCapture{ctx: f}, nil
}

type FakeCapture struct {
	ctx *FakeContext

	mu     sync.Mutex
	cb     DataCallback
	stopCh chan struct{}
	wg     sync.WaitGroup
}

func (c *FakeCapture) SetCallback(cb DataCallback) {
	c.mu.Lock()
	c.cb = cb
	c.mu.Unlock()
}

func (c *FakeCapture) ClearCallback() {
	c.mu.Lock()
	c.cb = nil
	c.mu.Unlock()
}

func (c *FakeCapture) deliver(block []int16) bool {
	c.mu.Lock()
	cb := c.cb
	c.mu.Unlock()
	if cb == nil {
		return false
	}
	cb(encoder.BytesFromInt16(block), uint32(len(block)))
	return true
}

func (c *FakeCapture) Start() error {
	c.stopCh = make(chan struct{})
	pcm := c.ctx.pcm

	if !c.ctx.realtime {
		for pos := 0; pos < len(pcm); pos += fakeBlockFrames {
			c.deliver(pcm[pos:min(pos+fakeBlockFrames, len(pcm))])
		}
		if c.ctx.padSilence {
			c.wg.Add(1)
			go c.silence(time.Millisecond)
		}
		return nil
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		interval := time.Duration(fakeBlockFrames) * time.Second / time.Duration(c.ctx.sampleRate)
		t := time.NewTicker(interval)
		defer t.Stop()
		for pos := 0; pos < len(pcm); {
			select {
			case <-c.stopCh:
				return
			case <-t.C:
			}
			if c.deliver(pcm[pos:min(pos+fakeBlockFrames, len(pcm))]) {
				pos += fakeBlockFrames
			}
		}
		if c.ctx.padSilence {
			c.wg.Add(1)
			go c.silence(interval)
		}
	}()
	return nil
}

func (c *FakeCapture) silence(every time.Duration) {
	defer c.wg.Done()
	block := make([]int16, fakeBlockFrames)
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-c.stopCh:
			return
		case <-t.C:
			c.deliver(block)
		}
	}
}

func (c *FakeCapture) Stop() {
	if c.stopCh == nil {
		return
	}
	select {
	case <-c.stopCh:
	default:
		close(c.stopCh)
	}
	c.wg.Wait()
}

func (c *FakeCapture) Close() {}
