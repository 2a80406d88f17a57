package audio

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"hotscribe/bus"
	"hotscribe/config"
	"hotscribe/encoder"
	"hotscribe/log"
	"hotscribe/observe"
)

const (
	requestTimeout  = 500 * time.Millisecond
	dataWaitTimeout = 200 * time.Millisecond
	stopTimeout     = 2 * time.Second

	// warmupMs of audio at the start of every recording is never classified,
	// so the activation key click does not count as speech.
	warmupMs = 150
)

var (
	ErrStopped = errors.New("audio engine is stopped")
	ErrBusy    = errors.New("audio engine is busy")
)

type State int32

const (
	Stopped State = iota
	Idle
	Recording
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Recording:
		return "recording"
	default:
		return "stopped"
	}
}

// RecordingTarget is what the engine needs to know about the profile it
// records for.
type RecordingTarget interface {
	Name() string
	RecordingOptions() config.RecordingOptions
	IsStreaming() bool
	// StreamingChunkSize is the preferred number of samples per streamed
	// chunk. Zero or less selects 200 ms.
	StreamingChunkSize() int
	AudioQueue() *Queue
}

type request struct {
	target    RecordingTarget
	sessionID string
}

// Manager serializes recordings on one long-lived goroutine. Requests and
// stop signals share a queue; a nil entry interrupts the current recording.
// The state is Recording from the moment a request is accepted until its
// end marker has been queued.
type Manager struct {
	bus     *bus.Bus
	ctx     Context
	detect  DetectorFactory
	metrics *observe.Metrics

	state atomic.Int32
	reqs  *fifo[*request]

	mu   sync.Mutex
	done chan struct{}
}

type Option func(*Manager)

func WithDetector(f DetectorFactory) Option {
	return func(m *Manager) { m.detect = f }
}

func WithMetrics(met *observe.Metrics) Option {
	return func(m *Manager) { m.metrics = met }
}

func NewManager(b *bus.Bus, ctx Context, opts ...Option) *Manager {
	m := &Manager{
		bus:    b,
		ctx:    ctx,
		detect: NewWebRTCDetector,
		reqs:   newFIFO[*request](),
	}
	for _, o := range opts {
		o(m)
	}
	if m.metrics == nil {
		m.metrics = observe.DefaultMetrics()
	}
	return m
}

// Start launches the capture goroutine. It is a no-op when already running.
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.done != nil {
		return
	}
	m.reqs.Drain()
	m.state.Store(int32(Idle))
	m.done = make(chan struct{})
	go m.run(m.done)
}

// Stop interrupts any recording and waits briefly for the goroutine to exit.
func (m *Manager) Stop() {
	m.mu.Lock()
	done := m.done
	m.done = nil
	m.mu.Unlock()

	m.state.Store(int32(Stopped))
	if done == nil {
		return
	}
	m.reqs.Push(nil)
	select {
	case <-done:
	case <-time.After(stopTimeout):
		log.Warn("audio: capture goroutine did not exit in time")
	}
}

// StartRecording queues a recording for target. It fails with ErrBusy while
// another recording is accepted or running.
func (m *Manager) StartRecording(target RecordingTarget, sessionID string) error {
	if !m.state.CompareAndSwap(int32(Idle), int32(Recording)) {
		if m.State() == Stopped {
			return ErrStopped
		}
		return ErrBusy
	}
	m.reqs.Push(&request{target: target, sessionID: sessionID})
	return nil
}

// StopRecording ends the current or the next queued recording.
func (m *Manager) StopRecording() {
	if m.State() == Stopped {
		return
	}
	m.reqs.Push(nil)
}

func (m *Manager) IsRecording() bool { return m.State() == Recording }

func (m *Manager) State() State { return State(m.state.Load()) }

func (m *Manager) run(done chan struct{}) {
	defer close(done)
	for m.State() != Stopped {
		req, ok := m.reqs.Pop(requestTimeout)
		if !ok || req == nil {
			continue
		}
		m.record(req)
	}
}

// captureBuffer collects PCM from the driver callback.
type captureBuffer struct {
	mu    sync.Mutex
	data  []int16
	ready chan struct{}
}

func (b *captureBuffer) write(data []byte, _ uint32) {
	samples := encoder.Int16FromBytes(data)
	b.mu.Lock()
	b.data = append(b.data, samples...)
	b.mu.Unlock()
	select {
	case b.ready <- struct{}{}:
	default:
	}
}

func (b *captureBuffer) take() []int16 {
	b.mu.Lock()
	defer b.mu.Unlock()
	d := b.data
	b.data = nil
	return d
}

// record runs one accepted recording to completion. Any queued entry,
// normally the nil stop signal, ends it.
func (m *Manager) record(req *request) {
	t := req.target
	id := req.sessionID
	queue := t.AudioQueue()
	opts := t.RecordingOptions()
	profile := t.Name()
	ctx := context.Background()

	if m.State() != Recording {
		queue.Push(Chunk{SessionID: id, End: true})
		return
	}

	rate := opts.SampleRate
	if rate <= 0 {
		rate = config.DefaultSampleRate
	}
	frameSize := rate * FrameMs / 1000
	streaming := t.IsStreaming()
	chunkSize := t.StreamingChunkSize()
	if chunkSize <= 0 {
		chunkSize = rate / 5
	}
	useVAD := opts.RecordingMode.UsesVAD()
	newChunk := func(samples []int16) Chunk {
		return Chunk{SessionID: id, SampleRate: rate, Channels: 1, Language: opts.Language, Samples: samples}
	}

	var det VoiceDetector
	if useVAD {
		d, err := m.detect(opts.VADLevel())
		if err != nil {
			log.Warnf("audio: voice detection unavailable, recording without auto-stop: %v", err)
			useVAD = false
		} else {
			det = d
		}
	}

	buf := &captureBuffer{ready: make(chan struct{}, 1)}
	dev, err := m.open(opts, rate, buf.write)
	if err != nil {
		log.Errorf("audio: %v", err)
		m.state.CompareAndSwap(int32(Recording), int32(Idle))
		m.metrics.RecordDiscard(ctx, profile, "device")
		m.bus.Emit(bus.AudioDiscarded, bus.Session{ID: id})
		queue.Push(Chunk{SessionID: id, End: true})
		return
	}
	var releaseOnce sync.Once
	release := func() {
		releaseOnce.Do(func() {
			dev.ClearCallback()
			dev.Stop()
			dev.Close()
		})
	}
	defer release()

	log.SessionEvent(profile, id, "recording_started")
	levelAttrs := metric.WithAttributes(attribute.String("profile", profile))

	var (
		recorded   []int16
		streamBuf  []int16
		partial    []int16
		frames     int
		silent     int
		speech     bool
		warmup     = (warmupMs * rate / 1000) / frameSize
		maxSilence = int(opts.Silence() / (FrameMs * time.Millisecond))
	)

loop:
	for {
		partial = append(partial, buf.take()...)
		for len(partial) >= frameSize {
			frame := partial[:frameSize:frameSize]
			partial = partial[frameSize:]
			frames++

			if streaming {
				streamBuf = append(streamBuf, frame...)
				for len(streamBuf) >= chunkSize {
					queue.Push(newChunk(append([]int16(nil), streamBuf[:chunkSize]...)))
					streamBuf = streamBuf[chunkSize:]
				}
			} else {
				recorded = append(recorded, frame...)
			}
			if frames%10 == 0 {
				m.metrics.AudioLevel.Record(ctx, rms(frame), levelAttrs)
			}

			if !useVAD || frames <= warmup {
				continue
			}
			isSpeech, err := det.IsSpeech(frame, rate)
			if err != nil {
				log.Debugf("audio: vad frame %d: %v", frames, err)
				continue
			}
			if isSpeech {
				speech = true
				silent = 0
			} else {
				silent++
			}
			if speech && silent > maxSilence {
				log.SessionEvent(profile, id, "silence_detected")
				break loop
			}
		}

		if m.State() == Stopped {
			break
		}
		if _, ok := m.reqs.TryPop(); ok {
			break
		}
		select {
		case <-buf.ready:
		case <-m.reqs.Ready():
		case <-time.After(dataWaitTimeout):
		}
	}
	release()

	discard := ""
	if streaming {
		if rest := append(streamBuf, partial...); len(rest) > 0 {
			queue.Push(newChunk(append([]int16(nil), rest...)))
		}
	} else {
		recorded = append(recorded, partial...)
		c := newChunk(recorded)
		switch {
		case useVAD && !speech:
			discard = "no_speech"
		case c.Duration() >= opts.MinimumDuration():
			m.metrics.RecordRecording(ctx, profile, c.Duration().Seconds())
			queue.Push(c)
		default:
			discard = "too_short"
		}
	}

	m.state.CompareAndSwap(int32(Recording), int32(Idle))
	if discard != "" {
		log.Infof("audio: discarded recording for %s (%s)", profile, discard)
		m.metrics.RecordDiscard(ctx, profile, discard)
		m.bus.Emit(bus.AudioDiscarded, bus.Session{ID: id})
	}
	queue.Push(Chunk{SessionID: id, End: true})
	log.SessionEvent(profile, id, "recording_stopped")
	if useVAD && m.State() != Stopped {
		m.bus.Emit(bus.RecordingStopped, bus.Session{ID: id})
	}
}

func (m *Manager) open(opts config.RecordingOptions, rate int, cb DataCallback) (CaptureDevice, error) {
	device, err := FindDevice(m.ctx, opts.SoundDevice)
	if err != nil {
		log.Warnf("audio: %v, using system default", err)
		device = nil
	}
	dev, err := m.ctx.NewCapture(device, CaptureConfig{SampleRate: uint32(rate), Channels: 1})
	if err != nil {
		return nil, err
	}
	dev.SetCallback(cb)
	if err := dev.Start(); err != nil {
		dev.ClearCallback()
		dev.Close()
		return nil, err
	}
	return dev, nil
}

func rms(frame []int16) float64 {
	if len(frame) == 0 {
		return 0
	}
	var sum float64
	for _, s := range frame {
		v := float64(s) / 32768
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(frame)))
}
