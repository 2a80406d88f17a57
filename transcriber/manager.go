package transcriber

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"hotscribe/audio"
	"hotscribe/bus"
	"hotscribe/config"
	"hotscribe/log"
	"hotscribe/observe"
)

const (
	popTimeout = 200 * time.Millisecond
	// drainIdleLimit empty polls end a drain that never saw its end marker.
	drainIdleLimit = 10
)

type State int32

const (
	Idle State = iota
	Processing
	Streaming
	Draining
)

func (s State) String() string {
	switch s {
	case Processing:
		return "processing"
	case Streaming:
		return "streaming"
	case Draining:
		return "draining"
	default:
		return "idle"
	}
}

// RawResult is the payload of bus.RawTranscriptionResult.
type RawResult struct {
	Profile   string
	SessionID string
	Result    Result
}

// Manager owns one profile's backend and the worker goroutine that feeds it
// from the profile's audio queue. The worker sleeps on a binary wake signal
// between sessions.
type Manager struct {
	bus         *bus.Bus
	profile     string
	backendType string
	backend     Backend
	opts        config.Options
	queue       *audio.Queue
	metrics     *observe.Metrics

	mu      sync.Mutex
	state   State
	session string

	wake    chan struct{}
	closing atomic.Bool
	started bool
	done    chan struct{}
	ctx     context.Context
	cancel  context.CancelFunc

	// carry is a chunk for a newer session read while finishing an older
	// one. Only the worker touches it.
	carry *audio.Chunk
}

type ManagerOption func(*Manager)

// WithBackend uses b instead of building one from the registry.
func WithBackend(b Backend) ManagerOption {
	return func(m *Manager) { m.backend = b }
}

func WithMetrics(met *observe.Metrics) ManagerOption {
	return func(m *Manager) { m.metrics = met }
}

// NewManager fails fast on an unknown backend type. The backend is not
// initialized until Start.
func NewManager(b *bus.Bus, profile, backendType string, opts config.Options, queue *audio.Queue, mopts ...ManagerOption) (*Manager, error) {
	m := &Manager{
		bus:         b,
		profile:     profile,
		backendType: backendType,
		opts:        opts,
		queue:       queue,
		wake:        make(chan struct{}, 1),
	}
	for _, o := range mopts {
		o(m)
	}
	if m.backend == nil {
		be, err := New(backendType)
		if err != nil {
			return nil, fmt.Errorf("profile %s: %w", profile, err)
		}
		m.backend = be
	}
	if m.metrics == nil {
		m.metrics = observe.DefaultMetrics()
	}
	return m, nil
}

// Start initializes the backend and launches the worker.
func (m *Manager) Start(ctx context.Context) error {
	if err := m.backend.Initialize(ctx, m.opts); err != nil {
		return fmt.Errorf("profile %s: %s backend: %w", m.profile, m.backendType, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return nil
	}
	m.started = true
	m.ctx, m.cancel = context.WithCancel(context.Background())
	m.done = make(chan struct{})
	go m.run()
	return nil
}

func (m *Manager) Backend() Backend { return m.backend }

func (m *Manager) SupportsStreaming() bool { return SupportsStreaming(m.backend) }

// PreferredChunkSize is the backend's streaming chunk size in samples.
func (m *Manager) PreferredChunkSize(sampleRate int) int {
	return m.backend.PreferredChunkSize(sampleRate)
}

func (m *Manager) StartProcessing(sessionID string) { m.begin(Processing, sessionID) }

func (m *Manager) StartStreaming(sessionID string) { m.begin(Streaming, sessionID) }

// StopStreaming moves a streaming session to Draining: queued audio is
// still transcribed, then the stream is finalized.
func (m *Manager) StopStreaming() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == Streaming {
		m.state = Draining
	}
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Cleanup stops the worker, waits for it and releases the backend. It must
// not be called from the worker.
func (m *Manager) Cleanup() {
	m.closing.Store(true)
	m.mu.Lock()
	m.state = Idle
	m.session = ""
	cancel, done := m.cancel, m.done
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	m.signal()
	if done != nil {
		<-done
	}
	m.backend.Cleanup()
}

func (m *Manager) begin(s State, sessionID string) {
	m.mu.Lock()
	m.state = s
	m.session = sessionID
	m.mu.Unlock()
	m.signal()
}

func (m *Manager) signal() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

func (m *Manager) snapshot() (string, State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session, m.state
}

func (m *Manager) run() {
	defer close(m.done)
	for {
		<-m.wake
		if m.closing.Load() {
			return
		}
		id, st := m.snapshot()
		switch st {
		case Processing:
			m.process(id)
		case Streaming, Draining:
			m.stream(id)
		}
	}
}

// next returns the next chunk of session id. ok is false on timeout or when
// a chunk of an older session was dropped. superseded reports that the
// manager has moved on to another session.
func (m *Manager) next(id string) (c audio.Chunk, ok, superseded bool) {
	if m.carry != nil {
		c, ok = *m.carry, true
		m.carry = nil
	} else {
		c, ok = m.queue.Pop(popTimeout)
	}
	cur, st := m.snapshot()
	if cur != id || st == Idle {
		if ok && c.SessionID == cur && cur != "" {
			m.carry = &c
		}
		return audio.Chunk{}, false, true
	}
	if ok && c.SessionID != id {
		log.Debugf("transcriber %s: dropping chunk of old session %s", m.profile, c.SessionID)
		return audio.Chunk{}, false, false
	}
	return c, ok, false
}

func (m *Manager) process(id string) {
	var (
		pcm  []int16
		meta audio.Chunk
	)
	for {
		c, ok, superseded := m.next(id)
		if superseded || m.closing.Load() {
			return
		}
		if !ok {
			continue
		}
		if c.End {
			break
		}
		if meta.SampleRate == 0 {
			meta = c
		}
		pcm = append(pcm, c.Samples...)
	}

	if len(pcm) > 0 {
		log.SessionEvent(m.profile, id, "transcribing")
		start := time.Now()
		res := m.backend.TranscribeComplete(m.ctx, pcm, meta.SampleRate, meta.Channels, meta.Language)
		m.metrics.RecordTranscription(m.ctx, m.profile, m.backendType, "batch", time.Since(start).Seconds(), res.Err)
		res.IsUtteranceEnd = true
		m.deliver(id, res)
	}
	m.finish(id, false)
}

func (m *Manager) stream(id string) {
	idle := 0
	for {
		c, ok, superseded := m.next(id)
		if superseded || m.closing.Load() {
			m.backend.FinalizeStream(m.ctx)
			return
		}
		if !ok {
			if _, st := m.snapshot(); st == Draining {
				if idle++; idle >= drainIdleLimit {
					log.Warnf("transcriber %s: no end of audio while draining, finalizing", m.profile)
					break
				}
			}
			continue
		}
		idle = 0
		if c.End {
			break
		}
		if len(c.Samples) == 0 {
			continue
		}
		start := time.Now()
		res := m.backend.TranscribeStream(m.ctx, c.Samples, c.SampleRate, c.Channels, c.Language)
		m.metrics.RecordTranscription(m.ctx, m.profile, m.backendType, "stream", time.Since(start).Seconds(), res.Err)
		if res.Err != nil || res.RawText != "" || res.IsUtteranceEnd {
			m.deliver(id, res)
		}
	}

	start := time.Now()
	res := m.backend.FinalizeStream(m.ctx)
	m.metrics.RecordTranscription(m.ctx, m.profile, m.backendType, "finalize", time.Since(start).Seconds(), res.Err)
	res.IsUtteranceEnd = true
	if res.Err != nil || res.RawText != "" {
		m.deliver(id, res)
	}
	m.finish(id, true)
}

func (m *Manager) deliver(id string, res Result) {
	if res.Err != nil {
		log.Errorf("transcriber %s (%s): %v", m.profile, m.backendType, res.Err)
		m.bus.Emit(bus.TranscriptionError, bus.Failure{Profile: m.profile, Err: res.Err})
		return
	}
	m.bus.Emit(bus.RawTranscriptionResult, RawResult{Profile: m.profile, SessionID: id, Result: res})
}

func (m *Manager) finish(id string, streaming bool) {
	m.mu.Lock()
	if m.session == id {
		m.state = Idle
	}
	m.mu.Unlock()

	done := bus.SessionDone{Profile: m.profile, SessionID: id}
	if streaming {
		m.bus.Emit(bus.StreamingFinished, done)
	}
	m.bus.Emit(bus.TranscriptionFinished, done)
}
