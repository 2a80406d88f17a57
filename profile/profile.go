// Package profile implements one independently operable dictation
// configuration: its state machine, its transcription manager and audio
// queue, post-processing and keystroke output.
//
// Handlers and controller calls all run on the bus dispatch goroutine; the
// mutex only guards reads from other goroutines such as the audio engine and
// tests.
package profile

import (
	"context"
	"fmt"
	"os"
	"sync"

	"hotscribe/audio"
	"hotscribe/bus"
	"hotscribe/config"
	"hotscribe/log"
	"hotscribe/observe"
	"hotscribe/output"
	"hotscribe/postproc"
	"hotscribe/transcriber"
)

type State int

const (
	Idle State = iota
	Recording
	Streaming
	Transcribing
)

func (s State) String() string {
	switch s {
	case Recording:
		return "recording"
	case Streaming:
		return "streaming"
	case Transcribing:
		return "transcribing"
	default:
		return "idle"
	}
}

type Profile struct {
	bus      *bus.Bus
	cfg      config.Profile
	queue    *audio.Queue
	manager  *transcriber.Manager
	pipeline *postproc.Pipeline
	out      output.Simulator

	streaming bool
	chunkSize int

	mu      sync.Mutex
	state   State
	session string
	stream  reconciler
	subs    []subscription
	closed  bool
}

type subscription struct {
	topic bus.Topic
	id    bus.SubscriptionID
}

type options struct {
	backend    transcriber.Backend
	out        output.Simulator
	metrics    *observe.Metrics
	scriptsDir string
}

type Option func(*options)

// WithBackend replaces the backend named by backend_type.
func WithBackend(b transcriber.Backend) Option {
	return func(o *options) { o.backend = b }
}

// WithOutput replaces the keyboard simulator named in post_processing.
func WithOutput(s output.Simulator) Option {
	return func(o *options) { o.out = s }
}

func WithMetrics(m *observe.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithScriptsDir resolves relative rules files against dir, usually the
// directory of the config file.
func WithScriptsDir(dir string) Option {
	return func(o *options) { o.scriptsDir = dir }
}

// New builds a profile and its transcription manager. An unknown backend
// type fails here; the backend itself is initialized by Start.
func New(b *bus.Bus, cfg config.Profile, opts ...Option) (*Profile, error) {
	var o options
	for _, fn := range opts {
		fn(&o)
	}

	p := &Profile{
		bus:      b,
		cfg:      cfg,
		queue:    audio.NewQueue(),
		pipeline: postproc.New(cfg.PostProcessing.EnabledScripts, o.scriptsDir),
		out:      o.out,
	}
	var mopts []transcriber.ManagerOption
	if o.backend != nil {
		mopts = append(mopts, transcriber.WithBackend(o.backend))
	}
	if o.metrics != nil {
		mopts = append(mopts, transcriber.WithMetrics(o.metrics))
	}
	m, err := transcriber.NewManager(b, cfg.Name, cfg.BackendType, cfg.Backend, p.queue, mopts...)
	if err != nil {
		return nil, err
	}
	p.manager = m

	if p.out == nil {
		method := cfg.PostProcessing.KeyboardSimulator
		sim, err := output.New(method, cfg.PostProcessing.KeyDelay())
		if err != nil {
			log.Warnf("profile %s: keyboard simulator %s unavailable, printing instead: %v", cfg.Name, method, err)
			sim = output.NewPrinter(os.Stdout)
		}
		p.out = sim
	}

	p.subscribe(bus.RawTranscriptionResult, p.handleRawResult)
	p.subscribe(bus.TranscriptionFinished, p.handleFinished)
	return p, nil
}

func (p *Profile) subscribe(topic bus.Topic, fn bus.Handler) {
	p.subs = append(p.subs, subscription{topic: topic, id: p.bus.Subscribe(topic, fn)})
}

// Start initializes the backend and the transcription worker. Streaming is
// used only when the profile asks for it and the backend supports it.
func (p *Profile) Start(ctx context.Context) error {
	if err := p.manager.Start(ctx); err != nil {
		return err
	}
	streaming := p.cfg.UseStreaming()
	if streaming && !p.manager.SupportsStreaming() {
		log.Warnf("profile %s: backend %s cannot stream, using batch transcription", p.cfg.Name, p.cfg.BackendType)
		streaming = false
	}
	p.mu.Lock()
	p.streaming = streaming
	p.chunkSize = p.manager.PreferredChunkSize(p.cfg.RecordingOptions.SampleRate)
	p.mu.Unlock()
	return nil
}

func (p *Profile) Name() string { return p.cfg.Name }

func (p *Profile) Config() config.Profile { return p.cfg }

func (p *Profile) Mode() config.RecordingMode { return p.cfg.RecordingOptions.RecordingMode }

func (p *Profile) RecordingOptions() config.RecordingOptions { return p.cfg.RecordingOptions }

func (p *Profile) IsStreaming() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.streaming
}

func (p *Profile) StreamingChunkSize() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.chunkSize
}

func (p *Profile) AudioQueue() *audio.Queue { return p.queue }

func (p *Profile) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// SessionID is empty while idle.
func (p *Profile) SessionID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.session
}

func (p *Profile) IsIdle() bool { return p.State() == Idle }

// IsRecording is true while audio is being captured, streamed or not.
func (p *Profile) IsRecording() bool {
	s := p.State()
	return s == Recording || s == Streaming
}

func (p *Profile) ShouldStartOnPress() bool { return p.IsIdle() }

func (p *Profile) ShouldStopOnPress() bool {
	if !p.IsRecording() {
		return false
	}
	switch p.Mode() {
	case config.PressToToggle, config.Continuous, config.VoiceActivityDetection:
		return true
	}
	return false
}

func (p *Profile) ShouldStopOnRelease() bool {
	return p.IsRecording() && p.Mode() == config.HoldToRecord
}

// StartTranscription begins a session. It is refused unless the profile is
// idle.
func (p *Profile) StartTranscription(sessionID string) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return fmt.Errorf("profile %s: closed", p.cfg.Name)
	}
	if p.state != Idle {
		state := p.state
		p.mu.Unlock()
		return fmt.Errorf("profile %s: cannot start while %s", p.cfg.Name, state)
	}
	p.session = sessionID
	p.stream.reset()
	status := "Recording..."
	if p.streaming {
		p.state = Streaming
		status = "Streaming..."
	} else {
		p.state = Recording
	}
	streaming := p.streaming
	p.mu.Unlock()

	if streaming {
		p.manager.StartStreaming(sessionID)
	} else {
		p.manager.StartProcessing(sessionID)
	}
	log.SessionEvent(p.cfg.Name, sessionID, "start")
	p.emitStatus(status)
	return nil
}

// StopRecording moves a recording session to Transcribing. A streaming
// manager is told to drain what is queued and finalize.
func (p *Profile) StopRecording() {
	p.mu.Lock()
	if p.state != Recording && p.state != Streaming {
		p.mu.Unlock()
		return
	}
	wasStreaming := p.state == Streaming
	p.state = Transcribing
	id := p.session
	p.mu.Unlock()

	if wasStreaming {
		p.manager.StopStreaming()
	}
	log.SessionEvent(p.cfg.Name, id, "recording stopped")
	p.emitStatus("Transcribing...")
}

// FinishTranscription returns to Idle. transcription_complete is emitted
// with the session ID captured before it was cleared, and only if a session
// was in flight, so repeated calls are harmless.
func (p *Profile) FinishTranscription() {
	p.mu.Lock()
	prev := p.state
	old := p.session
	p.state = Idle
	p.session = ""
	p.stream.reset()
	p.mu.Unlock()

	if prev == Idle {
		return
	}
	p.bus.Emit(bus.ProfileStateChange, bus.Status{Profile: p.cfg.Name})
	log.SessionEvent(p.cfg.Name, old, "finished")
	p.bus.Emit(bus.TranscriptionComplete, bus.Session{ID: old})
}

func (p *Profile) emitStatus(text string) {
	p.bus.Emit(bus.ProfileStateChange, bus.Status{
		Profile: p.cfg.Name,
		Text:    fmt.Sprintf("(%s) %s", p.cfg.Name, text),
	})
}

func (p *Profile) handleFinished(payload any) {
	done, ok := bus.Expect[bus.SessionDone](bus.TranscriptionFinished, payload)
	if !ok || done.Profile != p.cfg.Name {
		return
	}
	if done.SessionID != p.SessionID() {
		log.Debugf("profile %s: ignoring finish of stale session %s", p.cfg.Name, done.SessionID)
		return
	}
	p.FinishTranscription()
}

func (p *Profile) handleRawResult(payload any) {
	raw, ok := bus.Expect[transcriber.RawResult](bus.RawTranscriptionResult, payload)
	if !ok || raw.Profile != p.cfg.Name {
		return
	}

	p.mu.Lock()
	if p.closed || raw.SessionID == "" || raw.SessionID != p.session {
		p.mu.Unlock()
		return
	}
	out := p.pipeline.Process(raw.Result)
	streaming, sim := p.streaming, p.out
	e := edit{text: out.Processed}
	if streaming {
		e = p.stream.diff(out.Processed, out.IsUtteranceEnd)
	}
	p.mu.Unlock()

	p.bus.Emit(bus.TranscriptionOutput, bus.Output{
		Profile:        p.cfg.Name,
		SessionID:      raw.SessionID,
		Raw:            out.Raw,
		Processed:      out.Processed,
		Language:       out.Language,
		IsUtteranceEnd: out.IsUtteranceEnd,
	})

	// Typed outside p.mu: key delays must not stall the audio goroutine.
	if err := e.applyTo(sim); err != nil {
		log.Errorf("profile %s: output: %v", p.cfg.Name, err)
	}
	if out.Processed != "" && (!streaming || out.IsUtteranceEnd) {
		log.TranscriptionText(out.Processed)
	}
}

// Close finishes any open session, stops the transcription worker, releases
// the keyboard simulator and drops the bus subscriptions.
func (p *Profile) Close() {
	p.FinishTranscription()

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	subs := p.subs
	p.subs = nil
	p.mu.Unlock()

	p.manager.Cleanup()
	p.out.Cleanup()
	for _, s := range subs {
		p.bus.Unsubscribe(s.topic, s.id)
	}
}
