package controller

import (
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"hotscribe/audio"
	"hotscribe/bus"
	"hotscribe/config"
	"hotscribe/hotkey"
	"hotscribe/output"
	"hotscribe/profile"
	"hotscribe/transcriber"
)

type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(s string) {
	l.mu.Lock()
	l.calls = append(l.calls, s)
	l.mu.Unlock()
}

func (l *callLog) list() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

type fakeAudio struct {
	log *callLog

	mu        sync.Mutex
	recording bool
	sessions  []string
	stops     int
}

func (a *fakeAudio) Start() { a.log.add("audio start") }
func (a *fakeAudio) Stop()  { a.log.add("audio stop") }

func (a *fakeAudio) StartRecording(_ audio.RecordingTarget, id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.recording {
		return audio.ErrBusy
	}
	a.recording = true
	a.sessions = append(a.sessions, id)
	return nil
}

func (a *fakeAudio) StopRecording() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.recording = false
	a.stops++
}

func (a *fakeAudio) IsRecording() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.recording
}

// autoStop mimics the engine ending a recording on its own.
func (a *fakeAudio) autoStop() {
	a.mu.Lock()
	a.recording = false
	a.mu.Unlock()
}

func (a *fakeAudio) started() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.sessions...)
}

type fakeInput struct {
	log       *callLog
	shortcuts []hotkey.Shortcut
}

func (i *fakeInput) Start() error { i.log.add("input start"); return nil }
func (i *fakeInput) Stop()        { i.log.add("input stop") }

// loggedOutput records its cleanup in the shared call log.
type loggedOutput struct {
	*output.Recorder
	name string
	log  *callLog
}

func (o loggedOutput) Cleanup() {
	o.log.add("profile " + o.name)
	o.Recorder.Cleanup()
}

type harness struct {
	t     *testing.T
	c     *Controller
	bus   *bus.Bus
	audio *fakeAudio
	log   *callLog

	mu    sync.Mutex
	fakes map[string]*transcriber.Fake
	outs  map[string]*output.Recorder

	complete chan string
	started  chan struct{}
	failed   chan bus.Failure
	quit     chan struct{}
}

func profileConfig(name string, mode config.RecordingMode) config.Profile {
	return config.Profile{
		Name:          name,
		ActivationKey: "ctrl+space",
		BackendType:   "fake",
		RecordingOptions: config.RecordingOptions{
			SampleRate:    16000,
			RecordingMode: mode,
		},
	}
}

func newHarness(t *testing.T, profiles ...config.Profile) *harness {
	t.Helper()
	return startHarness(t, nil, profiles)
}

// newCaptureHarness drives a real audio.Manager on actx instead of fakeAudio.
func newCaptureHarness(t *testing.T, actx audio.Context, profiles ...config.Profile) *harness {
	t.Helper()
	return startHarness(t, actx, profiles)
}

func startHarness(t *testing.T, actx audio.Context, profiles []config.Profile) *harness {
	t.Helper()
	calls := &callLog{}
	h := &harness{
		t:        t,
		bus:      bus.New(),
		audio:    &fakeAudio{log: calls},
		log:      calls,
		fakes:    map[string]*transcriber.Fake{},
		outs:     map[string]*output.Recorder{},
		complete: make(chan string, 16),
		started:  make(chan struct{}, 4),
		failed:   make(chan bus.Failure, 4),
		quit:     make(chan struct{}, 1),
	}
	engine := WithAudio(func(*bus.Bus) AudioEngine { return h.audio })
	if actx != nil {
		engine = WithCapture(actx)
	}
	c, err := New(h.bus, &config.Config{Profiles: profiles},
		engine,
		WithInput(func(_ *bus.Bus, _ string, sc []hotkey.Shortcut) (Input, error) {
			return &fakeInput{log: calls, shortcuts: sc}, nil
		}),
		WithProfileOptions(h.profileOptions),
	)
	if err != nil {
		t.Fatal(err)
	}
	h.c = c
	h.bus.Subscribe(bus.TranscriptionComplete, func(p any) { h.complete <- p.(bus.Session).ID })
	h.bus.Subscribe(bus.CoreComponentsStarted, func(any) { h.started <- struct{}{} })
	h.bus.Subscribe(bus.InitializationFailed, func(p any) { h.failed <- p.(bus.Failure) })
	h.bus.Subscribe(bus.QuitApplication, func(any) { h.quit <- struct{}{} })
	t.Cleanup(func() {
		c.Close()
		h.bus.Close()
	})
	return h
}

func (h *harness) profileOptions(pc config.Profile) []profile.Option {
	h.mu.Lock()
	defer h.mu.Unlock()
	fake := &transcriber.Fake{}
	rec := &output.Recorder{}
	h.fakes[pc.Name] = fake
	h.outs[pc.Name] = rec
	return []profile.Option{
		profile.WithBackend(fake),
		profile.WithOutput(loggedOutput{Recorder: rec, name: pc.Name, log: h.log}),
	}
}

func (h *harness) backend(name string) *transcriber.Fake {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.fakes[name]
}

func (h *harness) output(name string) *output.Recorder {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.outs[name]
}

func (h *harness) listen() {
	h.t.Helper()
	h.c.StartListening()
	select {
	case <-h.started:
	case f := <-h.failed:
		h.t.Fatalf("initialization failed: %v", f.Err)
	case <-time.After(5 * time.Second):
		h.t.Fatal("core components did not start")
	}
}

func (h *harness) press(name string) {
	h.bus.Emit(bus.ShortcutTriggered, bus.Shortcut{Profile: name, Action: bus.Press})
	h.bus.Sync()
}

func (h *harness) release(name string) {
	h.bus.Emit(bus.ShortcutTriggered, bus.Shortcut{Profile: name, Action: bus.Release})
	h.bus.Sync()
}

// deliverAudio plays the part of the engine finishing a recording: samples
// then the end-of-audio sentinel.
func (h *harness) deliverAudio(name, session string) {
	q := h.c.Profile(name).AudioQueue()
	q.Push(audio.Chunk{SessionID: session, SampleRate: 16000, Channels: 1, Samples: make([]int16, 1600)})
	q.Push(audio.Chunk{SessionID: session, End: true})
}

func (h *harness) waitComplete(session string) {
	h.t.Helper()
	select {
	case id := <-h.complete:
		if id != session {
			h.t.Fatalf("transcription_complete for %q, want %q", id, session)
		}
	case <-time.After(5 * time.Second):
		h.t.Fatalf("transcription_complete for %s not emitted", session)
	}
	h.bus.Sync()
}

func (h *harness) sessionCount() int {
	done := make(chan int, 1)
	id := h.bus.Subscribe("test_sessions", func(any) { done <- len(h.c.sessions) })
	defer h.bus.Unsubscribe("test_sessions", id)
	h.bus.Emit("test_sessions", nil)
	return <-done
}

func TestPressToToggleSession(t *testing.T) {
	h := newHarness(t, profileConfig("dict", config.PressToToggle))
	h.backend("dict").Texts = []string{"hello"}
	h.listen()

	h.press("dict")
	started := h.audio.started()
	if len(started) != 1 {
		t.Fatalf("recordings started = %d", len(started))
	}
	p := h.c.Profile("dict")
	if p.State() != profile.Recording || p.SessionID() != started[0] {
		t.Fatalf("profile state %v session %q", p.State(), p.SessionID())
	}
	if n := h.sessionCount(); n != 1 {
		t.Fatalf("sessions = %d", n)
	}

	h.press("dict")
	if p.State() != profile.Transcribing {
		t.Fatalf("state after second press = %v", p.State())
	}
	h.deliverAudio("dict", started[0])
	h.waitComplete(started[0])

	if got := h.output("dict").Text(); got != "hello" {
		t.Errorf("typed %q", got)
	}
	if n := h.sessionCount(); n != 0 {
		t.Errorf("sessions = %d after completion", n)
	}
	if len(h.audio.started()) != 1 {
		t.Error("press-to-toggle profile restarted")
	}
}

func TestHoldToRecordStopsOnRelease(t *testing.T) {
	h := newHarness(t, profileConfig("hold", config.HoldToRecord))
	h.listen()

	h.press("hold")
	p := h.c.Profile("hold")
	h.press("hold")
	if p.State() != profile.Recording {
		t.Fatalf("second press changed state to %v", p.State())
	}
	h.release("hold")
	if p.State() != profile.Transcribing {
		t.Fatalf("state after release = %v", p.State())
	}
}

func TestContinuousRestartsWithNewSession(t *testing.T) {
	h := newHarness(t, profileConfig("cont", config.Continuous))
	h.listen()

	h.press("cont")
	first := h.audio.started()[0]

	h.audio.autoStop()
	h.deliverAudio("cont", first)
	h.bus.Emit(bus.RecordingStopped, bus.Session{ID: first})
	h.waitComplete(first)

	started := h.audio.started()
	if len(started) != 2 {
		t.Fatalf("recordings started = %d, want automatic restart", len(started))
	}
	if started[1] == first || started[1] == "" {
		t.Errorf("restart reused session %q", started[1])
	}
	p := h.c.Profile("cont")
	if p.SessionID() != started[1] || p.State() != profile.Recording {
		t.Errorf("profile state %v session %q", p.State(), p.SessionID())
	}
}

func TestManualStopSuppressesRestartOnce(t *testing.T) {
	h := newHarness(t, profileConfig("cont", config.Continuous))
	h.listen()

	h.press("cont")
	first := h.audio.started()[0]
	h.press("cont")
	h.deliverAudio("cont", first)
	h.waitComplete(first)

	if n := len(h.audio.started()); n != 1 {
		t.Fatalf("manual stop was followed by %d recordings", n)
	}
	if h.c.Profile("cont").State() != profile.Idle {
		t.Fatal("profile not idle after suppressed restart")
	}

	// The marker is gone: the next session restarts normally.
	h.press("cont")
	second := h.audio.started()[1]
	h.audio.autoStop()
	h.deliverAudio("cont", second)
	h.bus.Emit(bus.RecordingStopped, bus.Session{ID: second})
	h.waitComplete(second)
	if n := len(h.audio.started()); n != 3 {
		t.Errorf("recordings started = %d, want a restart after the second session", n)
	}
}

func TestDuplicateCompletionIsNoop(t *testing.T) {
	h := newHarness(t, profileConfig("cont", config.Continuous))
	h.listen()

	h.bus.Emit(bus.TranscriptionComplete, bus.Session{ID: "unknown"})
	h.waitComplete("unknown")
	if n := len(h.audio.started()); n != 0 {
		t.Fatalf("unknown session started %d recordings", n)
	}

	h.press("cont")
	first := h.audio.started()[0]
	h.press("cont")
	h.deliverAudio("cont", first)
	h.waitComplete(first)

	h.bus.Emit(bus.TranscriptionComplete, bus.Session{ID: first})
	h.waitComplete(first)
	if n := len(h.audio.started()); n != 1 {
		t.Errorf("duplicate completion started %d recordings", n)
	}
}

func TestStartRejectedWhileAudioBusy(t *testing.T) {
	h := newHarness(t, profileConfig("a", config.PressToToggle), profileConfig("b", config.PressToToggle))
	h.listen()

	h.press("a")
	h.press("b")
	if n := len(h.audio.started()); n != 1 {
		t.Fatalf("recordings started = %d", n)
	}
	if h.c.Profile("b").State() != profile.Idle {
		t.Errorf("busy engine still started profile b")
	}
	if n := h.sessionCount(); n != 1 {
		t.Errorf("sessions = %d", n)
	}
}

func TestSharedKeyStartsOneRecording(t *testing.T) {
	samples := make([]int16, 5*16000)
	actx := audio.NewFakeContext(samples, 16000, audio.Realtime())
	h := newCaptureHarness(t, actx, profileConfig("a", config.PressToToggle), profileConfig("b", config.PressToToggle))
	h.listen()

	// One key event bound to both profiles.
	h.bus.Emit(bus.ShortcutTriggered, bus.Shortcut{Profile: "a", Action: bus.Press})
	h.bus.Emit(bus.ShortcutTriggered, bus.Shortcut{Profile: "b", Action: bus.Press})
	h.bus.Sync()

	a, b := h.c.Profile("a"), h.c.Profile("b")
	if a.State() != profile.Recording {
		t.Fatalf("profile a state = %v, want recording", a.State())
	}
	if b.State() != profile.Idle {
		t.Fatalf("profile b state = %v while the engine was busy", b.State())
	}
	if n := h.sessionCount(); n != 1 {
		t.Fatalf("sessions = %d", n)
	}

	id := a.SessionID()
	time.Sleep(300 * time.Millisecond)
	h.press("a")
	h.waitComplete(id)

	h.press("b")
	if b.State() != profile.Recording {
		t.Errorf("profile b state = %v after the engine went idle", b.State())
	}
}

func TestAudioDiscardedFinishesSession(t *testing.T) {
	h := newHarness(t, profileConfig("dict", config.PressToToggle))
	h.listen()

	h.press("dict")
	id := h.audio.started()[0]
	h.audio.autoStop()
	h.bus.Emit(bus.AudioDiscarded, bus.Session{ID: id})
	h.waitComplete(id)

	if h.c.Profile("dict").State() != profile.Idle {
		t.Error("profile not idle after discard")
	}
	if n := h.sessionCount(); n != 0 {
		t.Errorf("sessions = %d", n)
	}
	if got := h.output("dict").Text(); got != "" {
		t.Errorf("typed %q for discarded audio", got)
	}
}

func TestInitializationFailure(t *testing.T) {
	h := newHarness(t, profileConfig("bad", config.PressToToggle))
	h.backend("bad").InitErr = errors.New("missing api key")

	h.c.StartListening()
	select {
	case f := <-h.failed:
		if f.Err == nil {
			t.Error("failure without error")
		}
	case <-h.started:
		t.Fatal("started with a failing backend")
	case <-time.After(5 * time.Second):
		t.Fatal("initialization_failed not emitted")
	}
	h.bus.Sync()
	if h.c.Profile("bad") != nil {
		t.Error("profiles kept after failed start")
	}
	h.press("bad")
	if n := len(h.audio.started()); n != 0 {
		t.Errorf("recordings started = %d", n)
	}
}

func TestConfigChangedReloadsAndRestarts(t *testing.T) {
	h := newHarness(t, profileConfig("old", config.PressToToggle))
	h.listen()

	h.bus.Emit(bus.ConfigChanged, &config.Config{Profiles: []config.Profile{profileConfig("new", config.HoldToRecord)}})
	select {
	case <-h.started:
	case <-time.After(5 * time.Second):
		t.Fatal("not restarted after config change")
	}
	h.bus.Sync()
	if h.c.Profile("old") != nil || h.c.Profile("new") == nil {
		t.Fatal("profiles not rebuilt")
	}
	h.press("new")
	if n := len(h.audio.started()); n != 1 {
		t.Errorf("recordings started = %d", n)
	}
}

func TestCloseAppQuits(t *testing.T) {
	h := newHarness(t, profileConfig("p", config.PressToToggle))
	h.bus.Emit(bus.CloseApp, nil)
	select {
	case <-h.quit:
	case <-time.After(5 * time.Second):
		t.Fatal("quit_application not emitted")
	}
}

func TestCleanupOrder(t *testing.T) {
	h := newHarness(t, profileConfig("a", config.PressToToggle), profileConfig("b", config.PressToToggle))
	h.listen()
	h.press("a")
	id := h.audio.started()[0]

	h.c.Close()
	h.waitComplete(id)

	want := []string{"input start", "audio start", "profile a", "profile b", "audio stop", "input stop"}
	if got := h.log.list(); !reflect.DeepEqual(got, want) {
		t.Errorf("calls = %q, want %q", got, want)
	}
	h.audio.mu.Lock()
	stops := h.audio.stops
	h.audio.mu.Unlock()
	if stops == 0 {
		t.Error("open recording not interrupted")
	}
}
