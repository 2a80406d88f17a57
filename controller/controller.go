// Package controller is the top-level coordinator. It owns the profiles, the
// shared audio engine and the input listener, maps session IDs to profiles,
// and restarts continuous-mode profiles when their transcription completes.
//
// Every handler runs on the bus dispatch goroutine, so the controller state
// is only touched there. That serializes a completion with any shortcut that
// manually stops the same profile.
package controller

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"hotscribe/audio"
	"hotscribe/beep"
	"hotscribe/bus"
	"hotscribe/config"
	"hotscribe/hotkey"
	"hotscribe/log"
	"hotscribe/observe"
	"hotscribe/profile"
)

// AudioEngine is the part of audio.Manager the controller drives.
type AudioEngine interface {
	Start()
	Stop()
	StartRecording(target audio.RecordingTarget, sessionID string) error
	StopRecording()
	IsRecording() bool
}

// Input is the part of hotkey.Manager the controller drives.
type Input interface {
	Start() error
	Stop()
}

type (
	AudioFactory   func(b *bus.Bus) AudioEngine
	InputFactory   func(b *bus.Bus, backend string, shortcuts []hotkey.Shortcut) (Input, error)
	ProfileOptions func(cfg config.Profile) []profile.Option
)

// topicCleanup runs cleanup on the dispatch goroutine for Close.
const topicCleanup bus.Topic = "controller_cleanup"

type Controller struct {
	bus     *bus.Bus
	metrics *observe.Metrics

	newAudio       AudioFactory
	newInput       InputFactory
	profileOptions ProfileOptions
	configPath     string

	// dispatch goroutine only
	cfg             *config.Config
	profiles        map[string]*profile.Profile
	order           []string
	sessions        map[string]string
	manuallyStopped map[string]bool
	listening       bool
	audio           AudioEngine
	input           Input

	subs      []subscription
	closeOnce sync.Once
}

type subscription struct {
	topic bus.Topic
	id    bus.SubscriptionID
}

type Option func(*Controller)

// WithCapture builds the audio engine on ctx.
func WithCapture(ctx audio.Context, opts ...audio.Option) Option {
	return func(c *Controller) {
		c.newAudio = func(b *bus.Bus) AudioEngine {
			return audio.NewManager(b, ctx, append([]audio.Option{audio.WithMetrics(c.metrics)}, opts...)...)
		}
	}
}

func WithAudio(f AudioFactory) Option { return func(c *Controller) { c.newAudio = f } }

func WithInput(f InputFactory) Option { return func(c *Controller) { c.newInput = f } }

// WithProfileOptions adds per-profile options, such as a test backend.
func WithProfileOptions(f ProfileOptions) Option {
	return func(c *Controller) { c.profileOptions = f }
}

func WithMetrics(m *observe.Metrics) Option { return func(c *Controller) { c.metrics = m } }

// WithConfigPath resolves relative rules files next to the config file.
func WithConfigPath(path string) Option { return func(c *Controller) { c.configPath = path } }

func defaultInput(b *bus.Bus, backend string, shortcuts []hotkey.Shortcut) (Input, error) {
	m, err := hotkey.NewManager(b, backend, shortcuts)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// New loads the active profiles of cfg and subscribes to the bus. Nothing
// listens or records until start_listening.
func New(b *bus.Bus, cfg *config.Config, opts ...Option) (*Controller, error) {
	c := &Controller{
		bus:             b,
		cfg:             cfg,
		newInput:        defaultInput,
		sessions:        map[string]string{},
		manuallyStopped: map[string]bool{},
	}
	for _, o := range opts {
		o(c)
	}
	if c.metrics == nil {
		c.metrics = observe.DefaultMetrics()
	}
	if c.newAudio == nil {
		return nil, errors.New("controller: no audio capture configured")
	}
	if err := c.loadProfiles(); err != nil {
		return nil, err
	}
	beep.SetEnabled(cfg.GlobalOptions.NoiseOnCompletion)

	c.subscribe(bus.StartListening, func(any) { c.startListening() })
	c.subscribe(bus.ShortcutTriggered, c.handleShortcut)
	c.subscribe(bus.RecordingStopped, c.handleRecordingStopped)
	c.subscribe(bus.AudioDiscarded, c.handleAudioDiscarded)
	c.subscribe(bus.TranscriptionComplete, c.handleTranscriptionComplete)
	c.subscribe(bus.ConfigChanged, c.handleConfigChanged)
	c.subscribe(bus.TranscriptionError, func(any) { beep.Play(beep.Error) })
	c.subscribe(bus.CloseApp, func(any) { c.bus.Emit(bus.QuitApplication, nil) })
	c.subscribe(topicCleanup, func(p any) {
		c.cleanup()
		close(p.(chan struct{}))
	})
	return c, nil
}

func (c *Controller) subscribe(topic bus.Topic, fn bus.Handler) {
	c.subs = append(c.subs, subscription{topic: topic, id: c.bus.Subscribe(topic, fn)})
}

// StartListening asks the dispatch goroutine to start the input listener,
// the audio engine and every transcription backend.
func (c *Controller) StartListening() { c.bus.Emit(bus.StartListening, nil) }

// Close cleans up and drops the subscriptions. It must not be called from a
// bus handler.
func (c *Controller) Close() {
	c.closeOnce.Do(func() {
		done := make(chan struct{})
		c.bus.Emit(topicCleanup, done)
		c.bus.Sync()
		select {
		case <-done:
		default:
			// the bus is closed, nothing else touches the state now
			c.cleanup()
		}
		for _, s := range c.subs {
			c.bus.Unsubscribe(s.topic, s.id)
		}
	})
}

func (c *Controller) loadProfiles() error {
	c.profiles = map[string]*profile.Profile{}
	c.order = nil
	dir := ""
	if c.configPath != "" {
		dir = filepath.Dir(c.configPath)
	}
	for _, pc := range c.cfg.Active() {
		opts := []profile.Option{profile.WithMetrics(c.metrics), profile.WithScriptsDir(dir)}
		if c.profileOptions != nil {
			opts = append(opts, c.profileOptions(pc)...)
		}
		p, err := profile.New(c.bus, pc, opts...)
		if err != nil {
			for _, loaded := range c.profiles {
				loaded.Close()
			}
			c.profiles = map[string]*profile.Profile{}
			c.order = nil
			return err
		}
		c.profiles[pc.Name] = p
		c.order = append(c.order, pc.Name)
	}
	return nil
}

func (c *Controller) startListening() {
	c.listening = true
	if err := c.startCore(); err != nil {
		log.Errorf("startup failed: %v", err)
		c.cleanup()
		c.listening = false
		c.bus.Emit(bus.InitializationFailed, bus.Failure{Err: err})
		return
	}
	c.bus.Emit(bus.CoreComponentsStarted, nil)
}

func (c *Controller) startCore() error {
	if len(c.profiles) == 0 {
		return errors.New("no active profiles")
	}
	shortcuts := make([]hotkey.Shortcut, 0, len(c.order))
	for _, name := range c.order {
		shortcuts = append(shortcuts, hotkey.Shortcut{Profile: name, Keys: c.profiles[name].Config().ActivationKey})
	}
	in, err := c.newInput(c.bus, c.cfg.GlobalOptions.InputBackend, shortcuts)
	if err != nil {
		return fmt.Errorf("input: %w", err)
	}
	c.input = in
	c.audio = c.newAudio(c.bus)
	if err := c.input.Start(); err != nil {
		return fmt.Errorf("input: %w", err)
	}
	c.audio.Start()

	g, ctx := errgroup.WithContext(context.Background())
	for _, name := range c.order {
		p := c.profiles[name]
		g.Go(func() error { return p.Start(ctx) })
	}
	return g.Wait()
}

func (c *Controller) handleShortcut(payload any) {
	sc, ok := bus.Expect[bus.Shortcut](bus.ShortcutTriggered, payload)
	if !ok {
		return
	}
	p := c.profiles[sc.Profile]
	if p == nil {
		return
	}
	switch sc.Action {
	case bus.Press:
		if p.ShouldStartOnPress() {
			c.startRecording(p)
		} else if p.ShouldStopOnPress() {
			c.stopRecording(p)
			if p.Mode() == config.Continuous {
				c.manuallyStopped[p.Name()] = true
			}
		}
	case bus.Release:
		if p.ShouldStopOnRelease() {
			c.stopRecording(p)
		}
	}
}

func (c *Controller) startRecording(p *profile.Profile) {
	if c.audio == nil {
		log.Warnf("profile %s: not listening", p.Name())
		return
	}
	if !p.IsIdle() || c.audio.IsRecording() {
		log.Info("Profile or audio thread is busy.")
		return
	}
	id := uuid.NewString()
	c.sessions[id] = p.Name()
	if err := c.audio.StartRecording(p, id); err != nil {
		delete(c.sessions, id)
		if errors.Is(err, audio.ErrBusy) {
			log.Info("Profile or audio thread is busy.")
			return
		}
		log.Errorf("profile %s: %v", p.Name(), err)
		return
	}
	if err := p.StartTranscription(id); err != nil {
		delete(c.sessions, id)
		c.audio.StopRecording()
		log.Errorf("profile %s: %v", p.Name(), err)
		return
	}
	delete(c.manuallyStopped, p.Name())
	c.metrics.SessionDelta(context.Background(), p.Name(), 1)
}

func (c *Controller) stopRecording(p *profile.Profile) {
	if !p.IsRecording() {
		return
	}
	if c.audio != nil {
		c.audio.StopRecording()
	}
	p.StopRecording()
}

func (c *Controller) profileFor(sessionID string) *profile.Profile {
	name, ok := c.sessions[sessionID]
	if !ok {
		return nil
	}
	return c.profiles[name]
}

func (c *Controller) handleRecordingStopped(payload any) {
	s, ok := bus.Expect[bus.Session](bus.RecordingStopped, payload)
	if !ok {
		return
	}
	if p := c.profileFor(s.ID); p != nil {
		c.stopRecording(p)
	}
}

// handleAudioDiscarded routes a discarded recording through the normal
// finish path; the profile then emits transcription_complete.
func (c *Controller) handleAudioDiscarded(payload any) {
	s, ok := bus.Expect[bus.Session](bus.AudioDiscarded, payload)
	if !ok {
		return
	}
	if p := c.profileFor(s.ID); p != nil && p.SessionID() == s.ID {
		p.FinishTranscription()
	}
}

func (c *Controller) handleTranscriptionComplete(payload any) {
	s, ok := bus.Expect[bus.Session](bus.TranscriptionComplete, payload)
	if !ok {
		return
	}
	c.complete(s.ID)
}

func (c *Controller) complete(sessionID string) {
	p := c.profileFor(sessionID)
	if p == nil {
		return
	}
	delete(c.sessions, sessionID)
	c.metrics.SessionDelta(context.Background(), p.Name(), -1)
	beep.Play(beep.Complete)

	if p.Mode() == config.Continuous && !c.manuallyStopped[p.Name()] {
		c.startRecording(p)
		return
	}
	delete(c.manuallyStopped, p.Name())
}

func (c *Controller) handleConfigChanged(payload any) {
	cfg, ok := bus.Expect[*config.Config](bus.ConfigChanged, payload)
	if !ok || cfg == nil {
		return
	}
	c.cleanup()
	c.cfg = cfg
	beep.SetEnabled(cfg.GlobalOptions.NoiseOnCompletion)
	if err := c.loadProfiles(); err != nil {
		log.Errorf("reload: %v", err)
		c.bus.Emit(bus.InitializationFailed, bus.Failure{Err: err})
		return
	}
	if c.listening {
		c.startListening()
	}
}

// cleanup force-finishes open sessions, then tears down the profiles, the
// audio engine and the input listener, in that order.
func (c *Controller) cleanup() {
	if len(c.sessions) > 0 && c.audio != nil {
		c.audio.StopRecording()
	}
	for id, name := range c.sessions {
		if p := c.profiles[name]; p != nil {
			p.FinishTranscription()
		}
		delete(c.sessions, id)
		c.metrics.SessionDelta(context.Background(), name, -1)
	}
	clear(c.manuallyStopped)

	for _, name := range c.order {
		c.profiles[name].Close()
	}
	c.profiles = map[string]*profile.Profile{}
	c.order = nil

	if c.audio != nil {
		c.audio.Stop()
		c.audio = nil
	}
	if c.input != nil {
		c.input.Stop()
		c.input = nil
	}
}

// Profile returns a loaded profile by name.
func (c *Controller) Profile(name string) *profile.Profile { return c.profiles[name] }
