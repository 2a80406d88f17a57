package main

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"hotscribe/audio"
	"hotscribe/bus"
	"hotscribe/config"
	"hotscribe/controller"
	"hotscribe/hotkey"
	"hotscribe/log"
	"hotscribe/output"
	"hotscribe/profile"
)

// testScript drives -test mode: key events come from stdin commands
// (press/release/tap/sleep/quit), the microphone is a WAV file played in
// real time and every profile prints its output to stdout.
type testScript struct {
	src  *hotkey.Stdin
	fake *audio.FakeContext

	mu     sync.Mutex
	status map[string]string
}

func newTestScript(b *bus.Bus, wavPath string) (*testScript, error) {
	if wavPath == "" {
		return nil, errors.New("-test needs a WAV file argument")
	}
	fake, err := audio.NewFakeContextFromWAV(wavPath, audio.Realtime(), audio.PadSilence())
	if err != nil {
		return nil, fmt.Errorf("loading WAV: %w", err)
	}
	s := &testScript{
		src:    hotkey.NewStdin(os.Stdin),
		fake:   fake,
		status: map[string]string{},
	}
	b.Subscribe(bus.ProfileStateChange, func(payload any) {
		st, ok := bus.Expect[bus.Status](bus.ProfileStateChange, payload)
		if !ok {
			return
		}
		s.mu.Lock()
		s.status[st.Profile] = st.Text
		s.mu.Unlock()
	})
	return s, nil
}

func (s *testScript) options() []controller.Option {
	return []controller.Option{
		controller.WithCapture(s.fake),
		controller.WithInput(s.newInput),
		controller.WithProfileOptions(func(config.Profile) []profile.Option {
			return []profile.Option{profile.WithOutput(output.NewPrinter(os.Stdout))}
		}),
	}
}

type scriptedInput struct {
	*hotkey.Manager
	src *hotkey.Stdin
}

func (in scriptedInput) Start() error { return in.Use(in.src) }

func (s *testScript) newInput(b *bus.Bus, _ string, shortcuts []hotkey.Shortcut) (controller.Input, error) {
	m, err := hotkey.NewManager(b, "stdin", shortcuts)
	if err != nil {
		return nil, err
	}
	return scriptedInput{Manager: m, src: s.src}, nil
}

func (s *testScript) busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, text := range s.status {
		if text != "" {
			return true
		}
	}
	return false
}

// wait closes the app once the script has ended and every profile went
// back to idle, or after a grace period for sessions that never stop.
func (s *testScript) wait(b *bus.Bus, quit <-chan struct{}) {
	select {
	case <-s.src.Done():
	case <-quit:
		return
	}
	log.Info("test script finished, waiting for sessions")

	deadline := time.After(30 * time.Second)
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	for {
		b.Sync()
		if !s.busy() {
			break
		}
		select {
		case <-tick.C:
		case <-deadline:
			log.Warn("test script: sessions still active, quitting anyway")
			b.Emit(bus.CloseApp, nil)
			return
		case <-quit:
			return
		}
	}
	b.Emit(bus.CloseApp, nil)
}
