package notify

import (
	"errors"
	"sync"
	"testing"
	"time"

	"hotscribe/bus"
)

type sent struct {
	mu   sync.Mutex
	msgs []string
}

func (s *sent) send(_, msg string) error {
	s.mu.Lock()
	s.msgs = append(s.msgs, msg)
	s.mu.Unlock()
	return nil
}

func (s *sent) list() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.msgs...)
}

func capture(t *testing.T) *sent {
	t.Helper()
	s := &sent{}
	prev := send
	send = s.send
	mu.Lock()
	last = map[string]time.Time{}
	mu.Unlock()
	t.Cleanup(func() { send = prev })
	return s
}

func TestErrorThrottlesRepeats(t *testing.T) {
	s := capture(t)
	Error("backend down")
	Error("backend down")
	Error("other")
	got := s.list()
	if len(got) != 2 || got[0] != "backend down" || got[1] != "other" {
		t.Errorf("sent %q", got)
	}
}

func TestWatch(t *testing.T) {
	s := capture(t)
	b := bus.New()
	defer b.Close()
	Watch(b)

	b.Emit(bus.TranscriptionError, bus.Failure{Profile: "p", Err: errors.New("timeout")})
	b.Emit(bus.InitializationFailed, bus.Failure{Err: errors.New("no key")})
	b.Sync()

	got := s.list()
	if len(got) != 2 {
		t.Fatalf("sent %q", got)
	}
	if got[0] != "(p) transcription failed: timeout" {
		t.Errorf("first = %q", got[0])
	}
}
