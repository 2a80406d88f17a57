package hotkey

import (
	"bufio"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"hotscribe/log"
)

// Stdin is a scripted backend. Each input line is one command:
//
//	press ctrl+shift+space    key down for one key of every group, in order
//	release ctrl+shift+space  key up, in reverse order
//	tap f9                    press then release
//	sleep 500ms               pause the script
//	quit                      stop reading
//
// Blank lines and lines starting with # are ignored. Done is closed when the
// script ends.
type Stdin struct {
	r    io.Reader
	stop chan struct{}
	done chan struct{}
	once sync.Once
}

// NewStdin reads commands from r, or from os.Stdin when r is nil.
func NewStdin(r io.Reader) *Stdin {
	if r == nil {
		r = os.Stdin
	}
	return &Stdin{
		r:    r,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
}

func (s *Stdin) Name() string { return "stdin" }

func (s *Stdin) Start(_ []Combination, emit func(KeyEvent)) error {
	go s.run(emit)
	return nil
}

func (s *Stdin) Stop() {
	s.once.Do(func() { close(s.stop) })
}

// Done is closed after the last command ran or the input ended.
func (s *Stdin) Done() <-chan struct{} { return s.done }

func (s *Stdin) stopped() bool {
	select {
	case <-s.stop:
		return true
	default:
		return false
	}
}

func (s *Stdin) run(emit func(KeyEvent)) {
	defer close(s.done)
	sc := bufio.NewScanner(s.r)
	for sc.Scan() {
		if s.stopped() {
			return
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		cmd, arg, _ := strings.Cut(line, " ")
		arg = strings.TrimSpace(arg)

		switch strings.ToLower(cmd) {
		case "press", "release", "tap":
			combo, err := ParseCombination(arg)
			if err != nil {
				log.Warnf("stdin input: %v", err)
				continue
			}
			keys := combo.Representative()
			if cmd != "release" {
				for _, k := range keys {
					emit(KeyEvent{Key: k, Down: true})
				}
			}
			if cmd != "press" {
				for i := len(keys) - 1; i >= 0; i-- {
					emit(KeyEvent{Key: keys[i], Down: false})
				}
			}
		case "sleep":
			d, err := time.ParseDuration(arg)
			if err != nil {
				log.Warnf("stdin input: bad duration %q", arg)
				continue
			}
			select {
			case <-time.After(d):
			case <-s.stop:
				return
			}
		case "quit", "exit":
			return
		default:
			log.Warnf("stdin input: unknown command %q", cmd)
		}
	}
	if err := sc.Err(); err != nil {
		log.Warnf("stdin input: %v", err)
	}
}
