// Package output delivers finished text to the focused window by
// simulating keystrokes.
package output

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

var ErrUnknownMethod = errors.New("unknown keyboard simulator")

// Simulator types text into whatever has keyboard focus. Backspace is used
// by streaming profiles to retract interim words.
type Simulator interface {
	Typewrite(text string) error
	Backspace(n int) error
	Cleanup()
}

// Methods lists the names accepted by New.
var Methods = []string{"uinput", "keybd", "ydotool", "dotool", "print"}

// New returns the simulator for method. delay is the pause between
// keystrokes for methods that type character by character.
func New(method string, delay time.Duration) (Simulator, error) {
	switch method {
	case "uinput":
		return newUinput(delay)
	case "keybd":
		return newKeybd()
	case "ydotool":
		return newYdotool(delay)
	case "dotool":
		return newDotool(delay)
	case "print":
		return NewPrinter(os.Stdout), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownMethod, method)
}

// Printer writes text to a stream instead of typing it. Backspaces are
// written as \b so a terminal renders the retraction.
type Printer struct {
	mu sync.Mutex
	w  io.Writer
}

func NewPrinter(w io.Writer) *Printer { return &Printer{w: w} }

func (p *Printer) Typewrite(text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, err := io.WriteString(p.w, text)
	return err
}

func (p *Printer) Backspace(n int) error {
	if n <= 0 {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	_, err := io.WriteString(p.w, strings.Repeat("\b \b", n))
	return err
}

func (p *Printer) Cleanup() {}

// Recorder keeps what would have been typed. Text() applies backspaces, so
// it reflects what the user would see on screen.
type Recorder struct {
	mu      sync.Mutex
	screen  []rune
	ops     []string
	Err     error
	cleaned bool
}

func (r *Recorder) Typewrite(text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.screen = append(r.screen, []rune(text)...)
	r.ops = append(r.ops, "type:"+text)
	return nil
}

func (r *Recorder) Backspace(n int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.ops = append(r.ops, fmt.Sprintf("backspace:%d", n))
	if n > len(r.screen) {
		n = len(r.screen)
	}
	r.screen = r.screen[:len(r.screen)-n]
	return nil
}

func (r *Recorder) Cleanup() {
	r.mu.Lock()
	r.cleaned = true
	r.mu.Unlock()
}

func (r *Recorder) Text() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return string(r.screen)
}

// Ops returns every call in order, formatted as "type:<text>" or
// "backspace:<n>".
func (r *Recorder) Ops() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.ops...)
}

func (r *Recorder) CleanedUp() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cleaned
}
