// Package doctor runs the -doctor diagnostics: configuration, hotkey input,
// microphone, transcription backends and keystroke output.
package doctor

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"os/exec"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/term"

	"hotscribe/audio"
	"hotscribe/bus"
	"hotscribe/config"
	"hotscribe/encoder"
	"hotscribe/hotkey"
	"hotscribe/output"
	"hotscribe/shutdown"
	"hotscribe/transcriber"
)

const (
	totalSteps = 5
	channels   = 1
)

// Run executes the checks and returns an exit code (0=all pass, 1=any fail).
// wavPath, when set, replaces the microphone with a WAV file.
func Run(configPath, wavPath string) int {
	fd := int(os.Stdin.Fd())
	if state, err := term.GetState(fd); err == nil {
		defer term.Restore(fd, state)
		stop := shutdown.OnSignal(func(os.Signal) {
			term.Restore(fd, state)
			fmt.Println("\nInterrupted")
			os.Exit(1)
		})
		defer stop()
	}

	c := &checker{
		out:         os.Stdout,
		interactive: term.IsTerminal(fd),
		wavPath:     wavPath,
		record:      3 * time.Second,
	}
	fmt.Fprintln(c.out, "hotscribe doctor - system diagnostics")
	fmt.Fprintln(c.out, "=====================================")

	ok := c.run(configPath)
	fmt.Fprintln(c.out)
	if ok {
		fmt.Fprintln(c.out, "All checks passed!")
		return 0
	}
	fmt.Fprintln(c.out, "Some checks failed. See details above.")
	return 1
}

type checker struct {
	out         io.Writer
	interactive bool
	wavPath     string
	record      time.Duration

	step    int
	cfg     *config.Config
	samples []int16
	rate    int
}

func (c *checker) run(configPath string) bool {
	if !c.checkConfig(configPath) {
		return false
	}
	ok := c.checkInput()
	if !c.checkAudio() {
		return false
	}
	ok = c.checkBackends() && ok
	ok = c.checkOutput() && ok
	return ok
}

func (c *checker) header(title string) {
	c.step++
	fmt.Fprintln(c.out)
	fmt.Fprintf(c.out, "[%d/%d] %s\n", c.step, totalSteps, title)
}

func (c *checker) pass(format string, args ...any) {
	fmt.Fprintf(c.out, "  PASS: "+format+"\n", args...)
}

func (c *checker) fail(format string, args ...any) bool {
	fmt.Fprintf(c.out, "  FAIL: "+format+"\n", args...)
	return false
}

func (c *checker) warn(format string, args ...any) {
	fmt.Fprintf(c.out, "  WARN: "+format+"\n", args...)
}

func (c *checker) checkConfig(path string) bool {
	c.header("Configuration")
	if _, err := os.Stat(path); err != nil {
		c.warn("%s not found, using the built-in default", path)
	}
	cfg, err := config.Load(path)
	if err != nil {
		return c.fail("%v", err)
	}
	c.cfg = cfg
	active := cfg.Active()
	names := make([]string, 0, len(active))
	for _, p := range active {
		names = append(names, fmt.Sprintf("%s (%s, %s)", p.Name, p.BackendType, p.RecordingOptions.RecordingMode))
	}
	c.pass("%d active profile(s): %s", len(active), strings.Join(names, ", "))
	return true
}

func (c *checker) checkInput() bool {
	c.header("Hotkey input")
	if c.cfg.GlobalOptions.InputBackend == "stdin" {
		c.pass("stdin input backend, nothing to check")
		return true
	}
	msg, err := hotkey.Diagnose()
	if err != nil {
		return c.fail("%v", err)
	}
	fmt.Fprintf(c.out, "  %s\n", msg)
	if !c.interactive {
		c.pass("input backend available")
		return true
	}

	active := c.cfg.Active()
	shortcuts := make([]hotkey.Shortcut, 0, len(active))
	for _, p := range active {
		shortcuts = append(shortcuts, hotkey.Shortcut{Profile: p.Name, Keys: p.ActivationKey})
	}
	b := bus.New()
	defer b.Close()
	pressed := make(chan string, 1)
	b.Subscribe(bus.ShortcutTriggered, func(payload any) {
		if sc, ok := bus.Expect[bus.Shortcut](bus.ShortcutTriggered, payload); ok && sc.Action == bus.Press {
			select {
			case pressed <- sc.Profile:
			default:
			}
		}
	})
	m, err := hotkey.NewManager(b, c.cfg.GlobalOptions.InputBackend, shortcuts)
	if err != nil {
		return c.fail("%v", err)
	}
	if err := m.Start(); err != nil {
		return c.fail("could not start input backend: %v", err)
	}
	defer m.Stop()

	fmt.Fprintf(c.out, "Press %s (profile %s)...\n", active[0].ActivationKey, active[0].Name)
	select {
	case name := <-pressed:
		c.pass("shortcut detected for profile %s via %s", name, m.Backend())
		return true
	case <-time.After(10 * time.Second):
		return c.fail("timeout waiting for shortcut")
	}
}

func (c *checker) checkAudio() bool {
	c.header("Microphone")
	var (
		actx   audio.Context
		device *audio.DeviceInfo
	)
	c.rate = c.cfg.Active()[0].RecordingOptions.SampleRate
	if c.wavPath != "" {
		fake, err := audio.NewFakeContextFromWAV(c.wavPath)
		if err != nil {
			return c.fail("%v", err)
		}
		actx, c.rate = fake, fake.SampleRate()
		fmt.Fprintf(c.out, "  using %s instead of a microphone\n", c.wavPath)
	} else {
		mic, err := audio.NewContext()
		if err != nil {
			return c.fail("cannot connect to audio: %v", err)
		}
		actx = mic
		devices, err := actx.Devices()
		if err != nil {
			actx.Close()
			return c.fail("cannot list devices: %v", err)
		}
		if len(devices) == 0 {
			actx.Close()
			return c.fail("no capture devices found")
		}
		for _, d := range devices {
			fmt.Fprintf(c.out, "  device: %s\n", d.Name)
		}
		for _, p := range c.cfg.Active() {
			if _, err := audio.FindDevice(actx, p.RecordingOptions.SoundDevice); err != nil {
				c.warn("profile %s: %v (system default will be used)", p.Name, err)
			}
		}
		device, _ = audio.FindDevice(actx, c.cfg.Active()[0].RecordingOptions.SoundDevice)
	}
	defer actx.Close()

	if c.wavPath == "" {
		fmt.Fprintf(c.out, "Speak for %s...\n", c.record)
	}
	samples, err := capture(actx, device, c.rate, c.record)
	if err != nil {
		return c.fail("recording error: %v", err)
	}
	if len(samples) == 0 {
		return c.fail("no audio captured")
	}
	c.samples = samples
	level := peak(samples)
	seconds := float64(len(samples)) / float64(c.rate)
	if level < 0.02 {
		c.warn("captured %.1fs but the signal is nearly silent (peak %.3f)", seconds, level)
		return true
	}
	c.pass("captured %.1fs, peak level %.2f", seconds, level)
	return true
}

// capture records for d, or until a file-backed context runs out.
func capture(actx audio.Context, device *audio.DeviceInfo, rate int, d time.Duration) ([]int16, error) {
	dev, err := actx.NewCapture(device, audio.CaptureConfig{SampleRate: uint32(rate), Channels: channels})
	if err != nil {
		return nil, err
	}
	defer dev.Close()

	var (
		mu      sync.Mutex
		samples []int16
	)
	want := int(d.Seconds() * float64(rate))
	full := make(chan struct{})
	var once sync.Once
	dev.SetCallback(func(data []byte, _ uint32) {
		mu.Lock()
		samples = append(samples, encoder.Int16FromBytes(data)...)
		n := len(samples)
		mu.Unlock()
		if n >= want {
			once.Do(func() { close(full) })
		}
	})
	if err := dev.Start(); err != nil {
		dev.ClearCallback()
		return nil, err
	}
	select {
	case <-full:
	case <-time.After(d + time.Second):
	}
	dev.Stop()
	dev.ClearCallback()

	mu.Lock()
	defer mu.Unlock()
	return samples[:min(len(samples), want)], nil
}

func peak(samples []int16) float64 {
	var p float64
	for _, s := range samples {
		p = math.Max(p, math.Abs(float64(s)/32768))
	}
	return p
}

func (c *checker) checkBackends() bool {
	c.header("Transcription backends")
	ok := true
	for _, p := range c.cfg.Active() {
		if !c.checkBackend(p) {
			ok = false
		}
	}
	return ok
}

func (c *checker) checkBackend(p config.Profile) bool {
	be, err := transcriber.New(p.BackendType)
	if err != nil {
		return c.fail("profile %s: %v", p.Name, err)
	}
	defer be.Cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	start := time.Now()
	if err := be.Initialize(ctx, p.Backend); err != nil {
		return c.fail("profile %s: %s init: %v", p.Name, p.BackendType, err)
	}
	res := be.TranscribeComplete(ctx, c.samples, c.rate, channels, p.RecordingOptions.Language)
	if res.Err != nil {
		return c.fail("profile %s: %s: %v", p.Name, p.BackendType, res.Err)
	}
	text := strings.TrimSpace(res.RawText)
	if text == "" {
		text = "(no speech detected)"
	}
	c.pass("profile %s: %s answered in %s: %s", p.Name, p.BackendType, time.Since(start).Round(time.Millisecond), text)
	if p.UseStreaming() && !transcriber.SupportsStreaming(be) {
		c.warn("profile %s: use_streaming is set but %s transcribes in batch", p.Name, p.BackendType)
	}
	return true
}

func (c *checker) checkOutput() bool {
	c.header("Keystroke output")
	var methods []string
	for _, p := range c.cfg.Active() {
		if m := p.PostProcessing.KeyboardSimulator; !slices.Contains(methods, m) {
			methods = append(methods, m)
		}
	}
	ok := true
	for _, m := range methods {
		if !c.checkMethod(m) {
			ok = false
		}
	}
	return ok
}

func (c *checker) checkMethod(method string) bool {
	switch method {
	case "uinput":
		msg, err := output.VerifyUinput()
		if err != nil {
			c.fail("uinput: %v", err)
			fmt.Fprintln(c.out, "  Fix with: sudo chmod 660 /dev/uinput && sudo chgrp input /dev/uinput")
			return false
		}
		c.pass("uinput: %s", msg)
	case "keybd":
		if err := output.VerifyClipboard(); err != nil {
			return c.fail("keybd: clipboard: %v", err)
		}
		c.pass("keybd: clipboard round trip works")
	case "ydotool", "dotool":
		path, err := exec.LookPath(method)
		if err != nil {
			return c.fail("%s: not found in PATH", method)
		}
		c.pass("%s: %s", method, path)
	default:
		if _, err := output.New(method, 0); err != nil {
			return c.fail("%v", err)
		}
		c.pass("%s: no setup needed", method)
	}
	return true
}
