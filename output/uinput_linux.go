//go:build linux

package output

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"
)

const uinputName = "hotscribe virtual keyboard"

// linux/uinput.h
const (
	uiSetEvbit   = 0x40045564
	uiSetKeybit  = 0x40045565
	uiDevCreate  = 0x5501
	uiDevDestroy = 0x5502
)

const (
	evSyn  = 0x00
	evKey  = 0x01
	busUSB = 0x03
)

type inputEvent struct {
	Time  syscall.Timeval
	Type  uint16
	Code  uint16
	Value int32
}

type inputID struct {
	Bustype uint16
	Vendor  uint16
	Product uint16
	Version uint16
}

type uinputUserDev struct {
	Name         [80]byte
	ID           inputID
	FfEffectsMax uint32
	Absmax       [64]int32
	Absmin       [64]int32
	Absfuzz      [64]int32
	Absflat      [64]int32
}

type uinput struct {
	mu    sync.Mutex
	f     *os.File
	delay time.Duration
}

func newUinput(delay time.Duration) (Simulator, error) {
	u, err := openUinput(delay)
	if err != nil {
		return nil, err
	}
	return u, nil
}

func openUinput(delay time.Duration) (*uinput, error) {
	path := "/dev/uinput"
	if _, err := os.Stat(path); err != nil {
		path = "/dev/input/uinput"
		if _, err := os.Stat(path); err != nil {
			return nil, errors.New("uinput device not found, try: sudo modprobe uinput")
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|syscall.O_NONBLOCK, os.ModeDevice)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if err := setupDevice(f); err != nil {
		f.Close()
		return nil, err
	}
	// compositors need a moment to pick up a new input device
	time.Sleep(200 * time.Millisecond)
	return &uinput{f: f, delay: delay}, nil
}

func ioctl(f *os.File, req, arg uintptr) error {
	if _, _, errno := syscall.Syscall(syscall.SYS_IOCTL, f.Fd(), req, arg); errno != 0 {
		return errno
	}
	return nil
}

func setupDevice(f *os.File) error {
	for _, ev := range []uintptr{evKey, evSyn} {
		if err := ioctl(f, uiSetEvbit, ev); err != nil {
			return fmt.Errorf("UI_SET_EVBIT: %w", err)
		}
	}
	// udev only classifies the device as a keyboard with the full key range
	for code := uintptr(0); code < 256; code++ {
		if err := ioctl(f, uiSetKeybit, code); err != nil {
			return fmt.Errorf("UI_SET_KEYBIT: %w", err)
		}
	}
	var dev uinputUserDev
	copy(dev.Name[:], uinputName)
	dev.ID = inputID{Bustype: busUSB, Vendor: 0x1234, Product: 0x5679, Version: 1}
	if err := binary.Write(f, binary.LittleEndian, &dev); err != nil {
		return fmt.Errorf("write device: %w", err)
	}
	if err := ioctl(f, uiDevCreate, 0); err != nil {
		return fmt.Errorf("UI_DEV_CREATE: %w", err)
	}
	return nil
}

func (u *uinput) emit(typ, code uint16, value int32) error {
	ev := inputEvent{Type: typ, Code: code, Value: value}
	if err := binary.Write(u.f, binary.LittleEndian, &ev); err != nil {
		return err
	}
	return binary.Write(u.f, binary.LittleEndian, &inputEvent{Type: evSyn})
}

func (u *uinput) tap(k keyStroke) error {
	if k.shift {
		if err := u.emit(evKey, keyLeftShift, 1); err != nil {
			return err
		}
	}
	if err := u.emit(evKey, k.code, 1); err != nil {
		return err
	}
	if err := u.emit(evKey, k.code, 0); err != nil {
		return err
	}
	if k.shift {
		if err := u.emit(evKey, keyLeftShift, 0); err != nil {
			return err
		}
	}
	if u.delay > 0 {
		time.Sleep(u.delay)
	}
	return nil
}

func (u *uinput) Typewrite(text string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.f == nil {
		return os.ErrClosed
	}
	for _, c := range text {
		k, ok := lookupKey(c)
		if !ok {
			continue
		}
		if err := u.tap(k); err != nil {
			return err
		}
	}
	return nil
}

func (u *uinput) Backspace(n int) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.f == nil {
		return os.ErrClosed
	}
	for range n {
		if err := u.tap(keyStroke{code: keyBackspace}); err != nil {
			return err
		}
	}
	return nil
}

func (u *uinput) Cleanup() {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.f == nil {
		return
	}
	ioctl(u.f, uiDevDestroy, 0)
	u.f.Close()
	u.f = nil
}

// VerifyUinput creates the virtual keyboard, sends Ctrl+V and reads the
// events back from the kernel input layer.
func VerifyUinput() (string, error) {
	u, err := openUinput(0)
	if err != nil {
		return "", fmt.Errorf("uinput init: %w", err)
	}
	defer u.Cleanup()

	evdevPath, err := findEvdev(uinputName)
	if err != nil {
		return "", err
	}
	evdev, err := os.Open(evdevPath)
	if err != nil {
		return "", fmt.Errorf("cannot open %s: %w", evdevPath, err)
	}
	defer evdev.Close()

	u.mu.Lock()
	err = errors.Join(
		u.emit(evKey, keyLeftCtrl, 1),
		u.emit(evKey, keyV, 1),
		u.emit(evKey, keyV, 0),
		u.emit(evKey, keyLeftCtrl, 0),
	)
	u.mu.Unlock()
	if err != nil {
		return "", fmt.Errorf("send keystroke: %w", err)
	}

	type seen struct {
		ctrl, v bool
		err     error
	}
	ch := make(chan seen, 1)
	go func() {
		const evSize = 24
		buf := make([]byte, evSize*32)
		var s seen
		n, err := evdev.Read(buf)
		if err != nil {
			s.err = err
			ch <- s
			return
		}
		for i := 0; i+evSize <= n; i += evSize {
			if binary.LittleEndian.Uint16(buf[i+16:]) != evKey {
				continue
			}
			switch binary.LittleEndian.Uint16(buf[i+18:]) {
			case keyLeftCtrl:
				s.ctrl = true
			case keyV:
				s.v = true
			}
		}
		ch <- s
	}()

	select {
	case s := <-ch:
		if s.err != nil {
			return "", fmt.Errorf("reading events: %w", s.err)
		}
		if !s.ctrl || !s.v {
			return "", fmt.Errorf("missing events (ctrl=%v, v=%v)", s.ctrl, s.v)
		}
		return "keystrokes verified via " + evdevPath, nil
	case <-time.After(500 * time.Millisecond):
		return "", errors.New("timed out waiting for keystroke events")
	}
}

func findEvdev(name string) (string, error) {
	entries, err := os.ReadDir("/sys/class/input")
	if err != nil {
		return "", fmt.Errorf("cannot scan input devices: %w", err)
	}
	for _, e := range entries {
		if !strings.HasPrefix(e.Name(), "event") {
			continue
		}
		data, err := os.ReadFile(filepath.Join("/sys/class/input", e.Name(), "device", "name"))
		if err != nil {
			continue
		}
		if strings.TrimSpace(string(data)) == name {
			return filepath.Join("/dev/input", e.Name()), nil
		}
	}
	return "", fmt.Errorf("%s evdev device not found", name)
}
