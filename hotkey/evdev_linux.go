//go:build linux

package hotkey

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"hotscribe/log"
)

const (
	evKey      = 1
	keyPress   = 1
	keyRelease = 0
)

const inputEventSize = 24

// virtualKeyboardName is the uinput device the output package creates. Its
// events are our own typing and must not trigger shortcuts.
const virtualKeyboardName = "hotscribe virtual keyboard"

type evdevBackend struct {
	files []*os.File
	stop  chan struct{}
	once  sync.Once
}

func newEvdev() (Backend, error) {
	if _, err := os.Stat("/dev/input"); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return &evdevBackend{}, nil
}

func (h *evdevBackend) Name() string { return "evdev" }

func (h *evdevBackend) Start(_ []Combination, emit func(KeyEvent)) error {
	keyboards, err := findKeyboards()
	if err != nil {
		return fmt.Errorf("finding keyboards: %w", err)
	}
	if len(keyboards) == 0 {
		return fmt.Errorf("no keyboard devices found (is user in 'input' group?)")
	}

	h.stop = make(chan struct{})

	for _, path := range keyboards {
		f, err := os.Open(path)
		if err != nil {
			log.Debugf("evdev: skip %s: %v", path, err)
			continue
		}
		h.files = append(h.files, f)
		go h.readEvents(f, emit)
	}

	if len(h.files) == 0 {
		return fmt.Errorf("could not open any keyboard device (run: sudo usermod -aG input $USER, then re-login)")
	}
	log.Infof("evdev: listening on %d keyboard(s)", len(h.files))
	return nil
}

func (h *evdevBackend) readEvents(f *os.File, emit func(KeyEvent)) {
	buf := make([]byte, inputEventSize*16)

	for {
		n, err := f.Read(buf)
		if err != nil {
			select {
			case <-h.stop:
			default:
				log.Warnf("evdev: %s: %v", f.Name(), err)
			}
			return
		}

		for i := 0; i+inputEventSize <= n; i += inputEventSize {
			evType := binary.LittleEndian.Uint16(buf[i+16:])
			evCode := binary.LittleEndian.Uint16(buf[i+18:])
			evValue := int32(binary.LittleEndian.Uint32(buf[i+20:]))

			// value 2 is autorepeat
			if evType != evKey || (evValue != keyPress && evValue != keyRelease) {
				continue
			}
			key, ok := evdevKeys[evCode]
			if !ok {
				continue
			}
			select {
			case <-h.stop:
				return
			default:
			}
			emit(KeyEvent{Key: key, Down: evValue == keyPress})
		}
	}
}

func (h *evdevBackend) Stop() {
	h.once.Do(func() {
		if h.stop != nil {
			close(h.stop)
		}
		for _, f := range h.files {
			f.Close()
		}
	})
}

func findKeyboards() ([]string, error) {
	entries, err := os.ReadDir("/dev/input")
	if err != nil {
		return nil, err
	}

	var keyboards []string
	for _, e := range entries {
		if !strings.HasPrefix(e.Name(), "event") {
			continue
		}
		if isKeyboard(e.Name()) && deviceName(e.Name()) != virtualKeyboardName {
			keyboards = append(keyboards, filepath.Join("/dev/input", e.Name()))
		}
	}
	return keyboards, nil
}

func isKeyboard(eventName string) bool {
	capsPath := filepath.Join("/sys/class/input", eventName, "device", "capabilities", "key")
	data, err := os.ReadFile(capsPath)
	if err != nil {
		return false
	}
	caps := strings.TrimSpace(string(data))
	return len(caps) > 10
}

func deviceName(eventName string) string {
	data, err := os.ReadFile(filepath.Join("/sys/class/input", eventName, "device", "name"))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// Diagnose reports whether keyboards can be read, for -doctor.
func Diagnose() (string, error) {
	keyboards, err := findKeyboards()
	if err != nil {
		return "", fmt.Errorf("cannot scan input devices: %w", err)
	}
	if len(keyboards) == 0 {
		return "", fmt.Errorf("no keyboard devices found (is user in 'input' group?)")
	}

	var opened string
	for _, path := range keyboards {
		f, err := os.Open(path)
		if err == nil {
			f.Close()
			opened = path
			break
		}
	}
	if opened == "" {
		return "", fmt.Errorf("found %d keyboard(s) but cannot open any (run: sudo usermod -aG input $USER)", len(keyboards))
	}

	return fmt.Sprintf("evdev: %d keyboard(s) found, opened %s", len(keyboards), opened), nil
}
