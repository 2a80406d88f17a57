//go:build darwin || windows

package hotkey

import (
	"fmt"
	"sync"

	"golang.design/x/hotkey"

	"hotscribe/log"
)

// xBackend registers every combination with the OS hotkey API. The OS only
// reports the whole combination, so key events are synthesized from the
// combination's representative keys.
type xBackend struct {
	mu   sync.Mutex
	hks  []*hotkey.Hotkey
	stop chan struct{}
	once sync.Once
}

func newXHotkey() (Backend, error) {
	return &xBackend{}, nil
}

func (x *xBackend) Name() string { return "xhotkey" }

func (x *xBackend) Start(combos []Combination, emit func(KeyEvent)) error {
	x.stop = make(chan struct{})
	for _, c := range combos {
		mods, key, err := toOSHotkey(c)
		if err != nil {
			x.Stop()
			return err
		}
		hk := hotkey.New(mods, key)
		if err := hk.Register(); err != nil {
			x.Stop()
			return fmt.Errorf("register %s: %w", c, err)
		}
		x.mu.Lock()
		x.hks = append(x.hks, hk)
		x.mu.Unlock()
		go x.forward(hk, c.Representative(), emit)
	}
	return nil
}

func (x *xBackend) forward(hk *hotkey.Hotkey, keys []KeyCode, emit func(KeyEvent)) {
	for {
		select {
		case <-x.stop:
			return
		case <-hk.Keydown():
			for _, k := range keys {
				emit(KeyEvent{Key: k, Down: true})
			}
		case <-hk.Keyup():
			for i := len(keys) - 1; i >= 0; i-- {
				emit(KeyEvent{Key: keys[i], Down: false})
			}
		}
	}
}

func (x *xBackend) Stop() {
	x.once.Do(func() {
		if x.stop != nil {
			close(x.stop)
		}
		x.mu.Lock()
		defer x.mu.Unlock()
		for _, hk := range x.hks {
			if err := hk.Unregister(); err != nil {
				log.Debugf("xhotkey: unregister: %v", err)
			}
		}
		x.hks = nil
	})
}

func toOSHotkey(c Combination) ([]hotkey.Modifier, hotkey.Key, error) {
	var mods []hotkey.Modifier
	var key hotkey.Key
	haveKey := false
	for _, g := range c {
		if m, ok := osModifier(g); ok {
			mods = append(mods, m)
			continue
		}
		if haveKey || len(g) != 1 {
			return nil, 0, fmt.Errorf("%s: the OS hotkey API needs exactly one non-modifier key", c)
		}
		k, ok := osKeys[g[0]]
		if !ok {
			return nil, 0, fmt.Errorf("%s: key %s is not supported by the OS hotkey API", c, g[0])
		}
		key, haveKey = k, true
	}
	if !haveKey {
		return nil, 0, fmt.Errorf("%s: no non-modifier key", c)
	}
	return mods, key, nil
}

var osKeys = map[KeyCode]hotkey.Key{
	KeySpace:  hotkey.KeySpace,
	KeyEnter:  hotkey.KeyReturn,
	KeyEsc:    hotkey.KeyEscape,
	KeyDelete: hotkey.KeyDelete,
	KeyTab:    hotkey.KeyTab,
	KeyLeft:   hotkey.KeyLeft,
	KeyRight:  hotkey.KeyRight,
	KeyUp:     hotkey.KeyUp,
	KeyDown:   hotkey.KeyDown,
	Key0:      hotkey.Key0,
	Key1:      hotkey.Key1,
	Key2:      hotkey.Key2,
	Key3:      hotkey.Key3,
	Key4:      hotkey.Key4,
	Key5:      hotkey.Key5,
	Key6:      hotkey.Key6,
	Key7:      hotkey.Key7,
	Key8:      hotkey.Key8,
	Key9:      hotkey.Key9,
	KeyA:      hotkey.KeyA,
	KeyB:      hotkey.KeyB,
	KeyC:      hotkey.KeyC,
	KeyD:      hotkey.KeyD,
	KeyE:      hotkey.KeyE,
	KeyF:      hotkey.KeyF,
	KeyG:      hotkey.KeyG,
	KeyH:      hotkey.KeyH,
	KeyI:      hotkey.KeyI,
	KeyJ:      hotkey.KeyJ,
	KeyK:      hotkey.KeyK,
	KeyL:      hotkey.KeyL,
	KeyM:      hotkey.KeyM,
	KeyN:      hotkey.KeyN,
	KeyO:      hotkey.KeyO,
	KeyP:      hotkey.KeyP,
	KeyQ:      hotkey.KeyQ,
	KeyR:      hotkey.KeyR,
	KeyS:      hotkey.KeyS,
	KeyT:      hotkey.KeyT,
	KeyU:      hotkey.KeyU,
	KeyV:      hotkey.KeyV,
	KeyW:      hotkey.KeyW,
	KeyX:      hotkey.KeyX,
	KeyY:      hotkey.KeyY,
	KeyZ:      hotkey.KeyZ,
	KeyF1:     hotkey.KeyF1,
	KeyF2:     hotkey.KeyF2,
	KeyF3:     hotkey.KeyF3,
	KeyF4:     hotkey.KeyF4,
	KeyF5:     hotkey.KeyF5,
	KeyF6:     hotkey.KeyF6,
	KeyF7:     hotkey.KeyF7,
	KeyF8:     hotkey.KeyF8,
	KeyF9:     hotkey.KeyF9,
	KeyF10:    hotkey.KeyF10,
	KeyF11:    hotkey.KeyF11,
	KeyF12:    hotkey.KeyF12,
	KeyF13:    hotkey.KeyF13,
	KeyF14:    hotkey.KeyF14,
	KeyF15:    hotkey.KeyF15,
	KeyF16:    hotkey.KeyF16,
	KeyF17:    hotkey.KeyF17,
	KeyF18:    hotkey.KeyF18,
	KeyF19:    hotkey.KeyF19,
	KeyF20:    hotkey.KeyF20,
}

func Diagnose() (string, error) {
	return "xhotkey: OS hotkey registration available", nil
}
