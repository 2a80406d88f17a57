package output

import (
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/atotto/clipboard"
	"github.com/micmonay/keybd_event"

	"hotscribe/log"
)

// pasteSettle is how long the target application gets to read the
// clipboard before the previous contents are restored.
const pasteSettle = 150 * time.Millisecond

// keybd pastes text through the clipboard. The user's clipboard is restored
// after each paste.
type keybd struct {
	mu sync.Mutex
	kb keybd_event.KeyBonding
}

func newKeybd() (Simulator, error) {
	kb, err := keybd_event.NewKeyBonding()
	if err != nil {
		return nil, err
	}
	return &keybd{kb: kb}, nil
}

func (k *keybd) Typewrite(text string) error {
	if text == "" {
		return nil
	}
	k.mu.Lock()
	defer k.mu.Unlock()

	previous, readErr := clipboard.ReadAll()
	if err := clipboard.WriteAll(text); err != nil {
		return err
	}
	if err := k.paste(); err != nil {
		return err
	}
	if readErr == nil {
		time.Sleep(pasteSettle)
		if err := clipboard.WriteAll(previous); err != nil {
			log.Warnf("clipboard restore failed: %v", err)
		}
	}
	return nil
}

func (k *keybd) paste() error {
	k.kb.Clear()
	k.kb.SetKeys(keybd_event.VK_V)
	if runtime.GOOS == "darwin" {
		k.kb.HasSuper(true)
	} else {
		k.kb.HasCTRL(true)
	}
	defer func() {
		k.kb.HasSuper(false)
		k.kb.HasCTRL(false)
	}()
	return k.kb.Launching()
}

func (k *keybd) Backspace(n int) error {
	if n <= 0 {
		return nil
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	k.kb.Clear()
	k.kb.SetKeys(keybd_event.VK_BACKSPACE)
	for range n {
		if err := k.kb.Launching(); err != nil {
			return err
		}
	}
	return nil
}

func (k *keybd) Cleanup() {}

// VerifyClipboard round-trips a marker string through the clipboard and
// restores the previous contents.
func VerifyClipboard() error {
	previous, _ := clipboard.ReadAll()
	defer clipboard.WriteAll(previous)
	const marker = "hotscribe-clipboard-check"
	if err := clipboard.WriteAll(marker); err != nil {
		return err
	}
	got, err := clipboard.ReadAll()
	if err != nil {
		return err
	}
	if got != marker {
		return fmt.Errorf("clipboard mismatch: wrote %q, read %q", marker, got)
	}
	return nil
}
