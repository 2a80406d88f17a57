// Package notify shows desktop notifications for failures the user has to
// act on: backend errors and a failed startup.
package notify

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gen2brain/beeep"

	"hotscribe/bus"
	"hotscribe/log"
)

const title = "hotscribe"

// minInterval throttles repeated errors so a flapping backend does not
// bury the desktop in notifications.
const minInterval = 5 * time.Second

var (
	disabled atomic.Bool
	send     = func(title, message string) error { return beeep.Notify(title, message, "") }

	mu   sync.Mutex
	last = map[string]time.Time{}
)

func init() {
	beeep.AppName = title
}

// Disable turns notifications into log lines only, for headless runs.
func Disable() { disabled.Store(true) }

// Error shows message unless the same message was shown recently.
func Error(message string) {
	log.Error(message)
	if disabled.Load() {
		return
	}
	mu.Lock()
	if t, ok := last[message]; ok && time.Since(t) < minInterval {
		mu.Unlock()
		return
	}
	last[message] = time.Now()
	mu.Unlock()

	if err := send(title, message); err != nil {
		log.Warnf("notification failed: %v", err)
	}
}

// Watch subscribes to the failure topics on b.
func Watch(b *bus.Bus) {
	b.Subscribe(bus.TranscriptionError, func(p any) {
		if f, ok := bus.Expect[bus.Failure](bus.TranscriptionError, p); ok {
			Error("(" + f.Profile + ") transcription failed: " + f.Err.Error())
		}
	})
	b.Subscribe(bus.InitializationFailed, func(p any) {
		if f, ok := bus.Expect[bus.Failure](bus.InitializationFailed, p); ok {
			Error("failed to initialize transcription backend: " + f.Err.Error() + "\nplease check your settings")
		}
	})
}
