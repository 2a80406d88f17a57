// Package shutdown turns termination signals into a callback.
package shutdown

import (
	"os"
	"os/signal"
	"sync"
)

// OnSignal calls fn once for the first termination signal received. The
// returned stop function restores default signal handling.
func OnSignal(fn func(os.Signal)) (stop func()) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, signals...)
	quit := make(chan struct{})
	var once sync.Once
	go func() {
		select {
		case sig := <-ch:
			fn(sig)
		case <-quit:
		}
	}()
	return func() {
		once.Do(func() {
			signal.Stop(ch)
			close(quit)
		})
	}
}
