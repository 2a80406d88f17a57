package config

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"hotscribe/log"
)

// Watcher reloads the config file when it changes on disk and hands each
// new valid config to onChange. Invalid edits are logged and ignored.
type Watcher struct {
	path     string
	debounce time.Duration
	onChange func(*Config)

	fs       *fsnotify.Watcher
	mu       sync.Mutex
	lastHash [sha256.Size]byte
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

type WatcherOption func(*Watcher)

// WithDebounce sets how long the file must be quiet before reloading.
// Editors often write a file in several steps.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// NewWatcher watches the directory containing path so that atomic
// rename-over saves are seen.
func NewWatcher(path string, onChange func(*Config), opts ...WatcherOption) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		path:     abs,
		debounce: 250 * time.Millisecond,
		onChange: onChange,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	if data, err := os.ReadFile(abs); err == nil {
		w.lastHash = sha256.Sum256(data)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config: watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("config: watch %s: %w", filepath.Dir(abs), err)
	}
	w.fs = fw

	w.wg.Add(1)
	go w.loop()
	return w, nil
}

func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.fs.Close()
		w.wg.Wait()
	})
}

func (w *Watcher) loop() {
	defer w.wg.Done()

	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			log.Warnf("config watcher: %v", err)
		case <-fire:
			fire = nil
			w.check()
		}
	}
}

func (w *Watcher) check() {
	data, err := os.ReadFile(w.path)
	if err != nil {
		log.Warnf("config watcher: read %s: %v", w.path, err)
		return
	}
	hash := sha256.Sum256(data)

	w.mu.Lock()
	same := hash == w.lastHash
	w.mu.Unlock()
	if same {
		return
	}

	cfg, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		log.Warnf("config watcher: keeping previous config: %v", err)
		return
	}

	w.mu.Lock()
	w.lastHash = hash
	w.mu.Unlock()

	log.Infof("config watcher: reloaded %s", w.path)
	if w.onChange != nil {
		w.onChange(cfg)
	}
}
