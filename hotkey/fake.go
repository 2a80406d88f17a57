package hotkey

import "sync"

// FakeBackend lets tests inject key transitions.
type FakeBackend struct {
	name     string
	StartErr error

	mu      sync.Mutex
	emit    func(KeyEvent)
	combos  []Combination
	started int
	stopped int
}

func NewFake(name string) *FakeBackend {
	return &FakeBackend{name: name}
}

func (f *FakeBackend) Name() string { return f.name }

func (f *FakeBackend) Start(combos []Combination, emit func(KeyEvent)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.StartErr != nil {
		return f.StartErr
	}
	f.started++
	f.emit = emit
	f.combos = combos
	return nil
}

func (f *FakeBackend) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped++
	f.emit = nil
}

func (f *FakeBackend) send(ev KeyEvent) {
	f.mu.Lock()
	emit := f.emit
	f.mu.Unlock()
	if emit != nil {
		emit(ev)
	}
}

func (f *FakeBackend) Press(keys ...KeyCode) {
	for _, k := range keys {
		f.send(KeyEvent{Key: k, Down: true})
	}
}

func (f *FakeBackend) Release(keys ...KeyCode) {
	for _, k := range keys {
		f.send(KeyEvent{Key: k, Down: false})
	}
}

// Counts reports how many times Start and Stop ran.
func (f *FakeBackend) Counts() (started, stopped int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.started, f.stopped
}

func (f *FakeBackend) Combinations() []Combination {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.combos
}
