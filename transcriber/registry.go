package transcriber

import (
	"fmt"
	"slices"
	"sync"
)

// Factory builds an uninitialized backend.
type Factory func() Backend

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{
		"openai":         func() Backend { return NewOpenAI() },
		"deepgram":       func() Backend { return NewDeepgram() },
		"whisper_server": func() Backend { return NewWhisperServer() },
		"whisper_cpp":    func() Backend { return NewWhisperCpp() },
		"fake":           func() Backend { return NewFake() },
	}
)

// Register adds or replaces a backend type.
func Register(backendType string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[backendType] = f
}

// New builds the backend registered under backendType.
func New(backendType string) (Backend, error) {
	registryMu.RLock()
	f, ok := registry[backendType]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownBackend, backendType)
	}
	return f(), nil
}

func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}
