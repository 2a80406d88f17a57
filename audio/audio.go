// Package audio owns the microphone. A single Manager goroutine opens the
// capture device for one recording at a time, runs voice activity detection
// on 30 ms frames and hands the captured PCM to the recording target's
// queue, either as one block after the recording or as fixed size chunks
// while it is still going.
package audio

import (
	"strings"
	"sync"
	"time"
)

var btKeywords = []string{
	"airpods", "beats", "bose", "wh-1000", "wf-1000",
	"sony wh-", "sony wf-",
	"jabra", "galaxy buds", "pixel buds", "powerbeats",
	"jbl ", "sennheiser momentum", "plantronics",
	"tozo", "anker soundcore", "skullcandy",
	"bluetooth", " bt ", " bt)", " bt]",
}

// IsBluetooth guesses from the device name whether the input goes through a
// headset profile with narrowband audio.
func IsBluetooth(name string) bool {
	lower := strings.ToLower(name)
	for _, kw := range btKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// DataCallback receives little-endian 16-bit PCM from the driver thread.
type DataCallback func(data []byte, frameCount uint32)

type CaptureConfig struct {
	SampleRate uint32
	Channels   uint32
}

type DeviceInfo struct {
	ID   string // opaque platform-specific identifier
	Name string
}

type Context interface {
	Devices() ([]DeviceInfo, error)
	// NewCapture opens a capture stream on device, or the system default
	// when device is nil. Nothing is delivered until Start.
	NewCapture(device *DeviceInfo, config CaptureConfig) (CaptureDevice, error)
	Close()
}

type CaptureDevice interface {
	Start() error
	Stop()
	Close()
	SetCallback(cb DataCallback)
	ClearCallback()
}

// Chunk is one unit on a profile's audio queue. The End chunk of a session
// carries no samples and tells the transcription worker that nothing more
// follows for SessionID.
type Chunk struct {
	SessionID  string
	SampleRate int
	Channels   int
	Language   string
	Samples    []int16
	End        bool
}

// Duration is the playback length of the chunk.
func (c Chunk) Duration() time.Duration {
	if c.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(c.Samples)) * time.Second / time.Duration(c.SampleRate)
}

// Queue is the per-profile audio FIFO between the Manager and the
// transcription worker.
type Queue = fifo[Chunk]

func NewQueue() *Queue { return newFIFO[Chunk]() }

// fifo is an unbounded queue with a level-triggered readiness channel so a
// consumer can select on it alongside other events.
type fifo[T any] struct {
	mu    sync.Mutex
	items []T
	ready chan struct{}
}

func newFIFO[T any]() *fifo[T] {
	return &fifo[T]{ready: make(chan struct{}, 1)}
}

func (q *fifo[T]) Push(v T) {
	q.mu.Lock()
	q.items = append(q.items, v)
	q.mu.Unlock()
	select {
	case q.ready <- struct{}{}:
	default:
	}
}

// TryPop returns the head without waiting.
func (q *fifo[T]) TryPop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var zero T
	if len(q.items) == 0 {
		return zero, false
	}
	v := q.items[0]
	q.items[0] = zero
	q.items = q.items[1:]
	if len(q.items) > 0 {
		select {
		case q.ready <- struct{}{}:
		default:
		}
	}
	return v, true
}

// Pop waits up to timeout for an item.
func (q *fifo[T]) Pop(timeout time.Duration) (T, bool) {
	if v, ok := q.TryPop(); ok {
		return v, true
	}
	t := time.NewTimer(timeout)
	defer t.Stop()
	for {
		select {
		case <-q.ready:
			if v, ok := q.TryPop(); ok {
				return v, true
			}
		case <-t.C:
			return q.TryPop()
		}
	}
}

func (q *fifo[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Ready fires at least once after a Push. It may fire spuriously.
func (q *fifo[T]) Ready() <-chan struct{} { return q.ready }

// Drain discards everything queued.
func (q *fifo[T]) Drain() {
	q.mu.Lock()
	clear(q.items)
	q.items = q.items[:0]
	q.mu.Unlock()
}
