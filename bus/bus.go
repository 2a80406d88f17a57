// Package bus is the in-process publish/subscribe dispatcher that decouples
// the input listener, audio engine, transcription workers, profiles and the
// controller.
//
// Emit never blocks: events are appended to an unbounded FIFO and delivered
// by a single dispatch goroutine, in emit order, to a snapshot of the
// subscribers taken when the event is dispatched. Handlers may therefore
// emit, subscribe and unsubscribe freely. Because every handler runs on the
// dispatch goroutine, state touched only from handlers needs no locking.
package bus

import (
	"sync"

	"hotscribe/log"
)

type Topic string

const (
	ShortcutTriggered      Topic = "shortcut_triggered"
	RecordingStopped       Topic = "recording_stopped"
	AudioDiscarded         Topic = "audio_discarded"
	RawTranscriptionResult Topic = "raw_transcription_result"
	TranscriptionFinished  Topic = "transcription_finished"
	TranscriptionComplete  Topic = "transcription_complete"
	StreamingFinished      Topic = "streaming_finished"
	ProfileStateChange     Topic = "profile_state_change"
	TranscriptionError     Topic = "transcription_error"
	TranscriptionOutput    Topic = "transcription_output"
	ConfigChanged          Topic = "config_changed"
	CloseApp               Topic = "close_app"
	QuitApplication        Topic = "quit_application"
	StartListening         Topic = "start_listening"
	CoreComponentsStarted  Topic = "core_components_started"
	InitializationFailed   Topic = "initialization_failed"
)

// Handler receives the payload passed to Emit. Payload types are listed
// next to the topic constants in events.go.
type Handler func(payload any)

type SubscriptionID uint64

type subscriber struct {
	id SubscriptionID
	fn Handler
}

type event struct {
	topic   Topic
	payload any
	barrier chan struct{}
}

type Bus struct {
	mu     sync.Mutex
	subs   map[Topic][]subscriber
	nextID SubscriptionID
	queue  []event
	closed bool

	wake chan struct{}
	done chan struct{}
}

// New starts the dispatch goroutine. Call Close to stop it.
func New() *Bus {
	b := &Bus{
		subs: make(map[Topic][]subscriber),
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	go b.run()
	return b
}

func (b *Bus) Subscribe(topic Topic, fn Handler) SubscriptionID {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.subs[topic] = append(b.subs[topic], subscriber{id: id, fn: fn})
	return id
}

// Unsubscribe removes the handler. Events already being dispatched to a
// snapshot that contained it may still reach it once.
func (b *Bus) Unsubscribe(topic Topic, id SubscriptionID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	list := b.subs[topic]
	out := make([]subscriber, 0, len(list))
	for _, s := range list {
		if s.id != id {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		delete(b.subs, topic)
		return
	}
	b.subs[topic] = out
}

func (b *Bus) Emit(topic Topic, payload any) {
	b.push(event{topic: topic, payload: payload})
}

// Sync blocks until every event emitted before the call has been handled.
// Calling it from a handler deadlocks.
func (b *Bus) Sync() {
	ch := make(chan struct{})
	if !b.push(event{barrier: ch}) {
		return
	}
	<-ch
}

// Close delivers what is already queued, then stops the dispatcher.
// Later emits are dropped.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		<-b.done
		return
	}
	b.closed = true
	b.mu.Unlock()
	b.signal()
	<-b.done
}

func (b *Bus) push(ev event) bool {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return false
	}
	b.queue = append(b.queue, ev)
	b.mu.Unlock()
	b.signal()
	return true
}

func (b *Bus) signal() {
	select {
	case b.wake <- struct{}{}:
	default:
	}
}

func (b *Bus) run() {
	defer close(b.done)
	for {
		<-b.wake
		for {
			b.mu.Lock()
			if len(b.queue) == 0 {
				closed := b.closed
				b.mu.Unlock()
				if closed {
					return
				}
				break
			}
			ev := b.queue[0]
			b.queue[0] = event{}
			b.queue = b.queue[1:]
			var snapshot []subscriber
			if ev.barrier == nil {
				snapshot = append(snapshot, b.subs[ev.topic]...)
			}
			b.mu.Unlock()

			if ev.barrier != nil {
				close(ev.barrier)
				continue
			}
			for _, s := range snapshot {
				b.deliver(ev, s)
			}
		}
	}
}

func (b *Bus) deliver(ev event, s subscriber) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("bus: handler for %s panicked: %v", ev.topic, r)
		}
	}()
	s.fn(ev.payload)
}

func (t Topic) String() string { return string(t) }

// Expect narrows a payload to T, logging when a publisher sent the wrong type.
func Expect[T any](topic Topic, payload any) (T, bool) {
	v, ok := payload.(T)
	if !ok {
		log.Errorf("bus: unexpected payload %T on %s", payload, topic)
	}
	return v, ok
}
