package orchestration

import (
	"sync"

	"github.com/koscakluka/ema-voice/core/events"
)

type eventEmitter func(events.Event)

func noopEventEmitter(events.Event) {}

// eventDispatcher delivers events to the handler on a single goroutine in
// emission order. emit never blocks, so it is safe to call while holding
// the orchestrator lock.
type eventDispatcher struct {
	handler eventEmitter

	mu     sync.Mutex
	queue  []events.Event
	closed bool
	signal chan struct{}
	done   chan struct{}
}

func newEventDispatcher(handler eventEmitter) *eventDispatcher {
	if handler == nil {
		handler = noopEventEmitter
	}
	d := &eventDispatcher{
		handler: handler,
		signal:  make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *eventDispatcher) emit(event events.Event) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.queue = append(d.queue, event)
	d.mu.Unlock()

	select {
	case d.signal <- struct{}{}:
	default:
	}
}

// close stops accepting events. Already queued events are still delivered.
func (d *eventDispatcher) close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	select {
	case d.signal <- struct{}{}:
	default:
	}
}

func (d *eventDispatcher) run() {
	defer close(d.done)
	for {
		d.mu.Lock()
		batch := d.queue
		d.queue = nil
		closed := d.closed
		d.mu.Unlock()

		for _, event := range batch {
			d.deliver(event)
		}
		if len(batch) > 0 {
			continue
		}
		if closed {
			return
		}
		<-d.signal
	}
}

func (d *eventDispatcher) deliver(event events.Event) {
	defer func() {
		if recovered := recover(); recovered != nil {
			logger.Error("event handler panicked", "event", string(event.Kind()), "group", event.Kind().Group(), "panic", recovered)
		}
	}()
	d.handler(event)
}
