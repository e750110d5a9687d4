package event

import (
	"context"
	"sync"

	"github.com/supplystack/chaincommand/internal/logging"
)

// Handler is a function that handles a published event.
type Handler func(Event)

// subscription represents a registered event handler.
type subscription struct {
	id        uint64
	eventType string
	handler   Handler
}

// recentWindow is how many events Recent() can return at most.
const recentWindow = 100

// Bus is a publish/subscribe event bus. Publish fans out to handlers
// concurrently and returns once every handler has finished; a panicking
// handler is recovered and logged without affecting the others.
//
// Events may also be queued with Enqueue and drained by a background
// loop started with Start.
type Bus struct {
	log *logging.Logger

	mu        sync.RWMutex
	subs      map[string][]subscription
	eventLog  []Event
	published int
	nextID    uint64

	queue chan Event

	loopMu sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewBus creates an event bus.
func NewBus(log *logging.Logger) *Bus {
	if log == nil {
		log = logging.NopLogger()
	}
	return &Bus{
		log:   log.WithComponent("event_bus"),
		subs:  make(map[string][]subscription),
		queue: make(chan Event, 256),
	}
}

// Subscribe registers a handler for a specific event type.
// Returns a subscription ID that can be used to unsubscribe.
func (b *Bus) Subscribe(eventType string, handler Handler) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	b.subs[eventType] = append(b.subs[eventType], subscription{
		id:        b.nextID,
		eventType: eventType,
		handler:   handler,
	})
	return b.nextID
}

// SubscribeAll registers a handler for every event type.
func (b *Bus) SubscribeAll(handler Handler) uint64 {
	return b.Subscribe("*", handler)
}

// Unsubscribe removes a subscription by ID.
// Returns true if the subscription was found and removed.
func (b *Bus) Unsubscribe(id uint64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	for eventType, subs := range b.subs {
		for i, sub := range subs {
			if sub.id == id {
				b.subs[eventType] = append(subs[:i], subs[i+1:]...)
				return true
			}
		}
	}
	return false
}

// Publish appends the event to the log and dispatches it to every
// matching handler. Type-specific and wildcard handlers run
// concurrently; Publish returns only after all of them have finished.
func (b *Bus) Publish(ev Event) {
	b.mu.Lock()
	b.eventLog = append(b.eventLog, ev)
	b.published++
	// Keep the log bounded: only the retention window is readable, so
	// older entries can go once the slice doubles it.
	if len(b.eventLog) > 2*recentWindow {
		copy(b.eventLog, b.eventLog[len(b.eventLog)-recentWindow:])
		b.eventLog = b.eventLog[:recentWindow]
	}
	specific := make([]subscription, len(b.subs[ev.EventType]))
	copy(specific, b.subs[ev.EventType])
	wildcard := make([]subscription, len(b.subs["*"]))
	copy(wildcard, b.subs["*"])
	b.mu.Unlock()

	b.log.Info("event_published",
		"event_type", ev.EventType,
		"severity", string(ev.Severity),
		"source", ev.Source,
	)

	var wg sync.WaitGroup
	for _, sub := range append(specific, wildcard...) {
		wg.Add(1)
		go func(h Handler) {
			defer wg.Done()
			b.safeCall(h, ev)
		}(sub.handler)
	}
	wg.Wait()
}

// safeCall invokes a handler and recovers from panics so one failing
// subscriber cannot take down the dispatch.
func (b *Bus) safeCall(handler Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("event_handler_error",
				"event_type", ev.EventType,
				"panic", r,
			)
		}
	}()
	handler(ev)
}

// Enqueue queues an event for asynchronous publication by the drain
// loop. If the queue is full the event is published synchronously
// instead, so nothing is lost.
func (b *Bus) Enqueue(ev Event) {
	select {
	case b.queue <- ev:
	default:
		b.Publish(ev)
	}
}

// Start launches the background loop that drains enqueued events.
// Calling Start on a running bus is a no-op.
func (b *Bus) Start(ctx context.Context) {
	b.loopMu.Lock()
	defer b.loopMu.Unlock()

	if b.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	b.cancel = cancel
	b.done = make(chan struct{})

	go func() {
		defer close(b.done)
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-b.queue:
				b.Publish(ev)
			}
		}
	}()

	b.log.Info("event_bus_started")
}

// Stop cancels the drain loop and waits for it to exit.
// Calling Stop on a stopped bus is a no-op.
func (b *Bus) Stop() {
	b.loopMu.Lock()
	defer b.loopMu.Unlock()

	if b.cancel == nil {
		return
	}
	b.cancel()
	<-b.done
	b.cancel = nil
	b.done = nil

	b.log.Info("event_bus_stopped")
}

// Recent returns up to the last n events, newest last. n is capped at
// the 100-event window.
func (b *Bus) Recent(n int) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if n <= 0 || n > recentWindow {
		n = recentWindow
	}
	if n > len(b.eventLog) {
		n = len(b.eventLog)
	}
	out := make([]Event, n)
	copy(out, b.eventLog[len(b.eventLog)-n:])
	return out
}

// Count returns the total number of events published so far, including
// events already trimmed from the retention window.
func (b *Bus) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.published
}

// SubscriptionCount returns the total number of active subscriptions.
func (b *Bus) SubscriptionCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	count := 0
	for _, subs := range b.subs {
		count += len(subs)
	}
	return count
}
