package event

import (
	"sync"
)

const queueSize = 256

// Bus fans events out to subscribers. Each subscriber receives events in
// emission order on its own goroutine.
type Bus struct {
	mu     sync.RWMutex
	subs   map[int]*subscription
	order  []int
	nextID int
	closed bool
	wg     sync.WaitGroup
}

type subscription struct {
	types   map[EventType]struct{}
	handler EventHandler
	queue   chan *Event
	done    chan struct{}
	once    sync.Once
}

func (s *subscription) wants(t EventType) bool {
	if len(s.types) == 0 {
		return true
	}
	_, ok := s.types[t]
	return ok
}

func (s *subscription) stop() {
	s.once.Do(func() { close(s.done) })
}

func (s *subscription) loop(wg *sync.WaitGroup) {
	defer wg.Done()
	for {
		select {
		case ev := <-s.queue:
			s.handler(ev)
		case <-s.done:
			return
		}
	}
}

// NewBus creates a new event bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]*subscription)}
}

func (b *Bus) targets(t EventType) []*subscription {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []*subscription
	for _, id := range b.order {
		if s := b.subs[id]; s.wants(t) {
			out = append(out, s)
		}
	}
	return out
}

// Emit queues event for every interested subscriber. It blocks only while a
// subscriber's queue is full.
func (b *Bus) Emit(event *Event) {
	for _, s := range b.targets(event.Type) {
		select {
		case s.queue <- event:
		case <-s.done:
		}
	}
}

// EmitSync runs every interested handler on the calling goroutine.
func (b *Bus) EmitSync(event *Event) {
	for _, s := range b.targets(event.Type) {
		s.handler(event)
	}
}

func (b *Bus) add(types []EventType, handler EventHandler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return func() {}
	}

	s := &subscription{
		types:   make(map[EventType]struct{}, len(types)),
		handler: handler,
		queue:   make(chan *Event, queueSize),
		done:    make(chan struct{}),
	}
	for _, t := range types {
		s.types[t] = struct{}{}
	}

	id := b.nextID
	b.nextID++
	b.subs[id] = s
	b.order = append(b.order, id)

	b.wg.Add(1)
	go s.loop(&b.wg)

	return func() { b.remove(id) }
}

func (b *Bus) remove(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.subs[id]
	if !ok {
		return
	}
	s.stop()
	delete(b.subs, id)
	for i, v := range b.order {
		if v == id {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
}

// Subscribe registers a handler for one event type and returns a function
// that removes it.
func (b *Bus) Subscribe(eventType EventType, handler EventHandler) func() {
	return b.add([]EventType{eventType}, handler)
}

// SubscribeMultiple registers a handler for several event types.
func (b *Bus) SubscribeMultiple(eventTypes []EventType, handler EventHandler) func() {
	if len(eventTypes) == 0 {
		return func() {}
	}
	return b.add(eventTypes, handler)
}

// SubscribeAll registers a handler for every event.
func (b *Bus) SubscribeAll(handler EventHandler) func() {
	return b.add(nil, handler)
}

// SubscriberCount returns the number of subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Clear removes all subscribers.
func (b *Bus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, s := range b.subs {
		s.stop()
	}
	b.subs = make(map[int]*subscription)
	b.order = nil
}

// Close removes all subscribers, waits for in-flight handlers to return and
// rejects later subscriptions. Queued events not yet delivered are dropped.
func (b *Bus) Close() {
	b.Clear()

	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()

	b.wg.Wait()
}

var _ Emitter = (*Bus)(nil)
