package telemetry

import (
	"sync"

	"go.uber.org/zap"
)

const (
	defaultSubscriberCapacity = 100
	defaultBacklogLimit       = 50
	defaultDedupeWindow       = 1024
)

// RouterOption customizes Router construction.
type RouterOption func(*Router)

// Router delivers telemetry events to per-kind subscribers with buffering,
// deduplication, and bounded channel semantics.
type Router struct {
	mu           sync.RWMutex
	subscribers  map[Kind]map[*subscriber]struct{}
	backlog      map[Kind][]Event
	recentIDs    map[string]struct{}
	recentOrder  []string
	channelSize  int
	backlogLimit int
	dedupeWindow int
	logger       *zap.Logger
	dropped      uint64
}

// Subscription represents an active subscription.
type Subscription struct {
	Events <-chan Event
	cancel func()
}

// Close terminates the subscription.
func (s Subscription) Close() {
	if s.cancel != nil {
		s.cancel()
	}
}

// NewRouter constructs a router with sane defaults.
func NewRouter(opts ...RouterOption) *Router {
	r := &Router{
		subscribers:  map[Kind]map[*subscriber]struct{}{},
		backlog:      map[Kind][]Event{},
		recentIDs:    map[string]struct{}{},
		recentOrder:  make([]string, 0, defaultDedupeWindow),
		channelSize:  defaultSubscriberCapacity,
		backlogLimit: defaultBacklogLimit,
		dedupeWindow: defaultDedupeWindow,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// RouterWithLogger injects a logger for drop diagnostics.
func RouterWithLogger(logger *zap.Logger) RouterOption {
	return func(r *Router) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// RouterWithSubscriberCapacity overrides the buffered channel size per subscriber.
func RouterWithSubscriberCapacity(capacity int) RouterOption {
	return func(r *Router) {
		if capacity > 0 {
			r.channelSize = capacity
		}
	}
}

// RouterWithBacklogLimit overrides how many events are kept per kind while
// nobody is subscribed.
func RouterWithBacklogLimit(limit int) RouterOption {
	return func(r *Router) {
		if limit > 0 {
			r.backlogLimit = limit
		}
	}
}

// RouterWithDedupeWindow controls how many recent event IDs are retained.
func RouterWithDedupeWindow(size int) RouterOption {
	return func(r *Router) {
		if size > 0 {
			r.dedupeWindow = size
		}
	}
}

// Subscribe registers for events of one kind. Events buffered before the
// first subscriber arrived are replayed to it.
func (r *Router) Subscribe(kind Kind) Subscription {
	sub := newSubscriber(r.channelSize)
	var backlog []Event
	r.mu.Lock()
	if r.subscribers[kind] == nil {
		r.subscribers[kind] = map[*subscriber]struct{}{}
	}
	r.subscribers[kind][sub] = struct{}{}
	if existing := r.backlog[kind]; len(existing) > 0 {
		backlog = append(backlog, existing...)
		delete(r.backlog, kind)
	}
	r.mu.Unlock()
	for _, event := range backlog {
		r.deliver(sub, event)
	}
	return Subscription{
		Events: sub.channel(),
		cancel: func() {
			r.removeSubscriber(kind, sub)
		},
	}
}

// Publish implements Sink. It never blocks.
func (r *Router) Publish(event Event) {
	if event.EventID != "" && r.isDuplicate(event.EventID) {
		return
	}
	r.mu.RLock()
	subs := r.snapshotSubscribers(event.Kind)
	r.mu.RUnlock()
	if len(subs) == 0 {
		r.bufferEvent(event)
		return
	}
	for _, sub := range subs {
		r.deliver(sub, event)
	}
}

// Dropped returns how many events were discarded because a subscriber was full.
func (r *Router) Dropped() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.dropped
}

func (r *Router) deliver(sub *subscriber, event Event) {
	if dropped, ok := sub.deliver(event); ok {
		r.mu.Lock()
		r.dropped++
		r.mu.Unlock()
		r.logger.Debug("telemetry event dropped",
			zap.String("kind", string(dropped.Kind)),
			zap.String("event_id", dropped.EventID),
		)
	}
}

func (r *Router) snapshotSubscribers(kind Kind) []*subscriber {
	live := r.subscribers[kind]
	if len(live) == 0 {
		return nil
	}
	items := make([]*subscriber, 0, len(live))
	for sub := range live {
		items = append(items, sub)
	}
	return items
}

func (r *Router) removeSubscriber(kind Kind, sub *subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if subs := r.subscribers[kind]; subs != nil {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(r.subscribers, kind)
		}
	}
	sub.close()
}

func (r *Router) bufferEvent(event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	queue := r.backlog[event.Kind]
	if len(queue) >= r.backlogLimit {
		queue = queue[1:]
		r.dropped++
	}
	queue = append(queue, event)
	r.backlog[event.Kind] = queue
}

func (r *Router) isDuplicate(eventID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.recentIDs[eventID]; ok {
		return true
	}
	r.recentIDs[eventID] = struct{}{}
	r.recentOrder = append(r.recentOrder, eventID)
	if len(r.recentOrder) > r.dedupeWindow {
		oldest := r.recentOrder[0]
		r.recentOrder = r.recentOrder[1:]
		delete(r.recentIDs, oldest)
	}
	return false
}

type subscriber struct {
	mu     sync.Mutex
	ch     chan Event
	closed bool
}

func newSubscriber(capacity int) *subscriber {
	if capacity <= 0 {
		capacity = defaultSubscriberCapacity
	}
	return &subscriber{ch: make(chan Event, capacity)}
}

func (s *subscriber) channel() <-chan Event {
	return s.ch
}

// deliver enqueues event. When the queue is full the oldest event is dropped
// and returned with ok=true.
func (s *subscriber) deliver(event Event) (Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Event{}, false
	}
	select {
	case s.ch <- event:
		return Event{}, false
	default:
	}
	var dropped Event
	select {
	case dropped = <-s.ch:
	default:
	}
	s.ch <- event
	return dropped, true
}

func (s *subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}
