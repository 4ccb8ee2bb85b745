package bus

import (
	"sync"

	"github.com/hansol-oss/intrachat/internal/domain"
	"github.com/hansol-oss/intrachat/internal/infrastructure/metrics"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// Handler receives one event. Handlers run synchronously on the publishing
// goroutine and must not block.
type Handler func(ev domain.Event)

// UnsubscribeFunc detaches a subscription. Safe to call more than once.
type UnsubscribeFunc func()

// Bus is an in-process publish/subscribe registry keyed by user id. It gives
// no delivery guarantee beyond "delivered if a listener is attached when
// Publish is called": no queuing, no retry, no persistence. The relational
// store is the source of truth and clients re-fetch full state on reconnect.
//
// Bus is safe for concurrent use. Construct one per composition root (or per
// test case); there is no package-level instance.
type Bus struct {
	logger  *zap.SugaredLogger
	metrics *metrics.Metrics
	buffer  int

	mu        sync.RWMutex
	nextID    uint64
	listeners map[int64]map[uint64]Handler
}

func New(logger *zap.SugaredLogger, m *metrics.Metrics, buffer int) *Bus {
	if buffer <= 0 {
		buffer = 64
	}
	return &Bus{
		logger:    logger,
		metrics:   m,
		buffer:    buffer,
		listeners: make(map[int64]map[uint64]Handler),
	}
}

// Subscribe registers fn under the given user id. Multiple subscriptions per
// user are allowed (tabs, devices). The returned detach function is
// idempotent.
func (b *Bus) Subscribe(userID int64, fn Handler) UnsubscribeFunc {
	b.mu.Lock()
	id := b.nextID
	b.nextID++

	byUser, ok := b.listeners[userID]
	if !ok {
		byUser = make(map[uint64]Handler)
		b.listeners[userID] = byUser
	}
	byUser[id] = fn
	b.mu.Unlock()

	b.metrics.BusListeners.Inc()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			if byUser, ok := b.listeners[userID]; ok {
				delete(byUser, id)
				if len(byUser) == 0 {
					delete(b.listeners, userID)
				}
			}
			b.mu.Unlock()
			b.metrics.BusListeners.Dec()
		})
	}
}

// SubscribeChan registers a buffered channel subscription. When the buffer
// is full the event is dropped for that subscriber only. The channel is
// never closed; consumers stop via their own context and then detach.
func (b *Bus) SubscribeChan(userID int64) (<-chan domain.Event, UnsubscribeFunc) {
	ch := make(chan domain.Event, b.buffer)
	off := b.Subscribe(userID, func(ev domain.Event) {
		select {
		case ch <- ev:
		default:
			// subscriber is too slow, drop the event
			b.metrics.EventsDropped.Inc()
			b.logger.Warnw("subscriber buffer full, dropping event", "user_id", userID, "type", ev.Type)
		}
	})
	return ch, off
}

// Publish delivers ev to every listener of every target user. Target ids are
// deduplicated and non-positive ids ignored. Listeners run synchronously on
// the calling goroutine; a panicking listener is isolated and never
// interrupts delivery to the others.
func (b *Bus) Publish(userIDs []int64, ev domain.Event) {
	targets := lo.Uniq(lo.Filter(userIDs, func(id int64, _ int) bool { return id > 0 }))
	if len(targets) == 0 {
		return
	}

	b.metrics.EventsPublished.WithLabelValues(string(ev.Type)).Inc()

	for _, uid := range targets {
		b.mu.RLock()
		handlers := make([]Handler, 0, len(b.listeners[uid]))
		for _, fn := range b.listeners[uid] {
			handlers = append(handlers, fn)
		}
		b.mu.RUnlock()

		for _, fn := range handlers {
			b.dispatch(uid, fn, ev)
		}
	}
}

func (b *Bus) dispatch(userID int64, fn Handler, ev domain.Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Errorw("bus listener panicked", "user_id", userID, "type", ev.Type, "panic", r)
		}
	}()
	fn(ev)
}

// ListenerCount reports the size of the registry across all users.
func (b *Bus) ListenerCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	n := 0
	for _, byUser := range b.listeners {
		n += len(byUser)
	}
	return n
}
