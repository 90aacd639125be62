// Package eventbus fans order state-change events out to per-investor
// subscribers (wsstream connections) without ever blocking the
// transaction that committed the change. Grounded on the worker-pool /
// channel patterns in cmd/simulation (buffered channels drained by a
// fixed set of goroutines) and the keyed-map pattern in pkg/middleware,
// here keyed by investor instead of by client IP.
package eventbus

import (
	"sync"

	"github.com/ksred/order-core/internal/types"
	"github.com/rs/zerolog/log"
)

// Event is one order state change, published after its transaction
// commits. Order carries the full order snapshot as of that commit, so
// a subscriber can render the order without a follow-up GetOrder call.
type Event struct {
	OrderID    string
	InvestorID string
	FromStatus string
	ToStatus   string
	Reason     string
	Order      *types.Order
}

const subscriberBuffer = 64

// Bus delivers events to subscribers registered per investor.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan Event]struct{}
	publish     chan Event
	done        chan struct{}
}

// New starts the bus's delivery goroutine. Call Close to stop it.
func New() *Bus {
	b := &Bus{
		subscribers: make(map[string]map[chan Event]struct{}),
		publish:     make(chan Event, 1024),
		done:        make(chan struct{}),
	}
	go b.deliver()
	return b
}

// Subscribe registers a new channel for investorID and returns it along
// with an unsubscribe function. The channel is closed by Unsubscribe, not
// by the bus shutting down, so callers can multiplex multiple investors'
// subscriptions over one websocket connection lifetime if needed.
func (b *Bus) Subscribe(investorID string) (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	b.mu.Lock()
	if b.subscribers[investorID] == nil {
		b.subscribers[investorID] = make(map[chan Event]struct{})
	}
	b.subscribers[investorID][ch] = struct{}{}
	b.mu.Unlock()

	unsubscribe := func() {
		b.mu.Lock()
		delete(b.subscribers[investorID], ch)
		if len(b.subscribers[investorID]) == 0 {
			delete(b.subscribers, investorID)
		}
		b.mu.Unlock()
		close(ch)
	}
	return ch, unsubscribe
}

// Publish enqueues ev for delivery. Non-blocking: if the internal publish
// queue is full, the event is dropped and logged rather than stalling the
// caller, which is always the transaction that just committed the
// transition this event describes.
func (b *Bus) Publish(ev Event) {
	select {
	case b.publish <- ev:
	default:
		log.Warn().Str("order_id", ev.OrderID).Msg("eventbus: publish queue full, dropping event")
	}
}

func (b *Bus) deliver() {
	for {
		select {
		case ev := <-b.publish:
			b.mu.RLock()
			subs := b.subscribers[ev.InvestorID]
			for ch := range subs {
				select {
				case ch <- ev:
				default:
					log.Warn().Str("investor_id", ev.InvestorID).Msg("eventbus: subscriber slow, dropping event")
				}
			}
			b.mu.RUnlock()
		case <-b.done:
			return
		}
	}
}

// Close stops the delivery goroutine. Subscriber channels are left open;
// callers still holding one should call their unsubscribe function.
func (b *Bus) Close() {
	close(b.done)
}
