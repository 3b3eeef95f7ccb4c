// Package event carries change notifications from the core to whoever renders
// them (the UI shell, the SSE endpoint). Delivery is best-effort: a slow
// subscriber drops events rather than stalling a request handler.
package event

import "sync"

// Event names, matching the channels the UI subscribes to.
const (
	JobsUpdated  = "jobs-updated"
	LANClients   = "lan-clients"
	StoreRestore = "db-restored"
)

// Actions carried by a jobs-updated event.
const (
	ActionAdd    = "add"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

// Event is one typed change notification.
type Event struct {
	Name string `json:"name"`
	// Source tells the UI whether the change came from this machine or over
	// the LAN.
	Source string `json:"source,omitempty"`
	Action string `json:"action,omitempty"`
	ID     string `json:"id,omitempty"`
	// Payload carries event-specific data, e.g. the peer list for
	// lan-clients.
	Payload any `json:"payload,omitempty"`
}

// Bus fans events out to subscribers.
type Bus struct {
	mu   sync.Mutex
	subs map[chan Event]struct{}
}

// New returns an empty bus.
func New() *Bus {
	return &Bus{subs: make(map[chan Event]struct{})}
}

// Subscribe returns a buffered channel receiving every future event. Callers
// must Unsubscribe when done.
func (b *Bus) Subscribe() chan Event {
	ch := make(chan Event, 64)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes ch and closes it.
func (b *Bus) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	_, ok := b.subs[ch]
	delete(b.subs, ch)
	b.mu.Unlock()
	if ok {
		close(ch)
	}
}

// Publish delivers ev to every subscriber without blocking; full subscriber
// buffers lose the event. Sends happen under the lock so a concurrent
// Unsubscribe cannot close a channel mid-delivery.
func (b *Bus) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
