// Package liveness keeps the master's view of which peers have called it
// recently. Operator visibility only; nothing here affects data consistency.
package liveness

import (
	"net"
	"net/netip"
	"sort"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/floorsync/floorsync/internal/event"
)

const (
	// DefaultWindow is how long a peer stays listed after its last request.
	DefaultWindow = 2 * time.Minute
	// defaultEmitEvery bounds notification volume under bursty traffic.
	defaultEmitEvery = 2 * time.Second
)

// Client is one visible peer.
type Client struct {
	IP       string    `json:"ip"`
	LastSeen time.Time `json:"lastSeen"`
	// Ago is LastSeen rendered for the UI ("12 seconds ago").
	Ago string `json:"ago"`
	// LastAuthorized is set only when the peer has passed the auth gate;
	// rejected callers still show up as seen.
	LastAuthorized *time.Time `json:"lastAuthorized,omitempty"`
}

type entry struct {
	lastSeen       time.Time
	lastAuthorized time.Time
}

// Tracker is the in-memory peer table.
type Tracker struct {
	mu        sync.Mutex
	window    time.Duration
	emitEvery time.Duration
	bus       *event.Bus
	entries   map[string]*entry
	lastEmit  time.Time
	lastCount int

	now func() time.Time
}

// New returns a tracker that publishes lan-clients events on bus. A zero
// window falls back to DefaultWindow. bus may be nil in tests.
func New(window time.Duration, bus *event.Bus) *Tracker {
	if window == 0 {
		window = DefaultWindow
	}
	return &Tracker{
		window:    window,
		emitEvery: defaultEmitEvery,
		bus:       bus,
		entries:   make(map[string]*entry),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// normalizeAddr strips the port and collapses IPv4-mapped IPv6 addresses
// ("::ffff:192.168.1.20") to their plain IPv4 form.
func normalizeAddr(remoteAddr string) string {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		if host == "" {
			return "unknown"
		}
		return host
	}
	return addr.Unmap().String()
}

// Touch records a request from remoteAddr. Every inbound request lands here
// before auth; authorized marks the ones that later passed the gate.
func (t *Tracker) Touch(remoteAddr string, authorized bool) {
	ip := normalizeAddr(remoteAddr)

	t.mu.Lock()
	e, ok := t.entries[ip]
	if !ok {
		e = &entry{}
		t.entries[ip] = e
	}
	now := t.now()
	e.lastSeen = now
	if authorized {
		e.lastAuthorized = now
	}
	t.emitLocked(false)
	t.mu.Unlock()
}

// Sweep evicts peers unseen for longer than the window and, if anything was
// evicted, forces a lan-clients notification.
func (t *Tracker) Sweep() {
	t.mu.Lock()
	now := t.now()
	evicted := false
	for ip, e := range t.entries {
		if now.Sub(e.lastSeen) > t.window {
			delete(t.entries, ip)
			evicted = true
		}
	}
	if evicted {
		t.emitLocked(true)
	}
	t.mu.Unlock()
}

// Snapshot sweeps and returns the current peer list, sorted by address.
func (t *Tracker) Snapshot() []Client {
	t.Sweep()
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

func (t *Tracker) snapshotLocked() []Client {
	out := make([]Client, 0, len(t.entries))
	for ip, e := range t.entries {
		c := Client{IP: ip, LastSeen: e.lastSeen, Ago: humanize.Time(e.lastSeen)}
		if !e.lastAuthorized.IsZero() {
			la := e.lastAuthorized
			c.LastAuthorized = &la
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IP < out[j].IP })
	return out
}

// emitLocked publishes the peer list, throttled to once per emitEvery unless
// the count changed or force is set.
func (t *Tracker) emitLocked(force bool) {
	if t.bus == nil {
		return
	}
	now := t.now()
	count := len(t.entries)
	if !force && count == t.lastCount && now.Sub(t.lastEmit) < t.emitEvery {
		return
	}
	t.lastCount = count
	t.lastEmit = now
	t.bus.Publish(event.Event{Name: event.LANClients, Payload: t.snapshotLocked()})
}
