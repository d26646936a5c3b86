// Package registry is the in-process routing table from recipient id to live
// listeners. It is ephemeral: a recipient with no open connection simply has no
// entry, and delivery to them is a no-op.
package registry

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/kidora-labs/notification/internal/domain"
)

// Listener receives live notification pushes. A listener that panics is
// isolated: the panic is logged and the remaining listeners still run.
type Listener func(*domain.Notification)

// Registry holds two independent recipient namespaces: children and parents.
// A child id and a parent id never collide even when equal in value.
// Construct one per process and inject it; there is no package-level instance.
type Registry struct {
	children *table
	parents  *table
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		children: newTable("child"),
		parents:  newTable("parent"),
	}
}

// SubscribeChild registers listener for a child recipient and returns an
// idempotent unsubscribe function.
func (r *Registry) SubscribeChild(childID string, l Listener) func() {
	return r.children.subscribe(childID, l)
}

// SubscribeParent registers listener for a parent/admin recipient.
func (r *Registry) SubscribeParent(parentID string, l Listener) func() {
	return r.parents.subscribe(parentID, l)
}

// PublishChild delivers n to every listener currently registered for childID.
// Zero listeners is a silent no-op.
func (r *Registry) PublishChild(childID string, n *domain.Notification) {
	r.children.publish(childID, n)
}

// PublishParent delivers n to every listener currently registered for parentID.
func (r *Registry) PublishParent(parentID string, n *domain.Notification) {
	r.parents.publish(parentID, n)
}

// BroadcastParents delivers n to every listener across all parent recipients.
func (r *Registry) BroadcastParents(n *domain.Notification) {
	r.parents.broadcast(n)
}

// ListenerCount returns the total number of registered listeners in both
// namespaces. Used by the health endpoint.
func (r *Registry) ListenerCount() int {
	return r.children.count() + r.parents.count()
}

// table is one recipient namespace. Entries are created lazily on first
// subscribe and removed when their listener set empties, so the map never
// grows past the set of currently-connected recipients.
type table struct {
	scope string

	mu      sync.RWMutex
	nextID  uint64
	entries map[string]map[uint64]Listener
}

func newTable(scope string) *table {
	return &table{scope: scope, entries: make(map[string]map[uint64]Listener)}
}

func (t *table) subscribe(recipientID string, l Listener) func() {
	t.mu.Lock()
	id := t.nextID
	t.nextID++
	set := t.entries[recipientID]
	if set == nil {
		set = make(map[uint64]Listener)
		t.entries[recipientID] = set
	}
	set[id] = l
	t.mu.Unlock()

	log.Debug().Str("scope", t.scope).Str("recipient", recipientID).Msg("listener subscribed")

	var once sync.Once
	return func() {
		once.Do(func() {
			t.mu.Lock()
			if set, ok := t.entries[recipientID]; ok {
				delete(set, id)
				if len(set) == 0 {
					delete(t.entries, recipientID)
				}
			}
			t.mu.Unlock()
			log.Debug().Str("scope", t.scope).Str("recipient", recipientID).Msg("listener unsubscribed")
		})
	}
}

func (t *table) publish(recipientID string, n *domain.Notification) {
	for _, l := range t.snapshot(recipientID) {
		t.invoke(recipientID, l, n)
	}
}

func (t *table) broadcast(n *domain.Notification) {
	t.mu.RLock()
	var all []struct {
		recipient string
		l         Listener
	}
	for recipientID, set := range t.entries {
		for _, l := range set {
			all = append(all, struct {
				recipient string
				l         Listener
			}{recipientID, l})
		}
	}
	t.mu.RUnlock()

	for _, e := range all {
		t.invoke(e.recipient, e.l, n)
	}
}

// snapshot copies the listener set so publish never holds the lock while
// running listener callbacks (a listener may unsubscribe itself).
func (t *table) snapshot(recipientID string) []Listener {
	t.mu.RLock()
	defer t.mu.RUnlock()

	set := t.entries[recipientID]
	if len(set) == 0 {
		return nil
	}
	out := make([]Listener, 0, len(set))
	for _, l := range set {
		out = append(out, l)
	}
	return out
}

// invoke runs a single listener, swallowing any panic so one broken listener
// cannot prevent delivery to the rest or reach the publisher.
func (t *table) invoke(recipientID string, l Listener, n *domain.Notification) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error().
				Str("scope", t.scope).
				Str("recipient", recipientID).
				Interface("panic", rec).
				Msg("notification listener panicked")
		}
	}()
	l(n)
}

func (t *table) count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	total := 0
	for _, set := range t.entries {
		total += len(set)
	}
	return total
}
