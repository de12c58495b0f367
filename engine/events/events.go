// Package events implements single-pass dispatch of session events to
// subscribed handlers. Handlers observe; they cannot change the world.
package events

import (
	"sort"
	"sync"

	"github.com/nathoo/ifkit/types"
)

// Kind identifies what happened in a session.
type Kind int

const (
	// Seeded: the world was replaced by a scenario.
	Seeded Kind = iota
	// Applied: a rule fired and its effect was committed.
	Applied
	// RolledBack: a rule fired but its effect broke a constraint.
	RolledBack
	// Restored: the world was replaced from a save.
	Restored
)

func (k Kind) String() string {
	switch k {
	case Seeded:
		return "seeded"
	case Applied:
		return "applied"
	case RolledBack:
		return "rolled_back"
	case Restored:
		return "restored"
	}
	return "unknown"
}

// Event is one notification from a session.
type Event struct {
	Kind       Kind
	Session    string
	Rule       string
	Owner      string
	Bindings   types.Bindings
	Added      []types.Fact
	Removed    []types.Fact
	Violations []string
}

// Handler receives events.
type Handler func(Event)

// Bus fans events out to handlers. The zero value is ready to use.
type Bus struct {
	mu       sync.Mutex
	next     int
	handlers map[int]Handler
	filters  map[int]map[Kind]bool
}

// Subscribe registers h for the given kinds, or for every kind when none
// are given. The returned func removes the subscription.
func (b *Bus) Subscribe(h Handler, kinds ...Kind) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.handlers == nil {
		b.handlers = map[int]Handler{}
		b.filters = map[int]map[Kind]bool{}
	}
	id := b.next
	b.next++
	b.handlers[id] = h
	if len(kinds) > 0 {
		f := make(map[Kind]bool, len(kinds))
		for _, k := range kinds {
			f[k] = true
		}
		b.filters[id] = f
	}
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.handlers, id)
		delete(b.filters, id)
	}
}

// Dispatch delivers each event once to every matching handler, in
// subscription order. Events published by a handler during dispatch are
// not delivered in the same pass.
func (b *Bus) Dispatch(events ...Event) {
	if b == nil {
		return
	}
	b.mu.Lock()
	ids := make([]int, 0, len(b.handlers))
	for id := range b.handlers {
		ids = append(ids, id)
	}
	hs := make(map[int]Handler, len(ids))
	fs := make(map[int]map[Kind]bool, len(ids))
	for _, id := range ids {
		hs[id] = b.handlers[id]
		fs[id] = b.filters[id]
	}
	b.mu.Unlock()
	sort.Ints(ids)

	for _, ev := range events {
		for _, id := range ids {
			if f := fs[id]; f != nil && !f[ev.Kind] {
				continue
			}
			hs[id](ev)
		}
	}
}
