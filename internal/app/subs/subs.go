// Package subs keeps the snapshot in step with the SDK object graph. Each
// live entity gets one subscriber; subscribers form a tree (agent, call,
// participant, stream) and Unsubscribe cascades down that tree.
package subs

import (
	"sync"

	"github.com/dkeye/callstate/internal/app"
	"github.com/dkeye/callstate/internal/app/orch"
	"github.com/dkeye/callstate/internal/core"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Subscriber detaches from its entity. Unsubscribe is idempotent.
type Subscriber interface {
	Unsubscribe()
}

// Deps is shared by every subscriber of one engine.
type Deps struct {
	Store    *app.Store
	Registry *app.Registry
	History  *app.IDHistory
	Orch     *orch.Orchestrator
}

func logger(module string) zerolog.Logger {
	return log.With().Str("module", module).Logger()
}

// CallIDRef is the id capsule shared by a call subscriber and its
// children. It holds the id the call had when last renamed; lookups go
// through the rename history so stale ids still land on the right call.
type CallIDRef struct {
	mu      sync.RWMutex
	id      string
	history *app.IDHistory
}

func NewCallIDRef(id string, history *app.IDHistory) *CallIDRef {
	return &CallIDRef{id: id, history: history}
}

// ID is the resolved current id.
func (r *CallIDRef) ID() string {
	r.mu.RLock()
	id := r.id
	r.mu.RUnlock()
	if r.history == nil {
		return id
	}
	return r.history.Resolve(id)
}

// Raw is the id stored in the capsule, without resolution.
func (r *CallIDRef) Raw() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.id
}

func (r *CallIDRef) set(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.id = id
}

// listeners collects the Off funcs of one subscriber.
type listeners struct {
	mu     sync.Mutex
	offs   []core.Off
	closed bool
}

func (l *listeners) add(offs ...core.Off) {
	l.mu.Lock()
	if !l.closed {
		l.offs = append(l.offs, offs...)
		l.mu.Unlock()
		return
	}
	l.mu.Unlock()
	for _, off := range offs {
		off()
	}
}

// close reports whether this call did the closing.
func (l *listeners) close() bool {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return false
	}
	l.closed = true
	offs := l.offs
	l.offs = nil
	l.mu.Unlock()
	for _, off := range offs {
		off()
	}
	return true
}

func (l *listeners) isClosed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

// children is a keyed set of child subscribers.
type children[K comparable, S Subscriber] struct {
	mu sync.Mutex
	m  map[K]S
}

// replace unsubscribes any child under k, then installs the one built by
// create.
func (c *children[K, S]) replace(k K, create func() S) S {
	if old, ok := c.remove(k); ok {
		old.Unsubscribe()
	}
	s := create()
	c.mu.Lock()
	if c.m == nil {
		c.m = make(map[K]S)
	}
	c.m[k] = s
	c.mu.Unlock()
	return s
}

func (c *children[K, S]) remove(k K) (S, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.m[k]
	delete(c.m, k)
	return s, ok
}

func (c *children[K, S]) get(k K) (S, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.m[k]
	return s, ok
}

func (c *children[K, S]) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.m)
}

// closeAll unsubscribes and forgets every child.
func (c *children[K, S]) closeAll() {
	c.mu.Lock()
	all := c.m
	c.m = nil
	c.mu.Unlock()
	for _, s := range all {
		s.Unsubscribe()
	}
}
