// Package traffic implements the traffic controller: serialized access
// to raw output keys that appear in a profile both bare and modified,
// preventing concurrent sequences from leaking modifiers into each
// other (spec.md §4.5).
package traffic

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kidandcat-derived/macroengine/internal/keys"
	"github.com/kidandcat-derived/macroengine/internal/profile"
	"github.com/kidandcat-derived/macroengine/internal/timing"
)

// Token represents permission to press a raw output key. A Token with
// acquired == false means the request bypassed the protocol entirely
// (a safe key, or a supreme macro) and ReleaseCrossing on it is a
// harmless no-op.
type Token struct {
	base     keys.Output
	id       uint64
	acquired bool
}

// Held reports whether this token actually holds a crossing (as
// opposed to having bypassed the protocol). Callers may use this to
// avoid an unnecessary ReleaseCrossing call, but calling it anyway is
// always safe.
func (t Token) Held() bool { return t.acquired }

// Controller owns the crossing-token holder map and the per-key FIFO
// wait queues. One Controller is built per compiled profile when the
// engine starts; a hot profile reload keeps the existing one.
type Controller struct {
	compiled profile.Compiled
	oracle   *timing.Oracle
	supreme  map[string]struct{}

	mu      sync.Mutex
	holders map[keys.Output]uint64
	queues  map[keys.Output][]uint64

	nextID uint64
}

// New builds a controller for the given compiled profile. Supremacy is
// read from the profile's bindings: any binding with Supremacy=true
// bypasses the protocol under its own name.
func New(compiled profile.Compiled, p profile.Profile, oracle *timing.Oracle) *Controller {
	supreme := make(map[string]struct{})
	for _, b := range p.Bindings {
		if b.Supremacy {
			supreme[b.Name] = struct{}{}
		}
	}
	return &Controller{
		compiled: compiled,
		oracle:   oracle,
		supreme:  supreme,
		holders:  make(map[keys.Output]uint64),
		queues:   make(map[keys.Output][]uint64),
	}
}

func (c *Controller) hasSupremacy(macroName string) bool {
	_, ok := c.supreme[macroName]
	return ok
}

// RequestCrossing blocks until it is safe for macroName to press q, or
// ctx is cancelled. Non-conundrum keys and supreme macros return
// immediately with an unacquired token (spec.md §4.5, steps 1-2).
func (c *Controller) RequestCrossing(ctx context.Context, q keys.QualifiedKey, macroName string) (Token, error) {
	if macroName != "" && c.hasSupremacy(macroName) {
		return Token{}, nil
	}
	raw := q.Raw()
	if !c.compiled.IsConundrum(raw) {
		return Token{}, nil
	}

	id := atomic.AddUint64(&c.nextID, 1)
	c.mu.Lock()
	c.queues[raw] = append(c.queues[raw], id)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		isHead := len(c.queues[raw]) > 0 && c.queues[raw][0] == id
		// The gate is deliberately global: any token held for any
		// conundrum key blocks every other request, not just ones
		// for the same raw key. This is what actually prevents
		// modifier leakage between concurrently running sequences
		// (spec.md §4.5, §9 open question 2).
		anyHeld := len(c.holders) > 0
		if isHead && !anyHeld {
			c.holders[raw] = id
			c.mu.Unlock()
			return Token{base: raw, id: id, acquired: true}, nil
		}
		c.mu.Unlock()

		wait := time.Duration(c.oracle.Draw(timing.RangeTrafficWait)) * time.Millisecond
		select {
		case <-ctx.Done():
			c.dequeue(raw, id)
			return Token{}, ctx.Err()
		case <-time.After(wait):
		}
	}
}

// ReleaseCrossing releases a previously acquired token. Releasing an
// unacquired token (a bypassed request) is a no-op.
func (c *Controller) ReleaseCrossing(t Token) {
	if !t.acquired {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.holders[t.base] == t.id {
		delete(c.holders, t.base)
	}
	c.popIfHead(t.base, t.id)
}

func (c *Controller) dequeue(base keys.Output, id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	q := c.queues[base]
	for i, v := range q {
		if v == id {
			c.queues[base] = append(q[:i], q[i+1:]...)
			return
		}
	}
}

// popIfHead removes id from the front of base's queue if it is there.
// Callers must hold c.mu.
func (c *Controller) popIfHead(base keys.Output, id uint64) {
	q := c.queues[base]
	if len(q) > 0 && q[0] == id {
		c.queues[base] = q[1:]
	}
}
