// Package dispatch connects the gesture orchestrator's events to the
// sequence executor: the binding dispatcher of spec.md §4.7.
package dispatch

import (
	"sync"
	"sync/atomic"

	"github.com/kidandcat-derived/macroengine/internal/executor"
	"github.com/kidandcat-derived/macroengine/internal/gesture"
	"github.com/kidandcat-derived/macroengine/internal/profile"
	"go.uber.org/zap"
)

// Dispatcher looks up the binding matching a classified gesture and
// launches it detached on the executor. It holds the active profile
// behind a mutex so a hot reload (config.Watcher) can swap it without
// racing in-flight lookups.
type Dispatcher struct {
	logger *zap.Logger
	exec   *executor.Executor

	mu sync.RWMutex
	p  profile.Profile

	dispatched atomic.Int64
}

// New builds a Dispatcher bound to exec, starting with profile p.
func New(exec *executor.Executor, p profile.Profile, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{exec: exec, p: p, logger: logger}
}

// SetProfile atomically swaps the profile consulted by future lookups.
// In-flight executor runs started under the old profile are unaffected.
func (d *Dispatcher) SetProfile(p profile.Profile) {
	d.mu.Lock()
	d.p = p
	d.mu.Unlock()
}

// Profile returns the currently active profile.
func (d *Dispatcher) Profile() profile.Profile {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.p
}

// DispatchedCount returns how many gestures this dispatcher has routed
// to a binding, for tray/status reporting.
func (d *Dispatcher) DispatchedCount() int64 { return d.dispatched.Load() }

// Listener returns a gesture.Listener suitable for
// Orchestrator.OnGesture: it looks up the binding matching ev's key and
// gesture type and, if found and enabled, fires it detached. Gestures
// with no matching binding are silently ignored (spec.md §4.7).
func (d *Dispatcher) Listener() gesture.Listener {
	return func(ev gesture.Event) error {
		d.mu.RLock()
		p := d.p
		d.mu.RUnlock()

		b, ok := p.FindBinding(ev.Key, ev.Gesture)
		if !ok {
			return nil
		}
		d.dispatched.Add(1)
		if d.logger != nil {
			d.logger.Debug("dispatch: firing binding",
				zap.String("binding", b.Name), zap.String("key", string(ev.Key)), zap.String("gesture", string(ev.Gesture)))
		}
		d.exec.ExecuteDetached(b)
		return nil
	}
}
