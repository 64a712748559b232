package gesture

import (
	"sync"
	"testing"
	"time"

	"github.com/kidandcat-derived/macroengine/internal/keys"
)

func newTestOrchestrator(t *testing.T, central Listener) *Orchestrator {
	t.Helper()
	o := New(testTiming(), central, nil)
	o.Start()
	t.Cleanup(o.Destroy)
	return o
}

// S4 — interleaving activity on two different keys must not affect
// each other, and both eventually emit independently.
func TestOrchestratorIsolatesConcurrentKeys(t *testing.T) {
	var mu sync.Mutex
	seen := map[keys.Input]Type{}

	o := newTestOrchestrator(t, func(e Event) error {
		mu.Lock()
		seen[e.Key] = e.Gesture
		mu.Unlock()
		return nil
	})

	o.HandleKeyDown(keys.InputW)
	time.Sleep(5 * time.Millisecond)
	o.HandleKeyUp(keys.InputW)

	o.HandleKeyDown(keys.InputA)
	time.Sleep(5 * time.Millisecond)
	o.HandleKeyUp(keys.InputA)
	time.Sleep(5 * time.Millisecond)
	o.HandleKeyUp(keys.InputA) // stray up, should be ignored (no down open)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(seen)
		mu.Unlock()
		if n >= 2 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 2 {
		t.Fatalf("expected two distinct emissions, got %v", seen)
	}
}

// destroy() must be idempotent and must stop further emission.
func TestDestroyIsIdempotentAndStopsEmission(t *testing.T) {
	var count int
	var mu sync.Mutex
	o := New(testTiming(), func(e Event) error {
		mu.Lock()
		count++
		mu.Unlock()
		return nil
	}, nil)
	o.Start()

	o.Destroy()
	o.Destroy() // must not panic or double-reset

	o.HandleKeyDown(keys.InputW)
	o.HandleKeyUp(keys.InputW)
	time.Sleep(100 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if count != 0 {
		t.Fatalf("expected no emissions after destroy, got %d", count)
	}
}

// A panicking listener must not prevent other listeners from firing.
func TestListenerPanicIsIsolated(t *testing.T) {
	var mu sync.Mutex
	fired := false

	o := New(testTiming(), func(Event) error {
		panic("boom")
	}, nil)
	o.OnGesture(func(Event) error {
		mu.Lock()
		fired = true
		mu.Unlock()
		return nil
	})
	o.Start()
	t.Cleanup(o.Destroy)

	o.HandleKeyDown(keys.InputW)
	o.HandleKeyUp(keys.InputW)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		f := fired
		mu.Unlock()
		if f {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if !fired {
		t.Fatalf("expected additional listener to still fire despite central panic")
	}
}

// Unknown input keys are silently ignored.
func TestUnknownKeyIgnored(t *testing.T) {
	var mu sync.Mutex
	var count int
	o := newTestOrchestrator(t, func(Event) error {
		mu.Lock()
		count++
		mu.Unlock()
		return nil
	})

	o.HandleKeyDown(keys.InputUnknown)
	o.HandleKeyUp(keys.InputUnknown)
	time.Sleep(150 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if count != 0 {
		t.Fatalf("expected unknown key to produce no emissions, got %d", count)
	}
}
