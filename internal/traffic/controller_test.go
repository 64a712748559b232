package traffic

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/kidandcat-derived/macroengine/internal/keys"
	"github.com/kidandcat-derived/macroengine/internal/profile"
	"github.com/kidandcat-derived/macroengine/internal/timing"
)

func testCompiled() profile.Compiled {
	return profile.Compiled{
		ConundrumKeys: map[keys.Output]struct{}{keys.OutputR: {}},
		SafeKeys:      map[keys.Output]struct{}{keys.OutputG: {}},
	}
}

func TestNonConundrumKeyBypassesImmediately(t *testing.T) {
	c := New(testCompiled(), profile.Profile{}, timing.New(nil, nil))
	tok, err := c.RequestCrossing(context.Background(), keys.QualifiedKey{Base: keys.OutputG}, "any")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c.ReleaseCrossing(tok) // must be a safe no-op
}

func TestSupremacyBypassesProtocol(t *testing.T) {
	p := profile.Profile{Bindings: []profile.Binding{{Name: "god-macro", Supremacy: true}}}
	c := New(testCompiled(), p, timing.New(nil, nil))
	tok, err := c.RequestCrossing(context.Background(), keys.QualifiedKey{Base: keys.OutputR}, "god-macro")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tok.acquired {
		t.Fatalf("expected supremacy request to not actually acquire a token")
	}
}

// Property 7 (approximated): two concurrent requests for the
// conundrum key R (bare) and Shift+R must never both be "in the
// crossing" at the same time.
func TestConundrumKeySerializesAcrossModifiers(t *testing.T) {
	c := New(testCompiled(), profile.Profile{}, timing.New(nil, nil))

	var mu sync.Mutex
	inFlight := 0
	maxConcurrent := 0

	run := func(q keys.QualifiedKey, name string, wg *sync.WaitGroup) {
		defer wg.Done()
		tok, err := c.RequestCrossing(context.Background(), q, name)
		if err != nil {
			t.Errorf("unexpected error: %v", err)
			return
		}
		mu.Lock()
		inFlight++
		if inFlight > maxConcurrent {
			maxConcurrent = inFlight
		}
		mu.Unlock()

		time.Sleep(20 * time.Millisecond)

		mu.Lock()
		inFlight--
		mu.Unlock()
		c.ReleaseCrossing(tok)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go run(keys.QualifiedKey{Base: keys.OutputR}, "A", &wg)
	go run(keys.QualifiedKey{Base: keys.OutputR, Modifiers: keys.NewModifierSet(keys.ModShift)}, "B", &wg)
	wg.Wait()

	if maxConcurrent > 1 {
		t.Fatalf("expected serialized access, saw %d concurrent holders", maxConcurrent)
	}
}

func TestFIFOFairnessAmongContenders(t *testing.T) {
	c := New(testCompiled(), profile.Profile{}, timing.New(nil, nil))

	first, err := c.RequestCrossing(context.Background(), keys.QualifiedKey{Base: keys.OutputR}, "first")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var order []string
	var mu sync.Mutex
	var wg sync.WaitGroup

	release := func(name string) {
		defer wg.Done()
		tok, err := c.RequestCrossing(context.Background(), keys.QualifiedKey{Base: keys.OutputR}, name)
		if err != nil {
			t.Errorf("unexpected error: %v", err)
			return
		}
		mu.Lock()
		order = append(order, name)
		mu.Unlock()
		c.ReleaseCrossing(tok)
	}

	wg.Add(2)
	go release("second")
	time.Sleep(30 * time.Millisecond) // ensure "second" enqueues before "third"
	go release("third")
	time.Sleep(30 * time.Millisecond)

	c.ReleaseCrossing(first)
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 2 || order[0] != "second" || order[1] != "third" {
		t.Fatalf("expected FIFO order [second third], got %v", order)
	}
}

func TestCancelledRequestIsDequeued(t *testing.T) {
	c := New(testCompiled(), profile.Profile{}, timing.New(nil, nil))
	holder, err := c.RequestCrossing(context.Background(), keys.QualifiedKey{Base: keys.OutputR}, "holder")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := c.RequestCrossing(ctx, keys.QualifiedKey{Base: keys.OutputR}, "waiter")
		done <- err
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err == nil {
			t.Fatalf("expected cancellation error")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for cancellation")
	}

	c.ReleaseCrossing(holder)
	// A fresh request should now succeed promptly since the cancelled
	// waiter must have been dequeued.
	tok, err := c.RequestCrossing(context.Background(), keys.QualifiedKey{Base: keys.OutputR}, "fresh")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c.ReleaseCrossing(tok)
}
