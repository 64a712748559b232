package dispatch

import (
	"sync"
	"testing"
	"time"

	"github.com/kidandcat-derived/macroengine/internal/executor"
	"github.com/kidandcat-derived/macroengine/internal/gesture"
	"github.com/kidandcat-derived/macroengine/internal/keys"
	"github.com/kidandcat-derived/macroengine/internal/profile"
	"github.com/kidandcat-derived/macroengine/internal/timing"
)

type countingSink struct {
	mu    sync.Mutex
	downs int
}

func (s *countingSink) KeyToggle(base keys.Output, mods keys.ModifierSet, down bool) error {
	if down {
		s.mu.Lock()
		s.downs++
		s.mu.Unlock()
	}
	return nil
}
func (s *countingSink) KeyTap(base keys.Output, mods keys.ModifierSet) error { return nil }
func (s *countingSink) Scroll(direction string, magnitude int) error        { return nil }

func (s *countingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.downs
}

func testProfile() profile.Profile {
	return profile.Profile{
		Name:   "test",
		Timing: gesture.DefaultTimingConfig(),
		Bindings: []profile.Binding{
			{
				Name:    "tap-a",
				Enabled: true,
				Trigger: profile.Trigger{Key: keys.InputW, Gesture: gesture.Single},
				Sequence: []profile.Step{
					{Key: &keys.QualifiedKey{Base: keys.OutputA, Modifiers: keys.NewModifierSet()}, BufferTier: profile.BufferLow},
				},
			},
		},
	}
}

func TestListenerDispatchesMatchingBinding(t *testing.T) {
	sink := &countingSink{}
	e := executor.New(sink, nil, timing.New(nil, nil))
	d := New(e, testProfile(), nil)

	listener := d.Listener()
	if err := listener(gesture.Event{Key: keys.InputW, Gesture: gesture.Single}); err != nil {
		t.Fatalf("listener: %v", err)
	}

	deadline := time.Now().Add(200 * time.Millisecond)
	for sink.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(2 * time.Millisecond)
	}
	if sink.count() == 0 {
		t.Fatal("expected the bound sequence to have pressed a key")
	}
	if d.DispatchedCount() != 1 {
		t.Fatalf("expected DispatchedCount()==1, got %d", d.DispatchedCount())
	}
	e.Destroy()
}

func TestListenerIgnoresUnmatchedGesture(t *testing.T) {
	sink := &countingSink{}
	e := executor.New(sink, nil, timing.New(nil, nil))
	d := New(e, testProfile(), nil)

	if err := d.Listener()(gesture.Event{Key: keys.InputS, Gesture: gesture.Double}); err != nil {
		t.Fatalf("listener: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	if sink.count() != 0 {
		t.Fatalf("expected no dispatch for an unmatched gesture, got %d presses", sink.count())
	}
	if d.DispatchedCount() != 0 {
		t.Fatalf("expected DispatchedCount()==0, got %d", d.DispatchedCount())
	}
	e.Destroy()
}

func TestSetProfileSwapsBindingsForFutureDispatch(t *testing.T) {
	sink := &countingSink{}
	e := executor.New(sink, nil, timing.New(nil, nil))
	d := New(e, profile.Profile{Name: "empty"}, nil)

	if err := d.Listener()(gesture.Event{Key: keys.InputW, Gesture: gesture.Single}); err != nil {
		t.Fatalf("listener: %v", err)
	}
	time.Sleep(10 * time.Millisecond)
	if sink.count() != 0 {
		t.Fatal("expected no dispatch before SetProfile")
	}

	d.SetProfile(testProfile())
	if err := d.Listener()(gesture.Event{Key: keys.InputW, Gesture: gesture.Single}); err != nil {
		t.Fatalf("listener: %v", err)
	}

	deadline := time.Now().Add(200 * time.Millisecond)
	for sink.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(2 * time.Millisecond)
	}
	if sink.count() == 0 {
		t.Fatal("expected dispatch to succeed after SetProfile")
	}
	e.Destroy()
}
