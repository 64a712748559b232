package gesture

import (
	"testing"
	"time"

	"github.com/kidandcat-derived/macroengine/internal/keys"
)

func testTiming() TimingConfig {
	return TimingConfig{
		MultiPressWindowMs: 90,
		LongPressMinMs:     80,
		LongPressMaxMs:     145,
		SuperLongMinMs:     146,
		SuperLongMaxMs:     400,
		CancelThresholdMs:  1200,
		DebounceDelayMs:    5,
	}
}

func at(ms int) time.Time {
	return time.UnixMilli(int64(ms))
}

// S1 — a single tap with no follow-up press resolves to `single` once
// the window has elapsed.
func TestSingleTapResolvesAfterWindow(t *testing.T) {
	m := NewMachine(keys.InputW, testTiming())
	m.HandleKeyDown(at(0))
	if e := m.HandleKeyUp(at(30)); e != nil {
		t.Fatalf("expected no synchronous emission on first tap, got %+v", e)
	}
	if e := m.CheckFinalize(at(50)); e != nil {
		t.Fatalf("finalize before window deadline should not resolve, got %+v", e)
	}
	e := m.CheckFinalize(at(200))
	if e == nil {
		t.Fatalf("expected resolution after window elapsed")
	}
	if e.Gesture != Single {
		t.Fatalf("expected single, got %s", e.Gesture)
	}
}

// S2 — double tap where the second hold lands in the long range.
func TestDoubleLong(t *testing.T) {
	m := NewMachine(keys.InputW, testTiming())
	m.HandleKeyDown(at(0))
	m.HandleKeyUp(at(30))
	m.HandleKeyDown(at(50))
	m.HandleKeyUp(at(180)) // hold = 130ms -> long
	e := m.CheckFinalize(at(400))
	if e == nil {
		t.Fatalf("expected an emission")
	}
	if e.Gesture != DoubleLong {
		t.Fatalf("expected double_long, got %s", e.Gesture)
	}
}

// S3 — four quick taps resolve synchronously as quadruple, then the
// await-jail discards a subsequent tap, and a later tap outside the
// jail starts a fresh sequence.
func TestQuadrupleThenJail(t *testing.T) {
	m := NewMachine(keys.InputW, testTiming())
	m.HandleKeyDown(at(0))
	m.HandleKeyUp(at(15))
	m.HandleKeyDown(at(35))
	m.HandleKeyUp(at(50))
	m.HandleKeyDown(at(70))
	m.HandleKeyUp(at(85))
	m.HandleKeyDown(at(105))
	e := m.HandleKeyUp(at(120))
	if e == nil {
		t.Fatalf("expected synchronous quadruple emission")
	}
	if e.Gesture != Quadruple {
		t.Fatalf("expected quadruple, got %s", e.Gesture)
	}

	// jail runs until 120+200=320ms
	m.HandleKeyDown(at(150))
	if got := m.HandleKeyUp(at(165)); got != nil {
		t.Fatalf("expected jailed press to produce no emission, got %+v", got)
	}
	if final := m.CheckFinalize(at(500)); final != nil {
		t.Fatalf("jailed press must not resolve later either, got %+v", final)
	}

	m.HandleKeyDown(at(330))
	m.HandleKeyUp(at(350))
	e2 := m.CheckFinalize(at(500))
	if e2 == nil || e2.Gesture != Single {
		t.Fatalf("expected single after jail expired, got %+v", e2)
	}
}

// Property 3: a hold at/above cancel_threshold discards silently, and
// unrelated subsequent presses on the same key still work.
func TestCancelThresholdDiscards(t *testing.T) {
	m := NewMachine(keys.InputW, testTiming())
	m.HandleKeyDown(at(0))
	if e := m.HandleKeyUp(at(1300)); e != nil {
		t.Fatalf("expected no emission for cancel-threshold hold")
	}
	if e := m.CheckFinalize(at(1500)); e != nil {
		t.Fatalf("cancelled press must not resolve later, got %+v", e)
	}

	m.HandleKeyDown(at(2000))
	m.HandleKeyUp(at(2020))
	e := m.CheckFinalize(at(2200))
	if e == nil || e.Gesture != Single {
		t.Fatalf("expected an unrelated single afterward, got %+v", e)
	}
}

// Property 1: press_history is empty at the point resolve returns.
func TestHistoryEmptyAfterResolve(t *testing.T) {
	m := NewMachine(keys.InputW, testTiming())
	m.HandleKeyDown(at(0))
	m.HandleKeyUp(at(30))
	m.CheckFinalize(at(200))
	if len(m.pressHistory) != 0 {
		t.Fatalf("expected empty press history after resolve, got %d entries", len(m.pressHistory))
	}
}

// Isolation: exercising one key's machine must never affect another's.
func TestMachinesAreIsolated(t *testing.T) {
	m1 := NewMachine(keys.InputW, testTiming())
	m2 := NewMachine(keys.InputA, testTiming())

	m1.HandleKeyDown(at(0))
	m1.HandleKeyUp(at(15))
	m1.HandleKeyDown(at(35))

	if m2.keyDownTime != nil || len(m2.pressHistory) != 0 || m2.windowDeadline != nil {
		t.Fatalf("expected key A's machine untouched by key W activity")
	}
}

// Key-repeat autoburst: a second key-down while one is already open is
// ignored.
func TestKeyRepeatAutoburstIgnored(t *testing.T) {
	m := NewMachine(keys.InputW, testTiming())
	m.HandleKeyDown(at(0))
	m.HandleKeyDown(at(5)) // OS repeat, must be ignored
	if e := m.HandleKeyUp(at(30)); e != nil {
		t.Fatalf("unexpected emission")
	}
	e := m.CheckFinalize(at(200))
	if e == nil || e.Gesture != Single {
		t.Fatalf("expected single despite repeat events, got %+v", e)
	}
}
