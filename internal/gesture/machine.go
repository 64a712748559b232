package gesture

import (
	"time"

	"github.com/kidandcat-derived/macroengine/internal/keys"
)

// Machine is one input key's isolated gesture classifier. It holds no
// reference to any other key's state; the orchestrator owns one
// instance per key (spec.md §4.1).
type Machine struct {
	key    keys.Input
	timing TimingConfig

	pressHistory           []PressRecord
	keyDownTime            *time.Time
	windowDeadline         *time.Time
	waitingForRelease      bool
	keyDownWasWithinWindow bool
	pressLimitReached      bool
	awaitJailUntil         time.Time
}

// NewMachine builds a machine for the given input key using the given
// timing thresholds.
func NewMachine(key keys.Input, timing TimingConfig) *Machine {
	return &Machine{key: key, timing: timing, pressHistory: make([]PressRecord, 0, 4)}
}

// Reset clears all state without reallocating the machine itself.
// Orchestrator.Destroy calls it; a profile reload does not (the reload
// path only calls SetTiming, so in-flight press state survives it).
func (m *Machine) Reset() {
	m.pressHistory = m.pressHistory[:0]
	m.keyDownTime = nil
	m.windowDeadline = nil
	m.waitingForRelease = false
	m.keyDownWasWithinWindow = false
	m.pressLimitReached = false
	m.awaitJailUntil = time.Time{}
}

// SetTiming updates the thresholds a machine classifies against,
// without disturbing in-flight state; used when a profile reload
// changes timing configuration.
func (m *Machine) SetTiming(timing TimingConfig) {
	m.timing = timing
}

// HandleKeyDown processes a key-down at t. It never emits a gesture
// directly: the 4th key-down of a sequence only sets waitingForRelease,
// and the matching HandleKeyUp then resolves and returns the gesture.
func (m *Machine) HandleKeyDown(t time.Time) {
	if t.Before(m.awaitJailUntil) {
		return // jail
	}
	if m.keyDownTime != nil {
		return // OS key-repeat autoburst
	}
	if m.pressLimitReached {
		return
	}

	if m.windowDeadline != nil && !t.After(*m.windowDeadline) {
		m.keyDownWasWithinWindow = true
		ext := t.Add(m.timing.extensionWindow())
		m.windowDeadline = &ext
	} else {
		if !m.waitingForRelease {
			m.pressHistory = m.pressHistory[:0]
			m.pressLimitReached = false
		}
		m.keyDownWasWithinWindow = false
		deadline := t.Add(m.timing.initialWindow())
		m.windowDeadline = &deadline
	}

	down := t
	m.keyDownTime = &down

	if len(m.pressHistory) == 3 {
		m.windowDeadline = nil
		m.waitingForRelease = true
	}
}

// HandleKeyUp processes a key-up at t and returns the resolved event
// when this release completes a gesture (either the 4th press of a
// sequence, resolved synchronously here, or nil otherwise — a
// single/double/triple gesture instead waits for the orchestrator's
// periodic finalization check).
func (m *Machine) HandleKeyUp(t time.Time) *Event {
	if m.keyDownTime == nil {
		return nil
	}
	hold := t.Sub(*m.keyDownTime)
	m.keyDownTime = nil

	if m.pressLimitReached {
		return nil
	}

	cancelThreshold := time.Duration(m.timing.CancelThresholdMs) * time.Millisecond
	if hold >= cancelThreshold {
		m.pressHistory = m.pressHistory[:0]
		m.windowDeadline = nil
		m.waitingForRelease = false
		return nil
	}

	pressType := m.classify(hold)

	counts := len(m.pressHistory) == 0 || m.keyDownWasWithinWindow || m.waitingForRelease
	if !counts {
		m.pressHistory = m.pressHistory[:0]
	}

	m.pressHistory = append(m.pressHistory, PressRecord{Timestamp: t, PressType: pressType, HoldMs: hold.Milliseconds()})

	if len(m.pressHistory) >= 4 {
		m.pressLimitReached = true
		m.windowDeadline = nil
		m.waitingForRelease = false
		return m.resolve(t)
	}

	return nil
}

func (m *Machine) classify(hold time.Duration) PressType {
	ms := hold.Milliseconds()
	switch {
	case ms >= int64(m.timing.LongPressMinMs) && ms <= int64(m.timing.LongPressMaxMs):
		return PressLong
	case ms >= int64(m.timing.SuperLongMinMs) && ms <= int64(m.timing.SuperLongMaxMs):
		return PressSuperLong
	default:
		return PressNormal
	}
}

// CheckFinalize is the periodic finalization pass described in
// spec.md §4.1: if presses are recorded, nothing is held, we are not
// waiting on a 4th release, and the window has expired, resolve.
func (m *Machine) CheckFinalize(now time.Time) *Event {
	if len(m.pressHistory) == 0 {
		return nil
	}
	if m.keyDownTime != nil {
		return nil
	}
	if m.waitingForRelease {
		return nil
	}
	if m.windowDeadline == nil || !now.After(*m.windowDeadline) {
		return nil
	}
	return m.resolve(now)
}

// resolve computes and emits exactly one gesture, resetting all
// per-sequence state before returning the event — the emission-ordering
// invariant from spec.md §4.1 ("state must be reset before any listener
// callback runs") is satisfied by the caller only posting the returned
// event onto its deferred queue after this call returns.
func (m *Machine) resolve(now time.Time) *Event {
	n := len(m.pressHistory)
	if n > 4 {
		n = 4
	}
	if n == 0 {
		return nil
	}
	last := m.pressHistory[n-1]
	gt := Combine(n, last.PressType)

	switch n {
	case 3:
		m.awaitJailUntil = now.Add(120 * time.Millisecond)
	case 4:
		m.awaitJailUntil = now.Add(200 * time.Millisecond)
	}

	m.pressHistory = m.pressHistory[:0]
	m.pressLimitReached = false
	m.windowDeadline = nil
	m.waitingForRelease = false
	m.keyDownWasWithinWindow = false

	holdMs := last.HoldMs
	return &Event{
		Key:         m.key,
		Gesture:     gt,
		TimestampMs: now.UnixMilli(),
		HoldMs:      &holdMs,
	}
}
