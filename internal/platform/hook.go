package platform

import (
	"time"

	"github.com/kidandcat-derived/macroengine/internal/keys"
)

// RawEvent is a canonicalized key transition delivered by a platform
// hook: which input key, pressed or released, and when (spec.md §4.8).
type RawEvent struct {
	Input keys.Input
	Down  bool
	At    time.Time
}

// Hook is the platform shim contract: capture raw OS keyboard and
// mouse-button events, canonicalize them into keys.Input, and deliver
// them on a channel. Every concrete implementation (darwin/linux/
// windows) lives in its own build-tagged file; internal/engine wires
// whichever one matches GOOS into the gesture orchestrator.
type Hook interface {
	// Start begins capturing events and returns the channel they arrive
	// on. Calling Start twice returns the same channel.
	Start() (<-chan RawEvent, error)
	// Stop terminates capture and closes the event channel.
	Stop() error
}
