package platform

import (
	"fmt"
	"time"

	"github.com/getlantern/systray"
)

// ActiveCounter reports how many bindings are currently executing. The
// executor satisfies this directly via its ActiveCount method.
type ActiveCounter interface {
	ActiveCount() int
}

// Tray drives a systray status indicator that reflects how many macro
// sequences the executor is currently running.
type Tray struct {
	Counter  ActiveCounter
	OnQuit   func()
	Poll     time.Duration
}

// NewTray builds a Tray polling counter every 150ms unless overridden.
func NewTray(counter ActiveCounter, onQuit func()) *Tray {
	return &Tray{Counter: counter, OnQuit: onQuit, Poll: 150 * time.Millisecond}
}

// Run blocks until Quit is selected from the menu or the process exits.
// It must be called from the main goroutine on macOS.
func (t *Tray) Run() {
	systray.Run(t.onReady, func() {})
}

func (t *Tray) onReady() {
	systray.SetTitle("⌨")
	systray.SetTooltip("macroengine")

	mStatus := systray.AddMenuItem("Idle", "Active sequence count")
	mStatus.Disable()
	systray.AddSeparator()
	mQuit := systray.AddMenuItem("Quit", "Stop macroengine")

	poll := t.Poll
	if poll <= 0 {
		poll = 150 * time.Millisecond
	}

	go func() {
		for {
			time.Sleep(poll)
			n := t.Counter.ActiveCount()
			if n > 0 {
				mStatus.SetTitle(fmt.Sprintf("● running (%d)", n))
				systray.SetTitle("▶")
			} else {
				mStatus.SetTitle("Idle")
				systray.SetTitle("⌨")
			}
		}
	}()

	go func() {
		<-mQuit.ClickedCh
		if t.OnQuit != nil {
			t.OnQuit()
		}
		systray.Quit()
	}()
}
