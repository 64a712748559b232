// Package platform adapts the engine to the host OS: a robotgo-backed
// output sink, a systray status indicator, and per-OS raw keyboard
// hooks and autostart registration (spec.md §4.8, §4.13).
package platform

import (
	"fmt"
	"strings"

	"github.com/go-vgo/robotgo"

	"github.com/kidandcat-derived/macroengine/internal/keys"
)

// RobotgoSink implements executor.OutputSink on top of robotgo. It is
// the production OutputSink: every binding's keystrokes and scrolls
// ultimately reach the OS through this type.
type RobotgoSink struct{}

// NewRobotgoSink builds the default OutputSink.
func NewRobotgoSink() *RobotgoSink { return &RobotgoSink{} }

var outputToRobotgo = map[keys.Output]string{
	keys.OutputEnd: "end", keys.OutputHome: "home", keys.OutputSpace: "space",
	keys.OutputTab: "tab", keys.OutputEscape: "esc", keys.OutputEnter: "enter",
}

// robotgoKeyName translates an Output into the string robotgo's
// keyboard functions expect: letters and digits pass through
// lowercased, named keys go through outputToRobotgo.
func robotgoKeyName(o keys.Output) (string, error) {
	if name, ok := outputToRobotgo[o]; ok {
		return name, nil
	}
	s := string(o)
	if s == "" {
		return "", fmt.Errorf("platform: empty output key")
	}
	return strings.ToLower(s), nil
}

// robotgoModNames maps the engine's modifier names to the strings
// robotgo's keyboard functions expect ("ctrl", not "control").
var robotgoModNames = map[keys.Modifier]string{
	keys.ModControl: "ctrl",
	keys.ModAlt:     "alt",
	keys.ModShift:   "shift",
}

func modifierArgs(mods keys.ModifierSet) []string {
	args := make([]string, 0, len(mods))
	for _, m := range []keys.Modifier{keys.ModControl, keys.ModAlt, keys.ModShift} {
		if mods.Has(m) {
			args = append(args, robotgoModNames[m])
		}
	}
	return args
}

// KeyToggle presses or releases base with mods held, via
// robotgo.KeyToggle.
func (RobotgoSink) KeyToggle(base keys.Output, mods keys.ModifierSet, down bool) error {
	name, err := robotgoKeyName(base)
	if err != nil {
		return err
	}
	action := "up"
	if down {
		action = "down"
	}
	return robotgo.KeyToggle(name, action, modifierArgs(mods)...)
}

// KeyTap performs an atomic down+up, used as the fallback when a
// platform rejects a raw toggle (spec.md §7).
func (RobotgoSink) KeyTap(base keys.Output, mods keys.ModifierSet) error {
	name, err := robotgoKeyName(base)
	if err != nil {
		return err
	}
	return robotgo.KeyTap(name, modifierArgs(mods)...)
}

// Scroll moves the scroll wheel magnitude ticks in direction ("up" or
// "down").
func (RobotgoSink) Scroll(direction string, magnitude int) error {
	if magnitude <= 0 {
		magnitude = 1
	}
	dy := magnitude
	if direction == "down" {
		dy = -magnitude
	}
	robotgo.Scroll(0, dy)
	return nil
}
