package executor

import "github.com/kidandcat-derived/macroengine/internal/keys"

// OutputSink is the platform's OS keystroke and scroll sink contract
// (spec.md §4.8). Direction true means "down", false means "up".
type OutputSink interface {
	KeyToggle(base keys.Output, mods keys.ModifierSet, down bool) error
	KeyTap(base keys.Output, mods keys.ModifierSet) error
	Scroll(direction string, magnitude int) error
}

// AudioCollaborator is the opt-in Discord-adjacent audio surface a step
// can route to by name (spec.md §6). All calls are best-effort. Mic
// Toggle and Deafen both route through PressHotkey: the engine presses
// whatever hotkey the operator bound in the external app and lets that
// app own the resulting mute/deafen state, rather than asserting an
// absolute state itself.
type AudioCollaborator interface {
	SetVolume(level string) error
	PressHotkey(name string) error
}

// TTSCollaborator starts a named countdown timer that eventually speaks
// a message (spec.md §6). Best-effort.
type TTSCollaborator interface {
	TimerStart(id string, seconds int, message string) error
}

// NopAudio is the zero-effort default AudioCollaborator.
type NopAudio struct{}

func (NopAudio) SetVolume(string) error   { return nil }
func (NopAudio) PressHotkey(string) error { return nil }

// NopTTS is the zero-effort default TTSCollaborator.
type NopTTS struct{}

func (NopTTS) TimerStart(string, int, string) error { return nil }
