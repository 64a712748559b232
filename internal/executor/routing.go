package executor

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/kidandcat-derived/macroengine/internal/keys"
	"github.com/kidandcat-derived/macroengine/internal/profile"
)

var (
	volumeNameRe = regexp.MustCompile(`(?i)^Volume:\s*(Low|Medium|High)\s*$`)
	micNameRe    = regexp.MustCompile(`(?i)^(Mic Toggle|Deafen)\s*$`)
	timerNameRe  = regexp.MustCompile(`(?i)^Timer placeholder\s*-.*'([^']+)'\s*after\s*(\d+)\s*seconds\s*$`)
)

// timerID converts a spoken message into the timer identifier scheme
// from spec.md §6: lowercase, spaces replaced with underscores.
func timerID(message string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(message)), " ", "_")
}

// routeResult describes what a step name's side-effect routing decided.
type routeResult struct {
	skipKeystroke bool
	run           func(e *Executor)
}

// routeStepName implements spec.md §4.6 step 1: Discord volume and TTS
// timer placeholders are recognized by the step's `name` and its key
// being END; mic toggle/deafen is recognized by `name` alone, whatever
// the key. Every other step name is left alone and the keystroke
// proceeds normally.
func routeStepName(step profile.Step) routeResult {
	if step.Name == "" {
		return routeResult{}
	}
	isEnd := step.Key != nil && step.Key.Base == keys.OutputEnd

	if isEnd {
		if m := volumeNameRe.FindStringSubmatch(step.Name); m != nil {
			level := strings.ToLower(m[1])
			return routeResult{
				skipKeystroke: true,
				run: func(e *Executor) {
					e.bestEffort("volume", func() error { return e.audio.SetVolume(level) })
				},
			}
		}
		if m := timerNameRe.FindStringSubmatch(step.Name); m != nil {
			message := m[1]
			seconds, err := strconv.Atoi(m[2])
			if err == nil {
				id := timerID(message)
				return routeResult{
					skipKeystroke: true,
					run: func(e *Executor) {
						e.bestEffort("tts_timer", func() error { return e.tts.TimerStart(id, seconds, message) })
					},
				}
			}
		}
	}

	if m := micNameRe.FindStringSubmatch(step.Name); m != nil {
		name := m[1]
		return routeResult{
			skipKeystroke: false, // the hotkey is still pressed; the app owns the binding too
			run: func(e *Executor) {
				e.bestEffort("mic", func() error { return e.audio.PressHotkey(name) })
			},
		}
	}

	return routeResult{}
}
