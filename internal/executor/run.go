package executor

import (
	"context"
	"time"

	"github.com/kidandcat-derived/macroengine/internal/keys"
	"github.com/kidandcat-derived/macroengine/internal/profile"
	"github.com/kidandcat-derived/macroengine/internal/timing"
	"github.com/kidandcat-derived/macroengine/internal/traffic"
	"go.uber.org/zap"
)

// runSequence walks every step of b's sequence, running each of its
// echo hits in order, and returns once the last echo hit of the last
// step completes or ctx is cancelled (spec.md §4.6).
func (e *Executor) runSequence(ctx context.Context, b profile.Binding, runID string) error {
	total := 0
	for _, step := range b.Sequence {
		total += step.EffectiveEchoHits()
	}

	var owed *heldState
	pressCount := 0

	for si, step := range b.Sequence {
		echoHits := step.EffectiveEchoHits()
		for hit := 0; hit < echoHits; hit++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			pressCount++
			isVeryLast := pressCount == total

			held, err := e.runOnePress(ctx, b.Name, step)
			if err != nil {
				return err
			}

			idx := si
			e.emit(Event{Type: EventStep, BindingName: b.Name, RunID: runID, StepIndex: &idx, TimestampMs: nowMs()})

			if !isVeryLast {
				delayMs := e.stepDelay(step)
				draining := owed
				owed = nil
				if err := e.runBuffer(ctx, delayMs, draining); err != nil {
					return err
				}
				d := delayMs
				e.emit(Event{Type: EventStep, BindingName: b.Name, RunID: runID, StepIndex: &idx, DelayMs: &d, TimestampMs: nowMs()})
			} else if owed != nil {
				// No further buffer window exists to drain a still-owed
				// release into; release it now rather than leak the key.
				e.releaseHeld(owed)
				owed = nil
			}

			if held != nil {
				owed = held
			}
		}
	}

	if owed != nil {
		e.releaseHeld(owed)
	}
	return nil
}

// runOnePress performs one echo hit of one step: side-effect routing,
// the keystroke or scroll itself, and traffic-controller coordination.
func (e *Executor) runOnePress(ctx context.Context, macroName string, step profile.Step) (*heldState, error) {
	route := routeStepName(step)
	if route.run != nil {
		route.run(e)
	}
	if route.skipKeystroke {
		return nil, nil
	}
	if step.IsScroll() {
		e.bestEffort("scroll", func() error { return e.sink.Scroll(step.ScrollDirection, step.ScrollMagnitude) })
		return nil, nil
	}
	return e.pressStep(ctx, macroName, step)
}

// pressStep presses (and, unless hold_through_next, releases) a
// keystroke step, coordinating with the traffic controller if the
// step's base is a conundrum key.
func (e *Executor) pressStep(ctx context.Context, macroName string, step profile.Step) (*heldState, error) {
	primary := *step.Key
	var token traffic.Token
	if e.traffic != nil {
		t, err := e.traffic.RequestCrossing(ctx, primary, macroName)
		if err != nil {
			return nil, err
		}
		token = t
	}

	downRange := step.EffectiveKeyDownDuration()
	keyDownMs := e.oracle.DrawRange(downRange.Min, downRange.Max)

	if step.DualKey != nil {
		// hold_through_next combined with a dual key is not defined by
		// the specification; the dual step always fully releases both
		// keys before returning (see DESIGN.md).
		return nil, e.pressDualStep(ctx, primary, token, step, keyDownMs)
	}

	fellBack := e.toggleDown(primary.Base, primary.Modifiers)
	if !fellBack {
		if err := e.sleep(ctx, time.Duration(keyDownMs)*time.Millisecond); err != nil {
			e.toggleUp(primary.Base, primary.Modifiers)
			e.releaseToken(token)
			return nil, err
		}
	}

	if step.HoldThroughNext && !fellBack {
		return &heldState{key: primary, token: token, releaseDelay: step.EffectiveReleaseDelay()}, nil
	}

	if !fellBack {
		e.toggleUp(primary.Base, primary.Modifiers)
	}
	e.releaseToken(token)
	return nil, nil
}

func (e *Executor) pressDualStep(ctx context.Context, primary keys.QualifiedKey, token traffic.Token, step profile.Step, keyDownMs int) error {
	dual := *step.DualKey
	offsetMs := step.EffectiveDualKeyOffsetMs()

	fellBackPrimary := e.toggleDown(primary.Base, primary.Modifiers)
	if err := e.sleep(ctx, time.Duration(offsetMs)*time.Millisecond); err != nil {
		if !fellBackPrimary {
			e.toggleUp(primary.Base, primary.Modifiers)
		}
		e.releaseToken(token)
		return err
	}

	fellBackDual := e.toggleDown(dual.Base, dual.Modifiers)

	dualRange := step.EffectiveKeyDownDuration()
	if step.DualKeyDownDuration != nil {
		dualRange = *step.DualKeyDownDuration
	}
	dualMs := e.oracle.DrawRange(dualRange.Min, dualRange.Max)

	remainingPrimary := keyDownMs - offsetMs
	if remainingPrimary < 0 {
		remainingPrimary = 0
	}
	if !fellBackPrimary {
		if err := e.sleep(ctx, time.Duration(remainingPrimary)*time.Millisecond); err != nil {
			e.toggleUp(primary.Base, primary.Modifiers)
			if !fellBackDual {
				e.toggleUp(dual.Base, dual.Modifiers)
			}
			e.releaseToken(token)
			return err
		}
		e.toggleUp(primary.Base, primary.Modifiers)
	}

	remainingDual := dualMs - remainingPrimary
	if remainingDual < 0 {
		remainingDual = 0
	}
	if !fellBackDual {
		if err := e.sleep(ctx, time.Duration(remainingDual)*time.Millisecond); err != nil {
			e.toggleUp(dual.Base, dual.Modifiers)
			e.releaseToken(token)
			return err
		}
		e.toggleUp(dual.Base, dual.Modifiers)
	}

	e.releaseToken(token)
	return nil
}

// runBuffer sleeps the given inter-step delay. If draining is set, the
// owed key release happens partway through the sleep, after a
// randomized release_delay draw (spec.md §4.6 point 9).
func (e *Executor) runBuffer(ctx context.Context, delayMs int, draining *heldState) error {
	if draining == nil {
		return e.sleep(ctx, time.Duration(delayMs)*time.Millisecond)
	}
	releaseMs := e.oracle.DrawRange(draining.releaseDelay.Min, draining.releaseDelay.Max)
	if releaseMs > delayMs {
		releaseMs = delayMs
	}
	if err := e.sleep(ctx, time.Duration(releaseMs)*time.Millisecond); err != nil {
		e.releaseHeld(draining)
		return err
	}
	e.releaseHeld(draining)
	remaining := delayMs - releaseMs
	if remaining > 0 {
		return e.sleep(ctx, time.Duration(remaining)*time.Millisecond)
	}
	return nil
}

func (e *Executor) releaseHeld(h *heldState) {
	e.toggleUp(h.key.Base, h.key.Modifiers)
	e.releaseToken(h.token)
}

func (e *Executor) releaseToken(t traffic.Token) {
	if e.traffic != nil {
		e.traffic.ReleaseCrossing(t)
	}
}

// toggleDown presses base+mods down. On sink rejection it falls back
// to a best-effort atomic tap and reports the hold duration as already
// elapsed (spec.md §4.6 point 4, §7).
func (e *Executor) toggleDown(base keys.Output, mods keys.ModifierSet) (fellBack bool) {
	if err := e.sink.KeyToggle(base, mods, true); err != nil {
		if e.logger != nil {
			e.logger.Warn("executor: key-down injection failed, falling back to tap",
				zap.String("key", string(base)), zap.Error(err))
		}
		if err2 := e.sink.KeyTap(base, mods); err2 != nil && e.logger != nil {
			e.logger.Error("executor: tap fallback also failed, skipping key",
				zap.String("key", string(base)), zap.Error(err2))
		}
		return true
	}
	return false
}

func (e *Executor) toggleUp(base keys.Output, mods keys.ModifierSet) {
	if err := e.sink.KeyToggle(base, mods, false); err != nil && e.logger != nil {
		e.logger.Warn("executor: key-up injection failed", zap.String("key", string(base)), zap.Error(err))
	}
}

// sleep blocks for d or until ctx is cancelled, whichever comes first.
func (e *Executor) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// stepDelay draws the inter-step buffer delay for step, either from its
// buffer tier or its explicit (min,max) override.
func (e *Executor) stepDelay(step profile.Step) int {
	if step.HasExplicitDelay() {
		return e.oracle.DrawRange(step.MinDelayMs, step.MaxDelayMs)
	}
	switch step.BufferTier {
	case profile.BufferMedium:
		return e.oracle.Draw(timing.RangeBufferMed)
	case profile.BufferHigh:
		return e.oracle.Draw(timing.RangeBufferHigh)
	default:
		return e.oracle.Draw(timing.RangeBufferLow)
	}
}
