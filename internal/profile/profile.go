// Package profile defines the macro profile data model — bindings,
// sequence steps, and gesture triggers — plus the static profile
// compiler that partitions output keys into conundrum and safe sets
// (spec.md §3-§4.4).
package profile

import (
	"fmt"

	"github.com/kidandcat-derived/macroengine/internal/gesture"
	"github.com/kidandcat-derived/macroengine/internal/keys"
)

// BufferTier is a coarse timing class used to look up a randomized
// inter-step delay range when a step doesn't specify explicit bounds.
type BufferTier string

const (
	BufferLow    BufferTier = "low"
	BufferMedium BufferTier = "medium"
	BufferHigh   BufferTier = "high"
)

// DurationRange is an inclusive millisecond range.
type DurationRange struct {
	Min int `yaml:"min" json:"min"`
	Max int `yaml:"max" json:"max"`
}

// DefaultKeyDownDuration is the step default when KeyDownDuration is
// unset.
func DefaultKeyDownDuration() DurationRange { return DurationRange{Min: 15, Max: 27} }

// DefaultReleaseDelay is the default hold-through release delay.
func DefaultReleaseDelay() DurationRange { return DurationRange{Min: 7, Max: 18} }

// DefaultDualKeyOffsetMs is the default offset before pressing a dual
// key when the step doesn't specify one.
const DefaultDualKeyOffsetMs = 6

// Step is one unit of output within a macro sequence (spec.md §3).
type Step struct {
	Key *keys.QualifiedKey `yaml:"key,omitempty" json:"key,omitempty"`

	BufferTier BufferTier     `yaml:"bufferTier,omitempty" json:"bufferTier,omitempty"`
	MinDelayMs int            `yaml:"minDelayMs,omitempty" json:"minDelayMs,omitempty"`
	MaxDelayMs int            `yaml:"maxDelayMs,omitempty" json:"maxDelayMs,omitempty"`

	KeyDownDuration *DurationRange `yaml:"keyDownDuration,omitempty" json:"keyDownDuration,omitempty"`
	EchoHits        int            `yaml:"echoHits,omitempty" json:"echoHits,omitempty"`

	DualKey               *keys.QualifiedKey `yaml:"dualKey,omitempty" json:"dualKey,omitempty"`
	DualKeyOffsetMs       int                `yaml:"dualKeyOffsetMs,omitempty" json:"dualKeyOffsetMs,omitempty"`
	DualKeyDownDuration   *DurationRange     `yaml:"dualKeyDownDuration,omitempty" json:"dualKeyDownDuration,omitempty"`

	HoldThroughNext bool           `yaml:"holdThroughNext,omitempty" json:"holdThroughNext,omitempty"`
	ReleaseDelay    *DurationRange `yaml:"releaseDelay,omitempty" json:"releaseDelay,omitempty"`

	Name string `yaml:"name,omitempty" json:"name,omitempty"`

	ScrollDirection string `yaml:"scrollDirection,omitempty" json:"scrollDirection,omitempty"`
	ScrollMagnitude int    `yaml:"scrollMagnitude,omitempty" json:"scrollMagnitude,omitempty"`
}

// IsScroll reports whether this step emits a scroll event instead of a
// keystroke.
func (s Step) IsScroll() bool { return s.ScrollDirection != "" }

// EffectiveKeyDownDuration returns the configured range or the default.
func (s Step) EffectiveKeyDownDuration() DurationRange {
	if s.KeyDownDuration != nil {
		return *s.KeyDownDuration
	}
	return DefaultKeyDownDuration()
}

// EffectiveEchoHits returns the configured echo hit count or 1.
func (s Step) EffectiveEchoHits() int {
	if s.EchoHits <= 0 {
		return 1
	}
	return s.EchoHits
}

// EffectiveDualKeyOffsetMs returns the configured dual-key offset or
// the default.
func (s Step) EffectiveDualKeyOffsetMs() int {
	if s.DualKeyOffsetMs <= 0 {
		return DefaultDualKeyOffsetMs
	}
	return s.DualKeyOffsetMs
}

// EffectiveReleaseDelay returns the configured hold-through release
// delay or the default.
func (s Step) EffectiveReleaseDelay() DurationRange {
	if s.ReleaseDelay != nil {
		return *s.ReleaseDelay
	}
	return DefaultReleaseDelay()
}

// HasExplicitDelay reports whether the step carries an explicit
// (minDelay, maxDelay) pair instead of a buffer tier.
func (s Step) HasExplicitDelay() bool {
	return s.MinDelayMs != 0 || s.MaxDelayMs != 0
}

// Trigger identifies which input-key gesture invokes a binding.
type Trigger struct {
	Key     keys.Input   `yaml:"key" json:"key"`
	Gesture gesture.Type `yaml:"gesture" json:"gesture"`
}

// Binding is one macro: a trigger gesture and the sequence it runs.
type Binding struct {
	Name     string  `yaml:"name" json:"name"`
	Trigger  Trigger `yaml:"trigger" json:"trigger"`
	Sequence []Step  `yaml:"sequence" json:"sequence"`
	Enabled  bool    `yaml:"enabled" json:"enabled"`

	// Supremacy opts this macro out of traffic-controller serialization
	// entirely (spec.md §4.5): its steps never wait for or hold a
	// crossing token, regardless of which raw keys they touch.
	Supremacy bool `yaml:"supremacy,omitempty" json:"supremacy,omitempty"`
}

// Profile is a full macro profile: name, description, gesture timing
// configuration, and an ordered list of bindings.
type Profile struct {
	Name        string               `yaml:"name" json:"name"`
	Description string               `yaml:"description" json:"description"`
	Timing      gesture.TimingConfig `yaml:"timing" json:"timing"`
	Bindings    []Binding            `yaml:"bindings" json:"bindings"`
}

// FindBinding returns the first enabled binding matching the trigger,
// or false if none does (spec.md §4.7, binding dispatch).
func (p Profile) FindBinding(key keys.Input, g gesture.Type) (Binding, bool) {
	for _, b := range p.Bindings {
		if !b.Enabled {
			continue
		}
		if b.Trigger.Key == key && b.Trigger.Gesture == g {
			return b, true
		}
	}
	return Binding{}, false
}

// Compiled is the profile compiler's output: the disjoint conundrum and
// safe raw-output-key sets that the traffic controller consults.
type Compiled struct {
	ConundrumKeys map[keys.Output]struct{}
	SafeKeys      map[keys.Output]struct{}
}

// IsConundrum reports whether base needs traffic-controller
// serialization.
func (c Compiled) IsConundrum(base keys.Output) bool {
	_, ok := c.ConundrumKeys[base]
	return ok
}

// AltShiftPolicy selects between the two documented interpretations of
// the Alt+Shift edge case in conundrum classification (spec.md §9, open
// question 1).
type AltShiftPolicy int

const (
	// AltShiftDistinctForm treats Alt+Shift as a fourth, independent
	// form: a base seen only bare and only as Alt+Shift is conundrum.
	// This is the main-line source behavior.
	AltShiftDistinctForm AltShiftPolicy = iota
	// AltShiftExempt exempts Alt+Shift-only usage from conundrum
	// status: a base seen only bare and only as Alt+Shift is safe.
	// This is the patched-variant behavior.
	AltShiftExempt
)

// Compile runs the static profile compiler described in spec.md §4.4.
// It examines every step of every binding (enabled or not — the
// compiler classifies the whole authored profile, since a disabled
// binding can be re-enabled without recompiling) and partitions raw
// output bases into conundrum and safe sets.
func Compile(p Profile, policy AltShiftPolicy) Compiled {
	forms := make(map[keys.Output]map[keys.FormClass]struct{})

	record := func(q *keys.QualifiedKey) {
		if q == nil {
			return
		}
		set, ok := forms[q.Base]
		if !ok {
			set = make(map[keys.FormClass]struct{})
			forms[q.Base] = set
		}
		set[q.Form()] = struct{}{}
	}

	for _, b := range p.Bindings {
		for _, step := range b.Sequence {
			record(step.Key)
			record(step.DualKey)
		}
	}

	compiled := Compiled{
		ConundrumKeys: make(map[keys.Output]struct{}),
		SafeKeys:      make(map[keys.Output]struct{}),
	}

	for base, set := range forms {
		distinct := len(set)
		_, bare := set[keys.FormBare]
		_, altShift := set[keys.FormAltShift]

		if policy == AltShiftExempt && distinct == 2 && bare && altShift {
			compiled.SafeKeys[base] = struct{}{}
			continue
		}

		if distinct >= 2 {
			compiled.ConundrumKeys[base] = struct{}{}
			continue
		}
		if distinct == 1 && bare {
			compiled.SafeKeys[base] = struct{}{}
		}
		// A base appearing in exactly one non-bare form (e.g. only
		// ever Shift+X) is neither conundrum nor safe: no bare usage
		// exists to race against, so it needs no coordination, but it
		// also isn't the "safe to press concurrently while bare" case
		// the safe set exists for. It is simply omitted.
	}

	return compiled
}

// Sentinel validation errors, matching spec.md §7's validation error
// kind: reported, execution never starts, no side effects occur.
var (
	ErrSequenceInvalid       = fmt.Errorf("profile: sequence invalid")
	ErrTooManyBases          = fmt.Errorf("profile: sequence references more than 4 distinct base keys")
	ErrTooManySteps          = fmt.Errorf("profile: more than 6 steps reference the same base key")
	ErrStepInvalid           = fmt.Errorf("profile: step invalid")
	ErrBindingAlreadyRunning = fmt.Errorf("executor: binding already running")
)

// ValidateBinding checks the aggregate rules from spec.md §3 and every
// step's individual validity from spec.md §4.6. It never touches the
// OS: this is a pure, fail-fast check run before execution starts.
func ValidateBinding(b Binding) error {
	baseCounts := make(map[keys.Output]int)
	distinctBases := make(map[keys.Output]struct{})

	for i, step := range b.Sequence {
		if err := ValidateStep(step); err != nil {
			return fmt.Errorf("%w: step %d of %q: %v", ErrStepInvalid, i, b.Name, err)
		}
		if step.IsScroll() {
			continue
		}
		if step.Key != nil {
			distinctBases[step.Key.Base] = struct{}{}
			baseCounts[step.Key.Base]++
		}
		if step.DualKey != nil {
			distinctBases[step.DualKey.Base] = struct{}{}
			baseCounts[step.DualKey.Base]++
		}
	}

	if len(distinctBases) > 4 {
		return fmt.Errorf("%w: binding %q references %d bases", ErrTooManyBases, b.Name, len(distinctBases))
	}
	for base, n := range baseCounts {
		if n > 6 {
			return fmt.Errorf("%w: binding %q, base %q appears %d times", ErrTooManySteps, b.Name, base, n)
		}
	}
	return nil
}

// ValidateStep checks one step's individual validity rules from
// spec.md §4.6.
func ValidateStep(s Step) error {
	if !s.IsScroll() {
		if s.Key == nil {
			return fmt.Errorf("step has no key and is not a scroll step")
		}
		if !keys.IsValidOutput(s.Key.Base) {
			return fmt.Errorf("step key base %q is not a recognized output key", s.Key.Base)
		}
	}

	if s.HasExplicitDelay() {
		if s.MinDelayMs < 25 {
			return fmt.Errorf("explicit minDelayMs must be >= 25, got %d", s.MinDelayMs)
		}
		if s.MaxDelayMs-s.MinDelayMs < 4 {
			return fmt.Errorf("explicit maxDelayMs-minDelayMs must be >= 4, got %d", s.MaxDelayMs-s.MinDelayMs)
		}
	} else if s.BufferTier != BufferLow && s.BufferTier != BufferMedium && s.BufferTier != BufferHigh {
		return fmt.Errorf("step must set a valid bufferTier or an explicit delay range, got %q", s.BufferTier)
	}

	if s.KeyDownDuration != nil {
		if s.KeyDownDuration.Min <= 0 || s.KeyDownDuration.Min > s.KeyDownDuration.Max {
			return fmt.Errorf("keyDownDuration must satisfy 0 < min <= max, got %+v", *s.KeyDownDuration)
		}
	}

	echo := s.EffectiveEchoHits()
	if echo < 1 || echo > 6 {
		return fmt.Errorf("echoHits must be in [1,6], got %d", echo)
	}

	if s.DualKey != nil {
		if !keys.IsValidOutput(s.DualKey.Base) {
			return fmt.Errorf("dualKey base %q is not a recognized output key", s.DualKey.Base)
		}
		if s.Key != nil && s.DualKey.Base == s.Key.Base {
			return fmt.Errorf("dualKey base must differ from the primary key's base")
		}
		if s.DualKeyOffsetMs < 0 {
			return fmt.Errorf("dualKeyOffsetMs must be >= 1, got %d", s.DualKeyOffsetMs)
		}
	}

	return nil
}

// ValidateProfile validates every binding in a profile.
func ValidateProfile(p Profile) error {
	for _, b := range p.Bindings {
		if err := ValidateBinding(b); err != nil {
			return err
		}
	}
	return nil
}
