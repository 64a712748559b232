// Package keys defines the closed enumerations of input and output keys,
// the modifier set, and the qualified-key parsing shared by every other
// package in the engine.
package keys

import (
	"fmt"
	"sort"
	"strings"
)

// Input is the closed set of physical keys and pointer buttons the
// operator can use to invoke a gesture. Identity only; no attributes.
type Input string

// The input-key enumeration. Names match the canonical form delivered by
// the platform shim after canonicalization (see internal/platform).
const (
	InputUnknown Input = ""

	InputCapsLock     Input = "CAPSLOCK"
	InputW            Input = "W"
	InputA            Input = "A"
	InputS            Input = "S"
	InputD            Input = "D"
	InputQ            Input = "Q"
	InputE            Input = "E"
	InputZ            Input = "Z"
	InputX            Input = "X"
	InputR            Input = "R"
	InputF            Input = "F"
	InputG            Input = "G"
	InputC            Input = "C"
	InputV            Input = "V"
	InputTab          Input = "TAB"
	InputSpace        Input = "SPACE"
	InputLeftControl  Input = "LCONTROL"
	InputLeftShift    Input = "LSHIFT"
	InputLeftAlt      Input = "LALT"
	InputBacktick     Input = "BACKTICK"
	InputNumpad8      Input = "NUMPAD8"
	InputNumpad2      Input = "NUMPAD2"
	InputLeftClick    Input = "LEFT_CLICK"
	InputRightClick   Input = "RIGHT_CLICK"
	InputMiddleClick  Input = "MIDDLE_CLICK"
	InputMouse4       Input = "MOUSE4"
	InputMouse5       Input = "MOUSE5"
)

// AllInputs enumerates every recognized input key, used by the
// orchestrator to build one state machine per key at startup.
func AllInputs() []Input {
	return []Input{
		InputCapsLock, InputW, InputA, InputS, InputD, InputQ, InputE, InputZ, InputX,
		InputR, InputF, InputG, InputC, InputV, InputTab, InputSpace,
		InputLeftControl, InputLeftShift, InputLeftAlt, InputBacktick,
		InputNumpad8, InputNumpad2, InputLeftClick, InputRightClick, InputMiddleClick,
		InputMouse4, InputMouse5,
	}
}

// Output is the closed set of keys the engine may synthesize toward the
// operating system.
type Output string

const (
	OutputUnknown Output = ""

	OutputA Output = "A"
	OutputB Output = "B"
	OutputC Output = "C"
	OutputD Output = "D"
	OutputE Output = "E"
	OutputF Output = "F"
	OutputG Output = "G"
	OutputH Output = "H"
	OutputI Output = "I"
	OutputJ Output = "J"
	OutputK Output = "K"
	OutputL Output = "L"
	OutputM Output = "M"
	OutputN Output = "N"
	OutputO Output = "O"
	OutputP Output = "P"
	OutputQ Output = "Q"
	OutputR Output = "R"
	OutputS Output = "S"
	OutputT Output = "T"
	OutputU Output = "U"
	OutputV Output = "V"
	OutputW Output = "W"
	OutputX Output = "X"
	OutputY Output = "Y"
	OutputZ Output = "Z"

	Output0 Output = "0"
	Output1 Output = "1"
	Output2 Output = "2"
	Output3 Output = "3"
	Output4 Output = "4"
	Output5 Output = "5"
	Output6 Output = "6"
	Output7 Output = "7"
	Output8 Output = "8"
	Output9 Output = "9"

	OutputEnd       Output = "END"
	OutputHome      Output = "HOME"
	OutputSpace     Output = "SPACE"
	OutputTab       Output = "TAB"
	OutputEscape    Output = "ESCAPE"
	OutputEnter     Output = "ENTER"
)

// allOutputs backs ParseOutput's validity check.
var allOutputs = map[Output]struct{}{
	OutputA: {}, OutputB: {}, OutputC: {}, OutputD: {}, OutputE: {}, OutputF: {}, OutputG: {},
	OutputH: {}, OutputI: {}, OutputJ: {}, OutputK: {}, OutputL: {}, OutputM: {}, OutputN: {},
	OutputO: {}, OutputP: {}, OutputQ: {}, OutputR: {}, OutputS: {}, OutputT: {}, OutputU: {},
	OutputV: {}, OutputW: {}, OutputX: {}, OutputY: {}, OutputZ: {},
	Output0: {}, Output1: {}, Output2: {}, Output3: {}, Output4: {}, Output5: {},
	Output6: {}, Output7: {}, Output8: {}, Output9: {},
	OutputEnd: {}, OutputHome: {}, OutputSpace: {}, OutputTab: {}, OutputEscape: {}, OutputEnter: {},
}

// IsValidOutput reports whether base is a recognized output key.
func IsValidOutput(base Output) bool {
	_, ok := allOutputs[base]
	return ok
}

// Modifier is one of the three modifier keys a qualified key may carry.
type Modifier string

const (
	ModShift   Modifier = "SHIFT"
	ModAlt     Modifier = "ALT"
	ModControl Modifier = "CONTROL"
)

// ModifierSet is an unordered set of modifiers. Canonical equality and
// string rendering both ignore insertion order.
type ModifierSet map[Modifier]struct{}

// NewModifierSet builds a set from the given modifiers, de-duplicating.
func NewModifierSet(mods ...Modifier) ModifierSet {
	s := make(ModifierSet, len(mods))
	for _, m := range mods {
		s[m] = struct{}{}
	}
	return s
}

// Has reports whether m is a member of the set.
func (s ModifierSet) Has(m Modifier) bool {
	_, ok := s[m]
	return ok
}

// Equal compares two sets ignoring order.
func (s ModifierSet) Equal(other ModifierSet) bool {
	if len(s) != len(other) {
		return false
	}
	for m := range s {
		if !other.Has(m) {
			return false
		}
	}
	return true
}

// sorted returns the modifiers in a stable canonical order: Control,
// Alt, Shift (matches the order most profiles are authored in).
func (s ModifierSet) sorted() []Modifier {
	order := []Modifier{ModControl, ModAlt, ModShift}
	out := make([]Modifier, 0, len(s))
	for _, m := range order {
		if s.Has(m) {
			out = append(out, m)
		}
	}
	return out
}

// QualifiedKey is an output key together with its modifier set. External
// representation is uppercase "MOD+MOD+...+BASE"; canonical equality
// ignores the order modifiers were declared in.
type QualifiedKey struct {
	Base      Output
	Modifiers ModifierSet
}

// Raw discards modifiers, returning the bare output key.
func (q QualifiedKey) Raw() Output {
	return q.Base
}

// String renders the canonical "MOD+MOD+BASE" form.
func (q QualifiedKey) String() string {
	parts := make([]string, 0, len(q.Modifiers)+1)
	for _, m := range q.Modifiers.sorted() {
		parts = append(parts, string(m))
	}
	parts = append(parts, string(q.Base))
	return strings.Join(parts, "+")
}

// Equal reports canonical equality: same base, same modifier set
// regardless of declaration order.
func (q QualifiedKey) Equal(other QualifiedKey) bool {
	return q.Base == other.Base && q.Modifiers.Equal(other.Modifiers)
}

// MarshalText renders q in its external "MOD+MOD+BASE" form.
func (q QualifiedKey) MarshalText() ([]byte, error) { return []byte(q.String()), nil }

// UnmarshalText parses the external "MOD+MOD+BASE" form.
func (q *QualifiedKey) UnmarshalText(text []byte) error {
	parsed, err := ParseQualified(string(text))
	if err != nil {
		return err
	}
	*q = parsed
	return nil
}

// FormClass classifies a qualified key's modifier combination into one
// of the four form-sets the profile compiler reasons about.
type FormClass int

const (
	FormBare FormClass = iota
	FormShiftOnly
	FormAltOnly
	FormAltShift
	FormOther
)

// Form classifies q's modifier combination.
func (q QualifiedKey) Form() FormClass {
	hasShift := q.Modifiers.Has(ModShift)
	hasAlt := q.Modifiers.Has(ModAlt)
	hasControl := q.Modifiers.Has(ModControl)
	switch {
	case !hasShift && !hasAlt && !hasControl:
		return FormBare
	case hasShift && !hasAlt && !hasControl:
		return FormShiftOnly
	case hasAlt && !hasShift && !hasControl:
		return FormAltOnly
	case hasAlt && hasShift && !hasControl:
		return FormAltShift
	default:
		return FormOther
	}
}

// ParseQualified parses an external "MOD+MOD+...+BASE" string into a
// QualifiedKey. Modifier names and the base are matched case-insensitively;
// the returned key always carries an uppercase base and canonical
// modifier names. This is the one runtime parse path allowed by the
// design: everywhere else carries the already-parsed record (see
// UnmarshalText, which calls this once per key when a profile is loaded).
func ParseQualified(s string) (QualifiedKey, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return QualifiedKey{}, fmt.Errorf("keys: empty qualified key")
	}
	parts := strings.Split(s, "+")
	base := Output(strings.ToUpper(strings.TrimSpace(parts[len(parts)-1])))
	if !IsValidOutput(base) {
		return QualifiedKey{}, fmt.Errorf("keys: unknown output key %q", base)
	}
	mods := NewModifierSet()
	for _, raw := range parts[:len(parts)-1] {
		m, err := ParseModifier(raw)
		if err != nil {
			return QualifiedKey{}, err
		}
		mods[m] = struct{}{}
	}
	return QualifiedKey{Base: base, Modifiers: mods}, nil
}

// ParseModifier parses a single modifier token case-insensitively.
func ParseModifier(s string) (Modifier, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "SHIFT":
		return ModShift, nil
	case "ALT":
		return ModAlt, nil
	case "CONTROL", "CTRL":
		return ModControl, nil
	default:
		return "", fmt.Errorf("keys: unknown modifier %q", s)
	}
}

// CanonicalizeInputName normalizes a raw platform key name into the
// engine's input-key representation, e.g. "NUMPAD 8" -> "NUMPAD8" and
// "MOUSE MIDDLE" -> "MIDDLE_CLICK". Unrecognized names map to
// InputUnknown, and the platform shim's contract requires callers to
// drop those events silently (spec §7, "unknown input key").
func CanonicalizeInputName(raw string) Input {
	normalized := strings.ToUpper(strings.TrimSpace(raw))
	normalized = strings.ReplaceAll(normalized, " ", "")
	switch normalized {
	case "MOUSEMIDDLE", "MIDDLECLICK":
		return InputMiddleClick
	case "MOUSELEFT", "LEFTCLICK":
		return InputLeftClick
	case "MOUSERIGHT", "RIGHTCLICK":
		return InputRightClick
	case "MOUSE4":
		return InputMouse4
	case "MOUSE5":
		return InputMouse5
	}
	for _, k := range AllInputs() {
		if string(k) == normalized {
			return k
		}
	}
	return InputUnknown
}

// SortOutputs returns bases sorted for deterministic diagnostics output.
func SortOutputs(bases map[Output]struct{}) []Output {
	out := make([]Output, 0, len(bases))
	for b := range bases {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
