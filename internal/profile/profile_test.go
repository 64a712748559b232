package profile

import (
	"errors"
	"testing"

	"github.com/kidandcat-derived/macroengine/internal/gesture"
	"github.com/kidandcat-derived/macroengine/internal/keys"
)

func qk(base keys.Output, mods ...keys.Modifier) *keys.QualifiedKey {
	return &keys.QualifiedKey{Base: base, Modifiers: keys.NewModifierSet(mods...)}
}

func stepFor(k *keys.QualifiedKey) Step {
	return Step{Key: k, BufferTier: BufferLow, EchoHits: 1}
}

func TestCompileClassifiesConundrumAndSafe(t *testing.T) {
	p := Profile{
		Bindings: []Binding{
			{Name: "A", Enabled: true, Sequence: []Step{stepFor(qk(keys.OutputR))}},
			{Name: "B", Enabled: true, Sequence: []Step{stepFor(qk(keys.OutputR, keys.ModShift))}},
			{Name: "C", Enabled: true, Sequence: []Step{stepFor(qk(keys.OutputG))}},
		},
	}
	c := Compile(p, AltShiftDistinctForm)
	if !c.IsConundrum(keys.OutputR) {
		t.Fatalf("expected R to be conundrum (bare + shift)")
	}
	if _, ok := c.SafeKeys[keys.OutputG]; !ok {
		t.Fatalf("expected G to be safe (bare only)")
	}
}

func TestCompileIsIdempotent(t *testing.T) {
	p := Profile{
		Bindings: []Binding{
			{Name: "A", Enabled: true, Sequence: []Step{stepFor(qk(keys.OutputR)), stepFor(qk(keys.OutputR, keys.ModAlt))}},
		},
	}
	c1 := Compile(p, AltShiftDistinctForm)
	c2 := Compile(p, AltShiftDistinctForm)
	if len(c1.ConundrumKeys) != len(c2.ConundrumKeys) {
		t.Fatalf("recompiling the same profile changed conundrum set size")
	}
	for k := range c1.ConundrumKeys {
		if _, ok := c2.ConundrumKeys[k]; !ok {
			t.Fatalf("recompile dropped conundrum key %v", k)
		}
	}
}

func TestAltShiftDistinctFormPolicy(t *testing.T) {
	p := Profile{
		Bindings: []Binding{
			{Name: "A", Enabled: true, Sequence: []Step{
				stepFor(qk(keys.OutputT)),
				stepFor(qk(keys.OutputT, keys.ModAlt, keys.ModShift)),
			}},
		},
	}
	c := Compile(p, AltShiftDistinctForm)
	if !c.IsConundrum(keys.OutputT) {
		t.Fatalf("expected bare+AltShift to be conundrum under the distinct-form policy")
	}
}

func TestAltShiftExemptPolicy(t *testing.T) {
	p := Profile{
		Bindings: []Binding{
			{Name: "A", Enabled: true, Sequence: []Step{
				stepFor(qk(keys.OutputT)),
				stepFor(qk(keys.OutputT, keys.ModAlt, keys.ModShift)),
			}},
		},
	}
	c := Compile(p, AltShiftExempt)
	if c.IsConundrum(keys.OutputT) {
		t.Fatalf("expected bare+AltShift to be exempt from conundrum under the exempt policy")
	}
	if _, ok := c.SafeKeys[keys.OutputT]; !ok {
		t.Fatalf("expected bare+AltShift to be classified safe under the exempt policy")
	}
}

func TestValidateBindingRejectsTooManyBases(t *testing.T) {
	b := Binding{Name: "toomany", Enabled: true, Sequence: []Step{
		stepFor(qk(keys.OutputA)),
		stepFor(qk(keys.OutputB)),
		stepFor(qk(keys.OutputC)),
		stepFor(qk(keys.OutputD)),
		stepFor(qk(keys.OutputE)),
	}}
	if err := ValidateBinding(b); !errors.Is(err, ErrTooManyBases) {
		t.Fatalf("expected ErrTooManyBases, got %v", err)
	}
}

func TestValidateBindingRejectsTooManyStepsPerBase(t *testing.T) {
	steps := make([]Step, 0, 7)
	for i := 0; i < 7; i++ {
		steps = append(steps, stepFor(qk(keys.OutputA)))
	}
	b := Binding{Name: "repeat", Enabled: true, Sequence: steps}
	if err := ValidateBinding(b); !errors.Is(err, ErrTooManySteps) {
		t.Fatalf("expected ErrTooManySteps, got %v", err)
	}
}

func TestValidateStepRequiresBufferTierOrExplicitDelay(t *testing.T) {
	s := Step{Key: qk(keys.OutputA), EchoHits: 1}
	if err := ValidateStep(s); err == nil {
		t.Fatalf("expected error for missing buffer tier and explicit delay")
	}
}

func TestValidateStepExplicitDelayBounds(t *testing.T) {
	s := Step{Key: qk(keys.OutputA), MinDelayMs: 20, MaxDelayMs: 30}
	if err := ValidateStep(s); err == nil {
		t.Fatalf("expected error: minDelayMs below 25")
	}
	s2 := Step{Key: qk(keys.OutputA), MinDelayMs: 25, MaxDelayMs: 27}
	if err := ValidateStep(s2); err == nil {
		t.Fatalf("expected error: max-min below 4")
	}
	s3 := Step{Key: qk(keys.OutputA), MinDelayMs: 25, MaxDelayMs: 30}
	if err := ValidateStep(s3); err != nil {
		t.Fatalf("expected valid explicit delay, got %v", err)
	}
}

func TestValidateStepEchoHitsRange(t *testing.T) {
	s := Step{Key: qk(keys.OutputA), BufferTier: BufferLow, EchoHits: 7}
	if err := ValidateStep(s); err == nil {
		t.Fatalf("expected error for echoHits out of range")
	}
}

func TestValidateStepDualKeyMustDifferFromPrimary(t *testing.T) {
	s := Step{Key: qk(keys.OutputA), DualKey: qk(keys.OutputA), BufferTier: BufferLow}
	if err := ValidateStep(s); err == nil {
		t.Fatalf("expected error: dual key same as primary")
	}
}

func TestFindBindingSkipsDisabled(t *testing.T) {
	p := Profile{Bindings: []Binding{
		{Name: "off", Enabled: false, Trigger: Trigger{Key: keys.InputW, Gesture: gesture.Single}},
		{Name: "on", Enabled: true, Trigger: Trigger{Key: keys.InputW, Gesture: gesture.Single}},
	}}
	b, ok := p.FindBinding(keys.InputW, gesture.Single)
	if !ok || b.Name != "on" {
		t.Fatalf("expected to find enabled binding 'on', got %+v ok=%v", b, ok)
	}
}
