package timing

import "testing"

func TestDrawStaysInBounds(t *testing.T) {
	o := New(nil, nil)
	for _, r := range []Range{RangeBufferLow, RangeBufferMed, RangeBufferHigh, RangeKeyDown, RangeEchoHit, RangeHoldRelease, RangeDualOffset, RangeTrafficWait} {
		b := DefaultBounds()[r]
		for i := 0; i < 500; i++ {
			v := o.Draw(r)
			if v < b.Min || v > b.Max {
				t.Fatalf("range %s: draw %d outside [%d,%d]", r, v, b.Min, b.Max)
			}
		}
	}
}

func TestDrawRangeRespectsExplicitBounds(t *testing.T) {
	o := New(nil, nil)
	for i := 0; i < 500; i++ {
		v := o.DrawRange(25, 40)
		if v < 25 || v > 40 {
			t.Fatalf("draw %d outside [25,40]", v)
		}
	}
}

func TestDrawRangeSwapsInvertedBounds(t *testing.T) {
	o := New(nil, nil)
	v := o.DrawRange(40, 25)
	if v < 25 || v > 40 {
		t.Fatalf("draw %d outside [25,40]", v)
	}
}

func TestSweetSpotBiasesTowardConfiguredValue(t *testing.T) {
	sweet := map[Range]SweetSpots{
		RangeTrafficWait: {20: 0.9},
	}
	o := New(nil, sweet)
	hits := 0
	const n = 1000
	for i := 0; i < n; i++ {
		if o.Draw(RangeTrafficWait) == 20 {
			hits++
		}
	}
	freq := float64(hits) / float64(n)
	// Generous tolerance: sweet-spot bias plus noise/anti-clustering
	// should still land the configured value far above a uniform draw
	// (uniform over [10,30] would be ~0.048).
	if freq < 0.3 {
		t.Fatalf("sweet spot frequency too low: %.3f", freq)
	}
}

func TestHistoryIsIndependentPerRange(t *testing.T) {
	o := New(nil, nil)
	for i := 0; i < 60; i++ {
		o.Draw(RangeBufferLow)
	}
	if len(o.histories[RangeBufferLow].samples) != historySize {
		t.Fatalf("expected history capped at %d, got %d", historySize, len(o.histories[RangeBufferLow].samples))
	}
	if o.histories[RangeBufferMed] != nil {
		t.Fatalf("unrelated range history should not be initialized yet")
	}
}

func TestDegenerateBoundsReturnMin(t *testing.T) {
	o := New(map[Range]Bounds{RangeTrafficWait: {Min: 15, Max: 15}}, nil)
	for i := 0; i < 10; i++ {
		if v := o.Draw(RangeTrafficWait); v != 15 {
			t.Fatalf("expected 15, got %d", v)
		}
	}
}
