// Package timing produces bounded, human-looking randomized delays for
// the engine's suspension points: inter-step buffers, key-down and
// dual-key hold durations, hold-through release delays, and
// traffic-controller backoff. The dual-key offset is not drawn here; the
// executor sleeps the step's configured (or default) offset as is.
package timing

import (
	"fmt"
	"math"
	"math/rand"
	"sync"
)

// Range names one of the timing oracle's canonical delay ranges. Every
// caller that needs a "human" delay draws from a Range rather than
// rolling its own uniform random number, so all such delays share the
// sweet-spot bias and anti-clustering behavior.
type Range string

const (
	RangeBufferLow   Range = "buffer_low"
	RangeBufferMed   Range = "buffer_medium"
	RangeBufferHigh  Range = "buffer_high"
	RangeKeyDown     Range = "keydown"
	RangeEchoHit     Range = "echo_hit"
	RangeHoldRelease Range = "hold_release"
	RangeDualOffset  Range = "dual_offset"
	RangeTrafficWait Range = "traffic_wait"
)

// Bounds is the inclusive [Min, Max] a range must never escape.
type Bounds struct {
	Min int
	Max int
}

// SweetSpots maps a candidate value to its configured target
// probability. Probabilities for one range must sum to at most 1; the
// remaining mass is spread evenly across every value the configuration
// does not mention.
type SweetSpots map[int]float64

// DefaultBounds returns the canonical range defaults from the engine
// specification's timing oracle section.
func DefaultBounds() map[Range]Bounds {
	return map[Range]Bounds{
		RangeBufferLow:   {Min: 129, Max: 163},
		RangeBufferMed:   {Min: 229, Max: 263},
		RangeBufferHigh:  {Min: 513, Max: 667},
		RangeKeyDown:     {Min: 23, Max: 38},
		RangeEchoHit:     {Min: 15, Max: 25},
		RangeHoldRelease: {Min: 7, Max: 18},
		RangeDualOffset:  {Min: 4, Max: 10},
		RangeTrafficWait: {Min: 10, Max: 30},
	}
}

// historySize is how many recent samples per range feed the
// anti-clustering correction (spec: "sliding history window of the
// last <=50 samples").
const historySize = 50

// history is a fixed-capacity ring buffer of the most recent samples
// drawn for one range.
type history struct {
	samples []int
	next    int
}

func (h *history) record(v int) {
	if len(h.samples) < historySize {
		h.samples = append(h.samples, v)
		return
	}
	h.samples[h.next] = v
	h.next = (h.next + 1) % historySize
}

// frequency returns how many of the recorded samples equal v.
func (h *history) frequency(v int) int {
	n := 0
	for _, s := range h.samples {
		if s == v {
			n++
		}
	}
	return n
}

// Oracle is the timing generator described in spec.md §4.3. It is safe
// for concurrent use: every sequence executor flow and every traffic
// controller wait draws from the same shared oracle instance.
type Oracle struct {
	mu         sync.Mutex
	rng        *rand.Rand
	bounds     map[Range]Bounds
	sweetSpots map[Range]SweetSpots
	histories  map[Range]*history
	dynHist    map[string]*history
}

// New builds an Oracle from the given bounds and optional per-range
// sweet-spot configuration. A nil or partial bounds map is filled in
// with DefaultBounds for any range not explicitly overridden.
func New(bounds map[Range]Bounds, sweetSpots map[Range]SweetSpots) *Oracle {
	merged := DefaultBounds()
	for r, b := range bounds {
		merged[r] = b
	}
	if sweetSpots == nil {
		sweetSpots = map[Range]SweetSpots{}
	}
	return &Oracle{
		rng:        rand.New(rand.NewSource(rand.Int63())),
		bounds:     merged,
		sweetSpots: sweetSpots,
		histories:  make(map[Range]*history),
		dynHist:    make(map[string]*history),
	}
}

// Draw produces an integer within the configured [min, max] of the
// named range, biased toward any configured sweet spots.
func (o *Oracle) Draw(r Range) int {
	b, ok := o.bounds[r]
	if !ok {
		b = DefaultBounds()[r]
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	h := o.histories[r]
	if h == nil {
		h = &history{}
		o.histories[r] = h
	}
	v := o.sample(b, o.sweetSpots[r], h)
	h.record(v)
	return v
}

// DrawRange produces an integer within an explicit inclusive [min, max]
// with no sweet-spot bias, used for a sequence step's explicit
// (minDelay, maxDelay) override. Anti-clustering still applies, keyed
// on the concrete bounds so unrelated explicit ranges don't share
// history.
func (o *Oracle) DrawRange(min, max int) int {
	if max < min {
		min, max = max, min
	}
	key := fmt.Sprintf("%d:%d", min, max)
	o.mu.Lock()
	defer o.mu.Unlock()
	h := o.dynHist[key]
	if h == nil {
		h = &history{}
		o.dynHist[key] = h
	}
	v := o.sample(Bounds{Min: min, Max: max}, nil, h)
	h.record(v)
	return v
}

// sample draws one value in [b.Min, b.Max]. Callers must hold o.mu.
func (o *Oracle) sample(b Bounds, sweet SweetSpots, h *history) int {
	if b.Max <= b.Min {
		return b.Min
	}
	n := b.Max - b.Min + 1
	weights := make([]float64, n)

	var configuredMass float64
	for v, p := range sweet {
		if v < b.Min || v > b.Max {
			continue
		}
		weights[v-b.Min] = p
		configuredMass += p
	}
	remaining := 1 - configuredMass
	if remaining < 0 {
		remaining = 0
	}
	unconfigured := 0
	for i, w := range weights {
		if w == 0 {
			_ = i
			unconfigured++
		}
	}
	if unconfigured > 0 {
		base := remaining / float64(unconfigured)
		for i, w := range weights {
			if w == 0 {
				weights[i] = base
			}
		}
	}

	// Anti-clustering: values that showed up often in recent history
	// lose a small fraction of their weight, redistributed uniformly.
	if len(h.samples) > 0 {
		var penalized float64
		for i := range weights {
			v := b.Min + i
			freq := h.frequency(v)
			if freq == 0 {
				continue
			}
			penalty := weights[i] * 0.15 * math.Min(float64(freq)/float64(len(h.samples)), 1)
			weights[i] -= penalty
			penalized += penalty
		}
		if penalized > 0 {
			bonus := penalized / float64(n)
			for i := range weights {
				weights[i] += bonus
			}
		}
	}

	var total float64
	for _, w := range weights {
		total += w
	}
	if total <= 0 {
		return b.Min + o.rng.Intn(n)
	}
	pick := o.rng.Float64() * total
	chosen := b.Min
	var acc float64
	for i, w := range weights {
		acc += w
		if pick <= acc {
			chosen = b.Min + i
			break
		}
	}

	// A configured sweet-spot value is returned as picked, so its target
	// probability is not spread onto neighbouring values by the noise.
	if _, ok := sweet[chosen]; ok {
		return chosen
	}

	// Bounded multiplicative noise, then clamp back into range.
	noise := 0.9 + o.rng.Float64()*0.2
	noisy := int(math.Round(float64(chosen) * noise))
	if noisy < b.Min {
		noisy = b.Min
	}
	if noisy > b.Max {
		noisy = b.Max
	}
	return noisy
}
