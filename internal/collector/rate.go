package collector

import (
	"math"
	"sync"
	"time"
)

// maxUint32 marks the wraparound boundary for 32-bit kernel counters such as
// the /proc/net/dev fields on older kernels.
const maxUint32 = float64(math.MaxUint32)

// RateEngine turns monotonic counters into per-second rates across
// collection cycles. It keeps the previous observation per key under a
// mutex; the first cycle produces no rates.
type RateEngine struct {
	mu       sync.Mutex
	prev     map[string]float64
	prevTime time.Time
}

func NewRateEngine() *RateEngine {
	return &RateEngine{prev: map[string]float64{}}
}

// Deltas is the outcome of one Observe call. Rates resolve to false on the
// first cycle, on zero elapsed time, and for keys absent from either cycle.
type Deltas struct {
	deltas  map[string]float64
	elapsed float64
	ready   bool
}

// Observe records the current counter values and returns the deltas against
// the previous cycle. A counter that moved backwards is either a 32-bit
// wraparound (previous value still fit in 32 bits) or a genuine reset; a
// reset re-baselines the counter by treating the current value as the delta.
func (e *RateEngine) Observe(now time.Time, cur map[string]float64) Deltas {
	e.mu.Lock()
	defer e.mu.Unlock()

	d := Deltas{deltas: map[string]float64{}}
	if !e.prevTime.IsZero() {
		d.elapsed = now.Sub(e.prevTime).Seconds()
		d.ready = d.elapsed > 0
		for key, c := range cur {
			p, ok := e.prev[key]
			if !ok {
				continue
			}
			switch {
			case c >= p:
				d.deltas[key] = c - p
			case p <= maxUint32:
				d.deltas[key] = c + (maxUint32 + 1) - p
			default:
				d.deltas[key] = c
			}
		}
	}

	e.prev = make(map[string]float64, len(cur))
	for key, c := range cur {
		e.prev[key] = c
	}
	e.prevTime = now
	return d
}

// Delta returns the raw counter increase for a key.
func (d Deltas) Delta(key string) (float64, bool) {
	if !d.ready {
		return 0, false
	}
	v, ok := d.deltas[key]
	return v, ok
}

// Rate returns the per-second rate for a key.
func (d Deltas) Rate(key string) (float64, bool) {
	v, ok := d.Delta(key)
	if !ok {
		return 0, false
	}
	return v / d.elapsed, true
}

// Ready reports whether this cycle has a previous one to diff against.
func (d Deltas) Ready() bool { return d.ready }

// Elapsed returns the seconds since the previous observation.
func (d Deltas) Elapsed() float64 { return d.elapsed }

func clampPercent(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
