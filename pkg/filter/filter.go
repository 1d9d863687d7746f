// Package filter implements the chamber-temperature low-pass filter and
// the windowed rate-of-rise estimator (spec §4.1, §4.4). Both are plain
// stateful values rather than goroutines — the teacher's TempCache
// pattern (cache a value plus a timestamp, recompute only when stale)
// is the same shape minus the cache-expiry clock check, since here the
// loop itself controls the sample cadence.
package filter

import "github.com/Michael-Swartz/McRoaster/pkg/hardware"

// LowPass is an exponential moving average over chamber temperature
// readings, seeded by the first valid sample.
type LowPass struct {
	alpha       float64
	initialized bool
	value       hardware.Celsius
}

// NewLowPass returns a filter with the given smoothing coefficient
// (LPF_ALPHA in spec §6, y ← α·x + (1−α)·y).
func NewLowPass(alpha float64) *LowPass {
	return &LowPass{alpha: alpha}
}

// Push feeds a new raw reading. If ok is false (an invalid/transient
// read), the filter holds its last value unchanged.
func (f *LowPass) Push(raw hardware.Celsius, ok bool) hardware.Celsius {
	if !ok {
		return f.value
	}
	if !f.initialized {
		f.value = raw
		f.initialized = true
		return f.value
	}
	f.value = hardware.Celsius(f.alpha*float64(raw) + (1-f.alpha)*float64(f.value))
	return f.value
}

// Value returns the current filtered value without advancing it.
func (f *LowPass) Value() hardware.Celsius { return f.value }

// Initialized reports whether at least one valid sample has been seen.
func (f *LowPass) Initialized() bool { return f.initialized }

// Reset clears the filter back to its unseeded state.
func (f *LowPass) Reset() {
	f.initialized = false
	f.value = 0
}

// RateOfRise is a windowed first-derivative estimator: it latches a
// (temperature, timestamp) pair and only recomputes °C/min once a full
// window has elapsed, returning the last computed value in between.
type RateOfRise struct {
	windowMs uint64

	haveLatch    bool
	latchTemp    hardware.Celsius
	latchAtMs    uint64
	valueCPerMin float64
}

// NewRateOfRise returns an estimator with the given window (ROR_SAMPLE_INTERVAL_MS).
func NewRateOfRise(windowMs uint64) *RateOfRise {
	return &RateOfRise{windowMs: windowMs}
}

// Sample feeds the current filtered temperature and wall time. It returns
// 0 until the first window closes, per spec §4.4.
func (r *RateOfRise) Sample(temp hardware.Celsius, nowMs uint64) float64 {
	if !r.haveLatch {
		r.haveLatch = true
		r.latchTemp = temp
		r.latchAtMs = nowMs
		return r.valueCPerMin
	}

	elapsed := nowMs - r.latchAtMs
	if elapsed < r.windowMs {
		return r.valueCPerMin
	}

	deltaC := float64(temp - r.latchTemp)
	minutes := float64(elapsed) / 60000.0
	if minutes > 0 {
		r.valueCPerMin = deltaC / minutes
	}

	r.latchTemp = temp
	r.latchAtMs = nowMs
	return r.valueCPerMin
}

// Value returns the last computed rate without sampling.
func (r *RateOfRise) Value() float64 { return r.valueCPerMin }

// Reset clears the estimator back to its unlatched state (entering a new
// roast, per the ROASTING entry action).
func (r *RateOfRise) Reset() {
	r.haveLatch = false
	r.latchTemp = 0
	r.latchAtMs = 0
	r.valueCPerMin = 0
}
