// Package safety implements the debounced fault monitor from spec §4.5: a
// small set of hard invariant checks (I1–I8) that run every tick ahead of
// the state machine and, once latched, force the controller to ERROR.
// The debouncer shape mirrors the teacher's atomic-state bookkeeping —
// a plain counter plus a "latched" flag, not a goroutine or timer.
package safety

import "github.com/Michael-Swartz/McRoaster/pkg/hardware"

// FaultCode identifies which invariant tripped. Values are the wire fault
// codes from spec §6 and are part of the external contract.
type FaultCode string

const (
	FaultNone            FaultCode = ""
	FaultOverTempChamber FaultCode = "OVER_TEMP_CHAMBER"
	FaultFanInterlock    FaultCode = "FAN_INTERLOCK"
	FaultThermocouple    FaultCode = "THERMOCOUPLE_FAULT"
	FaultPreheatTimeout  FaultCode = "PREHEAT_TIMEOUT"
)

// Debouncer requires N consecutive same-condition reads to latch and M
// consecutive clean reads to clear, per spec §4.5.
type Debouncer struct {
	latchThreshold uint
	clearThreshold uint

	latched    bool
	badStreak  uint
	goodStreak uint
}

// NewDebouncer returns a debouncer with the given latch/clear thresholds
// (FAULT_DEBOUNCE_COUNT and FAULT_CLEAR_COUNT in spec §6).
func NewDebouncer(latchThreshold, clearThreshold uint) *Debouncer {
	return &Debouncer{latchThreshold: latchThreshold, clearThreshold: clearThreshold}
}

// Observe feeds one tick's reading of the monitored condition (true = bad)
// and returns whether the debouncer is latched after processing it.
func (d *Debouncer) Observe(bad bool) bool {
	if bad {
		d.badStreak++
		d.goodStreak = 0
		if d.badStreak >= d.latchThreshold {
			d.latched = true
		}
	} else {
		d.goodStreak++
		d.badStreak = 0
		if d.goodStreak >= d.clearThreshold {
			d.latched = false
		}
	}
	return d.latched
}

// Latched reports the debouncer's current state without advancing it.
func (d *Debouncer) Latched() bool { return d.latched }

// Reset clears all streak counters and the latch, e.g. on CLEAR_FAULT.
func (d *Debouncer) Reset() {
	d.latched = false
	d.badStreak = 0
	d.goodStreak = 0
}

// Monitor runs the tick-by-tick invariant checks and owns the
// thermocouple-fault debouncer (the only check in §4.5 that needs
// history; over-temp and the interlock are evaluated fresh every tick).
type Monitor struct {
	maxChamberTemp  float64
	warnChamberTemp float64
	minFanWhenHeating uint8

	tcDebounce *Debouncer
}

// Config names the thresholds the monitor evaluates against (spec §6).
type Config struct {
	MaxChamberTemp    float64
	WarnChamberTemp   float64
	MinFanWhenHeating uint8
	FaultDebounceCount uint
	FaultClearCount    uint
}

// New returns a monitor configured per cfg.
func New(cfg Config) *Monitor {
	return &Monitor{
		maxChamberTemp:    cfg.MaxChamberTemp,
		warnChamberTemp:   cfg.WarnChamberTemp,
		minFanWhenHeating: cfg.MinFanWhenHeating,
		tcDebounce:        NewDebouncer(cfg.FaultDebounceCount, cfg.FaultClearCount),
	}
}

// CheckResult reports the outcome of one tick's evaluation: at most one
// fatal fault (checks run fast-first and stop at the first fatal hit) plus
// whether a non-fatal warning should be logged.
type CheckResult struct {
	Fault   FaultCode
	Warning string
}

// CheckOverTemp evaluates the chamber over-temperature invariant. It never
// latches anything itself (callers own latching via the returned code);
// it is stateless because the raw filtered reading is definitive.
func (m *Monitor) CheckOverTemp(filteredChamberTemp float64) CheckResult {
	if filteredChamberTemp >= m.maxChamberTemp {
		return CheckResult{Fault: FaultOverTempChamber}
	}
	if filteredChamberTemp >= m.warnChamberTemp {
		return CheckResult{Warning: "chamber temperature in warning band"}
	}
	return CheckResult{}
}

// CheckFanInterlock evaluates the fan-heater interlock invariant (I2):
// heater enabled implies fan enabled and at or above the minimum duty,
// in every phase including MANUAL.
func (m *Monitor) CheckFanInterlock(heaterEnabled, fanEnabled bool, fanSpeed uint8) CheckResult {
	if heaterEnabled && (!fanEnabled || fanSpeed < m.minFanWhenHeating) {
		return CheckResult{Fault: FaultFanInterlock}
	}
	return CheckResult{}
}

// CheckThermocouple evaluates and debounces the thermocouple fault bits.
// Short-to-GND is a non-latching warning. Open-circuit and short-to-VCC
// are critical, but only latch while the heater is enabled; with the
// heater off a critical read is downgraded to a logged warning and never
// reaches the debouncer, per spec §4.5.
func (m *Monitor) CheckThermocouple(fault hardware.FaultMask, heaterEnabled bool) CheckResult {
	critical := fault&(hardware.FaultOpenCircuit|hardware.FaultShortToVCC) != 0
	warnOnly := fault&hardware.FaultShortToGND != 0 && !critical

	if !heaterEnabled {
		m.tcDebounce.Observe(false)
		if critical {
			return CheckResult{Warning: "thermocouple fault ignored while heater is off"}
		}
		if warnOnly {
			return CheckResult{Warning: "thermocouple short-to-ground (noisy read)"}
		}
		return CheckResult{}
	}

	latched := m.tcDebounce.Observe(critical)
	if latched {
		return CheckResult{Fault: FaultThermocouple}
	}
	if warnOnly {
		return CheckResult{Warning: "thermocouple short-to-ground (noisy read)"}
	}
	return CheckResult{}
}

// ResetThermocoupleDebounce clears the debounce history, e.g. on
// CLEAR_FAULT or leaving a heating phase.
func (m *Monitor) ResetThermocoupleDebounce() {
	m.tcDebounce.Reset()
}
