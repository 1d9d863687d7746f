// Package heater implements the time-proportioning SSR driver (spec §4.3):
// a fixed window is divided into an "on" portion sized by the PID output
// and an "off" remainder, the same slow-PWM shape the teacher uses for the
// fan's software PWM in pkg/hardware, just windowed in wall-clock time
// instead of a duty counter.
package heater

import "github.com/Michael-Swartz/McRoaster/pkg/hardware"

// Driver time-proportions a 0..255 power command onto a binary SSR output
// over a fixed window.
type Driver struct {
	port        hardware.Port
	windowMs    uint64
	windowStart uint64
	power       float64 // last commanded power, 0..255
	armed       bool
}

// New returns a driver bound to port, proportioning over a window of
// windowMs milliseconds (PID_WINDOW_SIZE_MS in spec §6).
func New(port hardware.Port, windowMs uint64) *Driver {
	return &Driver{port: port, windowMs: windowMs}
}

// SetPower updates the commanded power for the current and future windows.
// It does not itself drive the SSR; call Tick for that.
func (d *Driver) SetPower(power float64) {
	if power < 0 {
		power = 0
	}
	if power > 255 {
		power = 255
	}
	d.power = power
}

// Power returns the last commanded power.
func (d *Driver) Power() float64 { return d.power }

// Arm starts (or restarts) the time-proportioning window at now. Entering
// PREHEAT or MANUAL calls this so the first window starts aligned to
// phase entry rather than to some stale prior window; entering ROASTING
// does not, so the window armed in PREHEAT keeps running.
func (d *Driver) Arm(nowMs uint64) {
	d.armed = true
	d.windowStart = nowMs
}

// Disarm forces the SSR off and stops proportioning, per the safety
// invariant that the heater is never live outside PREHEAT/ROASTING/MANUAL.
func (d *Driver) Disarm() {
	d.armed = false
	d.power = 0
	d.port.SSRSet(false)
}

// Armed reports whether the driver is currently proportioning.
func (d *Driver) Armed() bool { return d.armed }

// Tick re-evaluates the SSR output for the current instant: elapsed =
// (now - windowStart) mod window; onTime = (power/255) * window; SSR is
// driven HIGH while elapsed < onTime. The window rolls over automatically
// as now advances past windowStart + window.
func (d *Driver) Tick(nowMs uint64) {
	if !d.armed {
		d.port.SSRSet(false)
		return
	}
	if d.windowMs == 0 {
		d.port.SSRSet(false)
		return
	}

	elapsed := (nowMs - d.windowStart) % d.windowMs
	onTime := uint64((d.power / 255.0) * float64(d.windowMs))
	d.port.SSRSet(elapsed < onTime)
}
