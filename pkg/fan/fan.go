// Package fan wraps hardware.Port's fan methods with the target/actuator
// split required by spec §4 "fan_set_speed": a disabled fan remembers the
// requested duty without spinning up, and only starts driving the real
// (or mock) pin once enabled.
package fan

import "github.com/Michael-Swartz/McRoaster/pkg/hardware"

// State is the fan's enable flag and commanded duty cycle, mirroring the
// FanState record from spec §4.
type State struct {
	port    hardware.Port
	enabled bool
	target  uint8 // 0..100, recorded even while disabled
}

// New returns a fan wrapper bound to port, starting disabled at 0%.
func New(port hardware.Port) *State {
	return &State{port: port}
}

// Enable turns the fan on at its last recorded target speed.
func (s *State) Enable() {
	s.enabled = true
	s.port.FanEnable()
	s.port.FanSetSpeed(s.target)
}

// Disable turns the fan off but keeps the recorded target for next Enable.
func (s *State) Disable() {
	s.enabled = false
	s.port.FanDisable()
}

// SetSpeed clamps pct to 0..100, records it as the target, and — if the
// fan is currently enabled — pushes it to the actuator immediately.
// Setting the speed while disabled records the new target but leaves the
// actuator off, per spec §4.
func (s *State) SetSpeed(pct uint8) {
	if pct > 100 {
		pct = 100
	}
	s.target = pct
	if s.enabled {
		s.port.FanSetSpeed(pct)
	}
}

// Speed returns the recorded target duty cycle, whether or not the fan is
// currently enabled.
func (s *State) Speed() uint8 { return s.target }

// Enabled reports whether the fan is currently driving air.
func (s *State) Enabled() bool { return s.enabled }
