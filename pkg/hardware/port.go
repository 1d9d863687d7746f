// Package hardware defines the side-effect-only boundary between the
// control core and the physical roaster: fan PWM, SSR GPIO, the
// thermocouple amplifier, and the thermistor ADC. Every register/pin
// access lives behind the Port interface so the rest of the core can be
// driven and tested without real I/O, in the same spirit as the teacher's
// per-peripheral packages (button, fan) but consolidated into one
// interface per the design notes.
package hardware

import "errors"

// Celsius is a temperature reading in degrees Celsius.
type Celsius float64

// FaultMask holds the low three bits of a thermocouple amplifier read:
// bit 0 open-circuit, bit 1 short-to-GND, bit 2 short-to-VCC. Zero means
// a clean read.
type FaultMask uint8

const (
	FaultOpenCircuit FaultMask = 1 << 0
	FaultShortToGND  FaultMask = 1 << 1
	FaultShortToVCC  FaultMask = 1 << 2
)

// ErrNoSample is returned by a poll-style read when the underlying
// acquisition (SPI/ADC conversion) has not completed yet. The loop never
// blocks waiting for it — it just uses the last good value.
var ErrNoSample = errors.New("hardware: no new sample")

// ThermocoupleReading is one acquisition from the SPI amplifier.
type ThermocoupleReading struct {
	Temp   Celsius
	Fault  FaultMask
	Global bool // bit 16: amplifier-wide fault bit
}

// Port is the complete hardware boundary. Production code talks to it
// through Periph (periph.io-backed GPIO/SPI/I2C); tests talk to it
// through Mock.
type Port interface {
	// Fan
	FanEnable()
	FanDisable()
	FanSetSpeed(pct uint8) // clamped 0..100; recorded even while disabled
	FanSpeed() uint8
	FanEnabled() bool

	// Heater / SSR
	SSRSet(on bool)

	// Sensors
	ReadThermocouple() (ThermocoupleReading, error)
	ReadThermistor() (Celsius, error)

	// Time
	NowMs() uint64
}
