package hardware

import (
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"periph.io/x/conn/v3/driver/driverreg"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

// thermistorBeta holds the fixed Beta-equation parameters for the NTC
// thermistor on the heater body (§4.1).
const (
	thermistorBeta   = 3950.0
	thermistorR0     = 100000.0 // ohm at T0
	thermistorT0     = 298.15   // kelvin
	thermistorSeries = 100000.0 // ohm, series resistor in the divider
	thermistorVref   = 5.0
	thermistorADCMax = 1023.0 // 10-bit ADC
	extremeHighTemp  = 999.0  // sentinel for a degenerate reading
)

// softwarePWM drives a GPIO pin as a slow software PWM, patterned on the
// teacher's softwarePWMFan: a ticking goroutine compares an atomically
// published duty cycle against a resolution counter and only toggles the
// pin on a state change.
type softwarePWM struct {
	pin      gpio.PinIO
	duty     atomic.Uint32 // 0..pwmResolution
	stopChan chan struct{}
}

const pwmResolution = 100

func newSoftwarePWM(pin gpio.PinIO, period time.Duration) *softwarePWM {
	s := &softwarePWM{pin: pin, stopChan: make(chan struct{})}
	pin.Out(gpio.Low)
	go s.run(period)
	return s
}

func (s *softwarePWM) run(period time.Duration) {
	ticker := time.NewTicker(period / pwmResolution)
	defer ticker.Stop()

	state := gpio.Low
	counter := 0
	for {
		select {
		case <-ticker.C:
			duty := int(s.duty.Load())
			counter = (counter + 1) % pwmResolution
			want := gpio.Low
			if counter < duty {
				want = gpio.High
			}
			if want != state {
				s.pin.Out(want)
				state = want
			}
		case <-s.stopChan:
			s.pin.Out(gpio.Low)
			return
		}
	}
}

func (s *softwarePWM) setDuty(pct uint8) {
	if pct > 100 {
		pct = 100
	}
	s.duty.Store(uint32(pct))
}

func (s *softwarePWM) stop() {
	close(s.stopChan)
}

// Periph is the production Port backed by periph.io: the fan is driven by
// a software-PWM GPIO pin, the SSR by a plain GPIO output, the
// thermocouple by a SPI amplifier (MAX31855-style 32-bit frame), and the
// thermistor by a single-channel ADC reached over I2C.
type Periph struct {
	fanPin     gpio.PinIO
	fanPWM     *softwarePWM
	ssrPin     gpio.PinIO
	tcConn     spi.Conn
	adcDev     *i2c.Dev
	adcChannel byte

	fanEnabled bool
	fanSpeed   uint8
}

// PeriphConfig names the pins and buses used by the production hardware
// layer. Names follow periph.io's gpioreg/spireg/i2creg conventions (e.g.
// "GPIO17", "SPI0.0", "I2C1").
type PeriphConfig struct {
	FanPin            string
	SSRPin            string
	ThermocoupleSPI   string
	ThermistorI2C     string
	ThermistorAddr    uint16
	ThermistorChannel byte
	PWMPeriod         time.Duration
}

// NewPeriph initializes the periph.io driver registry and opens every pin
// and bus the controller needs, failing fast if any of them are missing —
// there is no degraded mode for a missing actuator.
func NewPeriph(cfg PeriphConfig) (*Periph, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("hardware: periph host init: %w", err)
	}
	if _, err := driverreg.Init(); err != nil {
		return nil, fmt.Errorf("hardware: periph driver init: %w", err)
	}

	fanPin := gpioreg.ByName(cfg.FanPin)
	if fanPin == nil {
		return nil, fmt.Errorf("hardware: fan pin %s not found", cfg.FanPin)
	}

	ssrPin := gpioreg.ByName(cfg.SSRPin)
	if ssrPin == nil {
		return nil, fmt.Errorf("hardware: SSR pin %s not found", cfg.SSRPin)
	}
	if err := ssrPin.Out(gpio.Low); err != nil {
		return nil, fmt.Errorf("hardware: SSR pin init: %w", err)
	}

	spiPort, err := spireg.Open(cfg.ThermocoupleSPI)
	if err != nil {
		return nil, fmt.Errorf("hardware: open SPI %s: %w", cfg.ThermocoupleSPI, err)
	}
	tcConn, err := spiPort.Connect(4*1000*1000, spi.Mode1, 8)
	if err != nil {
		return nil, fmt.Errorf("hardware: SPI connect: %w", err)
	}

	i2cBus, err := i2creg.Open(cfg.ThermistorI2C)
	if err != nil {
		return nil, fmt.Errorf("hardware: open I2C %s: %w", cfg.ThermistorI2C, err)
	}
	adcDev := &i2c.Dev{Addr: cfg.ThermistorAddr, Bus: i2cBus}

	period := cfg.PWMPeriod
	if period <= 0 {
		period = 25 * time.Millisecond
	}

	return &Periph{
		fanPin:     fanPin,
		fanPWM:     newSoftwarePWM(fanPin, period),
		ssrPin:     ssrPin,
		tcConn:     tcConn,
		adcDev:     adcDev,
		adcChannel: cfg.ThermistorChannel,
	}, nil
}

func (p *Periph) FanEnable() {
	p.fanEnabled = true
	p.fanPWM.setDuty(p.fanSpeed)
}

func (p *Periph) FanDisable() {
	p.fanEnabled = false
	p.fanPWM.setDuty(0)
}

func (p *Periph) FanSetSpeed(pct uint8) {
	if pct > 100 {
		pct = 100
	}
	p.fanSpeed = pct
	if p.fanEnabled {
		p.fanPWM.setDuty(pct)
	}
}

func (p *Periph) FanSpeed() uint8   { return p.fanSpeed }
func (p *Periph) FanEnabled() bool  { return p.fanEnabled }

func (p *Periph) SSRSet(on bool) {
	if on {
		p.ssrPin.Out(gpio.High)
	} else {
		p.ssrPin.Out(gpio.Low)
	}
}

// ReadThermocouple decodes one 32-bit frame from the SPI amplifier: bit 16
// is the global fault, bits 0..2 are {open, short-GND, short-VCC}, bits
// 31..18 are a signed 14-bit value at 0.25 °C/LSB.
func (p *Periph) ReadThermocouple() (ThermocoupleReading, error) {
	tx := make([]byte, 4)
	rx := make([]byte, 4)
	if err := p.tcConn.Tx(tx, rx); err != nil {
		return ThermocoupleReading{}, fmt.Errorf("hardware: SPI read: %w", err)
	}

	frame := uint32(rx[0])<<24 | uint32(rx[1])<<16 | uint32(rx[2])<<8 | uint32(rx[3])

	global := frame&(1<<16) != 0
	fault := FaultMask(frame & 0x07)

	raw := int32(frame) >> 18 // sign-extending arithmetic shift
	tempC := Celsius(float64(raw) * 0.25)

	return ThermocoupleReading{Temp: tempC, Fault: fault, Global: global}, nil
}

// ReadThermistor reads the 10-bit ADC channel, converts through the fixed
// voltage divider, then applies the Beta equation.
func (p *Periph) ReadThermistor() (Celsius, error) {
	tx := []byte{0x40 | p.adcChannel}
	rx := make([]byte, 2)
	if err := p.adcDev.Tx(tx, rx); err != nil {
		return 0, fmt.Errorf("hardware: I2C ADC read: %w", err)
	}

	raw := int((uint16(rx[0])<<8 | uint16(rx[1])) & 0x3FF)
	if raw <= 0 {
		return Celsius(extremeHighTemp), nil
	}

	voltage := float64(raw) / thermistorADCMax * thermistorVref
	if voltage <= 0 || voltage >= thermistorVref {
		return Celsius(extremeHighTemp), nil
	}

	resistance := thermistorSeries * voltage / (thermistorVref - voltage)
	if resistance <= 0 {
		return Celsius(extremeHighTemp), nil
	}

	invT := 1/thermistorT0 + (1/thermistorBeta)*math.Log(resistance/thermistorR0)
	kelvin := 1 / invT
	return Celsius(kelvin - 273.15), nil
}

func (p *Periph) NowMs() uint64 {
	return uint64(time.Now().UnixMilli())
}

// Close stops the software PWM goroutine and drives every actuator to its
// safe state.
func (p *Periph) Close() {
	p.SSRSet(false)
	p.fanPWM.stop()
}
