package hardware

// Mock is an in-memory Port for property tests and the state-machine
// scenario tests in pkg/statemachine: it lets a test script sensor values
// and faults and inspect actuator commands without real I/O, per the
// design notes' "hardware as a trait/interface" guidance.
type Mock struct {
	fanEnabled bool
	fanSpeed   uint8
	ssrOn      bool

	clockMs uint64

	nextChamberTemp   Celsius
	nextChamberFault  FaultMask
	nextChamberErr    error
	nextThermistor    Celsius
	nextThermistorErr error
}

// NewMock returns a mock hardware port with the clock at 0 and both
// sensors reading a benign ambient temperature.
func NewMock() *Mock {
	return &Mock{
		nextChamberTemp: 25,
		nextThermistor:  25,
	}
}

func (m *Mock) FanEnable()  { m.fanEnabled = true }
func (m *Mock) FanDisable() { m.fanEnabled = false }

func (m *Mock) FanSetSpeed(pct uint8) {
	if pct > 100 {
		pct = 100
	}
	m.fanSpeed = pct
}

func (m *Mock) FanSpeed() uint8  { return m.fanSpeed }
func (m *Mock) FanEnabled() bool { return m.fanEnabled }

func (m *Mock) SSRSet(on bool) { m.ssrOn = on }
func (m *Mock) SSROn() bool    { return m.ssrOn }

func (m *Mock) ReadThermocouple() (ThermocoupleReading, error) {
	if m.nextChamberErr != nil {
		return ThermocoupleReading{}, m.nextChamberErr
	}
	return ThermocoupleReading{
		Temp:   m.nextChamberTemp,
		Fault:  m.nextChamberFault,
		Global: m.nextChamberFault != 0,
	}, nil
}

func (m *Mock) ReadThermistor() (Celsius, error) {
	if m.nextThermistorErr != nil {
		return 0, m.nextThermistorErr
	}
	return m.nextThermistor, nil
}

func (m *Mock) NowMs() uint64 { return m.clockMs }

// Test-script helpers.

// SetChamberTemp scripts the next (and subsequent, until changed)
// thermocouple reading.
func (m *Mock) SetChamberTemp(c Celsius) { m.nextChamberTemp = c }

// SetChamberFault scripts the fault bits returned on the next (and
// subsequent, until changed) thermocouple read.
func (m *Mock) SetChamberFault(f FaultMask) { m.nextChamberFault = f }

// SetChamberErr scripts an SPI error returned on the next (and subsequent,
// until changed) thermocouple read.
func (m *Mock) SetChamberErr(err error) { m.nextChamberErr = err }

// SetThermistorTemp scripts the heater-body thermistor reading.
func (m *Mock) SetThermistorTemp(c Celsius) { m.nextThermistor = c }

// Advance moves the mock clock forward by ms milliseconds.
func (m *Mock) Advance(ms uint64) { m.clockMs += ms }

// SetClock jumps the mock clock to an absolute value.
func (m *Mock) SetClock(ms uint64) { m.clockMs = ms }
