package safety

import (
	"testing"

	"github.com/Michael-Swartz/McRoaster/pkg/hardware"
	"github.com/stretchr/testify/assert"
)

func testMonitor() *Monitor {
	return New(Config{
		MaxChamberTemp:     260,
		WarnChamberTemp:    250,
		MinFanWhenHeating:  40,
		FaultDebounceCount: 10,
		FaultClearCount:    3,
	})
}

func TestOverTempLatchesAtThreshold(t *testing.T) {
	m := testMonitor()
	assert.Equal(t, FaultNone, m.CheckOverTemp(249).Fault)
	assert.NotEmpty(t, m.CheckOverTemp(250).Warning)
	assert.Equal(t, FaultOverTempChamber, m.CheckOverTemp(260).Fault)
	assert.Equal(t, FaultOverTempChamber, m.CheckOverTemp(300).Fault)
}

func TestFanInterlockTriggersOnDisabledFan(t *testing.T) {
	m := testMonitor()
	assert.Equal(t, FaultNone, m.CheckFanInterlock(true, true, 40).Fault)
	assert.Equal(t, FaultFanInterlock, m.CheckFanInterlock(true, false, 0).Fault)
	assert.Equal(t, FaultFanInterlock, m.CheckFanInterlock(true, true, 39).Fault)
	assert.Equal(t, FaultNone, m.CheckFanInterlock(false, false, 0).Fault)
}

func TestThermocoupleShortToGNDNeverLatches(t *testing.T) {
	m := testMonitor()
	for i := 0; i < 50; i++ {
		r := m.CheckThermocouple(hardware.FaultShortToGND, true)
		assert.Equal(t, FaultNone, r.Fault)
	}
}

func TestThermocoupleCriticalLatchesAfterDebounceCount(t *testing.T) {
	m := testMonitor()
	var latchedAt int = -1
	for i := 0; i < 10; i++ {
		r := m.CheckThermocouple(hardware.FaultOpenCircuit, true)
		if r.Fault == FaultThermocouple {
			latchedAt = i
			break
		}
	}
	assert.Equal(t, 9, latchedAt) // 10th consecutive read (index 9) latches
}

func TestThermocoupleCriticalIgnoredWhileHeaterOff(t *testing.T) {
	m := testMonitor()
	for i := 0; i < 50; i++ {
		r := m.CheckThermocouple(hardware.FaultShortToVCC, false)
		assert.Equal(t, FaultNone, r.Fault)
		assert.NotEmpty(t, r.Warning)
	}
}

func TestThermocoupleClearsAfterCleanReads(t *testing.T) {
	m := testMonitor()
	for i := 0; i < 10; i++ {
		m.CheckThermocouple(hardware.FaultOpenCircuit, true)
	}
	assert.True(t, m.tcDebounce.Latched())

	for i := 0; i < 2; i++ {
		r := m.CheckThermocouple(hardware.FaultMask(0), true)
		assert.Equal(t, FaultThermocouple, r.Fault) // still latched, not yet M clean reads
	}
	r := m.CheckThermocouple(hardware.FaultMask(0), true)
	assert.Equal(t, FaultNone, r.Fault) // 3rd consecutive clean read clears it
}

func TestDebouncerResetsStreaksOnInterruption(t *testing.T) {
	d := NewDebouncer(10, 3)
	for i := 0; i < 9; i++ {
		d.Observe(true)
	}
	assert.False(t, d.Latched())
	d.Observe(false) // interrupts the bad streak
	for i := 0; i < 9; i++ {
		d.Observe(true)
	}
	assert.False(t, d.Latched()) // only 9 consecutive, never reached 10
	d.Observe(true)
	assert.True(t, d.Latched())
}
