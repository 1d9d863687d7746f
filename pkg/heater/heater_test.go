package heater

import (
	"testing"

	"github.com/Michael-Swartz/McRoaster/pkg/hardware"
	"github.com/stretchr/testify/assert"
)

func TestDisarmedHoldsSSROff(t *testing.T) {
	mock := hardware.NewMock()
	d := New(mock, 2000)
	d.SetPower(255)
	d.Tick(0)
	assert.False(t, mock.SSROn())
}

func TestFullPowerStaysOnAcrossWindow(t *testing.T) {
	mock := hardware.NewMock()
	d := New(mock, 2000)
	d.Arm(0)
	d.SetPower(255)

	for ms := uint64(0); ms < 2000; ms += 100 {
		d.Tick(ms)
		assert.True(t, mock.SSROn(), "ms=%d", ms)
	}
}

func TestZeroPowerStaysOff(t *testing.T) {
	mock := hardware.NewMock()
	d := New(mock, 2000)
	d.Arm(0)
	d.SetPower(0)

	for ms := uint64(0); ms < 2000; ms += 100 {
		d.Tick(ms)
		assert.False(t, mock.SSROn(), "ms=%d", ms)
	}
}

func TestHalfPowerSplitsWindow(t *testing.T) {
	mock := hardware.NewMock()
	d := New(mock, 2000)
	d.Arm(0)
	d.SetPower(127.5)

	d.Tick(0)
	assert.True(t, mock.SSROn())

	d.Tick(900)
	assert.True(t, mock.SSROn())

	d.Tick(1100)
	assert.False(t, mock.SSROn())

	d.Tick(1999)
	assert.False(t, mock.SSROn())
}

func TestWindowRollsOver(t *testing.T) {
	mock := hardware.NewMock()
	d := New(mock, 2000)
	d.Arm(0)
	d.SetPower(127.5)

	d.Tick(2000) // start of second window, elapsed=0
	assert.True(t, mock.SSROn())

	d.Tick(2900) // elapsed=900 < onTime~1000
	assert.True(t, mock.SSROn())

	d.Tick(3100) // elapsed=1100 >= onTime
	assert.False(t, mock.SSROn())
}

func TestDisarmForcesOffImmediately(t *testing.T) {
	mock := hardware.NewMock()
	d := New(mock, 2000)
	d.Arm(0)
	d.SetPower(255)
	d.Tick(0)
	assert.True(t, mock.SSROn())

	d.Disarm()
	assert.False(t, mock.SSROn())
	assert.Equal(t, 0.0, d.Power())
}

func TestArmRestartsWindowAtEntry(t *testing.T) {
	mock := hardware.NewMock()
	d := New(mock, 2000)
	d.SetPower(255)
	d.Arm(5000)

	d.Tick(5000)
	assert.True(t, mock.SSROn())
}
