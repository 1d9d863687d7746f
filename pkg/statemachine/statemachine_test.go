package statemachine

import (
	"testing"

	"github.com/Michael-Swartz/McRoaster/pkg/config"
	"github.com/Michael-Swartz/McRoaster/pkg/hardware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	faults []ErrorInfo
	logs   []string
	events []string
}

func (r *recordingSink) OnLog(level, source, message string) {
	r.logs = append(r.logs, level+":"+message)
}
func (r *recordingSink) OnRoastEvent(event string, roastTimeMs uint64, chamberTemp *float64) {
	r.events = append(r.events, event)
}
func (r *recordingSink) OnFault(info ErrorInfo) { r.faults = append(r.faults, info) }

func newTestController() (*Controller, *hardware.Mock, *recordingSink) {
	mock := hardware.NewMock()
	sink := &recordingSink{}
	c := New(config.Defaults(), mock, sink)
	return c, mock, sink
}

func cleanTick(c *Controller, mock *hardware.Mock, nowMs uint64) {
	r, _ := mock.ReadThermocouple()
	c.Tick(nowMs, r, nil, 25)
}

func TestOffToFanOnlyToOff(t *testing.T) {
	c, mock, _ := newTestController()
	require.NoError(t, c.Dispatch(EventStartFanOnly, 50, 0))
	assert.Equal(t, PhaseFanOnly, c.Phase())
	assert.True(t, mock.FanEnabled())
	assert.Equal(t, uint8(50), mock.FanSpeed())

	require.NoError(t, c.Dispatch(EventStop, 0, 0))
	assert.Equal(t, PhaseOff, c.Phase())
	assert.False(t, mock.FanEnabled())
}

func TestStartFanOnlyAppliesCommandValue(t *testing.T) {
	c, mock, _ := newTestController()

	// 35 deliberately differs from config.Defaults()'s FanOnlyDefault of
	// 50 so a dropped command value can't pass by coincidence.
	require.NoError(t, c.Dispatch(EventStartFanOnly, 35, 0))
	assert.Equal(t, uint8(35), c.fanOnlyPct)
	assert.Equal(t, uint8(35), mock.FanSpeed())
}

func TestIgnoredEventsAreDropped(t *testing.T) {
	c, _, _ := newTestController()
	err := c.Dispatch(EventLoadBeans, 0, 0) // OFF has no LOAD_BEANS transition
	assert.ErrorIs(t, err, ErrTransitionNotPermitted)
	assert.Equal(t, PhaseOff, c.Phase())
}

func TestStartPreheatAndLoadBeansApplyCommandValue(t *testing.T) {
	c, _, _ := newTestController()

	// 150/210 deliberately differ from config.Defaults()'s 180/200 so a
	// dropped command value can't pass by coincidence.
	require.NoError(t, c.Dispatch(EventStartPreheat, 150, 0))
	assert.Equal(t, 150.0, c.preheatTargetC)
	assert.Equal(t, 150.0, c.pidCtl.Setpoint())

	require.NoError(t, c.Dispatch(EventLoadBeans, 210, 0))
	assert.Equal(t, 210.0, c.setpointC)
	assert.Equal(t, 210.0, c.pidCtl.Setpoint())
}

func TestHappyPathRoast(t *testing.T) {
	c, mock, sink := newTestController()

	require.NoError(t, c.Dispatch(EventStartPreheat, 180, 0))
	assert.Equal(t, PhasePreheat, c.Phase())
	assert.Equal(t, 180.0, c.preheatTargetC)
	assert.Equal(t, uint8(50), mock.FanSpeed())
	assert.True(t, c.heaterD.Armed())

	mock.SetChamberTemp(25)
	for ms := uint64(0); ms <= 60000; ms += 1000 {
		mock.SetClock(ms)
		mock.SetChamberTemp(hardware.Celsius(25 + float64(ms)/60000.0*155))
		cleanTick(c, mock, ms)
	}

	require.NoError(t, c.Dispatch(EventLoadBeans, 200, 60000))
	assert.Equal(t, PhaseRoasting, c.Phase())
	assert.Equal(t, 200.0, c.setpointC)
	assert.Equal(t, uint8(90), mock.FanSpeed())

	require.NoError(t, c.Dispatch(EventFirstCrack, 0, 180000))
	assert.True(t, c.firstCrackMarked)
	// roast_epoch_ms is latched at PREHEAT entry (t=0) and spans PREHEAT->COOLING.
	assert.Equal(t, uint64(180000), c.firstCrackOffsetMs)
	require.Len(t, sink.events, 1)

	// Second markFirstCrack is a no-op (P5).
	require.NoError(t, c.Dispatch(EventFirstCrack, 0, 190000))
	assert.Equal(t, uint64(180000), c.firstCrackOffsetMs)
	assert.Len(t, sink.events, 1)

	require.NoError(t, c.Dispatch(EventEndRoast, 0, 360000))
	assert.Equal(t, PhaseCooling, c.Phase())
	assert.False(t, c.heaterD.Armed())
	assert.Equal(t, uint8(100), mock.FanSpeed())

	mock.SetChamberTemp(30)
	for ms := uint64(360100); ms <= 400000 && c.Phase() == PhaseCooling; ms += 100 {
		mock.SetClock(ms)
		cleanTick(c, mock, ms)
	}
	assert.Equal(t, PhaseOff, c.Phase())
}

func TestOverTemperatureLatchesError(t *testing.T) {
	c, mock, sink := newTestController()
	require.NoError(t, c.Dispatch(EventStartPreheat, 180, 0))
	require.NoError(t, c.Dispatch(EventLoadBeans, 200, 0))
	require.Equal(t, PhaseRoasting, c.Phase())

	mock.SetChamberTemp(261)
	// The first valid sample seeds the filter, so the first tick already
	// reads 261; the loop bound is only a safety net.
	for ms := uint64(1000); ms <= 30000 && c.Phase() != PhaseError; ms += 1000 {
		mock.SetClock(ms)
		cleanTick(c, mock, ms)
	}

	assert.Equal(t, PhaseError, c.Phase())
	require.Len(t, sink.faults, 1)
	assert.Equal(t, "OVER_TEMP_CHAMBER", string(sink.faults[0].Code))
	assert.False(t, mock.FanEnabled())
	assert.False(t, mock.SSROn())

	require.NoError(t, c.Dispatch(EventClearFault, 0, 31000))
	assert.Equal(t, PhaseOff, c.Phase())
}

func TestFanInterlockInManual(t *testing.T) {
	c, mock, sink := newTestController()
	require.NoError(t, c.Dispatch(EventEnterManual, 0, 0))
	require.NoError(t, c.Dispatch(EventSetHeaterPower, 60, 0))

	// Force the fan to a speed below the interlock threshold.
	c.fan.SetSpeed(20)
	cleanTick(c, mock, 1000)

	assert.Equal(t, PhaseError, c.Phase())
	require.Len(t, sink.faults, 1)
	assert.Equal(t, "FAN_INTERLOCK", string(sink.faults[0].Code))
}

func TestThermocoupleDebounceDoesNotLatchOnOneBadRead(t *testing.T) {
	c, mock, sink := newTestController()
	require.NoError(t, c.Dispatch(EventStartPreheat, 180, 0))
	mock.SetChamberFault(hardware.FaultOpenCircuit)
	cleanTick(c, mock, 1000)
	assert.Equal(t, PhasePreheat, c.Phase())
	assert.Empty(t, sink.faults)
}

func TestThermocoupleDebounceLatchesAfterNConsecutiveFaults(t *testing.T) {
	c, mock, _ := newTestController()
	require.NoError(t, c.Dispatch(EventStartPreheat, 180, 0))
	mock.SetChamberFault(hardware.FaultOpenCircuit)

	for ms := uint64(1000); ms <= 10000 && c.Phase() != PhaseError; ms += 1000 {
		cleanTick(c, mock, ms)
	}
	assert.Equal(t, PhaseError, c.Phase())
}

func TestPreheatTimeoutLatchesFault(t *testing.T) {
	c, mock, sink := newTestController()
	require.NoError(t, c.Dispatch(EventStartPreheat, 180, 0))
	mock.SetChamberTemp(100) // never reaches target, never leaves PREHEAT on its own

	mock.SetClock(900001)
	cleanTick(c, mock, 900001)

	assert.Equal(t, PhaseError, c.Phase())
	require.Len(t, sink.faults, 1)
	assert.Equal(t, "PREHEAT_TIMEOUT", string(sink.faults[0].Code))
}

func TestDisconnectPromotesRoastingToCooling(t *testing.T) {
	c, mock, _ := newTestController()
	require.NoError(t, c.Dispatch(EventStartPreheat, 180, 0))
	require.NoError(t, c.Dispatch(EventLoadBeans, 200, 0))
	require.NoError(t, c.Dispatch(EventDisconnected, 0, 1000))
	assert.Equal(t, PhaseCooling, c.Phase())
	assert.False(t, mock.SSROn())
}

func TestDisconnectDropsManualToOff(t *testing.T) {
	c, mock, _ := newTestController()
	require.NoError(t, c.Dispatch(EventEnterManual, 0, 0))
	require.NoError(t, c.Dispatch(EventDisconnected, 0, 1000))
	assert.Equal(t, PhaseOff, c.Phase())
	assert.False(t, mock.FanEnabled())
}

func TestStopIsIdempotent(t *testing.T) {
	c, _, _ := newTestController()
	require.NoError(t, c.Dispatch(EventStartFanOnly, 0, 0))
	require.NoError(t, c.Dispatch(EventStop, 0, 0))
	assert.Equal(t, PhaseOff, c.Phase())

	// Further stops are simply not permitted from OFF and are dropped.
	err := c.Dispatch(EventStop, 0, 0)
	assert.ErrorIs(t, err, ErrTransitionNotPermitted)
	assert.Equal(t, PhaseOff, c.Phase())
}

func TestSetFanSpeedFlooredDuringRoast(t *testing.T) {
	c, mock, _ := newTestController()
	require.NoError(t, c.Dispatch(EventStartPreheat, 180, 0))
	require.NoError(t, c.Dispatch(EventLoadBeans, 200, 0))
	require.NoError(t, c.Dispatch(EventSetFanSpeed, 5, 0))
	assert.Equal(t, uint8(30), mock.FanSpeed())
}

func TestErrorPhaseKeepsActuatorsOff(t *testing.T) {
	c, mock, _ := newTestController()
	require.NoError(t, c.Dispatch(EventStartFanOnly, 0, 0))
	c.Fault(ErrorInfo{Code: "OVER_TEMP_CHAMBER", Message: "test", Fatal: true}, 0)
	assert.Equal(t, PhaseError, c.Phase())
	assert.False(t, mock.FanEnabled())
	assert.False(t, mock.SSROn())
}
