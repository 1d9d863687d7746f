// Package statemachine implements the controller's seven-phase finite
// state machine and the phase-entry/phase-exit actions and per-tick
// control laws from spec §4.6. The phase-changing subset of events is
// driven through github.com/qmuntal/stateless, configured the way
// u-bmc's pkg/state wraps it (Configure/Permit/OnEntry, a transition
// fired by name) but collapsed to a single synchronous Fire call — this
// core has no goroutine pool and no context-timeout escape hatch to wrap
// around it, so there is nothing for FireCtx's cancellation to protect
// against.
package statemachine

import (
	"context"
	"fmt"

	"github.com/qmuntal/stateless"

	"github.com/Michael-Swartz/McRoaster/pkg/config"
	"github.com/Michael-Swartz/McRoaster/pkg/fan"
	"github.com/Michael-Swartz/McRoaster/pkg/filter"
	"github.com/Michael-Swartz/McRoaster/pkg/hardware"
	"github.com/Michael-Swartz/McRoaster/pkg/heater"
	"github.com/Michael-Swartz/McRoaster/pkg/pid"
	"github.com/Michael-Swartz/McRoaster/pkg/safety"
)

// ErrorInfo mirrors the wire `error` object: a latched fault's code,
// human-readable message, and fatality (spec §6; all current faults are
// fatal, but the field is carried for forward compatibility).
type ErrorInfo struct {
	Code    safety.FaultCode
	Message string
	Fatal   bool
}

// Sink receives the side-channel events a Controller produces that are
// not part of its own state: log lines, roast milestones, and newly
// latched faults. Transport wires a Sink to turn these into `log`,
// `roastEvent`, and `error` wire messages. A nil Sink is valid; events are
// simply dropped.
type Sink interface {
	OnLog(level, source, message string)
	OnRoastEvent(event string, roastTimeMs uint64, chamberTemp *float64)
	OnFault(info ErrorInfo)
}

// Snapshot is the read-only projection of controller state the transport
// layer serializes into `roasterState`, per spec §6. It is a plain value:
// taking one never mutates the controller.
type Snapshot struct {
	Phase            Phase
	ChamberTemp      *float64 // nil if the thermocouple is faulted beyond recovery
	HeaterTemp       float64
	Setpoint         float64
	FanSpeed         uint8
	HeaterPower      uint8 // 0..100 display percent
	HeaterEnabled    bool
	PIDEnabled       bool
	RoastTimeMs      uint64
	FirstCrackMarked bool
	FirstCrackTimeMs *uint64
	RoR              float64
	Error            *ErrorInfo
}

// Controller is the single owned aggregate the top-level loop drives: the
// phase FSM plus every peer component (spec §4.6's "From C-style global
// modules to a single owned core"). Nothing here is a singleton; the loop
// holds the only Controller value and mutates it exclusively through
// Dispatch and Tick.
type Controller struct {
	cfg  *config.Config
	port hardware.Port
	sink Sink

	sm    *stateless.StateMachine
	phase Phase

	setpointC          float64
	preheatTargetC     float64
	roastEpochMs       uint64
	preheatEpochMs     uint64
	firstCrackMarked   bool
	firstCrackOffsetMs uint64
	fanOnlyPct         uint8
	manualFanPct       uint8
	manualHeaterPct    uint8
	errInfo            *ErrorInfo

	fan     *fan.State
	heaterD *heater.Driver
	pidCtl  *pid.Controller
	filter  *filter.LowPass
	ror     *filter.RateOfRise
	monitor *safety.Monitor

	lastHeaterTemp   float64
	lastChamberFault hardware.FaultMask
	haveFilterSample bool

	lastTickMs     uint64
	haveLastTickMs bool
}

// New builds a Controller in phase OFF with every peer component
// initialized from cfg, wired to port.
func New(cfg *config.Config, port hardware.Port, sink Sink) *Controller {
	c := &Controller{
		cfg:            cfg,
		port:           port,
		sink:           sink,
		phase:          PhaseOff,
		setpointC:      cfg.Temp.RoastDefault,
		preheatTargetC: cfg.Temp.PreheatDefault,
		fanOnlyPct:     cfg.Fan.FanOnlyDefault,
		manualFanPct:   cfg.Fan.ManualDefault,
		fan:            fan.New(port),
		heaterD:        heater.New(port, cfg.Timing.PIDWindowMs),
		pidCtl: pid.New(
			pid.Gains(cfg.PID.Aggressive),
			pid.Gains(cfg.PID.Conservative),
			cfg.PID.Threshold, cfg.PID.OutputMin, cfg.PID.OutputMax,
		),
		filter: filter.NewLowPass(cfg.Filter.LPFAlpha),
		ror:    filter.NewRateOfRise(cfg.Timing.RorSampleMs),
		monitor: safety.New(safety.Config{
			MaxChamberTemp:     cfg.Safety.MaxChamberTemp,
			WarnChamberTemp:    cfg.Safety.WarnChamberTemp,
			MinFanWhenHeating:  cfg.Safety.MinFanWhenHeating,
			FaultDebounceCount: uint(cfg.Safety.FaultDebounceCount),
			FaultClearCount:    uint(cfg.Safety.FaultClearCount),
		}),
	}
	c.sm = c.buildMachine()
	return c
}

func (c *Controller) buildMachine() *stateless.StateMachine {
	sm := stateless.NewStateMachine(PhaseOff)

	sm.Configure(PhaseOff).
		Permit(EventStartFanOnly, PhaseFanOnly).
		Permit(EventStartPreheat, PhasePreheat).
		Permit(EventEnterManual, PhaseManual).
		Permit(EventFault, PhaseError).
		OnEntry(c.enterOff)

	sm.Configure(PhaseFanOnly).
		Permit(EventStop, PhaseOff).
		Permit(EventExitFanOnly, PhaseOff).
		Permit(EventStartPreheat, PhasePreheat).
		Permit(EventFault, PhaseError).
		Permit(EventDisconnected, PhaseOff).
		OnEntry(c.enterFanOnly)

	sm.Configure(PhasePreheat).
		Permit(EventStop, PhaseOff).
		Permit(EventLoadBeans, PhaseRoasting).
		Permit(EventFault, PhaseError).
		Permit(EventDisconnected, PhaseCooling).
		OnEntry(c.enterPreheat)

	sm.Configure(PhaseRoasting).
		Permit(EventStop, PhaseOff).
		Permit(EventEndRoast, PhaseCooling).
		Permit(EventFault, PhaseError).
		Permit(EventDisconnected, PhaseCooling).
		OnEntry(c.enterRoasting)

	sm.Configure(PhaseCooling).
		Permit(EventStop, PhaseOff).
		Permit(EventCoolComplete, PhaseOff).
		Permit(EventFault, PhaseError).
		OnEntry(c.enterCooling)

	sm.Configure(PhaseManual).
		Permit(EventStop, PhaseOff).
		Permit(EventExitManual, PhaseOff).
		Permit(EventFault, PhaseError).
		Permit(EventDisconnected, PhaseOff).
		OnEntry(c.enterManual)

	sm.Configure(PhaseError).
		Permit(EventClearFault, PhaseOff).
		OnEntry(c.enterError)

	return sm
}

// Phase returns the controller's current phase.
func (c *Controller) Phase() Phase { return c.phase }

// Dispatch feeds one inbound event to the controller. Phase-changing
// events go through the FSM; an event with no entry in the transition
// table for the current phase is dropped silently (spec §4.6, §7.3) and
// Dispatch returns ErrTransitionNotPermitted so the caller can log a
// warning if it wants to. Parameter-only events are validated against the
// current phase directly.
func (c *Controller) Dispatch(event Event, value float64, nowMs uint64) error {
	switch event {
	case EventFirstCrack:
		return c.handleFirstCrack(nowMs)
	case EventSetSetpoint:
		return c.handleSetSetpoint(value)
	case EventSetFanSpeed:
		return c.handleSetFanSpeed(value)
	case EventSetHeaterPower:
		return c.handleSetHeaterPower(value)
	}

	if ok, _ := c.sm.CanFire(event); !ok {
		return ErrTransitionNotPermitted
	}
	switch event {
	case EventStartPreheat:
		c.preheatTargetC = clampTemp(value, c.cfg.Temp.SetpointMin, c.cfg.Temp.SetpointMax)
	case EventLoadBeans:
		c.setpointC = clampTemp(value, c.cfg.Temp.SetpointMin, c.cfg.Temp.SetpointMax)
	case EventStartFanOnly:
		c.fanOnlyPct = clampPct(value)
	}
	if err := c.sm.Fire(event, nowMs); err != nil {
		return fmt.Errorf("%w: %v", ErrTransitionNotPermitted, err)
	}
	c.phase = c.sm.MustState().(Phase)
	return nil
}

// Fault forces the controller into ERROR carrying info, used by the
// safety monitor and by PREHEAT's own timeout check. It is a no-op if the
// controller is already in ERROR, matching invariant I8 (a latched fault
// stays latched until CLEAR_FAULT).
func (c *Controller) Fault(info ErrorInfo, nowMs uint64) {
	if c.phase == PhaseError {
		return
	}
	c.errInfo = &info
	_ = c.Dispatch(EventFault, 0, nowMs)
	if c.sink != nil {
		c.sink.OnFault(info)
	}
}

func (c *Controller) handleFirstCrack(nowMs uint64) error {
	if c.phase != PhaseRoasting {
		return ErrParameterNotAccepted
	}
	if c.firstCrackMarked {
		return nil // P5: idempotent after the first call
	}
	c.firstCrackMarked = true
	c.firstCrackOffsetMs = nowMs - c.roastEpochMs
	if c.sink != nil {
		temp := c.filter.Value()
		t := float64(temp)
		c.sink.OnRoastEvent("FIRST_CRACK", nowMs-c.roastEpochMs, &t)
	}
	return nil
}

func (c *Controller) handleSetSetpoint(v float64) error {
	switch c.phase {
	case PhaseOff:
		c.setpointC = clampTemp(v, c.cfg.Temp.SetpointMin, c.cfg.Temp.SetpointMax)
		return nil
	case PhasePreheat:
		c.preheatTargetC = clampTemp(v, c.cfg.Temp.SetpointMin, c.cfg.Temp.SetpointMax)
		c.pidCtl.SetSetpoint(c.preheatTargetC)
		return nil
	case PhaseRoasting:
		c.setpointC = clampTemp(v, c.cfg.Temp.SetpointMin, c.cfg.Temp.SetpointMax)
		c.pidCtl.SetSetpoint(c.setpointC)
		return nil
	default:
		return ErrParameterNotAccepted
	}
}

func (c *Controller) handleSetFanSpeed(v float64) error {
	pct := clampPct(v)
	switch c.phase {
	case PhasePreheat, PhaseRoasting:
		if pct < c.cfg.Fan.RoastMinDuty {
			pct = c.cfg.Fan.RoastMinDuty
		}
		c.fan.SetSpeed(pct)
		return nil
	case PhaseManual:
		c.manualFanPct = pct
		c.fan.SetSpeed(pct)
		return nil
	case PhaseFanOnly:
		c.fanOnlyPct = pct
		c.fan.SetSpeed(pct)
		return nil
	default:
		return ErrParameterNotAccepted
	}
}

func (c *Controller) handleSetHeaterPower(v float64) error {
	if c.phase != PhaseManual {
		return ErrParameterNotAccepted
	}
	c.manualHeaterPct = clampPct(v)
	c.heaterD.SetPower(float64(c.manualHeaterPct) / 100.0 * 255.0)
	return nil
}

// Entry actions, per spec §4.6.

func (c *Controller) enterOff(_ context.Context, _ ...any) error {
	c.phase = PhaseOff
	c.fan.Disable()
	c.heaterD.Disarm()
	c.pidCtl.Disable()
	c.roastEpochMs = 0
	c.firstCrackMarked = false
	c.firstCrackOffsetMs = 0
	c.errInfo = nil
	c.ror.Reset()
	return nil
}

func (c *Controller) enterFanOnly(_ context.Context, _ ...any) error {
	c.phase = PhaseFanOnly
	c.heaterD.Disarm()
	c.pidCtl.Disable()
	c.fan.SetSpeed(c.fanOnlyPct)
	c.fan.Enable()
	return nil
}

func (c *Controller) enterPreheat(_ context.Context, args ...any) error {
	now := argNow(args)
	c.phase = PhasePreheat
	c.preheatEpochMs = now
	c.roastEpochMs = now
	c.fan.SetSpeed(c.cfg.Fan.PreheatDuty)
	c.fan.Enable()
	c.pidCtl.SetSetpoint(c.preheatTargetC)
	c.pidCtl.Reset()
	c.pidCtl.Enable()
	c.heaterD.Arm(now)
	return nil
}

func (c *Controller) enterRoasting(_ context.Context, _ ...any) error {
	c.phase = PhaseRoasting
	c.firstCrackMarked = false
	c.firstCrackOffsetMs = 0
	c.pidCtl.SetSetpoint(c.setpointC)
	c.pidCtl.Reset()
	c.pidCtl.Enable()
	c.fan.SetSpeed(c.cfg.Fan.RoastDefault)
	c.fan.Enable()
	c.ror.Reset()
	return nil
}

func (c *Controller) enterCooling(_ context.Context, _ ...any) error {
	c.phase = PhaseCooling
	c.heaterD.Disarm()
	c.pidCtl.Disable()
	c.fan.SetSpeed(c.cfg.Fan.CoolingDuty)
	c.fan.Enable()
	return nil
}

func (c *Controller) enterManual(_ context.Context, args ...any) error {
	now := argNow(args)
	c.phase = PhaseManual
	c.fan.SetSpeed(c.cfg.Fan.ManualDefault)
	c.fan.Enable()
	c.manualHeaterPct = 0
	c.heaterD.Arm(now)
	c.heaterD.SetPower(0)
	c.pidCtl.Disable()
	return nil
}

func (c *Controller) enterError(_ context.Context, _ ...any) error {
	c.phase = PhaseError
	c.fan.Disable()
	c.heaterD.Disarm()
	c.pidCtl.Disable()
	c.monitor.ResetThermocoupleDebounce()
	return nil
}

func argNow(args []any) uint64 {
	if len(args) == 0 {
		return 0
	}
	if v, ok := args[0].(uint64); ok {
		return v
	}
	return 0
}

func clampTemp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampPct(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return uint8(v)
}
