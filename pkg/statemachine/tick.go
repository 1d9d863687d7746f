package statemachine

import "github.com/Michael-Swartz/McRoaster/pkg/hardware"

// Tick runs one loop iteration's safety evaluation and phase control law,
// per the ordering guarantee in spec §5: this is called once per tick,
// after transport intake has already dispatched any inbound commands via
// Dispatch, and its actuator writes (fan, heater) are visible to the
// telemetry emitted later in the same tick.
//
// tcReading/tcErr is the latest thermocouple acquisition (a transient SPI
// error is treated like an invalid sample: the filter holds its last
// value). thermistorTemp is the heater-body sensor, used only for
// telemetry per spec §6 (it plays no role in the control law).
func (c *Controller) Tick(nowMs uint64, tcReading hardware.ThermocoupleReading, tcErr error, thermistorTemp hardware.Celsius) {
	dt := c.dtSeconds(nowMs)

	ok := tcErr == nil
	filtered := c.filter.Push(tcReading.Temp, ok)
	if ok {
		c.lastChamberFault = tcReading.Fault
		c.haveFilterSample = true
	}
	c.lastHeaterTemp = float64(thermistorTemp)
	c.ror.Sample(filtered, nowMs)

	c.runSafetyChecks(filtered, nowMs)

	switch c.phase {
	case PhasePreheat:
		c.tickHeating(filtered, dt)
		if nowMs-c.preheatEpochMs > c.cfg.Safety.PreheatTimeoutMs {
			c.Fault(ErrorInfo{
				Code:    "PREHEAT_TIMEOUT",
				Message: "preheat did not reach target within the timeout window",
				Fatal:   true,
			}, nowMs)
		}
	case PhaseRoasting:
		c.tickHeating(filtered, dt)
	case PhaseCooling:
		if float64(filtered) < c.cfg.Temp.CoolingTarget {
			_ = c.Dispatch(EventCoolComplete, 0, nowMs)
		}
	case PhaseManual:
		// PID disabled; heaterD.power was set directly by SET_HEATER_POWER.
	case PhaseOff, PhaseFanOnly, PhaseError:
		// no control law
	}

	c.heaterD.Tick(nowMs)
}

func (c *Controller) tickHeating(filteredChamberTemp hardware.Celsius, dt float64) {
	output := c.pidCtl.Update(float64(filteredChamberTemp), dt)
	c.heaterD.SetPower(output)
}

func (c *Controller) dtSeconds(nowMs uint64) float64 {
	if !c.haveLastTickMs {
		c.haveLastTickMs = true
		c.lastTickMs = nowMs
		return 0
	}
	dtMs := nowMs - c.lastTickMs
	c.lastTickMs = nowMs
	return float64(dtMs) / 1000.0
}

// runSafetyChecks evaluates invariants I1/I2 and the debounced
// thermocouple check (spec §4.5), fast checks first, stopping at the
// first fatal hit for this tick. Once latched (phase == ERROR), all
// further checks are skipped until CLEAR_FAULT, per invariant I8.
func (c *Controller) runSafetyChecks(filteredChamberTemp hardware.Celsius, nowMs uint64) {
	if c.phase == PhaseError {
		return
	}

	if r := c.monitor.CheckOverTemp(float64(filteredChamberTemp)); r.Fault != "" {
		c.Fault(ErrorInfo{Code: r.Fault, Message: "chamber temperature exceeded the maximum", Fatal: true}, nowMs)
		return
	} else if r.Warning != "" {
		c.log("warn", "safety", r.Warning)
	}

	if r := c.monitor.CheckFanInterlock(c.heaterD.Armed(), c.fan.Enabled(), c.fan.Speed()); r.Fault != "" {
		c.Fault(ErrorInfo{Code: r.Fault, Message: "heater enabled without adequate fan airflow", Fatal: true}, nowMs)
		return
	}

	if r := c.monitor.CheckThermocouple(c.lastChamberFault, c.heaterD.Armed()); r.Fault != "" {
		c.Fault(ErrorInfo{Code: r.Fault, Message: "thermocouple fault persisted past the debounce window", Fatal: true}, nowMs)
		return
	} else if r.Warning != "" {
		c.log("warn", "safety", r.Warning)
	}
}

func (c *Controller) log(level, source, message string) {
	if c.sink != nil {
		c.sink.OnLog(level, source, message)
	}
}

// Snapshot returns the read-only projection serialized into `roasterState`.
func (c *Controller) Snapshot(nowMs uint64) Snapshot {
	s := Snapshot{
		Phase:         c.phase,
		HeaterTemp:    c.lastHeaterTemp,
		FanSpeed:      c.fan.Speed(),
		HeaterEnabled: c.heaterD.Armed(),
		PIDEnabled:    c.pidCtl.Enabled(),
		RoR:           c.ror.Value(),
	}

	critical := c.lastChamberFault&(hardware.FaultOpenCircuit|hardware.FaultShortToVCC) != 0
	if c.haveFilterSample && !critical {
		v := float64(c.filter.Value())
		s.ChamberTemp = &v
	}

	switch c.phase {
	case PhasePreheat:
		s.Setpoint = c.preheatTargetC
	default:
		s.Setpoint = c.setpointC
	}

	heaterPower := uint8(0)
	if c.phase == PhaseManual {
		heaterPower = c.manualHeaterPct
	} else if c.heaterD.Power() > 0 {
		heaterPower = uint8(c.heaterD.Power() / 255.0 * 100.0)
	}
	s.HeaterPower = heaterPower

	if c.roastEpochMs != 0 && nowMs > c.roastEpochMs {
		s.RoastTimeMs = nowMs - c.roastEpochMs
	}

	s.FirstCrackMarked = c.firstCrackMarked
	if c.firstCrackMarked {
		t := c.firstCrackOffsetMs
		s.FirstCrackTimeMs = &t
	}

	if c.phase == PhaseError && c.errInfo != nil {
		info := *c.errInfo
		s.Error = &info
	}

	return s
}
