package statemachine

import "errors"

var (
	// ErrTransitionNotPermitted is returned internally when an event does
	// not have an entry in the transition table for the current phase. Per
	// spec §4.6 this is not a program error: the caller drops the command
	// silently, optionally logging a warning (spec §7.3).
	ErrTransitionNotPermitted = errors.New("statemachine: transition not permitted in current phase")

	// ErrParameterNotAccepted covers the parameter-only events (setpoint,
	// fan speed, heater power, first crack) when sent outside their
	// accepting phases.
	ErrParameterNotAccepted = errors.New("statemachine: parameter event not accepted in current phase")
)
