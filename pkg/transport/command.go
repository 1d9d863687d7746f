package transport

import (
	"encoding/json"
	"errors"

	"github.com/Michael-Swartz/McRoaster/pkg/statemachine"
)

// ErrUnknownCommand is returned for a syntactically valid envelope whose
// type isn't one of the recognized command names (spec §4.7: unknown
// types are ignored, not an error the loop should act on beyond an
// optional warn log, per spec §7.3).
var ErrUnknownCommand = errors.New("transport: unknown command type")

// Kind distinguishes the handful of inbound message shapes that don't map
// onto a single state-machine Event.
type Kind int

const (
	KindEvent Kind = iota
	KindGetState
	KindNoop
)

// Command is one parsed inbound message, ready to hand to
// statemachine.Controller.Dispatch when Kind == KindEvent.
type Command struct {
	Kind  Kind
	Event statemachine.Event
	Value float64
}

type numericPayload struct {
	TargetTemp *float64 `json:"targetTemp"`
	Setpoint   *float64 `json:"setpoint"`
	FanSpeed   *float64 `json:"fanSpeed"`
	Value      *float64 `json:"value"`
}

// ParseLine decodes one complete line (already stripped of its trailing
// newline and any \r) into a Command. A line that isn't valid JSON, or
// whose "type" isn't recognized, returns ErrUnknownCommand — the caller
// drops it silently per spec §7.3.
func ParseLine(line []byte) (Command, error) {
	var env inboundEnvelope
	if err := json.Unmarshal(line, &env); err != nil {
		return Command{}, ErrUnknownCommand
	}

	var num numericPayload
	if len(env.Payload) > 0 {
		_ = json.Unmarshal(env.Payload, &num)
	}

	switch env.Type {
	case "startPreheat":
		return Command{Kind: KindEvent, Event: statemachine.EventStartPreheat, Value: firstOf(num.TargetTemp, 180)}, nil
	case "loadBeans":
		return Command{Kind: KindEvent, Event: statemachine.EventLoadBeans, Value: firstOf(num.Setpoint, 200)}, nil
	case "enterFanOnly":
		return Command{Kind: KindEvent, Event: statemachine.EventStartFanOnly, Value: firstOf(num.FanSpeed, 50)}, nil
	case "exitFanOnly":
		return Command{Kind: KindEvent, Event: statemachine.EventExitFanOnly}, nil
	case "endRoast":
		return Command{Kind: KindEvent, Event: statemachine.EventEndRoast}, nil
	case "markFirstCrack":
		return Command{Kind: KindEvent, Event: statemachine.EventFirstCrack}, nil
	case "stop":
		return Command{Kind: KindEvent, Event: statemachine.EventStop}, nil
	case "enterManual":
		return Command{Kind: KindEvent, Event: statemachine.EventEnterManual}, nil
	case "exitManual":
		return Command{Kind: KindEvent, Event: statemachine.EventExitManual}, nil
	case "clearFault":
		return Command{Kind: KindEvent, Event: statemachine.EventClearFault}, nil
	case "setSetpoint":
		return Command{Kind: KindEvent, Event: statemachine.EventSetSetpoint, Value: firstOf(num.Value, 0)}, nil
	case "setFanSpeed":
		return Command{Kind: KindEvent, Event: statemachine.EventSetFanSpeed, Value: firstOf(num.Value, 0)}, nil
	case "setHeaterPower":
		return Command{Kind: KindEvent, Event: statemachine.EventSetHeaterPower, Value: firstOf(num.Value, 0)}, nil
	case "getState":
		return Command{Kind: KindGetState}, nil
	case "debugFan", "testFanPins":
		return Command{Kind: KindNoop}, nil
	default:
		return Command{}, ErrUnknownCommand
	}
}

func firstOf(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}
