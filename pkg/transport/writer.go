package transport

import (
	"encoding/json"
	"io"
	"sync"

	"github.com/Michael-Swartz/McRoaster/pkg/statemachine"
)

// Writer serializes outbound telemetry, events, and logs as line-delimited
// JSON (spec §4.7, §6). Guarded by a mutex because the logrus wire hook
// (pkg/logging) may call SendLog from whatever goroutine logged, while
// the loop calls the telemetry methods from its own goroutine.
type Writer struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriter wraps w (the open transport byte stream) for outbound framing.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// SendConnected emits the one-time `connected` message (spec §6), sent at
// boot and again on first inbound activity.
func (tw *Writer) SendConnected(firmware string, nowMs int64) error {
	return tw.send("connected", nowMs, connectedPayload{Firmware: firmware})
}

// SendRoasterState emits the 1 Hz `roasterState` telemetry message.
func (tw *Writer) SendRoasterState(s statemachine.Snapshot, nowMs int64) error {
	payload := roasterStatePayload{
		State:            s.Phase.String(),
		StateID:          s.Phase.ID(),
		ChamberTemp:      s.ChamberTemp,
		HeaterTemp:       s.HeaterTemp,
		Setpoint:         s.Setpoint,
		FanSpeed:         s.FanSpeed,
		HeaterPower:      s.HeaterPower,
		HeaterEnabled:    s.HeaterEnabled,
		PIDEnabled:       s.PIDEnabled,
		RoastTimeMs:      s.RoastTimeMs,
		FirstCrackMarked: s.FirstCrackMarked,
		FirstCrackTimeMs: s.FirstCrackTimeMs,
		RoR:              s.RoR,
	}
	if s.Error != nil {
		payload.Error = &errorPayload{Code: string(s.Error.Code), Message: s.Error.Message, Fatal: s.Error.Fatal}
	}
	return tw.send("roasterState", nowMs, payload)
}

// SendRoastEvent emits a `roastEvent` milestone message.
func (tw *Writer) SendRoastEvent(event string, roastTimeMs uint64, chamberTemp *float64, nowMs int64) error {
	return tw.send("roastEvent", nowMs, roastEventPayload{Event: event, RoastTimeMs: roastTimeMs, ChamberTemp: chamberTemp})
}

// SendError emits an `error` message when a new fault latches.
func (tw *Writer) SendError(info statemachine.ErrorInfo, nowMs int64) error {
	return tw.send("error", nowMs, errorPayload{Code: string(info.Code), Message: info.Message, Fatal: info.Fatal})
}

// SendLog implements logging.WireSink, emitting a `log` message.
func (tw *Writer) SendLog(level, source, message string) {
	_ = tw.send("log", nowMs(), logPayload{Level: level, Source: source, Message: message})
}

func (tw *Writer) send(msgType string, nowMs int64, payload any) error {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	buf, err := json.Marshal(envelope{Type: msgType, Timestamp: nowMs, Payload: payload})
	if err != nil {
		return err
	}
	buf = append(buf, '\n')
	_, err = tw.w.Write(buf)
	return err
}
