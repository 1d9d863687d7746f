// Package transport implements the line-delimited JSON command/telemetry
// channel from spec §4.7: inbound command framing and parsing, and
// outbound telemetry/event/log serialization. The wire contract permits
// either a permissive substring scanner or a strict JSON parser (spec
// §4.7); this implementation uses encoding/json throughout, since the
// teacher and the rest of the pack reach for the standard decoder rather
// than hand-rolled scanning wherever the wire format is already
// structured.
package transport

import "encoding/json"

// envelope is the outbound wire shape: { "type", "timestamp", "payload" }.
type envelope struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
	Payload   any    `json:"payload"`
}

// inboundEnvelope mirrors the same shape for decoding; payload is decoded
// lazily per command type since its fields vary.
type inboundEnvelope struct {
	Type      string          `json:"type"`
	Timestamp int64           `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

type connectedPayload struct {
	Firmware string `json:"firmware"`
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Fatal   bool   `json:"fatal"`
}

type roasterStatePayload struct {
	State            string        `json:"state"`
	StateID          int           `json:"stateId"`
	ChamberTemp      *float64      `json:"chamberTemp"`
	HeaterTemp       float64       `json:"heaterTemp"`
	Setpoint         float64       `json:"setpoint"`
	FanSpeed         uint8         `json:"fanSpeed"`
	HeaterPower      uint8         `json:"heaterPower"`
	HeaterEnabled    bool          `json:"heaterEnabled"`
	PIDEnabled       bool          `json:"pidEnabled"`
	RoastTimeMs      uint64        `json:"roastTimeMs"`
	FirstCrackMarked bool          `json:"firstCrackMarked"`
	FirstCrackTimeMs *uint64       `json:"firstCrackTimeMs"`
	RoR              float64       `json:"ror"`
	Error            *errorPayload `json:"error"`
}

type roastEventPayload struct {
	Event       string   `json:"event"`
	RoastTimeMs uint64   `json:"roastTimeMs"`
	ChamberTemp *float64 `json:"chamberTemp"`
}

type logPayload struct {
	Level   string `json:"level"`
	Source  string `json:"source"`
	Message string `json:"message"`
}
