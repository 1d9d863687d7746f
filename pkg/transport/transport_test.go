package transport

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/Michael-Swartz/McRoaster/pkg/statemachine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLineKnownCommands(t *testing.T) {
	cmd, err := ParseLine([]byte(`{"type":"startPreheat","timestamp":0,"payload":{"targetTemp":185}}`))
	require.NoError(t, err)
	assert.Equal(t, statemachine.EventStartPreheat, cmd.Event)
	assert.Equal(t, 185.0, cmd.Value)

	cmd, err = ParseLine([]byte(`{"type":"loadBeans","timestamp":0,"payload":{"setpoint":210}}`))
	require.NoError(t, err)
	assert.Equal(t, statemachine.EventLoadBeans, cmd.Event)
	assert.Equal(t, 210.0, cmd.Value)

	cmd, err = ParseLine([]byte(`{"type":"stop","timestamp":0,"payload":{}}`))
	require.NoError(t, err)
	assert.Equal(t, statemachine.EventStop, cmd.Event)

	cmd, err = ParseLine([]byte(`{"type":"getState","timestamp":0,"payload":{}}`))
	require.NoError(t, err)
	assert.Equal(t, KindGetState, cmd.Kind)

	cmd, err = ParseLine([]byte(`{"type":"debugFan","timestamp":0,"payload":{}}`))
	require.NoError(t, err)
	assert.Equal(t, KindNoop, cmd.Kind)
}

func TestParseLineDefaultsWhenFieldMissing(t *testing.T) {
	cmd, err := ParseLine([]byte(`{"type":"enterFanOnly","timestamp":0,"payload":{}}`))
	require.NoError(t, err)
	assert.Equal(t, 50.0, cmd.Value)
}

func TestParseLineUnknownTypeIsDropped(t *testing.T) {
	_, err := ParseLine([]byte(`{"type":"bogus","timestamp":0,"payload":{}}`))
	assert.ErrorIs(t, err, ErrUnknownCommand)
}

func TestParseLineMalformedJSONIsDropped(t *testing.T) {
	_, err := ParseLine([]byte(`not json at all`))
	assert.ErrorIs(t, err, ErrUnknownCommand)
}

func TestReaderFramesMultipleLines(t *testing.T) {
	src := strings.NewReader("{\"type\":\"stop\"}\n{\"type\":\"clearFault\"}\r\n")
	rd := NewReader(src, 512)

	var got []string
	timeout := time.After(2 * time.Second)
	for i := 0; i < 2; i++ {
		select {
		case line := <-rd.Lines():
			got = append(got, string(line))
		case <-timeout:
			t.Fatal("timed out waiting for framed lines")
		}
	}
	assert.Equal(t, []string{`{"type":"stop"}`, `{"type":"clearFault"}`}, got)
}

func TestReaderDiscardsOversizedLine(t *testing.T) {
	long := strings.Repeat("x", 20) + "\n"
	short := `{"type":"stop"}` + "\n"
	src := strings.NewReader(long + short)
	rd := NewReader(src, 16) // the 15-byte short line fits, the 20-byte one does not

	select {
	case line := <-rd.Lines():
		assert.Equal(t, `{"type":"stop"}`, string(line))
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the line after the overflow")
	}
}

func TestWriterSerializesRoasterState(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	temp := 185.5
	err := w.SendRoasterState(statemachine.Snapshot{
		Phase:       statemachine.PhaseRoasting,
		ChamberTemp: &temp,
		Setpoint:    200,
		FanSpeed:    90,
	}, 12345)
	require.NoError(t, err)

	line := strings.TrimSuffix(buf.String(), "\n")
	var decoded struct {
		Type      string `json:"type"`
		Timestamp int64  `json:"timestamp"`
		Payload   struct {
			State       string  `json:"state"`
			StateID     int     `json:"stateId"`
			ChamberTemp float64 `json:"chamberTemp"`
			Setpoint    float64 `json:"setpoint"`
		} `json:"payload"`
	}
	require.NoError(t, json.Unmarshal([]byte(line), &decoded))
	assert.Equal(t, "roasterState", decoded.Type)
	assert.Equal(t, int64(12345), decoded.Timestamp)
	assert.Equal(t, "ROASTING", decoded.Payload.State)
	assert.Equal(t, 3, decoded.Payload.StateID)
	assert.Equal(t, 185.5, decoded.Payload.ChamberTemp)
}

func TestWriterSerializationIsDeterministic(t *testing.T) {
	snap := statemachine.Snapshot{Phase: statemachine.PhaseOff, Setpoint: 200, FanSpeed: 0}

	var a, b bytes.Buffer
	require.NoError(t, NewWriter(&a).SendRoasterState(snap, 1))
	require.NoError(t, NewWriter(&b).SendRoasterState(snap, 1))
	assert.Equal(t, a.String(), b.String()) // P9
}

func TestWriterNullChamberTempWhenFaulted(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.SendRoasterState(statemachine.Snapshot{Phase: statemachine.PhaseError}, 1))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &decoded))
	payload := decoded["payload"].(map[string]any)
	assert.Nil(t, payload["chamberTemp"])
}
