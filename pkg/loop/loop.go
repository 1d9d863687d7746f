// Package loop implements the top-level fixed-period tick loop (spec §2,
// §5): transport intake, then safety + state-machine update + actuator
// tick (bundled into statemachine.Controller.Tick so their relative order
// can never drift apart), then periodic telemetry. Grounded on the
// teacher's main loop shape — a signal-checked for loop around one
// iteration function — generalized from a fixed-interval poll to the
// tighter cadence this spec requires.
package loop

import (
	"time"

	"github.com/Michael-Swartz/McRoaster/pkg/config"
	"github.com/Michael-Swartz/McRoaster/pkg/hardware"
	"github.com/Michael-Swartz/McRoaster/pkg/statemachine"
	"github.com/Michael-Swartz/McRoaster/pkg/transport"
)

// Loop owns the controller and its transport for the process lifetime.
type Loop struct {
	cfg      *config.Config
	port     hardware.Port
	ctrl     *statemachine.Controller
	reader   *transport.Reader
	writer   *transport.Writer
	shutdown *config.AtomicBool

	connectedSent       bool
	disconnectedLatched bool
	lastStateSendMs     int64
}

// New builds a loop from its already-constructed collaborators.
func New(cfg *config.Config, port hardware.Port, ctrl *statemachine.Controller, reader *transport.Reader, writer *transport.Writer, shutdown *config.AtomicBool) *Loop {
	return &Loop{cfg: cfg, port: port, ctrl: ctrl, reader: reader, writer: writer, shutdown: shutdown}
}

// Run drives ticks at roughly tickInterval until the shutdown flag is set
// or the transport's line channel closes (host end hung up the stream).
func (l *Loop) Run(tickInterval time.Duration) {
	_ = l.writer.SendConnected(l.cfg.Firmware, nowMs())

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for !l.shutdown.Load() {
		<-ticker.C
		if !l.Tick() {
			return
		}
	}
}

// Tick runs exactly one loop iteration. It returns false when the
// transport's underlying stream has closed, signaling the caller to stop.
func (l *Loop) Tick() bool {
	now := nowMs()

	if !l.drainTransport(now) {
		return false
	}
	l.checkDisconnect(now)

	tc, tcErr := l.port.ReadThermocouple()
	thermistor, _ := l.port.ReadThermistor()
	l.ctrl.Tick(uint64(now), tc, tcErr, thermistor)

	if now-l.lastStateSendMs >= int64(l.cfg.Timing.StateSendIntervalMs) {
		l.lastStateSendMs = now
		_ = l.writer.SendRoasterState(l.ctrl.Snapshot(uint64(now)), now)
	}

	return true
}

// drainTransport processes every line framed since the last tick. It
// returns false if the reader's channel has closed.
func (l *Loop) drainTransport(now int64) bool {
	for {
		select {
		case line, ok := <-l.reader.Lines():
			if !ok {
				return false
			}
			l.onActivity(now)
			l.handleLine(line, now)
		default:
			return true
		}
	}
}

func (l *Loop) onActivity(now int64) {
	l.disconnectedLatched = false
	if !l.connectedSent {
		l.connectedSent = true
		_ = l.writer.SendConnected(l.cfg.Firmware, now)
	}
}

func (l *Loop) handleLine(line []byte, now int64) {
	cmd, err := transport.ParseLine(line)
	if err != nil {
		return // unknown/malformed: dropped silently, spec §7.3
	}
	switch cmd.Kind {
	case transport.KindGetState:
		_ = l.writer.SendRoasterState(l.ctrl.Snapshot(uint64(now)), now)
	case transport.KindNoop:
		// debugFan/testFanPins: no-op in a portable implementation.
	case transport.KindEvent:
		_ = l.ctrl.Dispatch(cmd.Event, cmd.Value, uint64(now))
	}
}

// checkDisconnect posts exactly one DISCONNECTED event per silence once
// DisconnectMs has elapsed since the last inbound byte (spec §5, P10).
func (l *Loop) checkDisconnect(now int64) {
	if l.disconnectedLatched {
		return
	}
	if now-l.reader.LastActivityMs() < int64(l.cfg.Timing.DisconnectMs) {
		return
	}
	l.disconnectedLatched = true
	_ = l.ctrl.Dispatch(statemachine.EventDisconnected, 0, uint64(now))
}

func nowMs() int64 { return time.Now().UnixMilli() }
