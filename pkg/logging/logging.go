// Package logging wires github.com/sirupsen/logrus as the controller's
// internal process logger, the way other_examples/jkp717-infinitive
// configures it (a package-level logger, a text formatter, a level set
// from a debug flag) — and adds a logrus.Hook that mirrors qualifying
// records onto the wire `log` protocol message (spec §4.7), so a single
// log.Warn/log.Error call reaches both the local log file and the host.
package logging

import (
	"github.com/sirupsen/logrus"
)

// WireSink is the minimal surface the bridge hook needs to emit a `log`
// message; pkg/transport's Writer implements it.
type WireSink interface {
	SendLog(level, source, message string)
}

// Setup creates and returns a new logrus logger: a text formatter with
// full timestamps, and debug-level verbosity when debug is true.
func Setup(debug bool) *logrus.Logger {
	l := logrus.New()
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if debug {
		l.SetLevel(logrus.DebugLevel)
	} else {
		l.SetLevel(logrus.InfoLevel)
	}
	return l
}

// WireHook forwards logrus records at warn level or above onto the wire
// transport immediately; lower-severity records stay local-only, since a
// 1 kHz loop logging every debug line to the host would saturate the
// serial link. source defaults to "core" unless the record carries a
// "source" field.
type WireHook struct {
	sink     WireSink
	minLevel logrus.Level
}

// NewWireHook returns a hook that forwards records at minLevel or more
// severe to sink.
func NewWireHook(sink WireSink, minLevel logrus.Level) *WireHook {
	return &WireHook{sink: sink, minLevel: minLevel}
}

func (h *WireHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *WireHook) Fire(entry *logrus.Entry) error {
	if entry.Level > h.minLevel {
		return nil
	}
	source := "core"
	if v, ok := entry.Data["source"]; ok {
		if s, ok := v.(string); ok {
			source = s
		}
	}
	h.sink.SendLog(levelName(entry.Level), source, entry.Message)
	return nil
}

func levelName(l logrus.Level) string {
	switch l {
	case logrus.DebugLevel, logrus.TraceLevel:
		return "debug"
	case logrus.InfoLevel:
		return "info"
	case logrus.WarnLevel:
		return "warn"
	default:
		return "error"
	}
}
