package transport

import "github.com/Michael-Swartz/McRoaster/pkg/statemachine"

// ControllerSink adapts a Writer to statemachine.Sink, so the controller
// can emit `log`/`roastEvent`/`error` wire messages without depending on
// the transport package's concrete types.
type ControllerSink struct {
	w *Writer
}

// NewControllerSink returns a statemachine.Sink backed by w.
func NewControllerSink(w *Writer) *ControllerSink {
	return &ControllerSink{w: w}
}

func (s *ControllerSink) OnLog(level, source, message string) {
	s.w.SendLog(level, source, message)
}

func (s *ControllerSink) OnRoastEvent(event string, roastTimeMs uint64, chamberTemp *float64) {
	_ = s.w.SendRoastEvent(event, roastTimeMs, chamberTemp, nowMs())
}

func (s *ControllerSink) OnFault(info statemachine.ErrorInfo) {
	_ = s.w.SendError(info, nowMs())
}
