package transport

import (
	"bufio"
	"io"
	"sync/atomic"
	"time"
)

// Reader frames inbound bytes into complete lines on its own goroutine —
// the hardware layer's "poll, never block" rule (spec §5) applies to the
// loop, not to the transport's underlying byte stream, which may be a
// blocking read on a serial port. The goroutine only ever posts into a
// channel and an atomic timestamp; the loop consumes both at the top of
// its own tick, so there is no race on controller state.
type Reader struct {
	maxLineBytes int
	lines        chan []byte
	lastActivity atomic.Int64 // unix ms of the most recent inbound byte
}

// NewReader starts framing r's byte stream in the background. maxLineBytes
// bounds a single line (spec §4.7: "≥ 512 bytes"); a longer line is
// discarded and the framer resyncs at the next '\n'.
func NewReader(r io.Reader, maxLineBytes int) *Reader {
	rd := &Reader{
		maxLineBytes: maxLineBytes,
		lines:        make(chan []byte, 16),
	}
	rd.lastActivity.Store(nowMs())
	go rd.run(r)
	return rd
}

// Lines returns the channel of complete, trimmed lines (no trailing \n,
// no \r). The loop should drain it fully at the start of every tick.
func (rd *Reader) Lines() <-chan []byte { return rd.lines }

// LastActivityMs returns the unix-ms timestamp of the most recent inbound
// byte, for the loop's disconnect-timeout check (spec §5, P10).
func (rd *Reader) LastActivityMs() int64 { return rd.lastActivity.Load() }

func (rd *Reader) run(r io.Reader) {
	defer close(rd.lines)

	br := bufio.NewReader(r)
	buf := make([]byte, 0, rd.maxLineBytes)
	overflowed := false

	for {
		b, err := br.ReadByte()
		if err != nil {
			return
		}
		rd.lastActivity.Store(nowMs())

		switch b {
		case '\r':
			continue
		case '\n':
			if !overflowed && len(buf) > 0 {
				line := make([]byte, len(buf))
				copy(line, buf)
				rd.lines <- line
			}
			buf = buf[:0]
			overflowed = false
		default:
			if len(buf) >= rd.maxLineBytes {
				overflowed = true
				continue
			}
			buf = append(buf, b)
		}
	}
}

func nowMs() int64 { return time.Now().UnixMilli() }
