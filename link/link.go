package link

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"iter"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/encodeous/wireline/state"
)

var (
	ErrLinkUnavailable = errors.New("link unavailable")
	ErrLinkClosed      = errors.New("link closed")
)

// Link is a duplex line channel over a serial port, socket or pipe.
// Writers are serialised, reading is done by a single consumer of Lines.
type Link struct {
	Id     state.LinkId
	rw     io.ReadWriteCloser
	wmu    sync.Mutex
	closed atomic.Bool

	linesIn, linesOut atomic.Uint64
	bytesIn, bytesOut atomic.Uint64
}

type Stats struct {
	Id       state.LinkId
	LinesIn  uint64
	LinesOut uint64
	BytesIn  uint64
	BytesOut uint64
}

func New(id state.LinkId, rw io.ReadWriteCloser) *Link {
	return &Link{Id: id, rw: rw}
}

// WriteLine writes line followed by a newline as a single write.
func (l *Link) WriteLine(line string) error {
	if l.closed.Load() {
		return ErrLinkClosed
	}
	buf := []byte(line + "\n")
	l.wmu.Lock()
	defer l.wmu.Unlock()
	n, err := l.rw.Write(buf)
	l.bytesOut.Add(uint64(n))
	if err != nil {
		return fmt.Errorf("write %s: %w", l.Id, err)
	}
	l.linesOut.Add(1)
	return nil
}

// Lines yields complete lines as they arrive. Invalid UTF-8 is dropped,
// trailing carriage returns are trimmed and empty lines are skipped. A line
// longer than state.MaxLineLength is discarded up to its terminating newline.
// The sequence ends when the link is closed or the underlying reader fails.
func (l *Link) Lines() iter.Seq[string] {
	return func(yield func(string) bool) {
		buf := make([]byte, 1024)
		var pending []byte
		discarding := false
		for !l.closed.Load() {
			n, err := l.rw.Read(buf)
			l.bytesIn.Add(uint64(n))
			chunk := buf[:n]
			for len(chunk) > 0 {
				idx := bytes.IndexByte(chunk, '\n')
				if idx == -1 {
					if !discarding {
						pending = append(pending, chunk...)
						if len(pending) > state.MaxLineLength {
							pending = pending[:0]
							discarding = true
						}
					}
					break
				}
				if !discarding {
					pending = append(pending, chunk[:idx]...)
					line := ""
					if len(pending) <= state.MaxLineLength {
						line = cleanLine(pending)
					}
					pending = pending[:0]
					if line != "" {
						l.linesIn.Add(1)
						if !yield(line) {
							return
						}
					}
				}
				discarding = false
				chunk = chunk[idx+1:]
			}
			if err != nil {
				// serial ports report timeouts as (0, nil) and keep polling, anything else ends the link
				return
			}
		}
	}
}

func cleanLine(b []byte) string {
	line := strings.ToValidUTF8(string(b), "")
	return strings.TrimRight(line, "\r")
}

func (l *Link) Close() error {
	if l.closed.Swap(true) {
		return nil
	}
	return l.rw.Close()
}

func (l *Link) Closed() bool {
	return l.closed.Load()
}

func (l *Link) Stats() Stats {
	return Stats{
		Id:       l.Id,
		LinesIn:  l.linesIn.Load(),
		LinesOut: l.linesOut.Load(),
		BytesIn:  l.bytesIn.Load(),
		BytesOut: l.bytesOut.Load(),
	}
}
