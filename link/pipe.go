package link

import (
	"bytes"
	"io"
	"sync"
)

type pipeBuffer struct {
	mu      sync.Mutex
	cond    *sync.Cond
	buf     bytes.Buffer
	closed  bool
	severed bool
}

func newPipeBuffer() *pipeBuffer {
	p := &pipeBuffer{}
	p.cond = sync.NewCond(&p.mu)
	return p
}

func (p *pipeBuffer) read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for p.buf.Len() == 0 && !p.closed {
		p.cond.Wait()
	}
	if p.buf.Len() == 0 {
		return 0, io.EOF
	}
	return p.buf.Read(b)
}

func (p *pipeBuffer) write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0, io.ErrClosedPipe
	}
	if p.severed {
		return len(b), nil
	}
	p.buf.Write(b)
	p.cond.Broadcast()
	return len(b), nil
}

func (p *pipeBuffer) close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.cond.Broadcast()
}

func (p *pipeBuffer) sever() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.severed = true
	p.buf.Reset()
}

// PipeEnd is one side of an in-memory serial line. Writes never block.
type PipeEnd struct {
	in, out *pipeBuffer
}

// Pipe returns the two ends of a buffered in-memory line.
func Pipe() (*PipeEnd, *PipeEnd) {
	ab, ba := newPipeBuffer(), newPipeBuffer()
	return &PipeEnd{in: ba, out: ab}, &PipeEnd{in: ab, out: ba}
}

func (p *PipeEnd) Read(b []byte) (int, error) {
	return p.in.read(b)
}

func (p *PipeEnd) Write(b []byte) (int, error) {
	return p.out.write(b)
}

// Close closes both directions, the peer reads io.EOF.
func (p *PipeEnd) Close() error {
	p.in.close()
	p.out.close()
	return nil
}

// Sever behaves like a cut cable: writes on both ends still succeed but nothing arrives.
func (p *PipeEnd) Sever() {
	p.in.sever()
	p.out.sever()
}
