package transport

import (
	"bytes"
	"errors"
	"io"
	"sync"
)

// ErrClosed is returned by Pipe operations after Close.
var ErrClosed = errors.New("transport: pipe closed")

// pipeBuffer is one direction of a Pipe.
type pipeBuffer struct {
	mu     sync.Mutex
	cond   *sync.Cond
	buf    bytes.Buffer
	closed bool
}

func newPipeBuffer() *pipeBuffer {
	b := &pipeBuffer{}
	b.cond = sync.NewCond(&b.mu)
	return b
}

func (b *pipeBuffer) write(p []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	b.buf.Write(p)
	b.cond.Broadcast()
	return nil
}

func (b *pipeBuffer) len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Len()
}

// read blocks until data is available or the buffer is closed.
func (b *pipeBuffer) read(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for b.buf.Len() == 0 && !b.closed {
		b.cond.Wait()
	}
	if b.buf.Len() == 0 {
		return 0, io.EOF
	}
	return b.buf.Read(p)
}

func (b *pipeBuffer) close() {
	b.mu.Lock()
	b.closed = true
	b.cond.Broadcast()
	b.mu.Unlock()
}

// Pipe is one end of an in-memory, buffered, full-duplex byte link.
// Writes never block. Reads block until data arrives or either end closes.
type Pipe struct {
	rx *pipeBuffer
	tx *pipeBuffer
}

// NewPipe returns two connected ends: bytes written to one are read from the other.
func NewPipe() (*Pipe, *Pipe) {
	ab := newPipeBuffer()
	ba := newPipeBuffer()
	return &Pipe{rx: ba, tx: ab}, &Pipe{rx: ab, tx: ba}
}

// Available reports how many bytes can be read without blocking.
func (p *Pipe) Available() (int, error) {
	return p.rx.len(), nil
}

// ReadExact reads exactly n bytes, blocking until they arrive.
func (p *Pipe) ReadExact(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(p, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// Read implements io.Reader.
func (p *Pipe) Read(b []byte) (int, error) {
	return p.rx.read(b)
}

// Write sends b to the other end.
func (p *Pipe) Write(b []byte) error {
	return p.tx.write(b)
}

// Close shuts both directions; pending reads on either end return io.EOF.
func (p *Pipe) Close() error {
	p.rx.close()
	p.tx.close()
	return nil
}
