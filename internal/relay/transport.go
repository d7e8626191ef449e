package relay

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by operations on a closed transport or connection.
var ErrClosed = errors.New("relay: connection closed")

// Transport carries opaque frames in order.
type Transport interface {
	Send(ctx context.Context, frame []byte) error
	Receive(ctx context.Context) ([]byte, error)
	Close() error
}

const pipeBuffer = 64

type pipeEnd struct {
	in     <-chan []byte
	out    chan<- []byte
	closed chan struct{}
	once   *sync.Once
}

// NewPipe returns two connected in-memory transports. Closing either end
// closes both.
func NewPipe() (Transport, Transport) {
	ab := make(chan []byte, pipeBuffer)
	ba := make(chan []byte, pipeBuffer)
	closed := make(chan struct{})
	once := &sync.Once{}

	a := &pipeEnd{in: ba, out: ab, closed: closed, once: once}
	b := &pipeEnd{in: ab, out: ba, closed: closed, once: once}
	return a, b
}

func (p *pipeEnd) Send(ctx context.Context, frame []byte) error {
	select {
	case <-p.closed:
		return ErrClosed
	default:
	}

	buf := make([]byte, len(frame))
	copy(buf, frame)
	select {
	case p.out <- buf:
		return nil
	case <-p.closed:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *pipeEnd) Receive(ctx context.Context) ([]byte, error) {
	select {
	case frame := <-p.in:
		return frame, nil
	case <-p.closed:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *pipeEnd) Close() error {
	p.once.Do(func() { close(p.closed) })
	return nil
}
