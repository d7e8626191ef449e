package relay

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/GriffinCanCode/modbridge/internal/infrastructure/logging"
	"github.com/GriffinCanCode/modbridge/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/modbridge/internal/protocol"
	"go.uber.org/zap"
)

const channelA = "a"

// Handler answers requests and consumes pushes. The returned response is
// discarded for pushes; a nil response to a request is sent as success.
type Handler interface {
	Handle(ctx context.Context, msg protocol.Message) *protocol.Response
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, msg protocol.Message) *protocol.Response

func (f HandlerFunc) Handle(ctx context.Context, msg protocol.Message) *protocol.Response {
	return f(ctx, msg)
}

// Conn is one end of Channel A.
type Conn struct {
	transport Transport
	log       *zap.Logger
	metrics   *monitoring.Metrics

	seq atomic.Uint64

	mu      sync.Mutex
	waiters map[uint64]chan *protocol.Response

	closed    chan struct{}
	closeOnce sync.Once
}

// NewConn wraps a transport.
func NewConn(t Transport, log *zap.Logger, metrics *monitoring.Metrics) *Conn {
	return &Conn{
		transport: t,
		log:       logging.OrNop(log),
		metrics:   metrics,
		waiters:   make(map[uint64]chan *protocol.Response),
		closed:    make(chan struct{}),
	}
}

// Serve reads frames until the transport fails, the connection is closed or
// ctx ends. Requests are answered concurrently; pushes are handled one at a
// time in arrival order. Serve closes the connection before returning.
func (c *Conn) Serve(ctx context.Context, h Handler) error {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(ctx, func() { c.Close() })

	pushes := NewQueue[protocol.Message]()
	var workers sync.WaitGroup
	workers.Add(1)
	go func() {
		defer workers.Done()
		for {
			msg, ok := pushes.Pop(ctx)
			if !ok {
				return
			}
			c.dispatch(ctx, h, msg)
		}
	}()

	defer func() {
		stop()
		cancel()
		pushes.Close()
		c.Close()
		workers.Wait()
	}()

	for {
		raw, err := c.transport.Receive(ctx)
		if err != nil {
			if errors.Is(err, ErrClosed) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("receive: %w", err)
		}

		frame, err := protocol.DecodeFrame(raw)
		if err != nil {
			c.log.Warn("dropping malformed frame", zap.Error(err), zap.Int("bytes", len(raw)))
			c.metrics.RecordRelayDropped(channelA, "malformed")
			continue
		}
		c.metrics.RecordRelayMessage(channelA, "in", string(frame.Kind))

		switch frame.Kind {
		case protocol.KindResponse:
			c.settle(frame)
		case protocol.KindRequest:
			workers.Add(1)
			go func(frame protocol.Frame) {
				defer workers.Done()
				c.answer(ctx, h, frame)
			}(frame)
		case protocol.KindPush:
			pushes.Push(*frame.Message)
		}
	}
}

// Request sends msg and waits for its response, which is only delivered
// while Serve runs. There is no built-in deadline: the wait ends with the
// response, ctx, or the connection.
func (c *Conn) Request(ctx context.Context, msg protocol.Message) (*protocol.Response, error) {
	seq := c.seq.Add(1)
	ch := make(chan *protocol.Response, 1)

	c.mu.Lock()
	select {
	case <-c.closed:
		c.mu.Unlock()
		return nil, ErrClosed
	default:
	}
	c.waiters[seq] = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.waiters, seq)
		c.mu.Unlock()
	}()

	if err := c.send(ctx, protocol.Frame{Seq: seq, Kind: protocol.KindRequest, Message: &msg}); err != nil {
		return nil, err
	}

	select {
	case resp := <-ch:
		return resp, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.closed:
		return nil, ErrClosed
	}
}

// Push sends msg without expecting an answer.
func (c *Conn) Push(ctx context.Context, msg protocol.Message) error {
	return c.send(ctx, protocol.Frame{Seq: c.seq.Add(1), Kind: protocol.KindPush, Message: &msg})
}

// Done is closed once the connection is closed.
func (c *Conn) Done() <-chan struct{} {
	return c.closed
}

// Close closes the transport. Outstanding requests fail with ErrClosed.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.mu.Lock()
		close(c.closed)
		c.mu.Unlock()
		err = c.transport.Close()
	})
	return err
}

func (c *Conn) send(ctx context.Context, frame protocol.Frame) error {
	select {
	case <-c.closed:
		return ErrClosed
	default:
	}

	raw, err := protocol.EncodeFrame(frame)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	if err := c.transport.Send(ctx, raw); err != nil {
		return err
	}
	c.metrics.RecordRelayMessage(channelA, "out", string(frame.Kind))
	return nil
}

func (c *Conn) settle(frame protocol.Frame) {
	c.mu.Lock()
	ch, ok := c.waiters[frame.ReplyTo]
	c.mu.Unlock()

	if !ok {
		c.log.Debug("response without waiter", zap.Uint64("reply_to", frame.ReplyTo))
		c.metrics.RecordRelayDropped(channelA, "orphan")
		return
	}
	select {
	case ch <- frame.Response:
	default:
	}
}

func (c *Conn) answer(ctx context.Context, h Handler, frame protocol.Frame) {
	resp := c.dispatch(ctx, h, *frame.Message)
	if resp == nil {
		resp = protocol.OK(nil)
	}
	reply := protocol.Frame{
		Seq:      c.seq.Add(1),
		ReplyTo:  frame.Seq,
		Kind:     protocol.KindResponse,
		Response: resp,
	}
	if err := c.send(ctx, reply); err != nil && !errors.Is(err, ErrClosed) {
		c.log.Warn("failed to send response",
			zap.String("action", string(frame.Message.Action)),
			zap.Error(err))
	}
}

// dispatch runs the handler, turning a panic into a failed response.
func (c *Conn) dispatch(ctx context.Context, h Handler, msg protocol.Message) (resp *protocol.Response) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("handler panicked",
				zap.String("action", string(msg.Action)),
				zap.Any("panic", r))
			resp = protocol.Fail(fmt.Errorf("internal error handling %s", msg.Action))
		}
	}()
	return h.Handle(ctx, msg)
}
