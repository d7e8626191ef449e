package relay

import (
	"context"
	"time"

	"github.com/GriffinCanCode/modbridge/internal/infrastructure/logging"
	"github.com/GriffinCanCode/modbridge/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/modbridge/internal/protocol"
	"github.com/GriffinCanCode/modbridge/internal/shared/id"
	"go.uber.org/zap"
)

// Caller issues correlated requests over a Window and settles them from
// EXTENSION responses.
type Caller struct {
	window  *Window
	pending *Pending
	ids     *id.Correlator
	log     *zap.Logger
	remove  func()
}

// NewCaller attaches a response listener to w.
func NewCaller(w *Window, ids *id.Correlator, timeout time.Duration, log *zap.Logger, metrics *monitoring.Metrics) *Caller {
	c := &Caller{
		window:  w,
		pending: NewPending(timeout, log, metrics),
		ids:     ids,
		log:     logging.OrNop(log),
	}
	c.remove = w.AddListener(c.onEnvelope)
	return c
}

// Call posts msg as from and arranges for settle to run with the answer or
// a timeout. It returns the correlation id used.
func (c *Caller) Call(from protocol.Origin, msg protocol.Message, settle SettleFunc) (string, error) {
	cid := c.ids.Next()
	if err := c.pending.Add(cid, settle); err != nil {
		return "", err
	}
	if err := c.window.PostMessage(protocol.Envelope{From: from, ID: cid, Message: &msg}); err != nil {
		c.pending.Reject(cid, err)
		return cid, err
	}
	return cid, nil
}

// Request is Call waiting for the outcome.
func (c *Caller) Request(ctx context.Context, from protocol.Origin, msg protocol.Message) (*protocol.Response, error) {
	type outcome struct {
		resp *protocol.Response
		err  error
	}
	done := make(chan outcome, 1)
	cid, err := c.Call(from, msg, func(resp *protocol.Response, err error) {
		done <- outcome{resp, err}
	})
	if err != nil {
		return nil, err
	}

	select {
	case out := <-done:
		return out.resp, out.err
	case <-ctx.Done():
		c.pending.Reject(cid, ctx.Err())
		return nil, ctx.Err()
	}
}

// Pending exposes the in-flight table.
func (c *Caller) Pending() *Pending {
	return c.pending
}

// Close detaches from the window and rejects in-flight requests.
func (c *Caller) Close() {
	c.remove()
	c.pending.Close()
}

func (c *Caller) onEnvelope(env protocol.Envelope) {
	if env.From != protocol.OriginExtension {
		return
	}
	if kind, _ := env.Kind(); kind != protocol.KindResponse {
		return
	}
	if !c.pending.Resolve(env.ID, env.Response) {
		c.log.Debug("response for unknown request", zap.String("id", env.ID))
	}
}
