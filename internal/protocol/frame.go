package protocol

import (
	"fmt"

	"github.com/GriffinCanCode/modbridge/internal/shared/types"
	"github.com/bytedance/sonic"
)

// Frame is the Channel A wire unit.
type Frame struct {
	Seq      uint64    `json:"seq"`
	ReplyTo  uint64    `json:"replyTo,omitempty"`
	Kind     Kind      `json:"kind"`
	Message  *Message  `json:"message,omitempty"`
	Response *Response `json:"response,omitempty"`
}

// EncodeFrame serialises f.
func EncodeFrame(f Frame) ([]byte, error) {
	return sonic.Marshal(f)
}

// DecodeFrame parses and validates a frame. Errors wrap types.ErrTransport.
func DecodeFrame(raw []byte) (Frame, error) {
	var f Frame
	if err := sonic.Unmarshal(raw, &f); err != nil {
		return Frame{}, fmt.Errorf("%w: %v", types.ErrTransport, err)
	}
	if err := f.validate(); err != nil {
		return Frame{}, err
	}
	return f, nil
}

func (f Frame) validate() error {
	switch f.Kind {
	case KindRequest, KindPush:
		if f.Message == nil || f.Message.Action == "" {
			return fmt.Errorf("%w: %s frame without action", types.ErrTransport, f.Kind)
		}
		if f.Kind == KindRequest && f.Seq == 0 {
			return fmt.Errorf("%w: request frame without seq", types.ErrTransport)
		}
	case KindResponse:
		if f.Response == nil || f.ReplyTo == 0 {
			return fmt.Errorf("%w: response frame without replyTo", types.ErrTransport)
		}
	default:
		return fmt.Errorf("%w: frame kind %q", types.ErrTransport, f.Kind)
	}
	return nil
}

// Envelope is the Channel B wire unit.
type Envelope struct {
	From     Origin    `json:"from"`
	ID       string    `json:"id,omitempty"`
	Message  *Message  `json:"message,omitempty"`
	Response *Response `json:"response,omitempty"`
}

// Kind classifies e. Envelopes with a message and an id are requests,
// without an id pushes; envelopes with a response and an id are responses.
func (e Envelope) Kind() (Kind, bool) {
	switch {
	case e.Message != nil && e.Message.Action != "" && e.ID != "":
		return KindRequest, true
	case e.Message != nil && e.Message.Action != "":
		return KindPush, true
	case e.Response != nil && e.ID != "":
		return KindResponse, true
	default:
		return "", false
	}
}

// EncodeEnvelope serialises e.
func EncodeEnvelope(e Envelope) ([]byte, error) {
	return sonic.Marshal(e)
}

// DecodeEnvelope parses an envelope. Origin filtering is left to listeners.
func DecodeEnvelope(raw []byte) (Envelope, error) {
	var e Envelope
	if err := sonic.Unmarshal(raw, &e); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", types.ErrTransport, err)
	}
	return e, nil
}
