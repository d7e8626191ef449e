package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/GriffinCanCode/modbridge/internal/shared/types"
	"github.com/bytedance/sonic"
)

// Message is an action with an optional payload.
type Message struct {
	Action Action          `json:"action"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// NewMessage encodes data as the payload of action. A nil data leaves the
// payload empty.
func NewMessage(action Action, data interface{}) (Message, error) {
	msg := Message{Action: action}
	if data == nil {
		return msg, nil
	}
	raw, err := sonic.Marshal(data)
	if err != nil {
		return Message{}, fmt.Errorf("encode %s payload: %w", action, err)
	}
	msg.Data = raw
	return msg, nil
}

// Decode unmarshals the payload into v. An empty payload leaves v untouched.
func (m Message) Decode(v interface{}) error {
	if len(m.Data) == 0 || string(m.Data) == "null" {
		return nil
	}
	if err := sonic.Unmarshal(m.Data, v); err != nil {
		return fmt.Errorf("%w: %s payload: %v", types.ErrTransport, m.Action, err)
	}
	return nil
}

// Response answers a request.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// OK builds a successful response carrying data.
func OK(data interface{}) *Response {
	if data == nil {
		return &Response{Success: true}
	}
	raw, err := sonic.Marshal(data)
	if err != nil {
		return Fail(fmt.Errorf("encode response: %w", err))
	}
	return &Response{Success: true, Data: raw}
}

// Fail builds a failed response from err.
func Fail(err error) *Response {
	if err == nil {
		err = errors.New("unknown error")
	}
	return &Response{Success: false, Error: err.Error()}
}

// Decode unmarshals the response payload into v.
func (r *Response) Decode(v interface{}) error {
	if len(r.Data) == 0 || string(r.Data) == "null" {
		return nil
	}
	if err := sonic.Unmarshal(r.Data, v); err != nil {
		return fmt.Errorf("%w: response payload: %v", types.ErrTransport, err)
	}
	return nil
}

// Err returns nil for a successful response and a RemoteError otherwise.
func (r *Response) Err() error {
	if r == nil {
		return &RemoteError{Message: "empty response"}
	}
	if r.Success {
		return nil
	}
	return &RemoteError{Message: r.Error}
}

// RemoteError is a failure reported by the other side of a channel.
type RemoteError struct {
	Message string
}

func (e *RemoteError) Error() string {
	if e.Message == "" {
		return "request failed"
	}
	return e.Message
}
