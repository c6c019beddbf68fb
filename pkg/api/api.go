// Package api defines the JSON messages exchanged between the fleet server
// and remote controllers over websocket.
package api

import (
	"errors"
	"fmt"
)

// Op selects what a Request asks the server to do.
type Op string

const (
	// OpSend publishes a command message on a medium. It is the default.
	OpSend Op = "send"
	// OpCreate adds a ship to the fleet.
	OpCreate Op = "create"
)

// Request is a client to server message.
//
//	{"medium":"mediator","event":"command","id":"A","command":"run"}
type Request struct {
	Seq      uint64       `json:"seq,omitempty"`
	Op       Op           `json:"op,omitempty"`
	Medium   string       `json:"medium,omitempty"`
	Event    string       `json:"event,omitempty"`
	ID       string       `json:"id"`
	Command  string       `json:"command,omitempty"`
	Bindings []Binding    `json:"bindings,omitempty"`
	Options  *ShipOptions `json:"options,omitempty"`
}

// Binding asks a created ship to listen to Events on Medium.
type Binding struct {
	Medium string   `json:"medium"`
	Events []string `json:"events"`
}

// ShipOptions are the remote creation options. Rates are fixed amounts per
// frame; scripted rates are only accepted from the config file.
type ShipOptions struct {
	Speed    float64  `json:"speed,omitempty"`
	Energy   float64  `json:"energy,omitempty"`
	Height   float64  `json:"height,omitempty"`
	State    string   `json:"state,omitempty"`
	Consume  *float64 `json:"energy_consume,omitempty"`
	Recharge *float64 `json:"energy_recharge,omitempty"`
}

var ErrInvalidRequest = errors.New("invalid request")

// Normalize fills the default op and checks required fields.
func (r *Request) Normalize() error {
	if r.Op == "" {
		r.Op = OpSend
	}
	switch r.Op {
	case OpSend:
		if r.Medium == "" || r.Event == "" {
			return fmt.Errorf("%w: send needs medium and event", ErrInvalidRequest)
		}
		if r.Command == "" {
			return fmt.Errorf("%w: send needs a command", ErrInvalidRequest)
		}
	case OpCreate:
		for i, b := range r.Bindings {
			if b.Medium == "" {
				return fmt.Errorf("%w: bindings[%d] has no medium", ErrInvalidRequest, i)
			}
		}
	default:
		return fmt.Errorf("%w: unknown op %q", ErrInvalidRequest, r.Op)
	}
	return nil
}

// Message types sent by the server.
const (
	TypeReply = "reply"
	TypeFrame = "frame"
)

// Message is a server to client message. Exactly one of Reply and Frame is
// set, matching Type.
type Message struct {
	Type  string `json:"type"`
	Reply *Reply `json:"reply,omitempty"`
	Frame *Frame `json:"frame,omitempty"`
}

// Reply answers the Request with the same Seq. Code carries the fleet error
// code: 1 duplicate id, 2 fleet full, 3 bad medium.
type Reply struct {
	Seq   uint64 `json:"seq"`
	OK    bool   `json:"ok"`
	Code  int    `json:"code,omitempty"`
	Error string `json:"error,omitempty"`
}

// Frame is the fleet state after a tick.
type Frame struct {
	Seq     uint64   `json:"seq"`
	Ships   []Ship   `json:"ships"`
	Removed []string `json:"removed,omitempty"`
}

// Ship is one ship in a Frame.
type Ship struct {
	ID       string  `json:"id"`
	Rotation float64 `json:"rotation"`
	Energy   float64 `json:"energy"`
	Label    string  `json:"label"`
}
