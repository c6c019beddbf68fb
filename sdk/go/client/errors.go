package client

import (
	"errors"
	"fmt"

	"github.com/zeusync/orbitfleet/internal/fleet"
)

// Client-specific errors
var (
	ErrClientClosed  = errors.New("client is closed")
	ErrInvalidConfig = errors.New("invalid client configuration")
	ErrInvalidReply  = errors.New("invalid reply")
)

// ReplyError is a request the server refused. It matches the fleet errors
// its code stands for, so errors.Is(err, fleet.ErrDuplicateID) works on it.
type ReplyError struct {
	Code    int
	Message string
}

func (e *ReplyError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("server error %d: %s", e.Code, e.Message)
	}
	return "server error: " + e.Message
}

func (e *ReplyError) Is(target error) bool {
	switch e.Code {
	case 1:
		return target == fleet.ErrDuplicateID
	case 2:
		return target == fleet.ErrCapacityExceeded
	case 3:
		return target == fleet.ErrInvalidSubscription
	default:
		return false
	}
}
