package fleet

import "errors"

// Fleet construction errors
var (
	ErrDuplicateID         = errors.New("ship id already registered")
	ErrCapacityExceeded    = errors.New("fleet capacity exceeded")
	ErrInvalidSubscription = errors.New("invalid medium subscription")
)

// ErrorCode maps construction errors to the numeric codes remote clients
// understand: 1 duplicate id, 2 too many ships, 3 bad medium binding.
// Any other error yields 0.
func ErrorCode(err error) int {
	switch {
	case errors.Is(err, ErrDuplicateID):
		return 1
	case errors.Is(err, ErrCapacityExceeded):
		return 2
	case errors.Is(err, ErrInvalidSubscription):
		return 3
	default:
		return 0
	}
}
