package session

import "errors"

// ErrInvalidArgument is returned when an operation receives a value it
// cannot accept. Nothing is mutated.
var ErrInvalidArgument = errors.New("invalid argument")
