package statemachine

import (
	"errors"
	"fmt"

	"github.com/cbodonnell/gameflow/pkg/flow"
)

var (
	// ErrTransitionInProgress is returned when a transition is requested
	// while another one has not finished its enter hook.
	ErrTransitionInProgress = errors.New("transition in progress")
	// ErrHookTimeout is returned when an enter or exit hook does not
	// complete within the configured hook timeout.
	ErrHookTimeout = errors.New("hook timed out")
	// ErrAlreadyInitialized is returned by Init when called twice.
	ErrAlreadyInitialized = errors.New("state machine already initialized")
)

// ErrUnknownMode is a configuration error: the mode has no registered hooks.
type ErrUnknownMode struct {
	Mode flow.Mode
}

func (e *ErrUnknownMode) Error() string {
	return fmt.Sprintf("unknown mode: %s (%d)", e.Mode, int(e.Mode))
}

func IsUnknownMode(err error) bool {
	var target *ErrUnknownMode
	return errors.As(err, &target)
}
