package handling

import (
	"errors"
	"fmt"

	"github.com/codewandler/esclient-go/core/events"
)

var (
	ErrMissingEventHandlerForType = errors.New("missing event handler for type")
	ErrEventHandlerAlreadyDefined = errors.New("event handler already defined")
	ErrEventTypeAlreadyHandled    = errors.New("event type already handled")
	ErrUnexpectedContent          = errors.New("unexpected event content")
	ErrRegistrationFailed         = errors.New("event handler registration failed")
	ErrProcessingStopped          = errors.New("event processing stopped by runtime")
)

// MissingEventHandlerForTypeError names the event type no callback is bound to.
type MissingEventHandlerForTypeError struct {
	EventType events.EventType
}

func (e *MissingEventHandlerForTypeError) Error() string {
	return fmt.Sprintf("%s: %s", ErrMissingEventHandlerForType, e.EventType)
}

func (e *MissingEventHandlerForTypeError) Is(target error) bool {
	return target == ErrMissingEventHandlerForType
}
