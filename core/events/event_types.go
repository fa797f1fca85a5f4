package events

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/google/uuid"

	"github.com/codewandler/esclient-go/core/artifacts"
	"github.com/codewandler/esclient-go/internal/reflector"
)

// EventType identifies a schema version of an event kind.
type EventType = artifacts.Artifact

func NewEventType(id uuid.UUID, gen artifacts.Generation) EventType {
	return artifacts.New(id, gen)
}

// EventTypeFrom parses id as an event type of the first generation.
func EventTypeFrom(id string) (EventType, error) {
	return artifacts.Parse(id, artifacts.FirstGeneration)
}

func MustEventType(id string, gen artifacts.Generation) EventType {
	return artifacts.MustParse(id, gen)
}

// TypedEvent is implemented by content that names its own event type.
type TypedEvent interface {
	EventType() EventType
}

// EventTypes associates Go types with event types. Associations are made at
// startup; lookups are safe for concurrent use.
type EventTypes struct {
	reg *artifacts.Registry
}

func NewEventTypes() *EventTypes {
	return &EventTypes{reg: artifacts.NewRegistry()}
}

// Associate binds kind to et. Re-associating the identical pair is a no-op.
func (r *EventTypes) Associate(kind reflect.Type, et EventType) error {
	if err := r.reg.Associate(kind, et); err != nil {
		if errors.Is(err, artifacts.ErrAlreadyAssociated) {
			return fmt.Errorf("%w: %w", ErrEventTypeAlreadyAssociated, err)
		}
		return err
	}
	return nil
}

func (r *EventTypes) MustAssociate(kind reflect.Type, et EventType) {
	if err := r.Associate(kind, et); err != nil {
		panic(err)
	}
}

func AssociateEventType[T any](r *EventTypes, et EventType) error {
	return r.Associate(reflect.TypeFor[T](), et)
}

func MustAssociateEventType[T any](r *EventTypes, et EventType) {
	r.MustAssociate(reflect.TypeFor[T](), et)
}

func (r *EventTypes) HasTypeFor(kind reflect.Type) bool {
	_, ok := r.reg.ArtifactFor(kind)
	return ok
}

func (r *EventTypes) GetTypeFor(kind reflect.Type) (EventType, error) {
	et, ok := r.reg.ArtifactFor(kind)
	if !ok {
		return EventType{}, fmt.Errorf("%w: %s", ErrUnknownEventType, reflector.KindForType(kind))
	}
	return et, nil
}

func (r *EventTypes) HasFor(et EventType) bool {
	_, ok := r.reg.KindFor(et)
	return ok
}

// GetFor returns the Go type associated with et.
func (r *EventTypes) GetFor(et EventType) (reflect.Type, error) {
	kind, ok := r.reg.KindFor(et)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEventType, et)
	}
	return kind, nil
}

func (r *EventTypes) Kinds() []reflect.Type { return r.reg.Kinds() }

// ResolveFrom determines the event type of content. A non-zero explicit
// type is used as is. Otherwise content naming its own type wins over the
// association of its dynamic type.
//
// Content of an unnamed type (a map or struct literal) without an explicit
// type fails with ErrUnableToResolveEventType. Content of a named type that
// was never associated fails with ErrUnableToResolveEventType wrapping
// ErrUnknownEventType.
func (r *EventTypes) ResolveFrom(content any, explicit EventType) (EventType, error) {
	if !explicit.IsZero() {
		return explicit, nil
	}
	if v := reflect.ValueOf(content); v.Kind() == reflect.Pointer && v.IsNil() {
		return EventType{}, fmt.Errorf("%w: no content: nil %T", ErrUnableToResolveEventType, content)
	}
	if te, ok := content.(TypedEvent); ok {
		if et := te.EventType(); !et.IsZero() {
			return et, nil
		}
	}

	kind := reflector.KindOf(content)
	if kind.IsZero() {
		return EventType{}, fmt.Errorf("%w: no content", ErrUnableToResolveEventType)
	}
	if et, ok := r.reg.ArtifactFor(kind.Type); ok {
		return et, nil
	}
	if !kind.Named {
		return EventType{}, fmt.Errorf("%w: %s", ErrUnableToResolveEventType, kind)
	}
	return EventType{}, fmt.Errorf("%w: %w: %s", ErrUnableToResolveEventType, ErrUnknownEventType, kind)
}
