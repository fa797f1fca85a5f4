package events

import (
	"errors"

	"github.com/codewandler/esclient-go/core/execution"
)

var (
	ErrUnknownEventType           = errors.New("unknown event type")
	ErrUnableToResolveEventType   = errors.New("unable to resolve event type")
	ErrEventTypeAlreadyAssociated = errors.New("event type already associated")

	ErrUnknownAggregateRoot           = errors.New("unknown aggregate root")
	ErrAggregateRootAlreadyAssociated = errors.New("aggregate root already associated")

	ErrEventSourceIDEmpty                        = errors.New("event source id must not be empty")
	ErrEventLogSequenceNumberMustBeNaturalNumber = errors.New("event log sequence number must be a natural number")
	ErrAggregateRootVersionMustBeNaturalNumber   = errors.New("aggregate root version must be a natural number")

	ErrConversion              = errors.New("event conversion failed")
	ErrMissingExecutionContext = execution.ErrMissingExecutionContext
	ErrUnknownCommit           = errors.New("unknown commit")
)
