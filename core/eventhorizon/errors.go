package eventhorizon

import "errors"

var (
	ErrSubscriptionBuilderMethodAlreadyCalled = errors.New("subscription builder method already called")
	ErrSubscriptionDefinitionIncomplete       = errors.New("subscription definition incomplete")
)
