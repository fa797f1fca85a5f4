package events

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/codewandler/esclient-go/core/artifacts"
	"github.com/codewandler/esclient-go/internal/reflector"
)

// AggregateRootType identifies an aggregate root kind on the wire.
type AggregateRootType = artifacts.Artifact

type AggregateRootTypes struct {
	reg *artifacts.Registry
}

func NewAggregateRootTypes() *AggregateRootTypes {
	return &AggregateRootTypes{reg: artifacts.NewRegistry()}
}

func (r *AggregateRootTypes) Associate(kind reflect.Type, t AggregateRootType) error {
	if err := r.reg.Associate(kind, t); err != nil {
		if errors.Is(err, artifacts.ErrAlreadyAssociated) {
			return fmt.Errorf("%w: %w", ErrAggregateRootAlreadyAssociated, err)
		}
		return err
	}
	return nil
}

func AssociateAggregateRoot[T any](r *AggregateRootTypes, t AggregateRootType) error {
	return r.Associate(reflect.TypeFor[T](), t)
}

func (r *AggregateRootTypes) HasTypeFor(kind reflect.Type) bool {
	_, ok := r.reg.ArtifactFor(kind)
	return ok
}

func (r *AggregateRootTypes) GetTypeFor(kind reflect.Type) (AggregateRootType, error) {
	t, ok := r.reg.ArtifactFor(kind)
	if !ok {
		return AggregateRootType{}, fmt.Errorf("%w: %s", ErrUnknownAggregateRoot, reflector.KindForType(kind))
	}
	return t, nil
}

func (r *AggregateRootTypes) GetFor(t AggregateRootType) (reflect.Type, error) {
	kind, ok := r.reg.KindFor(t)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAggregateRoot, t)
	}
	return kind, nil
}

// ResolveFrom returns explicit when set, else the association of kind.
func (r *AggregateRootTypes) ResolveFrom(kind reflect.Type, explicit AggregateRootType) (AggregateRootType, error) {
	if !explicit.IsZero() {
		return explicit, nil
	}
	if kind == nil {
		return AggregateRootType{}, fmt.Errorf("%w: no aggregate root given", ErrUnknownAggregateRoot)
	}
	return r.GetTypeFor(kind)
}
