// Package artifacts identifies application types on the wire.
//
// An [Artifact] is an (id, generation) pair. The id names a kind of thing
// (an event, an aggregate root), the generation names a schema version of it.
// A [Registry] associates Go types with artifacts in both directions.
package artifacts

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

var (
	ErrAlreadyAssociated = errors.New("already associated")
	ErrMissingIdentifier = errors.New("artifact identifier missing")
	ErrInvalidIdentifier = errors.New("artifact identifier invalid")
)

type Generation uint32

const FirstGeneration Generation = 0

// Artifact is comparable: two artifacts are equal iff id and generation match.
type Artifact struct {
	ID         uuid.UUID
	Generation Generation
}

func New(id uuid.UUID, gen Generation) Artifact {
	return Artifact{ID: id, Generation: gen}
}

// Parse reads id as a uuid.
func Parse(id string, gen Generation) (Artifact, error) {
	u, err := uuid.Parse(id)
	if err != nil {
		return Artifact{}, fmt.Errorf("%w: %q: %v", ErrInvalidIdentifier, id, err)
	}
	return New(u, gen), nil
}

// MustParse is Parse for static declarations; it panics on a malformed id.
func MustParse(id string, gen Generation) Artifact {
	a, err := Parse(id, gen)
	if err != nil {
		panic(err)
	}
	return a
}

func (a Artifact) IsZero() bool { return a.ID == uuid.Nil }

func (a Artifact) String() string { return fmt.Sprintf("%s/%d", a.ID, a.Generation) }

func (a Artifact) SlogAttr() slog.Attr { return a.SlogAttrWithKey("artifact") }

func (a Artifact) SlogAttrWithKey(key string) slog.Attr {
	return slog.Group(key,
		slog.String("id", a.ID.String()),
		slog.Int("generation", int(a.Generation)),
	)
}
