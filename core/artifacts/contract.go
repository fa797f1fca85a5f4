package artifacts

import (
	"github.com/google/uuid"

	"github.com/codewandler/esclient-go/core/contracts"
)

func ToContract(a Artifact) *contracts.Artifact {
	return &contracts.Artifact{ID: a.ID, Generation: uint32(a.Generation)}
}

// FromContract fails with ErrMissingIdentifier when c is absent or carries
// the nil uuid.
func FromContract(c *contracts.Artifact) (Artifact, error) {
	if c == nil || c.ID == uuid.Nil {
		return Artifact{}, ErrMissingIdentifier
	}
	return New(c.ID, Generation(c.Generation)), nil
}
