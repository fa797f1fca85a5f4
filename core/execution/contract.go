package execution

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/codewandler/esclient-go/core/contracts"
)

func ToContract(ec ExecutionContext) *contracts.ExecutionContext {
	out := &contracts.ExecutionContext{
		MicroserviceID: ec.MicroserviceID,
		TenantID:       ec.TenantID,
		CorrelationID:  ec.CorrelationID,
		Environment:    ec.Environment,
		Version: &contracts.Version{
			Major:      ec.Version.Major,
			Minor:      ec.Version.Minor,
			Patch:      ec.Version.Patch,
			Build:      ec.Version.Build,
			PreRelease: ec.Version.PreRelease,
		},
	}
	for _, c := range ec.Claims {
		out.Claims = append(out.Claims, contracts.Claim{Key: c.Key, Value: c.Value, ValueType: c.ValueType})
	}
	return out
}

// FromContract requires a tenant and a correlation id. The microservice may
// be nil for clients that did not name one.
func FromContract(c *contracts.ExecutionContext) (ExecutionContext, error) {
	if c == nil {
		return ExecutionContext{}, ErrMissingExecutionContext
	}
	if c.TenantID == uuid.Nil {
		return ExecutionContext{}, fmt.Errorf("%w: no tenant id", ErrMissingExecutionContext)
	}
	if c.CorrelationID == uuid.Nil {
		return ExecutionContext{}, fmt.Errorf("%w: no correlation id", ErrMissingExecutionContext)
	}
	ec := ExecutionContext{
		MicroserviceID: c.MicroserviceID,
		TenantID:       c.TenantID,
		CorrelationID:  c.CorrelationID,
		Environment:    c.Environment,
	}
	if v := c.Version; v != nil {
		ec.Version = Version{Major: v.Major, Minor: v.Minor, Patch: v.Patch, Build: v.Build, PreRelease: v.PreRelease}
	}
	for _, cl := range c.Claims {
		ec.Claims = append(ec.Claims, Claim{Key: cl.Key, Value: cl.Value, ValueType: cl.ValueType})
	}
	return ec, nil
}

// CallContext wraps ec for a request.
func CallContext(ec ExecutionContext) *contracts.CallRequestContext {
	return &contracts.CallRequestContext{ExecutionContext: ToContract(ec)}
}
