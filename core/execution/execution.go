// Package execution describes who performs an operation against the runtime.
//
// An ExecutionContext is an immutable value passed explicitly with every
// call. Switching tenants yields a new value with its own correlation id.
package execution

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrMissingExecutionContext = errors.New("execution context missing")
	ErrInvalidVersion          = errors.New("invalid version")
)

var (
	// DevelopmentTenant is the tenant used when none is configured.
	DevelopmentTenant = uuid.MustParse("445f8ea8-1a6f-40d7-b2fc-796dba92dc44")
	SystemTenant      = uuid.MustParse("08831584-e016-42f6-bc5e-c6f4b4f98d09")
)

const DefaultEnvironment = "Development"

type (
	Version struct {
		Major, Minor, Patch, Build int
		PreRelease                 string
	}

	Claim struct {
		Key       string
		Value     string
		ValueType string
	}

	ExecutionContext struct {
		MicroserviceID uuid.UUID
		TenantID       uuid.UUID
		Version        Version
		CorrelationID  uuid.UUID
		Environment    string
		Claims         []Claim
	}
)

// ParseVersion reads "major.minor.patch[.build][-prerelease]".
func ParseVersion(s string) (Version, error) {
	var v Version
	s = strings.TrimPrefix(strings.TrimSpace(s), "v")
	if s == "" {
		return v, nil
	}
	core, pre, _ := strings.Cut(s, "-")
	v.PreRelease = pre

	parts := strings.Split(core, ".")
	if len(parts) < 3 || len(parts) > 4 {
		return Version{}, fmt.Errorf("%w: %q", ErrInvalidVersion, s)
	}
	nums := []*int{&v.Major, &v.Minor, &v.Patch, &v.Build}
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return Version{}, fmt.Errorf("%w: %q", ErrInvalidVersion, s)
		}
		*nums[i] = n
	}
	return v, nil
}

func (v Version) String() string {
	s := fmt.Sprintf("%d.%d.%d.%d", v.Major, v.Minor, v.Patch, v.Build)
	if v.PreRelease != "" {
		s += "-" + v.PreRelease
	}
	return s
}

// New returns a context for microservice with a fresh correlation id and
// the development tenant.
func New(microservice uuid.UUID, version Version, environment string) ExecutionContext {
	if environment == "" {
		environment = DefaultEnvironment
	}
	return ExecutionContext{
		MicroserviceID: microservice,
		TenantID:       DevelopmentTenant,
		Version:        version,
		CorrelationID:  uuid.New(),
		Environment:    environment,
	}
}

// ForTenant returns a copy acting for tenant, with a new correlation id.
func (ec ExecutionContext) ForTenant(tenant uuid.UUID) ExecutionContext {
	out := ec.clone()
	out.TenantID = tenant
	out.CorrelationID = uuid.New()
	return out
}

func (ec ExecutionContext) ForCorrelation(id uuid.UUID) ExecutionContext {
	out := ec.clone()
	out.CorrelationID = id
	return out
}

func (ec ExecutionContext) WithClaims(claims ...Claim) ExecutionContext {
	out := ec.clone()
	out.Claims = append(out.Claims, claims...)
	return out
}

func (ec ExecutionContext) clone() ExecutionContext {
	out := ec
	if ec.Claims != nil {
		out.Claims = append([]Claim(nil), ec.Claims...)
	}
	return out
}

func (ec ExecutionContext) SlogAttr() slog.Attr {
	return slog.Group("execution_context",
		slog.String("microservice", ec.MicroserviceID.String()),
		slog.String("tenant", ec.TenantID.String()),
		slog.String("correlation", ec.CorrelationID.String()),
		slog.String("environment", ec.Environment),
	)
}
