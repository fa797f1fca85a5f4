package execution

import (
	"sync"

	"github.com/google/uuid"
)

// Provider supplies the execution context for outgoing calls.
type Provider interface {
	Current() ExecutionContext
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func() ExecutionContext

func (f ProviderFunc) Current() ExecutionContext { return f() }

// Static always provides ec.
func Static(ec ExecutionContext) Provider {
	return ProviderFunc(func() ExecutionContext { return ec })
}

// Manager holds the base execution context of a client. Derived contexts
// are returned, never stored, so concurrent callers cannot observe each
// other's tenant.
type Manager struct {
	mu   sync.RWMutex
	base ExecutionContext
}

func NewManager(microservice uuid.UUID, version Version, environment string) *Manager {
	return &Manager{base: New(microservice, version, environment)}
}

func (m *Manager) Current() ExecutionContext {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.base.clone()
}

// ForTenant derives a context for tenant with a new correlation id.
func (m *Manager) ForTenant(tenant uuid.UUID) ExecutionContext {
	return m.Current().ForTenant(tenant)
}

// SetTenant changes the tenant of the base context.
func (m *Manager) SetTenant(tenant uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.base.TenantID = tenant
}
