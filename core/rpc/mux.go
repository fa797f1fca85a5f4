package rpc

import (
	"context"
	"slices"
	"sync"
)

type (
	UnaryHandler  func(ctx context.Context, req []byte) ([]byte, error)
	StreamHandler func(ctx context.Context, s Stream) error
)

// Mux routes methods to handlers on the serving side.
type Mux struct {
	mu      sync.RWMutex
	unary   map[string]UnaryHandler
	streams map[string]StreamHandler
}

func NewMux() *Mux {
	return &Mux{
		unary:   make(map[string]UnaryHandler),
		streams: make(map[string]StreamHandler),
	}
}

func (m *Mux) Handle(method string, h UnaryHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unary[method] = h
}

func (m *Mux) HandleStream(method string, h StreamHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.streams[method] = h
}

func (m *Mux) Unary(method string) (UnaryHandler, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h, ok := m.unary[method]
	return h, ok
}

func (m *Mux) Stream(method string) (StreamHandler, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h, ok := m.streams[method]
	return h, ok
}

// Methods lists the registered unary and stream methods, sorted.
func (m *Mux) Methods() (unary []string, streams []string) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for k := range m.unary {
		unary = append(unary, k)
	}
	for k := range m.streams {
		streams = append(streams, k)
	}
	slices.Sort(unary)
	slices.Sort(streams)
	return
}
