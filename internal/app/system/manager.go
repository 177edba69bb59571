package system

import (
	"context"
	"fmt"
	"sync"
)

// Manager starts and stops registered services deterministically: start in
// registration order, stop in reverse.
type Manager struct {
	mu       sync.Mutex
	services []Service
	names    map[string]struct{}
	started  bool
}

// NewManager creates an empty manager.
func NewManager() *Manager {
	return &Manager{names: make(map[string]struct{})}
}

// Register adds a service. Names must be unique and registration closes once
// the manager has started.
func (m *Manager) Register(svc Service) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return fmt.Errorf("manager already started")
	}
	name := svc.Name()
	if name == "" {
		return fmt.Errorf("service name is required")
	}
	if _, exists := m.names[name]; exists {
		return fmt.Errorf("service %s already registered", name)
	}
	m.names[name] = struct{}{}
	m.services = append(m.services, svc)
	return nil
}

// Start starts every registered service in order. A failure stops the
// already-started services in reverse before returning.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return fmt.Errorf("manager already started")
	}
	for i, svc := range m.services {
		if err := svc.Start(ctx); err != nil {
			for j := i - 1; j >= 0; j-- {
				_ = m.services[j].Stop(ctx)
			}
			return fmt.Errorf("start %s: %w", svc.Name(), err)
		}
	}
	m.started = true
	return nil
}

// Stop stops all services in reverse registration order, returning the first
// error encountered after attempting every stop.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.started {
		return nil
	}
	var firstErr error
	for i := len(m.services) - 1; i >= 0; i-- {
		if err := m.services[i].Stop(ctx); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("stop %s: %w", m.services[i].Name(), err)
		}
	}
	m.started = false
	return firstErr
}

// NoopService satisfies the lifecycle for components with no background work.
type NoopService struct {
	ServiceName string
}

func (n NoopService) Name() string                { return n.ServiceName }
func (n NoopService) Start(context.Context) error { return nil }
func (n NoopService) Stop(context.Context) error  { return nil }
