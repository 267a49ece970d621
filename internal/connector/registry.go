package connector

import (
	"fmt"
	"sort"
	"sync"
)

// Factory returns an unconnected Connector.
type Factory func() Connector

// Registry maps driver names to factories and service names to their open
// connector. It is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	active    map[string]Connector
}

func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		active:    make(map[string]Connector),
	}
}

// RegisterDriver makes driver available to Connect, replacing any earlier factory.
func (r *Registry) RegisterDriver(driver string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[driver] = factory
}

// Connect opens a connector for serviceName with the factory registered for
// cfg.Driver, after running the DSN through SanitizeDSN. A connector already
// open under the same name is closed once the new one is up.
func (r *Registry) Connect(serviceName string, cfg ConnectionConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	factory, ok := r.factories[cfg.Driver]
	if !ok {
		return fmt.Errorf("unsupported driver: %s (available: %v)", cfg.Driver, r.availableDrivers())
	}

	cfg.DSN = SanitizeDSN(cfg.Driver, cfg.DSN)
	conn := factory()
	if err := conn.Connect(cfg); err != nil {
		return fmt.Errorf("failed to connect service %q: %w", serviceName, err)
	}

	if existing, ok := r.active[serviceName]; ok {
		existing.Disconnect()
	}

	r.active[serviceName] = conn
	return nil
}

// Get returns the open connector of a service.
func (r *Registry) Get(serviceName string) (Connector, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, ok := r.active[serviceName]
	if !ok {
		return nil, fmt.Errorf("service %q not found (available: %v)", serviceName, r.activeServices())
	}
	return conn, nil
}

// Disconnect closes a service and forgets it.
func (r *Registry) Disconnect(serviceName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.active[serviceName]
	if !ok {
		return fmt.Errorf("service %q not found", serviceName)
	}

	err := conn.Disconnect()
	delete(r.active, serviceName)
	return err
}

// CloseAll closes every open service.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for name, conn := range r.active {
		conn.Disconnect()
		delete(r.active, name)
	}
}

// ListServices returns the open service names, sorted.
func (r *Registry) ListServices() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.activeServices()
}

// Drivers returns the registered driver names, sorted.
func (r *Registry) Drivers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.availableDrivers()
}

func (r *Registry) availableDrivers() []string {
	drivers := make([]string, 0, len(r.factories))
	for d := range r.factories {
		drivers = append(drivers, d)
	}
	sort.Strings(drivers)
	return drivers
}

func (r *Registry) activeServices() []string {
	names := make([]string, 0, len(r.active))
	for n := range r.active {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
