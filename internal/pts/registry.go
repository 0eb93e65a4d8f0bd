package pts

import (
	"fmt"
	"sort"
	"sync"
)

// Opener opens a new connection to an engine.
type Opener func() (Engine, error)

// DriverInfo describes a registered engine driver.
type DriverInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type driver struct {
	open        Opener
	description string
}

// Registry holds the engine drivers available to the process and opens the
// one selected by configuration.
type Registry struct {
	mu      sync.RWMutex
	drivers map[string]driver
}

// NewRegistry creates an empty driver registry.
func NewRegistry() *Registry {
	return &Registry{
		drivers: make(map[string]driver),
	}
}

// Register adds a driver under the given name, replacing any previous one.
func (r *Registry) Register(name, description string, open Opener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.drivers[name] = driver{open: open, description: description}
}

// Open connects to the engine provided by the named driver.
func (r *Registry) Open(name string) (Engine, error) {
	r.mu.RLock()
	d, ok := r.drivers[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("engine driver %q is not registered", name)
	}

	eng, err := d.open()
	if err != nil {
		return nil, fmt.Errorf("open engine %q: %w", name, err)
	}
	return eng, nil
}

// List returns the registered drivers sorted by name.
func (r *Registry) List() []DriverInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]DriverInfo, 0, len(r.drivers))
	for name, d := range r.drivers {
		infos = append(infos, DriverInfo{Name: name, Description: d.description})
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Name < infos[j].Name
	})
	return infos
}
