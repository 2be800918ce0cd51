package config

import (
	"sync"

	"signet/pkg/logging"
)

// Registry provides concurrent access to the loaded provider set and
// supports atomic reload. Provider configs are immutable once loaded;
// a reload swaps the whole snapshot, so pointers handed out earlier keep
// describing the configuration that was current when they were obtained.
type Registry struct {
	mu         sync.RWMutex
	configPath string
	cfg        Config
	providers  map[string]*ProviderConfig
	order      []string
}

// NewRegistry loads the configuration from configPath and returns a registry
// over it. Loading or validation failures surface immediately.
func NewRegistry(configPath string) (*Registry, error) {
	r := &Registry{configPath: configPath}
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// Reload re-reads the configuration from disk and atomically replaces the
// snapshot. On failure the previous snapshot stays in effect.
func (r *Registry) Reload() error {
	cfg, err := LoadConfig(r.configPath)
	if err != nil {
		return err
	}

	providers := make(map[string]*ProviderConfig, len(cfg.Providers))
	order := make([]string, 0, len(cfg.Providers))
	for i := range cfg.Providers {
		p := &cfg.Providers[i]
		providers[p.ID] = p
		order = append(order, p.ID)
	}

	r.mu.Lock()
	r.cfg = cfg
	r.providers = providers
	r.order = order
	r.mu.Unlock()

	return nil
}

// Get returns the provider with the given id.
func (r *Registry) Get(id string) (*ProviderConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[id]
	if !ok {
		return nil, NewProviderNotFoundError(id, r.order)
	}
	return p, nil
}

// List returns all providers in file order.
func (r *Registry) List() []*ProviderConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*ProviderConfig, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.providers[id])
	}
	return out
}

// IDs returns the provider ids in file order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]string(nil), r.order...)
}

// Config returns the current configuration snapshot.
func (r *Registry) Config() Config {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.cfg
}

// Path returns the configuration directory the registry loads from.
func (r *Registry) Path() string {
	return r.configPath
}

// logReloaded is shared by the watcher and the manual reload paths.
func (r *Registry) logReloaded() {
	r.mu.RLock()
	n := len(r.order)
	r.mu.RUnlock()
	logging.Info("Config", "Configuration reloaded, %d providers active", n)
}
