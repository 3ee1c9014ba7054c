package config

import (
	"encoding/json"
	"log/slog"
	"os"
	"sync"

	"github.com/nvollmer/fabula/helper"
	"github.com/nvollmer/fabula/model"
)

// Provider serves configuration snapshots and supports hot reload. Readers
// always see a complete snapshot, never a half updated one: Reload swaps the
// whole value under the write lock.
type Provider struct {
	mu      sync.RWMutex
	current model.Config
	path    string
	log     *slog.Logger
}

// NewProvider creates a provider starting from the built in defaults
func NewProvider(logger *slog.Logger) *Provider {
	return &Provider{
		current: *model.DefaultConfig(),
		log:     logger,
	}
}

// NewProviderFromFile loads the initial configuration from a JSON file.
// Fields absent from the file keep their default values.
func NewProviderFromFile(path string, logger *slog.Logger) (*Provider, error) {
	provider := NewProvider(logger)
	provider.path = path
	if err := provider.Reload(); err != nil {
		return nil, err
	}
	return provider, nil
}

// Snapshot returns a copy of the current configuration. The copy stays valid
// across concurrent reloads.
func (p *Provider) Snapshot() *model.Config {
	p.mu.RLock()
	defer p.mu.RUnlock()

	snapshot := p.current
	return &snapshot
}

// Update replaces the current configuration with a normalized copy of the
// given one
func (p *Provider) Update(config *model.Config) {
	next := *config
	next.Normalize()

	p.mu.Lock()
	p.current = next
	p.mu.Unlock()

	p.log.Info("Configuration updated",
		slog.Int("top_k", next.TopK),
		slog.Float64("distance_threshold", next.DistanceThreshold))
}

// Reload re-reads the backing file. On any error the previous configuration
// stays in effect.
func (p *Provider) Reload() error {
	if p.path == "" {
		return helper.NewError("reload config", os.ErrNotExist)
	}

	data, err := os.ReadFile(p.path)
	if err != nil {
		return helper.NewError("read config file", err)
	}

	next := *model.DefaultConfig()
	if err := json.Unmarshal(data, &next); err != nil {
		return helper.NewError("parse config file", err)
	}
	next.Normalize()

	p.mu.Lock()
	p.current = next
	p.mu.Unlock()

	p.log.Info("Configuration reloaded", slog.String("path", p.path))
	return nil
}
