// Package scenarios holds the built-in map editor workflows and the
// registry the CLI looks scenarios up in.
package scenarios

import (
	"fmt"
	"sort"
	"sync"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/mapcheck/internal/scenario"
)

// Registry maps scenario names to scenarios. Built-ins and definition
// files share one namespace.
type Registry struct {
	scenarios map[string]*scenario.Scenario
	logger    arbor.ILogger
	mu        sync.RWMutex
}

// NewRegistry creates an empty registry
func NewRegistry(logger arbor.ILogger) *Registry {
	return &Registry{
		scenarios: make(map[string]*scenario.Scenario),
		logger:    logger,
	}
}

// NewDefaultRegistry creates a registry holding every built-in scenario
func NewDefaultRegistry(logger arbor.ILogger) *Registry {
	r := NewRegistry(logger)
	for _, sc := range Builtins() {
		// built-in names are unique
		_ = r.Register(sc)
	}
	return r
}

// Register adds sc. Invalid scenarios and duplicate names are rejected.
func (r *Registry) Register(sc *scenario.Scenario) error {
	if sc == nil {
		return fmt.Errorf("scenario cannot be nil")
	}
	if err := sc.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, exists := r.scenarios[sc.Name]; exists {
		return fmt.Errorf("scenario %s already registered (from %s)", sc.Name, sourceOf(existing))
	}
	r.scenarios[sc.Name] = sc

	r.logger.Debug().
		Str("scenario", sc.Name).
		Str("source", sourceOf(sc)).
		Int("steps", len(sc.Steps)).
		Msg("Scenario registered")
	return nil
}

// RegisterAll adds each scenario, logging and skipping the ones that cannot be registered
func (r *Registry) RegisterAll(list []*scenario.Scenario) int {
	added := 0
	for _, sc := range list {
		if err := r.Register(sc); err != nil {
			r.logger.Warn().Err(err).Str("source", sourceOf(sc)).Msg("Scenario not registered")
			continue
		}
		added++
	}
	return added
}

// Get returns the scenario called name
func (r *Registry) Get(name string) (*scenario.Scenario, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sc, ok := r.scenarios[name]
	if !ok {
		return nil, fmt.Errorf("unknown scenario %q", name)
	}
	return sc, nil
}

// Lookup resolves names in order. An empty list selects every scenario.
func (r *Registry) Lookup(names []string) ([]*scenario.Scenario, error) {
	if len(names) == 0 {
		return r.List(), nil
	}
	out := make([]*scenario.Scenario, 0, len(names))
	for _, name := range names {
		sc, err := r.Get(name)
		if err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, nil
}

// List returns every registered scenario sorted by name
func (r *Registry) List() []*scenario.Scenario {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*scenario.Scenario, 0, len(r.scenarios))
	for _, sc := range r.scenarios {
		out = append(out, sc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func sourceOf(sc *scenario.Scenario) string {
	if sc == nil || sc.Source == "" {
		return "built-in"
	}
	return sc.Source
}
