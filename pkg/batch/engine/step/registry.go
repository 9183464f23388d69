package step

import (
	"fmt"
	"sort"
	"sync"

	"github.com/tigerroll/lockxfer/pkg/batch/core/config"
	"github.com/tigerroll/lockxfer/pkg/batch/support/util/exception"
	"github.com/tigerroll/lockxfer/pkg/batch/support/util/logger"
)

// Registry maps step names to builders.
type Registry struct {
	mu       sync.RWMutex
	builders map[string]Builder
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{builders: make(map[string]Builder)}
}

// Register adds or replaces the builder for name.
func (r *Registry) Register(name string, b Builder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.builders[name]; ok {
		logger.Warnf("Step builder '%s' is registered twice; the later registration wins.", name)
	}
	r.builders[name] = b
	logger.Debugf("Builder for step '%s' registered.", name)
}

// Names returns the registered step names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.builders))
	for name := range r.builders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Build creates the step declared by sc.
func (r *Registry) Build(cfg *config.Config, sc config.StepConfig) (Step, error) {
	r.mu.RLock()
	b, ok := r.builders[sc.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, exception.NewBatchError(moduleName, fmt.Sprintf("no step registered under '%s' (known: %v)", sc.Name, r.Names()), nil, false, false)
	}
	s, err := b(cfg, sc.Properties)
	if err != nil {
		return nil, exception.NewBatchError(moduleName, fmt.Sprintf("failed to build step '%s'", sc.Name), err, false, false)
	}
	return s, nil
}
