package strategy

import (
	"sort"
	"sync"

	"github.com/newthinker/novaquant/internal/core"
	"go.uber.org/zap"
)

// Registry maps strategy kinds to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	logger    *zap.Logger
}

// NewRegistry creates an empty registry
func NewRegistry(logger ...*zap.Logger) *Registry {
	var l *zap.Logger
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0]
	} else {
		l = zap.NewNop()
	}
	return &Registry{
		factories: make(map[string]Factory),
		logger:    l,
	}
}

// Register adds a factory for kind, replacing any previous one.
func (r *Registry) Register(kind string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[kind]; exists {
		r.logger.Warn("replacing strategy factory", zap.String("kind", kind))
	}
	r.factories[kind] = f
}

// Kinds returns the registered kinds in sorted order.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]string, 0, len(r.factories))
	for k := range r.factories {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// New validates cfg and builds the strategy for cfg.Kind.
func (r *Registry) New(cfg Config) (Strategy, error) {
	r.mu.RLock()
	f, ok := r.factories[cfg.Kind]
	r.mu.RUnlock()
	if !ok {
		return nil, core.Errorf(core.ErrConfigInvalid, "unknown strategy %q", cfg.Kind)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return f(cfg)
}
