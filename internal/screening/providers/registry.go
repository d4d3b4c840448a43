package providers

import (
	"fmt"
	"slices"
)

// Environment names recognised when picking a default provider.
const (
	EnvProduction  = "production"
	EnvStaging     = "staging"
	EnvDevelopment = "development"
	EnvTest        = "test"
)

// Provider IDs.
const (
	Checkr   = "checkr"
	Sterling = "sterling"
	Fake     = "fake"
)

// Registry is an immutable set of providers built once at startup. Reads
// need no locking.
type Registry struct {
	providers map[string]Provider
	def       Provider
}

// NewRegistry indexes providers by ID and resolves the default: override
// when set, otherwise checkr in production, sterling in staging and the
// fake everywhere else.
func NewRegistry(env, override string, ps ...Provider) (*Registry, error) {
	if len(ps) == 0 {
		return nil, fmt.Errorf("no screening providers configured")
	}
	r := &Registry{providers: make(map[string]Provider, len(ps))}
	for _, p := range ps {
		id := p.ID()
		if _, exists := r.providers[id]; exists {
			return nil, fmt.Errorf("provider %s already registered", id)
		}
		r.providers[id] = p
	}

	name := override
	if name == "" {
		name = DefaultFor(env)
	}
	def, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: default %q not registered (have %v)", ErrProviderNotFound, name, r.IDs())
	}
	r.def = def
	return r, nil
}

// DefaultFor returns the provider ID used in env.
func DefaultFor(env string) string {
	switch env {
	case EnvProduction:
		return Checkr
	case EnvStaging:
		return Sterling
	default:
		return Fake
	}
}

func (r *Registry) Get(id string) (Provider, bool) {
	p, ok := r.providers[id]
	return p, ok
}

func (r *Registry) Default() Provider {
	return r.def
}

// IDs returns registered provider IDs in sorted order.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.providers))
	for id := range r.providers {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
