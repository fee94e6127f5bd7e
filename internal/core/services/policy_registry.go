package services

import (
	"fmt"
	"sync"

	"github.com/JeanGrijp/admission-control/internal/core/domain"
)

// PolicyRegistry guarda o conjunto ativo de políticas e resolve qual
// delas vale para uma checagem: o override de caminho exato vence o
// default da categoria. Função pura de config + ambiente, sem I/O.
type PolicyRegistry struct {
	mu  sync.RWMutex
	set domain.PolicySet
}

func NewPolicyRegistry(set domain.PolicySet) (*PolicyRegistry, error) {
	if err := set.Validate(); err != nil {
		return nil, fmt.Errorf("invalid policy set: %w", err)
	}
	return &PolicyRegistry{set: clonePolicySet(set)}, nil
}

// Policy resolve a política efetiva da categoria para o caminho dado.
func (r *PolicyRegistry) Policy(cat domain.Category, path string) domain.LimitPolicy {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if override, ok := r.set.Overrides[path]; ok {
		return override
	}
	return r.set.Policies[cat]
}

// Override devolve o override de caminho exato, quando existir.
func (r *PolicyRegistry) Override(path string) (domain.LimitPolicy, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.set.Overrides[path]
	return p, ok
}

// Reload troca o conjunto ativo atomicamente. Os contadores existentes
// não são tocados: só a régua muda, não o histórico.
func (r *PolicyRegistry) Reload(set domain.PolicySet) error {
	if err := set.Validate(); err != nil {
		return fmt.Errorf("invalid policy set: %w", err)
	}

	cloned := clonePolicySet(set)

	r.mu.Lock()
	r.set = cloned
	r.mu.Unlock()
	return nil
}

func clonePolicySet(set domain.PolicySet) domain.PolicySet {
	out := domain.PolicySet{
		Policies:  make(map[domain.Category]domain.LimitPolicy, len(set.Policies)),
		Overrides: make(map[string]domain.LimitPolicy, len(set.Overrides)),
	}
	for c, p := range set.Policies {
		out.Policies[c] = p
	}
	for path, p := range set.Overrides {
		out.Overrides[path] = p
	}
	return out
}
