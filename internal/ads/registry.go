package ads

import (
	"fmt"
	"sync"

	"github.com/prime-rewards/internal/types"
)

// Registry tracks the lifecycle of each provider slot. Providers are
// declared up front; an integration attaches when its SDK finishes
// loading. Unknown provider names are rejected rather than probed
// dynamically.
type Registry struct {
	mu    sync.RWMutex
	slots map[string]*slot
	order []string
}

type slot struct {
	state       types.SlotState
	integration Integration
}

// NewRegistry creates a registry with every declared provider in the
// not-loaded state
func NewRegistry(providers []string) *Registry {
	slots := make(map[string]*slot, len(providers))
	order := make([]string, 0, len(providers))
	for _, p := range providers {
		if _, dup := slots[p]; dup {
			continue
		}
		slots[p] = &slot{state: types.SlotNotLoaded}
		order = append(order, p)
	}
	return &Registry{slots: slots, order: order}
}

// Providers returns the declared provider names in declaration order
func (r *Registry) Providers() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Known reports whether a provider was declared
func (r *Registry) Known(provider string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.slots[provider]
	return ok
}

// MarkLoading transitions a slot to loading while its SDK is injected
func (r *Registry) MarkLoading(provider string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.slots[provider]
	if !ok {
		return fmt.Errorf("unknown ad provider: %s", provider)
	}
	s.state = types.SlotLoading
	return nil
}

// Register attaches a loaded integration and marks the slot ready
func (r *Registry) Register(provider string, integration Integration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.slots[provider]
	if !ok {
		return fmt.Errorf("unknown ad provider: %s", provider)
	}
	s.integration = integration
	s.state = types.SlotReady
	return nil
}

// MarkFailed records a failed SDK load
func (r *Registry) MarkFailed(provider string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.slots[provider]
	if !ok {
		return fmt.Errorf("unknown ad provider: %s", provider)
	}
	s.integration = nil
	s.state = types.SlotFailed
	return nil
}

// State returns the current lifecycle state of a slot. Unknown
// providers report not-loaded.
func (r *Registry) State(provider string) types.SlotState {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.slots[provider]
	if !ok {
		return types.SlotNotLoaded
	}
	return s.state
}

// Integration returns the attached integration and state for a slot
func (r *Registry) Integration(provider string) (Integration, types.SlotState) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.slots[provider]
	if !ok {
		return nil, types.SlotNotLoaded
	}
	return s.integration, s.state
}
