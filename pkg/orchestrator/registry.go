package orchestrator

import (
	"errors"
	"fmt"
	"sync"

	"github.com/harun/relay/pkg/agent"
)

// Registry maps agent names to agents. It is filled once at composition time;
// runs read it through a Directory snapshot so no lock is taken on the hot path.
type Registry struct {
	agents map[string]agent.Agent
	order  []string
	mu     sync.RWMutex
}

// NewRegistry creates a new agent registry
func NewRegistry() *Registry {
	return &Registry{
		agents: make(map[string]agent.Agent),
	}
}

// Register adds an agent. Registering a name twice fails with ErrDuplicateAgentName.
func (r *Registry) Register(a agent.Agent) error {
	if a == nil {
		return errors.New("agent is required")
	}
	name := a.Name()
	if name == "" {
		return errors.New("agent name is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.agents[name]; exists {
		return &RunError{Kind: KindDuplicateAgentName, Message: fmt.Sprintf("agent already registered: %s", name)}
	}

	r.agents[name] = a
	r.order = append(r.order, name)
	return nil
}

// MustRegister registers agents and panics on error; intended for static wiring
func (r *Registry) MustRegister(agents ...agent.Agent) *Registry {
	for _, a := range agents {
		if err := r.Register(a); err != nil {
			panic(err)
		}
	}
	return r
}

// Get retrieves an agent by name
func (r *Registry) Get(name string) (agent.Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.agents[name]
	return a, ok
}

// All returns the registered agents in registration order
func (r *Registry) All() []agent.Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]agent.Agent, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.agents[name])
	}
	return out
}

// Names returns the registered names in registration order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]string(nil), r.order...)
}

// Len returns the number of registered agents
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.order)
}

// Snapshot captures the current registrations as an immutable Directory
func (r *Registry) Snapshot() Directory {
	r.mu.RLock()
	defer r.mu.RUnlock()

	agents := make(map[string]agent.Agent, len(r.agents))
	for name, a := range r.agents {
		agents[name] = a
	}
	return Directory{agents: agents, order: append([]string(nil), r.order...)}
}

// Directory is a read-only view of a Registry, safe for concurrent use without locking
type Directory struct {
	agents map[string]agent.Agent
	order  []string
}

// Get retrieves an agent by name
func (d Directory) Get(name string) (agent.Agent, bool) {
	a, ok := d.agents[name]
	return a, ok
}

// Names returns the agent names in registration order
func (d Directory) Names() []string {
	return append([]string(nil), d.order...)
}
