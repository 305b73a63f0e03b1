package workers

import (
	"fmt"
	"sort"
	"sync"

	contractx "github.com/tanpawarit/agentloops/agent/contract"
)

// Registry maps worker roles to workers.
type Registry struct {
	mu      sync.RWMutex
	workers map[contractx.WorkerRole]contractx.Worker
}

func NewRegistry() *Registry {
	return &Registry{workers: make(map[contractx.WorkerRole]contractx.Worker, 6)}
}

// Register binds w to role, replacing any previous binding.
func (r *Registry) Register(role contractx.WorkerRole, w contractx.Worker) error {
	if role == "" {
		return fmt.Errorf("%w: worker role is empty", contractx.ErrValidation)
	}
	if w == nil {
		return fmt.Errorf("%w: worker for role=%s is nil", contractx.ErrValidation, role)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.workers[role] = w
	return nil
}

func (r *Registry) MustRegister(role contractx.WorkerRole, w contractx.Worker) *Registry {
	if err := r.Register(role, w); err != nil {
		panic(err)
	}
	return r
}

func (r *Registry) Lookup(role contractx.WorkerRole) (contractx.Worker, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.workers[role]
	if !ok {
		return nil, fmt.Errorf("%w: %s", contractx.ErrWorkerNotFound, role)
	}
	return w, nil
}

func (r *Registry) Has(role contractx.WorkerRole) bool {
	_, err := r.Lookup(role)
	return err == nil
}

// Roles returns the registered roles in sorted order.
func (r *Registry) Roles() []contractx.WorkerRole {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]contractx.WorkerRole, 0, len(r.workers))
	for role := range r.workers {
		out = append(out, role)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// NewPlanTeam registers the researcher, writer and reviewer.
func NewPlanTeam() *Registry {
	return NewRegistry().
		MustRegister(contractx.RoleResearcher, contractx.WorkerFunc(Researcher)).
		MustRegister(contractx.RoleWriter, contractx.WorkerFunc(Writer)).
		MustRegister(contractx.RoleReviewer, contractx.WorkerFunc(Reviewer))
}

// NewRouterTeam registers the coding, weather and general workers. general
// answers through p.
func NewRouterTeam(p contractx.Provider) *Registry {
	return NewRegistry().
		MustRegister(contractx.RoleCoding, contractx.WorkerFunc(Coding)).
		MustRegister(contractx.RoleWeather, contractx.WorkerFunc(Weather)).
		MustRegister(contractx.RoleGeneral, General(p))
}
