package cron

import (
	"fmt"
	"sort"
	"sync"
)

// Registry holds the known jobs. Registration happens at startup; lookups
// happen on every scheduled or HTTP-triggered run.
type Registry struct {
	mu   sync.RWMutex
	jobs map[string]Job
}

func NewRegistry() *Registry {
	return &Registry{jobs: make(map[string]Job)}
}

func (r *Registry) Register(job Job) error {
	if job == nil || job.Name() == "" {
		return fmt.Errorf("cron: job must have a name")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.jobs[job.Name()]; exists {
		return fmt.Errorf("cron: job %q already registered", job.Name())
	}
	r.jobs[job.Name()] = job
	return nil
}

func (r *Registry) Get(name string) (Job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[name]
	return job, ok
}

// All returns the registered jobs in name order.
func (r *Registry) All() []Job {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.jobs))
	for name := range r.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	jobs := make([]Job, 0, len(names))
	for _, name := range names {
		jobs = append(jobs, r.jobs[name])
	}
	return jobs
}
