package cron

import (
	"context"
	"fmt"
	"slices"
	"strings"
)

// Job is one scheduled task run by the cron worker.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Registry holds jobs in registration order, keyed by unique name.
type Registry struct {
	jobs []Job
}

func NewRegistry(jobs ...Job) *Registry {
	registry := &Registry{}
	for _, job := range jobs {
		registry.Register(job)
	}
	return registry
}

// Register appends job. Nil jobs are ignored; a second job with a name
// already present panics since that is a wiring bug.
func (r *Registry) Register(job Job) {
	if job == nil {
		return
	}
	if r.index(job.Name()) >= 0 {
		panic(fmt.Sprintf("cron job %q registered twice", job.Name()))
	}
	r.jobs = append(r.jobs, job)
}

// Only keeps the named jobs, preserving registration order. An empty list
// keeps everything.
func (r *Registry) Only(names []string) (*Registry, error) {
	wanted := make([]string, 0, len(names))
	for _, name := range names {
		if name = strings.TrimSpace(name); name != "" {
			wanted = append(wanted, name)
		}
	}
	if len(wanted) == 0 {
		return &Registry{jobs: slices.Clone(r.jobs)}, nil
	}
	for _, name := range wanted {
		if r.index(name) < 0 {
			return nil, fmt.Errorf("unknown cron job %q (have %s)", name, strings.Join(r.Names(), ", "))
		}
	}
	kept := slices.DeleteFunc(slices.Clone(r.jobs), func(job Job) bool {
		return !slices.Contains(wanted, job.Name())
	})
	return &Registry{jobs: kept}, nil
}

func (r *Registry) Jobs() []Job { return slices.Clone(r.jobs) }

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.jobs))
	for _, job := range r.jobs {
		names = append(names, job.Name())
	}
	return names
}

func (r *Registry) index(name string) int {
	return slices.IndexFunc(r.jobs, func(job Job) bool { return job.Name() == name })
}
