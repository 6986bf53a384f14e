package circuitbreaker

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/printz/fulfillment-backend/pkg/config"
	pkgerrors "github.com/printz/fulfillment-backend/pkg/errors"
	"github.com/printz/fulfillment-backend/pkg/logger"
)

const (
	StateClosed   = "CLOSED"
	StateOpen     = "OPEN"
	StateHalfOpen = "HALF_OPEN"
)

// Status is the externally visible view of one breaker.
type Status struct {
	Name                string    `json:"name"`
	State               string    `json:"state"`
	ConsecutiveFailures uint32    `json:"consecutiveFailures"`
	TotalFailures       uint32    `json:"totalFailures"`
	TotalSuccesses      uint32    `json:"totalSuccesses"`
	FailureThreshold    int       `json:"failureThreshold"`
	ResetTimeoutSeconds float64   `json:"resetTimeoutSeconds"`
	LastStateChangeAt   time.Time `json:"lastStateChangeAt"`
}

type stateObserver interface {
	SetBreakerState(carrier string, state int)
}

type entry struct {
	cb        *gobreaker.CircuitBreaker[any]
	mu        sync.Mutex
	changedAt time.Time
}

func (e *entry) touch() {
	e.mu.Lock()
	e.changedAt = time.Now().UTC()
	e.mu.Unlock()
}

func (e *entry) lastChange() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.changedAt
}

// Registry owns one breaker per carrier. Reset swaps in a fresh breaker.
type Registry struct {
	mu       sync.RWMutex
	breakers map[string]*entry
	cfg      config.CircuitBreakerConfig
	metrics  stateObserver
	logg     *logger.Logger
}

func NewRegistry(cfg config.CircuitBreakerConfig, metrics stateObserver, logg *logger.Logger) *Registry {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Registry{breakers: map[string]*entry{}, cfg: cfg, metrics: metrics, logg: logg}
}

// Register creates the breaker for name if it does not exist yet.
func (r *Registry) Register(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.breakers[name]; ok {
		return
	}
	r.breakers[name] = r.newEntry(name)
}

func (r *Registry) newEntry(name string) *entry {
	e := &entry{changedAt: time.Now().UTC()}
	threshold := uint32(r.cfg.FailureThreshold)
	e.cb = gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     r.cfg.ResetTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: countsAsSuccess,
		OnStateChange: func(name string, from, to gobreaker.State) {
			e.touch()
			r.observe(name, to)
			r.logg.Warn(r.logg.WithFields(context.Background(), map[string]any{
				"breaker": name,
				"from":    stateName(from),
				"to":      stateName(to),
			}), "circuit breaker state changed")
		},
	})
	r.observe(name, gobreaker.StateClosed)
	return e
}

// countsAsSuccess keeps caller mistakes from tripping the breaker. Only
// dependency and internal failures count against the carrier.
func countsAsSuccess(err error) bool {
	if err == nil {
		return true
	}
	var typed *pkgerrors.Error
	if errors.As(err, &typed) {
		switch typed.Code() {
		case pkgerrors.CodeValidation, pkgerrors.CodeNotFound, pkgerrors.CodeConflict:
			return true
		}
	}
	return false
}

func (r *Registry) observe(name string, state gobreaker.State) {
	if r.metrics == nil {
		return
	}
	value := 0
	switch state {
	case gobreaker.StateHalfOpen:
		value = 1
	case gobreaker.StateOpen:
		value = 2
	}
	r.metrics.SetBreakerState(name, value)
}

// Execute runs fn through the named breaker. An open breaker fails fast
// with a dependency error and fn is not called.
func (r *Registry) Execute(name string, fn func() (any, error)) (any, error) {
	r.mu.RLock()
	e, ok := r.breakers[name]
	r.mu.RUnlock()
	if !ok {
		return fn()
	}
	out, err := e.cb.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, name+" is temporarily unavailable").
			WithDetails(map[string]any{"breaker": name, "state": stateName(e.cb.State())})
	}
	return out, err
}

func (r *Registry) List() []Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Status, 0, len(r.breakers))
	for name, e := range r.breakers {
		out = append(out, r.status(name, e))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (r *Registry) Get(name string) (Status, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.breakers[name]
	if !ok {
		return Status{}, pkgerrors.New(pkgerrors.CodeNotFound, "circuit breaker not found").
			WithDetails(map[string]any{"name": name})
	}
	return r.status(name, e), nil
}

// Reset forces the named breaker back to CLOSED with cleared counts.
func (r *Registry) Reset(name string) (Status, error) {
	r.mu.Lock()
	if _, ok := r.breakers[name]; !ok {
		r.mu.Unlock()
		return Status{}, pkgerrors.New(pkgerrors.CodeNotFound, "circuit breaker not found").
			WithDetails(map[string]any{"name": name})
	}
	e := r.newEntry(name)
	r.breakers[name] = e
	status := r.status(name, e)
	r.mu.Unlock()
	return status, nil
}

// Open lists the names of breakers that are not closed.
func (r *Registry) Open() []string {
	var names []string
	for _, s := range r.List() {
		if s.State != StateClosed {
			names = append(names, s.Name)
		}
	}
	return names
}

func (r *Registry) status(name string, e *entry) Status {
	counts := e.cb.Counts()
	return Status{
		Name:                name,
		State:               stateName(e.cb.State()),
		ConsecutiveFailures: counts.ConsecutiveFailures,
		TotalFailures:       counts.TotalFailures,
		TotalSuccesses:      counts.TotalSuccesses,
		FailureThreshold:    r.cfg.FailureThreshold,
		ResetTimeoutSeconds: r.cfg.ResetTimeout.Seconds(),
		LastStateChangeAt:   e.lastChange(),
	}
}

func stateName(state gobreaker.State) string {
	switch state {
	case gobreaker.StateOpen:
		return StateOpen
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	}
	return StateClosed
}
