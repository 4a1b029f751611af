package model

import (
	"sync"
	"time"
)

// WorkerHealth tracks the health status of a worker endpoint. A batch run
// visits the same endpoints many times; a dead endpoint should be skipped,
// not hammered for the full retry budget on every window.
type WorkerHealth struct {
	// Available indicates if the worker is currently usable.
	Available bool `json:"available"`

	// LastSuccess is the time of the last successful request.
	LastSuccess time.Time `json:"last_success,omitempty"`

	// LastFailure is the time of the last failed request.
	LastFailure time.Time `json:"last_failure,omitempty"`

	// FailureCount is the number of consecutive failed invocations.
	FailureCount int `json:"failure_count"`

	// CircuitOpen indicates if the circuit breaker has tripped.
	CircuitOpen bool `json:"circuit_open"`

	// CircuitOpenedAt is when the circuit was opened.
	CircuitOpenedAt time.Time `json:"circuit_opened_at,omitempty"`
}

// HealthConfig configures the circuit breaker.
type HealthConfig struct {
	// FailureThreshold is the number of consecutive failed invocations
	// before opening the circuit.
	FailureThreshold int

	// RecoveryTimeout is how long to wait before allowing a probe request
	// to a failed worker.
	RecoveryTimeout time.Duration
}

// DefaultHealthConfig returns sensible circuit-breaker defaults.
func DefaultHealthConfig() HealthConfig {
	return HealthConfig{
		FailureThreshold: 3,
		RecoveryTimeout:  30 * time.Second,
	}
}

type healthState struct {
	mu       sync.Mutex
	config   HealthConfig
	statuses map[string]*WorkerHealth
}

func newHealthState(cfg HealthConfig) *healthState {
	return &healthState{
		config:   cfg,
		statuses: make(map[string]*WorkerHealth),
	}
}

func (r *Registry) healthTracker() *healthState {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.health == nil {
		r.health = newHealthState(DefaultHealthConfig())
	}
	return r.health
}

// SetHealthConfig updates the circuit-breaker configuration.
func (r *Registry) SetHealthConfig(cfg HealthConfig) {
	h := r.healthTracker()
	h.mu.Lock()
	defer h.mu.Unlock()
	h.config = cfg
}

// MarkWorkerSuccess records a successful invocation, resetting the failure
// streak and closing the circuit.
func (r *Registry) MarkWorkerSuccess(name string) {
	h := r.healthTracker()
	h.mu.Lock()
	defer h.mu.Unlock()

	status := h.statuses[name]
	if status == nil {
		status = &WorkerHealth{}
		h.statuses[name] = status
	}
	status.LastSuccess = time.Now()
	status.FailureCount = 0
	status.Available = true
	status.CircuitOpen = false
}

// MarkWorkerFailure records an exhausted invocation, opening the circuit once
// the failure threshold is reached.
func (r *Registry) MarkWorkerFailure(name string) {
	h := r.healthTracker()
	h.mu.Lock()
	defer h.mu.Unlock()

	status := h.statuses[name]
	if status == nil {
		status = &WorkerHealth{Available: true}
		h.statuses[name] = status
	}
	status.LastFailure = time.Now()
	status.FailureCount++

	if status.FailureCount >= h.config.FailureThreshold {
		status.CircuitOpen = true
		status.CircuitOpenedAt = time.Now()
		status.Available = false
	}
}

// IsWorkerAvailable reports whether a worker should be invoked. A worker
// with an open circuit becomes available again (half-open) once the recovery
// timeout has passed, allowing a probe request.
func (r *Registry) IsWorkerAvailable(name string) bool {
	r.mu.RLock()
	tracked := r.health != nil
	r.mu.RUnlock()
	if !tracked {
		return true
	}

	h := r.healthTracker()
	h.mu.Lock()
	status, ok := h.statuses[name]
	if !ok || !status.CircuitOpen {
		h.mu.Unlock()
		return true
	}
	openedAt := status.CircuitOpenedAt
	recovery := h.config.RecoveryTimeout
	h.mu.Unlock()

	return time.Since(openedAt) > recovery
}

// GetWorkerHealth returns a copy of the health status for a worker, or nil
// if nothing has been recorded for it.
func (r *Registry) GetWorkerHealth(name string) *WorkerHealth {
	r.mu.RLock()
	tracked := r.health != nil
	r.mu.RUnlock()
	if !tracked {
		return nil
	}

	h := r.healthTracker()
	h.mu.Lock()
	defer h.mu.Unlock()

	if status, ok := h.statuses[name]; ok {
		copied := *status
		return &copied
	}
	return nil
}

// ResetWorkerHealth clears the recorded status for a worker.
func (r *Registry) ResetWorkerHealth(name string) {
	h := r.healthTracker()
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.statuses, name)
}
