package model

import (
	"encoding/json"
	"sync"
	"time"
)

// Registry manages worker endpoints and their class-level decoding schedules.
type Registry struct {
	mu        sync.RWMutex
	workers   map[string]*EndpointConfig
	schedules map[Class]DecodingSchedule
	health    *healthState
}

// EndpointConfig defines an available worker endpoint.
type EndpointConfig struct {
	// Provider is the transport implementation ("ollama", "openai").
	Provider string `json:"provider"`

	// URL is the API endpoint URL. Empty uses the provider default.
	URL string `json:"url,omitempty"`

	// Model is the identifier sent to the provider.
	Model string `json:"model"`

	// Class is the worker capability tier.
	Class Class `json:"class"`

	// MaxContextTokens is the context window size.
	MaxContextTokens int `json:"max_context_tokens,omitempty"`

	// TimeoutSeconds is the per-call budget. Transcripts are large, so
	// defaults are generous: minutes-scale for slow workers. 0 uses the
	// invoker default.
	TimeoutSeconds int `json:"timeout_seconds,omitempty"`
}

// Timeout returns the per-call budget as a duration, or 0 when unset.
func (e *EndpointConfig) Timeout() time.Duration {
	return time.Duration(e.TimeoutSeconds) * time.Second
}

// NewRegistry creates a registry with the given workers and the default
// per-class schedules.
func NewRegistry(workers map[string]*EndpointConfig) *Registry {
	if workers == nil {
		workers = make(map[string]*EndpointConfig)
	}
	return &Registry{
		workers:   workers,
		schedules: DefaultSchedules(),
	}
}

// NewDefaultRegistry creates a registry with the benchmark's stock workers.
// Used when no configuration is provided.
func NewDefaultRegistry() *Registry {
	return NewRegistry(map[string]*EndpointConfig{
		"deepseek-cloud": {
			Provider:         "openai",
			URL:              "https://api.qnaigc.com/v1",
			Model:            "deepseek-v3",
			Class:            ClassCloud,
			MaxContextTokens: 65536,
			TimeoutSeconds:   240,
		},
		"qwen-small": {
			Provider:         "ollama",
			URL:              "http://localhost:11434",
			Model:            "qwen3:4b",
			Class:            ClassStandard,
			MaxContextTokens: 8192,
		},
		"gemma": {
			Provider:         "ollama",
			URL:              "http://localhost:11434",
			Model:            "gemma3:latest",
			Class:            ClassStandard,
			MaxContextTokens: 8192,
		},
		"gemma-function-calling": {
			Provider:         "ollama",
			URL:              "http://localhost:11434",
			Model:            "intersync-gemma-7b-instruct-function-calling:latest",
			Class:            ClassConstrained,
			MaxContextTokens: 2048,
			TimeoutSeconds:   40,
		},
	})
}

// GetWorker returns the endpoint configuration for a worker name.
// Returns nil if the worker is not configured.
func (r *Registry) GetWorker(name string) *EndpointConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.workers[name]
}

// ClassOf returns the class of a configured worker, defaulting to standard
// for unknown workers so callers always get a usable schedule.
func (r *Registry) ClassOf(name string) Class {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if ep, ok := r.workers[name]; ok && ep.Class.IsValid() {
		return ep.Class
	}
	return ClassStandard
}

// ScheduleFor returns the decoding escalation schedule for a class.
func (r *Registry) ScheduleFor(class Class) DecodingSchedule {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if s, ok := r.schedules[class]; ok {
		return s
	}
	return DefaultSchedules()[ClassStandard]
}

// SetWorker updates or adds a worker endpoint.
func (r *Registry) SetWorker(name string, cfg *EndpointConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.workers == nil {
		r.workers = make(map[string]*EndpointConfig)
	}
	r.workers[name] = cfg
}

// SetSchedule overrides the escalation schedule for a class.
func (r *Registry) SetSchedule(class Class, s DecodingSchedule) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.schedules == nil {
		r.schedules = make(map[Class]DecodingSchedule)
	}
	r.schedules[class] = s
}

// ListWorkers returns all configured worker names.
func (r *Registry) ListWorkers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.workers))
	for name := range r.workers {
		names = append(names, name)
	}
	return names
}

// MarshalJSON implements json.Marshaler for the registry.
func (r *Registry) MarshalJSON() ([]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return json.Marshal(struct {
		Workers   map[string]*EndpointConfig `json:"workers"`
		Schedules map[Class]DecodingSchedule `json:"schedules,omitempty"`
	}{
		Workers:   r.workers,
		Schedules: r.schedules,
	})
}

// UnmarshalJSON implements json.Unmarshaler for the registry.
func (r *Registry) UnmarshalJSON(data []byte) error {
	var tmp registryConfig
	if err := json.Unmarshal(data, &tmp); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.workers = tmp.Workers
	r.schedules = mergedSchedules(tmp.Schedules)
	return nil
}
