package model

import (
	"encoding/json"
	"fmt"
	"os"
)

// registryConfig is the JSON structure for a worker registry, used both
// standalone and embedded under a "worker_registry" key.
type registryConfig struct {
	Workers   map[string]*EndpointConfig  `json:"workers"`
	Schedules map[string]DecodingSchedule `json:"schedules,omitempty"`
}

// LoadFromFile loads a registry configuration from a JSON file.
func LoadFromFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read registry file: %w", err)
	}
	return LoadFromJSON(data)
}

// LoadFromJSON loads a registry from JSON data. Accepts either a full config
// with a "worker_registry" key or a bare registry config.
func LoadFromJSON(data []byte) (*Registry, error) {
	var fullConfig struct {
		WorkerRegistry *registryConfig `json:"worker_registry"`
	}
	if err := json.Unmarshal(data, &fullConfig); err == nil && fullConfig.WorkerRegistry != nil {
		return registryFromConfig(fullConfig.WorkerRegistry), nil
	}

	var regConfig registryConfig
	if err := json.Unmarshal(data, &regConfig); err != nil {
		return nil, fmt.Errorf("parse registry config: %w", err)
	}
	return registryFromConfig(&regConfig), nil
}

func registryFromConfig(cfg *registryConfig) *Registry {
	workers := cfg.Workers
	if workers == nil {
		workers = make(map[string]*EndpointConfig)
	}
	return &Registry{
		workers:   workers,
		schedules: mergedSchedules(cfg.Schedules),
	}
}

// mergedSchedules lays configured schedules over the defaults, keyed by
// class. Unknown class keys are dropped.
func mergedSchedules[K ~string](overrides map[K]DecodingSchedule) map[Class]DecodingSchedule {
	schedules := DefaultSchedules()
	for k, v := range overrides {
		if class := ParseClass(string(k)); class != "" {
			schedules[class] = v
		}
	}
	return schedules
}
