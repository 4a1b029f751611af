package model_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/sleuthbench/model"
)

func TestNewDefaultRegistry(t *testing.T) {
	r := model.NewDefaultRegistry()

	workers := r.ListWorkers()
	assert.Contains(t, workers, "deepseek-cloud")
	assert.Contains(t, workers, "gemma")
	assert.Contains(t, workers, "gemma-function-calling")

	cloud := r.GetWorker("deepseek-cloud")
	require.NotNil(t, cloud)
	assert.Equal(t, "openai", cloud.Provider)
	assert.Equal(t, model.ClassCloud, cloud.Class)
	assert.Equal(t, 240*time.Second, cloud.Timeout())

	assert.Nil(t, r.GetWorker("no-such-worker"))
}

func TestRegistry_ClassOf(t *testing.T) {
	r := model.NewDefaultRegistry()

	assert.Equal(t, model.ClassConstrained, r.ClassOf("gemma-function-calling"))
	assert.Equal(t, model.ClassStandard, r.ClassOf("gemma"))

	// Unknown workers default to standard rather than failing.
	assert.Equal(t, model.ClassStandard, r.ClassOf("no-such-worker"))
}

func TestRegistry_ScheduleFor(t *testing.T) {
	r := model.NewDefaultRegistry()

	constrained := r.ScheduleFor(model.ClassConstrained)
	assert.NotEmpty(t, constrained.Tiers)
	assert.Positive(t, constrained.ContextBase)

	standard := r.ScheduleFor(model.ClassStandard)
	assert.Zero(t, standard.ContextBase)
}

func TestRegistry_SetWorker(t *testing.T) {
	r := model.NewRegistry(nil)
	r.SetWorker("test", &model.EndpointConfig{
		Provider: "ollama",
		Model:    "test-model",
		Class:    model.ClassStandard,
	})

	got := r.GetWorker("test")
	require.NotNil(t, got)
	assert.Equal(t, "test-model", got.Model)
}

func TestLoadFromJSON_Bare(t *testing.T) {
	data := []byte(`{
		"workers": {
			"local": {
				"provider": "ollama",
				"url": "http://localhost:11434",
				"model": "qwen3:4b",
				"class": "constrained",
				"timeout_seconds": 40
			}
		}
	}`)

	r, err := model.LoadFromJSON(data)
	require.NoError(t, err)

	w := r.GetWorker("local")
	require.NotNil(t, w)
	assert.Equal(t, model.ClassConstrained, w.Class)
	assert.Equal(t, 40*time.Second, w.Timeout())

	// Schedules not overridden fall back to defaults.
	assert.NotEmpty(t, r.ScheduleFor(model.ClassConstrained).Tiers)
}

func TestLoadFromJSON_Wrapped(t *testing.T) {
	data := []byte(`{
		"worker_registry": {
			"workers": {
				"wrapped": {"provider": "openai", "model": "deepseek-v3", "class": "cloud"}
			},
			"schedules": {
				"cloud": {"tiers": [{"up_to_attempt": -1, "temperature": 0.3}]}
			}
		}
	}`)

	r, err := model.LoadFromJSON(data)
	require.NoError(t, err)

	require.NotNil(t, r.GetWorker("wrapped"))
	assert.InDelta(t, 0.3, r.ScheduleFor(model.ClassCloud).Options(0).Temperature, 1e-9)
}

func TestLoadFromJSON_Invalid(t *testing.T) {
	_, err := model.LoadFromJSON([]byte(`not json`))
	assert.Error(t, err)
}

func TestParseClass(t *testing.T) {
	assert.Equal(t, model.ClassStandard, model.ParseClass("standard"))
	assert.Equal(t, model.ClassConstrained, model.ParseClass("constrained"))
	assert.Equal(t, model.ClassCloud, model.ParseClass("cloud"))
	assert.False(t, model.ParseClass("bogus").IsValid())
}

func TestRegistry_CircuitBreaker(t *testing.T) {
	r := model.NewDefaultRegistry()
	r.SetHealthConfig(model.HealthConfig{
		FailureThreshold: 3,
		RecoveryTimeout:  50 * time.Millisecond,
	})

	assert.True(t, r.IsWorkerAvailable("gemma"))

	r.MarkWorkerFailure("gemma")
	r.MarkWorkerFailure("gemma")
	assert.True(t, r.IsWorkerAvailable("gemma"), "below threshold")

	r.MarkWorkerFailure("gemma")
	assert.False(t, r.IsWorkerAvailable("gemma"), "circuit opens at threshold")

	health := r.GetWorkerHealth("gemma")
	require.NotNil(t, health)
	assert.True(t, health.CircuitOpen)
	assert.Equal(t, 3, health.FailureCount)

	// Half-open after the recovery timeout: a probe is allowed.
	time.Sleep(60 * time.Millisecond)
	assert.True(t, r.IsWorkerAvailable("gemma"))

	// Success closes the circuit and clears the streak.
	r.MarkWorkerSuccess("gemma")
	health = r.GetWorkerHealth("gemma")
	require.NotNil(t, health)
	assert.False(t, health.CircuitOpen)
	assert.Equal(t, 0, health.FailureCount)
	assert.True(t, r.IsWorkerAvailable("gemma"))
}

func TestRegistry_ResetWorkerHealth(t *testing.T) {
	r := model.NewDefaultRegistry()
	r.MarkWorkerFailure("gemma")
	require.NotNil(t, r.GetWorkerHealth("gemma"))

	r.ResetWorkerHealth("gemma")
	assert.Nil(t, r.GetWorkerHealth("gemma"))
}
