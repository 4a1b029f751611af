package pipeline_test

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/sleuthbench/chunker"
	"github.com/c360studio/sleuthbench/llm"
	"github.com/c360studio/sleuthbench/llm/testutil"
	"github.com/c360studio/sleuthbench/model"
	"github.com/c360studio/sleuthbench/pipeline"
	"github.com/c360studio/sleuthbench/scenario"
)

func newRNG(seed uint64) *rand.Rand {
	return rand.New(rand.NewSource(int64(seed)))
}

func runnerFixture(t *testing.T, mock *testutil.MockInvoker, chunkSize int) (*pipeline.Runner, *scenario.Case, *scenario.Transcript) {
	t.Helper()

	registry := model.NewRegistry(map[string]*model.EndpointConfig{
		"std-worker":  {Provider: "ollama", Model: "m", Class: model.ClassStandard},
		"tiny-worker": {Provider: "ollama", Model: "t", Class: model.ClassConstrained},
	})
	ch := chunker.MustNew(chunker.NewHeuristic(), chunkSize)
	runner := pipeline.NewRunner(mock, registry, ch)

	rng := newRNG(8)
	c := scenario.Generate(rng)
	cfg := scenario.RenderConfig{TotalLines: 200, MarginLow: 20, MarginHigh: 20}
	tr, err := scenario.RenderTranscript(rng, c, cfg)
	require.NoError(t, err)

	return runner, c, tr
}

func TestRunner_EndToEnd(t *testing.T) {
	var c *scenario.Case
	mock := &testutil.MockInvoker{}

	runner, generated, tr := runnerFixture(t, mock, 500)
	c = generated

	// Echo-style worker: carries every prompt forward and names the culprit
	// in the final answer.
	mock.Fn = func(msgs []llm.Message) llm.InvocationResult {
		last := msgs[len(msgs)-1].Content
		if strings.Contains(last, "determine who the true culprit is") {
			return llm.InvocationResult{Content: "The culprit is " + c.Culprit + ".", AttemptCount: 1}
		}
		return llm.InvocationResult{Content: "Noted evidence.", AttemptCount: 1}
	}

	rec, err := runner.Run(context.Background(), 1, c, tr, "std-worker")
	require.NoError(t, err)

	assert.NotEmpty(t, rec.RunID)
	assert.Equal(t, "std-worker", rec.Worker)
	assert.Equal(t, model.ClassStandard, rec.WorkerClass)
	assert.Equal(t, 1, rec.CaseNumber)
	assert.Equal(t, 500, rec.ChunkSize)

	// The window count is derived from the actual token stream, never
	// assumed.
	wantWindows := (rec.TokenCount + 499) / 500
	assert.Equal(t, wantWindows, rec.WindowCount)
	assert.Equal(t, wantWindows, rec.Outcome.WindowsProcessed)

	assert.Equal(t, pipeline.StateDone, rec.Outcome.State)
	assert.Equal(t, pipeline.StatusSuccess, rec.Verdict.Status)
	assert.True(t, rec.Verdict.CulpritMentioned)

	// One interaction per window plus the final deduction.
	assert.Len(t, rec.Interactions, wantWindows+1)
	assert.False(t, rec.CompletedAt.Before(rec.StartedAt))
}

func TestRunner_UnknownWorker(t *testing.T) {
	mock := &testutil.MockInvoker{}
	runner, c, tr := runnerFixture(t, mock, 500)

	_, err := runner.Run(context.Background(), 1, c, tr, "ghost")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown worker")
	assert.Equal(t, 0, mock.CallCount())
}

func TestRunner_AbortedRunIsUnscorable(t *testing.T) {
	mock := &testutil.MockInvoker{Results: []llm.InvocationResult{
		{Content: "window one summary", AttemptCount: 1},
		{AttemptCount: 5, TerminalKind: llm.TerminalTransport},
	}}
	runner, c, tr := runnerFixture(t, mock, 300)

	rec, err := runner.Run(context.Background(), 2, c, tr, "std-worker")
	require.NoError(t, err, "model failure is data in the record, not an error")

	assert.Equal(t, pipeline.StateAborted, rec.Outcome.State)
	assert.Equal(t, llm.TerminalTransport, rec.Outcome.AbortKind)
	assert.Equal(t, pipeline.StatusAPIError, rec.Verdict.Status)
	assert.False(t, rec.Verdict.Scored())
	assert.Equal(t, "window one summary", rec.Outcome.Summary)
	assert.Equal(t, 2, mock.CallCount(), "finalization is skipped after an abort")
}

func TestRunner_ConstrainedWorkerGetsSummaryCap(t *testing.T) {
	long := strings.Repeat("v", 400)
	mock := &testutil.MockInvoker{Fn: func(_ []llm.Message) llm.InvocationResult {
		return llm.InvocationResult{Content: long, AttemptCount: 1}
	}}
	runner, c, tr := runnerFixture(t, mock, 500)

	rec, err := runner.Run(context.Background(), 1, c, tr, "tiny-worker")
	require.NoError(t, err)

	assert.Equal(t, model.ClassConstrained, rec.WorkerClass)
	assert.LessOrEqual(t, len(rec.Outcome.Summary), 150,
		"constrained workers carry a bounded summary")

	// Compressed prompt forms reach the wire.
	calls := mock.Calls()
	first := calls[0].Messages[len(calls[0].Messages)-1].Content
	assert.True(t, strings.HasPrefix(first, "S:"), "got %q", first)
}

func TestRunner_StandardWorkerUncapped(t *testing.T) {
	long := strings.Repeat("v", 400)
	mock := &testutil.MockInvoker{Fn: func(_ []llm.Message) llm.InvocationResult {
		return llm.InvocationResult{Content: long, AttemptCount: 1}
	}}
	runner, c, tr := runnerFixture(t, mock, 500)

	rec, err := runner.Run(context.Background(), 1, c, tr, "std-worker")
	require.NoError(t, err)
	assert.Equal(t, long, rec.Outcome.Summary)
}

func TestRunRecord_OrderedFields(t *testing.T) {
	mock := &testutil.MockInvoker{Fn: func(_ []llm.Message) llm.InvocationResult {
		return llm.InvocationResult{Content: "line one\nline two", AttemptCount: 1}
	}}
	runner, c, tr := runnerFixture(t, mock, 500)

	rec, err := runner.Run(context.Background(), 3, c, tr, "std-worker")
	require.NoError(t, err)

	fields := rec.OrderedFields()
	require.NotEmpty(t, fields)
	assert.Equal(t, "run_id", fields[0].Key)

	byKey := make(map[string]any, len(fields))
	keys := make([]string, 0, len(fields))
	for _, f := range fields {
		byKey[f.Key] = f.Value
		keys = append(keys, f.Key)
	}
	assert.Equal(t, c.Culprit, byKey["culprit"])
	assert.Equal(t, 3, byKey["case_number"])
	assert.Contains(t, keys, "culprit_mentioned")
	assert.Contains(t, keys, "status")

	// The planted evidence rides along so a CSV row is self-contained.
	strong, ok := byKey["strong_clues"].(string)
	require.True(t, ok)
	for _, clue := range c.StrongClues {
		assert.Contains(t, strong, clue)
	}
	weak, ok := byKey["weak_clues"].(string)
	require.True(t, ok)
	assert.Contains(t, weak, c.WeakClues[0])

	// Multi-line text is flattened for tabular export.
	summary, ok := byKey["summary"].(string)
	require.True(t, ok)
	assert.NotContains(t, summary, "\n")

	// Field order is stable across calls.
	again := rec.OrderedFields()
	require.Len(t, again, len(fields))
	for i := range fields {
		assert.Equal(t, fields[i].Key, again[i].Key, fmt.Sprintf("field %d", i))
	}
}
