package report_test

import (
	"bytes"
	"encoding/csv"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/sleuthbench/llm"
	"github.com/c360studio/sleuthbench/model"
	"github.com/c360studio/sleuthbench/pipeline"
	"github.com/c360studio/sleuthbench/report"
	"github.com/c360studio/sleuthbench/scenario"
)

func sampleRecord(runID, worker string, status pipeline.Status, hit bool) *pipeline.RunRecord {
	return &pipeline.RunRecord{
		RunID:       runID,
		Worker:      worker,
		WorkerClass: model.ClassStandard,
		CaseNumber:  1,
		Case: &scenario.Case{
			Culprit:     "B",
			Motive:      "rivalry",
			FakeSuspect: "D",
		},
		TokenCount:  8000,
		WindowCount: 2,
		ChunkSize:   4000,
		Outcome: pipeline.SummaryOutcome{
			State:            pipeline.StateDone,
			Summary:          "B bought the poison",
			WindowsProcessed: 2,
		},
		Verdict: pipeline.Verdict{
			ReasoningText:    "B is the culprit",
			CulpritMentioned: hit,
			Status:           status,
		},
		Interactions: []llm.Interaction{{Slot: "initial", Prompt: "p", Response: "r"}},
		StartedAt:    time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC),
		CompletedAt:  time.Date(2026, 8, 30, 10, 5, 0, 0, time.UTC),
	}
}

func TestWriteAndLoadRecords(t *testing.T) {
	dir := t.TempDir()

	// Records land in per-worker subdirectories, like the sweep writes them.
	a := sampleRecord("aaa", "gemma", pipeline.StatusSuccess, true)
	b := sampleRecord("bbb", "qwen-small", pipeline.StatusZeroResponse, false)

	pathA, err := report.WriteRecord(filepath.Join(dir, "gemma"), a)
	require.NoError(t, err)
	assert.FileExists(t, pathA)

	_, err = report.WriteRecord(filepath.Join(dir, "qwen-small"), b)
	require.NoError(t, err)

	records, err := report.LoadRecords(dir)
	require.NoError(t, err)
	require.Len(t, records, 2)

	// Lexical path order is deterministic.
	assert.Equal(t, "aaa", records[0].RunID)
	assert.Equal(t, "bbb", records[1].RunID)

	// Round trip preserves the payload.
	assert.Equal(t, a.Verdict, records[0].Verdict)
	assert.Equal(t, a.Case.Culprit, records[0].Case.Culprit)
	assert.Len(t, records[0].Interactions, 1)
}

func TestWriteTranscript(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "gemma")
	text := "A: hello\nB: the axe was polished\n"

	path, err := report.WriteTranscript(dir, "aaa", text)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "transcript-aaa.txt"), path)
	assert.FileExists(t, path)

	// Transcripts sit next to records without polluting aggregation.
	_, err = report.WriteRecord(dir, sampleRecord("aaa", "gemma", pipeline.StatusSuccess, true))
	require.NoError(t, err)
	records, err := report.LoadRecords(filepath.Dir(dir))
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestLoadRecords_EmptyDir(t *testing.T) {
	records, err := report.LoadRecords(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestWriteCSV(t *testing.T) {
	records := []*pipeline.RunRecord{
		sampleRecord("aaa", "gemma", pipeline.StatusSuccess, true),
		sampleRecord("bbb", "gemma", pipeline.StatusAPIError, false),
	}

	var buf bytes.Buffer
	require.NoError(t, report.WriteCSV(&buf, records))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3, "header plus one row per run")

	header := rows[0]
	assert.Equal(t, "run_id", header[0])
	assert.Contains(t, header, "culprit_mentioned")
	assert.Contains(t, header, "status")
	assert.Contains(t, header, "strong_clues")
	assert.Contains(t, header, "weak_clues")

	assert.Equal(t, "aaa", rows[1][0])
	assert.Equal(t, "bbb", rows[2][0])
	assert.Len(t, rows[1], len(header))
}

func TestWriteCSV_NoRecords(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, report.WriteCSV(&buf, nil))
	assert.Empty(t, buf.String())
}

func TestWriteCSVFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "out.csv")
	records := []*pipeline.RunRecord{sampleRecord("aaa", "gemma", pipeline.StatusSuccess, true)}

	require.NoError(t, report.WriteCSVFile(path, records))
	assert.FileExists(t, path)
}

func TestSummarize(t *testing.T) {
	records := []*pipeline.RunRecord{
		sampleRecord("1", "gemma", pipeline.StatusSuccess, true),
		sampleRecord("2", "gemma", pipeline.StatusSuccess, false),
		sampleRecord("3", "gemma", pipeline.StatusZeroResponse, true),
		sampleRecord("4", "gemma", pipeline.StatusAPIError, false),
		sampleRecord("5", "qwen-small", pipeline.StatusSuccess, true),
	}

	summaries := report.Summarize(records)
	require.Len(t, summaries, 2)

	// Sorted by worker name.
	gemma := summaries[0]
	assert.Equal(t, "gemma", gemma.Worker)
	assert.Equal(t, 4, gemma.Runs)
	assert.Equal(t, 3, gemma.Scored)
	assert.Equal(t, 2, gemma.Hits)
	assert.Equal(t, 1, gemma.Aborted)
	assert.Equal(t, 1, gemma.Degraded)
	assert.InDelta(t, 2.0/3.0, gemma.HitRate(), 1e-9)

	qwen := summaries[1]
	assert.Equal(t, "qwen-small", qwen.Worker)
	assert.InDelta(t, 1.0, qwen.HitRate(), 1e-9)
}

func TestWorkerSummary_HitRateNoScoredRuns(t *testing.T) {
	s := report.WorkerSummary{Worker: "w", Runs: 2, Aborted: 2}
	assert.Zero(t, s.HitRate())
}

func TestPublisher_NilConnectionIsNoOp(t *testing.T) {
	p := report.NewPublisher(nil)
	rec := sampleRecord("aaa", "gemma", pipeline.StatusSuccess, true)

	assert.NoError(t, p.PublishRun(rec))
	p.Close()

	// Empty URL degrades the same way.
	p2, err := report.Connect("")
	require.NoError(t, err)
	assert.NoError(t, p2.PublishRun(rec))
	p2.Close()
}
