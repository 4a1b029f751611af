// Package report persists run records and aggregates them into tabular
// reports. Records are written as JSON artifacts per run; the CSV view is a
// flat projection over them.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/c360studio/sleuthbench/pipeline"
)

// recordGlob matches persisted run records under a report directory,
// including per-worker and per-case subdirectories.
const recordGlob = "**/run-*.json"

// WriteRecord persists one run record as a JSON artifact under dir,
// creating the directory if needed.
func WriteRecord(dir string, rec *pipeline.RunRecord) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating report directory: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("run-%s.json", rec.RunID))
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding run record: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing run record: %w", err)
	}
	return path, nil
}

// WriteTranscript persists the rendered dialogue next to its run record, so
// a run's exact input can be inspected or replayed later. The record JSON
// only carries the transcript implicitly through window prompts.
func WriteTranscript(dir, runID, text string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating report directory: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("transcript-%s.txt", runID))
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return "", fmt.Errorf("writing transcript: %w", err)
	}
	return path, nil
}

// LoadRecords reads every persisted run record beneath dir. Order is
// deterministic (lexical by path), so repeated aggregations of the same
// directory produce identical reports.
func LoadRecords(dir string) ([]*pipeline.RunRecord, error) {
	matches, err := doublestar.Glob(os.DirFS(dir), recordGlob)
	if err != nil {
		return nil, fmt.Errorf("globbing run records: %w", err)
	}
	sort.Strings(matches)

	records := make([]*pipeline.RunRecord, 0, len(matches))
	for _, m := range matches {
		data, err := os.ReadFile(filepath.Join(dir, m))
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", m, err)
		}
		var rec pipeline.RunRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, fmt.Errorf("decoding %s: %w", m, err)
		}
		records = append(records, &rec)
	}
	return records, nil
}

// WriteCSV renders records as CSV, one row per run, using the records'
// stable field order for the header.
func WriteCSV(w io.Writer, records []*pipeline.RunRecord) error {
	cw := csv.NewWriter(w)

	if len(records) > 0 {
		fields := records[0].OrderedFields()
		header := make([]string, len(fields))
		for i, f := range fields {
			header[i] = f.Key
		}
		if err := cw.Write(header); err != nil {
			return fmt.Errorf("writing CSV header: %w", err)
		}
	}

	for _, rec := range records {
		fields := rec.OrderedFields()
		row := make([]string, len(fields))
		for i, f := range fields {
			row[i] = fmt.Sprint(f.Value)
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing CSV row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteCSVFile writes the CSV report to path.
func WriteCSVFile(path string, records []*pipeline.RunRecord) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating report directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()
	if err := WriteCSV(f, records); err != nil {
		return err
	}
	return f.Close()
}

// WorkerSummary aggregates scoring across the runs of one worker.
type WorkerSummary struct {
	Worker   string `json:"worker"`
	Runs     int    `json:"runs"`
	Scored   int    `json:"scored"`
	Hits     int    `json:"hits"`
	Aborted  int    `json:"aborted"`
	Degraded int    `json:"degraded"`
}

// HitRate returns hits over scored runs, or 0 when nothing was scorable.
func (s WorkerSummary) HitRate() float64 {
	if s.Scored == 0 {
		return 0
	}
	return float64(s.Hits) / float64(s.Scored)
}

// Summarize folds records into per-worker summaries, sorted by worker name.
func Summarize(records []*pipeline.RunRecord) []WorkerSummary {
	byWorker := make(map[string]*WorkerSummary)
	for _, rec := range records {
		s, ok := byWorker[rec.Worker]
		if !ok {
			s = &WorkerSummary{Worker: rec.Worker}
			byWorker[rec.Worker] = s
		}
		s.Runs++
		switch {
		case !rec.Verdict.Scored():
			s.Aborted++
		default:
			s.Scored++
			if rec.Verdict.CulpritMentioned {
				s.Hits++
			}
			if rec.Verdict.Status == pipeline.StatusZeroResponse {
				s.Degraded++
			}
		}
	}

	out := make([]WorkerSummary, 0, len(byWorker))
	for _, s := range byWorker {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Worker < out[j].Worker })
	return out
}
