package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/c360studio/sleuthbench/chunker"
	"github.com/c360studio/sleuthbench/llm"
	"github.com/c360studio/sleuthbench/model"
	"github.com/c360studio/sleuthbench/prompt"
	"github.com/c360studio/sleuthbench/scenario"
)

// constrainedSummaryCap bounds the carried summary for workers whose
// effective output budget is too small to echo a long one back.
const constrainedSummaryCap = 150

// RunRecord is the complete artifact of one (case, worker) run: the planted
// ground truth, every model exchange, and the scored verdict.
type RunRecord struct {
	RunID        string            `json:"run_id"`
	Worker       string            `json:"worker"`
	WorkerClass  model.Class       `json:"worker_class"`
	CaseNumber   int               `json:"case_number"`
	Case         *scenario.Case    `json:"case"`
	TokenCount   int               `json:"token_count"`
	WindowCount  int               `json:"window_count"`
	ChunkSize    int               `json:"chunk_size"`
	Outcome      SummaryOutcome    `json:"outcome"`
	Verdict      Verdict           `json:"verdict"`
	Interactions []llm.Interaction `json:"interactions"`
	StartedAt    time.Time         `json:"started_at"`
	CompletedAt  time.Time         `json:"completed_at"`
}

// Field is one entry of a record's flat, ordered projection.
type Field struct {
	Key   string
	Value any
}

// OrderedFields flattens the record into the stable column order used by
// tabular exports. Formatting beyond primitive conversion is left to the
// exporter.
func (r *RunRecord) OrderedFields() []Field {
	return []Field{
		{"run_id", r.RunID},
		{"worker", r.Worker},
		{"worker_class", string(r.WorkerClass)},
		{"case_number", r.CaseNumber},
		{"culprit", r.Case.Culprit},
		{"motive", r.Case.Motive},
		{"strong_clues", flatten(strings.Join(r.Case.StrongClues, "; "))},
		{"weak_clues", flatten(strings.Join(r.Case.WeakClues, "; "))},
		{"fake_suspect", r.Case.FakeSuspect},
		{"token_count", r.TokenCount},
		{"window_count", r.WindowCount},
		{"chunk_size", r.ChunkSize},
		{"windows_processed", r.Outcome.WindowsProcessed},
		{"final_state", string(r.Outcome.State)},
		{"abort_kind", string(r.Outcome.AbortKind)},
		{"status", string(r.Verdict.Status)},
		{"culprit_mentioned", r.Verdict.CulpritMentioned},
		{"reasoning", flatten(r.Verdict.ReasoningText)},
		{"summary", flatten(r.Outcome.Summary)},
		{"started_at", r.StartedAt.UTC().Format(time.RFC3339)},
		{"completed_at", r.CompletedAt.UTC().Format(time.RFC3339)},
	}
}

// flatten collapses newlines so the value fits one tabular cell.
func flatten(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, "\r\n", " "), "\n", " ")
}

// Runner executes full runs: chunk the transcript, fold the windows, extract
// and score the verdict.
type Runner struct {
	invoker  llm.Invoker
	registry *model.Registry
	chunker  *chunker.Chunker
	policy   FallbackPolicy
	logger   *slog.Logger

	stepDelay time.Duration
	sleep     func(context.Context, time.Duration) error
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithRunnerLogger sets the logger.
func WithRunnerLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) { r.logger = logger }
}

// WithRunnerPolicy overrides the fallback policy.
func WithRunnerPolicy(p FallbackPolicy) RunnerOption {
	return func(r *Runner) { r.policy = p }
}

// WithRunnerStepDelay sets the pause between windows.
func WithRunnerStepDelay(d time.Duration) RunnerOption {
	return func(r *Runner) { r.stepDelay = d }
}

// WithRunnerSleep replaces the pacing sleep, for tests.
func WithRunnerSleep(sleep func(context.Context, time.Duration) error) RunnerOption {
	return func(r *Runner) { r.sleep = sleep }
}

// NewRunner creates a Runner.
func NewRunner(invoker llm.Invoker, registry *model.Registry, ch *chunker.Chunker, opts ...RunnerOption) *Runner {
	r := &Runner{
		invoker:  invoker,
		registry: registry,
		chunker:  ch,
		policy:   DefaultFallbackPolicy(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes one case against one worker and returns the full record.
// The returned error covers setup problems only (unknown worker); model
// failures during the run are captured in the record, not returned.
func (r *Runner) Run(ctx context.Context, caseNumber int, c *scenario.Case, transcript *scenario.Transcript, worker string) (*RunRecord, error) {
	if r.registry.GetWorker(worker) == nil {
		return nil, fmt.Errorf("unknown worker %q", worker)
	}
	class := r.registry.ClassOf(worker)

	policy := r.policy
	if class == model.ClassConstrained && policy.SummaryCapChars == 0 {
		policy.SummaryCapChars = constrainedSummaryCap
	}

	recorder := llm.NewRecorder()
	adapter := prompt.ForClass(class)

	sumOpts := []SummarizerOption{
		WithFallbackPolicy(policy),
		WithLogger(r.logger),
		WithStepDelay(r.stepDelay),
	}
	if r.sleep != nil {
		sumOpts = append(sumOpts, WithSleep(r.sleep))
	}
	summarizer := NewSummarizer(r.invoker, adapter, recorder, sumOpts...)
	evaluator := NewEvaluator(r.invoker, adapter, recorder, policy, r.logger)

	seq := r.chunker.Split(transcript.Text())

	r.logger.Info("Starting run",
		"worker", worker,
		"class", string(class),
		"case", caseNumber,
		"culprit", c.Culprit,
		"tokens", seq.TokenCount(),
		"windows", seq.WindowCount())

	started := time.Now()
	outcome := summarizer.Run(ctx, worker, seq)

	var verdict Verdict
	if outcome.State == StateAborted {
		verdict = AbortedVerdict()
	} else {
		verdict = evaluator.Finalize(ctx, worker, outcome.Summary, c)
		if verdict.Status != StatusAPIError {
			outcome.State = StateDone
		} else {
			outcome.State = StateAborted
		}
	}

	r.logger.Info("Run complete",
		"worker", worker,
		"case", caseNumber,
		"state", string(outcome.State),
		"status", string(verdict.Status),
		"culprit_mentioned", verdict.CulpritMentioned,
		"windows_processed", outcome.WindowsProcessed)

	return &RunRecord{
		RunID:        uuid.NewString(),
		Worker:       worker,
		WorkerClass:  class,
		CaseNumber:   caseNumber,
		Case:         c,
		TokenCount:   seq.TokenCount(),
		WindowCount:  seq.WindowCount(),
		ChunkSize:    r.chunker.ChunkSize(),
		Outcome:      outcome,
		Verdict:      verdict,
		Interactions: recorder.Interactions(),
		StartedAt:    started,
		CompletedAt:  time.Now(),
	}, nil
}
