package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/c360studio/sleuthbench/llm"
	"github.com/c360studio/sleuthbench/prompt"
	"github.com/c360studio/sleuthbench/scenario"
)

// Status tags how a verdict was obtained.
type Status string

const (
	// StatusSuccess means the worker produced the final reasoning itself.
	StatusSuccess Status = "success"

	// StatusZeroResponse means both final prompts came back empty and the
	// reasoning was synthesized from the carried summary.
	StatusZeroResponse Status = "zero_response"

	// StatusAPIError means a transport-level failure ended the run; the
	// verdict is not scorable.
	StatusAPIError Status = "api_error"
)

// Verdict is the scored outcome of one run.
type Verdict struct {
	// ReasoningText is the final reasoning as returned (or synthesized).
	ReasoningText string `json:"reasoning_text"`

	// CulpritMentioned reports whether the true culprit's identifier
	// appears in the reasoning. On StatusAPIError it is always false.
	CulpritMentioned bool `json:"culprit_mentioned"`

	// Status tags how the reasoning was obtained.
	Status Status `json:"status"`
}

// Scored reports whether the verdict counts toward accuracy. Aborted runs
// are excluded rather than scored as misses.
func (v Verdict) Scored() bool {
	return v.Status != StatusAPIError
}

// Evaluator extracts a verdict from a completed summary and scores it
// against the planted ground truth.
type Evaluator struct {
	invoker  llm.Invoker
	adapter  prompt.Adapter
	recorder *llm.Recorder
	policy   FallbackPolicy
	logger   *slog.Logger
}

// NewEvaluator creates an Evaluator sharing the run's recorder and policy.
func NewEvaluator(invoker llm.Invoker, adapter prompt.Adapter, recorder *llm.Recorder, policy FallbackPolicy, logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{
		invoker:  invoker,
		adapter:  adapter,
		recorder: recorder,
		policy:   policy,
		logger:   logger,
	}
}

// Finalize asks the worker who the culprit is, given the accumulated
// summary, and scores the answer. The fallback ladder mirrors the window
// steps: one shortened retry on a healthy-but-empty outcome, then a
// synthesized degraded verdict; a transport failure yields an unscorable
// api_error verdict.
func (e *Evaluator) Finalize(ctx context.Context, worker string, summary string, c *scenario.Case) Verdict {
	pctx := prompt.Context{SummarySoFar: summary}

	res := e.invoke(ctx, worker, prompt.SlotFinal, pctx)
	if res.Failed() {
		return Verdict{Status: StatusAPIError}
	}

	if res.Empty() {
		e.logger.Debug("Empty final reasoning, trying fallback prompt", "worker", worker)
		res = e.invoke(ctx, worker, prompt.SlotFallbackFinal, pctx)
		if res.Failed() {
			return Verdict{Status: StatusAPIError}
		}
	}

	if res.Empty() {
		reasoning := fmt.Sprintf(
			"Based on the evidence: %s, further investigation is needed to determine the culprit.",
			truncateRunes(summary, e.policy.DegradedCarryChars))
		return e.score(reasoning, StatusZeroResponse, c)
	}

	return e.score(res.Content, StatusSuccess, c)
}

// AbortedVerdict is the verdict for a run that never reached finalization.
func AbortedVerdict() Verdict {
	return Verdict{Status: StatusAPIError}
}

func (e *Evaluator) score(reasoning string, status Status, c *scenario.Case) Verdict {
	return Verdict{
		ReasoningText:    reasoning,
		CulpritMentioned: strings.Contains(reasoning, c.Culprit),
		Status:           status,
	}
}

func (e *Evaluator) invoke(ctx context.Context, worker string, slot prompt.Slot, pctx prompt.Context) llm.InvocationResult {
	ad := e.adapter.Adapt(slot, pctx)
	res := e.invoker.Invoke(ctx, worker, messagesFor(ad))

	if e.recorder != nil {
		e.recorder.Record(llm.Interaction{
			Slot:         string(slot),
			TokenRange:   "final",
			System:       ad.System,
			Prompt:       ad.Prompt,
			Response:     res.Content,
			Attempts:     res.AttemptCount,
			TerminalKind: recordKind(res),
		})
	}
	return res
}
