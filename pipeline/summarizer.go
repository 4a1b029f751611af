// Package pipeline folds a chunked transcript through a recursive
// summarization loop against a worker model, then extracts and scores a
// final verdict. Control flow is strictly sequential: window i+1's prompt
// always embeds the result of window i, so the merge is not associative and
// no reordering or fan-out is possible.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/c360studio/sleuthbench/chunker"
	"github.com/c360studio/sleuthbench/llm"
	"github.com/c360studio/sleuthbench/prompt"
)

// State is the summarizer's position in its run.
type State string

const (
	StateIdle        State = "idle"
	StateSummarizing State = "summarizing"
	StateFinalizing  State = "finalizing"
	StateDone        State = "done"
	StateAborted     State = "aborted"
)

// FallbackPolicy governs how the pipeline substitutes content when a worker
// produces nothing. One policy serves both the per-window steps and the
// finalizing step; the numeric values are tuned knobs, not invariants.
type FallbackPolicy struct {
	// DegradedCarryChars bounds the prior summary reused in a degraded
	// synthesis.
	DegradedCarryChars int

	// ContinuedMarker is appended to a reused prior summary.
	ContinuedMarker string

	// NeutralPlaceholder substitutes when there is no prior summary at all.
	NeutralPlaceholder string

	// SummaryCapChars truncates the running summary after each step, so
	// prompt growth cannot feed back into the next window and starve the
	// worker of room to read new evidence. 0 disables the cap; it is set
	// for workers with very small effective output budgets.
	SummaryCapChars int
}

// DefaultFallbackPolicy returns the observed defaults.
func DefaultFallbackPolicy() FallbackPolicy {
	return FallbackPolicy{
		DegradedCarryChars: 100,
		ContinuedMarker:    " [continued]",
		NeutralPlaceholder: "Evidence found, investigation continues.",
	}
}

// degradedSummary synthesizes forward-progress content after both the main
// and fallback prompts came back empty.
func (p FallbackPolicy) degradedSummary(prior string) string {
	if prior != "" {
		return truncateRunes(prior, p.DegradedCarryChars) + p.ContinuedMarker
	}
	return p.NeutralPlaceholder
}

// cap applies the per-step length discipline.
func (p FallbackPolicy) cap(summary string) string {
	if p.SummaryCapChars <= 0 {
		return summary
	}
	runes := []rune(summary)
	if len(runes) <= p.SummaryCapChars {
		return summary
	}
	// Caps too small to hold the ellipsis truncate hard.
	if p.SummaryCapChars <= 3 {
		return string(runes[:p.SummaryCapChars])
	}
	return string(runes[:p.SummaryCapChars-3]) + "..."
}

// SummaryOutcome is the result of folding all windows for one run.
type SummaryOutcome struct {
	// State is StateFinalizing when every window was processed, or
	// StateAborted on a transport-level failure.
	State State `json:"state"`

	// Summary is the final running summary; on abort, frozen at the moment
	// of failure.
	Summary string `json:"summary"`

	// WindowsProcessed counts windows that completed (including via
	// degraded fallback).
	WindowsProcessed int `json:"windows_processed"`

	// AbortKind is set when State is StateAborted.
	AbortKind llm.TerminalKind `json:"abort_kind,omitempty"`

	// AbortErr is the transport error behind the abort, if any. Not
	// serialized; the interaction log carries the error context.
	AbortErr error `json:"-"`
}

// Summarizer walks a window sequence, carrying a single evolving summary
// forward with one invocation per window.
type Summarizer struct {
	invoker  llm.Invoker
	adapter  prompt.Adapter
	recorder *llm.Recorder
	policy   FallbackPolicy
	logger   *slog.Logger

	// stepDelay paces consecutive windows to avoid hammering a local
	// endpoint. Applied through sleep, which tests replace.
	stepDelay time.Duration
	sleep     func(context.Context, time.Duration) error
}

// SummarizerOption configures a Summarizer.
type SummarizerOption func(*Summarizer)

// WithFallbackPolicy overrides the fallback policy.
func WithFallbackPolicy(p FallbackPolicy) SummarizerOption {
	return func(s *Summarizer) { s.policy = p }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) SummarizerOption {
	return func(s *Summarizer) { s.logger = logger }
}

// WithStepDelay sets the pause between windows.
func WithStepDelay(d time.Duration) SummarizerOption {
	return func(s *Summarizer) { s.stepDelay = d }
}

// WithSleep replaces the pacing sleep, for tests.
func WithSleep(sleep func(context.Context, time.Duration) error) SummarizerOption {
	return func(s *Summarizer) { s.sleep = sleep }
}

// NewSummarizer creates a Summarizer. The recorder may be nil to disable
// interaction logging.
func NewSummarizer(invoker llm.Invoker, adapter prompt.Adapter, recorder *llm.Recorder, opts ...SummarizerOption) *Summarizer {
	s := &Summarizer{
		invoker:  invoker,
		adapter:  adapter,
		recorder: recorder,
		policy:   DefaultFallbackPolicy(),
		logger:   slog.Default(),
		sleep: func(ctx context.Context, d time.Duration) error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(d):
				return nil
			}
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run folds the window sequence into a single summary. The loop guarantees
// forward progress: a window that yields nothing gets, in order, one
// shortened fallback prompt and then a degraded synthesized summary, and the
// run proceeds to the next window regardless. Only a transport-level
// terminal failure aborts, freezing the summary for error-tagged scoring.
func (s *Summarizer) Run(ctx context.Context, worker string, seq *chunker.WindowSeq) SummaryOutcome {
	summary := ""
	processed := 0

	for {
		window, ok := seq.Next()
		if !ok {
			break
		}

		pctx := prompt.Context{SummarySoFar: summary, NewChunk: window.Text}
		slot := prompt.SlotUpdate
		if summary == "" {
			slot = prompt.SlotInitial
		}

		s.logger.Debug("Processing window",
			"worker", worker,
			"window", processed+1,
			"tokens", window.Len(),
			"range", fmt.Sprintf("%d-%d", window.Start, window.End))

		res := s.step(ctx, worker, slot, pctx, window)
		if res.Failed() {
			s.logger.Warn("Aborting run on transport failure",
				"worker", worker,
				"window", processed+1,
				"kind", res.TerminalKind,
				"error", res.Err)
			return SummaryOutcome{
				State:            StateAborted,
				Summary:          summary,
				WindowsProcessed: processed,
				AbortKind:        res.TerminalKind,
				AbortErr:         res.Err,
			}
		}

		if res.Empty() {
			// Fallback never erases prior progress: reuse the carried
			// summary or substitute the neutral placeholder.
			summary = s.policy.degradedSummary(summary)
			s.logger.Warn("Window yielded nothing, continuing with degraded summary",
				"worker", worker,
				"window", processed+1)
		} else {
			summary = s.policy.cap(res.Content)
		}
		processed++

		if s.stepDelay > 0 {
			if err := s.sleep(ctx, s.stepDelay); err != nil {
				return SummaryOutcome{
					State:            StateAborted,
					Summary:          summary,
					WindowsProcessed: processed,
					AbortKind:        llm.TerminalTransport,
					AbortErr:         err,
				}
			}
		}
	}

	return SummaryOutcome{
		State:            StateFinalizing,
		Summary:          summary,
		WindowsProcessed: processed,
	}
}

// step issues the main prompt for a window and, on a healthy-but-empty
// outcome, one shortened fallback prompt.
func (s *Summarizer) step(ctx context.Context, worker string, slot prompt.Slot, pctx prompt.Context, window chunker.TokenWindow) llm.InvocationResult {
	tokenRange := fmt.Sprintf("%d-%d", window.Start, window.End)

	res := s.invoke(ctx, worker, slot, pctx, tokenRange)
	if !res.Empty() {
		return res
	}

	s.logger.Debug("Zero response after retries, trying fallback prompt",
		"worker", worker, "range", tokenRange)
	return s.invoke(ctx, worker, prompt.SlotFallbackSegment, pctx, tokenRange)
}

// invoke adapts the slot prompt, calls the worker, and records the exchange.
func (s *Summarizer) invoke(ctx context.Context, worker string, slot prompt.Slot, pctx prompt.Context, tokenRange string) llm.InvocationResult {
	ad := s.adapter.Adapt(slot, pctx)
	res := s.invoker.Invoke(ctx, worker, messagesFor(ad))

	if s.recorder != nil {
		s.recorder.Record(llm.Interaction{
			Slot:         string(slot),
			TokenRange:   tokenRange,
			System:       ad.System,
			Prompt:       ad.Prompt,
			Response:     res.Content,
			Attempts:     res.AttemptCount,
			TerminalKind: recordKind(res),
		})
	}
	return res
}

// recordKind tags the persisted interaction. A healthy invocation that still
// exhausted its budget on zero responses gets an explicit exhaustion tag so
// trajectories stay interpretable, even though the run itself continues.
func recordKind(res llm.InvocationResult) string {
	if res.Empty() && res.AttemptCount > 1 {
		return string(llm.TerminalExhausted)
	}
	return string(res.TerminalKind)
}

// messagesFor builds the role-tagged message list for an adapted prompt.
func messagesFor(ad prompt.Adapted) []llm.Message {
	var msgs []llm.Message
	if ad.System != "" {
		msgs = append(msgs, llm.Message{Role: "system", Content: ad.System})
	}
	return append(msgs, llm.Message{Role: "user", Content: ad.Prompt})
}

// truncateRunes bounds s to n runes.
func truncateRunes(s string, n int) string {
	if n <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
