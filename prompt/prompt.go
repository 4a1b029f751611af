// Package prompt builds the summarization and deduction prompts and adapts
// them per worker class. The summarizer only ever names a logical slot; all
// per-worker customization lives behind the Adapter interface, so control
// flow carries no knowledge of specific model identifiers.
package prompt

import (
	"fmt"

	"github.com/c360studio/sleuthbench/model"
)

// Slot names a logical prompt variant.
type Slot string

const (
	// SlotInitial produces the first summary when nothing is carried yet.
	SlotInitial Slot = "initial"

	// SlotUpdate merges the carried summary with a new window.
	SlotUpdate Slot = "update"

	// SlotFinal asks for the final deduction and culprit.
	SlotFinal Slot = "final"

	// SlotFallbackSegment is the drastically shortened re-issue after a
	// window produced only zero responses.
	SlotFallbackSegment Slot = "fallback_segment"

	// SlotFallbackFinal is the shortened re-issue of the final deduction.
	SlotFallbackFinal Slot = "fallback_final"
)

// Context carries the dynamic parts of a prompt.
type Context struct {
	// SummarySoFar is the running summary, empty before the first window.
	SummarySoFar string

	// NewChunk is the decoded text of the current window.
	NewChunk string
}

// Adapted is a worker-ready prompt plus an optional system instruction.
type Adapted struct {
	Prompt string
	System string
}

// Adapter rewrites slot prompts for a worker class. Implementations must be
// pure: same slot and context, same output.
type Adapter interface {
	Adapt(slot Slot, ctx Context) Adapted
}

// ForClass resolves the adapter for a worker class. Resolution happens once
// at run setup; unknown classes get the standard pass-through.
func ForClass(class model.Class) Adapter {
	if class == model.ClassConstrained {
		return NewConstrainedAdapter()
	}
	return NewStandardAdapter()
}

// detectiveSystem frames the task: causal links between evidence and
// suspects, exclusion of alternatives, detection of fabricated clues.
const detectiveSystem = "You are an experienced detective. Your task is to crack this murder case, " +
	"identify the true culprit, and support your conclusion with evidence. " +
	"Establish clear causal links (which evidence points at which suspect, and why), " +
	"explain in detail why other suspects are excluded, " +
	"and how you identify and discard fabricated clues."

// StandardAdapter emits the full detective prompts. Fallback truncation
// lengths are tuned knobs, not invariants.
type StandardAdapter struct {
	// WindowFallbackChars bounds the window text in a fallback re-issue.
	WindowFallbackChars int

	// SummaryFallbackChars bounds the carried summary in a fallback re-issue.
	SummaryFallbackChars int

	// FinalFallbackChars bounds the summary in a final fallback re-issue.
	FinalFallbackChars int
}

// NewStandardAdapter returns a StandardAdapter with the observed defaults.
func NewStandardAdapter() *StandardAdapter {
	return &StandardAdapter{
		WindowFallbackChars:  40,
		SummaryFallbackChars: 30,
		FinalFallbackChars:   50,
	}
}

// Adapt implements Adapter.
func (a *StandardAdapter) Adapt(slot Slot, ctx Context) Adapted {
	switch slot {
	case SlotInitial:
		return Adapted{
			System: detectiveSystem,
			Prompt: fmt.Sprintf(
				"Summarize this dialogue segment. Highlight the key evidence and the causal links "+
					"(which evidence points at which suspect, and why), and explain how other suspects "+
					"and fabricated clues are ruled out:\n\n%s\n\nSummary (concise, logically rigorous):",
				ctx.NewChunk),
		}
	case SlotUpdate:
		return Adapted{
			System: detectiveSystem,
			Prompt: fmt.Sprintf(
				"Previous summary: %s\n\nNew dialogue segment: %s\n\n"+
					"Update the summary in concise, logically rigorous language. Preserve the causal chain "+
					"(which evidence points at which suspect, and why), and state how other suspects and "+
					"fabricated clues are ruled out:",
				ctx.SummarySoFar, ctx.NewChunk),
		}
	case SlotFinal:
		return Adapted{
			System: detectiveSystem,
			Prompt: fmt.Sprintf(
				"Based on all collected evidence and information, determine who the true culprit is.\n\n"+
					"Full evidence summary: %s\n\n"+
					"Give your final reasoning and conclusion. Establish clear causal links "+
					"(which evidence points at which suspect, and why), explain in detail why other "+
					"suspects are excluded, and how fabricated clues were identified and discarded:",
				ctx.SummarySoFar),
		}
	case SlotFallbackSegment:
		if ctx.SummarySoFar != "" {
			return Adapted{
				System: detectiveSystem,
				Prompt: "Briefly update this summary: " + truncate(ctx.SummarySoFar, a.SummaryFallbackChars),
			}
		}
		return Adapted{
			System: detectiveSystem,
			Prompt: "Briefly summarize: " + truncate(ctx.NewChunk, a.WindowFallbackChars),
		}
	case SlotFallbackFinal:
		return Adapted{
			System: detectiveSystem,
			Prompt: "Name the culprit based on: " + truncate(ctx.SummarySoFar, a.FinalFallbackChars),
		}
	}
	return Adapted{System: detectiveSystem, Prompt: ctx.NewChunk}
}

// truncate bounds a string to n runes.
func truncate(s string, n int) string {
	if n <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
