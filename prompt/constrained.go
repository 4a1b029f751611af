package prompt

// ConstrainedAdapter emits the drastically compressed prompt forms for
// workers with tiny effective context/output budgets. The abbreviations
// ("E:" evidence so far, "N:" new content, "U:" update, "S:" summarize,
// "K?" who is the killer) were the only forms observed to reliably produce
// output from such workers.
type ConstrainedAdapter struct {
	SummaryChars      int // evidence carried into an update prompt
	ChunkChars        int // new content carried into an update prompt
	InitialChunkChars int // content carried into an initial prompt
	FinalChars        int // evidence carried into the final prompt

	SummaryFallbackChars int
	WindowFallbackChars  int
	FinalFallbackChars   int
}

// NewConstrainedAdapter returns a ConstrainedAdapter with the observed
// defaults.
func NewConstrainedAdapter() *ConstrainedAdapter {
	return &ConstrainedAdapter{
		SummaryChars:         60,
		ChunkChars:           50,
		InitialChunkChars:    70,
		FinalChars:           150,
		SummaryFallbackChars: 30,
		WindowFallbackChars:  40,
		FinalFallbackChars:   50,
	}
}

// constrainedSystem stays under 80 characters: longer system prompts starve
// these workers of output room.
const constrainedSystem = "Detective. Analyze murder case. Summarize key evidence concisely."

// Adapt implements Adapter.
func (a *ConstrainedAdapter) Adapt(slot Slot, ctx Context) Adapted {
	switch slot {
	case SlotInitial:
		return Adapted{
			System: constrainedSystem,
			Prompt: "S:" + truncate(ctx.NewChunk, a.InitialChunkChars),
		}
	case SlotUpdate:
		return Adapted{
			System: constrainedSystem,
			Prompt: "E:" + truncate(ctx.SummarySoFar, a.SummaryChars) +
				" N:" + truncate(ctx.NewChunk, a.ChunkChars) + " U:",
		}
	case SlotFinal:
		return Adapted{
			System: constrainedSystem,
			Prompt: "E:" + truncate(ctx.SummarySoFar, a.FinalChars) + " K?",
		}
	case SlotFallbackSegment:
		if ctx.SummarySoFar != "" {
			return Adapted{
				System: constrainedSystem,
				Prompt: "Update:" + truncate(ctx.SummarySoFar, a.SummaryFallbackChars),
			}
		}
		return Adapted{
			System: constrainedSystem,
			Prompt: "Sum:" + truncate(ctx.NewChunk, a.WindowFallbackChars),
		}
	case SlotFallbackFinal:
		return Adapted{
			System: constrainedSystem,
			Prompt: "Who killed? " + truncate(ctx.SummarySoFar, a.FinalFallbackChars),
		}
	}
	return Adapted{System: constrainedSystem, Prompt: truncate(ctx.NewChunk, a.InitialChunkChars)}
}
