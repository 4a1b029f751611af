package scenario

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"
)

// RenderConfig controls transcript rendering.
type RenderConfig struct {
	// TotalLines is the number of dialogue lines to emit.
	TotalLines int

	// MarginLow keeps clues away from the opening lines, where model
	// attention is least reliable.
	MarginLow int

	// MarginHigh keeps clues away from the closing lines.
	MarginHigh int

	// Roster is the speaker cast. Defaults to the standard roster.
	Roster []string
}

// DefaultRenderConfig returns the rendering defaults used by the benchmark.
func DefaultRenderConfig(totalLines int) RenderConfig {
	return RenderConfig{
		TotalLines: totalLines,
		MarginLow:  50,
		MarginHigh: 50,
	}
}

// Validate checks the rendering configuration against a clue count.
func (c RenderConfig) Validate(clueCount int) error {
	if c.TotalLines <= 0 {
		return fmt.Errorf("TotalLines must be positive, got %d", c.TotalLines)
	}
	if c.MarginLow < 0 || c.MarginHigh < 0 {
		return fmt.Errorf("margins must be non-negative, got %d/%d", c.MarginLow, c.MarginHigh)
	}
	span := c.TotalLines - c.MarginHigh - c.MarginLow
	if span < clueCount {
		return fmt.Errorf("injection span %d cannot hold %d clues (TotalLines=%d, margins %d/%d)",
			span, clueCount, c.TotalLines, c.MarginLow, c.MarginHigh)
	}
	return nil
}

// Line is a single attributed dialogue line.
type Line struct {
	// Speaker is the roster identifier that says the line.
	Speaker string

	// Text is the spoken content, hedging phrase included for clue lines.
	Text string

	// Clue is the injected clue text, empty for filler lines.
	Clue string
}

// Transcript is the rendered dialogue for one Case. Built once, never
// mutated; only the Chunker reads it.
type Transcript struct {
	Lines []Line

	// InjectionIndices are the strictly increasing line indices at which
	// clues were planted, in injection order.
	InjectionIndices []int
}

// Text flattens the transcript into the newline-joined dialogue fed to the
// tokenizer.
func (t *Transcript) Text() string {
	var b strings.Builder
	for i, line := range t.Lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line.Speaker)
		b.WriteString(": ")
		b.WriteString(line.Text)
	}
	return b.String()
}

// fillerTemplates are the atmosphere and uncertainty lines emitted between
// clue injections.
var fillerTemplates = []string{
	"The mood in the village has been strange lately.",
	"I will keep an eye on what happens around me.",
	"I think we should all stick together.",
	"Honestly I am a little scared, I did not dare go out last night.",
	"Stop guessing wildly, everyone, let us just share what we know.",
	"How could something like this happen in our village...",
	"The clues feel too scattered to me.",
	"Why don't we take turns saying what we did last night?",
}

// clueLine wraps a clue in hedging so it does not read as a bare fact
// statement.
func clueLine(clue string) string {
	return fmt.Sprintf("I think I noticed something... %s. Then again, maybe I am overthinking it.", clue)
}

// RenderTranscript renders a Case into a noisy dialogue. Every clue in
// c.AllClues appears exactly once, at strictly increasing randomly chosen
// line indices inside the configured margins; injection order is shuffled
// independently of case order. Pure aside from the rng.
func RenderTranscript(rng *rand.Rand, c *Case, cfg RenderConfig) (*Transcript, error) {
	if err := cfg.Validate(len(c.AllClues)); err != nil {
		return nil, err
	}

	roster := cfg.Roster
	if len(roster) == 0 {
		roster = Roster(DefaultRosterSize)
	}

	clues := make([]string, len(c.AllClues))
	copy(clues, c.AllClues)
	rng.Shuffle(len(clues), func(i, j int) {
		clues[i], clues[j] = clues[j], clues[i]
	})

	points := samplePositions(rng, cfg.MarginLow, cfg.TotalLines-cfg.MarginHigh, len(clues))

	tr := &Transcript{
		Lines:            make([]Line, 0, cfg.TotalLines),
		InjectionIndices: points,
	}

	clueIdx := 0
	for i := 0; i < cfg.TotalLines; i++ {
		speaker := roster[rng.Intn(len(roster))]
		if clueIdx < len(points) && i == points[clueIdx] {
			tr.Lines = append(tr.Lines, Line{
				Speaker: speaker,
				Text:    clueLine(clues[clueIdx]),
				Clue:    clues[clueIdx],
			})
			clueIdx++
			continue
		}
		tr.Lines = append(tr.Lines, Line{
			Speaker: speaker,
			Text:    fillerTemplates[rng.Intn(len(fillerTemplates))],
		})
	}

	return tr, nil
}

// samplePositions draws k distinct indices from [low, high) and returns them
// sorted ascending.
func samplePositions(rng *rand.Rand, low, high, k int) []int {
	span := high - low
	perm := rng.Perm(span)[:k]
	points := make([]int, k)
	for i, p := range perm {
		points[i] = low + p
	}
	sort.Ints(points)
	return points
}
