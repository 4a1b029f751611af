package scenario_test

import (
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/sleuthbench/scenario"
)

func TestRenderTranscript_LineCountAndCoverage(t *testing.T) {
	rng := newRNG(1)
	c := scenario.Generate(rng)

	cfg := scenario.DefaultRenderConfig(500)
	tr, err := scenario.RenderTranscript(rng, c, cfg)
	require.NoError(t, err)

	assert.Len(t, tr.Lines, 500)

	// Every clue appears exactly once across clue lines.
	found := make(map[string]int)
	for _, line := range tr.Lines {
		if line.Clue != "" {
			found[line.Clue]++
		}
	}
	want := make(map[string]int)
	for _, clue := range c.AllClues {
		want[clue]++
	}
	assert.Equal(t, want, found)
}

func TestRenderTranscript_InjectionIndices(t *testing.T) {
	rng := newRNG(9)
	c := scenario.Generate(rng)

	cfg := scenario.DefaultRenderConfig(400)
	tr, err := scenario.RenderTranscript(rng, c, cfg)
	require.NoError(t, err)

	require.Len(t, tr.InjectionIndices, len(c.AllClues))
	assert.True(t, sort.IntsAreSorted(tr.InjectionIndices))

	for i, idx := range tr.InjectionIndices {
		assert.GreaterOrEqual(t, idx, cfg.MarginLow, "injection %d", i)
		assert.Less(t, idx, cfg.TotalLines-cfg.MarginHigh, "injection %d", i)
		assert.NotEmpty(t, tr.Lines[idx].Clue, "injection %d", i)
		if i > 0 {
			assert.Greater(t, idx, tr.InjectionIndices[i-1], "indices must be distinct")
		}
	}
}

func TestRenderTranscript_ClueLinesAreHedged(t *testing.T) {
	rng := newRNG(4)
	c := scenario.Generate(rng)

	tr, err := scenario.RenderTranscript(rng, c, scenario.DefaultRenderConfig(300))
	require.NoError(t, err)

	for _, line := range tr.Lines {
		if line.Clue == "" {
			continue
		}
		assert.Contains(t, line.Text, line.Clue)
		assert.NotEqual(t, line.Clue, line.Text,
			"clue lines must be wrapped, not bare facts")
	}
}

func TestRenderTranscript_SpanTooSmall(t *testing.T) {
	rng := newRNG(2)
	c := scenario.Generate(rng)

	cfg := scenario.RenderConfig{TotalLines: 110, MarginLow: 50, MarginHigh: 50}
	_, err := scenario.RenderTranscript(rng, c, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "injection span")
}

func TestRenderConfig_Validate(t *testing.T) {
	assert.Error(t, scenario.RenderConfig{TotalLines: 0}.Validate(1))
	assert.Error(t, scenario.RenderConfig{TotalLines: 100, MarginLow: -1}.Validate(1))
	assert.NoError(t, scenario.DefaultRenderConfig(300).Validate(12))
}

func TestTranscript_Text(t *testing.T) {
	tr := &scenario.Transcript{
		Lines: []scenario.Line{
			{Speaker: "A", Text: "hello"},
			{Speaker: "B", Text: "goodbye"},
		},
	}
	text := tr.Text()
	lines := strings.Split(text, "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "A: hello", lines[0])
	assert.Equal(t, "B: goodbye", lines[1])
}

func TestRenderTranscript_Deterministic(t *testing.T) {
	gen := func(seed uint64) *scenario.Transcript {
		rng := newRNG(seed)
		c := scenario.Generate(rng)
		tr, err := scenario.RenderTranscript(rng, c, scenario.DefaultRenderConfig(300))
		require.NoError(t, err)
		return tr
	}

	assert.Equal(t, gen(5).Text(), gen(5).Text())
}
