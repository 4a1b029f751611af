// Package scenario generates synthetic murder-mystery cases and renders them
// into long noisy dialogue transcripts. A case plants a true culprit with
// strong clues, amplified decoy clues, and a fabricated secondary suspect with
// fabricated evidence, so that downstream summarization can be scored against
// known ground truth.
package scenario

import (
	"fmt"
	"math/rand"
)

// DefaultRosterSize is the number of participant identifiers (A, B, C, ...).
const DefaultRosterSize = 13

// weakClueAmplification duplicates decoy clues to bias the noise ratio upward.
// Decoys intentionally outnumber true signal.
const weakClueAmplification = 2

// Case is the ground-truth scenario for one test run. Constructed once,
// immutable thereafter.
type Case struct {
	// Culprit is the single correct answer, a one-letter identifier.
	Culprit string `json:"culprit"`

	// Motive explains why the culprit acted.
	Motive string `json:"motive"`

	// StrongClues each unambiguously point at Culprit; every entry contains
	// the culprit identifier.
	StrongClues []string `json:"strong_clues"`

	// WeakClues are decoys, irrelevant to guilt, duplicated for volume.
	WeakClues []string `json:"weak_clues"`

	// FakeSuspect is a deliberately-wrong secondary suspect, never Culprit.
	FakeSuspect string `json:"fake_suspect"`

	// FakeMotive is a plausible-sounding but false motive for FakeSuspect.
	FakeMotive string `json:"fake_motive"`

	// FakeStrongClues are fabricated to look like strong evidence against
	// FakeSuspect.
	FakeStrongClues []string `json:"fake_strong_clues"`

	// AllClues is a shuffled permutation of StrongClues, WeakClues, and
	// FakeStrongClues, used for injection into the dialogue.
	AllClues []string `json:"all_clues"`
}

// archetype is a motive template instantiated with the culprit identifier.
type archetype struct {
	name        string
	motive      string
	strongClues []string // formatted with the culprit identifier
	redHerrings []string // %s slots filled with a random non-culprit identifier
}

// archetypes is the fixed motive library. Every strong clue template names
// the culprit so verdict scoring by identifier containment stays sound.
var archetypes = []archetype{
	{
		name:   "lumberjack",
		motive: "killed over a dispute about timber profits",
		strongClues: []string{
			"rare pine shavings were found at the scene, and only the lumberjack %s handles that wood",
			"%s's axe was recently polished and cleaned with unusual care",
			"a villager heard %s snarl at the victim the night before, 'that was your last delivery'",
		},
		redHerrings: []string{
			"someone heard a strange beast howling that night",
			"a villager who often walks by the river saw a blurry shadow dive into the water",
			"the victim had apparently won a small lottery recently, but spent it all fast",
		},
	},
	{
		name:   "baker",
		motive: "poisoned the victim over a business rivalry",
		strongClues: []string{
			"the coroner traced the almond-scented toxin in the victim's teacup to the baker %s's pantry",
			"the baker %s recently bought a batch of chemicals called 'special leavening powder' on the black market",
			"a torn recipe note in %s's handwriting was found in the victim's trash",
		},
		redHerrings: []string{
			"the victim's window was found open",
			"another villager, %s, also had a heated argument with the victim a few days ago",
			"a piece of dark cloth was hanging from a tree near the scene",
		},
	},
}

// Roster returns the fixed participant identifiers for the given size,
// single letters starting at A. Size is clamped to 1..26.
func Roster(size int) []string {
	if size < 1 {
		size = 1
	}
	if size > 26 {
		size = 26
	}
	roster := make([]string, size)
	for i := range roster {
		roster[i] = string(rune('A' + i))
	}
	return roster
}

// Generate constructs a Case from the fixed archetype library. It is pure and
// deterministic given the injected rng.
func Generate(rng *rand.Rand) *Case {
	return GenerateWithRoster(rng, Roster(DefaultRosterSize))
}

// GenerateWithRoster constructs a Case using a custom participant roster.
// The roster must have at least two members so a fake suspect distinct from
// the culprit can be chosen; smaller rosters panic.
func GenerateWithRoster(rng *rand.Rand, roster []string) *Case {
	if len(roster) < 2 {
		panic(fmt.Sprintf("scenario: roster needs at least 2 members, got %d", len(roster)))
	}

	arch := archetypes[rng.Intn(len(archetypes))]
	culprit := roster[rng.Intn(len(roster))]
	fakeSuspect := pickOther(rng, roster, culprit)

	strong := make([]string, len(arch.strongClues))
	for i, tmpl := range arch.strongClues {
		strong[i] = fillIdentifier(tmpl, culprit)
	}

	// Decoys naming a villager pick anyone except the culprit, so decoy
	// mentions never accidentally point at the true answer.
	herrings := make([]string, len(arch.redHerrings))
	for i, tmpl := range arch.redHerrings {
		herrings[i] = fillIdentifier(tmpl, pickOther(rng, roster, culprit))
	}
	weak := make([]string, 0, len(herrings)*weakClueAmplification)
	for i := 0; i < weakClueAmplification; i++ {
		weak = append(weak, herrings...)
	}

	fakeMotive := fmt.Sprintf("%s had a financial dispute with the victim and has been acting strangely lately.", fakeSuspect)
	fakeStrong := []string{
		fmt.Sprintf("someone saw %s near the scene late at night, looking panicked", fakeSuspect),
		fmt.Sprintf("stains that might be the victim's blood were found on %s's clothes", fakeSuspect),
		fmt.Sprintf("an anonymous letter accuses %s of having threatened the victim", fakeSuspect),
	}

	all := make([]string, 0, len(strong)+len(weak)+len(fakeStrong))
	all = append(all, strong...)
	all = append(all, weak...)
	all = append(all, fakeStrong...)
	rng.Shuffle(len(all), func(i, j int) {
		all[i], all[j] = all[j], all[i]
	})

	return &Case{
		Culprit:         culprit,
		Motive:          arch.motive,
		StrongClues:     strong,
		WeakClues:       weak,
		FakeSuspect:     fakeSuspect,
		FakeMotive:      fakeMotive,
		FakeStrongClues: fakeStrong,
		AllClues:        all,
	}
}

// fillIdentifier substitutes the identifier into a clue template. Templates
// without a %s slot pass through unchanged.
func fillIdentifier(tmpl, id string) string {
	if !hasSlot(tmpl) {
		return tmpl
	}
	return fmt.Sprintf(tmpl, slotArgs(tmpl, id)...)
}

// hasSlot reports whether the template has any %s substitution slots.
func hasSlot(tmpl string) bool {
	for i := 0; i+1 < len(tmpl); i++ {
		if tmpl[i] == '%' && tmpl[i+1] == 's' {
			return true
		}
	}
	return false
}

// slotArgs repeats the identifier once per %s slot.
func slotArgs(tmpl, id string) []any {
	n := 0
	for i := 0; i+1 < len(tmpl); i++ {
		if tmpl[i] == '%' && tmpl[i+1] == 's' {
			n++
		}
	}
	args := make([]any, n)
	for i := range args {
		args[i] = id
	}
	return args
}

// pickOther selects a roster member other than excluded, uniformly.
func pickOther(rng *rand.Rand, roster []string, excluded string) string {
	others := make([]string, 0, len(roster)-1)
	for _, r := range roster {
		if r != excluded {
			others = append(others, r)
		}
	}
	return others[rng.Intn(len(others))]
}
