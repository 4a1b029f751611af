// Package chunker turns a transcript into an ordered, finite sequence of
// token windows under a fixed token budget. The tokenizer is an injected
// instance owned by the chunker, not ambient state.
package chunker

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// Tokenizer encodes text to token ids and back. Decode applied to a slice of
// a previous Encode result must reproduce the corresponding text exactly.
type Tokenizer interface {
	// Name identifies the encoding, e.g. "cl100k_base".
	Name() string

	Encode(text string) []int
	Decode(tokens []int) string
}

// DefaultEncoding is the tiktoken encoding used for token accounting.
const DefaultEncoding = "cl100k_base"

// NewTiktoken returns a Tokenizer backed by the given tiktoken encoding.
func NewTiktoken(encoding string) (Tokenizer, error) {
	tke, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("load tiktoken encoding %s: %w", encoding, err)
	}
	return &tiktokenTokenizer{name: encoding, tke: tke}, nil
}

// NewDefault returns the cl100k_base tokenizer, falling back to the heuristic
// encoding when tiktoken data cannot be loaded. Tokenizer selection happens
// here, once, outside the summarization hot path.
func NewDefault(logger *slog.Logger) Tokenizer {
	if logger == nil {
		logger = slog.Default()
	}
	tok, err := NewTiktoken(DefaultEncoding)
	if err != nil {
		logger.Warn("Tokenizer unavailable, falling back to heuristic encoding", "error", err)
		return NewHeuristic()
	}
	return tok
}

type tiktokenTokenizer struct {
	name string
	tke  *tiktoken.Tiktoken
}

func (t *tiktokenTokenizer) Name() string { return t.name }

func (t *tiktokenTokenizer) Encode(text string) []int {
	return t.tke.Encode(text, nil, nil)
}

func (t *tiktokenTokenizer) Decode(tokens []int) string {
	return t.tke.Decode(tokens)
}

// heuristicCharsPerToken approximates the average characters per token for
// GPT tokenizers.
const heuristicCharsPerToken = 4

// heuristicTokenizer groups runes into fixed-size pieces and assigns ids from
// an instance-local vocabulary. It is not a real BPE, but it preserves the
// partition property: decoding any slice of an encoding reproduces the text.
type heuristicTokenizer struct {
	mu     sync.Mutex
	ids    map[string]int
	pieces []string
}

// NewHeuristic returns the fallback tokenizer. Ids are only meaningful to the
// instance that produced them, so the chunker must own the instance.
func NewHeuristic() Tokenizer {
	return &heuristicTokenizer{ids: make(map[string]int)}
}

func (h *heuristicTokenizer) Name() string { return "heuristic" }

func (h *heuristicTokenizer) Encode(text string) []int {
	runes := []rune(text)

	h.mu.Lock()
	defer h.mu.Unlock()

	var tokens []int
	for i := 0; i < len(runes); i += heuristicCharsPerToken {
		end := min(i+heuristicCharsPerToken, len(runes))
		piece := string(runes[i:end])
		id, ok := h.ids[piece]
		if !ok {
			id = len(h.pieces)
			h.ids[piece] = id
			h.pieces = append(h.pieces, piece)
		}
		tokens = append(tokens, id)
	}
	return tokens
}

func (h *heuristicTokenizer) Decode(tokens []int) string {
	h.mu.Lock()
	defer h.mu.Unlock()

	var out []byte
	for _, id := range tokens {
		if id >= 0 && id < len(h.pieces) {
			out = append(out, h.pieces[id]...)
		}
	}
	return string(out)
}
