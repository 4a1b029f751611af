package chunker

import (
	"fmt"
)

// TokenWindow is a contiguous slice of the transcript's token encoding.
// Windows partition the full token stream with no gaps or overlaps; the final
// window may be shorter than the chunk size.
type TokenWindow struct {
	// Start and End are token offsets, End-Start <= chunk size.
	Start int
	End   int

	// Text is the decoded window content.
	Text string
}

// Len returns the window size in tokens.
func (w TokenWindow) Len() int { return w.End - w.Start }

// Chunker slices transcripts into token windows of a fixed size.
type Chunker struct {
	tok       Tokenizer
	chunkSize int
}

// New creates a Chunker. chunkSize is measured in the tokenizer's token
// units, not characters.
func New(tok Tokenizer, chunkSize int) (*Chunker, error) {
	if tok == nil {
		return nil, fmt.Errorf("tokenizer is required")
	}
	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunkSize must be positive, got %d", chunkSize)
	}
	return &Chunker{tok: tok, chunkSize: chunkSize}, nil
}

// MustNew creates a Chunker, panicking on invalid arguments. Use for
// known-good configurations.
func MustNew(tok Tokenizer, chunkSize int) *Chunker {
	c, err := New(tok, chunkSize)
	if err != nil {
		panic(err)
	}
	return c
}

// Tokenizer returns the injected tokenizer instance.
func (c *Chunker) Tokenizer() Tokenizer { return c.tok }

// ChunkSize returns the configured window budget in tokens.
func (c *Chunker) ChunkSize() int { return c.chunkSize }

// Split encodes the text once and returns a lazy window sequence over it.
// The sequence is a pure function of its inputs: Reset rewinds it, and two
// sequences from the same text yield identical windows.
func (c *Chunker) Split(text string) *WindowSeq {
	return &WindowSeq{
		tok:       c.tok,
		tokens:    c.tok.Encode(text),
		chunkSize: c.chunkSize,
	}
}

// WindowSeq yields token windows one at a time as the summarizer advances.
// Windows are derived lazily and not retained.
type WindowSeq struct {
	tok       Tokenizer
	tokens    []int
	chunkSize int
	offset    int
}

// Next returns the next window, or false when the token stream is exhausted.
func (s *WindowSeq) Next() (TokenWindow, bool) {
	if s.offset >= len(s.tokens) {
		return TokenWindow{}, false
	}
	end := min(s.offset+s.chunkSize, len(s.tokens))
	w := TokenWindow{
		Start: s.offset,
		End:   end,
		Text:  s.tok.Decode(s.tokens[s.offset:end]),
	}
	s.offset = end
	return w, true
}

// Reset rewinds the sequence to the first window.
func (s *WindowSeq) Reset() { s.offset = 0 }

// TokenCount returns the total number of tokens in the stream.
func (s *WindowSeq) TokenCount() int { return len(s.tokens) }

// WindowCount returns the number of windows the sequence will yield.
func (s *WindowSeq) WindowCount() int {
	if len(s.tokens) == 0 {
		return 0
	}
	return (len(s.tokens) + s.chunkSize - 1) / s.chunkSize
}
