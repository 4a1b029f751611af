package llm

import (
	"sync"
	"time"
)

// Interaction is one prompt/response exchange recorded for the run report.
type Interaction struct {
	// Slot names the logical prompt slot ("initial", "update", "final",
	// or a fallback variant).
	Slot string `json:"slot"`

	// TokenRange is the "start-end" window range, or "final".
	TokenRange string `json:"token_range"`

	// System is the system-role instruction, if any.
	System string `json:"system,omitempty"`

	// Prompt is the literal user prompt sent.
	Prompt string `json:"prompt"`

	// Response is the worker's completion, possibly empty.
	Response string `json:"response"`

	// Attempts is the invocation attempt count.
	Attempts int `json:"attempts"`

	// TerminalKind is set when the invocation failed at the transport level.
	TerminalKind string `json:"terminal_kind,omitempty"`

	// Timestamp is when the exchange completed.
	Timestamp time.Time `json:"timestamp"`
}

// Recorder captures the ordered interaction log of one (case, worker) run so
// the report layer can persist full prompt/response trajectories. Safe for
// concurrent use, though the pipeline itself is sequential.
type Recorder struct {
	mu           sync.Mutex
	interactions []Interaction
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Record appends an interaction, stamping it if the timestamp is zero.
func (r *Recorder) Record(i Interaction) {
	if i.Timestamp.IsZero() {
		i.Timestamp = time.Now()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.interactions = append(r.interactions, i)
}

// Interactions returns a copy of the recorded exchanges in order.
func (r *Recorder) Interactions() []Interaction {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Interaction, len(r.interactions))
	copy(out, r.interactions)
	return out
}

// Len returns the number of recorded exchanges.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.interactions)
}
