package llm

// TerminalKind classifies why an invocation gave up entirely.
type TerminalKind string

const (
	// TerminalTimeout means every attempt ran out of its per-call budget.
	TerminalTimeout TerminalKind = "timeout"

	// TerminalTransport means a transport or API failure exhausted the
	// attempt budget, or a fatal (non-retryable) rejection occurred.
	TerminalTransport TerminalKind = "transport_error"

	// TerminalExhausted tags fully failed invocations in persisted records.
	// The invoker itself does not return it for empty-content exhaustion:
	// that case carries no terminal kind, and callers apply their local
	// fallback policy instead of propagating emptiness.
	TerminalExhausted TerminalKind = "all_retries_exhausted"
)

// InvocationResult is the outcome of one call to a worker model. Content is
// non-empty unless every retry failed; when a transport-level failure
// exhausted the budget, TerminalKind is set and callers must treat the run
// as aborted rather than continue on a dead endpoint.
type InvocationResult struct {
	// Content is the best-effort completion text, empty on terminal failure
	// or full zero-response exhaustion.
	Content string

	// AttemptCount is the number of attempts consumed, always >= 1.
	AttemptCount int

	// TerminalKind is empty for success and for exhausted-but-healthy zero
	// responses.
	TerminalKind TerminalKind

	// Err is the last transport error observed when TerminalKind is set.
	Err error
}

// OK reports a usable non-empty completion.
func (r InvocationResult) OK() bool {
	return r.TerminalKind == "" && r.Content != ""
}

// Empty reports a healthy call chain that still produced no text. The caller
// must substitute fallback content, never propagate the emptiness.
func (r InvocationResult) Empty() bool {
	return r.TerminalKind == "" && r.Content == ""
}

// Failed reports a terminal transport-level failure.
func (r InvocationResult) Failed() bool {
	return r.TerminalKind != ""
}
