// Package model provides worker-class based endpoint selection and decoding
// parameter escalation for benchmark runs. Instead of branching on model name
// substrings, callers tag each worker endpoint with a class (standard,
// constrained, cloud) and the registry resolves decoding schedules, timeouts,
// and prompt adaptation from that class.
package model

// Class represents a worker capability tier. It drives prompt adaptation and
// decoding-parameter escalation without any knowledge of specific model names.
type Class string

const (
	// ClassStandard is a typical local chat model with a normal output budget.
	ClassStandard Class = "standard"

	// ClassConstrained is a worker with a very small effective context/output
	// budget and known pathological empty-response behavior. Prompts are
	// compressed and decoding knobs are escalated aggressively on retries.
	ClassConstrained Class = "constrained"

	// ClassCloud is a remote chat-completions endpoint.
	ClassCloud Class = "cloud"
)

// IsValid checks if a class string is a known worker class.
func (c Class) IsValid() bool {
	switch c {
	case ClassStandard, ClassConstrained, ClassCloud:
		return true
	}
	return false
}

// String returns the string representation of the class.
func (c Class) String() string {
	return string(c)
}

// ParseClass converts a string to a Class, returning empty for invalid values.
func ParseClass(s string) Class {
	c := Class(s)
	if c.IsValid() {
		return c
	}
	return ""
}
