package llm

import (
	"net/http"
	"sync"

	"github.com/c360studio/sleuthbench/model"
)

// Message represents a role-tagged chat message.
type Message struct {
	Role    string `json:"role"`    // "system" or "user"
	Content string `json:"content"` // Message content
}

// Response contains a parsed worker completion. Content may legitimately be
// empty: small local models return zero-length completions often enough that
// emptiness is a classification, not a parse failure.
type Response struct {
	Content          string
	Model            string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Provider defines the interface for worker transport implementations.
type Provider interface {
	// Name returns the provider identifier (e.g. "ollama", "openai").
	Name() string

	// BuildURL constructs the full chat endpoint URL from a base URL.
	BuildURL(baseURL string) string

	// SetHeaders adds provider-specific headers to the request.
	SetHeaders(req *http.Request)

	// BuildRequestBody creates the JSON request body.
	BuildRequestBody(modelID string, messages []Message, opts model.DecodingOptions) ([]byte, error)

	// ParseResponse extracts the completion from provider-specific JSON.
	ParseResponse(body []byte) (*Response, error)
}

var (
	providerRegistry = make(map[string]Provider)
	providerMu       sync.RWMutex
)

// RegisterProvider adds a provider to the registry. Providers register
// themselves via init(); import the providers package for its side effects.
func RegisterProvider(p Provider) {
	providerMu.Lock()
	defer providerMu.Unlock()
	providerRegistry[p.Name()] = p
}

// GetProvider retrieves a provider by name, or nil if unregistered.
func GetProvider(name string) Provider {
	providerMu.RLock()
	defer providerMu.RUnlock()
	return providerRegistry[name]
}

// ListProviders returns all registered provider names.
func ListProviders() []string {
	providerMu.RLock()
	defer providerMu.RUnlock()

	names := make([]string, 0, len(providerRegistry))
	for name := range providerRegistry {
		names = append(names, name)
	}
	return names
}
