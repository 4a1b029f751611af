// Package providers implements the worker transports: the local Ollama
// native chat API and OpenAI-compatible cloud chat completions. Providers
// register themselves via init(); import this package for its side effects.
package providers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/c360studio/sleuthbench/llm"
	"github.com/c360studio/sleuthbench/model"
)

// OllamaProvider implements the native Ollama /api/chat endpoint, which
// accepts the full decoding-options payload (top_k, repeat_penalty, num_ctx,
// num_predict, mirostat) the escalation schedules rely on.
type OllamaProvider struct{}

func init() {
	llm.RegisterProvider(&OllamaProvider{})
}

// Name returns the provider identifier.
func (o *OllamaProvider) Name() string {
	return "ollama"
}

// BuildURL constructs the native chat endpoint.
func (o *OllamaProvider) BuildURL(baseURL string) string {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	if strings.HasSuffix(baseURL, "/api/chat") {
		return baseURL
	}

	return baseURL + "/api/chat"
}

// SetHeaders adds headers. The local endpoint needs none.
func (o *OllamaProvider) SetHeaders(_ *http.Request) {}

// ollamaRequest is the native chat request format.
type ollamaRequest struct {
	Model    string          `json:"model"`
	Messages []llm.Message   `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  json.RawMessage `json:"options,omitempty"`
}

// BuildRequestBody creates the native chat request body. The decoding
// options marshal directly into the "options" object; zero-valued knobs are
// omitted so the endpoint keeps its defaults.
func (o *OllamaProvider) BuildRequestBody(modelID string, messages []llm.Message, opts model.DecodingOptions) ([]byte, error) {
	rawOpts, err := json.Marshal(opts)
	if err != nil {
		return nil, fmt.Errorf("marshal decoding options: %w", err)
	}

	return json.Marshal(ollamaRequest{
		Model:    modelID,
		Messages: messages,
		Stream:   false,
		Options:  rawOpts,
	})
}

// ollamaResponse is the native chat response format.
type ollamaResponse struct {
	Model   string `json:"model"`
	Message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
	Done            bool `json:"done"`
	PromptEvalCount int  `json:"prompt_eval_count"`
	EvalCount       int  `json:"eval_count"`
}

// ParseResponse extracts content from a native chat response. A missing or
// empty message is a valid zero response, not a parse error.
func (o *OllamaProvider) ParseResponse(body []byte) (*llm.Response, error) {
	var resp ollamaResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parse ollama response: %w", err)
	}

	return &llm.Response{
		Content:          resp.Message.Content,
		Model:            resp.Model,
		PromptTokens:     resp.PromptEvalCount,
		CompletionTokens: resp.EvalCount,
		TotalTokens:      resp.PromptEvalCount + resp.EvalCount,
	}, nil
}
