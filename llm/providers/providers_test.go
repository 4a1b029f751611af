package providers_test

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/sleuthbench/llm"
	"github.com/c360studio/sleuthbench/llm/providers"
	"github.com/c360studio/sleuthbench/model"
)

func TestProvidersRegistered(t *testing.T) {
	assert.NotNil(t, llm.GetProvider("ollama"))
	assert.NotNil(t, llm.GetProvider("openai"))
	assert.Nil(t, llm.GetProvider("bogus"))
}

func TestOllama_BuildURL(t *testing.T) {
	p := &providers.OllamaProvider{}

	assert.Equal(t, "http://localhost:11434/api/chat", p.BuildURL(""))
	assert.Equal(t, "http://host:1234/api/chat", p.BuildURL("http://host:1234"))
	assert.Equal(t, "http://host:1234/api/chat", p.BuildURL("http://host:1234/"))
	assert.Equal(t, "http://host:1234/api/chat", p.BuildURL("http://host:1234/api/chat"))
}

func TestOllama_BuildRequestBody(t *testing.T) {
	p := &providers.OllamaProvider{}

	body, err := p.BuildRequestBody("gemma3:latest",
		[]llm.Message{{Role: "user", Content: "hi"}},
		model.DecodingOptions{
			Temperature:     0.8,
			TopK:            60,
			RepeatPenalty:   1.05,
			ContextTokens:   2048,
			MaxOutputTokens: 100,
			Mirostat:        2,
			MirostatTau:     5.0,
		})
	require.NoError(t, err)

	var req map[string]any
	require.NoError(t, json.Unmarshal(body, &req))

	assert.Equal(t, "gemma3:latest", req["model"])
	assert.Equal(t, false, req["stream"])

	opts, ok := req["options"].(map[string]any)
	require.True(t, ok)
	assert.InDelta(t, 0.8, opts["temperature"], 1e-9)
	assert.InDelta(t, 60, opts["top_k"], 1e-9)
	assert.InDelta(t, 2048, opts["num_ctx"], 1e-9)
	assert.InDelta(t, 100, opts["num_predict"], 1e-9)
	assert.InDelta(t, 2, opts["mirostat"], 1e-9)
}

func TestOllama_OmitsZeroKnobs(t *testing.T) {
	p := &providers.OllamaProvider{}

	body, err := p.BuildRequestBody("m", nil, model.DecodingOptions{Temperature: 0.1})
	require.NoError(t, err)

	var req map[string]any
	require.NoError(t, json.Unmarshal(body, &req))
	opts := req["options"].(map[string]any)

	_, hasTopK := opts["top_k"]
	_, hasMirostat := opts["mirostat"]
	assert.False(t, hasTopK)
	assert.False(t, hasMirostat)
}

func TestOllama_ParseResponse(t *testing.T) {
	p := &providers.OllamaProvider{}

	resp, err := p.ParseResponse([]byte(`{
		"model": "gemma3:latest",
		"message": {"role": "assistant", "content": "summary text"},
		"done": true,
		"prompt_eval_count": 100,
		"eval_count": 20
	}`))
	require.NoError(t, err)
	assert.Equal(t, "summary text", resp.Content)
	assert.Equal(t, 120, resp.TotalTokens)

	// Empty message is a zero response, not a parse error.
	resp, err = p.ParseResponse([]byte(`{"model": "m", "done": true}`))
	require.NoError(t, err)
	assert.Empty(t, resp.Content)

	_, err = p.ParseResponse([]byte(`not json`))
	assert.Error(t, err)
}

func TestOpenAI_BuildURL(t *testing.T) {
	p := &providers.OpenAIProvider{}

	assert.Equal(t, "https://api.openai.com/v1/chat/completions", p.BuildURL(""))
	assert.Equal(t, "https://api.qnaigc.com/v1/chat/completions", p.BuildURL("https://api.qnaigc.com/v1"))
}

func TestOpenAI_BuildRequestBody(t *testing.T) {
	p := &providers.OpenAIProvider{}

	body, err := p.BuildRequestBody("deepseek-v3",
		[]llm.Message{{Role: "system", Content: "s"}, {Role: "user", Content: "u"}},
		model.DecodingOptions{Temperature: 0.7, TopP: 0.9, MaxOutputTokens: 256})
	require.NoError(t, err)

	var req map[string]any
	require.NoError(t, json.Unmarshal(body, &req))
	assert.Equal(t, "deepseek-v3", req["model"])
	assert.InDelta(t, 0.7, req["temperature"], 1e-9)
	assert.InDelta(t, 0.9, req["top_p"], 1e-9)
	assert.InDelta(t, 256, req["max_tokens"], 1e-9)

	// Knobs the API does not understand are never sent.
	_, hasNumCtx := req["num_ctx"]
	_, hasMirostat := req["mirostat"]
	assert.False(t, hasNumCtx)
	assert.False(t, hasMirostat)
}

func TestOpenAI_ParseResponse(t *testing.T) {
	p := &providers.OpenAIProvider{}

	resp, err := p.ParseResponse([]byte(`{
		"model": "deepseek-v3",
		"choices": [{"index": 0, "message": {"role": "assistant", "content": "verdict"}, "finish_reason": "stop"}],
		"usage": {"prompt_tokens": 5, "completion_tokens": 3, "total_tokens": 8}
	}`))
	require.NoError(t, err)
	assert.Equal(t, "verdict", resp.Content)
	assert.Equal(t, 8, resp.TotalTokens)

	_, err = p.ParseResponse([]byte(`{"choices": []}`))
	assert.Error(t, err)
}

func TestOpenAI_SetHeaders(t *testing.T) {
	p := &providers.OpenAIProvider{}

	t.Setenv("SLEUTHBENCH_API_KEY", "bench-key")
	t.Setenv("OPENAI_API_KEY", "general-key")

	req, err := http.NewRequest(http.MethodPost, "https://example.com", nil)
	require.NoError(t, err)
	p.SetHeaders(req)
	assert.Equal(t, "Bearer bench-key", req.Header.Get("Authorization"))

	t.Setenv("SLEUTHBENCH_API_KEY", "")
	req2, err := http.NewRequest(http.MethodPost, "https://example.com", nil)
	require.NoError(t, err)
	p.SetHeaders(req2)
	assert.Equal(t, "Bearer general-key", req2.Header.Get("Authorization"))
}
