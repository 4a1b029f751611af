// Package main implements a mock worker server for e2e testing.
// It serves both OpenAI-compatible /v1/chat/completions and Ollama-native
// /api/chat responses, routing by the "model" field in the request. This
// eliminates the need for a real model during pipeline wiring tests, making
// them fast, deterministic, and offline-capable.
//
// Usage:
//
//	mock-llm -script /path/to/script.json -port 11434
//
// The script file maps model names to behaviors:
//
//	{
//	  "flaky-worker":  {"empty_first": 3, "reply": "A is the culprit."},
//	  "broken-worker": {"fail_first": 100, "fail_status": 500},
//	  "slow-worker":   {"delay_ms": 1500}
//	}
//
// empty_first makes the first N calls return empty content (exercising the
// retry and fallback ladders), fail_first makes the first N calls return
// fail_status, and delay_ms delays every response. Models without a script
// entry echo a bounded excerpt of the last user message, so summaries carry
// transcript evidence forward and scoring stays meaningful.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// --- Wire types ---

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type openAIResponse struct {
	ID      string         `json:"id"`
	Object  string         `json:"object"`
	Created int64          `json:"created"`
	Model   string         `json:"model"`
	Choices []openAIChoice `json:"choices"`
	Usage   openAIUsage    `json:"usage"`
}

type openAIChoice struct {
	Index        int         `json:"index"`
	Message      chatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

type openAIUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type ollamaRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type ollamaResponse struct {
	Model           string      `json:"model"`
	Message         chatMessage `json:"message"`
	Done            bool        `json:"done"`
	PromptEvalCount int         `json:"prompt_eval_count"`
	EvalCount       int         `json:"eval_count"`
}

// --- Behaviors ---

// behavior scripts how a model answers across its call sequence.
type behavior struct {
	// FailFirst makes the first N calls return FailStatus.
	FailFirst  int `json:"fail_first"`
	FailStatus int `json:"fail_status"`

	// EmptyFirst makes the next N calls return empty content.
	EmptyFirst int `json:"empty_first"`

	// DelayMs delays every response.
	DelayMs int `json:"delay_ms"`

	// Reply is the fixed response content (empty = echo the last user
	// message excerpt).
	Reply string `json:"reply"`
}

const echoLimit = 200

type server struct {
	behaviors map[string]behavior
	calls     atomic.Int64

	// Per-model call counters for sequential behavior selection.
	modelCalls   map[string]*atomic.Int64
	modelCallsMu sync.Mutex
}

func newServer(behaviors map[string]behavior) *server {
	return &server{
		behaviors:  behaviors,
		modelCalls: make(map[string]*atomic.Int64),
	}
}

// getModelCounter returns the call counter for a model, creating it lazily.
func (s *server) getModelCounter(model string) *atomic.Int64 {
	s.modelCallsMu.Lock()
	defer s.modelCallsMu.Unlock()
	if c, ok := s.modelCalls[model]; ok {
		return c
	}
	c := &atomic.Int64{}
	s.modelCalls[model] = c
	return c
}

// respond resolves the scripted outcome for one call. It returns the content
// and true, or false when the call should fail with the given status.
func (s *server) respond(model string, messages []chatMessage) (string, int, bool) {
	s.calls.Add(1)
	call := int(s.getModelCounter(model).Add(1))

	b, scripted := s.behaviors[model]
	if scripted {
		if b.DelayMs > 0 {
			time.Sleep(time.Duration(b.DelayMs) * time.Millisecond)
		}
		if call <= b.FailFirst {
			status := b.FailStatus
			if status == 0 {
				status = http.StatusInternalServerError
			}
			return "", status, false
		}
		if call <= b.FailFirst+b.EmptyFirst {
			return "", 0, true
		}
		if b.Reply != "" {
			return b.Reply, 0, true
		}
	}
	return echoReply(messages), 0, true
}

// echoReply carries a bounded excerpt of the newest user content forward, so
// recursive summaries still accumulate transcript evidence.
func echoReply(messages []chatMessage) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role != "user" {
			continue
		}
		content := messages[i].Content
		runes := []rune(content)
		if len(runes) > echoLimit {
			content = string(runes[len(runes)-echoLimit:])
		}
		return "Evidence so far: " + content
	}
	return "Evidence so far: none."
}

func (s *server) handleOpenAI(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}
	var req openAIRequest
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	content, status, ok := s.respond(req.Model, req.Messages)
	if !ok {
		http.Error(w, "scripted failure", status)
		return
	}

	resp := openAIResponse{
		ID:      fmt.Sprintf("mock-%d", s.calls.Load()),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   req.Model,
		Choices: []openAIChoice{{
			Message:      chatMessage{Role: "assistant", Content: content},
			FinishReason: "stop",
		}},
		Usage: openAIUsage{
			PromptTokens:     len(body) / 4,
			CompletionTokens: len(content) / 4,
			TotalTokens:      (len(body) + len(content)) / 4,
		},
	}
	writeJSON(w, resp)
}

func (s *server) handleOllama(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}
	var req ollamaRequest
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	content, status, ok := s.respond(req.Model, req.Messages)
	if !ok {
		http.Error(w, "scripted failure", status)
		return
	}

	resp := ollamaResponse{
		Model:           req.Model,
		Message:         chatMessage{Role: "assistant", Content: content},
		Done:            true,
		PromptEvalCount: len(body) / 4,
		EvalCount:       len(content) / 4,
	}
	writeJSON(w, resp)
}

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]any{
		"status": "ok",
		"calls":  s.calls.Load(),
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("encode response: %v", err)
	}
}

func loadScript(path string) (map[string]behavior, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}
	var behaviors map[string]behavior
	if err := json.Unmarshal(data, &behaviors); err != nil {
		return nil, fmt.Errorf("parse script: %w", err)
	}
	return behaviors, nil
}

func main() {
	scriptPath := flag.String("script", "", "JSON file mapping model names to behaviors")
	port := flag.Int("port", 11434, "port to listen on")
	flag.Parse()

	behaviors, err := loadScript(*scriptPath)
	if err != nil {
		log.Fatalf("mock-llm: %v", err)
	}

	s := newServer(behaviors)
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/chat/completions", s.handleOpenAI)
	mux.HandleFunc("/api/chat", s.handleOllama)
	mux.HandleFunc("/health", s.handleHealth)

	addr := fmt.Sprintf(":%d", *port)
	log.Printf("mock-llm listening on %s (%d scripted models)", addr, len(behaviors))
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatal(err)
	}
}
