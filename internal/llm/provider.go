// Package llm provides a uniform abstraction over the chat and embedding
// APIs of several OpenAI-compatible LLM backends, so the RAG engine (C9)
// and ingest pipeline (C7) don't need to know which provider is configured.
package llm

import (
	"context"
	"fmt"
)

// Provider is the interface for LLM interactions used by the RAG engine
// for answer generation and by the ingest pipeline for embedding.
type Provider interface {
	// Chat sends a chat completion request.
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)

	// Embed generates embeddings for a batch of texts, preserving order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// ChatRequest is a chat completion request.
type ChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	// ResponseFormat can be set to "json_object" to request JSON mode, used
	// by the combined classify-and-answer call in the RAG engine.
	ResponseFormat string `json:"response_format,omitempty"`
}

// Message represents a single chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatResponse is the response from a chat completion.
type ChatResponse struct {
	Content          string `json:"content"`
	Model            string `json:"model"`
	FinishReason     string `json:"finish_reason"`
	PromptTokens     int    `json:"prompt_tokens"`
	CompletionTokens int    `json:"completion_tokens"`
	TotalTokens      int    `json:"total_tokens"`
}

// Config configures an LLM provider.
type Config struct {
	Provider string `json:"provider"` // ollama, lmstudio, openrouter, openai, groq, xai, gemini, custom
	Model    string `json:"model"`
	BaseURL  string `json:"base_url"`
	APIKey   string `json:"api_key"`
}

// RequestError wraps a failed provider call with enough information for
// the RAG engine's upstream-failure classification (§C9 GenerateWithRetry)
// to decide whether to retry or surface an upstream-failure error to the
// caller directly.
type RequestError struct {
	StatusCode int
	Retryable  bool
	Err        error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("llm request failed (status=%d retryable=%v): %v", e.StatusCode, e.Retryable, e.Err)
}

func (e *RequestError) Unwrap() error { return e.Err }

// NewProvider creates an LLM provider from configuration.
func NewProvider(cfg Config) (Provider, error) {
	switch cfg.Provider {
	case "ollama":
		return NewOllama(cfg), nil
	case "lmstudio":
		return NewLMStudio(cfg), nil
	case "openrouter":
		return NewOpenRouter(cfg), nil
	case "openai":
		return NewOpenAI(cfg), nil
	case "groq":
		return NewGroq(cfg), nil
	case "xai":
		return NewXAI(cfg), nil
	case "gemini":
		return NewGemini(cfg), nil
	case "custom":
		return NewOpenAICompat(cfg), nil
	case "":
		return nil, fmt.Errorf("llm provider not specified")
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", cfg.Provider)
	}
}
