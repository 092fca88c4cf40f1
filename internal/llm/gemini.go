package llm

import "context"

// geminiProvider implements Provider for Google's Gemini API via its
// OpenAI-compatible endpoint, which uses a bare path prefix (no /v1).
//
// Supported chat models: gemini-2.5-flash, gemini-2.5-pro, gemini-2.0-flash.
// Supported embedding model: gemini-embedding-001 (3072 dim).
//
// API key: set via config or the GEMINI_API_KEY env var.
type geminiProvider struct {
	base openAICompatClient
}

// NewGemini creates a provider for Google Gemini.
func NewGemini(cfg Config) Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://generativelanguage.googleapis.com/v1beta/openai"
	}
	return &geminiProvider{base: newOpenAICompatClientPrefix(cfg, "")}
}

func (p *geminiProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	return p.base.chat(ctx, req)
}

func (p *geminiProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return p.base.embed(ctx, texts)
}
