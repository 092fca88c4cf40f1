// Package rag implements the retrieval-augmented generation engine
// (C9): the query control flow, the no-context fallback, prompt
// assembly, and bounded retry around generation. Prompt composition is
// grounded on the teacher's buildContext/buildAnswerPrompt pairing,
// simplified to a single generation pass per query (no multi-round
// validation loop).
package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/finrag/finrag/internal/llm"
	"github.com/finrag/finrag/internal/session"
	"github.com/finrag/finrag/internal/settings"
	"github.com/finrag/finrag/internal/store"
	"github.com/finrag/finrag/internal/vectorindex"
)

// refusalPrefix opens the canned response for queries outside the
// financial domain, per spec.md §4.4.1. Callers can match on this
// prefix to distinguish a refusal from a grounded or general answer.
const refusalPrefix = "I'm a financial assistant specialized in finance-related topics"

const systemInstructions = `You are a financial assistant. Answer the user's question using the retrieved context when it is relevant. If no context is retrieved, decide whether the question is within the financial domain: if so, answer from general financial knowledge; if not, respond with exactly this refusal and nothing else: "` + refusalPrefix + `, and I can't help with that request."`

// Source is a retrieved chunk projected for the API response: text is
// truncated and the score is preserved unrounded.
type Source struct {
	DocumentID     string
	ChunkID        string
	Text           string
	RelevanceScore float64
}

const sourceTextLimit = 200

// Answer is the result of a Query call.
type Answer struct {
	Response  string
	Sources   []Source
	SessionID string
}

// Engine ties the vector index, session manager, settings cache, and
// chat/embedding providers together into the query pipeline described
// in spec.md §4.4.
type Engine struct {
	index    *vectorindex.Index
	sessions *session.Manager
	settings *settings.Cache
	chat     llm.Provider
	embed    llm.Provider
}

// New constructs an Engine. chat and embed may be the same Provider.
func New(index *vectorindex.Index, sessions *session.Manager, cfg *settings.Cache, chat, embed llm.Provider) *Engine {
	return &Engine{index: index, sessions: sessions, settings: cfg, chat: chat, embed: embed}
}

// Query runs the full control flow: if the index is empty, embedding
// fails, or no hit clears the similarity threshold, it falls back to
// HandleNoContext; otherwise it builds a prompt from the retrieved
// chunks and history, generates an answer with bounded retry, persists
// the exchange, and returns the answer with its sources.
func (e *Engine) Query(ctx context.Context, sessionID, userID, query string) (*Answer, error) {
	snap := e.settings.Snapshot()

	empty, err := e.index.IsEmpty(ctx)
	if err != nil || empty {
		return e.handleNoContext(ctx, sessionID, query, snap)
	}

	queryVecs, err := e.embed.Embed(ctx, []string{query})
	if err != nil || len(queryVecs) == 0 {
		return e.handleNoContext(ctx, sessionID, query, snap)
	}

	topK := int(snap.Int("top_k"))
	threshold := snap.Float("similarity_threshold")
	hits := e.index.Search(ctx, queryVecs[0], topK, threshold)
	if len(hits) == 0 {
		return e.handleNoContext(ctx, sessionID, query, snap)
	}

	history, err := e.sessions.History(ctx, sessionID, int(snap.Int("max_conversation_turns")))
	if err != nil {
		return nil, fmt.Errorf("loading session history: %w", err)
	}

	prompt := buildPrompt(systemInstructions, hits, history, query)
	answer, err := e.generateWithRetry(ctx, prompt, snap)
	if err != nil {
		return nil, fmt.Errorf("generating answer: %w", err)
	}

	if err := e.sessions.AppendPair(ctx, sessionID, query, answer); err != nil {
		return nil, fmt.Errorf("appending conversation turn: %w", err)
	}

	return &Answer{
		Response:  answer,
		Sources:   projectSources(hits),
		SessionID: sessionID,
	}, nil
}

// handleNoContext issues the single combined classify-and-respond
// generation call described in spec.md §4.4.1: the model itself
// decides, from the system instructions, whether to answer from prior
// knowledge or refuse. The exchange is persisted exactly like a normal
// Q/A pair; sources are always empty.
func (e *Engine) handleNoContext(ctx context.Context, sessionID, query string, snap *settings.Snapshot) (*Answer, error) {
	history, err := e.sessions.History(ctx, sessionID, int(snap.Int("max_conversation_turns")))
	if err != nil {
		return nil, fmt.Errorf("loading session history: %w", err)
	}

	prompt := buildPrompt(systemInstructions, nil, history, query)
	answer, err := e.generateWithRetry(ctx, prompt, snap)
	if err != nil {
		return nil, fmt.Errorf("generating fallback answer: %w", err)
	}

	if err := e.sessions.AppendPair(ctx, sessionID, query, answer); err != nil {
		return nil, fmt.Errorf("appending conversation turn: %w", err)
	}

	return &Answer{Response: answer, Sources: []Source{}, SessionID: sessionID}, nil
}

// generateWithRetry issues the chat completion, retrying up to twice
// with 1s then 2s backoff on transient provider failures. It classifies
// retryability via llm.RequestError, mirroring the teacher's transport
// retry classification but applying the engine's own narrower policy
// (spec.md §4.4) on top of it.
func (e *Engine) generateWithRetry(ctx context.Context, prompt string, snap *settings.Snapshot) (string, error) {
	const maxRetries = 2
	backoffs := []time.Duration{time.Second, 2 * time.Second}

	req := llm.ChatRequest{
		Model:       snap.String("chat_model"),
		Messages:    []llm.Message{{Role: "user", Content: prompt}},
		Temperature: snap.Float("gemini_temperature"),
		MaxTokens:   int(snap.Int("gemini_max_tokens")),
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		resp, err := e.chat.Chat(ctx, req)
		if err == nil {
			return resp.Content, nil
		}
		lastErr = err

		var reqErr *llm.RequestError
		if !errors.As(err, &reqErr) || !reqErr.Retryable || attempt == maxRetries {
			return "", err
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(backoffs[attempt]):
		}
	}
	return "", lastErr
}

// buildPrompt assembles the four labeled regions in fixed order,
// omitting any region with nothing to say rather than emitting it
// empty.
func buildPrompt(systemPrompt string, hits []vectorindex.ScoredChunk, history []store.Message, query string) string {
	var b strings.Builder
	b.WriteString(systemPrompt)

	if len(hits) > 0 {
		b.WriteString("\n\nRetrieved documents:\n")
		for i, h := range hits {
			fmt.Fprintf(&b, "--- Document %d: %s ---\n", i+1, filenameOf(h))
			b.WriteString(h.Content)
			b.WriteString("\n")
		}
	}

	if len(history) > 0 {
		b.WriteString("\nConversation history:\n")
		for _, m := range history {
			fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Content)
		}
	}

	fmt.Fprintf(&b, "\nUser query: %s", query)
	return b.String()
}

func filenameOf(h vectorindex.ScoredChunk) string {
	if h.Metadata == nil {
		return h.DocumentID
	}
	if fn, ok := h.Metadata["filename"].(string); ok && fn != "" {
		return fn
	}
	return h.DocumentID
}

// projectSources converts hits into the API-facing Source list,
// truncating chunk text to 200 characters and preserving score
// unrounded, per spec.md §4.4's source projection rule.
func projectSources(hits []vectorindex.ScoredChunk) []Source {
	out := make([]Source, len(hits))
	for i, h := range hits {
		out[i] = Source{
			DocumentID:     h.DocumentID,
			ChunkID:        h.ChunkID,
			Text:           truncate(h.Content, sourceTextLimit),
			RelevanceScore: h.Score,
		}
	}
	return out
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
