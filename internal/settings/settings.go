// Package settings implements the live-reloadable configuration cache
// (C14). Every setting's data_type is tracked explicitly and validated
// before write, modeled as a tagged variant over {int64, float64,
// string, bool} per the design notes rather than an untyped value bag.
//
// A single process-wide snapshot is held behind an atomic.Pointer so
// concurrent readers (the RAG engine, ingestion, auth) never block on
// an admin write; Update swaps in a freshly loaded snapshot after the
// store commit succeeds.
package settings

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"

	"github.com/finrag/finrag/internal/apperr"
	"github.com/finrag/finrag/internal/store"
)

// Kind names the tagged-variant discriminant, mirroring config_settings.data_type.
type Kind string

const (
	KindInt    Kind = "int"
	KindFloat  Kind = "float"
	KindString Kind = "string"
	KindBool   Kind = "bool"
)

// Value is a decoded setting, carrying exactly one populated field per
// Kind. Zero values of the unused fields are never read.
type Value struct {
	Kind   Kind
	Int    int64
	Float  float64
	String string
	Bool   bool
}

// Definition is a setting's static shape: its default, bounds, and
// documentation. DefaultDefinitions lists every setting this service
// seeds at startup.
type Definition struct {
	Name         string
	Kind         Kind
	Default      string
	Min          *float64
	Max          *float64
	MaxLength    *int
	Category     string
	Description  string
}

func floatPtr(f float64) *float64 { return &f }
func intPtr(i int) *int           { return &i }

// DefaultDefinitions returns the built-in configurable settings:
// spec.md §4.4's RAG/ingestion knobs plus the admin-only auth/session/
// rate-limit knobs. Chat and embedding models are seeded with no
// hard-coded default beyond these values (O1): gemini-2.5-flash and
// gemini-embedding-001, matching the provider defaults documented
// alongside the Gemini client.
func DefaultDefinitions() []Definition {
	return []Definition{
		{Name: "top_k", Kind: KindInt, Default: "5", Min: floatPtr(1), Max: floatPtr(20),
			Category: "rag", Description: "Maximum number of retrieved chunks considered per query."},
		{Name: "similarity_threshold", Kind: KindFloat, Default: "0.7", Min: floatPtr(0), Max: floatPtr(1),
			Category: "rag", Description: "Minimum cosine similarity score for a retrieved chunk to count as context."},
		{Name: "chunk_size", Kind: KindInt, Default: "800", Min: floatPtr(100), Max: floatPtr(8000),
			Category: "ingestion", Description: "Target character length of a document chunk."},
		{Name: "chunk_overlap", Kind: KindInt, Default: "150", Min: floatPtr(0), Max: floatPtr(4000),
			Category: "ingestion", Description: "Character overlap preserved between consecutive chunks."},
		{Name: "max_conversation_turns", Kind: KindInt, Default: "10", Min: floatPtr(1), Max: floatPtr(100),
			Category: "session", Description: "Number of Q/A turns returned to the prompt builder as history."},
		{Name: "gemini_temperature", Kind: KindFloat, Default: "0.3", Min: floatPtr(0), Max: floatPtr(2),
			Category: "rag", Description: "Sampling temperature passed to the chat model."},
		{Name: "gemini_max_tokens", Kind: KindInt, Default: "1024", Min: floatPtr(1), Max: floatPtr(32768),
			Category: "rag", Description: "Maximum completion tokens requested from the chat model."},
		{Name: "max_file_size_mb", Kind: KindInt, Default: "20", Min: floatPtr(1), Max: floatPtr(500),
			Category: "ingestion", Description: "Largest accepted upload, in megabytes."},
		{Name: "chat_model", Kind: KindString, Default: "gemini-2.5-flash", MaxLength: intPtr(200),
			Category: "rag", Description: "Model identifier used for chat completions."},
		{Name: "embedding_model", Kind: KindString, Default: "gemini-embedding-001", MaxLength: intPtr(200),
			Category: "rag", Description: "Model identifier used for embeddings."},
		{Name: "access_token_expire_minutes", Kind: KindInt, Default: "60", Min: floatPtr(1), Max: floatPtr(43200),
			Category: "auth", Description: "Bearer token lifetime in minutes."},
		{Name: "session_inactivity_minutes", Kind: KindInt, Default: "1440", Min: floatPtr(1), Max: floatPtr(43200),
			Category: "session", Description: "Minutes of inactivity before a session is evicted."},
		{Name: "rate_limit_per_minute", Kind: KindInt, Default: "60", Min: floatPtr(1), Max: floatPtr(100000),
			Category: "admin", Description: "Requests per minute permitted per authenticated user."},
	}
}

// Snapshot is an immutable point-in-time view of every setting,
// published behind the cache's atomic.Pointer. A query already in
// flight keeps using the snapshot it started with even if an admin
// writes a new value mid-request.
type Snapshot struct {
	values map[string]Value
}

// Get returns the decoded value for name and whether it was present.
func (s *Snapshot) Get(name string) (Value, bool) {
	if s == nil {
		return Value{}, false
	}
	v, ok := s.values[name]
	return v, ok
}

func (s *Snapshot) Int(name string) int64 {
	v, _ := s.Get(name)
	return v.Int
}

func (s *Snapshot) Float(name string) float64 {
	v, _ := s.Get(name)
	return v.Float
}

func (s *Snapshot) String(name string) string {
	v, _ := s.Get(name)
	return v.String
}

func (s *Snapshot) Bool(name string) bool {
	v, _ := s.Get(name)
	return v.Bool
}

// Cache is the process-wide settings cache (C14). Zero value is not
// usable; construct with NewCache.
type Cache struct {
	store   *store.Store
	current atomic.Pointer[Snapshot]
}

// NewCache wraps a store for settings persistence and live reload.
func NewCache(s *store.Store) *Cache {
	return &Cache{store: s}
}

// Seed inserts every built-in definition's default into the store,
// leaving already-persisted values (operator overrides) untouched,
// then loads the snapshot. Call once at startup.
func (c *Cache) Seed(ctx context.Context) error {
	for _, def := range DefaultDefinitions() {
		cs := store.ConfigSetting{
			Name:         def.Name,
			Value:        def.Default,
			DefaultValue: def.Default,
			DataType:     string(def.Kind),
			Category:     def.Category,
			Description:  def.Description,
		}
		if def.Min != nil {
			cs.MinValue.Float64, cs.MinValue.Valid = *def.Min, true
		}
		if def.Max != nil {
			cs.MaxValue.Float64, cs.MaxValue.Valid = *def.Max, true
		}
		if def.MaxLength != nil {
			cs.MaxLength.Int64, cs.MaxLength.Valid = int64(*def.MaxLength), true
		}
		if err := c.store.SeedConfigSetting(ctx, cs); err != nil {
			return fmt.Errorf("seeding setting %q: %w", def.Name, err)
		}
	}
	return c.Reload(ctx)
}

// Reload rebuilds the snapshot from the store's current rows and
// publishes it atomically. Called after Seed and after every admin
// write.
func (c *Cache) Reload(ctx context.Context) error {
	rows, err := c.store.AllConfigSettings(ctx)
	if err != nil {
		return fmt.Errorf("loading config settings: %w", err)
	}
	values := make(map[string]Value, len(rows))
	for _, row := range rows {
		v, err := decode(Kind(row.DataType), row.Value)
		if err != nil {
			return fmt.Errorf("decoding setting %q: %w", row.Name, err)
		}
		values[row.Name] = v
	}
	c.current.Store(&Snapshot{values: values})
	return nil
}

// Snapshot returns the currently published settings view. Safe for
// concurrent use; callers should take one snapshot per request rather
// than re-reading it repeatedly, so the request sees a consistent set
// of values even if an admin update races with it.
func (c *Cache) Snapshot() *Snapshot {
	return c.current.Load()
}

// Update validates raw against name's bounds (I6) and, if it passes,
// persists it and reloads the snapshot. updatedBy is the acting
// admin's username, recorded on the row for audit purposes.
func (c *Cache) Update(ctx context.Context, name, raw, updatedBy string) error {
	row, err := c.store.GetConfigSetting(ctx, name)
	if err != nil {
		return err
	}
	if err := validate(Kind(row.DataType), raw, row); err != nil {
		return err
	}
	if err := c.store.UpdateConfigSetting(ctx, name, raw, updatedBy); err != nil {
		return err
	}
	return c.Reload(ctx)
}

// Validate checks raw against name's declared type and bounds (I6)
// without persisting anything. Exposed so callers that need to couple
// the write with their own transaction (the admin config-update effect)
// can validate first and fail before opening one.
func (c *Cache) Validate(ctx context.Context, name, raw string) error {
	row, err := c.store.GetConfigSetting(ctx, name)
	if err != nil {
		return err
	}
	return validate(Kind(row.DataType), raw, row)
}

// Reset reverts name to its default value and reloads the snapshot.
func (c *Cache) Reset(ctx context.Context, name, updatedBy string) error {
	if err := c.store.ResetConfigSetting(ctx, name, updatedBy); err != nil {
		return err
	}
	return c.Reload(ctx)
}

func decode(kind Kind, raw string) (Value, error) {
	switch kind {
	case KindInt:
		i, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: kind, Int: i}, nil
	case KindFloat:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: kind, Float: f}, nil
	case KindBool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: kind, Bool: b}, nil
	default:
		return Value{Kind: KindString, String: raw}, nil
	}
}

// validate enforces I6: a numeric setting's raw value must parse as
// its declared type and fall within [min,max]; a string setting must
// not exceed max_length.
func validate(kind Kind, raw string, row *store.ConfigSetting) error {
	switch kind {
	case KindInt:
		i, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return apperr.Validationf(fmt.Sprintf("%s must be an integer", row.Name))
		}
		f := float64(i)
		if row.MinValue.Valid && f < row.MinValue.Float64 {
			return apperr.Newf(apperr.Validation, fmt.Sprintf("%s below minimum %v", row.Name, row.MinValue.Float64), nil)
		}
		if row.MaxValue.Valid && f > row.MaxValue.Float64 {
			return apperr.Newf(apperr.Validation, fmt.Sprintf("%s above maximum %v", row.Name, row.MaxValue.Float64), nil)
		}
	case KindFloat:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return apperr.Validationf(fmt.Sprintf("%s must be a number", row.Name))
		}
		if row.MinValue.Valid && f < row.MinValue.Float64 {
			return apperr.Newf(apperr.Validation, fmt.Sprintf("%s below minimum %v", row.Name, row.MinValue.Float64), nil)
		}
		if row.MaxValue.Valid && f > row.MaxValue.Float64 {
			return apperr.Newf(apperr.Validation, fmt.Sprintf("%s above maximum %v", row.Name, row.MaxValue.Float64), nil)
		}
	case KindBool:
		if _, err := strconv.ParseBool(raw); err != nil {
			return apperr.Validationf(fmt.Sprintf("%s must be a boolean", row.Name))
		}
	case KindString:
		if row.MaxLength.Valid && int64(len(raw)) > row.MaxLength.Int64 {
			return apperr.Newf(apperr.Validation, fmt.Sprintf("%s exceeds max length %d", row.Name, row.MaxLength.Int64), nil)
		}
	}
	return nil
}
