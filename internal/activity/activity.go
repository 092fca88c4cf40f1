// Package activity implements the audit logger (C11): every
// admin-initiated state change is recorded as an (effect, log) pair
// that commits or rolls back together (§I5), via a single SQLite
// transaction wrapping both the mutating statement and the
// activity_log insert.
package activity

import (
	"context"
	"database/sql"

	"github.com/finrag/finrag/internal/store"
)

// Entry describes one audited action, independent of whether it
// succeeded.
type Entry struct {
	AdminID       string
	AdminUsername string
	Action        string
	ResourceType  string
	ResourceID    string
	Details       map[string]any
	ClientAddr    string
}

// Logger wraps a store with the audited-effect helper.
type Logger struct {
	store *store.Store
}

// New constructs a Logger.
func New(s *store.Store) *Logger {
	return &Logger{store: s}
}

// WithEffect runs effect and its audit row as one transaction: if
// effect fails, the whole transaction rolls back and no log entry is
// written (there is nothing successful to audit yet); if effect
// succeeds, the log row commits atomically with it. This is the (effect,
// log) atomicity spec.md §4.6 requires — both commit or both roll back.
func (l *Logger) WithEffect(ctx context.Context, e Entry, effect func(tx *sql.Tx) error) error {
	return l.store.InTx(ctx, func(tx *sql.Tx) error {
		if err := effect(tx); err != nil {
			return err
		}
		return l.store.InsertActivityTx(ctx, tx, store.ActivityEntry{
			AdminID:       e.AdminID,
			AdminUsername: e.AdminUsername,
			Action:        e.Action,
			ResourceType:  e.ResourceType,
			ResourceID:    e.ResourceID,
			Details:       e.Details,
			ClientAddr:    e.ClientAddr,
			Result:        "success",
		})
	})
}

// Log records a standalone audit entry with no associated effect
// (e.g. a read-only admin action the audit contract still wants
// visible). result is "success" or "failure".
func (l *Logger) Log(ctx context.Context, e Entry, result string) error {
	return l.store.InsertActivity(ctx, store.ActivityEntry{
		AdminID:       e.AdminID,
		AdminUsername: e.AdminUsername,
		Action:        e.Action,
		ResourceType:  e.ResourceType,
		ResourceID:    e.ResourceID,
		Details:       e.Details,
		ClientAddr:    e.ClientAddr,
		Result:        result,
	})
}

// List returns a page of audit entries, newest first.
func (l *Logger) List(ctx context.Context, f store.ActivityFilter, offset, limit int) ([]store.ActivityEntry, int, error) {
	return l.store.ListActivity(ctx, f, offset, limit)
}
