package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"
)

// ActivityEntry mirrors the activity_log table: an immutable audit trail
// of admin-initiated actions (§C11).
type ActivityEntry struct {
	ID             int64
	AdminID        string
	AdminUsername  string
	Action         string
	ResourceType   string
	ResourceID     string
	Details        map[string]any
	ClientAddr     string
	Result         string // "success" or "failure"
	CreatedAt      time.Time
}

// InsertActivity writes one audit log row. Callers that need the row to be
// atomic with an application-level effect should run this inside the same
// transaction (see the activity package's WithActivity helper), which is
// why this takes a *sql.Tx as well as the plain Store method below.
func (s *Store) InsertActivity(ctx context.Context, e ActivityEntry) error {
	return s.insertActivity(ctx, s.db, e)
}

// InsertActivityTx writes the audit row as part of an in-flight transaction.
func (s *Store) InsertActivityTx(ctx context.Context, tx *sql.Tx, e ActivityEntry) error {
	return s.insertActivity(ctx, tx, e)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) insertActivity(ctx context.Context, ex execer, e ActivityEntry) error {
	details, err := json.Marshal(e.Details)
	if err != nil {
		return err
	}
	_, err = ex.ExecContext(ctx, `
		INSERT INTO activity_log (admin_id, admin_username, action, resource_type, resource_id, details, client_addr, result)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, e.AdminID, e.AdminUsername, e.Action, e.ResourceType, e.ResourceID, string(details), e.ClientAddr, e.Result)
	return err
}

// InTx exposes the transaction helper so the activity package can couple an
// application effect with its audit row atomically.
func (s *Store) InTx(ctx context.Context, fn func(*sql.Tx) error) error {
	return s.inTx(ctx, fn)
}

// ActivityFilter narrows ListActivity results. Zero values mean "no filter"
// for that field.
type ActivityFilter struct {
	AdminID      string
	ResourceType string
	Since        sql.NullTime
	Until        sql.NullTime
}

// ListActivity returns a page of audit entries, newest first.
func (s *Store) ListActivity(ctx context.Context, f ActivityFilter, offset, limit int) ([]ActivityEntry, int, error) {
	where := "WHERE 1=1"
	var args []any
	if f.AdminID != "" {
		where += " AND admin_id = ?"
		args = append(args, f.AdminID)
	}
	if f.ResourceType != "" {
		where += " AND resource_type = ?"
		args = append(args, f.ResourceType)
	}
	if f.Since.Valid {
		where += " AND created_at >= ?"
		args = append(args, f.Since.Time)
	}
	if f.Until.Valid {
		where += " AND created_at <= ?"
		args = append(args, f.Until.Time)
	}

	var total int
	countArgs := append([]any{}, args...)
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM activity_log `+where, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	queryArgs := append(args, limit, offset)
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, admin_id, admin_username, action, resource_type, resource_id, details, client_addr, result, created_at
		FROM activity_log `+where+`
		ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?
	`, queryArgs...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []ActivityEntry
	for rows.Next() {
		var e ActivityEntry
		var detailsRaw string
		var clientAddr sql.NullString
		if err := rows.Scan(&e.ID, &e.AdminID, &e.AdminUsername, &e.Action, &e.ResourceType,
			&e.ResourceID, &detailsRaw, &clientAddr, &e.Result, &e.CreatedAt); err != nil {
			return nil, 0, err
		}
		e.ClientAddr = clientAddr.String
		if detailsRaw != "" && detailsRaw != "null" {
			_ = json.Unmarshal([]byte(detailsRaw), &e.Details)
		}
		out = append(out, e)
	}
	return out, total, rows.Err()
}
