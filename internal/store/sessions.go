package store

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// Session mirrors the sessions table.
type Session struct {
	ID           string
	UserID       string
	CreatedAt    time.Time
	LastActivity time.Time
}

// Message mirrors the messages table.
type Message struct {
	ID        int64
	SessionID string
	Role      string
	Content   string
	CreatedAt time.Time
}

// CreateSession inserts a new session row owned by userID.
func (s *Store) CreateSession(ctx context.Context, id, userID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, user_id) VALUES (?, ?)`, id, userID)
	return err
}

// GetSession fetches a session by id.
func (s *Store) GetSession(ctx context.Context, id string) (*Session, error) {
	var sess Session
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, created_at, last_activity FROM sessions WHERE id = ?`, id,
	).Scan(&sess.ID, &sess.UserID, &sess.CreatedAt, &sess.LastActivity)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

// TouchSession updates last_activity to now.
func (s *Store) TouchSession(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET last_activity = CURRENT_TIMESTAMP WHERE id = ?`, id)
	return err
}

// AppendMessagePair inserts the user message and then the assistant
// message within one transaction, stamping the assistant message strictly
// after the user message so ordering holds even when the wall clock hasn't
// advanced between the two inserts (§I3). It also touches the session's
// last_activity.
func (s *Store) AppendMessagePair(ctx context.Context, sessionID, userText, assistantText string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO messages (session_id, role, content, created_at) VALUES (?, 'user', ?, CURRENT_TIMESTAMP)`,
			sessionID, userText)
		if err != nil {
			return err
		}
		userID, err := res.LastInsertId()
		if err != nil {
			return err
		}

		// Guarantee a strictly later timestamp for the assistant message by
		// anchoring it to the user row's rowid ordering rather than relying
		// on wall-clock resolution: insert immediately, then nudge forward
		// if CURRENT_TIMESTAMP landed on the same second.
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO messages (session_id, role, content, created_at)
			SELECT ?, 'assistant', ?, CASE
				WHEN datetime('now') > (SELECT created_at FROM messages WHERE id = ?)
				THEN datetime('now')
				ELSE datetime((SELECT created_at FROM messages WHERE id = ?), '+1 second')
			END
		`, sessionID, assistantText, userID, userID); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE sessions SET last_activity = CURRENT_TIMESTAMP WHERE id = ?`, sessionID)
		return err
	})
}

// History returns the most recent n messages for a session, oldest first.
func (s *Store) History(ctx context.Context, sessionID string, n int) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, role, content, created_at FROM (
			SELECT id, session_id, role, content, created_at
			FROM messages WHERE session_id = ? ORDER BY id DESC LIMIT ?
		) ORDER BY id ASC
	`, sessionID, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// EvictInactiveSessions deletes sessions (and their messages, via cascade)
// whose last_activity is older than the cutoff. Returns the number evicted.
func (s *Store) EvictInactiveSessions(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE last_activity < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// SessionStats summarizes session/message volume for the admin analytics
// view.
type SessionStats struct {
	TotalSessions  int
	ActiveSessions int // last_activity within the query window
	TotalMessages  int
}

// SessionAnalytics computes session and message totals since the given
// time, plus the all-time session count.
func (s *Store) SessionAnalytics(ctx context.Context, since time.Time) (SessionStats, error) {
	var st SessionStats
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions`).Scan(&st.TotalSessions); err != nil {
		return st, err
	}
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sessions WHERE last_activity >= ?`, since,
	).Scan(&st.ActiveSessions); err != nil {
		return st, err
	}
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM messages m JOIN sessions s ON s.id = m.session_id WHERE s.last_activity >= ?`, since,
	).Scan(&st.TotalMessages); err != nil {
		return st, err
	}
	return st, nil
}
