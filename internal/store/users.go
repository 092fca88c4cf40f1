package store

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// ErrNotFound is returned when a lookup finds no matching row.
var ErrNotFound = errors.New("store: not found")

// ErrConflict is returned when a unique constraint (username/email) is
// violated.
var ErrConflict = errors.New("store: conflict")

// User mirrors the users table. PasswordHash is never serialized to JSON
// by callers outside this package.
type User struct {
	ID                 string
	Username           string
	Email              string
	PasswordHash       string
	FullName           string
	Active             bool
	Admin              bool
	MustReset          bool
	ResetToken         sql.NullString
	ResetTokenIssuedAt sql.NullTime
	CreatedAt          time.Time
	UpdatedAt          time.Time
	LastLogin          sql.NullTime
}

// CreateUser inserts a new user. Returns ErrConflict if the username or
// email is already taken.
func (s *Store) CreateUser(ctx context.Context, u User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, username, email, password_hash, full_name, active, admin, must_reset)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, u.ID, u.Username, u.Email, u.PasswordHash, u.FullName, boolToInt(u.Active), boolToInt(u.Admin), boolToInt(u.MustReset))
	if isUniqueConstraintErr(err) {
		return ErrConflict
	}
	return err
}

func (s *Store) scanUser(row *sql.Row) (*User, error) {
	var u User
	var active, admin, mustReset int
	var fullName sql.NullString
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &fullName,
		&active, &admin, &mustReset, &u.ResetToken, &u.ResetTokenIssuedAt,
		&u.CreatedAt, &u.UpdatedAt, &u.LastLogin)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	u.FullName = fullName.String
	u.Active = active != 0
	u.Admin = admin != 0
	u.MustReset = mustReset != 0
	return &u, nil
}

const userColumns = `id, username, email, password_hash, full_name, active, admin, must_reset,
	reset_token, reset_token_issued_at, created_at, updated_at, last_login`

// GetUserByID fetches a user by id.
func (s *Store) GetUserByID(ctx context.Context, id string) (*User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return s.scanUser(row)
}

// GetUserByUsername fetches a user by username.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username = ?`, username)
	return s.scanUser(row)
}

// GetUserByEmail fetches a user by email.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
	return s.scanUser(row)
}

// GetUserByResetToken fetches the user whose current reset_token matches
// token exactly (§I4: single-use reset).
func (s *Store) GetUserByResetToken(ctx context.Context, token string) (*User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE reset_token = ?`, token)
	return s.scanUser(row)
}

// UpdateLastLogin stamps last_login to now.
func (s *Store) UpdateLastLogin(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE users SET last_login = CURRENT_TIMESTAMP, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, id)
	return err
}

// SetPasswordHash updates a user's password hash.
func (s *Store) SetPasswordHash(ctx context.Context, id, hash string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE users SET password_hash = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, hash, id)
	return err
}

// SetActive flips the active flag.
func (s *Store) SetActive(ctx context.Context, id string, active bool) error {
	return s.SetActiveTx(ctx, s.db, id, active)
}

// SetActiveTx is SetActive run against an in-flight transaction, so the
// admin status-toggle effect can commit atomically with its audit row.
func (s *Store) SetActiveTx(ctx context.Context, ex execer, id string, active bool) error {
	_, err := ex.ExecContext(ctx,
		`UPDATE users SET active = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, boolToInt(active), id)
	return err
}

// SetResetToken sets a new reset token and issuance timestamp.
func (s *Store) SetResetToken(ctx context.Context, id, token string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE users SET reset_token = ?, reset_token_issued_at = CURRENT_TIMESTAMP, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		token, id)
	return err
}

// ResetPassword atomically sets a new password hash and clears the reset
// token fields (§I4). mustReset forces must_reset when set (admin-initiated
// resets); pass false to leave the flag untouched when not applicable, or
// explicitly clear it for self-service resets via clearMustReset.
func (s *Store) ResetPassword(ctx context.Context, id, newHash string, clearMustReset bool) error {
	if clearMustReset {
		_, err := s.db.ExecContext(ctx, `
			UPDATE users SET password_hash = ?, reset_token = NULL, reset_token_issued_at = NULL,
				must_reset = 0, updated_at = CURRENT_TIMESTAMP
			WHERE id = ?`, newHash, id)
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE users SET password_hash = ?, reset_token = NULL, reset_token_issued_at = NULL,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`, newHash, id)
	return err
}

// ForcePasswordReset sets a temporary password hash and requires a reset
// on next login. Used by the admin force-reset operation.
func (s *Store) ForcePasswordReset(ctx context.Context, id, tempHash string) error {
	return s.ForcePasswordResetTx(ctx, s.db, id, tempHash)
}

// ForcePasswordResetTx is ForcePasswordReset run against an in-flight
// transaction, so the admin force-reset effect can commit atomically
// with its audit row.
func (s *Store) ForcePasswordResetTx(ctx context.Context, ex execer, id, tempHash string) error {
	_, err := ex.ExecContext(ctx, `
		UPDATE users SET password_hash = ?, must_reset = 1, reset_token = NULL,
			reset_token_issued_at = NULL, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`, tempHash, id)
	return err
}

// ListUsers returns a page of users ordered by creation time, newest first.
func (s *Store) ListUsers(ctx context.Context, offset, limit int) ([]User, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+userColumns+` FROM users ORDER BY created_at DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		var active, admin, mustReset int
		var fullName sql.NullString
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &fullName,
			&active, &admin, &mustReset, &u.ResetToken, &u.ResetTokenIssuedAt,
			&u.CreatedAt, &u.UpdatedAt, &u.LastLogin); err != nil {
			return nil, 0, err
		}
		u.FullName = fullName.String
		u.Active = active != 0
		u.Admin = admin != 0
		u.MustReset = mustReset != 0
		users = append(users, u)
	}
	return users, total, rows.Err()
}

// UserCounts returns the total and active user counts, for the admin
// analytics view.
func (s *Store) UserCounts(ctx context.Context) (total, active int, err error) {
	if err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&total); err != nil {
		return 0, 0, err
	}
	if err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE active = 1`).Scan(&active); err != nil {
		return 0, 0, err
	}
	return total, active, nil
}

// RegistrationHistogram buckets user registrations over the last n days
// by calendar date, for the admin analytics users(days) view.
func (s *Store) RegistrationHistogram(ctx context.Context, days int) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT date(created_at), COUNT(*)
		FROM users
		WHERE created_at >= datetime('now', printf('-%d days', ?))
		GROUP BY date(created_at)
	`, days)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	hist := make(map[string]int)
	for rows.Next() {
		var day string
		var n int
		if err := rows.Scan(&day, &n); err != nil {
			return nil, err
		}
		hist[day] = n
	}
	return hist, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func isUniqueConstraintErr(err error) bool {
	if err == nil {
		return false
	}
	return contains(err.Error(), "UNIQUE constraint failed")
}

func contains(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
