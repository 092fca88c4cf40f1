package store

import (
	"context"
	"database/sql"
	"errors"
)

// ConfigSetting mirrors the config_settings table. Value/DefaultValue are
// stored as their string encoding; the settings package (C14) is
// responsible for interpreting DataType and the bound columns.
type ConfigSetting struct {
	Name         string
	Value        string
	DefaultValue string
	DataType     string
	MinValue     sql.NullFloat64
	MaxValue     sql.NullFloat64
	MaxLength    sql.NullInt64
	Category     string
	Description  string
	UpdatedAt    sql.NullTime
	UpdatedBy    sql.NullString
}

const configColumns = `name, value, default_value, data_type, min_value, max_value,
	max_length, category, description, updated_at, updated_by`

func scanConfig(row interface{ Scan(...any) error }) (*ConfigSetting, error) {
	var c ConfigSetting
	err := row.Scan(&c.Name, &c.Value, &c.DefaultValue, &c.DataType, &c.MinValue, &c.MaxValue,
		&c.MaxLength, &c.Category, &c.Description, &c.UpdatedAt, &c.UpdatedBy)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// SeedConfigSetting inserts a setting's default definition if it doesn't
// already exist, leaving any previously-persisted value untouched. Called
// at startup for every built-in setting so new settings introduced by a
// deploy acquire defaults without clobbering operator overrides.
func (s *Store) SeedConfigSetting(ctx context.Context, c ConfigSetting) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO config_settings (name, value, default_value, data_type, min_value, max_value, max_length, category, description)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO NOTHING
	`, c.Name, c.Value, c.DefaultValue, c.DataType, c.MinValue, c.MaxValue, c.MaxLength, c.Category, c.Description)
	return err
}

// AllConfigSettings returns every setting, for loading the live snapshot
// cache at startup and after an update.
func (s *Store) AllConfigSettings(ctx context.Context) ([]ConfigSetting, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+configColumns+` FROM config_settings ORDER BY category, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ConfigSetting
	for rows.Next() {
		c, err := scanConfig(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// GetConfigSetting fetches a single setting by name.
func (s *Store) GetConfigSetting(ctx context.Context, name string) (*ConfigSetting, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+configColumns+` FROM config_settings WHERE name = ?`, name)
	return scanConfig(row)
}

// UpdateConfigSetting writes a new value for name, stamping who changed it
// and when. Validation against min/max/maxLength is the settings package's
// responsibility; the store layer persists whatever it's given.
func (s *Store) UpdateConfigSetting(ctx context.Context, name, value, updatedBy string) error {
	return s.UpdateConfigSettingTx(ctx, s.db, name, value, updatedBy)
}

// UpdateConfigSettingTx is UpdateConfigSetting run against an in-flight
// transaction, so the admin config-update effect can commit atomically
// with its audit row.
func (s *Store) UpdateConfigSettingTx(ctx context.Context, ex execer, name, value, updatedBy string) error {
	res, err := ex.ExecContext(ctx, `
		UPDATE config_settings SET value = ?, updated_at = CURRENT_TIMESTAMP, updated_by = ?
		WHERE name = ?
	`, value, updatedBy, name)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ResetConfigSetting reverts a single setting to its default_value.
func (s *Store) ResetConfigSetting(ctx context.Context, name, updatedBy string) error {
	return s.ResetConfigSettingTx(ctx, s.db, name, updatedBy)
}

// ResetConfigSettingTx is ResetConfigSetting run against an in-flight
// transaction.
func (s *Store) ResetConfigSettingTx(ctx context.Context, ex execer, name, updatedBy string) error {
	res, err := ex.ExecContext(ctx, `
		UPDATE config_settings SET value = default_value, updated_at = CURRENT_TIMESTAMP, updated_by = ?
		WHERE name = ?
	`, updatedBy, name)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
