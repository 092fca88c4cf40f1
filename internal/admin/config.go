package admin

import (
	"context"
	"database/sql"

	"github.com/finrag/finrag/internal/activity"
	"github.com/finrag/finrag/internal/apperr"
	"github.com/finrag/finrag/internal/store"
)

// ConfigSetting is the envelope an admin config endpoint returns: every
// field spec.md's configuration envelope names, including the bounds
// relevant to the setting's declared type.
type ConfigSetting struct {
	Name         string
	Value        string
	DefaultValue string
	DataType     string
	Min          *float64
	Max          *float64
	MaxLength    *int64
	Category     string
	Description  string
	UpdatedAt    *string
	UpdatedBy    *string
}

func toConfigSetting(c store.ConfigSetting) ConfigSetting {
	out := ConfigSetting{
		Name: c.Name, Value: c.Value, DefaultValue: c.DefaultValue, DataType: c.DataType,
		Category: c.Category, Description: c.Description,
	}
	if c.MinValue.Valid {
		out.Min = &c.MinValue.Float64
	}
	if c.MaxValue.Valid {
		out.Max = &c.MaxValue.Float64
	}
	if c.MaxLength.Valid {
		out.MaxLength = &c.MaxLength.Int64
	}
	if c.UpdatedAt.Valid {
		s := c.UpdatedAt.Time.UTC().Format("2006-01-02T15:04:05Z07:00")
		out.UpdatedAt = &s
	}
	if c.UpdatedBy.Valid {
		out.UpdatedBy = &c.UpdatedBy.String
	}
	return out
}

// ListConfig returns every configurable setting.
func (s *Service) ListConfig(ctx context.Context) ([]ConfigSetting, error) {
	rows, err := s.store.AllConfigSettings(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]ConfigSetting, len(rows))
	for i, r := range rows {
		out[i] = toConfigSetting(r)
	}
	return out, nil
}

// GetConfig returns a single setting by name.
func (s *Service) GetConfig(ctx context.Context, name string) (ConfigSetting, error) {
	row, err := s.store.GetConfigSetting(ctx, name)
	if err != nil {
		if err == store.ErrNotFound {
			return ConfigSetting{}, apperr.NotFoundf("config setting not found")
		}
		return ConfigSetting{}, err
	}
	return toConfigSetting(*row), nil
}

// UpdateConfig validates raw against name's bounds (I6), then commits
// the write and its audit entry as one transaction, then refreshes the
// live settings snapshot. A validation failure happens before anything
// is written, so no audit entry is recorded for a rejected update.
func (s *Service) UpdateConfig(ctx context.Context, actor Actor, name, raw string) (ConfigSetting, error) {
	if err := s.settings.Validate(ctx, name, raw); err != nil {
		return ConfigSetting{}, err
	}

	err := s.activity.WithEffect(ctx, activity.Entry{
		AdminID: actor.ID, AdminUsername: actor.Username, Action: "config_update",
		ResourceType: "config", ResourceID: name,
		Details:    map[string]any{"value": raw},
		ClientAddr: actor.ClientAddr,
	}, func(tx *sql.Tx) error {
		return s.store.UpdateConfigSettingTx(ctx, tx, name, raw, actor.Username)
	})
	if err != nil {
		return ConfigSetting{}, err
	}

	if err := s.settings.Reload(ctx); err != nil {
		return ConfigSetting{}, err
	}
	return s.GetConfig(ctx, name)
}
