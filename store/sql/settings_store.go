package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"
)

type SettingsStore struct {
	db *bun.DB
}

func NewSettingsStore(db *bun.DB) (*SettingsStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	return &SettingsStore{db: db}, nil
}

func (s *SettingsStore) GetSetting(ctx context.Context, key string) (string, bool, error) {
	if s == nil || s.db == nil {
		return "", false, fmt.Errorf("sqlstore: settings store is not configured")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return "", false, fmt.Errorf("sqlstore: setting key is required")
	}
	record := &settingRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.config_name = ?", key).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", false, nil
		}
		return "", false, err
	}
	return record.Value, true, nil
}

func (s *SettingsStore) SetSetting(ctx context.Context, key string, value string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: settings store is not configured")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("sqlstore: setting key is required")
	}
	record := &settingRecord{Key: key, Value: value, UpdatedAt: time.Now().UTC()}
	_, err := s.db.NewInsert().
		Model(record).
		On("CONFLICT (config_name) DO UPDATE").
		Set("config_value = EXCLUDED.config_value").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

// ListSettings returns every stored setting.
func (s *SettingsStore) ListSettings(ctx context.Context) (map[string]string, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: settings store is not configured")
	}
	var records []settingRecord
	if err := s.db.NewSelect().
		Model(&records).
		OrderExpr("?TableAlias.config_name ASC").
		Scan(ctx); err != nil && err != sql.ErrNoRows {
		return nil, err
	}
	out := make(map[string]string, len(records))
	for _, record := range records {
		out[record.Key] = record.Value
	}
	return out, nil
}
