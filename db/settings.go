package db

import (
	"context"
	"strconv"
	"time"
)

// SystemSetting (Плоское хранилище ключ/значение/тип для настроек)
type SystemSetting struct {
	Key       string    `db:"key" json:"key"`
	Value     string    `db:"value" json:"value"`
	Type      string    `db:"type" json:"type"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// Известные ключи настроек.
const (
	SettingWhatsappToken     = "whatsapp_token"
	SettingSuppliersToSearch = "suppliers_to_contact"
	SettingQuoteThreshold    = "quote_threshold"
)

func (s *Storage) GetSetting(ctx context.Context, key string) (*SystemSetting, error) {
	set := &SystemSetting{}
	err := s.db.GetContext(ctx, set, `SELECT * FROM system_setting WHERE key=$1`, key)
	if err != nil {
		return nil, notFoundOr(err, "get setting")
	}
	return set, nil
}

func (s *Storage) SetSetting(ctx context.Context, set *SystemSetting) error {
	query := `
        INSERT INTO system_setting (key, value, type, updated_at)
        VALUES ($1, $2, $3, NOW())
        ON CONFLICT (key) DO UPDATE SET value=EXCLUDED.value, type=EXCLUDED.type, updated_at=NOW()
        RETURNING updated_at`
	return s.db.QueryRowContext(ctx, query, set.Key, set.Value, set.Type).Scan(&set.UpdatedAt)
}

// GetSettingInt читает целочисленную настройку c дефолтом: настройки
// читаются лениво, без долгоживущего кэша.
func (s *Storage) GetSettingInt(ctx context.Context, key string, def int) int {
	set, err := s.GetSetting(ctx, key)
	if err != nil {
		return def
	}
	v, err := strconv.Atoi(set.Value)
	if err != nil {
		return def
	}
	return v
}
