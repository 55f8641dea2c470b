package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// KVEntry is one row of the persistent key/value configuration table.
// Values are stored as JSON blobs so lists and tables round-trip.
type KVEntry struct {
	Key   string `gorm:"primaryKey;size:255"`
	Value string `gorm:"type:text"`
}

// TableName fixes the table name independent of gorm's pluralization.
func (KVEntry) TableName() string { return "kv_store" }

// kvGet performs a point lookup in the KV table. The second return is false
// when the key has no row.
func (m *Manager) kvGet(ctx context.Context, key string) (any, bool, error) {
	if m.db == nil {
		return nil, false, errors.New("kv store not attached")
	}
	var entry KVEntry
	err := m.db.WithContext(ctx).First(&entry, "key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("kv lookup %q: %w", key, err)
	}
	var value any
	if err := json.Unmarshal([]byte(entry.Value), &value); err != nil {
		return nil, false, fmt.Errorf("kv decode %q: %w", key, err)
	}
	return value, true, nil
}

// SetKV upserts a value into the KV table, JSON-encoded.
func (m *Manager) SetKV(ctx context.Context, key string, value any) error {
	if m.db == nil {
		return errors.New("kv store not attached")
	}
	blob, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("kv encode %q: %w", key, err)
	}
	entry := KVEntry{Key: key, Value: string(blob)}
	return m.db.WithContext(ctx).Save(&entry).Error
}
