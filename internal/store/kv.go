package store

import (
	"context"
	"database/sql"
	"sync"
	"time"
)

// KV is the persistence contract required by the stateful scheduler
// components. Implementations are asynchronous-friendly (context-aware)
// and fallible; callers treat failures as "no data" with a logged fallback.
type KV interface {
	// Get returns the value stored under key, or nil if the key is absent.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error
	// Remove deletes the value stored under key. Removing an absent key
	// is not an error.
	Remove(ctx context.Context, key string) error
}

// Logical keys for persisted collections. Each value is a serialized
// collection keyed by owning id.
const (
	KeyUsagePatterns    = "battery-usage-patterns"
	KeyPredictionModels = "energy-prediction-models"
	KeyStrategies       = "optimization-strategies"
	KeyOptimizerConfig  = "optimization-config"
	KeyDozeStatus       = "doze-status"
	KeyDozeConfig       = "doze-config"
	KeyMaintenance      = "maintenance-windows"
	KeyAlarms           = "scheduled-alarms"
)

// Get returns the value for key, or nil if the key does not exist.
func (db *DB) Get(ctx context.Context, key string) ([]byte, error) {
	row := db.conn.QueryRowContext(ctx, "SELECT value FROM kv WHERE key = ?", key)
	var value []byte
	if err := row.Scan(&value); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return value, nil
}

// Set stores value under key, replacing any previous value.
func (db *DB) Set(ctx context.Context, key string, value []byte) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// Remove deletes the value stored under key.
func (db *DB) Remove(ctx context.Context, key string) error {
	_, err := db.conn.ExecContext(ctx, "DELETE FROM kv WHERE key = ?", key)
	return err
}

// MemKV is an in-memory KV implementation for tests and simulations.
// Safe for concurrent use.
type MemKV struct {
	mu   sync.Mutex
	data map[string][]byte
}

// NewMemKV creates an empty in-memory KV store.
func NewMemKV() *MemKV {
	return &MemKV{data: make(map[string][]byte)}
}

// Get returns the value for key, or nil if absent.
func (m *MemKV) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

// Set stores value under key.
func (m *MemKV) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v := make([]byte, len(value))
	copy(v, value)
	m.data[key] = v
	return nil
}

// Remove deletes the value stored under key.
func (m *MemKV) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}
