// Package sessionstore keeps per-user dashboard snapshots between requests.
// Values are opaque bytes; callers choose the encoding.
package sessionstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned by Load when no live value exists for the key.
var ErrNotFound = errors.New("session not found")

// Store persists snapshots with a time-to-live.
type Store interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
}

// LoadJSON decodes the value stored under key into dst.
func LoadJSON(ctx context.Context, s Store, key string, dst any) error {
	raw, err := s.Load(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode session %s: %w", key, err)
	}
	return nil
}

// SaveJSON encodes v and stores it under key.
func SaveJSON(ctx context.Context, s Store, key string, v any, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", key, err)
	}
	return s.Save(ctx, key, raw, ttl)
}
