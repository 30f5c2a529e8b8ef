// Package settings serves runtime-tunable configuration from the database
// with a short-lived cache, so values like the approval timeout can change
// without a redeploy.
package settings

import (
	"context"
	"strconv"
	"sync"
	"time"

	"storybot/internal/infra"
	"storybot/internal/sqlinline"
)

// Well-known setting keys.
const (
	KeyApprovalTimeoutMinutes = "approval_timeout_minutes"
	KeySettleDelaySeconds     = "publish_settle_delay_seconds"
	KeyInterItemDelaySeconds  = "pipeline_inter_item_delay_seconds"
)

// Defaults applied when a key has no stored value.
var defaults = map[string]string{
	KeyApprovalTimeoutMinutes: "60",
	KeySettleDelaySeconds:     "5",
	KeyInterItemDelaySeconds:  "2",
}

type cached struct {
	value   string
	expires time.Time
}

// Store reads settings through the shared SQL executor and caches each key
// for the configured TTL.
type Store struct {
	sql infra.SQLExecutor
	ttl time.Duration

	mu    sync.Mutex
	cache map[string]cached

	now func() time.Time
}

// New creates a settings store. A zero ttl disables caching.
func New(sql infra.SQLExecutor, ttl time.Duration) *Store {
	return &Store{
		sql:   sql,
		ttl:   ttl,
		cache: make(map[string]cached),
		now:   time.Now,
	}
}

// Get returns the stored value for key, falling back to the compiled-in
// default when no row exists.
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	s.mu.Lock()
	if entry, ok := s.cache[key]; ok && s.now().Before(entry.expires) {
		s.mu.Unlock()
		return entry.value, nil
	}
	s.mu.Unlock()

	var value string
	err := s.sql.QueryRow(ctx, sqlinline.QSelectSetting, key).Scan(&value)
	if err != nil {
		if !infra.IsNoRows(err) {
			return "", err
		}
		value = defaults[key]
	}

	s.mu.Lock()
	s.cache[key] = cached{value: value, expires: s.now().Add(s.ttl)}
	s.mu.Unlock()
	return value, nil
}

// GetInt parses the value for key as an integer, falling back to the default
// when the stored value is malformed.
func (s *Store) GetInt(ctx context.Context, key string) (int, error) {
	raw, err := s.Get(ctx, key)
	if err != nil {
		return 0, err
	}
	if n, err := strconv.Atoi(raw); err == nil {
		return n, nil
	}
	n, _ := strconv.Atoi(defaults[key])
	return n, nil
}

// GetDuration reads key as an integer count of unit.
func (s *Store) GetDuration(ctx context.Context, key string, unit time.Duration) (time.Duration, error) {
	n, err := s.GetInt(ctx, key)
	if err != nil {
		return 0, err
	}
	return time.Duration(n) * unit, nil
}

// Set upserts a value and drops the cached entry so the next Get observes it.
func (s *Store) Set(ctx context.Context, key, value string) error {
	if _, err := s.sql.Exec(ctx, sqlinline.QUpsertSetting, key, value); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.cache, key)
	s.mu.Unlock()
	return nil
}
