package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/mohammad-safakhou/briefbot/models"
)

// ErrCacheMiss is returned when no daily cache row exists for a (category, date).
var ErrCacheMiss = errors.New("cache miss")

// Store wraps the Postgres connection for subscriptions, the daily briefing
// cache and the legacy single-value preference table.
type Store struct {
	DB *sql.DB
}

// NewWithDSN constructs the Store using an explicit Postgres DSN.
func NewWithDSN(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return &Store{DB: db}, nil
}

// UpsertSubscription records a (user, category) pair. Repeating the call is
// a no-op apart from the updated timestamp, so duplicate deliveries of the
// same subscribe command cannot corrupt state.
func (s *Store) UpsertSubscription(ctx context.Context, userID, category string) error {
	_, err := s.DB.ExecContext(ctx, `
INSERT INTO subscriptions (user_id, category, updated_at)
VALUES ($1,$2,NOW())
ON CONFLICT (user_id, category) DO UPDATE SET updated_at = NOW()
`, userID, category)
	if err != nil {
		return fmt.Errorf("upsert subscription: %w", err)
	}
	return nil
}

// RemoveSubscription deletes one (user, category) pair. Removing a pair that
// does not exist is not an error.
func (s *Store) RemoveSubscription(ctx context.Context, userID, category string) error {
	_, err := s.DB.ExecContext(ctx, `DELETE FROM subscriptions WHERE user_id=$1 AND category=$2`, userID, category)
	if err != nil {
		return fmt.Errorf("remove subscription: %w", err)
	}
	return nil
}

// ReplaceSubscriptions atomically replaces a user's subscription set with
// the given categories.
func (s *Store) ReplaceSubscriptions(ctx context.Context, userID string, categories []string) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace subscriptions: %w", err)
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM subscriptions WHERE user_id=$1`, userID); err != nil {
		return fmt.Errorf("clear subscriptions: %w", err)
	}
	for _, category := range categories {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO subscriptions (user_id, category, updated_at)
VALUES ($1,$2,NOW())
ON CONFLICT (user_id, category) DO UPDATE SET updated_at = NOW()
`, userID, category); err != nil {
			return fmt.Errorf("insert subscription %s: %w", category, err)
		}
	}
	return tx.Commit()
}

// ListSubscriptions returns a user's categories in a fixed ordering
// (category ASC), which also defines the primary subscription used when a
// read carries no explicit category.
func (s *Store) ListSubscriptions(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT category FROM subscriptions WHERE user_id=$1 ORDER BY category ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ListAllSubscriptions returns every stored (user, category) pair, ordered
// for a deterministic push pass.
func (s *Store) ListAllSubscriptions(ctx context.Context) ([]models.Subscription, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT user_id, category, updated_at FROM subscriptions ORDER BY user_id, category`)
	if err != nil {
		return nil, fmt.Errorf("list all subscriptions: %w", err)
	}
	defer rows.Close()
	var out []models.Subscription
	for rows.Next() {
		var sub models.Subscription
		if err := rows.Scan(&sub.UserID, &sub.Category, &sub.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

// UpsertCache writes the daily cache row for (category, date), replacing any
// previous row for that key. rawPayload may be nil once synthesis succeeded.
func (s *Store) UpsertCache(ctx context.Context, entry models.CacheEntry) error {
	_, err := s.DB.ExecContext(ctx, `
INSERT INTO daily_cache (category, date, raw_payload, structured_payload, generated_at)
VALUES ($1,$2,$3,$4,$5)
ON CONFLICT (category, date) DO UPDATE SET
    raw_payload = EXCLUDED.raw_payload,
    structured_payload = EXCLUDED.structured_payload,
    generated_at = EXCLUDED.generated_at
`, entry.Category, entry.Date, entry.RawPayload, entry.Structured, entry.GeneratedAt)
	if err != nil {
		return fmt.Errorf("upsert cache %s/%s: %w", entry.Category, entry.Date, err)
	}
	return nil
}

// GetCache loads the daily cache row for (category, date). A missing row
// yields ErrCacheMiss.
func (s *Store) GetCache(ctx context.Context, category, date string) (models.CacheEntry, error) {
	entry := models.CacheEntry{Category: category, Date: date}
	var raw, structured []byte
	var generatedAt time.Time
	err := s.DB.QueryRowContext(ctx, `
SELECT raw_payload, structured_payload, generated_at FROM daily_cache WHERE category=$1 AND date=$2
`, category, date).Scan(&raw, &structured, &generatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return entry, ErrCacheMiss
	}
	if err != nil {
		return entry, fmt.Errorf("get cache %s/%s: %w", category, date, err)
	}
	entry.RawPayload = raw
	entry.Structured = structured
	entry.GeneratedAt = generatedAt
	return entry, nil
}

// ListCache returns cache rows newest-first for the inspection CLI.
func (s *Store) ListCache(ctx context.Context, limit int) ([]models.CacheEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.DB.QueryContext(ctx, `
SELECT category, date, structured_payload, generated_at FROM daily_cache ORDER BY date DESC, category LIMIT $1
`, limit)
	if err != nil {
		return nil, fmt.Errorf("list cache: %w", err)
	}
	defer rows.Close()
	var out []models.CacheEntry
	for rows.Next() {
		var e models.CacheEntry
		if err := rows.Scan(&e.Category, &e.Date, &e.Structured, &e.GeneratedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// LegacyPreference reads the historical single-value preference row kept for
// migration compatibility. Users created before subscriptions became
// many-to-many have exactly one category here.
func (s *Store) LegacyPreference(ctx context.Context, userID string) (string, error) {
	var category string
	err := s.DB.QueryRowContext(ctx, `SELECT category FROM user_preferences WHERE user_id=$1`, userID).Scan(&category)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("legacy preference: %w", err)
	}
	return category, nil
}

// MigrateLegacyPreference copies a user's legacy single-value preference into
// the subscriptions table if they have no subscriptions yet. Returns the
// migrated category, or "" when there was nothing to migrate.
func (s *Store) MigrateLegacyPreference(ctx context.Context, userID string) (string, error) {
	subs, err := s.ListSubscriptions(ctx, userID)
	if err != nil {
		return "", err
	}
	if len(subs) > 0 {
		return "", nil
	}
	category, err := s.LegacyPreference(ctx, userID)
	if err != nil || category == "" {
		return "", err
	}
	if err := s.UpsertSubscription(ctx, userID, category); err != nil {
		return "", err
	}
	return category, nil
}
