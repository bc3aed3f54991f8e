package store

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/mohammad-safakhou/briefbot/models"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return &Store{DB: db}, mock
}

func TestUpsertSubscription(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO subscriptions")).
		WithArgs("u1", "AI").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := s.UpsertSubscription(context.Background(), "u1", "AI"); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestListSubscriptionsOrdering(t *testing.T) {
	s, mock := newMockStore(t)
	rows := sqlmock.NewRows([]string{"category"}).AddRow("AI").AddRow("MUSIC")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT category FROM subscriptions")).
		WithArgs("u1").
		WillReturnRows(rows)

	got, err := s.ListSubscriptions(context.Background(), "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 || got[0] != "AI" || got[1] != "MUSIC" {
		t.Fatalf("subscriptions = %v", got)
	}
}

func TestGetCacheMiss(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT raw_payload, structured_payload, generated_at FROM daily_cache")).
		WithArgs("AI", "2026-08-29").
		WillReturnRows(sqlmock.NewRows([]string{"raw_payload", "structured_payload", "generated_at"}))

	_, err := s.GetCache(context.Background(), "AI", "2026-08-29")
	if !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("err = %v, want ErrCacheMiss", err)
	}
}

func TestUpsertCache(t *testing.T) {
	s, mock := newMockStore(t)
	entry := models.CacheEntry{
		Category:    "AI",
		Date:        "2026-08-29",
		Structured:  []byte(`{"category":"AI"}`),
		GeneratedAt: time.Now(),
	}
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO daily_cache")).
		WithArgs(entry.Category, entry.Date, entry.RawPayload, entry.Structured, entry.GeneratedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := s.UpsertCache(context.Background(), entry); err != nil {
		t.Fatalf("upsert cache: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestMigrateLegacyPreference(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT category FROM subscriptions")).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"category"}))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT category FROM user_preferences")).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"category"}).AddRow("GAMES"))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO subscriptions")).
		WithArgs("u1", "GAMES").
		WillReturnResult(sqlmock.NewResult(0, 1))

	got, err := s.MigrateLegacyPreference(context.Background(), "u1")
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if got != "GAMES" {
		t.Fatalf("migrated = %q, want GAMES", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestMigrateLegacyPreferenceNoopWithSubscriptions(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT category FROM subscriptions")).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"category"}).AddRow("AI"))

	got, err := s.MigrateLegacyPreference(context.Background(), "u1")
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if got != "" {
		t.Fatalf("migrated = %q, want empty", got)
	}
}
