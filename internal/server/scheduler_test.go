package server

import (
	"context"
	"encoding/json"
	"log"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/mohammad-safakhou/briefbot/config"
	"github.com/mohammad-safakhou/briefbot/internal/store"
	"github.com/mohammad-safakhou/briefbot/models"
)

func newTestScheduler(t *testing.T) (*Scheduler, sqlmock.Sqlmock, *memMessenger) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	m := &memMessenger{sent: make(chan string, 8)}
	s := &Scheduler{
		Store:     &store.Store{DB: db},
		Messenger: m,
		Cfg: config.ScheduleConfig{
			GenerateCron: "0 9 * * *",
			PushCron:     "0 10 * * *",
			Categories:   []string{"AI"},
		},
		Loc:    time.UTC,
		Logger: log.New(log.Writer(), "[TEST] ", 0),
		Stop:   make(chan struct{}),
	}
	return s, mock, m
}

func TestDueFiresOncePerCronSlot(t *testing.T) {
	s, _, _ := newTestScheduler(t)
	day := time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC)

	if !s.due("0 9 * * *", day.Add(8*time.Hour), day.Add(9*time.Hour+30*time.Minute)) {
		t.Fatal("09:00 between 08:00 and 09:30 must be due")
	}
	if s.due("0 9 * * *", day.Add(9*time.Hour+30*time.Minute), day.Add(9*time.Hour+45*time.Minute)) {
		t.Fatal("already-fired slot must not be due again")
	}
	if s.due("not a cron", day, day.Add(time.Hour)) {
		t.Fatal("invalid cron must never fire")
	}
}

func TestPushSkipsSubscribersWithoutCache(t *testing.T) {
	s, mock, m := newTestScheduler(t)

	// no cache row for AI today
	mock.ExpectQuery(regexp.QuoteMeta("SELECT raw_payload, structured_payload, generated_at FROM daily_cache")).
		WillReturnRows(sqlmock.NewRows([]string{"raw_payload", "structured_payload", "generated_at"}))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT user_id, category, updated_at FROM subscriptions")).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "category", "updated_at"}).
			AddRow("u1", "AI", time.Now()))

	s.RunPushAndArchive(context.Background())

	select {
	case got := <-m.sent:
		t.Fatalf("subscriber without cache received %q", got)
	default:
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestPushDeliversCachedBriefing(t *testing.T) {
	s, mock, m := newTestScheduler(t)

	b := &models.Briefing{
		Category:    "AI",
		Summary:     "today in AI",
		Headlines:   []models.Headline{{Title: "h", URL: "https://example.com"}},
		GeneratedAt: time.Now(),
	}
	for _, name := range models.Taxonomy("AI") {
		b.Clusters = append(b.Clusters, models.Cluster{Name: name})
	}
	structured, _ := json.Marshal(b)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT raw_payload, structured_payload, generated_at FROM daily_cache")).
		WillReturnRows(sqlmock.NewRows([]string{"raw_payload", "structured_payload", "generated_at"}).
			AddRow(nil, structured, time.Now()))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT user_id, category, updated_at FROM subscriptions")).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "category", "updated_at"}).
			AddRow("u1", "AI", time.Now()))

	s.RunPushAndArchive(context.Background())

	select {
	case got := <-m.sent:
		if !strings.HasPrefix(got, "send:u1:") {
			t.Fatalf("delivery = %q", got)
		}
	default:
		t.Fatal("cached briefing was not pushed")
	}
}

func TestPushDropsOverlappingInvocation(t *testing.T) {
	s, mock, _ := newTestScheduler(t)

	s.pushMu.Lock()
	defer s.pushMu.Unlock()
	done := make(chan struct{})
	go func() {
		s.RunPushAndArchive(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("overlapping push must return immediately, not wait")
	}
	// no queries were issued by the dropped invocation
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}
