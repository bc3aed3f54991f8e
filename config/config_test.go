package config

import (
	"testing"
	"time"
)

func TestBriefingNormalizeDefaults(t *testing.T) {
	b := BriefingConfig{}.Normalize()
	if b.HeadlineCount != 5 || b.SummaryMaxLen != 80 || b.HistoryWindow != 10 {
		t.Fatalf("briefing defaults = %+v", b)
	}
	if b.DedupWindow != 5*time.Second || b.DedupCapacity != 1024 {
		t.Fatalf("dedup defaults = %+v", b)
	}
	if b.WorkerCount != 4 || b.QueueSize != 64 {
		t.Fatalf("worker defaults = %+v, want 4 workers and a 64-deep queue", b)
	}
}

func TestBriefingNormalizeScalesQueueWithWorkers(t *testing.T) {
	b := BriefingConfig{WorkerCount: 8}.Normalize()
	if b.QueueSize != 128 {
		t.Fatalf("queue size = %d, want 16x workers when unset", b.QueueSize)
	}

	b = BriefingConfig{WorkerCount: 8, QueueSize: 10}.Normalize()
	if b.QueueSize != 10 {
		t.Fatalf("queue size = %d, explicit value must win", b.QueueSize)
	}
}

func TestGeneralLocationDefault(t *testing.T) {
	loc, err := GeneralConfig{}.Location()
	if err != nil {
		t.Skip("tzdata unavailable")
	}
	if loc.String() != "Asia/Shanghai" {
		t.Fatalf("default location = %s", loc)
	}

	if _, err := (GeneralConfig{Timezone: "Not/AZone"}).Location(); err == nil {
		t.Fatal("invalid timezone accepted")
	}
}

func TestPostgresDSN(t *testing.T) {
	p := PostgresConfig{Host: "db", User: "u", Password: "p", DBName: "brief"}
	want := "postgres://u:p@db:5432/brief?sslmode=disable"
	if got := p.DSN(); got != want {
		t.Fatalf("dsn = %s, want %s", got, want)
	}

	p.URL = "postgres://explicit"
	if got := p.DSN(); got != "postgres://explicit" {
		t.Fatalf("dsn = %s, explicit url must win", got)
	}
}
