package newsapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mohammad-safakhou/briefbot/config"
)

func TestSearchRequestShape(t *testing.T) {
	var got searchRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"data": []map[string]string{
				{"title": "t1", "summary": "s1", "url": "https://example.com/1", "source": "src", "publishedAt": "2026-08-29T08:00:00Z"},
				{"title": "t2", "summary": "s2", "url": "https://example.com/2", "source": "src", "publishedAt": "not a time"},
			},
		})
	}))
	t.Cleanup(srv.Close)

	c := NewClient(config.NewsAPIConfig{Endpoint: srv.URL, Timeout: 5 * time.Second}, time.UTC)
	articles, err := c.Search(context.Background(), "AI", 24*time.Hour)
	if err != nil {
		t.Fatalf("search: %v", err)
	}

	if got.Keyword != "AI" || got.Category != "AI" {
		t.Fatalf("request = %+v, want AI keyword and category", got)
	}
	if got.SortOrder != "latest" || got.IncludeContent {
		t.Fatalf("request = %+v, want latest order without content", got)
	}
	if got.StartDate == "" || got.EndDate == "" {
		t.Fatalf("request window missing: %+v", got)
	}

	if len(articles) != 2 {
		t.Fatalf("articles = %d, want 2", len(articles))
	}
	if articles[0].PublishedAt.IsZero() {
		t.Fatal("parseable timestamp dropped")
	}
	if !articles[1].PublishedAt.IsZero() {
		t.Fatal("unparseable timestamp must be left zero, not fail the fetch")
	}
}

func TestSearchErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	c := NewClient(config.NewsAPIConfig{Endpoint: srv.URL}, nil)
	if _, err := c.Search(context.Background(), "AI", time.Hour); err == nil {
		t.Fatal("non-200 must be an error")
	}
}

func TestSearchWindowUsesConfiguredZone(t *testing.T) {
	var got searchRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"data": []map[string]string{}})
	}))
	t.Cleanup(srv.Close)

	// A zone far ahead of UTC; near midnight its calendar date differs
	// from the process-local one, which is exactly what the window must
	// track.
	loc := time.FixedZone("ahead", 13*60*60)
	c := NewClient(config.NewsAPIConfig{Endpoint: srv.URL}, loc)

	before := time.Now().In(loc)
	if _, err := c.Search(context.Background(), "AI", 24*time.Hour); err != nil {
		t.Fatalf("search: %v", err)
	}
	after := time.Now().In(loc)

	wantBefore := before.Format("2006-01-02")
	wantAfter := after.Format("2006-01-02")
	if got.EndDate != wantBefore && got.EndDate != wantAfter {
		t.Fatalf("endDate = %s, want the configured zone's date (%s)", got.EndDate, wantBefore)
	}
	wantStartBefore := before.Add(-24 * time.Hour).Format("2006-01-02")
	wantStartAfter := after.Add(-24 * time.Hour).Format("2006-01-02")
	if got.StartDate != wantStartBefore && got.StartDate != wantStartAfter {
		t.Fatalf("startDate = %s, want the configured zone's previous date (%s)", got.StartDate, wantStartBefore)
	}
}
