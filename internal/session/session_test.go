package session

import (
	"context"
	"testing"
	"time"

	"github.com/mohammad-safakhou/briefbot/models"
)

func TestAppendTrimsToWindow(t *testing.T) {
	s := &State{UserID: "u1"}
	for i := 0; i < 7; i++ {
		s.Append(RoleUser, "m", 5)
	}
	if len(s.Messages) != 5 {
		t.Fatalf("history = %d entries, want 5", len(s.Messages))
	}
}

func TestClearSynthesisDropsAllDerivedState(t *testing.T) {
	s := &State{
		UserID:           "u1",
		TargetCategory:   "AI",
		Briefing:         &models.Briefing{Category: "AI"},
		SynthesizedAt:    time.Now(),
		RawArticles:      []models.Article{{Title: "a"}},
		SelectedCluster:  "Model",
		SelectedCategory: "AI",
	}
	s.ClearSynthesis()
	if s.Briefing != nil || !s.SynthesizedAt.IsZero() || s.RawArticles != nil ||
		s.SelectedCluster != "" || s.SelectedCategory != "" {
		t.Fatalf("derived state survived clear: %+v", s)
	}
	if s.TargetCategory != "AI" {
		t.Fatal("target category must survive, it is user input not derived state")
	}
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	fresh, err := st.Load(ctx, "u1")
	if err != nil || fresh.UserID != "u1" {
		t.Fatalf("load fresh = %+v, %v", fresh, err)
	}

	fresh.TargetCategory = "GAMES"
	fresh.Append(RoleUser, "hello", 10)
	if err := st.Save(ctx, fresh); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := st.Load(ctx, "u1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.TargetCategory != "GAMES" || len(got.Messages) != 1 {
		t.Fatalf("round trip = %+v", got)
	}
}
