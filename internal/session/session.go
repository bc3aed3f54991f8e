// Package session holds per-conversation state and its persistence.
//
// One State exists per user identifier (interactive users use their
// platform open-id, scheduled runs use an isolated "sched:<category>"
// identity). State is never destroyed; the message history is trimmed by a
// sliding window instead of expiring.
package session

import (
	"context"
	"time"

	"github.com/mohammad-safakhou/briefbot/models"
)

// Role values for history entries.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one entry of the bounded conversation history.
type Message struct {
	Role    string    `json:"role"`
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}

// State is the conversational state carried across turns for one user.
type State struct {
	UserID           string           `json:"user_id"`
	Messages         []Message        `json:"messages"`
	TargetCategory   string           `json:"target_category,omitempty"`
	LastIntent       models.Intent    `json:"last_intent,omitempty"`
	Briefing         *models.Briefing `json:"briefing,omitempty"`
	SynthesizedAt    time.Time        `json:"synthesized_at,omitempty"`
	RawArticles      []models.Article `json:"raw_articles,omitempty"`
	SelectedCluster  string           `json:"selected_cluster,omitempty"`
	SelectedCategory string           `json:"selected_category,omitempty"`
	ForceRefresh     bool             `json:"force_refresh,omitempty"`
}

// Append adds a history entry and trims to the most recent window entries.
func (s *State) Append(role, content string, window int) {
	s.Messages = append(s.Messages, Message{Role: role, Content: content, At: time.Now()})
	if window > 0 && len(s.Messages) > window {
		s.Messages = s.Messages[len(s.Messages)-window:]
	}
}

// ClearSynthesis drops every field a downstream node could reuse from an
// earlier run: the synthesized briefing, its timestamp and the cluster
// selection. Called before a forced re-fetch so a stale structured result
// can never leak into the refreshed response.
func (s *State) ClearSynthesis() {
	s.Briefing = nil
	s.SynthesizedAt = time.Time{}
	s.SelectedCluster = ""
	s.SelectedCategory = ""
	s.RawArticles = nil
}

// Store loads and saves session state. Save must be a full replace so that
// out-of-order deliveries converge on the latest written state rather than
// accumulating partial updates.
type Store interface {
	Load(ctx context.Context, userID string) (*State, error)
	Save(ctx context.Context, state *State) error
}
