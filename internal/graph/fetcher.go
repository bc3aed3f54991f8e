package graph

import (
	"context"
	"errors"
	"fmt"

	"github.com/mohammad-safakhou/briefbot/internal/session"
	"github.com/mohammad-safakhou/briefbot/models"
)

var (
	errFetch     = errors.New("news fetch failed")
	errSynthesis = errors.New("briefing synthesis failed")
)

// resolveCategory picks the category for a read turn: the session target if
// one was chosen this conversation, otherwise the user's primary
// subscription, migrating a legacy single-preference row on first contact.
func (e *Engine) resolveCategory(ctx context.Context, sess *session.State) (string, error) {
	if sess.TargetCategory != "" {
		return sess.TargetCategory, nil
	}
	subs, err := e.Store.ListSubscriptions(ctx, sess.UserID)
	if err != nil {
		return "", fmt.Errorf("list subscriptions: %w", err)
	}
	if len(subs) == 0 {
		migrated, err := e.Store.MigrateLegacyPreference(ctx, sess.UserID)
		if err != nil {
			return "", fmt.Errorf("migrate legacy preference: %w", err)
		}
		if migrated == "" {
			return "", models.ErrNoSubscription
		}
		subs = []string{migrated}
	}
	sess.TargetCategory = subs[0]
	return subs[0], nil
}

// loadCached tries the durable daily cache for (category, today). Any read
// or parse problem is a miss, never an error: the cache only ever saves
// work, it cannot block generation.
func (e *Engine) loadCached(ctx context.Context, category, day string) *models.Briefing {
	entry, err := e.Store.GetCache(ctx, category, day)
	if err != nil {
		return nil
	}
	briefing, err := models.ParseBriefing(entry.Structured)
	if err != nil {
		e.logf("cache entry %s/%s unparseable: %v", category, day, err)
		return nil
	}
	cacheHits.WithLabelValues(category).Inc()
	return briefing
}

// fetchArticles pulls the raw feed for the category over the trailing
// window.
func (e *Engine) fetchArticles(ctx context.Context, category string) ([]models.Article, error) {
	articles, err := e.News.Search(ctx, category, e.FetchWindow)
	if err != nil {
		fetches.WithLabelValues(category, "failure").Inc()
		return nil, fmt.Errorf("%w: %v", errFetch, err)
	}
	fetches.WithLabelValues(category, "success").Inc()
	return articles, nil
}
