package graph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mohammad-safakhou/briefbot/internal/session"
	"github.com/mohammad-safakhou/briefbot/models"
)

// runBriefing produces today's briefing for the session's category with the
// cheapest source that is still fresh: the session itself, then the durable
// cache, and only then a fetch-and-synthesize round trip. persistCache is
// true for scheduled generation only; interactive turns never write the
// cache.
func (e *Engine) runBriefing(ctx context.Context, sess *session.State, persistCache bool) (*models.Briefing, error) {
	category, err := e.resolveCategory(ctx, sess)
	if err != nil {
		return nil, err
	}
	today := e.today()

	if sess.ForceRefresh {
		// drop stale synthesis before fetching, so a failed fetch can
		// never leave yesterday's briefing answering today's questions
		sess.ClearSynthesis()
	} else {
		if b := sess.Briefing; b != nil && b.Category == category && models.DayKey(sess.SynthesizedAt, e.Location) == today {
			return b, nil
		}
		if b := e.loadCached(ctx, category, today); b != nil {
			e.adopt(sess, category, b, nil)
			return b, nil
		}
	}

	articles, err := e.fetchArticles(ctx, category)
	if err != nil {
		return nil, err
	}
	briefing, err := e.Synthesizer.Synthesize(ctx, category, models.Taxonomy(category), articles, e.HeadlineCount, e.SummaryMaxLen)
	if err != nil {
		syntheses.WithLabelValues(category, "failure").Inc()
		return nil, fmt.Errorf("%w: %v", errSynthesis, err)
	}
	syntheses.WithLabelValues(category, "success").Inc()
	e.adopt(sess, category, briefing, articles)
	sess.ForceRefresh = false

	if persistCache {
		e.persistBriefing(ctx, category, today, briefing, articles)
	}
	return briefing, nil
}

// adopt installs a briefing into the session as this turn's synthesis.
func (e *Engine) adopt(sess *session.State, category string, b *models.Briefing, articles []models.Article) {
	sess.Briefing = b
	sess.SynthesizedAt = e.clock()
	sess.SelectedCategory = category
	sess.SelectedCluster = ""
	sess.RawArticles = articles
}

// persistBriefing upserts the daily cache row. Failures are logged, not
// fatal: the briefing was already generated and will be delivered either
// way.
func (e *Engine) persistBriefing(ctx context.Context, category, day string, b *models.Briefing, articles []models.Article) {
	structured, err := json.Marshal(b)
	if err != nil {
		e.logf("marshal briefing %s/%s: %v", category, day, err)
		return
	}
	raw, err := json.Marshal(articles)
	if err != nil {
		raw = nil
	}
	entry := models.CacheEntry{
		Category:    category,
		Date:        day,
		RawPayload:  raw,
		Structured:  structured,
		GeneratedAt: e.clock(),
	}
	if err := e.Store.UpsertCache(ctx, entry); err != nil {
		e.logf("upsert cache %s/%s: %v", category, day, err)
	}
}

// GenerateCategory runs one scheduled generation pass for a category under
// an isolated session identity, persisting the result to the daily cache.
// With force unset, a same-day cache hit is reused without any capability
// calls.
func (e *Engine) GenerateCategory(ctx context.Context, category string, force bool) (*models.Briefing, error) {
	id := "sched:" + category
	sess, err := e.Sessions.Load(ctx, id)
	if err != nil {
		e.logf("load session %s: %v", id, err)
		sess = &session.State{UserID: id}
	}
	sess.TargetCategory = category
	sess.ForceRefresh = force

	briefing, err := e.runBriefing(ctx, sess, true)
	if saveErr := e.Sessions.Save(ctx, sess); saveErr != nil {
		e.logf("save session %s: %v", id, saveErr)
	}
	return briefing, err
}

// briefingFailure maps a run error to its user-facing reply.
func (e *Engine) briefingFailure(err error) string {
	e.logf("briefing: %v", err)
	switch {
	case errors.Is(err, models.ErrNoSubscription):
		return replyNoSubscription
	case errors.Is(err, errFetch):
		return replyFetchFailed
	case errors.Is(err, errSynthesis):
		return replySynthesisFailed
	default:
		return replyStoreFailed
	}
}
