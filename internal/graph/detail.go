package graph

import (
	"context"

	"github.com/mohammad-safakhou/briefbot/internal/session"
	"github.com/mohammad-safakhou/briefbot/models"
)

// detail expands one cluster of today's briefing. Lookup is exact and
// category scoped: a click or expand request never fuzzy-matches into a
// different topic, and anything stale resolves to a regenerate hint instead
// of old content.
func (e *Engine) detail(ctx context.Context, sess *session.State, intent models.Intent) string {
	category := intent.Category
	if category == "" {
		category = sess.SelectedCategory
	}
	if category == "" && sess.Briefing != nil {
		category = sess.Briefing.Category
	}
	if category == "" || intent.Cluster == "" {
		return replyDetailStale
	}

	briefing := e.currentBriefing(ctx, sess, category)
	if briefing == nil {
		return replyDetailStale
	}
	cluster, ok := briefing.FindCluster(intent.Cluster)
	if !ok {
		e.logf("cluster %q not in today's %s briefing", intent.Cluster, category)
		return replyDetailStale
	}
	sess.SelectedCluster = cluster.Name
	sess.SelectedCategory = category
	return e.Render.Detail(category, cluster)
}

// currentBriefing returns today's briefing for the category from the
// session if it is still fresh, falling back to the durable cache.
func (e *Engine) currentBriefing(ctx context.Context, sess *session.State, category string) *models.Briefing {
	today := e.today()
	if b := sess.Briefing; b != nil && b.Category == category && models.DayKey(sess.SynthesizedAt, e.Location) == today {
		return b
	}
	if b := e.loadCached(ctx, category, today); b != nil {
		e.adopt(sess, category, b, nil)
		return b
	}
	return nil
}
