package graph

import (
	"context"
	"fmt"
	"strings"

	"github.com/mohammad-safakhou/briefbot/internal/session"
	"github.com/mohammad-safakhou/briefbot/models"
)

// saveSubscription persists a category subscription and confirms with the
// user's complete subscription set, so the reply reflects durable state
// rather than just this turn's input.
func (e *Engine) saveSubscription(ctx context.Context, sess *session.State, intent models.Intent) string {
	category := strings.ToUpper(strings.TrimSpace(intent.Category))
	if category == "" {
		return replyMissingCategory
	}
	if err := e.Store.UpsertSubscription(ctx, sess.UserID, category); err != nil {
		e.logf("upsert subscription %s/%s: %v", sess.UserID, category, err)
		return replyStoreFailed
	}
	sess.TargetCategory = category

	all, err := e.Store.ListSubscriptions(ctx, sess.UserID)
	if err != nil {
		e.logf("list subscriptions %s: %v", sess.UserID, err)
		all = []string{category}
	}
	return fmt.Sprintf("✅ Subscribed to %s. Your daily briefings: %s.", category, strings.Join(all, ", "))
}
