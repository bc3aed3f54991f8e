// Package graph is the conversation orchestration engine: it classifies an
// inbound event into an intent and drives it through the subscription,
// fetch-or-reuse, synthesis and detail nodes.
//
// Every node resolves its own failures into a user-facing reply; no error
// escapes a turn without producing a concrete, non-empty answer.
package graph

import (
	"context"
	"log"
	"time"

	"github.com/mohammad-safakhou/briefbot/internal/session"
	"github.com/mohammad-safakhou/briefbot/models"
)

// Classifier maps free text to an intent, extracting a category for
// subscribe intents. Errors mean "don't guess": the router surfaces them.
type Classifier interface {
	Classify(ctx context.Context, text string) (models.Intent, error)
}

// Synthesizer turns raw articles into a schema-conforming briefing.
type Synthesizer interface {
	Synthesize(ctx context.Context, category string, taxonomy []string, articles []models.Article, headlineCount, summaryMaxLen int) (*models.Briefing, error)
}

// Chatter answers free-form messages with recent history as context.
type Chatter interface {
	Chat(ctx context.Context, history []string, text string) (string, error)
}

// NewsSource fetches raw articles for a category over a trailing window.
type NewsSource interface {
	Search(ctx context.Context, category string, window time.Duration) ([]models.Article, error)
}

// CacheStore is the durable daily-cache and subscription surface the engine
// depends on; *store.Store satisfies it.
type CacheStore interface {
	UpsertSubscription(ctx context.Context, userID, category string) error
	ListSubscriptions(ctx context.Context, userID string) ([]string, error)
	MigrateLegacyPreference(ctx context.Context, userID string) (string, error)
	UpsertCache(ctx context.Context, entry models.CacheEntry) error
	GetCache(ctx context.Context, category, date string) (models.CacheEntry, error)
}

// Renderer turns a briefing or a cluster into outbound message content.
// The lark package provides the card implementation; tests use plain text.
type Renderer interface {
	Cover(b *models.Briefing) string
	Detail(category string, cluster models.Cluster) string
}

// Engine wires the nodes to their collaborators.
type Engine struct {
	Store       CacheStore
	Sessions    session.Store
	Classifier  Classifier
	Synthesizer Synthesizer
	Chatter     Chatter
	News        NewsSource
	Render      Renderer

	Location      *time.Location
	FetchWindow   time.Duration
	HeadlineCount int
	SummaryMaxLen int
	HistoryWindow int
	Logger        *log.Logger

	now func() time.Time
}

// Canned replies for resolved failure paths.
const (
	replyNoSubscription  = "You are not subscribed to anything yet. Send \"subscribe AI\" to get started."
	replyMissingCategory = "Which category would you like? For example: subscribe AI"
	replyFetchFailed     = "Fetching today's news failed, please try again later."
	replySynthesisFailed = "Generating today's briefing failed, please try again later."
	replyStoreFailed     = "Something went wrong saving your request, please try again."
	replyDetailStale     = "That topic is stale or not found. Send \"read\" to regenerate today's briefing."
	replyChatUnavailable = "The assistant is unavailable right now, please try again later."
	replyUnknownIntent   = "Sorry, I could not understand that request."
)

func (e *Engine) clock() time.Time {
	if e.now != nil {
		return e.now()
	}
	return time.Now()
}

func (e *Engine) today() string {
	return models.DayKey(e.clock(), e.Location)
}

func (e *Engine) logf(format string, args ...interface{}) {
	if e.Logger != nil {
		e.Logger.Printf(format, args...)
	}
}

// Handle runs one interactive turn for a user message and returns the reply
// content (text or rendered card). It always returns a non-empty reply.
func (e *Engine) Handle(ctx context.Context, userID, text string) string {
	sess, err := e.Sessions.Load(ctx, userID)
	if err != nil {
		e.logf("load session %s: %v", userID, err)
		sess = &session.State{UserID: userID}
	}
	sess.Append(session.RoleUser, text, e.HistoryWindow)

	intent := e.route(ctx, text)
	sess.LastIntent = intent

	reply := e.dispatch(ctx, sess, intent, text)
	if reply == "" {
		reply = replyUnknownIntent
	}
	sess.Append(session.RoleAssistant, reply, e.HistoryWindow)
	if err := e.Sessions.Save(ctx, sess); err != nil {
		e.logf("save session %s: %v", userID, err)
	}
	return reply
}

// HandleAction runs one card-button turn. The payload carries both the
// cluster name and its category, so the lookup is scoped unambiguously.
func (e *Engine) HandleAction(ctx context.Context, userID, cluster, category string) string {
	sess, err := e.Sessions.Load(ctx, userID)
	if err != nil {
		e.logf("load session %s: %v", userID, err)
		sess = &session.State{UserID: userID}
	}
	intent := models.Intent{Kind: models.IntentDetail, Cluster: cluster, Category: category}
	sess.LastIntent = intent
	reply := e.detail(ctx, sess, intent)
	if err := e.Sessions.Save(ctx, sess); err != nil {
		e.logf("save session %s: %v", userID, err)
	}
	return reply
}

// dispatch is the total match over the intent union.
func (e *Engine) dispatch(ctx context.Context, sess *session.State, intent models.Intent, text string) string {
	switch intent.Kind {
	case models.IntentSubscribe:
		return e.saveSubscription(ctx, sess, intent)
	case models.IntentRead:
		return e.read(ctx, sess, false)
	case models.IntentDetail:
		return e.detail(ctx, sess, intent)
	case models.IntentChat:
		return e.chat(ctx, sess, text)
	case models.IntentError:
		return intent.Diagnostic
	default:
		return replyUnknownIntent
	}
}

// read drives fetch-or-reuse and synthesis, then renders the cover.
func (e *Engine) read(ctx context.Context, sess *session.State, persistCache bool) string {
	briefing, err := e.runBriefing(ctx, sess, persistCache)
	if err != nil {
		return e.briefingFailure(err)
	}
	return e.Render.Cover(briefing)
}

// chat is the passthrough conversational node.
func (e *Engine) chat(ctx context.Context, sess *session.State, text string) string {
	history := make([]string, 0, len(sess.Messages))
	for _, m := range sess.Messages {
		history = append(history, m.Role+": "+m.Content)
	}
	reply, err := e.Chatter.Chat(ctx, history, text)
	if err != nil {
		e.logf("chat: %v", err)
		return replyChatUnavailable
	}
	return reply
}
