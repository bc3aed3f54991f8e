package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/mohammad-safakhou/briefbot/internal/dedup"
	"github.com/mohammad-safakhou/briefbot/internal/graph"
	"github.com/mohammad-safakhou/briefbot/internal/session"
	"github.com/mohammad-safakhou/briefbot/internal/worker"
	"github.com/mohammad-safakhou/briefbot/models"
)

type memMessenger struct {
	sent chan string
}

func (m *memMessenger) Reply(_ context.Context, messageID, content string) error {
	m.sent <- "reply:" + messageID + ":" + content
	return nil
}

func (m *memMessenger) Send(_ context.Context, userID, content string) error {
	m.sent <- "send:" + userID + ":" + content
	return nil
}

func (m *memMessenger) Update(context.Context, string, string) error { return nil }

type stubStore struct{ subs map[string][]string }

func (s *stubStore) UpsertSubscription(_ context.Context, userID, category string) error {
	s.subs[userID] = append(s.subs[userID], category)
	return nil
}
func (s *stubStore) ListSubscriptions(_ context.Context, userID string) ([]string, error) {
	return s.subs[userID], nil
}
func (s *stubStore) MigrateLegacyPreference(context.Context, string) (string, error) {
	return "", nil
}
func (s *stubStore) UpsertCache(context.Context, models.CacheEntry) error { return nil }
func (s *stubStore) GetCache(context.Context, string, string) (models.CacheEntry, error) {
	return models.CacheEntry{}, fmt.Errorf("cache miss")
}

type stubClassifier struct{}

func (stubClassifier) Classify(context.Context, string) (models.Intent, error) {
	return models.Intent{Kind: models.IntentChat}, nil
}

type stubSynth struct{}

func (stubSynth) Synthesize(context.Context, string, []string, []models.Article, int, int) (*models.Briefing, error) {
	return nil, fmt.Errorf("not under test")
}

type stubChat struct{}

func (stubChat) Chat(context.Context, []string, string) (string, error) { return "hi", nil }

type stubNews struct{}

func (stubNews) Search(context.Context, string, time.Duration) ([]models.Article, error) {
	return nil, fmt.Errorf("not under test")
}

type plainRenderer struct{}

func (plainRenderer) Cover(b *models.Briefing) string { return "cover " + b.Category }
func (plainRenderer) Detail(category string, cluster models.Cluster) string {
	return "detail " + category + "/" + cluster.Name
}

func newTestHandler(t *testing.T) (*WebhookHandler, *memMessenger) {
	t.Helper()
	logger := log.New(log.Writer(), "[TEST] ", 0)
	engine := &graph.Engine{
		Store:         &stubStore{subs: map[string][]string{}},
		Sessions:      session.NewMemoryStore(),
		Classifier:    stubClassifier{},
		Synthesizer:   stubSynth{},
		Chatter:       stubChat{},
		News:          stubNews{},
		Render:        plainRenderer{},
		Location:      time.UTC,
		HistoryWindow: 10,
		Logger:        logger,
	}
	m := &memMessenger{sent: make(chan string, 8)}
	pool := worker.NewPool(1, 8, logger)
	t.Cleanup(pool.Shutdown)
	return &WebhookHandler{
		Engine:      engine,
		Messenger:   m,
		Events:      dedup.NewEventGuard(64),
		Actions:     dedup.NewActionGuard(5 * time.Second),
		Pool:        pool,
		VerifyToken: "vt-1",
		Logger:      logger,
	}, m
}

func post(t *testing.T, h *WebhookHandler, body string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/lark/event", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	if err := h.handle(e.NewContext(req, rec)); err != nil {
		e.HTTPErrorHandler(err, e.NewContext(req, rec))
	}
	return rec
}

func awaitDelivery(t *testing.T, m *memMessenger) string {
	t.Helper()
	select {
	case s := <-m.sent:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("no delivery within deadline")
		return ""
	}
}

func TestHandshakeEchoesChallenge(t *testing.T) {
	h, _ := newTestHandler(t)
	rec := post(t, h, `{"type":"url_verification","challenge":"ch-42","token":"vt-1"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var out map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out["challenge"] != "ch-42" {
		t.Fatalf("challenge = %q", out["challenge"])
	}
}

func TestHandshakeRejectsBadToken(t *testing.T) {
	h, _ := newTestHandler(t)
	rec := post(t, h, `{"type":"url_verification","challenge":"ch-42","token":"wrong"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func messageBody(eventID, text string) string {
	content, _ := json.Marshal(map[string]string{"text": text})
	inner, _ := json.Marshal(string(content))
	return fmt.Sprintf(`{
		"header": {"event_id": %q, "event_type": "im.message.receive_v1", "token": "vt-1"},
		"event": {
			"sender": {"sender_id": {"open_id": "ou-1"}},
			"message": {"message_id": "om-1", "message_type": "text", "content": %s}
		}
	}`, eventID, inner)
}

func TestMessageEventRepliesOnce(t *testing.T) {
	h, m := newTestHandler(t)

	rec := post(t, h, messageBody("ev-1", "hello there"))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	got := awaitDelivery(t, m)
	if !strings.HasPrefix(got, "reply:om-1:") {
		t.Fatalf("delivery = %q", got)
	}

	// redelivery of the same event id is acknowledged but not processed
	rec = post(t, h, messageBody("ev-1", "hello there"))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "duplicate") {
		t.Fatalf("body = %s, want duplicate marker", rec.Body.String())
	}
	select {
	case extra := <-m.sent:
		t.Fatalf("duplicate produced a delivery: %q", extra)
	case <-time.After(100 * time.Millisecond):
	}
}

func cardActionBody(target, category string) string {
	return fmt.Sprintf(`{
		"header": {"event_type": "card.action.trigger", "token": "vt-1"},
		"event": {
			"operator": {"open_id": "ou-1"},
			"context": {"open_message_id": "om-9"},
			"action": {"value": {"command": "expand", "target": %q, "category": %q}}
		}
	}`, target, category)
}

func TestCardActionDedupWithinWindow(t *testing.T) {
	h, m := newTestHandler(t)

	rec := post(t, h, cardActionBody("Model", "AI"))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	awaitDelivery(t, m) // detail for the first click

	rec = post(t, h, cardActionBody("Model", "AI"))
	if !strings.Contains(rec.Body.String(), "Already on it") {
		t.Fatalf("repeat click body = %s", rec.Body.String())
	}
	select {
	case extra := <-m.sent:
		t.Fatalf("repeat click produced a delivery: %q", extra)
	case <-time.After(100 * time.Millisecond):
	}

	// a different button on the same card is a distinct physical action
	rec = post(t, h, cardActionBody("Product", "AI"))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	awaitDelivery(t, m)
}

func TestSaturatedPoolStillReplies(t *testing.T) {
	h, m := newTestHandler(t)
	h.Pool.Shutdown() // every Submit is rejected from here on

	rec := post(t, h, messageBody("ev-busy-1", "hello"))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	got := awaitDelivery(t, m)
	if got != "reply:om-1:"+replyBusy {
		t.Fatalf("delivery = %q, want busy reply", got)
	}

	rec = post(t, h, cardActionBody("Model", "AI"))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := awaitDelivery(t, m); got != "send:ou-1:"+replyBusy {
		t.Fatalf("delivery = %q, want busy reply", got)
	}
}

func TestMenuClickSubscribes(t *testing.T) {
	h, m := newTestHandler(t)
	body := `{
		"header": {"event_id": "ev-menu-1", "event_type": "application.bot.menu_v6", "token": "vt-1"},
		"event": {"operator": {"operator_id": {"open_id": "ou-2"}}, "event_key": "subscribe:GAMES"}
	}`
	rec := post(t, h, body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	got := awaitDelivery(t, m)
	if !strings.Contains(got, "GAMES") {
		t.Fatalf("delivery = %q, want GAMES confirmation", got)
	}
}
