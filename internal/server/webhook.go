package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/mohammad-safakhou/briefbot/internal/dedup"
	"github.com/mohammad-safakhou/briefbot/internal/graph"
	"github.com/mohammad-safakhou/briefbot/internal/lark"
	"github.com/mohammad-safakhou/briefbot/internal/worker"
)

// WebhookHandler terminates the chat-platform event callback. Deliveries
// are acknowledged immediately and processed on the worker pool: the
// platform retries on slow responses, which is exactly the duplicate storm
// the dedup guards exist to absorb.
type WebhookHandler struct {
	Engine      *graph.Engine
	Messenger   lark.Messenger
	Events      *dedup.EventGuard
	Actions     *dedup.ActionGuard
	Pool        *worker.Pool
	VerifyToken string
	Logger      *log.Logger
}

// Register mounts the webhook route.
func (h *WebhookHandler) Register(e *echo.Echo) {
	e.POST("/api/lark/event", h.handle)
}

func (h *WebhookHandler) handle(c echo.Context) error {
	var body lark.WebhookBody
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}

	if body.Type == "url_verification" {
		if h.VerifyToken != "" && body.Token != h.VerifyToken {
			return echo.NewHTTPError(http.StatusUnauthorized, "bad verification token")
		}
		return c.JSON(http.StatusOK, map[string]string{"challenge": body.Challenge})
	}
	if h.VerifyToken != "" && body.Header.Token != h.VerifyToken {
		return echo.NewHTTPError(http.StatusUnauthorized, "bad verification token")
	}

	switch body.Header.EventType {
	case lark.EventTypeMessage:
		return h.onMessage(c, body)
	case lark.EventTypeCardAction:
		return h.onCardAction(c, body)
	case lark.EventTypeMenuClick:
		return h.onMenuClick(c, body)
	default:
		// unknown event types are acknowledged so the platform stops retrying
		return c.JSON(http.StatusOK, map[string]string{"status": "ignored"})
	}
}

func (h *WebhookHandler) onMessage(c echo.Context, body lark.WebhookBody) error {
	webhookEvents.WithLabelValues("message").Inc()
	if !h.Events.ShouldProcess(body.Header.EventID) {
		dedupSuppressed.WithLabelValues("event").Inc()
		return c.JSON(http.StatusOK, map[string]string{"status": "duplicate"})
	}

	var ev lark.MessageEvent
	if err := json.Unmarshal(body.Event, &ev); err != nil {
		h.Logger.Printf("decode message event %s: %v", body.Header.EventID, err)
		return c.JSON(http.StatusOK, map[string]string{"status": "ignored"})
	}
	if ev.Message.Type != "text" {
		return c.JSON(http.StatusOK, map[string]string{"status": "ignored"})
	}
	var content struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal([]byte(ev.Message.Content), &content); err != nil {
		h.Logger.Printf("decode message content %s: %v", body.Header.EventID, err)
		return c.JSON(http.StatusOK, map[string]string{"status": "ignored"})
	}

	userID := ev.Sender.SenderID.OpenID
	messageID := ev.Message.MessageID
	text := strings.TrimSpace(content.Text)
	h.submit(func(ctx context.Context) {
		reply := h.Engine.Handle(ctx, userID, text)
		if err := h.Messenger.Reply(ctx, messageID, reply); err != nil {
			h.Logger.Printf("reply to %s: %v", messageID, err)
		}
	}, func(ctx context.Context) {
		if err := h.Messenger.Reply(ctx, messageID, replyBusy); err != nil {
			h.Logger.Printf("busy reply to %s: %v", messageID, err)
		}
	})
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (h *WebhookHandler) onCardAction(c echo.Context, body lark.WebhookBody) error {
	webhookEvents.WithLabelValues("card_action").Inc()
	var ev lark.CardActionEvent
	if err := json.Unmarshal(body.Event, &ev); err != nil {
		h.Logger.Printf("decode card action: %v", err)
		return c.JSON(http.StatusOK, map[string]string{"status": "ignored"})
	}
	if ev.Action.Value.Command != lark.CommandExpand {
		return c.JSON(http.StatusOK, map[string]string{"status": "ignored"})
	}

	key := dedup.ActionKey(ev.Operator.OpenID, ev.Context.OpenMessageID,
		ev.Action.Value.Command, ev.Action.Value.Target, ev.Action.Value.Category)
	if !h.Actions.ShouldProcess(key) {
		dedupSuppressed.WithLabelValues("action").Inc()
		return c.JSON(http.StatusOK, map[string]interface{}{
			"toast": map[string]string{"type": "info", "content": "Already on it..."},
		})
	}

	userID := ev.Operator.OpenID
	target := ev.Action.Value.Target
	category := ev.Action.Value.Category
	h.submit(func(ctx context.Context) {
		reply := h.Engine.HandleAction(ctx, userID, target, category)
		if err := h.Messenger.Send(ctx, userID, reply); err != nil {
			h.Logger.Printf("send detail to %s: %v", userID, err)
		}
	}, func(ctx context.Context) {
		if err := h.Messenger.Send(ctx, userID, replyBusy); err != nil {
			h.Logger.Printf("busy reply to %s: %v", userID, err)
		}
	})
	// the callback itself only acknowledges; the detail arrives as a message
	return c.JSON(http.StatusOK, map[string]interface{}{
		"toast": map[string]string{"type": "info", "content": "Expanding..."},
	})
}

func (h *WebhookHandler) onMenuClick(c echo.Context, body lark.WebhookBody) error {
	webhookEvents.WithLabelValues("menu_click").Inc()
	if !h.Events.ShouldProcess(body.Header.EventID) {
		dedupSuppressed.WithLabelValues("event").Inc()
		return c.JSON(http.StatusOK, map[string]string{"status": "duplicate"})
	}

	var ev lark.MenuClickEvent
	if err := json.Unmarshal(body.Event, &ev); err != nil {
		h.Logger.Printf("decode menu click %s: %v", body.Header.EventID, err)
		return c.JSON(http.StatusOK, map[string]string{"status": "ignored"})
	}
	category, ok := strings.CutPrefix(ev.EventKey, "subscribe:")
	if !ok {
		return c.JSON(http.StatusOK, map[string]string{"status": "ignored"})
	}

	userID := ev.Operator.OperatorID.OpenID
	h.submit(func(ctx context.Context) {
		reply := h.Engine.Handle(ctx, userID, "subscribe "+category)
		if err := h.Messenger.Send(ctx, userID, reply); err != nil {
			h.Logger.Printf("send to %s: %v", userID, err)
		}
	}, func(ctx context.Context) {
		if err := h.Messenger.Send(ctx, userID, replyBusy); err != nil {
			h.Logger.Printf("busy reply to %s: %v", userID, err)
		}
	})
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

const replyBusy = "I'm handling a lot of requests right now, please try again in a moment."

// submit queues the job; when the pool is saturated or shut down the user
// still gets a concrete reply, delivered inline. Redelivery would not help
// here: the dedup guards have already recorded the event.
func (h *WebhookHandler) submit(job worker.Job, busy func(ctx context.Context)) {
	if h.Pool.Submit(job) {
		return
	}
	h.Logger.Printf("worker pool rejected job, sending busy reply")
	go busy(context.Background())
}
