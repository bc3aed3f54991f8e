package lark

import "encoding/json"

// Event type discriminators delivered on the webhook.
const (
	EventTypeMessage    = "im.message.receive_v1"
	EventTypeCardAction = "card.action.trigger"
	EventTypeMenuClick  = "application.bot.menu_v6"
)

// WebhookBody is the envelope of every webhook delivery. Handshake
// verification uses the top-level Type/Challenge pair; everything else is
// discriminated by Header.EventType.
type WebhookBody struct {
	Type      string          `json:"type,omitempty"`
	Challenge string          `json:"challenge,omitempty"`
	Token     string          `json:"token,omitempty"`
	Header    EventHeader     `json:"header,omitempty"`
	Event     json.RawMessage `json:"event,omitempty"`
}

// EventHeader carries the event discriminator and idempotency key.
type EventHeader struct {
	EventID   string `json:"event_id"`
	EventType string `json:"event_type"`
	Token     string `json:"token"`
}

// MessageEvent is the payload of im.message.receive_v1.
type MessageEvent struct {
	Sender struct {
		SenderID struct {
			OpenID string `json:"open_id"`
		} `json:"sender_id"`
	} `json:"sender"`
	Message struct {
		MessageID string `json:"message_id"`
		ChatID    string `json:"chat_id"`
		Type      string `json:"message_type"`
		Content   string `json:"content"` // JSON string, {"text": "..."} for text messages
	} `json:"message"`
}

// CardActionEvent is the payload of card.action.trigger. Card clicks carry
// no stable event id, so dedup keys on (operator, message, command, target).
type CardActionEvent struct {
	Operator struct {
		OpenID string `json:"open_id"`
	} `json:"operator"`
	Context struct {
		OpenMessageID string `json:"open_message_id"`
	} `json:"context"`
	Action struct {
		Value struct {
			Command  string `json:"command"`
			Target   string `json:"target"`
			Category string `json:"category"`
		} `json:"value"`
	} `json:"action"`
}

// MenuClickEvent is the payload of application.bot.menu_v6. Menu items use
// "subscribe:<category>" event keys.
type MenuClickEvent struct {
	Operator struct {
		OperatorID struct {
			OpenID string `json:"open_id"`
		} `json:"operator_id"`
	} `json:"operator"`
	EventKey string `json:"event_key"`
}
