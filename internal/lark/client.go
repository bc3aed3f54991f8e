// Package lark is the chat-platform transport: message delivery, card
// rendering and the archive document writer.
package lark

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/mohammad-safakhou/briefbot/config"
)

// Messenger is the outbound messaging surface consumed by the engine and
// the scheduler. Content may be plain text or a pre-rendered card JSON;
// the implementation detects which by structural shape.
type Messenger interface {
	Reply(ctx context.Context, messageID, content string) error
	Send(ctx context.Context, userID, content string) error
	Update(ctx context.Context, messageID, content string) error
}

// Client talks to the Lark open API with a cached tenant access token.
type Client struct {
	appID      string
	appSecret  string
	baseURL    string
	httpClient *http.Client

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

// NewClient builds a transport client from config.
func NewClient(cfg config.LarkConfig) *Client {
	base := strings.TrimSuffix(cfg.APIBase, "/")
	if base == "" {
		base = "https://open.feishu.cn/open-apis"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		appID:      cfg.AppID,
		appSecret:  cfg.AppSecret,
		baseURL:    base,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// tenantToken returns a cached tenant access token, refreshing it shortly
// before expiry.
func (c *Client) tenantToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" && time.Now().Before(c.tokenExpiry) {
		return c.token, nil
	}
	payload := map[string]string{"app_id": c.appID, "app_secret": c.appSecret}
	var result struct {
		Code              int    `json:"code"`
		Msg               string `json:"msg"`
		TenantAccessToken string `json:"tenant_access_token"`
		Expire            int    `json:"expire"`
	}
	if err := c.post(ctx, "/auth/v3/tenant_access_token/internal", "", payload, &result); err != nil {
		return "", fmt.Errorf("get tenant token: %w", err)
	}
	if result.Code != 0 {
		return "", fmt.Errorf("get tenant token: code %d: %s", result.Code, result.Msg)
	}
	c.token = result.TenantAccessToken
	expire := result.Expire
	if expire <= 0 {
		expire = 7200
	}
	// refresh five minutes early
	c.tokenExpiry = time.Now().Add(time.Duration(expire-300) * time.Second)
	return c.token, nil
}

// IsCard reports whether content looks like a rendered interactive card
// rather than plain text.
func IsCard(content string) bool {
	s := strings.TrimSpace(content)
	return strings.HasPrefix(s, "{") && strings.Contains(s, `"header"`) && strings.Contains(s, `"elements"`)
}

// wrap prepares the content and msg_type fields for the messaging APIs.
func wrap(content string) (msgType, body string, err error) {
	if IsCard(content) {
		return "interactive", content, nil
	}
	data, err := json.Marshal(map[string]string{"text": content})
	if err != nil {
		return "", "", err
	}
	return "text", string(data), nil
}

// Reply answers an existing message.
func (c *Client) Reply(ctx context.Context, messageID, content string) error {
	msgType, body, err := wrap(content)
	if err != nil {
		return err
	}
	return c.messageCall(ctx, http.MethodPost, fmt.Sprintf("/im/v1/messages/%s/reply", messageID),
		map[string]string{"content": body, "msg_type": msgType})
}

// Send delivers a new message directly to a user by open id.
func (c *Client) Send(ctx context.Context, userID, content string) error {
	msgType, body, err := wrap(content)
	if err != nil {
		return err
	}
	return c.messageCall(ctx, http.MethodPost, "/im/v1/messages?receive_id_type=open_id",
		map[string]string{"receive_id": userID, "content": body, "msg_type": msgType})
}

// Update replaces the content of a previously sent card message.
func (c *Client) Update(ctx context.Context, messageID, content string) error {
	msgType, body, err := wrap(content)
	if err != nil {
		return err
	}
	if msgType != "interactive" {
		return fmt.Errorf("update requires card content")
	}
	return c.messageCall(ctx, http.MethodPatch, fmt.Sprintf("/im/v1/messages/%s", messageID),
		map[string]string{"content": body})
}

func (c *Client) messageCall(ctx context.Context, method, path string, payload interface{}) error {
	token, err := c.tenantToken(ctx)
	if err != nil {
		return err
	}
	var result struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
	}
	if err := c.call(ctx, method, path, token, payload, &result); err != nil {
		return err
	}
	// the API can report failure inside a 200 body
	if result.Code != 0 {
		return fmt.Errorf("lark api code %d: %s", result.Code, result.Msg)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path, token string, payload, out interface{}) error {
	return c.call(ctx, http.MethodPost, path, token, payload, out)
}

func (c *Client) call(ctx context.Context, method, path, token string, payload, out interface{}) error {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("lark api status: %s", resp.Status)
	}
	return decodeJSON(resp.Body, out)
}

func decodeJSON(r io.Reader, out interface{}) error {
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(r).Decode(out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}
