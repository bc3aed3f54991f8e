package lark

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"sync"

	"github.com/mohammad-safakhou/briefbot/models"
)

const maxChildrenPerRequest = 50

// DocWriter appends generated briefings to a wiki document as the archive
// step. Every operation is best-effort from the scheduler's point of view:
// a failed archive is logged by the caller, never fatal.
type DocWriter struct {
	client *Client

	mu       sync.Mutex
	docCache map[string]string // wiki token -> document id
}

// NewDocWriter builds an archive writer sharing the transport client's
// credentials and token cache.
func NewDocWriter(client *Client) *DocWriter {
	return &DocWriter{client: client, docCache: make(map[string]string)}
}

type block map[string]interface{}

// WriteDailyBriefings appends a dated section for every category to the
// wiki document, inserted after the document's first callout block when one
// exists, otherwise appended at the end.
func (w *DocWriter) WriteDailyBriefings(ctx context.Context, wikiToken string, briefings map[string]*models.Briefing, day string) error {
	docID, err := w.documentID(ctx, wikiToken)
	if err != nil {
		return err
	}

	blocks := []block{dividerBlock(), headingBlock(day, 2)}
	categories := make([]string, 0, len(briefings))
	for c := range briefings {
		categories = append(categories, c)
	}
	sort.Strings(categories)
	for _, category := range categories {
		blocks = append(blocks, headingBlock(category, 3))
		b := briefings[category]
		if b == nil {
			blocks = append(blocks, textBlock("no data"))
			continue
		}
		blocks = append(blocks, boldBlock("── 🔥 Headlines ──"))
		for _, h := range b.Headlines {
			blocks = append(blocks, orderedBlock(h.Title, h.URL))
		}
		blocks = append(blocks, boldBlock("── 📂 Topics ──"))
		for _, cluster := range b.Clusters {
			blocks = append(blocks, boldBlock("▸ "+cluster.Name))
			if len(cluster.Items) == 0 {
				blocks = append(blocks, textBlock("no items"))
				continue
			}
			for _, item := range cluster.Items {
				blocks = append(blocks, orderedBlock(item.Summary, item.URL))
			}
		}
	}

	index := w.firstCalloutIndex(ctx, docID)
	return w.appendBlocks(ctx, docID, blocks, index)
}

// documentID resolves a wiki token to the underlying document id, cached
// per token.
func (w *DocWriter) documentID(ctx context.Context, wikiToken string) (string, error) {
	w.mu.Lock()
	if id, ok := w.docCache[wikiToken]; ok {
		w.mu.Unlock()
		return id, nil
	}
	w.mu.Unlock()

	token, err := w.client.tenantToken(ctx)
	if err != nil {
		return "", err
	}
	var result struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
		Data struct {
			Node struct {
				ObjToken string `json:"obj_token"`
			} `json:"node"`
		} `json:"data"`
	}
	path := "/wiki/v2/spaces/get_node?token=" + url.QueryEscape(wikiToken)
	if err := w.client.callGet(ctx, path, token, &result); err != nil {
		return "", fmt.Errorf("resolve wiki node: %w", err)
	}
	if result.Code != 0 || result.Data.Node.ObjToken == "" {
		return "", fmt.Errorf("resolve wiki node: code %d: %s", result.Code, result.Msg)
	}
	w.mu.Lock()
	w.docCache[wikiToken] = result.Data.Node.ObjToken
	w.mu.Unlock()
	return result.Data.Node.ObjToken, nil
}

// firstCalloutIndex scans the leading blocks for a callout and returns the
// insertion index after it, or -1 to append at the end.
func (w *DocWriter) firstCalloutIndex(ctx context.Context, docID string) int {
	token, err := w.client.tenantToken(ctx)
	if err != nil {
		return -1
	}
	var result struct {
		Data struct {
			Items []struct {
				BlockType int `json:"block_type"`
			} `json:"items"`
		} `json:"data"`
	}
	path := fmt.Sprintf("/docx/v1/documents/%s/blocks/%s/children?page_size=50", docID, docID)
	if err := w.client.callGet(ctx, path, token, &result); err != nil {
		return -1
	}
	for i, item := range result.Data.Items {
		// 17..19 cover the highlight block variants used as pinned notes
		if item.BlockType >= 17 && item.BlockType <= 19 {
			return i + 1
		}
	}
	return -1
}

// appendBlocks writes blocks in batches bounded by the API children limit.
func (w *DocWriter) appendBlocks(ctx context.Context, docID string, blocks []block, index int) error {
	token, err := w.client.tenantToken(ctx)
	if err != nil {
		return err
	}
	for start := 0; start < len(blocks); start += maxChildrenPerRequest {
		end := start + maxChildrenPerRequest
		if end > len(blocks) {
			end = len(blocks)
		}
		payload := map[string]interface{}{"children": blocks[start:end], "index": index}
		var result struct {
			Code int    `json:"code"`
			Msg  string `json:"msg"`
		}
		path := fmt.Sprintf("/docx/v1/documents/%s/blocks/%s/children", docID, docID)
		if err := w.client.call(ctx, http.MethodPost, path, token, payload, &result); err != nil {
			return fmt.Errorf("append blocks: %w", err)
		}
		if result.Code != 0 {
			return fmt.Errorf("append blocks: code %d: %s", result.Code, result.Msg)
		}
		if index != -1 {
			index += end - start
		}
	}
	return nil
}

// callGet issues an authorized GET; the transport client only speaks JSON.
func (c *Client) callGet(ctx context.Context, path, token string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("lark api status: %s", resp.Status)
	}
	return decodeJSON(resp.Body, out)
}

func headingBlock(text string, level int) block {
	return block{
		"block_type": 2 + level,
		fmt.Sprintf("heading%d", level): map[string]interface{}{
			"elements": []interface{}{textRun(text, "")},
			"style":    map[string]interface{}{},
		},
	}
}

func dividerBlock() block {
	return block{
		"block_type": 22,
		"divider":    map[string]interface{}{},
	}
}

func textBlock(text string) block {
	return block{
		"block_type": 2,
		"text": map[string]interface{}{
			"elements": []interface{}{textRun(text, "")},
			"style":    map[string]interface{}{},
		},
	}
}

func boldBlock(text string) block {
	run := map[string]interface{}{"text_run": map[string]interface{}{
		"content":            text,
		"text_element_style": map[string]interface{}{"bold": true},
	}}
	return block{
		"block_type": 2,
		"text":       map[string]interface{}{"elements": []interface{}{run}, "style": map[string]interface{}{}},
	}
}

func orderedBlock(text, url string) block {
	return block{
		"block_type": 13,
		"ordered": map[string]interface{}{
			"elements": []interface{}{textRun(text, url)},
			"style":    map[string]interface{}{},
		},
	}
}

func textRun(content, url string) map[string]interface{} {
	run := map[string]interface{}{"content": content}
	if url != "" {
		run["text_element_style"] = map[string]interface{}{"link": map[string]string{"url": url}}
	}
	return map[string]interface{}{"text_run": run}
}
