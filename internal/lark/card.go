package lark

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mohammad-safakhou/briefbot/models"
)

// CommandExpand is the card-button command for cluster detail expansion.
const CommandExpand = "expand"

// ExpandPrefix is the fixed marker used when a button click is translated
// into simulated message text for the router.
const ExpandPrefix = "expand:"

// BuildCoverCard renders the briefing cover: summary, top headlines and one
// button per cluster. Button payloads carry both the cluster name and the
// category so detail lookups are unambiguous across categories.
func BuildCoverCard(b *models.Briefing) string {
	var headlines strings.Builder
	headlines.WriteString("**🔥 Top Headlines**\n")
	for i, h := range b.Headlines {
		fmt.Fprintf(&headlines, "%d. [%s](%s)\n", i+1, h.Title, h.URL)
	}

	actions := make([]map[string]interface{}, 0, len(b.Clusters))
	for _, cluster := range b.Clusters {
		actions = append(actions, map[string]interface{}{
			"tag":  "button",
			"text": map[string]string{"tag": "plain_text", "content": fmt.Sprintf("👉 %s (%d)", cluster.Name, len(cluster.Items))},
			"type": "default",
			"value": map[string]string{
				"command":  CommandExpand,
				"target":   cluster.Name,
				"category": b.Category,
			},
		})
	}

	card := map[string]interface{}{
		"config": map[string]bool{"wide_screen_mode": true},
		"header": map[string]interface{}{
			"template": "blue",
			"title":    map[string]string{"tag": "plain_text", "content": fmt.Sprintf("☕️ Daily Briefing | %s", b.Category)},
		},
		"elements": []interface{}{
			divText(fmt.Sprintf("**Today**:\n%s", b.Summary)),
			hr(),
			divText(headlines.String()),
			hr(),
			divText("👇 **Topics (tap a button to expand)**"),
			map[string]interface{}{"tag": "action", "actions": actions},
			map[string]interface{}{"tag": "note", "elements": []interface{}{
				map[string]string{"tag": "plain_text", "content": fmt.Sprintf("Generated %s", b.GeneratedAt.Format("2006-01-02 15:04"))},
			}},
		},
	}
	data, err := json.Marshal(card)
	if err != nil {
		// card maps marshal deterministically; keep the reply non-empty anyway
		return fmt.Sprintf("Daily briefing for %s is ready.", b.Category)
	}
	return string(data)
}

// RenderClusterDetail renders one cluster's items as markdown text.
func RenderClusterDetail(category string, cluster models.Cluster) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "📂 **%s · %s**\n\n", category, cluster.Name)
	if len(cluster.Items) == 0 {
		sb.WriteString("No items in this topic today.")
		return sb.String()
	}
	for i, item := range cluster.Items {
		if item.URL != "" {
			fmt.Fprintf(&sb, "%d. [%s](%s)\n", i+1, item.Summary, item.URL)
		} else {
			fmt.Fprintf(&sb, "%d. %s\n", i+1, item.Summary)
		}
	}
	return sb.String()
}

func divText(md string) map[string]interface{} {
	return map[string]interface{}{
		"tag":  "div",
		"text": map[string]string{"tag": "lark_md", "content": md},
	}
}

func hr() map[string]interface{} { return map[string]interface{}{"tag": "hr"} }
