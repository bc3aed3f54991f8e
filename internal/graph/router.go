package graph

import (
	"context"
	"regexp"
	"strings"

	"github.com/mohammad-safakhou/briefbot/models"
)

// expandPattern matches simulated button text like "expand: Model (3)" and
// its full-width punctuation variants, capturing the bare cluster name.
var expandPattern = regexp.MustCompile(`^expand[:：]\s*(.+?)(?:\s*[（(]\d+[)）])?$`)

var readKeywords = []string{"read", "news", "briefing", "今日新闻", "看新闻"}

// route resolves the intent for one turn without ever guessing on failure.
// Structural patterns beat the classifier; only genuinely free-form text
// pays for a classification call. Scheduled runs never come through here,
// they enter via GenerateCategory with the category already decided.
func (e *Engine) route(ctx context.Context, text string) models.Intent {
	trimmed := strings.TrimSpace(text)
	if m := expandPattern.FindStringSubmatch(trimmed); m != nil {
		return models.Intent{Kind: models.IntentDetail, Cluster: strings.TrimSpace(m[1])}
	}

	lower := strings.ToLower(trimmed)
	for _, kw := range readKeywords {
		if lower == kw {
			return models.Intent{Kind: models.IntentRead}
		}
	}
	if rest, ok := strings.CutPrefix(lower, "subscribe"); ok {
		category := strings.ToUpper(strings.TrimSpace(rest))
		return models.Intent{Kind: models.IntentSubscribe, Category: category}
	}

	intent, err := e.Classifier.Classify(ctx, trimmed)
	if err != nil {
		e.logf("classify %q: %v", trimmed, err)
		return models.Intent{Kind: models.IntentError, Diagnostic: replyUnknownIntent}
	}
	return intent
}
