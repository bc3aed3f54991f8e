package newsapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/mohammad-safakhou/briefbot/config"
	"github.com/mohammad-safakhou/briefbot/models"
)

// Client calls the external news search API. The API returns titles and
// summaries only (includeContent=false); nothing downstream fetches pages.
type Client struct {
	endpoint   string
	loc        *time.Location
	httpClient *http.Client
}

// NewClient builds a search client from config. The location fixes the
// calendar dates of the search window; every day computation in the system
// uses the same configured zone.
func NewClient(cfg config.NewsAPIConfig, loc *time.Location) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Client{
		endpoint:   cfg.Endpoint,
		loc:        loc,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type searchRequest struct {
	Keyword        string `json:"keyword"`
	Category       string `json:"category"`
	StartDate      string `json:"startDate"`
	EndDate        string `json:"endDate"`
	SortOrder      string `json:"sortOrder"`
	IncludeContent bool   `json:"includeContent"`
}

type searchResponse struct {
	Data []struct {
		Title       string `json:"title"`
		Summary     string `json:"summary"`
		URL         string `json:"url"`
		Source      string `json:"source"`
		PublishedAt string `json:"publishedAt"`
	} `json:"data"`
}

// Search fetches articles for a category over the trailing window, newest
// first. A non-2xx status is an error; it never returns a partial result.
func (c *Client) Search(ctx context.Context, category string, window time.Duration) ([]models.Article, error) {
	end := time.Now().In(c.loc)
	start := end.Add(-window)

	payload := searchRequest{
		Keyword:        category,
		Category:       category,
		StartDate:      start.Format("2006-01-02"),
		EndDate:        end.Format("2006-01-02"),
		SortOrder:      "latest",
		IncludeContent: false,
	}
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal search request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch news: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("newsapi error: %s", resp.Status)
	}

	var result searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	articles := make([]models.Article, 0, len(result.Data))
	for _, d := range result.Data {
		a := models.Article{
			Title:   d.Title,
			Summary: d.Summary,
			URL:     d.URL,
			Source:  d.Source,
		}
		if t, err := time.Parse(time.RFC3339, d.PublishedAt); err == nil {
			a.PublishedAt = t
		}
		articles = append(articles, a)
	}
	return articles, nil
}
