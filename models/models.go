package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNoSubscription is returned when a read is requested by a user with no
// stored subscriptions and no category pinned on the session.
var ErrNoSubscription = errors.New("no subscription")

// ErrClusterNotFound is returned when a detail lookup cannot locate the
// requested cluster in either session state or the daily cache.
var ErrClusterNotFound = errors.New("cluster not found")

// Article is a raw item returned by the external news search API.
type Article struct {
	Title       string    `json:"title"`
	Summary     string    `json:"summary"`
	URL         string    `json:"url"`
	Source      string    `json:"source,omitempty"`
	PublishedAt time.Time `json:"published_at,omitempty"`
}

// Headline is one entry of the fixed-size top-headline set.
type Headline struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// ClusterItem is a single summarized article inside a topic cluster.
type ClusterItem struct {
	Summary string `json:"summary"`
	URL     string `json:"url"`
}

// Cluster is a named sub-topic bucket. Names are drawn from the fixed
// per-category taxonomy, so a cluster may legitimately carry zero items.
type Cluster struct {
	Name  string        `json:"name"`
	Items []ClusterItem `json:"items"`
}

// Briefing is the structured result of one synthesis run for one category
// on one day: headlines plus the category's full cluster taxonomy.
type Briefing struct {
	Category    string     `json:"category"`
	Summary     string     `json:"summary"`
	Headlines   []Headline `json:"headlines"`
	Clusters    []Cluster  `json:"clusters"`
	GeneratedAt time.Time  `json:"generated_at"`
}

// FindCluster returns the cluster with exactly the given name. Matching is
// exact, never substring or fuzzy, so lookups cannot bleed across clusters.
func (b *Briefing) FindCluster(name string) (Cluster, bool) {
	for _, c := range b.Clusters {
		if c.Name == name {
			return c, true
		}
	}
	return Cluster{}, false
}

// Validate checks that a briefing conforms to the taxonomy contract for its
// category: every cluster name must belong to the taxonomy and every
// taxonomy name must be present.
func (b *Briefing) Validate() error {
	if b.Category == "" {
		return fmt.Errorf("briefing has no category")
	}
	want := Taxonomy(b.Category)
	seen := make(map[string]bool, len(b.Clusters))
	for _, c := range b.Clusters {
		seen[c.Name] = true
	}
	for _, name := range want {
		if !seen[name] {
			return fmt.Errorf("briefing for %s missing cluster %q", b.Category, name)
		}
	}
	if len(b.Clusters) != len(want) {
		return fmt.Errorf("briefing for %s has %d clusters, taxonomy defines %d", b.Category, len(b.Clusters), len(want))
	}
	return nil
}

// ParseBriefing decodes a stored structured payload and validates it.
func ParseBriefing(raw []byte) (*Briefing, error) {
	var b Briefing
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil, fmt.Errorf("decode briefing: %w", err)
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return &b, nil
}

// IntentKind discriminates the intent union.
type IntentKind string

const (
	IntentSubscribe IntentKind = "subscribe"
	IntentRead      IntentKind = "read"
	IntentDetail    IntentKind = "detail"
	IntentChat      IntentKind = "chat"
	IntentError     IntentKind = "error"
)

// Intent is the classified outcome of one inbound message. Exactly one arm
// is meaningful per kind: Category for subscribe, Cluster (+Category) for
// detail, Diagnostic for error.
type Intent struct {
	Kind       IntentKind `json:"kind"`
	Category   string     `json:"category,omitempty"`
	Cluster    string     `json:"cluster,omitempty"`
	Diagnostic string     `json:"diagnostic,omitempty"`
}

// Subscription is one (user, category) pair.
type Subscription struct {
	UserID    string    `json:"user_id"`
	Category  string    `json:"category"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CacheEntry is one daily cache row: at most one per (category, date).
type CacheEntry struct {
	Category    string
	Date        string // calendar day in the configured time zone, YYYY-MM-DD
	RawPayload  []byte // raw article payload, may be empty after synthesis
	Structured  []byte // JSON-encoded Briefing
	GeneratedAt time.Time
}

// taxonomies maps a category to its fixed cluster list. The list is part of
// the product contract: detail buttons rendered yesterday must still resolve
// against a briefing generated today.
var taxonomies = map[string][]string{
	"AI":    {"Product", "Model", "Compute & Infra", "Funding & Policy"},
	"GAMES": {"Releases", "Studios & Business", "Esports", "Platform & Tech"},
	"MUSIC": {"Releases", "Artists", "Industry", "Live & Touring"},
}

// defaultTaxonomy serves categories without an authored cluster list, so a
// newly configured category never produces an unclusterable briefing.
var defaultTaxonomy = []string{"Top Stories", "Business", "Technology", "Culture"}

// Taxonomy returns the fixed cluster names for a category. The returned
// slice is a copy; callers may reorder it freely.
func Taxonomy(category string) []string {
	names, ok := taxonomies[strings.ToUpper(strings.TrimSpace(category))]
	if !ok {
		names = defaultTaxonomy
	}
	out := make([]string, len(names))
	copy(out, names)
	return out
}

// KnownCategory reports whether a category has an authored taxonomy.
func KnownCategory(category string) bool {
	_, ok := taxonomies[strings.ToUpper(strings.TrimSpace(category))]
	return ok
}

// DayKey formats t as the calendar-day cache key in the given location.
func DayKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("2006-01-02")
}
