package graph

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "briefbot_cache_hits_total",
		Help: "Daily cache hits during fetch-or-reuse, by category.",
	}, []string{"category"})

	fetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "briefbot_news_fetches_total",
		Help: "Article fetches from the news API, by category and outcome.",
	}, []string{"category", "outcome"})

	syntheses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "briefbot_syntheses_total",
		Help: "Briefing synthesis calls, by category and outcome.",
	}, []string{"category", "outcome"})
)
