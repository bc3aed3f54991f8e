package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	webhookEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "briefbot_webhook_events_total",
		Help: "Webhook deliveries accepted, by event type.",
	}, []string{"type"})

	dedupSuppressed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "briefbot_dedup_suppressed_total",
		Help: "Duplicate deliveries suppressed before processing.",
	}, []string{"kind"})

	generations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "briefbot_generations_total",
		Help: "Scheduled briefing generation runs, by category and outcome.",
	}, []string{"category", "outcome"})

	pushes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "briefbot_pushes_total",
		Help: "Briefing push deliveries to subscribers, by outcome.",
	}, []string{"outcome"})

	archives = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "briefbot_archive_runs_total",
		Help: "Wiki archive append attempts, by outcome.",
	}, []string{"outcome"})
)
