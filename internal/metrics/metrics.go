// Package metrics exposes pipeline counters for the /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ItemsProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storybot_items_processed_total",
		Help: "Queue items picked up by the pipeline.",
	})

	ItemsPublished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storybot_items_published_total",
		Help: "Stories published successfully.",
	})

	ItemsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storybot_items_failed_total",
		Help: "Queue items that ended in the failed state.",
	})

	EnhancementFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storybot_enhancement_failures_total",
		Help: "Enhancement calls that failed and fell back to the source image.",
	})

	CallbacksHandled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storybot_callbacks_handled_total",
		Help: "Approval callbacks handled, by action.",
	}, []string{"action"})

	TimeoutsReaped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storybot_timeouts_reaped_total",
		Help: "Approval requests force-resolved by the timeout reaper.",
	})
)
