// Package metrics exposes pipeline counters for the /metrics endpoint.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ItemsDrafted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "newsmint_items_drafted_total",
		Help: "Source items that produced a draft.",
	})

	ItemsSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "newsmint_items_skipped_total",
		Help: "Source items skipped as duplicate topics.",
	})

	ItemsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "newsmint_items_failed_total",
		Help: "Source items that failed a pipeline stage.",
	})

	RewriteAttempts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "newsmint_rewrite_attempts_total",
		Help: "Generator attempts spent across all rewrites.",
	})

	imagePicks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "newsmint_image_picks_total",
		Help: "Hero image selections by tier.",
	}, []string{"tier"})
)

// RecordImagePick counts one image selection at the given tier.
func RecordImagePick(tier int) {
	imagePicks.WithLabelValues(strconv.Itoa(tier)).Inc()
}
