// Package metrics defines the Prometheus collectors of the service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "vitalplan"

//nolint:gochecknoglobals // collectors are registered once with the default registry.
var (
	suggestionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "suggestion",
		Name:      "generated_total",
		Help:      "Workout suggestions returned, labeled by the validation status of the tier that produced them.",
	}, []string{"status"})

	tierFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "suggestion",
		Name:      "tier_failures_total",
		Help:      "Suggestion tiers that failed or were skipped, labeled by tier.",
	}, []string{"tier"})

	cacheLookupsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "suggestion",
		Name:      "cache_lookups_total",
		Help:      "Suggestion cache lookups, labeled by result (hit, miss, stale, error).",
	}, []string{"result"})

	goalWritesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "plan",
		Name:      "goal_writes_total",
		Help:      "Target writes performed by plan generation, labeled by target and outcome.",
	}, []string{"target", "outcome"})

	planSwitchesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "plan",
		Name:      "switches_total",
		Help:      "Completed health goal switches.",
	})
)

func init() {
	prometheus.MustRegister(suggestionsTotal, tierFailuresTotal, cacheLookupsTotal, goalWritesTotal, planSwitchesTotal)
}

// RecordSuggestion counts a suggestion returned with status.
func RecordSuggestion(status string) {
	suggestionsTotal.WithLabelValues(status).Inc()
}

// RecordTierFailure counts a failed or skipped suggestion tier.
func RecordTierFailure(tier string) {
	tierFailuresTotal.WithLabelValues(tier).Inc()
}

// RecordCacheLookup counts a cache lookup by result.
func RecordCacheLookup(result string) {
	cacheLookupsTotal.WithLabelValues(result).Inc()
}

// RecordGoalWrite counts a plan target write.
func RecordGoalWrite(target string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	goalWritesTotal.WithLabelValues(target, outcome).Inc()
}

// RecordPlanSwitch counts a completed goal switch.
func RecordPlanSwitch() {
	planSwitchesTotal.Inc()
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
