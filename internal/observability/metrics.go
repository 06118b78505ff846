// This file holds the Prometheus collectors shared across packages: cache
// effectiveness (labeled per cache) and feedback lifecycle counters. HTTP
// traffic collectors live with the middleware that drives them.
package observability

import "github.com/prometheus/client_golang/prometheus"

var (
	// CacheHits counts cache lookups served from memory, by cache name.
	CacheHits = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache lookups served from memory.",
	}, []string{"cache"})

	// CacheMisses counts cache lookups that fell through to the
	// authoritative computation, by cache name.
	CacheMisses = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache lookups that missed.",
	}, []string{"cache"})

	// FlaggedCreated counts flagged-question records created from dislike
	// reactions. Folded repeat dislikes do not count.
	FlaggedCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "flagged_questions_created_total",
		Help: "Total flagged questions created from dislike feedback.",
	})
)

func init() {
	prometheus.MustRegister(CacheHits, CacheMisses, FlaggedCreated)
}
