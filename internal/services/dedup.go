// Package services – DedupGuard
//
// Slack retries event deliveries that are not acknowledged within a few
// seconds, so the same client_msg_id can arrive more than once. The guard
// ensures at most one delivery per message id is processed within the TTL
// window.
package services

import (
	"time"

	"github.com/answerbase/go-knowledge-bot/internal/cache"
)

// DedupGuard is an atomic test-and-set over inbound message identifiers.
type DedupGuard struct {
	seen *cache.TTL[struct{}]
}

// NewDedupGuard constructs a guard whose entries expire after ttl and which
// holds at most capacity ids (oldest evicted first).
func NewDedupGuard(capacity int, ttl time.Duration) *DedupGuard {
	return &DedupGuard{seen: cache.NewTTL[struct{}](capacity, ttl)}
}

// MarkSeen records id and reports whether this caller is the first to do so
// within the TTL window. The check and the insert are a single atomic
// operation: exactly one of any number of concurrent callers for the same id
// observes true.
func (g *DedupGuard) MarkSeen(id string) bool {
	if id == "" {
		// No stable identifier means we cannot dedup; let it through.
		return true
	}
	_, loaded := g.seen.GetOrSet(id, struct{}{})
	return !loaded
}

// Len reports the number of tracked ids (for metrics and tests).
func (g *DedupGuard) Len() int {
	return g.seen.Len()
}
