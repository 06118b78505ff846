// Package services – SimilarityMatcher
//
// This file implements the semantic dedup of flagged content: before a
// question is answered, it is compared against the embeddings of every
// pending flagged question. A close match means the question resembles
// content a human has disliked and not yet corrected, so answering it again
// would repeat the bad answer.
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"gorm.io/gorm"

	"github.com/answerbase/go-knowledge-bot/internal/domain"
	"github.com/answerbase/go-knowledge-bot/internal/index"
	"github.com/answerbase/go-knowledge-bot/internal/repo"
)

// FlaggedReader is the read-side repository contract the matcher needs.
type FlaggedReader interface {
	// ListEmbedded returns all pending flagged questions carrying an
	// embedding.
	ListEmbedded(ctx context.Context, db *gorm.DB) ([]domain.FlaggedQuestion, error)
}

type gormFlaggedReader struct{}

func (gormFlaggedReader) ListEmbedded(ctx context.Context, db *gorm.DB) ([]domain.FlaggedQuestion, error) {
	return repo.ListEmbedded(ctx, db)
}

// Match is a flagged question paired with its similarity to the query.
type Match struct {
	Question domain.FlaggedQuestion
	Score    float64
}

// SimilarityMatcher scans stored flagged-question embeddings for semantic
// neighbors of a query. The scan is O(n) over pending flagged records, which
// is fine at low-thousands scale; past that the embeddings belong in a real
// vector index.
type SimilarityMatcher struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Repo is the flagged-question reader used by this matcher.
	Repo FlaggedReader
	// Embedder converts the query text into a vector.
	Embedder index.Embedder

	// Threshold is the minimum cosine similarity for a match.
	Threshold float64
	// Limit caps the number of returned matches.
	Limit int
}

// NewSimilarityMatcher constructs a matcher with the default 0.8 threshold
// and 5-result cap.
func NewSimilarityMatcher(db *gorm.DB, emb index.Embedder) *SimilarityMatcher {
	return &SimilarityMatcher{
		DB:        db,
		Repo:      gormFlaggedReader{},
		Embedder:  emb,
		Threshold: 0.8,
		Limit:     5,
	}
}

// FindSimilar returns flagged questions whose embedding scores at least
// Threshold against text, sorted by score descending and capped at Limit.
// Records with a malformed or absent embedding are skipped, never fatal.
func (m *SimilarityMatcher) FindSimilar(ctx context.Context, text string) ([]Match, error) {
	qv, err := m.Embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: embed query: %v", ErrRetrieval, err)
	}

	flagged, err := m.Repo.ListEmbedded(ctx, m.DB)
	if err != nil {
		return nil, fmt.Errorf("%w: list flagged: %v", ErrRetrieval, err)
	}

	out := make([]Match, 0, len(flagged))
	for _, q := range flagged {
		vec, ok := decodeEmbedding(q.Embedding)
		if !ok {
			continue
		}
		score := index.Cosine(qv, vec)
		if math.IsNaN(score) || score < m.Threshold {
			continue
		}
		out = append(out, Match{Question: q, Score: score})
	}

	sort.SliceStable(out, func(a, b int) bool {
		if out[a].Score != out[b].Score {
			return out[a].Score > out[b].Score
		}
		return out[a].Question.ID < out[b].Question.ID
	})
	if m.Limit > 0 && len(out) > m.Limit {
		out = out[:m.Limit]
	}
	return out, nil
}

// decodeEmbedding parses the JSON vector column. A nil or malformed value
// reports ok=false.
func decodeEmbedding(s *string) ([]float32, bool) {
	if s == nil || *s == "" {
		return nil, false
	}
	var vec []float32
	if err := json.Unmarshal([]byte(*s), &vec); err != nil || len(vec) == 0 {
		return nil, false
	}
	return vec, true
}

// EncodeEmbedding serializes a vector for the embedding column. Used by the
// feedback service when flagging a question.
func EncodeEmbedding(vec []float32) (*string, error) {
	if len(vec) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(vec)
	if err != nil {
		return nil, err
	}
	s := string(b)
	return &s, nil
}
