// Package index provides a concurrency-safe in-memory vector index with a
// file snapshot for durability. Documents are embedded once on insertion and
// searched by cosine similarity against the query embedding.
//
// Engineering notes, in the same spirit as the rest of the application's
// internal libraries:
//
//   - No logging in the library (callers decide how/what to log)
//   - Deterministic scoring and sorting (stable order for ties)
//   - Append-only document set: no update, no delete. Deletion of knowledge
//     is logical and lives in the relational layer.
//   - Add deduplicates by document ID, so a retried add-then-persist
//     sequence is a no-op rather than a duplicate.
//   - All mutations and the snapshot write happen under one mutex, so
//     concurrent writers cannot interleave a half-applied add with a persist.
//
// The linear scan is O(n) per query and deliberate: the corpus is
// low-thousands of documents. Growing past that calls for a real vector
// store, not for tuning this file.
package index

import (
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// Origin labels where a knowledge document came from.
type Origin string

// Document origins. Human-verified documents live in the verified index;
// AI-generated and CSV-imported ones in the general index.
const (
	OriginAIGenerated   Origin = "ai_generated"
	OriginHumanVerified Origin = "human_verified"
	OriginCSVImport     Origin = "csv_import"
)

// Document is an immutable knowledge entry: composed question+answer text,
// its embedding, and provenance metadata. The ID is generated by the caller
// before any store mutation (idempotent retry).
type Document struct {
	ID        string
	Content   string
	Origin    Origin
	CreatedAt time.Time
	Vector    []float32
}

// Result is a ranked document with its cosine similarity to the query.
type Result struct {
	Document Document
	Score    float64
}

// Embedder converts text into a dense vector. Implementations must be safe
// for concurrent use.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// ErrNoEmbedder is returned when an operation needs an embedding but the
// index was opened without an Embedder.
var ErrNoEmbedder = errors.New("index: no embedder configured")

// Index is a mutex-guarded vector index bound to a snapshot path.
type Index struct {
	mu   sync.RWMutex
	path string
	emb  Embedder
	docs []Document
	byID map[string]struct{}
}

// Open loads the snapshot at path if it exists and returns a ready index.
// A missing snapshot yields an empty index; a corrupt one is an error.
func Open(path string, emb Embedder) (*Index, error) {
	ix := &Index{
		path: path,
		emb:  emb,
		byID: make(map[string]struct{}),
	}

	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return ix, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var docs []Document
	if err := gob.NewDecoder(f).Decode(&docs); err != nil {
		return nil, fmt.Errorf("index: decode snapshot %s: %w", path, err)
	}
	ix.docs = docs
	for _, d := range docs {
		ix.byID[d.ID] = struct{}{}
	}
	return ix, nil
}

// Len reports the number of stored documents.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.docs)
}

// Add inserts doc, embedding its content first when no vector is attached.
// Adding an ID that already exists is a no-op, which makes the
// add-then-persist sequence safe to retry after a persistence failure.
func (ix *Index) Add(ctx context.Context, doc Document) error {
	if doc.ID == "" {
		return errors.New("index: document id is required")
	}

	// Fast path: already present.
	ix.mu.RLock()
	_, exists := ix.byID[doc.ID]
	ix.mu.RUnlock()
	if exists {
		return nil
	}

	if doc.Vector == nil {
		if ix.emb == nil {
			return ErrNoEmbedder
		}
		vec, err := ix.emb.Embed(ctx, doc.Content)
		if err != nil {
			return fmt.Errorf("index: embed document: %w", err)
		}
		doc.Vector = vec
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	if _, exists := ix.byID[doc.ID]; exists {
		return nil
	}
	ix.docs = append(ix.docs, doc)
	ix.byID[doc.ID] = struct{}{}
	return nil
}

// Persist writes the full document set to the snapshot path via a temp file
// and rename, so readers never observe a torn snapshot. The write runs under
// the index mutex; concurrent persists are serialized and each one captures
// a consistent state.
func (ix *Index) Persist() error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if dir := filepath.Dir(ix.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(ix.path), ".index-*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := gob.NewEncoder(tmp).Encode(ix.docs); err != nil {
		tmp.Close()
		return fmt.Errorf("index: encode snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), ix.path)
}

// Search embeds query and returns up to k documents ranked by cosine
// similarity, descending. Ties break on shorter content, then ID, keeping
// result order stable across runs.
func (ix *Index) Search(ctx context.Context, query string, k int) ([]Result, error) {
	if k <= 0 {
		k = 2
	}
	if ix.emb == nil {
		return nil, ErrNoEmbedder
	}
	qv, err := ix.emb.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("index: embed query: %w", err)
	}
	return ix.SearchVector(qv, k), nil
}

// SearchVector ranks documents against a pre-computed query vector.
func (ix *Index) SearchVector(qv []float32, k int) []Result {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if len(ix.docs) == 0 || len(qv) == 0 {
		return nil
	}

	buf := make([]Result, 0, len(ix.docs))
	for _, d := range ix.docs {
		score := Cosine(qv, d.Vector)
		if math.IsNaN(score) {
			continue
		}
		buf = append(buf, Result{Document: d, Score: score})
	}
	sort.SliceStable(buf, func(a, b int) bool {
		if buf[a].Score != buf[b].Score {
			return buf[a].Score > buf[b].Score
		}
		if la, lb := len(buf[a].Document.Content), len(buf[b].Document.Content); la != lb {
			return la < lb
		}
		return buf[a].Document.ID < buf[b].Document.ID
	})

	if k > len(buf) {
		k = len(buf)
	}
	out := make([]Result, k)
	copy(out, buf[:k])
	return out
}

// Cosine computes cosine similarity (q·s)/(‖q‖‖s‖). Mismatched or zero-norm
// vectors score NaN so callers can filter them out.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return math.NaN()
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return math.NaN()
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
