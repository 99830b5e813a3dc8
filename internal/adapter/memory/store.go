// Package memory provides a brute-force in-memory Index used for development
// and tests. Production deployments run the Weaviate adapter; this store keeps
// the same contract (tenant filter, batch atomicity, ascending distance) with
// no external dependencies.
package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/google/uuid"

	"finqa/backend/internal/index"
)

type entry struct {
	chunk index.Chunk
}

type Store struct {
	mu       sync.RWMutex
	embedder index.Embedder
	entries  []entry
}

func NewStore(embedder index.Embedder) *Store {
	return &Store{embedder: embedder}
}

func (s *Store) Insert(ctx context.Context, drafts []index.Draft, userID string) ([]string, error) {
	// Embed everything before touching state so a gateway failure leaves the
	// index untouched.
	vectors := make([][]float32, len(drafts))
	for i, d := range drafts {
		vec, err := s.embedder.Embed(ctx, d.Content)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", index.ErrEmbeddingFailed, err)
		}
		vectors[i] = vec
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, len(drafts))
	for i, d := range drafts {
		meta := d.Metadata
		meta.UserID = userID
		meta.Status = index.StatusProcessed

		id := uuid.New().String()
		ids[i] = id
		s.entries = append(s.entries, entry{chunk: index.Chunk{
			ID:       id,
			Content:  d.Content,
			Vector:   vectors[i],
			Metadata: meta,
		}})
	}
	return ids, nil
}

func (s *Store) Search(ctx context.Context, query, userID string, k int) ([]index.RetrievalResult, error) {
	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", index.ErrEmbeddingFailed, err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []index.RetrievalResult
	for _, e := range s.entries {
		if e.chunk.Metadata.UserID != userID {
			continue
		}
		results = append(results, index.RetrievalResult{
			Chunk: e.chunk,
			Score: cosineDistance(vec, e.chunk.Vector),
		})
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Score < results[j].Score })
	if k > 0 && len(results) > k {
		results = results[:k]
	}
	return results, nil
}

func (s *Store) Delete(ctx context.Context, sel index.Selector) error {
	if sel.Empty() {
		return index.ErrInvalidDeletionRequest
	}

	ids := make(map[string]bool, len(sel.ChunkIDs))
	for _, id := range sel.ChunkIDs {
		ids[id] = true
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.entries[:0]
	for _, e := range s.entries {
		if sel.UserID != "" && e.chunk.Metadata.UserID == sel.UserID {
			continue
		}
		if len(ids) > 0 && ids[e.chunk.ID] {
			continue
		}
		kept = append(kept, e)
	}
	s.entries = kept
	return nil
}

func (s *Store) Count(ctx context.Context, userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, e := range s.entries {
		if e.chunk.Metadata.UserID == userID {
			n++
		}
	}
	return n, nil
}

// cosineDistance is 1 - cosine similarity: 0 for identical directions,
// growing as vectors diverge, matching the ascending-score contract.
func cosineDistance(a, b []float32) float32 {
	var dot, na, nb float64
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return float32(1 - dot/(math.Sqrt(na)*math.Sqrt(nb)))
}
