// Package weaviate implements the chunk index on a Weaviate instance.
// Tenant scoping is enforced with a where-filter on every read and delete, so
// a shared cluster can never leak chunks across users.
package weaviate

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"

	"finqa/backend/internal/index"
)

type Store struct {
	client   *weaviate.Client
	embedder index.Embedder
}

func NewStore(client *weaviate.Client, embedder index.Embedder) *Store {
	return &Store{client: client, embedder: embedder}
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	return index.EnsureSchema(ctx, index.NewWeaviateClientAdapter(s.client))
}

// Insert embeds and stores a batch of drafts. The batch is all-or-nothing:
// an embedding failure aborts before anything is written, and a storage
// failure mid-batch rolls back the objects already created.
func (s *Store) Insert(ctx context.Context, drafts []index.Draft, userID string) ([]string, error) {
	vectors := make([][]float32, len(drafts))
	for i, d := range drafts {
		vec, err := s.embedder.Embed(ctx, d.Content)
		if err != nil {
			return nil, fmt.Errorf("%w: chunk %d: %v", index.ErrEmbeddingFailed, i, err)
		}
		vectors[i] = vec
	}

	ids := make([]string, 0, len(drafts))
	for i, d := range drafts {
		id := uuid.New().String()
		_, err := s.client.Data().Creator().
			WithClassName(index.ClassName).
			WithID(id).
			WithProperties(map[string]interface{}{
				"content":    d.Content,
				"userId":     userID,
				"filename":   d.Metadata.Filename,
				"page":       d.Metadata.Page,
				"uploadDate": d.Metadata.UploadDate.Format(time.RFC3339),
				"status":     index.StatusProcessed,
			}).
			WithVector(vectors[i]).
			Do(ctx)
		if err != nil {
			s.rollback(ctx, ids)
			return nil, fmt.Errorf("storing chunk %d: %w", i, err)
		}
		ids = append(ids, id)
	}

	return ids, nil
}

func (s *Store) rollback(ctx context.Context, ids []string) {
	if len(ids) == 0 {
		return
	}
	if err := s.Delete(ctx, index.Selector{ChunkIDs: ids}); err != nil {
		slog.ErrorContext(ctx, "rollback of partial batch failed", "error", err, "chunks", len(ids))
	}
}

func (s *Store) Search(ctx context.Context, query, userID string, k int) ([]index.RetrievalResult, error) {
	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", index.ErrEmbeddingFailed, err)
	}

	nearVector := s.client.GraphQL().NearVectorArgBuilder().WithVector(vector)

	where := filters.Where().
		WithPath([]string{"userId"}).
		WithOperator(filters.Equal).
		WithValueString(userID)

	fields := []graphql.Field{
		{Name: "content"},
		{Name: "userId"},
		{Name: "filename"},
		{Name: "page"},
		{Name: "uploadDate"},
		{Name: "status"},
		{Name: "_additional", Fields: []graphql.Field{{Name: "id"}, {Name: "distance"}}},
	}

	res, err := s.client.GraphQL().Get().
		WithClassName(index.ClassName).
		WithNearVector(nearVector).
		WithWhere(where).
		WithLimit(k).
		WithFields(fields...).
		Do(ctx)
	if err != nil {
		return nil, err
	}
	if len(res.Errors) > 0 {
		return nil, fmt.Errorf("graphql error: %v", res.Errors)
	}

	var results []index.RetrievalResult
	data, ok := res.Data["Get"].(map[string]interface{})
	if !ok {
		return results, nil
	}
	rawChunks, ok := data[index.ClassName].([]interface{})
	if !ok {
		return results, nil
	}

	for _, c := range rawChunks {
		props, ok := c.(map[string]interface{})
		if !ok {
			continue
		}

		chunk := index.Chunk{}
		if content, ok := props["content"].(string); ok {
			chunk.Content = content
		}
		if owner, ok := props["userId"].(string); ok {
			chunk.Metadata.UserID = owner
		}
		if filename, ok := props["filename"].(string); ok {
			chunk.Metadata.Filename = filename
		}
		if page, ok := props["page"].(float64); ok {
			chunk.Metadata.Page = int(page)
		}
		if raw, ok := props["uploadDate"].(string); ok {
			if ts, err := time.Parse(time.RFC3339, raw); err == nil {
				chunk.Metadata.UploadDate = ts
			}
		}
		if status, ok := props["status"].(string); ok {
			chunk.Metadata.Status = status
		}

		var score float32
		if additional, ok := props["_additional"].(map[string]interface{}); ok {
			if id, ok := additional["id"].(string); ok {
				chunk.ID = id
			}
			if distance, ok := additional["distance"].(float64); ok {
				score = float32(distance)
			}
		}

		// The where-filter makes this unreachable; a mismatch means the
		// store itself is broken.
		if chunk.Metadata.UserID != userID {
			return nil, fmt.Errorf("%w: chunk %s owned by %q returned for %q",
				index.ErrTenantIsolation, chunk.ID, chunk.Metadata.UserID, userID)
		}

		results = append(results, index.RetrievalResult{Chunk: chunk, Score: score})
	}

	return results, nil
}

// Delete removes chunks by id list or by owner. Weaviate batch deletes are
// idempotent: absent ids simply match nothing.
func (s *Store) Delete(ctx context.Context, sel index.Selector) error {
	if sel.Empty() {
		return index.ErrInvalidDeletionRequest
	}

	var where *filters.WhereBuilder
	if len(sel.ChunkIDs) > 0 {
		where = filters.Where().
			WithPath([]string{"id"}).
			WithOperator(filters.ContainsAny).
			WithValueText(sel.ChunkIDs...)
	} else {
		where = filters.Where().
			WithPath([]string{"userId"}).
			WithOperator(filters.Equal).
			WithValueString(sel.UserID)
	}

	_, err := s.client.Batch().ObjectsBatchDeleter().
		WithClassName(index.ClassName).
		WithOutput("minimal").
		WithWhere(where).
		Do(ctx)
	return err
}

func (s *Store) Count(ctx context.Context, userID string) (int, error) {
	where := filters.Where().
		WithPath([]string{"userId"}).
		WithOperator(filters.Equal).
		WithValueString(userID)

	res, err := s.client.GraphQL().Aggregate().
		WithClassName(index.ClassName).
		WithWhere(where).
		WithFields(graphql.Field{Name: "meta", Fields: []graphql.Field{{Name: "count"}}}).
		Do(ctx)
	if err != nil {
		return 0, err
	}
	if len(res.Errors) > 0 {
		return 0, fmt.Errorf("graphql error: %v", res.Errors)
	}

	data, ok := res.Data["Aggregate"].(map[string]interface{})
	if !ok {
		return 0, nil
	}
	groups, ok := data[index.ClassName].([]interface{})
	if !ok || len(groups) == 0 {
		return 0, nil
	}
	group, ok := groups[0].(map[string]interface{})
	if !ok {
		return 0, nil
	}
	meta, ok := group["meta"].(map[string]interface{})
	if !ok {
		return 0, nil
	}
	count, _ := meta["count"].(float64)
	return int(count), nil
}
