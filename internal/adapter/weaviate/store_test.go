package weaviate_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	wv "github.com/weaviate/weaviate-go-client/v5/weaviate"

	adapter "finqa/backend/internal/adapter/weaviate"
	"finqa/backend/internal/index"
)

type stubEmbedder struct {
	vector []float32
	err    error
}

func (s *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.vector, nil
}

func mockWeaviate(t *testing.T, handler http.HandlerFunc) (*wv.Client, *httptest.Server) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/meta" {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"version": "1.25.0"}`))
			return
		}
		handler(w, r)
	}))
	cfg := wv.Config{Host: ts.Listener.Addr().String(), Scheme: "http"}
	client, err := wv.NewClient(cfg)
	require.NoError(t, err)
	return client, ts
}

func testDraft(content string) index.Draft {
	return index.Draft{
		Content: content,
		Metadata: index.Metadata{
			UserID:     "u1",
			Filename:   "q3.pdf",
			Page:       2,
			UploadDate: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
			Status:     index.StatusProcessing,
		},
	}
}

func TestStore_Insert(t *testing.T) {
	var created []map[string]interface{}
	client, ts := mockWeaviate(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/objects", r.URL.Path)
		assert.Equal(t, "POST", r.Method)

		var body map[string]interface{}
		json.NewDecoder(r.Body).Decode(&body)
		created = append(created, body)

		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]interface{}{"id": body["id"]})
	})
	defer ts.Close()

	store := adapter.NewStore(client, &stubEmbedder{vector: []float32{0.1, 0.2}})
	ids, err := store.Insert(context.Background(), []index.Draft{testDraft("alpha"), testDraft("beta")}, "u1")
	require.NoError(t, err)
	require.Len(t, ids, 2)
	require.Len(t, created, 2)

	props := created[0]["properties"].(map[string]interface{})
	assert.Equal(t, "alpha", props["content"])
	assert.Equal(t, "u1", props["userId"])
	assert.Equal(t, "q3.pdf", props["filename"])
	assert.Equal(t, index.StatusProcessed, props["status"])
	assert.Equal(t, "2024-03-01T10:00:00Z", props["uploadDate"])
	assert.NotEmpty(t, created[0]["vector"])
	assert.Equal(t, ids[0], created[0]["id"])
}

func TestStore_InsertEmbeddingFailureWritesNothing(t *testing.T) {
	requests := 0
	client, ts := mockWeaviate(t, func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.WriteHeader(http.StatusOK)
	})
	defer ts.Close()

	store := adapter.NewStore(client, &stubEmbedder{err: errors.New("quota exceeded")})
	_, err := store.Insert(context.Background(), []index.Draft{testDraft("alpha")}, "u1")
	assert.ErrorIs(t, err, index.ErrEmbeddingFailed)
	assert.Zero(t, requests, "no objects may be written when embedding fails")
}

func TestStore_InsertRollsBackOnStorageFailure(t *testing.T) {
	var deletes int
	creates := 0
	client, ts := mockWeaviate(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/v1/objects" && r.Method == "POST":
			creates++
			if creates == 2 {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]interface{}{})
		case r.URL.Path == "/v1/batch/objects" && r.Method == "DELETE":
			deletes++
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]interface{}{})
		}
	})
	defer ts.Close()

	store := adapter.NewStore(client, &stubEmbedder{vector: []float32{0.5}})
	_, err := store.Insert(context.Background(), []index.Draft{testDraft("alpha"), testDraft("beta")}, "u1")
	require.Error(t, err)
	assert.Equal(t, 1, deletes, "partial batch must be rolled back")
}

func TestStore_Search(t *testing.T) {
	client, ts := mockWeaviate(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/graphql", r.URL.Path)
		w.WriteHeader(http.StatusOK)
		resp := map[string]interface{}{
			"data": map[string]interface{}{
				"Get": map[string]interface{}{
					index.ClassName: []interface{}{
						map[string]interface{}{
							"content":    "Revenue grew 12% in Q3.",
							"userId":     "u1",
							"filename":   "q3.pdf",
							"page":       2.0,
							"uploadDate": "2024-03-01T10:00:00Z",
							"status":     "processed",
							"_additional": map[string]interface{}{
								"id":       "11111111-1111-1111-1111-111111111111",
								"distance": 0.12,
							},
						},
					},
				},
			},
		}
		json.NewEncoder(w).Encode(resp)
	})
	defer ts.Close()

	store := adapter.NewStore(client, &stubEmbedder{vector: []float32{0.1}})
	results, err := store.Search(context.Background(), "revenue growth?", "u1", 3)
	require.NoError(t, err)
	require.Len(t, results, 1)

	got := results[0]
	assert.Equal(t, "Revenue grew 12% in Q3.", got.Chunk.Content)
	assert.Equal(t, "11111111-1111-1111-1111-111111111111", got.Chunk.ID)
	assert.Equal(t, "u1", got.Chunk.Metadata.UserID)
	assert.Equal(t, 2, got.Chunk.Metadata.Page)
	assert.InDelta(t, 0.12, float64(got.Score), 1e-6)
}

func TestStore_SearchDetectsTenantLeak(t *testing.T) {
	client, ts := mockWeaviate(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		resp := map[string]interface{}{
			"data": map[string]interface{}{
				"Get": map[string]interface{}{
					index.ClassName: []interface{}{
						map[string]interface{}{"content": "secret", "userId": "u2"},
					},
				},
			},
		}
		json.NewEncoder(w).Encode(resp)
	})
	defer ts.Close()

	store := adapter.NewStore(client, &stubEmbedder{vector: []float32{0.1}})
	_, err := store.Search(context.Background(), "q", "u1", 3)
	assert.ErrorIs(t, err, index.ErrTenantIsolation)
}

func TestStore_SearchEmpty(t *testing.T) {
	client, ts := mockWeaviate(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]interface{}{
				"Get": map[string]interface{}{index.ClassName: []interface{}{}},
			},
		})
	})
	defer ts.Close()

	store := adapter.NewStore(client, &stubEmbedder{vector: []float32{0.1}})
	results, err := store.Search(context.Background(), "q", "u-nobody", 3)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestStore_Delete(t *testing.T) {
	client, ts := mockWeaviate(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/batch/objects", r.URL.Path)
		assert.Equal(t, "DELETE", r.Method)
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]interface{}{})
	})
	defer ts.Close()

	store := adapter.NewStore(client, &stubEmbedder{})
	err := store.Delete(context.Background(), index.Selector{ChunkIDs: []string{"id-1", "id-2"}})
	assert.NoError(t, err)

	err = store.Delete(context.Background(), index.Selector{UserID: "u1"})
	assert.NoError(t, err)
}

func TestStore_DeleteWithoutCriterion(t *testing.T) {
	client, ts := mockWeaviate(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	})
	defer ts.Close()

	store := adapter.NewStore(client, &stubEmbedder{})
	err := store.Delete(context.Background(), index.Selector{})
	assert.ErrorIs(t, err, index.ErrInvalidDeletionRequest)
}

func TestStore_Count(t *testing.T) {
	client, ts := mockWeaviate(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/graphql", r.URL.Path)
		w.WriteHeader(http.StatusOK)
		resp := map[string]interface{}{
			"data": map[string]interface{}{
				"Aggregate": map[string]interface{}{
					index.ClassName: []interface{}{
						map[string]interface{}{
							"meta": map[string]interface{}{"count": 7.0},
						},
					},
				},
			},
		}
		json.NewEncoder(w).Encode(resp)
	})
	defer ts.Close()

	store := adapter.NewStore(client, &stubEmbedder{})
	count, err := store.Count(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 7, count)
}
