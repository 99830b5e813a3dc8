package index

import (
	"context"
	"time"
)

// Chunk statuses as persisted in the vector store.
const (
	StatusProcessing = "processing"
	StatusProcessed  = "processed"
)

// Metadata is the fixed provenance record carried by every chunk. Typed fields
// instead of a free-form map so a missing key is a compile error, not a silent
// read failure.
type Metadata struct {
	UserID     string    `json:"user_id"`
	Filename   string    `json:"filename"`
	Page       int       `json:"page"`
	UploadDate time.Time `json:"upload_date"`
	Status     string    `json:"status"`
}

// Draft is a chunk produced by the splitter: content plus inherited page
// metadata, no id or vector yet. Ids and vectors are assigned at insert time.
type Draft struct {
	Content  string
	Metadata Metadata
}

// Chunk is the atomic unit of indexing and retrieval.
type Chunk struct {
	ID       string    `json:"id"`
	Content  string    `json:"content"`
	Vector   []float32 `json:"-"`
	Metadata Metadata  `json:"metadata"`
}

// RetrievalResult pairs a chunk with its distance to the query.
// Score is a distance: ascending order, lower = more similar. This convention
// holds across every Index implementation.
type RetrievalResult struct {
	Chunk Chunk   `json:"chunk"`
	Score float32 `json:"score"`
}

// Selector identifies chunks for deletion. Exactly one criterion must be set;
// an empty selector is rejected with ErrInvalidDeletionRequest.
type Selector struct {
	ChunkIDs []string
	UserID   string
}

func (s Selector) Empty() bool {
	return len(s.ChunkIDs) == 0 && s.UserID == ""
}

// Embedder is the embedding gateway consumed by index implementations.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Index stores embedded chunks and answers user-scoped nearest-neighbor
// queries. The user filter is a mandatory predicate applied inside the store on
// every read and delete, never post-filtering in the caller. Implementations
// own their locking; mutating calls are safe under concurrent invocation.
type Index interface {
	// Insert embeds and stores the drafts under userID, returning the assigned
	// chunk ids. The batch is all-or-nothing: any embedding or storage failure
	// rejects the whole batch and rolls back partial writes.
	Insert(ctx context.Context, drafts []Draft, userID string) ([]string, error)

	// Search returns at most k results for the user, ascending by distance.
	// A user with no indexed chunks gets an empty slice, not an error.
	Search(ctx context.Context, query, userID string, k int) ([]RetrievalResult, error)

	// Delete removes the chunks matched by sel. Deleting absent ids is a no-op.
	Delete(ctx context.Context, sel Selector) error

	// Count reports how many chunks are currently indexed for the user.
	Count(ctx context.Context, userID string) (int, error)
}
