package document

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"finqa/backend/internal/config"
	"finqa/backend/internal/index"
	"finqa/backend/internal/middleware"
	"finqa/backend/internal/retention"
	"finqa/backend/internal/text"
)

var (
	// ErrIngestionFailed rejects an entire upload: chunking, embedding or
	// storage failed and no partial state remains.
	ErrIngestionFailed = errors.New("ingestion failed")

	ErrNotFound = errors.New("document not found")
)

// Document is the registry record for one uploaded file. The chunk content
// itself lives in the vector index; the registry tracks ownership, lifecycle
// and the retention handle needed to cancel a pending expiry.
type Document struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id"`
	Filename        string    `json:"filename"`
	Status          string    `json:"status"`
	ChunkCount      int       `json:"chunks_count"`
	ChunkIDs        []string  `json:"-"`
	RetentionTaskID string    `json:"-"`
	UploadDate      time.Time `json:"upload_date"`
}

type Repository interface {
	Save(ctx context.Context, doc *Document) error
	Get(ctx context.Context, id string) (*Document, error)
	ListByUser(ctx context.Context, userID string) ([]Document, error)
	SoftDelete(ctx context.Context, id string) error
}

type Scheduler interface {
	Schedule(userID string, chunkIDs []string, delay time.Duration) *retention.Task
	Cancel(taskID string) bool
}

type EventPublisher interface {
	Publish(topic string, body []byte) error
}

type Service struct {
	splitter  *text.Splitter
	index     index.Index
	repo      Repository
	scheduler Scheduler
	pub       EventPublisher
	retention time.Duration
}

func NewService(splitter *text.Splitter, idx index.Index, repo Repository, scheduler Scheduler, pub EventPublisher, retentionWindow time.Duration) *Service {
	return &Service{
		splitter:  splitter,
		index:     idx,
		repo:      repo,
		scheduler: scheduler,
		pub:       pub,
		retention: retentionWindow,
	}
}

// PageInput is one page of already-extracted document text; extraction happens
// in the upload collaborator, not here.
type PageInput struct {
	Page int    `json:"page"`
	Text string `json:"text"`
}

type IngestRequest struct {
	UserID   string      `json:"user_id"`
	Filename string      `json:"filename"`
	Pages    []PageInput `json:"pages"`
}

type IngestResult struct {
	Document       *Document
	ChunkCount     int
	ProcessingTime time.Duration
}

// Ingest chunks the pages, stores them in the vector index and schedules their
// retention expiry. The whole upload is rejected on any failure; a failure
// after the index write rolls the chunks back so no orphaned state remains.
// The retention task is created only once the batch is fully visible to
// search.
func (s *Service) Ingest(ctx context.Context, req IngestRequest) (*IngestResult, error) {
	start := time.Now()

	if req.UserID == "" {
		return nil, fmt.Errorf("%w: user_id is required", ErrIngestionFailed)
	}
	if req.Filename == "" {
		return nil, fmt.Errorf("%w: filename is required", ErrIngestionFailed)
	}

	uploadDate := time.Now().UTC()
	pages := make([]text.Page, len(req.Pages))
	for i, p := range req.Pages {
		pages[i] = text.Page{
			Text:       p.Text,
			Page:       p.Page,
			Filename:   req.Filename,
			UserID:     req.UserID,
			UploadDate: uploadDate,
		}
	}

	drafts := s.splitter.SplitPages(pages)

	doc := &Document{
		UserID:     req.UserID,
		Filename:   req.Filename,
		Status:     index.StatusProcessed,
		UploadDate: uploadDate,
	}

	// Empty documents index nothing and need no retention window.
	if len(drafts) == 0 {
		if err := s.repo.Save(ctx, doc); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrIngestionFailed, err)
		}
		return &IngestResult{Document: doc, ProcessingTime: time.Since(start)}, nil
	}

	ids, err := s.index.Insert(ctx, drafts, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIngestionFailed, err)
	}

	// The batch is fully visible to search from here on; only now may the
	// expiry countdown start.
	task := s.scheduler.Schedule(req.UserID, ids, s.retention)

	doc.ChunkCount = len(ids)
	doc.ChunkIDs = ids
	doc.RetentionTaskID = task.ID

	if err := s.repo.Save(ctx, doc); err != nil {
		s.scheduler.Cancel(task.ID)
		if delErr := s.index.Delete(ctx, index.Selector{ChunkIDs: ids}); delErr != nil {
			slog.ErrorContext(ctx, "rollback of indexed chunks failed", "error", delErr, "chunks", len(ids))
		}
		return nil, fmt.Errorf("%w: %v", ErrIngestionFailed, err)
	}

	s.publishIngested(ctx, doc)

	return &IngestResult{
		Document:       doc,
		ChunkCount:     len(ids),
		ProcessingTime: time.Since(start),
	}, nil
}

func (s *Service) List(ctx context.Context, userID string) ([]Document, error) {
	return s.repo.ListByUser(ctx, userID)
}

// ChunkCount reports how many chunks the user currently has in the index,
// including ones whose documents were uploaded in other sessions.
func (s *Service) ChunkCount(ctx context.Context, userID string) (int, error) {
	return s.index.Count(ctx, userID)
}

// Delete removes a document before its retention window elapses: the pending
// expiry is cancelled first so it cannot race the manual deletion.
func (s *Service) Delete(ctx context.Context, id string) error {
	doc, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}

	if doc.RetentionTaskID != "" {
		s.scheduler.Cancel(doc.RetentionTaskID)
	}

	if len(doc.ChunkIDs) > 0 {
		if err := s.index.Delete(ctx, index.Selector{ChunkIDs: doc.ChunkIDs}); err != nil {
			return err
		}
	}

	return s.repo.SoftDelete(ctx, id)
}

func (s *Service) publishIngested(ctx context.Context, doc *Document) {
	if s.pub == nil {
		return
	}

	payload, _ := json.Marshal(map[string]interface{}{
		"document_id":    doc.ID,
		"user_id":        doc.UserID,
		"filename":       doc.Filename,
		"chunks":         doc.ChunkCount,
		"correlation_id": middleware.GetCorrelationID(ctx),
	})
	if err := s.pub.Publish(config.TopicDocumentIngested, payload); err != nil {
		slog.ErrorContext(ctx, "failed to publish document.ingested event", "error", err)
	} else {
		slog.InfoContext(ctx, "published document.ingested event", "document_id", doc.ID, "chunks", doc.ChunkCount)
	}
}
