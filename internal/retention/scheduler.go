// Package retention evicts a user's indexed chunks after a fixed window.
// Every ingestion batch gets its own task; tasks are registered by handle and
// stay cancellable until the moment they fire.
package retention

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"finqa/backend/internal/config"
	"finqa/backend/internal/index"
)

type State string

const (
	StateScheduled State = "scheduled"
	StateFired     State = "fired"
	StateCancelled State = "cancelled"
)

// Deleter is the slice of the vector index the scheduler needs.
type Deleter interface {
	Delete(ctx context.Context, sel index.Selector) error
}

// EventPublisher receives eviction lifecycle events. Publish failures are
// logged and otherwise ignored.
type EventPublisher interface {
	Publish(topic string, body []byte) error
}

// Task is one pending deferred deletion.
type Task struct {
	ID       string
	UserID   string
	ChunkIDs []string
	FireAt   time.Time

	mu    sync.Mutex
	state State
	timer *time.Timer
}

func (t *Task) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

type Scheduler struct {
	deleter     Deleter
	pub         EventPublisher
	fireTimeout time.Duration

	mu    sync.Mutex
	tasks map[string]*Task
	errs  chan error
}

type Option func(*Scheduler)

// WithEventPublisher wires an event bus for expired / expiry-failed events.
func WithEventPublisher(pub EventPublisher) Option {
	return func(s *Scheduler) { s.pub = pub }
}

// WithFireTimeout bounds the deletion call made when a task fires.
func WithFireTimeout(d time.Duration) Option {
	return func(s *Scheduler) { s.fireTimeout = d }
}

func NewScheduler(deleter Deleter, opts ...Option) *Scheduler {
	s := &Scheduler{
		deleter:     deleter,
		fireTimeout: 30 * time.Second,
		tasks:       make(map[string]*Task),
		errs:        make(chan error, 16),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Schedule registers a deferred deletion of chunkIDs after delay. One task per
// batch: overlapping uploads by the same user expire independently.
func (s *Scheduler) Schedule(userID string, chunkIDs []string, delay time.Duration) *Task {
	t := &Task{
		ID:       uuid.New().String(),
		UserID:   userID,
		ChunkIDs: chunkIDs,
		FireAt:   time.Now().Add(delay),
		state:    StateScheduled,
	}

	s.mu.Lock()
	s.tasks[t.ID] = t
	s.mu.Unlock()

	t.mu.Lock()
	t.timer = time.AfterFunc(delay, func() { s.fire(t) })
	t.mu.Unlock()

	slog.Info("retention scheduled", "task_id", t.ID, "user_id", userID, "chunks", len(chunkIDs), "fire_at", t.FireAt)
	return t
}

// Cancel stops a scheduled task. It reports true only when the deletion is
// guaranteed never to run; once firing has begun it is a no-op.
func (s *Scheduler) Cancel(taskID string) bool {
	s.mu.Lock()
	t, ok := s.tasks[taskID]
	s.mu.Unlock()
	if !ok {
		return false
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != StateScheduled || !t.timer.Stop() {
		return false
	}
	t.state = StateCancelled

	s.remove(taskID)
	slog.Info("retention cancelled", "task_id", taskID, "user_id", t.UserID)
	return true
}

// Errors exposes fire failures to an observer. There is no synchronous caller
// at fire time, so failures are surfaced here instead of being re-raised.
func (s *Scheduler) Errors() <-chan error {
	return s.errs
}

// Stop cancels every still-scheduled task. Used on shutdown.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	ids := make([]string, 0, len(s.tasks))
	for id := range s.tasks {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	for _, id := range ids {
		s.Cancel(id)
	}
}

func (s *Scheduler) fire(t *Task) {
	t.mu.Lock()
	if t.state != StateScheduled {
		t.mu.Unlock()
		return
	}
	// The task transitions to fired even when the deletion errors: there is
	// no automatic retry.
	t.state = StateFired
	t.mu.Unlock()

	s.remove(t.ID)

	ctx, cancel := context.WithTimeout(context.Background(), s.fireTimeout)
	defer cancel()

	err := s.deleter.Delete(ctx, index.Selector{ChunkIDs: t.ChunkIDs})
	if err != nil {
		slog.Error("retention fire failed", "task_id", t.ID, "user_id", t.UserID, "error", err)
		select {
		case s.errs <- err:
		default:
			slog.Warn("retention error channel full, dropping", "task_id", t.ID)
		}
		s.publish(config.TopicDocumentExpiryFailed, t, err)
		return
	}

	slog.Info("retention fired", "task_id", t.ID, "user_id", t.UserID, "chunks", len(t.ChunkIDs))
	s.publish(config.TopicDocumentExpired, t, nil)
}

func (s *Scheduler) remove(taskID string) {
	s.mu.Lock()
	delete(s.tasks, taskID)
	s.mu.Unlock()
}

func (s *Scheduler) publish(topic string, t *Task, fireErr error) {
	if s.pub == nil {
		return
	}

	payload := map[string]interface{}{
		"task_id":  t.ID,
		"user_id":  t.UserID,
		"chunks":   len(t.ChunkIDs),
		"fired_at": time.Now().UTC(),
	}
	if fireErr != nil {
		payload["error"] = fireErr.Error()
	}

	body, _ := json.Marshal(payload)
	if err := s.pub.Publish(topic, body); err != nil {
		slog.Error("failed to publish retention event", "topic", topic, "error", err)
	}
}
