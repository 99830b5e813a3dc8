// Package app wires configuration, adapters and feature verticals into a
// runnable HTTP service.
package app

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"finqa/backend/features/chat"
	"finqa/backend/features/document"
	"finqa/backend/internal/config"
	"finqa/backend/internal/event"
	"finqa/backend/internal/index"
	"finqa/backend/internal/middleware"
	"finqa/backend/internal/rag"
	"finqa/backend/internal/retention"
	"finqa/backend/internal/text"
)

type App struct {
	Handler   http.Handler
	Scheduler *retention.Scheduler

	port int
}

func New(cfg *config.Config, deps *Dependencies) (*App, error) {
	publisher := event.NewNSQPublisher(deps.Producer)

	scheduler := retention.NewScheduler(deps.Index, retention.WithEventPublisher(publisher))

	// Feature: Document
	splitter := text.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap)
	docRepo := document.NewPostgresRepo(deps.DB)
	docService := document.NewService(splitter, deps.Index, docRepo, scheduler, publisher, cfg.RetentionDelay())
	docHandler := document.NewHandler(docService)

	// Feature: Chat
	answerLogger, err := rag.NewFileAnswerLogger(cfg.AnswerLogPath)
	if err != nil {
		slog.Warn("failed to create answer logger, falling back to stdout", "error", err)
		answerLogger = rag.NewAnswerLogger(os.Stdout)
	}

	generator := &boundedGenerator{inner: deps.Generator, timeout: cfg.GenerateTimeout()}
	ragService := rag.NewService(deps.Index, generator, cfg.SearchTopK, answerLogger)
	chatHandler := chat.NewHandler(ragService)

	// Middleware: CORS
	enableCORS := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}
			next(w, r)
		}
	}

	// Routes
	mux := http.NewServeMux()

	mux.Handle("POST /documents", middleware.CorrelationID(enableCORS(docHandler.Ingest)))
	mux.Handle("GET /users/{user_id}/documents", middleware.CorrelationID(enableCORS(docHandler.List)))
	mux.Handle("DELETE /documents/{id}", middleware.CorrelationID(enableCORS(docHandler.Delete)))

	mux.Handle("POST /chat", middleware.CorrelationID(enableCORS(chatHandler.Ask)))

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	return &App{
		Handler:   mux,
		Scheduler: scheduler,
		port:      cfg.ServerPort,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    ":" + strconv.Itoa(a.port),
		Handler: a.Handler,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutting down server...")
		a.Scheduler.Stop()
		if err := srv.Shutdown(context.Background()); err != nil {
			slog.Error("server shutdown failed", "error", err)
		}
	}()

	slog.Info("server starting", "port", a.port)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// boundedGenerator caps a single model call; the upstream SDK has no default
// deadline of its own.
type boundedGenerator struct {
	inner   rag.Generator
	timeout time.Duration
}

func (g *boundedGenerator) Generate(ctx context.Context, prompt string, history []rag.Message) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	return g.inner.Generate(ctx, prompt, history)
}

// boundedEmbedder caps a single embedding call.
type boundedEmbedder struct {
	inner   index.Embedder
	timeout time.Duration
}

func (e *boundedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	return e.inner.Embed(ctx, text)
}
