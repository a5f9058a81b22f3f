package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/runsight/runsight/internal/api/handlers"
	"github.com/runsight/runsight/internal/api/middleware"
	"github.com/runsight/runsight/internal/config"
	"github.com/runsight/runsight/internal/openai"
	"github.com/runsight/runsight/internal/repository"
	"github.com/runsight/runsight/internal/service"
	"github.com/runsight/runsight/pkg/cache"
)

// App holds all server dependencies and coordinates startup and shutdown.
type App struct {
	cfg    *config.Config
	db     *pgxpool.Pool
	server *http.Server
}

// NewApp builds and wires all components. It does not start the HTTP server;
// call Run to start and block until shutdown or failure.
func NewApp(cfg *config.Config, db *pgxpool.Pool) (*App, error) {
	documentsRepo := repository.NewAnalysisDocumentsRepository(db)
	embeddingsRepo := repository.NewAnalysisEmbeddingsRepository(db)

	embeddingClient := openai.NewEmbeddingClient(cfg.OpenAIAPIKey,
		openai.WithEmbeddingModel(cfg.EmbeddingModel),
		openai.WithDimensions(cfg.EmbeddingDimensions),
	)
	chatClient := openai.NewChatClient(cfg.OpenAIAPIKey,
		openai.WithChatModel(cfg.ChatModel),
		openai.WithRequestsPerMinute(cfg.ChatRequestsPerMinute),
	)

	queryCache, err := cache.NewLoaderCache[[]float32](cfg.QueryEmbeddingCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create query embedding cache: %w", err)
	}

	semanticCache := service.NewSemanticCache(service.SemanticCacheParams{
		Config: service.CacheConfig{
			Enabled:             cfg.RagCacheEnabled,
			SimilarityThreshold: cfg.RagCacheSimilarityThreshold,
			TTLDays:             cfg.RagCacheTTLDays,
		},
		EmbeddingClient: embeddingClient,
		Index:           embeddingsRepo,
		Store:           documentsRepo,
		QueryCache:      queryCache,
		Logger:          slog.Default(),
	})

	analysisService := service.NewAnalysisService(service.AnalysisServiceParams{
		Cache:  semanticCache,
		LLM:    chatClient,
		Logger: slog.Default(),
	})
	searchService := service.NewDocumentSearchService(embeddingClient, embeddingsRepo, documentsRepo, slog.Default())

	analysisHandler := handlers.NewAnalysisHandler(analysisService)
	ragHandler := handlers.NewRagHandler(searchService)
	healthHandler := handlers.NewHealthHandler()

	server := newHTTPServer(cfg, healthHandler, analysisHandler, ragHandler)

	return &App{
		cfg:    cfg,
		db:     db,
		server: server,
	}, nil
}

// newHTTPServer builds the HTTP server and muxes (no auth on /health, API key on /v1/).
// Handler chain: RequestID -> Logging -> MaxBody -> mux so access logs carry request_id.
func newHTTPServer(
	cfg *config.Config,
	health *handlers.HealthHandler,
	analysis *handlers.AnalysisHandler,
	rag *handlers.RagHandler,
) *http.Server {
	public := http.NewServeMux()
	public.HandleFunc("GET /health", health.Check)

	protected := http.NewServeMux()
	protected.HandleFunc("POST /v1/analysis", analysis.Analyze)
	protected.HandleFunc("POST /v1/analysis/check", analysis.Check)
	protected.HandleFunc("POST /v1/analysis/single", analysis.AnalyzeSingle)

	protected.HandleFunc("POST /v1/rag/search", rag.Search)
	protected.HandleFunc("GET /v1/rag/recent", rag.Recent)
	protected.HandleFunc("GET /v1/rag/documents/{documentId}", rag.GetDocument)
	protected.HandleFunc("GET /v1/rag/activities/{activityId}", rag.ByActivity)
	protected.HandleFunc("GET /v1/rag/distance", rag.ByMinimumDistance)
	protected.HandleFunc("GET /v1/rag/runs", rag.ByMinimumRuns)

	protectedWithAuth := middleware.Auth(cfg.APIKey)(protected)
	mux := http.NewServeMux()
	mux.Handle("/v1/", protectedWithAuth)
	mux.Handle("/", public)

	handler := middleware.MaxBody(cfg.MaxRequestBodyBytes)(mux)
	handler = middleware.Logging(handler)
	handler = middleware.RequestID(handler)

	const (
		readTimeout  = 15 * time.Second
		writeTimeout = 15 * time.Second
		idleTimeout  = 60 * time.Second
	)

	return &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}
}

// Run starts the HTTP server and blocks until ctx is cancelled (e.g. signal)
// or the server fails. Caller should then call Shutdown.
func (a *App) Run(ctx context.Context) error {
	runErr := make(chan error, 1)

	go func() {
		slog.Info("Starting server", "port", a.cfg.Port)

		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			select {
			case runErr <- fmt.Errorf("server: %w", err):
			default:
			}
		}
	}()

	select {
	case err := <-runErr:
		return err
	case <-ctx.Done():
		return nil
	}
}

// Shutdown stops the HTTP server. Call after Run returns.
func (a *App) Shutdown(ctx context.Context) error {
	if err := a.server.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}
