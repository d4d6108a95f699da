package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/cors"

	"policyforge/internal/auth"
	"policyforge/internal/config"
	"policyforge/internal/editor"
	"policyforge/internal/genai"
	"policyforge/internal/handler"
	"policyforge/internal/middleware"
	"policyforge/internal/repository/postgres"
	"policyforge/internal/service"
	"policyforge/internal/templates"
)

func main() {
	// Load .env file (silently ignore if it doesn't exist - for production)
	_ = godotenv.Load()

	// Load configuration
	cfg := config.Load()

	// Setup structured logging
	logLevel := slog.LevelInfo
	if cfg.Environment == "dev" {
		logLevel = slog.LevelDebug
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("server starting",
		"environment", cfg.Environment,
		"port", cfg.Port,
		"table_prefix", cfg.TablePrefix,
	)

	// Create JWT verifier for bearer-token authentication
	jwtVerifier, err := auth.NewJWTVerifier(cfg.JWKSURL, logger)
	if err != nil {
		log.Fatalf("Failed to create JWT verifier: %v", err)
	}
	defer jwtVerifier.Close()

	// Create pgx connection pool
	ctx := context.Background()
	pool, err := postgres.CreateConnectionPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to create connection pool: %v", err)
	}
	defer pool.Close()

	logger.Info("database connected",
		"max_conns", 25,
		"min_conns", 5,
	)

	// Create table names
	tables := postgres.NewTableNames(cfg.TablePrefix)

	// Create repositories
	repoConfig := &postgres.RepositoryConfig{
		Pool:   pool,
		Tables: tables,
		Logger: logger,
	}
	draftRepo := postgres.NewDraftRepository(repoConfig)
	txManager := postgres.NewTransactionManager(pool)

	// Generation service client
	generator := genai.NewClient(cfg.GenerationAPIURL, cfg.GenerationAPIKey, logger)

	// Initialize policy template registry
	templateRegistry, err := templates.NewRegistry()
	if err != nil {
		log.Fatalf("Failed to initialize template registry: %v", err)
	}
	logger.Info("template registry initialized", "functions", templateRegistry.Functions())

	// Editing session registry with idle-session eviction
	sessionRegistry := editor.NewRegistry(config.SessionTTL, logger)

	// Create services. The draft service closes live sessions when a draft
	// or its tree changes underneath one.
	editorService := service.NewEditorService(draftRepo, txManager, generator, sessionRegistry, logger)
	draftService := service.NewDraftService(draftRepo, txManager, generator, templateRegistry, editorService, logger)
	exportService := service.NewExportService(draftService, cfg.ChromePath, logger)

	// Create handlers
	draftHandler := handler.NewDraftHandler(draftService, logger)
	editorHandler := handler.NewEditorHandler(editorService, logger)
	exportHandler := handler.NewExportHandler(exportService, logger)

	logger.Info("services initialized")

	// Create HTTP router (Go 1.22+ enhanced patterns)
	mux := http.NewServeMux()

	// Draft lifecycle routes
	mux.HandleFunc("POST /api/v1/drafts/validate", draftHandler.ValidateDescription)
	mux.HandleFunc("POST /api/v1/drafts/initialize", draftHandler.InitializeDraft)
	mux.HandleFunc("GET /api/v1/drafts", draftHandler.ListDrafts)
	mux.HandleFunc("GET /api/v1/drafts/functions", draftHandler.ListFunctions)
	mux.HandleFunc("GET /api/v1/drafts/{id}", draftHandler.GetDraft)
	mux.HandleFunc("DELETE /api/v1/drafts/{id}", draftHandler.DeleteDraft)
	mux.HandleFunc("PUT /api/v1/drafts/{id}/metadata", draftHandler.UpdateMetadata)
	mux.HandleFunc("PUT /api/v1/drafts/{id}/toc", draftHandler.UpdateTOC)
	mux.HandleFunc("GET /api/v1/drafts/{id}/progress", draftHandler.GetProgress)

	// Node content routes (generation + the persistence primitive)
	mux.HandleFunc("POST /api/v1/drafts/{id}/topics/{topicID}/generate", editorHandler.GenerateNode)
	mux.HandleFunc("PUT /api/v1/drafts/{id}/topics/{topicID}/content", editorHandler.SaveNodeContent)

	// Editing session routes
	mux.HandleFunc("GET /api/v1/drafts/{id}/editor/state", editorHandler.State)
	mux.HandleFunc("POST /api/v1/drafts/{id}/editor/select", editorHandler.Select)
	mux.HandleFunc("POST /api/v1/drafts/{id}/editor/message", editorHandler.SendMessage)
	mux.HandleFunc("PUT /api/v1/drafts/{id}/editor/content", editorHandler.EditContent)
	mux.HandleFunc("POST /api/v1/drafts/{id}/editor/save", editorHandler.SaveContent)

	// Direct structural edits on the working tree
	mux.HandleFunc("POST /api/v1/drafts/{id}/editor/toc/rename", editorHandler.RenameNode)
	mux.HandleFunc("POST /api/v1/drafts/{id}/editor/toc/delete", editorHandler.DeleteNode)
	mux.HandleFunc("POST /api/v1/drafts/{id}/editor/toc/topics", editorHandler.AddTopic)
	mux.HandleFunc("POST /api/v1/drafts/{id}/editor/toc/subtopics", editorHandler.AddSubtopic)
	mux.HandleFunc("POST /api/v1/drafts/{id}/editor/toc/reorder", editorHandler.ReorderTopics)
	mux.HandleFunc("POST /api/v1/drafts/{id}/editor/toc/save", editorHandler.SaveTOC)

	// Natural-language TOC chat routes
	mux.HandleFunc("POST /api/v1/drafts/{id}/toc/chat", editorHandler.TOCChat)
	mux.HandleFunc("POST /api/v1/drafts/{id}/toc/confirm", editorHandler.TOCConfirm)
	mux.HandleFunc("POST /api/v1/drafts/{id}/toc/cancel", editorHandler.TOCCancel)
	mux.HandleFunc("POST /api/v1/drafts/{id}/toc/dismiss", editorHandler.TOCDismiss)

	// Export routes
	mux.HandleFunc("POST /api/v1/drafts/{id}/export/word", exportHandler.ExportWord)
	mux.HandleFunc("POST /api/v1/drafts/{id}/export/pdf", exportHandler.ExportPDF)

	// Auth wraps only the API routes; the health check stays open so
	// liveness probes need no token.
	outer := http.NewServeMux()
	outer.HandleFunc("GET /health", draftHandler.HealthCheck)
	outer.Handle("/api/v1/", middleware.AuthMiddleware(jwtVerifier)(mux))

	// Apply middleware in reverse order (they wrap each other)
	// Order: CORS → Recovery → Auth → Routes
	var root http.Handler = outer
	root = middleware.Recovery(logger)(root)

	// CORS - Must be before auth to handle OPTIONS pre-flight requests
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   strings.Split(cfg.CORSOrigins, ","),
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Origin", "Content-Type", "Accept", "Authorization"},
		AllowCredentials: true,
	})
	root = corsHandler.Handler(root)

	// Create HTTP server. Write timeout is generous because a generation
	// turn can legitimately take minutes.
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      root,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: config.GenerationTimeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server
	logger.Info("server listening", "port", cfg.Port)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Failed to start server: %v", err)
	}
}
