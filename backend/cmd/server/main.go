package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"lifegraph/backend/internal/adapter"
	"lifegraph/backend/internal/agent"
	"lifegraph/backend/internal/pipeline"
	"lifegraph/backend/internal/storage"
	"lifegraph/backend/pkg/config"
	"lifegraph/backend/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load configuration: %v", err))
	}

	// Initialize logger
	if err := logger.Init(cfg.Env, cfg.LogLevel); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	log := logger.Get()
	log.Info("Starting HTTP API server...",
		zap.String("storage_type", cfg.StorageType),
		zap.String("storage_path", cfg.StoragePath),
		zap.Bool("production", cfg.IsProduction()),
	)

	// Open the knowledge graph store
	ctx := context.Background()
	store, err := storage.New(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to open storage", zap.Error(err))
	}
	defer store.Close()

	// Initialize dependencies
	pipe := pipeline.New(store, pipeline.WithLogger(log))
	suggesterOpts := []agent.Option{agent.WithLogger(log)}
	if cfg.LLMEnabled() {
		llmAdapter := adapter.NewLLMAdapter(cfg.LLMURL, cfg.LLMAPIKey, cfg.ModelID, adapter.WithLogger(log))
		suggesterOpts = append(suggesterOpts, agent.WithCompleter(llmAdapter))
		log.Info("Suggestion rephrasing enabled", zap.String("model", cfg.ModelID))
	}
	suggester := agent.NewSuggester(pipe, suggesterOpts...)

	// Setup Gin router
	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := newRouter(&handlers{pipe: pipe, suggester: suggester, logger: log})

	// Start server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Graceful shutdown
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	log.Info("Server started", zap.String("port", cfg.Port))

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited")
}

func newRouter(h *handlers) *gin.Engine {
	router := gin.New()
	router.Use(ginLogger(h.logger))
	router.Use(gin.Recovery())

	// Read-only CORS
	router.Use(func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Headers", "Accept, Cache-Control, Content-Type, Origin")
		h.Set("Access-Control-Allow-Methods", "GET, OPTIONS")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// API routes
	api := router.Group("/api")
	{
		api.GET("/stats", h.stats)
		api.GET("/context/:name", h.entityContext)
		api.GET("/entities", h.entities)
		api.GET("/triplets", h.triplets)
		api.GET("/suggestions/:name", h.suggestions)
	}

	return router
}

// ginLogger logs every request against its route template. Client errors
// log at Warn and server errors at Error.
func ginLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		fields := []zap.Field{
			zap.Int("status", c.Writer.Status()),
			zap.String("method", c.Request.Method),
			zap.String("route", route),
			zap.String("path", c.Request.URL.Path),
			zap.String("query", c.Request.URL.RawQuery),
			zap.Duration("latency", time.Since(start)),
		}

		switch status := c.Writer.Status(); {
		case status >= http.StatusInternalServerError:
			log.Error("HTTP Request", fields...)
		case status >= http.StatusBadRequest:
			log.Warn("HTTP Request", fields...)
		default:
			log.Debug("HTTP Request", fields...)
		}
	}
}
