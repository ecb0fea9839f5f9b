package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"drive-gateway/internal/config"
	gwerrors "drive-gateway/internal/errors"
	"drive-gateway/internal/storage"

	"drive-gateway/internal/api/handlers"
	"drive-gateway/internal/api/middleware"
	"drive-gateway/internal/api/response"
)

type Server struct {
	cfg     *config.Config
	storage *storage.Client
	logger  *slog.Logger
	router  *gin.Engine
}

func New(cfg *config.Config, storage *storage.Client, logger *slog.Logger) *Server {
	if cfg.Server.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		cfg:     cfg,
		storage: storage,
		logger:  logger,
		router:  gin.New(),
	}
	// Non-Drive backends use path-like ids; clients send them as %2F.
	s.router.UseRawPath = true

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

func (s *Server) setupMiddleware() {
	// CORS Configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", middleware.RequestIDHeader}
	corsConfig.ExposeHeaders = []string{"Content-Disposition", middleware.RequestIDHeader, handlers.NextPageTokenHeader}

	s.router.Use(
		gin.Recovery(),
		middleware.RequestID(),
		middleware.SilentLogger(s.logger),
		middleware.Metrics(),
		cors.New(corsConfig),
	)
}

func (s *Server) setupRoutes() {
	fileHandler := handlers.NewFileHandler(s.storage)
	folderHandler := handlers.NewFolderHandler(s.storage)
	healthHandler := handlers.NewHealthHandler(s.storage.ProviderName())

	s.router.NoRoute(func(c *gin.Context) {
		response.Error(c, gwerrors.Wrap(gwerrors.KindNotFound, "", "Not Found", nil))
	})

	// Every route, health included, requires the API key.
	api := s.router.Group("/")
	api.Use(middleware.RequireAPIKey(s.cfg.API.Key))
	{
		api.GET("/", healthHandler.Index)
		api.GET("/health", healthHandler.Health)

		api.GET("/files", fileHandler.ListFiles)
		api.GET("/files/:file_id", fileHandler.GetFile)
		api.PUT("/files/:file_id", fileHandler.UpdateFile)
		api.DELETE("/files/:file_id", fileHandler.DeleteFile)
		api.GET("/search", fileHandler.SearchFiles)

		api.POST("/upload", fileHandler.Upload)
		api.GET("/download/:file_id", fileHandler.Download)

		api.POST("/folders", folderHandler.CreateFolder)
	}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves on addr until ctx is cancelled, then drains in-flight requests.
// There is no write timeout: downloads may stream for a long time.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		timeout := time.Duration(s.cfg.Server.ShutdownTimeout) * time.Second
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		s.logger.Info("shutting down API server", "timeout", timeout)
		return srv.Shutdown(shutdownCtx)
	}
}
