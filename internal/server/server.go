package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/ridwanfathin/receipt-rewards-engine/internal/config"
	"github.com/ridwanfathin/receipt-rewards-engine/internal/middleware"
)

// Server represents the HTTP server for the receipt rewards engine
type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	config     *config.Config
	log        zerolog.Logger
	cleanups   []func()
}

// NewServer creates and configures a new server instance
func NewServer(cfg *config.Config, log zerolog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(cors.Default())
	router.Use(middleware.RequestResponseLogger(log))

	server := &Server{
		router: router,
		config: cfg,
		log:    log,
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      router,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
	}

	server.setupRoutes()

	return server
}

// GetRouter returns the gin router instance
func (s *Server) GetRouter() *gin.Engine {
	return s.router
}

// OnShutdown registers a cleanup hook to run after the HTTP listener stops.
// Hooks run in registration order.
func (s *Server) OnShutdown(fn func()) {
	s.cleanups = append(s.cleanups, fn)
}

// setupRoutes configures the non-API routes
func (s *Server) setupRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
		})
	})

	// API documentation endpoints
	// Access the Swagger UI at http://localhost:8080/api-docs/index.html
	swaggerHandler := ginSwagger.WrapHandler(swaggerFiles.Handler)
	s.router.GET("/api-docs/*any", swaggerHandler)

	s.router.GET("/api-docs", func(c *gin.Context) {
		c.Redirect(http.StatusFound, "/api-docs/index.html")
	})
}

// Start begins listening for requests and blocks until an interrupt signal,
// then shuts down gracefully and runs the registered cleanup hooks
func (s *Server) Start() error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Int("port", s.config.Port).Msg("server listening")
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed to start: %w", err)
	case <-quit:
	}
	s.log.Info().Msg("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	for _, cleanup := range s.cleanups {
		cleanup()
	}

	s.log.Info().Msg("server exited gracefully")
	return nil
}

// Shutdown gracefully stops the server and runs cleanup hooks
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := s.httpServer.Shutdown(ctx)
	for _, cleanup := range s.cleanups {
		cleanup()
	}
	return err
}
