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
	"go.uber.org/zap"

	"github.com/baristaq/baristaq/internal/config"
	"github.com/baristaq/baristaq/internal/handlers"
	"github.com/baristaq/baristaq/internal/middleware"
)

// HTTPServer hosts the workstation's HTTP and websocket surface.
type HTTPServer struct {
	router   *gin.Engine
	config   *config.Config
	logger   *zap.Logger
	handlers *Handlers
	started  time.Time
}

// Handlers holds the route handlers the server wires up.
type Handlers struct {
	Queue *handlers.QueueHandler
	WS    *handlers.WSHandler
}

// New creates a new server instance
func New(cfg *config.Config, h *Handlers, logger *zap.Logger) *HTTPServer {
	return &HTTPServer{
		config:   cfg,
		handlers: h,
		logger:   logger,
		started:  time.Now(),
	}
}

// Setup initializes middleware and routes.
func (s *HTTPServer) Setup() {
	s.router = gin.New()
	s.setupMiddleware()
	s.setupRoutes()
}

func (s *HTTPServer) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(middleware.RequestID())
	s.router.Use(middleware.RequestLogger(s.logger))

	s.router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "X-Request-ID"},
		ExposeHeaders:    []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))
}

func (s *HTTPServer) setupRoutes() {
	s.router.GET("/", s.handlers.Queue.GetQueue)
	s.router.GET("/history", s.handlers.Queue.GetHistory)
	s.router.POST("/receive", s.handlers.Queue.Receive)
	s.router.POST("/complete", s.handlers.Queue.Complete)
	s.router.GET("/newOrder", s.handlers.WS.Serve)
	s.router.GET("/milkColors", s.milkColors)
	s.router.GET("/health", s.healthCheck)

	// The configured intake path is an alias of /receive; ordering
	// sites are given this path rather than the well-known one.
	if s.config.Endpoint != "" && s.config.Endpoint != "receive" {
		s.router.POST("/"+s.config.Endpoint, s.handlers.Queue.Receive)
	}
}

// milkColors feeds the UI's per-milk highlight palette.
func (s *HTTPServer) milkColors(c *gin.Context) {
	c.JSON(http.StatusOK, s.config.MilkColors)
}

func (s *HTTPServer) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"uptime":    time.Since(s.started).Seconds(),
	})
}

// Start runs the server until SIGINT/SIGTERM, then shuts down
// gracefully. onShutdown, if set, runs after the listener has drained.
func (s *HTTPServer) Start(onShutdown func()) error {
	srv := &http.Server{
		Addr:           fmt.Sprintf(":%d", s.config.Port),
		Handler:        s.router,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   15 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		s.logger.Info("starting server",
			zap.Int("port", s.config.Port),
			zap.String("intake", "/"+s.config.Endpoint),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	s.logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		s.logger.Error("server forced to shutdown", zap.Error(err))
		return err
	}
	if onShutdown != nil {
		onShutdown()
	}

	s.logger.Info("server exited")
	return nil
}

// Router returns the gin router for testing
func (s *HTTPServer) Router() *gin.Engine {
	return s.router
}
