// Command ordergen serves randomly generated orders for demos: every
// GET /order returns a fresh order built from the standard menu.
package main

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/baristaq/baristaq/internal/config"
	"github.com/baristaq/baristaq/internal/domain/menu"
	"github.com/baristaq/baristaq/internal/logging"
	"github.com/baristaq/baristaq/internal/middleware"
	"github.com/baristaq/baristaq/internal/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.NewLogger(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	generator := services.NewGeneratorService(
		menu.DefaultCatalog(),
		cfg.Generator.MaxDrinks,
		uint64(time.Now().UnixNano()),
	)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger(logger))

	router.GET("/order", func(c *gin.Context) {
		c.JSON(http.StatusOK, generator.NewOrder())
	})
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	addr := fmt.Sprintf(":%d", cfg.Generator.Port)
	logger.Info("starting order generator", zap.String("addr", addr))
	if err := router.Run(addr); err != nil {
		logger.Fatal("generator server error", zap.Error(err))
	}
}
