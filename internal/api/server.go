package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"tickle-go/internal/models"
	"tickle-go/internal/net/database"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

type Server struct {
	db     *database.Database
	router *gin.Engine
	server *http.Server
	sites  []models.Site
	logger zerolog.Logger
}

type ServerConfig struct {
	Bind  string
	Port  int
	Sites []models.Site
}

func NewServer(cfg ServerConfig, db *database.Database, logger zerolog.Logger) *Server {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(accessLogger(logger))

	server := &Server{
		db:     db,
		router: router,
		sites:  cfg.Sites,
		logger: logger,
		server: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", cfg.Bind, cfg.Port),
			Handler:      router.Handler(),
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}

	server.setupRoutes()

	return server
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	s.logger.Info().Str("address", s.server.Addr).Msg("Starting api server")

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start api server: %w", err)
	}

	return nil
}

func (s *Server) Shutdown() {
	s.logger.Info().Msg("Stopping API server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := s.server.Shutdown(shutdownCtx); err != nil {
		s.logger.Error().Err(err).Msg("Error stopping API server")
	}

	s.logger.Info().Msg("API server stopped successfully")
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.HealthCheckHandler)

	api := s.router.Group("/api/tickle")
	api.GET("/sites", s.GetSites)

	reportGroup := api.Group("/reports")
	reportGroup.GET("", s.GetMonitoringReport)
}

func accessLogger(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		statusCode := c.Writer.Status()
		method := c.Request.Method

		if query != "" {
			path = path + "?" + query
		}

		logEvent := logger.Info()
		if statusCode >= 400 {
			logEvent = logger.Error()
		}

		logEvent.Str("method", method).
			Str("path", path).
			Int("status", statusCode).
			Str("latency", latency.String()).
			Msg("API request")
	}
}
