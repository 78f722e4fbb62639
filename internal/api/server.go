package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"marketplace/categorizer/internal/config"
	"marketplace/categorizer/internal/repository"
	"marketplace/categorizer/internal/service"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// Deps are the components the HTTP boundary serves. Jobs and Assignments are
// nil when Redis or the database is disabled.
type Deps struct {
	Categorizer config.CategorizerConfig
	Resolver    *service.Resolver
	Jobs        *service.JobService
	Assignments repository.AssignmentRepository
	Reload      func(ctx context.Context) error
}

type Server struct {
	deps   Deps
	engine *gin.Engine
}

func NewServer(deps Deps) *Server {
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger())

	s := &Server{deps: deps, engine: engine}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.engine.GET("/health", s.health)
	s.engine.POST("/categorize", s.categorize)

	marketplaces := s.engine.Group("/marketplaces")
	{
		marketplaces.GET("", s.listMarketplaces)
		marketplaces.GET("/:name/shortlist", s.shortlist)
	}

	s.engine.POST("/taxonomies/reload", s.reload)

	jobs := s.engine.Group("/jobs")
	{
		jobs.POST("", s.enqueueJob)
		jobs.GET("/:id", s.jobStatus)
	}

	s.engine.GET("/assignments/:sku", s.assignments)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("🌐 HTTP API listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("🛑 Shutting down HTTP API...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.WithFields(log.Fields{
			"method":   c.Request.Method,
			"path":     c.FullPath(),
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
		}).Debug("request")
	}
}
