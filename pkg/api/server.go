package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vjranagit/telemetry/pkg/definition"
	"github.com/vjranagit/telemetry/pkg/evaluator"
	"github.com/vjranagit/telemetry/pkg/function"
	"github.com/vjranagit/telemetry/pkg/reducer"
	"github.com/vjranagit/telemetry/pkg/storage"
)

// Deps are the components the API serves
type Deps struct {
	Store     storage.Storage
	Functions *function.Registry
	Reducers  *reducer.Registry
	Resolver  *definition.MemoryResolver
}

// Option configures a Server
type Option func(*Server)

// WithTimeout sets the HTTP read and write timeouts
func WithTimeout(d time.Duration) Option {
	return func(s *Server) { s.timeout = d }
}

// WithEvalTimeout bounds each telemetry evaluation
func WithEvalTimeout(d time.Duration) Option {
	return func(s *Server) { s.evalTimeout = d }
}

// WithLogger sets the request and evaluation logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// Server implements the HTTP API server
type Server struct {
	deps        Deps
	eval        *evaluator.Evaluator
	validate    *validator.Validate
	logger      *slog.Logger
	addr        string
	timeout     time.Duration
	evalTimeout time.Duration
	engine      *gin.Engine
	server      *http.Server
}

// NewServer creates a new API server
func NewServer(addr string, deps Deps, opts ...Option) *Server {
	s := &Server{
		deps:        deps,
		validate:    validator.New(),
		logger:      slog.Default(),
		addr:        addr,
		timeout:     30 * time.Second,
		evalTimeout: 20 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}

	var resolver evaluator.Resolver
	if deps.Resolver != nil {
		resolver = deps.Resolver
	}
	s.eval = evaluator.New(deps.Functions, deps.Reducers, resolver, evaluator.WithLogger(s.logger))
	s.engine = s.routes()
	return s
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.observe())

	v1 := r.Group("/api/v1")
	v1.POST("/sensordata", s.handleWrite)
	v1.GET("/functions", s.handleFunctions)
	v1.GET("/reducers", s.handleReducers)
	v1.GET("/definitions", s.handleDefinitions)
	v1.GET("/telemetry/:name", s.handleTelemetry)

	r.GET("/health", s.handleHealth)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return r
}

// Handler returns the routed handler without starting a listener
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start starts the HTTP server and blocks until it stops
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      s.engine,
		ReadTimeout:  s.timeout,
		WriteTimeout: s.timeout,
	}

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// observe logs and counts every request
func (s *Server) observe() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		elapsed := time.Since(start)
		recordRequest(c.Request.Method, route, c.Writer.Status(), elapsed)

		s.logger.Debug("request",
			"method", c.Request.Method,
			"route", route,
			"status", c.Writer.Status(),
			"duration", elapsed,
		)
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}
