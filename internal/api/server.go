// Package api provides the HTTP API server and handlers for the Shelf book library.
package api

import (
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/shelfapp/shelf-server/internal/search"
	"github.com/shelfapp/shelf-server/internal/store/sqlite"
)

// Options configures the HTTP surface.
type Options struct {
	Version      string
	CORSOrigins  []string
	LoginLimiter *RateLimiter // nil disables login throttling
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	store        *sqlite.Store
	index        *search.Index
	services     *Services
	router       *chi.Mux
	api          huma.API
	loginLimiter *RateLimiter
	logger       *slog.Logger
}

// NewServer creates a new HTTP server with all routes configured.
func NewServer(store *sqlite.Store, index *search.Index, services *Services, opts Options, logger *slog.Logger) *Server {
	if opts.Version == "" {
		opts.Version = "1.0.0"
	}

	s := &Server{
		store:        store,
		index:        index,
		services:     services,
		router:       chi.NewRouter(),
		loginLimiter: opts.LoginLimiter,
		logger:       logger,
	}

	s.setupMiddleware(opts.CORSOrigins)

	humaConfig := huma.DefaultConfig("Shelf API", opts.Version)
	humaConfig.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"bearer": {
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "PASETO",
		},
	}
	humaConfig.Transformers = append(humaConfig.Transformers, EnvelopeTransformer)

	s.api = humachi.New(s.router, humaConfig)
	RegisterErrorHandler(logger)

	s.setupRoutes()

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// setupMiddleware configures middleware stack.
func (s *Server) setupMiddleware(origins []string) {
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders: []string{"Expires", headerBlurHash},
		MaxAge:         300,
	}))
	s.router.Use(middleware.Compress(5, "application/json"))
}

// setupRoutes registers huma operations and the raw chi routes that stream
// binary or multipart bodies.
func (s *Server) setupRoutes() {
	s.registerHealthRoutes()
	s.registerUserRoutes()
	s.registerBookRoutes()
	s.registerCoverRoutes()
	s.registerImportRoutes()
	s.registerTagRoutes()
}
