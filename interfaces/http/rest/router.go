package rest

import (
	"context"
	"net/http"
	"time"

	"socialgraph/application/commands/bus"
	"socialgraph/application/ports"
	querybus "socialgraph/application/queries/bus"
	"socialgraph/interfaces/http/rest/handlers"
	"socialgraph/interfaces/http/rest/middleware"
	v1 "socialgraph/interfaces/http/rest/v1"
	"socialgraph/pkg/common"
	pkgerrors "socialgraph/pkg/errors"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Options tunes the router
type Options struct {
	AllowedOrigins []string
	RequestTimeout time.Duration
	EnableMetrics  bool
}

// Router creates and configures the HTTP router
type Router struct {
	commandBus   *bus.CommandBus
	queryBus     *querybus.QueryBus
	health       ports.HealthChecker
	errorHandler *pkgerrors.ErrorHandler
	options      Options
	logger       *zap.Logger
}

// NewRouter creates a new router instance
func NewRouter(
	commandBus *bus.CommandBus,
	queryBus *querybus.QueryBus,
	health ports.HealthChecker,
	errorHandler *pkgerrors.ErrorHandler,
	options Options,
	logger *zap.Logger,
) *Router {
	return &Router{
		commandBus:   commandBus,
		queryBus:     queryBus,
		health:       health,
		errorHandler: errorHandler,
		options:      options,
		logger:       logger,
	}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()

	// Global middleware
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(rt.errorHandler.Middleware)
	router.Use(middleware.Logger(rt.logger))
	if rt.options.EnableMetrics {
		router.Use(middleware.Metrics)
	}
	router.Use(middleware.Timeout(rt.options.RequestTimeout))

	origins := rt.options.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	// Health check
	router.Get("/health", rt.healthCheck)
	router.Get("/ready", rt.readinessCheck)
	if rt.options.EnableMetrics {
		router.Handle("/metrics", promhttp.Handler())
	}

	userHandler := handlers.NewUserHandler(rt.commandBus, rt.queryBus, rt.errorHandler, rt.logger)
	connectionHandler := handlers.NewConnectionHandler(rt.commandBus, rt.errorHandler, rt.logger)
	graphHandler := handlers.NewGraphHandler(rt.queryBus, rt.errorHandler, rt.logger)

	router.Route("/api/v2", func(r chi.Router) {
		r.Use(versionMiddleware)

		r.Route("/users", func(r chi.Router) {
			r.Post("/", userHandler.CreateUser)
			r.Get("/{externalID}", userHandler.GetUser)
			r.Patch("/{externalID}", userHandler.RenameUser)
			r.Get("/{externalID}/friends", graphHandler.ListFriends)
			r.Get("/{externalID}/friends-of-friends", graphHandler.ListFriendsOfFriends)
		})

		r.Route("/connections", func(r chi.Router) {
			r.Post("/", connectionHandler.AddConnection)
			r.Delete("/", connectionHandler.RemoveConnection)
		})

		r.Get("/degree", graphHandler.Degree)
	})

	// Legacy v1 paths
	legacy := v1.NewRouter(rt.commandBus, rt.queryBus, rt.logger)
	router.Handle("/users", legacy)
	router.Handle("/users/*", legacy)
	router.Handle("/connections", legacy)
	router.Handle("/connections/*", legacy)

	return router
}

// healthCheck handles health check requests
func (rt *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	common.WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// readinessCheck pings the datastore
func (rt *Router) readinessCheck(w http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
	defer cancel()

	if err := rt.health.Ping(ctx); err != nil {
		rt.logger.Warn("readiness check failed", zap.Error(err))
		common.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	common.WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// versionMiddleware adds API version headers to all responses
func versionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-API-Version", "v2")
		w.Header().Set("X-API-Latest", "v2")
		next.ServeHTTP(w, r)
	})
}
