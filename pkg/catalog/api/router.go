package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/backmon-io/backmon/internal/catalog/api/auth"
	"github.com/backmon-io/backmon/internal/catalog/api/handlers"
	apiMiddleware "github.com/backmon-io/backmon/internal/catalog/api/middleware"
	"github.com/backmon-io/backmon/internal/logger"
	"github.com/backmon-io/backmon/pkg/backupfs"
	"github.com/backmon-io/backmon/pkg/catalog/store"
	"github.com/backmon-io/backmon/pkg/metrics"
	"github.com/backmon-io/backmon/pkg/scanner"
)

// RouterDeps carries the collaborators the router's handlers need.
type RouterDeps struct {
	// Store is the catalogue store. Required.
	Store store.Store

	// Staging and Validated are the storage gateways reported by the
	// /health/storage probe. Either may be nil.
	Staging   *backupfs.Gateway
	Validated *backupfs.Gateway

	// Scanner enables the /api/v1/scanner endpoints when set.
	Scanner *scanner.Scanner

	// BaseContext bounds the lifetime of manually triggered passes.
	BaseContext context.Context

	// HTTPMetrics instruments every request when set.
	HTTPMetrics metrics.HTTPMetrics
}

// NewRouter creates and configures the chi router with all middleware and routes.
//
// The router is configured with:
//   - Request ID middleware for request tracking
//   - Real IP extraction for proper client identification
//   - Custom request logging using the internal logger
//   - Panic recovery to prevent server crashes
//   - Request timeout to prevent hung requests
//
// Routes:
//   - GET /health - Liveness probe
//   - GET /health/ready - Readiness probe
//   - GET /health/storage - Detailed catalogue and storage health
//   - GET /metrics - Prometheus exposition (when metrics are enabled)
//   - POST /api/v1/auth/login - User authentication
//   - POST /api/v1/auth/refresh - Token refresh
//   - GET /api/v1/auth/me - Current user info
//   - POST /api/v1/users/me/password - Change own password
//   - /api/v1/users/* - User management (admin only)
//   - /api/v1/jobs/* - Expected job catalogue (reads authenticated, writes admin only)
//   - GET /api/v1/jobs/{id}/entries - Per-job history
//   - /api/v1/entries/* - Backup entry history (read only)
//   - POST /api/v1/scanner/run - Trigger a pass (admin only)
//   - GET /api/v1/scanner/status - Last pass stats
func NewRouter(deps RouterDeps, jwtService *auth.JWTService, requestTimeout time.Duration) http.Handler {
	r := chi.NewRouter()

	// Middleware stack - order matters
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	if deps.HTTPMetrics != nil {
		r.Use(apiMiddleware.Metrics(deps.HTTPMetrics))
	}
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))

	// Health routes - unauthenticated
	healthHandler := handlers.NewHealthHandler(deps.Store, deps.Staging, deps.Validated)
	r.Route("/health", func(r chi.Router) {
		r.Get("/", healthHandler.Liveness)
		r.Get("/ready", healthHandler.Readiness)
		r.Get("/storage", healthHandler.Storage)
	})

	// Prometheus exposition - unauthenticated, like the health probes
	if metrics.IsEnabled() {
		r.Method(http.MethodGet, "/metrics", metrics.Handler())
	}

	// Root redirect to health for convenience
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/health", http.StatusTemporaryRedirect)
	})

	authHandler := handlers.NewAuthHandler(deps.Store, jwtService)
	userHandler, err := handlers.NewUserHandler(deps.Store, jwtService)
	if err != nil {
		// This is a programming error - jwtService should always be provided
		panic("failed to create user handler: " + err.Error())
	}
	jobHandler := handlers.NewJobHandler(deps.Store)
	entryHandler := handlers.NewEntryHandler(deps.Store)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Auth routes - mostly unauthenticated
		r.Route("/auth", func(r chi.Router) {
			// Public endpoints
			r.Post("/login", authHandler.Login)
			r.Post("/refresh", authHandler.Refresh)

			// Authenticated endpoint
			r.Group(func(r chi.Router) {
				r.Use(apiMiddleware.JWTAuth(jwtService))
				r.Get("/me", authHandler.Me)
			})
		})

		// Password change - authenticated but exempt from MustChangePassword check
		// This allows users who must change their password to actually change it
		r.Route("/users/me/password", func(r chi.Router) {
			r.Use(apiMiddleware.JWTAuth(jwtService))
			r.Post("/", userHandler.ChangeOwnPassword)
		})

		// Protected routes - require authentication and password change complete
		r.Group(func(r chi.Router) {
			r.Use(apiMiddleware.JWTAuth(jwtService))
			r.Use(apiMiddleware.RequirePasswordChange("/api/v1/users/me/password"))

			// User management
			r.Route("/users", func(r chi.Router) {
				// Self-access allowed - handler does its own authorization
				r.Get("/{username}", userHandler.Get)

				// Admin-only operations
				r.Group(func(r chi.Router) {
					r.Use(apiMiddleware.RequireAdmin())

					r.Post("/", userHandler.Create)
					r.Get("/", userHandler.List)
					r.Put("/{username}", userHandler.Update)
					r.Delete("/{username}", userHandler.Delete)
					r.Post("/{username}/password", userHandler.ResetPassword)
				})
			})

			// Expected job catalogue - reads for every authenticated
			// user, mutations admin only
			r.Route("/jobs", func(r chi.Router) {
				r.Get("/", jobHandler.List)
				r.Get("/{id}", jobHandler.Get)
				r.Get("/{id}/entries", jobHandler.ListEntries)

				r.Group(func(r chi.Router) {
					r.Use(apiMiddleware.RequireAdmin())

					r.Post("/", jobHandler.Create)
					r.Put("/{id}", jobHandler.Update)
					r.Delete("/{id}", jobHandler.Delete)
				})
			})

			// Backup entry history - read only by design, the scanner
			// is the sole writer
			r.Route("/entries", func(r chi.Router) {
				r.Get("/", entryHandler.List)
				r.Get("/{id}", entryHandler.Get)
			})

			// Scanner control
			if deps.Scanner != nil {
				scannerHandler := handlers.NewScannerHandler(deps.Scanner, deps.BaseContext)
				r.Route("/scanner", func(r chi.Router) {
					r.Get("/status", scannerHandler.Status)

					r.Group(func(r chi.Router) {
						r.Use(apiMiddleware.RequireAdmin())
						r.Post("/run", scannerHandler.Run)
					})
				})
			}
		})
	})

	return r
}

// isHealthPath returns true if the request path is a healthcheck endpoint.
func isHealthPath(path string) bool {
	return path == "/health" || strings.HasPrefix(path, "/health/") || path == "/metrics"
}

// requestLogger is a custom middleware that logs requests using the internal logger.
//
// It logs:
//   - Request start (DEBUG level): method, path, remote addr
//   - Request completion (INFO level): method, path, status, duration
//   - Healthcheck requests are logged at DEBUG level to reduce noise
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := middleware.GetReqID(r.Context())

		logger.Debug("API request started",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
		)

		// Wrap response writer to capture status code
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		duration := time.Since(start)

		logArgs := []any{
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", duration.String(),
		}

		// Log healthcheck requests at DEBUG to avoid polluting logs in k8s
		if isHealthPath(r.URL.Path) {
			logger.Debug("API request completed", logArgs...)
		} else {
			logger.Info("API request completed", logArgs...)
		}
	})
}
