package core

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"wpre/internal/types"
)

// defaultRequestTimeout applies when the config leaves REQUEST_TIMEOUT unset.
const defaultRequestTimeout = 29 * time.Second

// NotFoundStatus is the body status of every unknown route.
const NotFoundStatus = "RAIN PREDICTION route not found"

var defaultRedactedHeaders = []string{
	"Authorization",
	"Cookie",
	"X-Api-Key",
}

// MountRoutes registers the global middleware, the domain routes, the health
// check, and the JSON 404 fallback. Known paths hit with the wrong method keep
// chi's 405.
func (s *Server) MountRoutes() {
	s.registerGlobalMiddleware()

	for _, registrar := range s.RouteRegistrars {
		registrar(s.router)
	}

	s.router.Get("/health", s.HandleHealth)
	s.router.NotFound(HandleNotFound)
}

// registerGlobalMiddleware applies middleware in strict order:
//  1. Recoverer       outermost, catches every panic.
//  2. ContextTimeout  soft deadline for upstream calls.
//  3. RequestID       correlation ID for logs and DSS messages.
//  4. RequestLogger
//  5. CORS
//  6. Metrics
func (s *Server) registerGlobalMiddleware() {
	s.router.Use(s.Recoverer)
	s.router.Use(ContextTimeoutMiddleware(s.requestTimeout()))
	s.router.Use(RequestIDMiddleware)
	s.router.Use(RequestLogger(s.Logger, defaultRedactedHeaders))
	s.router.Use(NewCORSMiddleware(s.corsAllowedOrigins()))
	s.router.Use(s.MetricsMiddleware)
}

func (s *Server) requestTimeout() time.Duration {
	if s.Config != nil && s.Config.Server.RequestTimeout > 0 {
		return s.Config.Server.RequestTimeout
	}
	return defaultRequestTimeout
}

func (s *Server) corsAllowedOrigins() []string {
	if s.Config != nil && len(s.Config.Server.CorsAllowedOrigins) > 0 {
		return s.Config.Server.CorsAllowedOrigins
	}
	return []string{"*"}
}

// HandleNotFound answers unknown routes.
func HandleNotFound(w http.ResponseWriter, r *http.Request) {
	JSON(w, r, http.StatusNotFound, map[string]string{"status": NotFoundStatus})
}

// ContextTimeoutMiddleware sets a deadline on the request context. Handlers
// see a cancelled context once it passes; the response is up to them.
func ContextTimeoutMiddleware(duration time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), duration)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequestIDMiddleware reuses an incoming X-Request-Id or generates a UUID,
// stores it in the context, and echoes it on the response.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-Id")
		if requestID == "" {
			requestID = uuid.NewString()
		}

		ctx := types.WithRequestID(r.Context(), requestID)
		w.Header().Set("X-Request-Id", requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
