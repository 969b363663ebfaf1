package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"sentiment-dashboard/internal/auth"
	"sentiment-dashboard/internal/monitoring"
	"sentiment-dashboard/pkg/types"
)

const requestIDHeader = "X-Request-ID"

type requestIDKey struct{}

func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// requestID keeps a caller supplied id if it parses as a UUID.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

// instrument logs one entry per request and records request metrics by
// route pattern.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		monitoring.APIActiveRequests.Inc()
		defer monitoring.APIActiveRequests.Dec()

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := ""
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			route = rctx.RoutePattern()
		}
		duration := time.Since(start)
		monitoring.RecordAPIRequest(r.Method, route, status, duration)

		entry := s.logger.WithFields(logrus.Fields{
			"request_id":  RequestIDFromContext(r.Context()),
			"method":      r.Method,
			"path":        r.URL.Path,
			"route":       route,
			"status":      status,
			"duration_ms": duration.Milliseconds(),
		})
		switch {
		case status >= 500:
			entry.Warn("Request completed")
		case route == "/api/health" || route == "/metrics":
			entry.Debug("Request completed")
		default:
			entry.Info("Request completed")
		}
	})
}

// authenticate turns a bearer token into a types.Viewer on the context.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := s.tokens.FromRequest(r)
		if err != nil {
			msg := "invalid or expired token"
			if errors.Is(err, auth.ErrMissingToken) {
				msg = "authentication required"
			}
			s.writeError(w, http.StatusUnauthorized, CodeUnauthorized, msg)
			return
		}
		ctx := types.WithViewer(r.Context(), claims.Viewer())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// authorize applies the role policy to the request path.
func (s *Server) authorize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		viewer, ok := types.ViewerFromContext(r.Context())
		if !ok {
			s.writeError(w, http.StatusUnauthorized, CodeUnauthorized, "authentication required")
			return
		}
		allowed, err := s.authz.Allowed(viewer.Role, r.URL.Path, r.Method)
		if err != nil {
			s.writeStoreError(w, r, err)
			return
		}
		if !allowed {
			s.writeError(w, http.StatusForbidden, CodeForbidden, "insufficient permissions")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func viewerFrom(r *http.Request) types.Viewer {
	v, _ := types.ViewerFromContext(r.Context())
	return v
}
