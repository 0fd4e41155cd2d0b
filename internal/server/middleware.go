package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/zsiec/mediatime/internal/errors"
	"github.com/zsiec/mediatime/internal/logger"
	"github.com/zsiec/mediatime/internal/metrics"
)

// requestLoggerMiddleware assigns request ids and stores a request scoped
// logger in the context.
func (s *Server) requestLoggerMiddleware(next http.Handler) http.Handler {
	return logger.RequestLoggerMiddleware(s.logger)(next)
}

// metricsMiddleware records request counts and latency by route template so
// stream ids do not become label values.
func (s *Server) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isProbe(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		rw := logger.NewResponseWriter(w)
		next.ServeHTTP(rw, r)

		metrics.RecordHTTPRequest(r.Method, routeTemplate(r), rw.StatusCode(), time.Since(start).Seconds())
	})
}

func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tmpl, err := route.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return "unmatched"
}

// isProbe reports whether path is one of the health endpoints.
func isProbe(path string) bool {
	return path == "/health" || path == "/ready" || path == "/live"
}

// corsMiddleware answers preflight requests and sets the CORS headers for
// the configured origins. An empty list or "*" allows any origin.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := s.allowedOrigin(r.Header.Get("Origin")); origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			if origin != "*" {
				w.Header().Add("Vary", "Origin")
			}
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+logger.RequestIDHeader)
			w.Header().Set("Access-Control-Max-Age", "86400")
		}

		if isPreflight(r, nil) {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// isPreflight reports whether r is a CORS preflight request. Its signature
// is a mux.MatcherFunc.
func isPreflight(r *http.Request, _ *mux.RouteMatch) bool {
	return r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != ""
}

func (s *Server) allowedOrigin(origin string) string {
	if len(s.config.AllowedOrigins) == 0 {
		return "*"
	}
	for _, allowed := range s.config.AllowedOrigins {
		if allowed == "*" {
			return "*"
		}
		if origin != "" && strings.EqualFold(allowed, origin) {
			return origin
		}
	}
	return ""
}

// altSvcMiddleware advertises the HTTP/3 listener to HTTP/1.1 clients.
func (s *Server) altSvcMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.http3Server != nil && r.ProtoMajor < 3 {
			if err := s.http3Server.SetQUICHeaders(w.Header()); err != nil {
				logger.FromContext(r.Context()).WithError(err).Debug("Failed to set Alt-Svc header")
			}
		}
		next.ServeHTTP(w, r)
	})
}

// rateLimitMiddleware rejects requests beyond the configured rate with a 429.
// Health probes are never limited.
func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter == nil || isProbe(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		if !s.limiter.Allow() {
			metrics.IncrementRateLimited()
			w.Header().Set("Retry-After", "1")
			s.errorHandler.HandleError(w, r, errors.NewRateLimitError("Too many requests"))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// bodyLimitMiddleware caps request bodies at MaxBodyBytes.
func (s *Server) bodyLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.config.MaxBodyBytes > 0 && r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxBodyBytes)
		}
		next.ServeHTTP(w, r)
	})
}
