package server

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	_ "net/http/pprof" // Registers pprof handlers on http.DefaultServeMux
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/quic-go/quic-go"
	"github.com/quic-go/quic-go/http3"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/zsiec/mediatime/internal/calc"
	"github.com/zsiec/mediatime/internal/config"
	"github.com/zsiec/mediatime/internal/errors"
	"github.com/zsiec/mediatime/internal/health"
	"github.com/zsiec/mediatime/internal/timeline"
)

// healthCheckInterval is how often the readiness state is refreshed.
const healthCheckInterval = 30 * time.Second

// Dependencies are the services exposed over the API.
type Dependencies struct {
	Evaluator *calc.Evaluator
	Timelines *timeline.Service
	Health    *health.Manager
}

// Server serves the API over HTTP/1.1 and, when TLS is configured, HTTP/3.
type Server struct {
	config       *config.ServerConfig
	metricsCfg   config.MetricsConfig
	router       *mux.Router
	httpServer   *http.Server
	http3Server  *http3.Server
	metricsSrv   *http.Server
	logger       *logrus.Entry
	errorHandler *errors.ErrorHandler
	limiter      *rate.Limiter

	evaluator *calc.Evaluator
	timelines *timeline.Service
	healthMgr *health.Manager
}

// New creates a server with its routes registered.
func New(cfg *config.Config, log *logrus.Entry, deps Dependencies) *Server {
	s := &Server{
		config:       &cfg.Server,
		metricsCfg:   cfg.Metrics,
		router:       mux.NewRouter(),
		logger:       log.WithField("component", "server"),
		errorHandler: errors.NewErrorHandler(log),
		evaluator:    deps.Evaluator,
		timelines:    deps.Timelines,
		healthMgr:    deps.Health,
	}

	if cfg.RateLimit.Enabled {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit.RequestsPerSecond), cfg.RateLimit.Burst)
	}

	if s.config.HTTP3Enabled() {
		s.http3Server = &http3.Server{
			Addr:    fmt.Sprintf(":%d", s.config.HTTP3Port),
			Handler: s.router,
			QUICConfig: &quic.Config{
				MaxIncomingStreams:    s.config.MaxIncomingStreams,
				MaxIncomingUniStreams: s.config.MaxIncomingUniStreams,
				MaxIdleTimeout:        s.config.MaxIdleTimeout,
			},
		}
	}

	s.setupRoutes()
	return s
}

// Start runs the listeners until ctx is cancelled or one of them fails, then
// shuts everything down.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 3)

	if err := s.startHTTPServer(errCh); err != nil {
		return err
	}
	if s.http3Server != nil {
		if err := s.startHTTP3Server(errCh); err != nil {
			s.closeAll()
			return err
		}
	}
	if s.metricsCfg.Enabled {
		s.startMetricsServer(errCh)
	}

	if s.healthMgr != nil {
		go s.healthMgr.StartPeriodicChecks(ctx, healthCheckInterval)
	}

	select {
	case err := <-errCh:
		s.closeAll()
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout())
		defer cancel()
		return s.Shutdown(shutdownCtx)
	}
}

func (s *Server) startHTTPServer(errCh chan<- error) error {
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.HTTPPort),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	useTLS := s.config.HTTP3Enabled()
	if useTLS {
		tlsConfig, err := s.tlsConfig(tls.VersionTLS12, "h2", "http/1.1")
		if err != nil {
			return err
		}
		s.httpServer.TLSConfig = tlsConfig
	}

	go func() {
		s.logger.WithFields(logrus.Fields{
			"port": s.config.HTTPPort,
			"tls":  useTLS,
		}).Info("Starting HTTP server")

		var err error
		if useTLS {
			err = s.httpServer.ListenAndServeTLS("", "")
		} else {
			err = s.httpServer.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()
	return nil
}

func (s *Server) startHTTP3Server(errCh chan<- error) error {
	tlsConfig, err := s.tlsConfig(tls.VersionTLS13, "h3")
	if err != nil {
		return err
	}
	s.http3Server.TLSConfig = http3.ConfigureTLSConfig(tlsConfig)

	go func() {
		s.logger.WithField("port", s.config.HTTP3Port).Info("Starting HTTP/3 server")
		if err := s.http3Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http3 server: %w", err)
		}
	}()
	return nil
}

func (s *Server) startMetricsServer(errCh chan<- error) {
	handler := http.NewServeMux()
	handler.Handle(s.metricsCfg.Path, promhttp.Handler())

	s.metricsSrv = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.metricsCfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		s.logger.WithFields(logrus.Fields{
			"port": s.metricsCfg.Port,
			"path": s.metricsCfg.Path,
		}).Info("Starting metrics server")
		if err := s.metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("metrics server: %w", err)
		}
	}()
}

func (s *Server) tlsConfig(minVersion uint16, protos ...string) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(s.config.TLSCertFile, s.config.TLSKeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load TLS certificates: %w", err)
	}
	return &tls.Config{
		MinVersion:   minVersion,
		Certificates: []tls.Certificate{cert},
		NextProtos:   protos,
	}, nil
}

func (s *Server) shutdownTimeout() time.Duration {
	if s.config.ShutdownTimeout > 0 {
		return s.config.ShutdownTimeout
	}
	return 10 * time.Second
}

// Shutdown stops every listener. HTTP/1.1 connections are drained until ctx
// expires; the HTTP/3 server is closed immediately.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down servers")

	var firstErr error
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			firstErr = fmt.Errorf("failed to shutdown http server: %w", err)
		}
	}
	if s.http3Server != nil {
		if err := s.http3Server.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to shutdown http3 server: %w", err)
		}
	}
	if s.metricsSrv != nil {
		if err := s.metricsSrv.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to shutdown metrics server: %w", err)
		}
	}

	if firstErr == nil {
		s.logger.Info("Server shutdown complete")
	}
	return firstErr
}

func (s *Server) closeAll() {
	if s.httpServer != nil {
		_ = s.httpServer.Close()
	}
	if s.http3Server != nil {
		_ = s.http3Server.Close()
	}
	if s.metricsSrv != nil {
		_ = s.metricsSrv.Close()
	}
}

// setupRoutes configures the middleware chain and all routes.
func (s *Server) setupRoutes() {
	s.router.Use(s.requestLoggerMiddleware)
	s.router.Use(s.errorHandler.Middleware)
	s.router.Use(s.metricsMiddleware)
	s.router.Use(s.corsMiddleware)
	s.router.Use(s.altSvcMiddleware)
	s.router.Use(s.rateLimitMiddleware)
	s.router.Use(s.bodyLimitMiddleware)

	// Preflights for any path; corsMiddleware answers them. Other requests
	// fall through to the path routes.
	s.router.MatcherFunc(isPreflight).HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	if s.healthMgr != nil {
		healthHandler := health.NewHandler(s.healthMgr)
		s.router.HandleFunc("/health", healthHandler.HandleHealth).Methods(http.MethodGet)
		s.router.HandleFunc("/ready", healthHandler.HandleReady).Methods(http.MethodGet)
		s.router.HandleFunc("/live", healthHandler.HandleLive).Methods(http.MethodGet)
	}

	s.router.HandleFunc("/version", s.handleVersion).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/operations", s.handleOperations).Methods(http.MethodGet)
	api.HandleFunc("/time/eval", s.handleEval).Methods(http.MethodPost)
	api.HandleFunc("/time/parse", s.handleParse).Methods(http.MethodGet)

	if s.timelines != nil {
		api.HandleFunc("/timelines", s.handleListTimelines).Methods(http.MethodGet)
		api.HandleFunc("/timelines/{id}", s.handleGetTimeline).Methods(http.MethodGet)
		api.HandleFunc("/timelines/{id}", s.handleDeleteTimeline).Methods(http.MethodDelete)
		api.HandleFunc("/timelines/{id}/position", s.handleSetPosition).Methods(http.MethodPut)
		api.HandleFunc("/timelines/{id}/duration", s.handleSetDuration).Methods(http.MethodPut)
		api.HandleFunc("/timelines/{id}/buffered", s.handleAddBuffered).Methods(http.MethodPost)
		api.HandleFunc("/timelines/{id}/rtp", s.handleRTP).Methods(http.MethodPost)
		api.HandleFunc("/timelines/{id}/rtcp", s.handleRTCP).Methods(http.MethodPost)
	}

	if s.config.DebugEndpoints {
		s.setupDebugEndpoints()
	}

	s.router.NotFoundHandler = http.HandlerFunc(s.errorHandler.HandleNotFound)
	s.router.MethodNotAllowedHandler = http.HandlerFunc(s.errorHandler.HandleMethodNotAllowed)
}

// setupDebugEndpoints mounts pprof and a debug info endpoint.
func (s *Server) setupDebugEndpoints() {
	s.logger.Info("Enabling debug endpoints")
	s.router.PathPrefix("/debug/pprof/").Handler(http.DefaultServeMux)
	s.router.HandleFunc("/debug/info", s.handleDebugInfo).Methods(http.MethodGet)
}

// GetRouter returns the router for testing.
func (s *Server) GetRouter() *mux.Router {
	return s.router
}
