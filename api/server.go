package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"breathing_club_bot/internal/monitoring"
)

const shutdownTimeout = 10 * time.Second

type Server struct {
	router *mux.Router
	port   string
	logger *monitoring.Logger
	srv    *http.Server
}

func NewServer(port string, logger *monitoring.Logger) *Server {
	return &Server{
		router: mux.NewRouter(),
		port:   port,
		logger: logger,
	}
}

// SetupRoutes настраивает все маршруты сервера
func (s *Server) SetupRoutes(webhook *WebhookHandler, health *monitoring.HealthChecker) {
	s.router.Use(requestIDMiddleware)
	s.router.Use(s.loggingMiddleware)

	webhook.SetupRoutes(s.router)

	s.router.HandleFunc("/health", plainOK).Methods(http.MethodGet)
	s.router.HandleFunc("/", plainOK).Methods(http.MethodGet)
	if health != nil {
		s.router.HandleFunc("/health/details", health.HealthHandler).Methods(http.MethodGet)
	}
	s.router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
}

// Handler возвращает роутер, обернутый в otelhttp
func (s *Server) Handler() http.Handler {
	return otelhttp.NewHandler(s.router, "http")
}

func plainOK(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// requestIDMiddleware берет X-Request-ID из запроса или генерирует новый
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)
		ctx := monitoring.ContextWithRequestID(r.Context(), requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// loggingMiddleware логирует запросы и пишет метрики
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		endpoint := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tpl, err := route.GetPathTemplate(); err == nil {
				endpoint = tpl
			}
		}
		duration := time.Since(start)
		monitoring.RecordHTTPRequest(r.Method, endpoint, strconv.Itoa(rec.status), duration)

		s.logger.WithContext(r.Context()).WithFields(map[string]interface{}{
			"remote_addr": r.RemoteAddr,
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      rec.status,
			"duration_ms": duration.Milliseconds(),
		}).Debug("HTTP запрос")
	})
}

// Start запускает HTTP-сервер и останавливает его при отмене ctx
func (s *Server) Start(ctx context.Context) error {
	s.srv = &http.Server{
		Addr:              ":" + s.port,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Infof("🌐 HTTP-сервер запущен на порту %s", s.port)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.logger.Info("🛑 Останавливаем HTTP-сервер")
	return s.srv.Shutdown(shutdownCtx)
}

// GetPort возвращает порт сервера
func (s *Server) GetPort() string {
	return s.port
}
