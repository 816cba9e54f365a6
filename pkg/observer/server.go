package observer

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/ehudso7/vrux-observe/pkg/logger"
)

const (
	httpReadTimeout  = 10 * time.Second
	httpWriteTimeout = 10 * time.Second
	httpIdleTimeout  = 60 * time.Second
)

// statusServer serves the operational status API: an unauthenticated
// liveness probe and the health snapshot used by observectl.
type statusServer struct {
	srv    *http.Server
	apiKey string
	health *healthEvaluator
	logger logger.Logger
}

func newStatusServer(addr, apiKey string, health *healthEvaluator, log logger.Logger) *statusServer {
	s := &statusServer{
		apiKey: apiKey,
		health: health,
		logger: log,
	}

	router := mux.NewRouter()
	router.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()
	api.Use(s.apiKeyMiddleware)
	api.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)

	s.srv = &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  httpReadTimeout,
		WriteTimeout: httpWriteTimeout,
		IdleTimeout:  httpIdleTimeout,
	}

	return s
}

// apiKeyMiddleware checks the X-API-Key header, falling back to an
// api_key query parameter. An empty configured key leaves the API open.
func (s *statusServer) apiKeyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey == "" {
			next.ServeHTTP(w, r)
			return
		}

		key := r.Header.Get("X-API-Key")
		if key == "" {
			key = r.URL.Query().Get("api_key")
		}

		if key != s.apiKey {
			s.logger.Warn().
				Str("remote_addr", r.RemoteAddr).
				Str("path", r.URL.Path).
				Msg("Unauthorized status API request")
			http.Error(w, "Unauthorized", http.StatusUnauthorized)

			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *statusServer) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, map[string]string{"status": "ok"})
}

func (s *statusServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, s.health.Current(r.Context()))
}

func (s *statusServer) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error().Err(err).Msg("Failed to encode status response")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// Start begins serving in the background. Listen failures other than a
// normal shutdown are logged, not returned.
func (s *statusServer) Start(_ context.Context) error {
	s.logger.Info().Str("addr", s.srv.Addr).Msg("Starting status API server")

	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("Status API server failed")
		}
	}()

	return nil
}

// Stop drains in-flight requests and closes the listener.
func (s *statusServer) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
