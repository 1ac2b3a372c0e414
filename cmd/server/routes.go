package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/himanishpuri/SonicMatch/pkg/logger"
)

// setupRoutes registers all HTTP routes and middleware
func (s *Server) setupRoutes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/", s.handleRoot)

	// Health endpoints
	mux.HandleFunc("GET /health", s.handleHealth)
	if s.registry != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	}

	// Track management endpoints
	mux.HandleFunc("GET /api/tracks", s.handleListTracks)
	mux.HandleFunc("POST /api/tracks", s.handleAddTrack)
	mux.HandleFunc("POST /api/tracks/youtube", s.handleAddYouTubeTrack)
	mux.HandleFunc("POST /api/tracks/batch", s.handleBatchFingerprint)
	mux.HandleFunc("GET /api/tracks/{id}", s.handleGetTrack)
	mux.HandleFunc("DELETE /api/tracks/{id}", s.handleDeleteTrack)
	mux.HandleFunc("GET /api/tracks/{id}/similar", s.handleSimilar)

	// Recognition endpoints
	mux.HandleFunc("POST /api/recognize", s.handleRecognize)
	mux.HandleFunc("POST /api/recognize/bundle", s.handleRecognizeBundle)
	mux.HandleFunc("GET /api/recognitions", s.handleRecognitions)

	// Pure bundle endpoints
	mux.HandleFunc("POST /api/score", s.handleScore)
	mux.HandleFunc("POST /api/fingerprint", s.handleFingerprint)

	return loggingMiddleware(corsMiddleware(s.config.AllowedOrigins)(mux))
}

// corsMiddleware adds CORS headers to responses
func corsMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			allowed := false
			if len(allowedOrigins) == 0 || (len(allowedOrigins) == 1 && allowedOrigins[0] == "*") {
				w.Header().Set("Access-Control-Allow-Origin", "*")
				allowed = true
			} else {
				for _, allowedOrigin := range allowedOrigins {
					if allowedOrigin == origin {
						w.Header().Set("Access-Control-Allow-Origin", origin)
						w.Header().Add("Vary", "Origin")
						w.Header().Set("Access-Control-Allow-Credentials", "true")
						allowed = true
						break
					}
				}
			}

			if allowed {
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")
				w.Header().Set("Access-Control-Max-Age", "3600")
			}

			// Handle preflight requests
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// loggingMiddleware logs all HTTP requests
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		start := time.Now()

		log := logger.GetLogger()
		log.Debugf("%s %s from %s", r.Method, r.URL.Path, getClientIP(r))

		next.ServeHTTP(wrapped, r)

		log.Infof("%s %s -> %d (%s)", r.Method, r.URL.Path, wrapped.statusCode, time.Since(start).Round(time.Millisecond))
	})
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// getClientIP extracts the client IP from the request
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	ip := r.RemoteAddr
	if idx := strings.LastIndex(ip, ":"); idx != -1 {
		ip = ip[:idx]
	}
	return ip
}

// Start serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.config.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.setupRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.log.Infof("🚀 SonicMatch server starting on %s", addr)
	s.log.Infof("   Database: %s", s.config.DBPath)
	s.log.Infof("   Threshold: %.2f", s.config.Threshold)
	s.log.Infof("   CORS Origins: %v", s.config.AllowedOrigins)
	s.log.Infof("Endpoints:")
	s.log.Infof("   GET    /health                   - Health check")
	s.log.Infof("   GET    /metrics                  - Prometheus metrics")
	s.log.Infof("   GET    /api/tracks               - List all tracks")
	s.log.Infof("   POST   /api/tracks               - Add track from file")
	s.log.Infof("   POST   /api/tracks/youtube       - Add track from YouTube URL")
	s.log.Infof("   POST   /api/tracks/batch         - Fingerprint stored tracks again")
	s.log.Infof("   GET    /api/tracks/{id}          - Get track by ID")
	s.log.Infof("   DELETE /api/tracks/{id}          - Delete track by ID")
	s.log.Infof("   GET    /api/tracks/{id}/similar  - Most similar references")
	s.log.Infof("   POST   /api/recognize            - Recognize audio file")
	s.log.Infof("   POST   /api/recognize/bundle     - Recognize a feature bundle")
	s.log.Infof("   POST   /api/score                - Score two bundles")
	s.log.Infof("   POST   /api/fingerprint          - Hash a bundle")
	s.log.Infof("   GET    /api/recognitions         - Recognition log")

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Infof("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
