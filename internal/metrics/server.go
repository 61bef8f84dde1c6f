package metrics

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const probeTimeout = 2 * time.Second

// Probe reports whether a dependency of the process is usable
type Probe func(ctx context.Context) error

// Server exposes /metrics and a /health endpoint backed by probes on a
// port separate from the public API
type Server struct {
	server *http.Server
	port   int
}

// NewServer creates a metrics server. /health answers 503 naming the first
// failing probe, in name order.
func NewServer(port int, probes map[string]Probe) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/health", healthHandler(probes))

	return &Server{
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      10 * time.Second,
		},
		port: port,
	}
}

// Start blocks serving until Shutdown
func (s *Server) Start() error {
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start metrics server on port %d: %w", s.port, err)
	}
	return nil
}

// Shutdown gracefully shuts down the metrics server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func healthHandler(probes map[string]Probe) http.HandlerFunc {
	names := make([]string, 0, len(probes))
	for name := range probes {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
		defer cancel()

		for _, name := range names {
			if err := probes[name](ctx); err != nil {
				RecordError("health", name)
				w.WriteHeader(http.StatusServiceUnavailable)
				fmt.Fprintf(w, "%s unavailable", name)
				return
			}
		}

		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}
}
