package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/collatz-app/collatz/internal/metrics"
	"github.com/collatz-app/collatz/internal/status"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// OpsServer serves /healthz and /metrics on a TCP address.
type OpsServer struct {
	srv      *http.Server
	listener net.Listener
	logger   *zap.Logger
}

type healthResponse struct {
	Status string    `json:"status"`
	Since  time.Time `json:"since"`
}

// NewOpsHandler builds the ops router.
func NewOpsHandler(m *metrics.Collector, machine *status.Machine, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(requestLogger(logger))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		st := machine.Current()
		code := http.StatusOK
		if st == status.Error {
			code = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(healthResponse{Status: string(st), Since: machine.Since()})
	})
	r.Method(http.MethodGet, "/metrics", m.Handler())
	return r
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug("ops request",
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("took", time.Since(start)),
			)
		})
	}
}

// NewOpsServer binds addr. The listener is open when it returns.
func NewOpsServer(addr string, h http.Handler, logger *zap.Logger) (*OpsServer, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	return &OpsServer{
		srv:      &http.Server{Handler: h, ReadHeaderTimeout: 5 * time.Second},
		listener: lis,
		logger:   logger,
	}, nil
}

// Addr returns the bound address.
func (s *OpsServer) Addr() string { return s.listener.Addr().String() }

// Start serves until Stop. Blocks.
func (s *OpsServer) Start() error {
	s.logger.Info("ops server starting", zap.String("addr", s.Addr()))
	if err := s.srv.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop shuts the server down, waiting for in-flight requests until ctx ends.
func (s *OpsServer) Stop(ctx context.Context) {
	if err := s.srv.Shutdown(ctx); err != nil {
		s.logger.Warn("ops server shutdown", zap.Error(err))
	}
}
