// Package status serves the local status endpoint (GET /status) and Prometheus metrics
// (GET /metrics).
package status

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/akyaiy/cortexlink/internal/core/utils"
	"github.com/akyaiy/cortexlink/internal/cortex/conn"
	"github.com/akyaiy/cortexlink/internal/engine/config"
	"github.com/akyaiy/cortexlink/internal/engine/logs"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/net/netutil"
)

// MaxConnections bounds concurrent clients of the status listener.
const MaxConnections = 16

// Report is the body of GET /status.
type Report struct {
	Instance   string       `json:"instance"`
	Client     string       `json:"client"`
	Version    string       `json:"version"`
	Uptime     string       `json:"uptime"`
	Attempts   int          `json:"connection_attempts"`
	Connection *conn.Status `json:"connection,omitempty"`
}

// ReportFunc builds the current report.
type ReportFunc func() Report

func NewRouter(report ReportFunc, gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get(config.StatusRoute, func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteJSON(w, report())
	})
	if gatherer != nil {
		r.Handle(config.MetricsRoute, promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}
	r.Route("/favicon.ico", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})
	})
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteJSONError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	return r
}

type Server struct {
	srv      *http.Server
	addr     string
	log      *slog.Logger
	listener net.Listener
}

func New(address, port string, handler http.Handler, log *slog.Logger) *Server {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	addr := net.JoinHostPort(address, port)
	return &Server{
		addr: addr,
		log:  log,
		srv: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
			ErrorLog:          logErrorLog(log),
		},
	}
}

func logErrorLog(l *slog.Logger) *log.Logger {
	return log.New(&logs.SlogWriter{Logger: l, Level: slog.LevelError}, "", 0)
}

// Start binds the listener and serves in the background. onFail is called if serving
// stops with an error other than a shutdown.
func (s *Server) Start(onFail func(error)) error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("status listener: %w", err)
	}
	s.listener = netutil.LimitListener(listener, MaxConnections)
	s.log.Info("status server listening", slog.String("addr", s.Addr()))

	go func() {
		if err := s.srv.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("status server failed", slog.String("err", err.Error()))
			if onFail != nil {
				onFail(err)
			}
		}
	}()
	return nil
}

// Addr returns the bound address once started, the configured one before.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
