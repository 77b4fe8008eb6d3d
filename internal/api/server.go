package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/heimdex/dsync/internal/dataset"
	"github.com/heimdex/dsync/internal/mirror"
	"github.com/heimdex/dsync/internal/upload"
)

// DatasetService is the remote dataset surface exposed over HTTP.
type DatasetService interface {
	Info() dataset.Info
	FetchRemoteFiles(ctx context.Context, filters dataset.Filters, sort string) (*dataset.ItemIterator, error)
	RunIDs(ctx context.Context, cmd dataset.Command, ids []dataset.ItemID) error
	Push(ctx context.Context, sources []upload.Source, opts dataset.PushOptions) (*upload.Handler, error)
	Export(ctx context.Context, opts dataset.ExportOptions) error
	GetReport(ctx context.Context, granularity string) (string, error)
	WorkviewURLForItem(item dataset.DatasetItem) string
}

// MirrorService is the local mirror surface exposed over HTTP.
type MirrorService interface {
	Items(ctx context.Context, q mirror.ItemQuery) ([]*mirror.Item, error)
	CountItems(ctx context.Context) (int, error)
	Runs(ctx context.Context, limit int) ([]*mirror.SyncRun, error)
	RequestSync(ctx context.Context, filters dataset.Filters) (*mirror.SyncRun, error)
	IsSyncing() bool
}

// ConfigStore holds the local auth token.
type ConfigStore interface {
	GetConfig(ctx context.Context, key string) (string, error)
}

type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

type ServerConfig struct {
	Port       int
	Dataset    DatasetService
	Mirror     MirrorService
	Runner     *mirror.Runner
	Repository ConfigStore
	Registry   *prometheus.Registry
	Metrics    *Metrics
	Logger     *slog.Logger
	StartTime  time.Time
	DeviceID   string
	Version    string
	// BaseContext outlives single requests; non-blocking pushes run under it.
	BaseContext context.Context
}

func NewServer(cfg ServerConfig) *Server {
	router := NewRouter(cfg)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf("127.0.0.1:%d", cfg.Port),
			Handler:      router,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 0,
			IdleTimeout:  60 * time.Second,
		},
		logger: cfg.Logger,
	}
}

func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) Addr() string {
	return s.httpServer.Addr
}
