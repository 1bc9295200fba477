package server

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"media-catalog/internal/catalog"
	"media-catalog/internal/indexer"
	"media-catalog/internal/logging"
	"media-catalog/internal/middleware"
)

// Store is the catalog surface the ops API reads and edits.
type Store interface {
	ListScanSessions(ctx context.Context, limit int) ([]catalog.ScanSession, error)
	ListGroups(ctx context.Context) ([]catalog.FaceGroup, error)
	CreateGroup(ctx context.Context, name *string) (string, error)
	ReassignGroup(ctx context.Context, faceID, groupID string, score float64) error
	ListMemberships(ctx context.Context) ([]catalog.Membership, error)
	GetByID(ctx context.Context, id string) (*catalog.MediaRecord, error)
	GetFaces(ctx context.Context, mediaID string) ([]catalog.Face, error)
}

// Scanner runs scans and reprocessing on request.
type Scanner interface {
	Scan(ctx context.Context, root string) (indexer.ScanStats, error)
	Reprocess(ctx context.Context, mediaID string) error
	Status() indexer.Status
}

// Check is a named readiness probe, e.g. a database ping.
type Check struct {
	Name string
	Fn   func(ctx context.Context) error
}

// Config configures the ops server.
type Config struct {
	// Roots are scanned by POST /api/scan when the request names no root.
	Roots          []string
	MetricsEnabled bool
	ReadyChecks    []Check
}

// Server is the ops HTTP server: probes, metrics and a small JSON API.
type Server struct {
	router    *mux.Router
	store     Store
	scanner   Scanner
	cfg       Config
	startTime time.Time

	// scans started by POST /api/scan outlive their request
	scanCtx    context.Context
	cancelScan context.CancelFunc
	scans      sync.WaitGroup
}

// New builds the server and registers its routes.
func New(store Store, scanner Scanner, cfg Config) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		router:     mux.NewRouter(),
		store:      store,
		scanner:    scanner,
		cfg:        cfg,
		startTime:  time.Now(),
		scanCtx:    ctx,
		cancelScan: cancel,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.router
	r.Use(middleware.Logger(middleware.DefaultLoggingConfig()))
	r.Use(middleware.Metrics("/metrics"))

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet, http.MethodHead).Name("health")
	r.HandleFunc("/readyz", s.handleReady).Methods(http.MethodGet).Name("ready")
	if s.cfg.MetricsEnabled {
		r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet).Name("metrics")
	}

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/version", s.handleVersion).Methods(http.MethodGet).Name("version")
	api.HandleFunc("/scans", s.handleListScans).Methods(http.MethodGet).Name("scans")
	api.HandleFunc("/scan", s.handleStartScan).Methods(http.MethodPost).Name("scan")
	api.HandleFunc("/groups", s.handleListGroups).Methods(http.MethodGet).Name("groups")
	api.HandleFunc("/groups", s.handleCreateGroup).Methods(http.MethodPost).Name("create-group")
	api.HandleFunc("/groups/{id}/faces", s.handleGroupFaces).Methods(http.MethodGet).Name("group-faces")
	api.HandleFunc("/groups/{id}/faces", s.handleAssignFace).Methods(http.MethodPost).Name("assign-face")
	api.HandleFunc("/media/{id}/faces", s.handleMediaFaces).Methods(http.MethodGet).Name("media-faces")
	api.HandleFunc("/media/{id}/reprocess", s.handleReprocess).Methods(http.MethodPost).Name("reprocess")
	api.HandleFunc("/reprocess", s.handleReprocessBatch).Methods(http.MethodPost).Name("reprocess-batch")
}

// Router exposes the routes for logging and tests.
func (s *Server) Router() *mux.Router {
	return s.router
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Run serves on addr until ctx is done, then shuts down gracefully,
// cancelling and waiting for scans started through the API.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info("Ops server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		s.Close()
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.Close()
	return err
}

// Close cancels scans started through the API and waits for them.
func (s *Server) Close() {
	s.cancelScan()
	s.scans.Wait()
}
