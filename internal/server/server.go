package server

import (
	"context"
	"database/sql"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/sync/semaphore"

	"zipdrop/internal/archive"
	"zipdrop/internal/storage"
)

const defaultMaxExtractions = 4

// BuildInfo is reported by /health and /metrics.
type BuildInfo struct {
	Version string
	Commit  string
}

type Config struct {
	Addr  string // e.g. ":4000"
	Build BuildInfo

	// Root is required.
	Root      storage.Root
	Extractor archive.Extractor // defaults to archive.ZipExtractor
	Access    AccessPolicy      // defaults to ?admin=true

	MaxUploadBytes int64 // 0 means no limit
	MaxExtractions int64

	// Optional. DB is only probed by health checks; Audit records
	// administrative actions.
	DB    *sql.DB
	Audit AuditStore

	Logger *Logger
}

type Server struct {
	httpServer *http.Server

	root        storage.Root
	extractor   archive.Extractor
	access      AccessPolicy
	locks       *entryLocks
	extractions *semaphore.Weighted
	maxUpload   int64

	db      *sql.DB
	audit   AuditStore
	build   BuildInfo
	log     *Logger
	metrics *Metrics
}

func New(cfg Config) *Server {
	s := &Server{
		root:      cfg.Root,
		extractor: cfg.Extractor,
		access:    cfg.Access,
		locks:     newEntryLocks(),
		maxUpload: cfg.MaxUploadBytes,
		db:        cfg.DB,
		audit:     cfg.Audit,
		build:     cfg.Build,
		log:       cfg.Logger,
		metrics:   GetMetrics(),
	}
	if s.extractor == nil {
		s.extractor = archive.ZipExtractor{}
	}
	if s.access == nil {
		s.access = DefaultAccessPolicy()
	}
	if s.log == nil {
		s.log = DefaultLogger
	}
	n := cfg.MaxExtractions
	if n <= 0 {
		n = defaultMaxExtractions
	}
	s.extractions = semaphore.NewWeighted(n)

	r := mux.NewRouter()

	// Probes and static files are never gated.
	r.HandleFunc("/health", s.HandleHealth).Methods(http.MethodGet)
	r.HandleFunc("/ready", s.HandleReady).Methods(http.MethodGet)
	r.HandleFunc("/live", s.HandleLive).Methods(http.MethodGet)
	r.PathPrefix("/files/").HandlerFunc(s.serveFile).Methods(http.MethodGet, http.MethodHead)

	r.Handle("/admin", s.requireAccess(http.HandlerFunc(s.adminPage))).Methods(http.MethodGet)
	r.Handle("/admin/audit", s.requireAccess(http.HandlerFunc(s.auditHandler))).Methods(http.MethodGet)
	r.Handle("/upload", s.requireAccess(http.HandlerFunc(s.uploadHandler))).Methods(http.MethodPost)
	r.Handle("/list-files", s.requireAccess(http.HandlerFunc(s.listFilesHandler))).Methods(http.MethodGet)
	r.Handle("/delete-file", s.requireAccess(http.HandlerFunc(s.deleteFileHandler))).Methods(http.MethodPost)
	r.Handle("/metrics", s.requireAccess(NewPrometheusExporter(s.metrics, s.build).Handler())).Methods(http.MethodGet)

	// Wrap middleware: requestID -> logging -> security headers -> gzip -> router
	var handler http.Handler = r
	handler = compressionMiddleware(handler)
	handler = securityHeadersMiddleware(handler)
	handler = loggingMiddleware(s.metrics)(handler)
	handler = requestIDMiddleware(handler)

	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the fully wrapped root handler. Tests drive it through
// httptest without opening a listener.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	return s.httpServer.Serve(ln)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
