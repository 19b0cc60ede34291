package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/valve"
	"github.com/jpillora/backoff"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/cvforge/cvforge-backup/pkg/backup"
	"github.com/cvforge/cvforge-backup/pkg/registry"
)

// maxScheduleRetries bounds how often one scheduled run is retried before
// waiting for the next cron tick.
const maxScheduleRetries = 3

// Server defines parameters for running the backup agent HTTP server.
type Server struct {
	Addr        string
	router      *chi.Mux
	engine      *backup.Engine
	schedule    string
	cron        *cron.Cron
	useUnixSock bool

	// signal chan use for testing.
	testSignalCh chan os.Signal

	logger *zap.Logger
}

// New creates new server instance.
func New(opts ...Option) (*Server, error) {
	s := &Server{}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	if s.engine == nil {
		return nil, errors.New("nil backup engine")
	}

	s.router = chi.NewRouter()

	if s.logger == nil {
		l, err := zap.NewDevelopment()
		if err != nil {
			return nil, err
		}
		s.logger = l
	}

	s.setupRoutes()
	s.useUnixSock = strings.HasPrefix(s.Addr, "unix://")
	s.Addr = strings.TrimPrefix(s.Addr, "unix://")

	return s, nil
}

func (s *Server) setupRoutes() {
	s.router.Route("/backups", func(r chi.Router) {
		r.Get("/", s.ListBackups)
		r.Post("/", s.CreateBackup)
		r.Post("/restore", s.Restore)
	})
	s.router.Get("/recovery-points", s.ListRecoveryPoints)
	s.router.Get("/report", s.Report)
}

// ListBackups returns every registry record, newest first.
func (s *Server) ListBackups(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.ListBackups())
}

// ListRecoveryPoints returns every recovery point.
func (s *Server) ListRecoveryPoints(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.ListRecoveryPoints())
}

// CreateBackup triggers a backup of the configured sources.
func (s *Server) CreateBackup(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Type string `json:"type"`
	}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&body)
	}
	if body.Type == "" {
		body.Type = registry.TypeManual
	}

	rec, err := s.engine.CreateBackup(body.Type)
	if err != nil {
		s.logger.Error("backup failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

// Restore restores a backup, to the configured root when no path is given.
func (s *Server) Restore(w http.ResponseWriter, r *http.Request) {
	var body struct {
		BackupID string `json:"backup_id"`
		Path     string `json:"path"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	err := s.engine.Restore(body.BackupID, body.Path)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]string{"status": "restored", "backup_id": body.BackupID})
	case errors.Is(err, backup.ErrBackupNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, backup.ErrInvalidBackupState):
		writeError(w, http.StatusConflict, err)
	default:
		s.logger.Error("restore failed", zap.String("backup_id", body.BackupID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, err)
	}
}

// Report generates and returns the current health report.
func (s *Server) Report(w http.ResponseWriter, r *http.Request) {
	report, err := s.engine.GenerateReport()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

// scheduledRun executes the maintenance pipeline for one cron tick,
// retrying with jittered backoff before giving up until the next tick.
func (s *Server) scheduledRun() {
	b := &backoff.Backoff{Jitter: true}
	for attempt := 1; attempt <= maxScheduleRetries; attempt++ {
		report, err := s.engine.Run()
		if err == nil {
			s.logger.Info("scheduled run completed", zap.Int("health_score", report.HealthScore))
			return
		}
		s.logger.Error("scheduled run failed",
			zap.Int("attempt", attempt), zap.Error(err))
		if attempt < maxScheduleRetries {
			time.Sleep(b.Duration())
		}
	}
	s.logger.Error("scheduled run gave up until next tick")
}

func (s *Server) Run() error {
	// Graceful valve shut-off package to manage code preemption and shutdown signaling.
	valv := valve.New()
	baseCtx := valv.Context()

	if s.schedule != "" {
		s.cron = cron.New()
		if _, err := s.cron.AddFunc(s.schedule, s.scheduledRun); err != nil {
			return err
		}
		s.cron.Start()
		defer s.cron.Stop()
		s.logger.Info("scheduler started", zap.String("pattern", s.schedule))
	}

	srv := http.Server{Handler: chi.ServerBaseContext(baseCtx, s.router)}

	c := make(chan os.Signal, 1)
	if s.testSignalCh != nil {
		c = s.testSignalCh
	}
	signal.Notify(c, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		<-c
		s.logger.Info("shutting down...")

		if err := valv.Shutdown(20 * time.Second); err != nil {
			s.logger.Error("failed to shutdown valv")
		}

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			s.logger.Error("failed to shutdown http server")
		}

		select {
		case <-time.After(21 * time.Second):
			s.logger.Error("not all connections done")
		case <-ctx.Done():
		}
	}()

	if s.useUnixSock {
		unixListener, err := net.Listen("unix", s.Addr)
		if err != nil {
			return err
		}
		return srv.Serve(unixListener)
	}

	srv.Addr = s.Addr
	return srv.ListenAndServe()
}
