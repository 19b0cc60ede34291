package server

import (
	"go.uber.org/zap"

	"github.com/cvforge/cvforge-backup/pkg/backup"
)

type Option func(s *Server) error

// WithAddr returns an Option which set the server listening address.
func WithAddr(addr string) Option {
	return func(s *Server) error {
		s.Addr = addr
		return nil
	}
}

// WithEngine returns an Option which set the backup engine for Server.
func WithEngine(e *backup.Engine) Option {
	return func(s *Server) error {
		s.engine = e
		return nil
	}
}

// WithSchedule returns an Option which set the cron pattern for automated
// pipeline runs. An empty pattern disables scheduling.
func WithSchedule(pattern string) Option {
	return func(s *Server) error {
		s.schedule = pattern
		return nil
	}
}

// WithLogger returns an Option which set the logger for Server.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) error {
		s.logger = logger
		return nil
	}
}
