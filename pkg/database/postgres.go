package database

import (
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/noah-isme/prepdeck-marketing-api/pkg/config"
)

// DSN renders the lib/pq connection string. The change listener dials with the same string.
func DSN(cfg config.DatabaseConfig) string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host,
		cfg.Port,
		cfg.User,
		cfg.Password,
		cfg.Name,
		cfg.SSLMode,
	)
}

// NewPostgres returns a configured PostgreSQL client for the documents table backend.
func NewPostgres(cfg config.DatabaseConfig) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", DSN(cfg))
	if err != nil {
		return nil, err
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}

	db.SetConnMaxLifetime(1 * time.Hour)
	db.SetConnMaxIdleTime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

// NewListener opens a LISTEN connection on channel. Reconnects are handled by lib/pq; the listener
// delivers a nil notification after each reconnect.
func NewListener(cfg config.DatabaseConfig, channel string, logger *zap.Logger) (*pq.Listener, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	report := func(ev pq.ListenerEventType, err error) {
		if err != nil {
			logger.Warn("postgres listener event", zap.Int("event", int(ev)), zap.Error(err))
		}
	}
	listener := pq.NewListener(DSN(cfg), 10*time.Second, time.Minute, report)
	if err := listener.Listen(channel); err != nil {
		_ = listener.Close()
		return nil, err
	}
	return listener, nil
}
