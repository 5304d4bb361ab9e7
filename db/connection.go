// Package db opens connections to the operational Postgres databases the
// calendar event source reads from.
package db

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"github.com/campusops/facultyhours/errors"
)

// PingTimeout bounds the initial connectivity check so an unreachable
// database fails the run quickly instead of hanging.
const PingTimeout = 10 * time.Second

// Open opens a Postgres database with the given DSN and verifies
// connectivity. If logger is provided, logs connection lifecycle;
// otherwise operates silently.
//
// An unreachable database is reported as errors.ErrSourceUnavailable so
// callers can distinguish an outage from an empty result.
func Open(ctx context.Context, dsn string, logger *zap.SugaredLogger) (*sql.DB, error) {
	if dsn == "" {
		return nil, errors.New("database DSN is empty")
	}

	if logger != nil {
		logger.Debugw("Opening database connection")
	}

	conn, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}

	conn.SetMaxOpenConns(4)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, PingTimeout)
	defer cancel()

	if err := conn.PingContext(pingCtx); err != nil {
		conn.Close()
		return nil, errors.Wrap(errors.ErrSourceUnavailable, err.Error())
	}

	if logger != nil {
		logger.Infow("Database connection established")
	}

	return conn, nil
}
