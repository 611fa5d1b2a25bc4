package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/goccy/go-json"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/mselser95/exchange-settlement/internal/events"
)

const eventsSchema = `
	CREATE TABLE IF NOT EXISTS settlement_events (
		id           UUID PRIMARY KEY,
		type         TEXT NOT NULL,
		operation    TEXT NOT NULL,
		idx          INTEGER NOT NULL,
		committed_at TIMESTAMPTZ NOT NULL,
		payload      JSONB NOT NULL
	)
`

// PostgresSink appends committed events to PostgreSQL.
type PostgresSink struct {
	db     *sql.DB
	logger *zap.Logger
}

// PostgresConfig holds PostgreSQL configuration.
type PostgresConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	SSLMode  string
	Logger   *zap.Logger
}

// NewPostgresSink connects to PostgreSQL and ensures the events table exists.
func NewPostgresSink(ctx context.Context, cfg *PostgresConfig) (*PostgresSink, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	err = db.PingContext(ctx)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	sink := &PostgresSink{db: db, logger: cfg.Logger}
	err = sink.EnsureSchema(ctx)
	if err != nil {
		db.Close()
		return nil, err
	}

	cfg.Logger.Info("postgres-sink-connected",
		zap.String("host", cfg.Host),
		zap.String("database", cfg.Database))

	return sink, nil
}

// EnsureSchema creates the events table if it does not exist.
func (p *PostgresSink) EnsureSchema(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, eventsSchema)
	if err != nil {
		return fmt.Errorf("create events table: %w", err)
	}
	return nil
}

// Publish inserts one unit of work's events in a single transaction.
func (p *PostgresSink) Publish(ctx context.Context, evs []events.Event) (err error) {
	if len(evs) == 0 {
		return nil
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
			SinkEventsTotal.WithLabelValues("postgres", "failed").Add(float64(len(evs)))
		}
	}()

	query := `
		INSERT INTO settlement_events (id, type, operation, idx, committed_at, payload)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	for _, e := range evs {
		payload, err := json.Marshal(e.Payload)
		if err != nil {
			return fmt.Errorf("encode %s payload: %w", e.Type, err)
		}
		_, err = tx.ExecContext(ctx, query, e.ID, string(e.Type), e.Operation, e.Index, e.CommittedAt, payload)
		if err != nil {
			return fmt.Errorf("insert event: %w", err)
		}
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("commit events: %w", err)
	}

	SinkEventsTotal.WithLabelValues("postgres", "ok").Add(float64(len(evs)))
	p.logger.Debug("events-stored",
		zap.String("operation", evs[0].Operation),
		zap.Int("count", len(evs)))

	return nil
}

// Close closes the database connection.
func (p *PostgresSink) Close() error {
	p.logger.Info("closing-postgres-sink")
	return p.db.Close()
}
