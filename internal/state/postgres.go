package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/big"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

const postgresSchema = `
	CREATE TABLE IF NOT EXISTS ledger_entries (
		key   TEXT PRIMARY KEY,
		value NUMERIC(78, 0) NOT NULL
	)
`

// PostgresStore implements Store on a single PostgreSQL table.
type PostgresStore struct {
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

// NewPostgresStore connects to PostgreSQL and ensures the ledger table exists.
func NewPostgresStore(ctx context.Context, cfg *PostgresConfig) (*PostgresStore, error) {
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

	store := &PostgresStore{db: db, logger: cfg.Logger}
	err = store.EnsureSchema(ctx)
	if err != nil {
		db.Close()
		return nil, err
	}

	cfg.Logger.Info("postgres-state-store-connected",
		zap.String("host", cfg.Host),
		zap.String("database", cfg.Database))

	return store, nil
}

// EnsureSchema creates the ledger table if it does not exist.
func (p *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, postgresSchema)
	if err != nil {
		return fmt.Errorf("create ledger table: %w", err)
	}
	return nil
}

// Get returns the committed value of key.
func (p *PostgresStore) Get(ctx context.Context, key string) (*big.Int, error) {
	var raw string
	err := p.db.QueryRowContext(ctx, `SELECT value::text FROM ledger_entries WHERE key = $1`, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return new(big.Int), nil
	}
	if err != nil {
		return nil, fmt.Errorf("select ledger entry: %w", err)
	}
	return parseValue(raw)
}

// Commit locks every key of the write set, verifies the expected values and
// applies the changed ones in one database transaction.
func (p *PostgresStore) Commit(ctx context.Context, writes []Write) (err error) {
	if len(writes) == 0 {
		return nil
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				p.logger.Warn("ledger-rollback-failed", zap.Error(rbErr))
			}
		}
	}()

	keys := make([]string, len(writes))
	for i, w := range writes {
		keys[i] = w.Key
	}

	current, err := p.lockKeys(ctx, tx, keys)
	if err != nil {
		return err
	}

	for _, w := range writes {
		if valueOf(current[w.Key]).Cmp(valueOf(w.Prev)) != 0 {
			p.logger.Debug("ledger-commit-conflict", zap.String("key", w.Key))
			return ErrConflict
		}
	}

	for _, w := range writes {
		if !w.Changed() {
			continue
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO ledger_entries (key, value) VALUES ($1, $2::numeric)
			ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value
		`, w.Key, valueOf(w.Next).String())
		if err != nil {
			return fmt.Errorf("upsert ledger entry: %w", err)
		}
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// lockKeys materialises missing keys as zero rows so that FOR UPDATE can lock them.
func (p *PostgresStore) lockKeys(ctx context.Context, tx *sql.Tx, keys []string) (map[string]*big.Int, error) {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO ledger_entries (key, value) SELECT unnest($1::text[]), 0 ON CONFLICT (key) DO NOTHING`,
		pq.Array(keys))
	if err != nil {
		return nil, fmt.Errorf("materialise ledger entries: %w", err)
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT key, value::text FROM ledger_entries WHERE key = ANY($1) ORDER BY key FOR UPDATE`,
		pq.Array(keys))
	if err != nil {
		return nil, fmt.Errorf("lock ledger entries: %w", err)
	}
	defer rows.Close()

	current := make(map[string]*big.Int, len(keys))
	for rows.Next() {
		var key, raw string
		if err := rows.Scan(&key, &raw); err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		v, err := parseValue(raw)
		if err != nil {
			return nil, err
		}
		current[key] = v
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ledger entries: %w", err)
	}
	return current, nil
}

// Ping checks the database connection.
func (p *PostgresStore) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// Close closes the database connection.
func (p *PostgresStore) Close() error {
	p.logger.Info("closing-postgres-state-store")
	return p.db.Close()
}
