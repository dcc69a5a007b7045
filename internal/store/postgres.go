package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/furnbridge/orderdesk/internal/db"
	"github.com/furnbridge/orderdesk/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"save_record": `INSERT INTO records (message_id, received_at, branch, status, warnings, payload, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (message_id) DO UPDATE SET
			received_at = EXCLUDED.received_at,
			branch      = EXCLUDED.branch,
			status      = EXCLUDED.status,
			warnings    = EXCLUDED.warnings,
			payload     = EXCLUDED.payload,
			updated_at  = EXCLUDED.updated_at`,
	"get_record": `SELECT payload FROM records WHERE message_id = $1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// Pool returns the underlying database pool for subsystems that need direct
// query access.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS records (
	message_id  TEXT PRIMARY KEY,
	received_at TIMESTAMPTZ NOT NULL,
	branch      TEXT NOT NULL DEFAULT '',
	status      TEXT NOT NULL,
	warnings    JSONB NOT NULL DEFAULT '[]',
	payload     JSONB NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_records_status ON records(status);
CREATE INDEX IF NOT EXISTS idx_records_branch ON records(branch);
CREATE INDEX IF NOT EXISTS idx_records_updated_at ON records(updated_at DESC);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) SaveRecord(ctx context.Context, order *model.Order) error {
	if order == nil || order.MessageID == "" {
		return eris.New("postgres: record requires a message id")
	}
	payload, warnings, err := encodeRecord(order)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	_, err = s.pool.Exec(ctx,
		`INSERT INTO records (message_id, received_at, branch, status, warnings, payload, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (message_id) DO UPDATE SET
			received_at = EXCLUDED.received_at,
			branch      = EXCLUDED.branch,
			status      = EXCLUDED.status,
			warnings    = EXCLUDED.warnings,
			payload     = EXCLUDED.payload,
			updated_at  = EXCLUDED.updated_at`,
		order.MessageID, order.ReceivedAt.UTC(), order.Branch, string(order.Status),
		[]byte(warnings), []byte(payload), now, now,
	)
	return eris.Wrapf(err, "postgres: save record %s", order.MessageID)
}

// SaveRecords upserts a batch of records in one round trip.
func (s *PostgresStore) SaveRecords(ctx context.Context, orders []*model.Order) (int64, error) {
	rows := make([][]any, 0, len(orders))
	now := time.Now().UTC()
	for _, order := range orders {
		if order == nil || order.MessageID == "" {
			return 0, eris.New("postgres: record requires a message id")
		}
		payload, warnings, err := encodeRecord(order)
		if err != nil {
			return 0, err
		}
		rows = append(rows, []any{
			order.MessageID, order.ReceivedAt.UTC(), order.Branch, string(order.Status),
			[]byte(warnings), []byte(payload), now, now,
		})
	}
	return db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "records",
		Columns:      []string{"message_id", "received_at", "branch", "status", "warnings", "payload", "created_at", "updated_at"},
		ConflictKeys: []string{"message_id"},
		UpdateCols:   []string{"received_at", "branch", "status", "warnings", "payload", "updated_at"},
	}, rows)
}

func (s *PostgresStore) GetRecord(ctx context.Context, messageID string) (*model.Order, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx,
		`SELECT payload FROM records WHERE message_id = $1`, messageID,
	).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get record %s", messageID)
	}
	return decodeRecord(payload)
}

func (s *PostgresStore) ListRecords(ctx context.Context, filter RecordFilter) ([]model.Order, error) {
	query := `SELECT payload FROM records WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	if filter.Branch != "" {
		query += fmt.Sprintf(` AND branch = $%d`, argIdx)
		args = append(args, filter.Branch)
		argIdx++
	}
	query += ` ORDER BY updated_at DESC, message_id`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list records")
	}
	defer rows.Close()

	var records []model.Order
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, eris.Wrap(err, "postgres: scan record")
		}
		order, err := decodeRecord(payload)
		if err != nil {
			return nil, err
		}
		records = append(records, *order)
	}
	return records, eris.Wrap(rows.Err(), "postgres: list records iterate")
}
