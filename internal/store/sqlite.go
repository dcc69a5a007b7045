package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/furnbridge/orderdesk/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS records (
	message_id  TEXT PRIMARY KEY,
	received_at DATETIME NOT NULL,
	branch      TEXT NOT NULL DEFAULT '',
	status      TEXT NOT NULL,
	warnings    TEXT NOT NULL DEFAULT '[]',
	payload     TEXT NOT NULL,
	created_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_records_status ON records(status);
CREATE INDEX IF NOT EXISTS idx_records_branch ON records(branch);
CREATE INDEX IF NOT EXISTS idx_records_updated_at ON records(updated_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveRecord(ctx context.Context, order *model.Order) error {
	if order == nil || order.MessageID == "" {
		return eris.New("sqlite: record requires a message id")
	}
	payload, warnings, err := encodeRecord(order)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO records (message_id, received_at, branch, status, warnings, payload, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(message_id) DO UPDATE SET
			received_at = excluded.received_at,
			branch      = excluded.branch,
			status      = excluded.status,
			warnings    = excluded.warnings,
			payload     = excluded.payload,
			updated_at  = excluded.updated_at`,
		order.MessageID, order.ReceivedAt.UTC(), order.Branch, string(order.Status),
		warnings, payload, now, now,
	)
	return eris.Wrapf(err, "sqlite: save record %s", order.MessageID)
}

func (s *SQLiteStore) GetRecord(ctx context.Context, messageID string) (*model.Order, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT payload FROM records WHERE message_id = ?`, messageID)

	var payload string
	err := row.Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get record %s", messageID)
	}
	return decodeRecord([]byte(payload))
}

func (s *SQLiteStore) ListRecords(ctx context.Context, filter RecordFilter) ([]model.Order, error) {
	query := `SELECT payload FROM records WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.Branch != "" {
		query += ` AND branch = ?`
		args = append(args, filter.Branch)
	}
	query += ` ORDER BY updated_at DESC, message_id`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list records")
	}
	defer rows.Close()

	var records []model.Order
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan record")
		}
		order, err := decodeRecord([]byte(payload))
		if err != nil {
			return nil, err
		}
		records = append(records, *order)
	}
	return records, eris.Wrap(rows.Err(), "sqlite: list records iterate")
}

// helpers

func encodeRecord(order *model.Order) (payload, warnings string, err error) {
	payloadJSON, err := json.Marshal(order)
	if err != nil {
		return "", "", eris.Wrap(err, "store: marshal record")
	}
	warningsJSON, err := json.Marshal(order.Warnings)
	if err != nil {
		return "", "", eris.Wrap(err, "store: marshal warnings")
	}
	return string(payloadJSON), string(warningsJSON), nil
}

func decodeRecord(payload []byte) (*model.Order, error) {
	var order model.Order
	if err := json.Unmarshal(payload, &order); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal record")
	}
	return &order, nil
}
