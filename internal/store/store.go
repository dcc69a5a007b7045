// Package store persists processed order records keyed by message id.
package store

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/furnbridge/orderdesk/internal/model"
)

// RecordFilter specifies criteria for listing records.
type RecordFilter struct {
	Status model.Status `json:"status,omitempty"`
	Branch string       `json:"branch,omitempty"`
	Limit  int          `json:"limit,omitempty"`
	Offset int          `json:"offset,omitempty"`
}

// Store defines the persistence interface for processed records. SaveRecord
// upserts by message id; GetRecord returns (nil, nil) when no record exists.
type Store interface {
	SaveRecord(ctx context.Context, order *model.Order) error
	GetRecord(ctx context.Context, messageID string) (*model.Order, error)
	ListRecords(ctx context.Context, filter RecordFilter) ([]model.Order, error)

	Migrate(ctx context.Context) error
	Close() error
}

// Open selects the driver by name: "sqlite" (default) or "postgres".
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", "sqlite":
		return NewSQLite(dsn)
	case "postgres":
		return NewPostgres(ctx, dsn, nil)
	default:
		return nil, eris.Errorf("store: unknown driver %q", driver)
	}
}
