package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jptrhost/pelican-dns/internal/db"
	"github.com/jptrhost/pelican-dns/internal/models"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrAlreadyProvisioned = errors.New("allocation already provisioned")
)

// StalePendingAfter is how long a pending reservation blocks redelivery
// before another run may take it over.
const StalePendingAfter = 10 * time.Minute

// RecordStore is the provisioning ledger keyed by (server uuid, allocation id).
type RecordStore interface {
	// Reserve inserts rec as pending, or re-claims a failed or stale pending
	// row for the same key. It returns ErrAlreadyProvisioned when the key is
	// provisioned or being provisioned. rec.ID is set to the row id.
	Reserve(ctx context.Context, rec *models.ProvisionedRecord) error
	MarkProvisioned(ctx context.Context, id, hostname, zoneID, recordID string) error
	MarkFailed(ctx context.Context, id, errorMsg string) error
	GetByKey(ctx context.Context, serverUUID string, allocationID int64) (*models.ProvisionedRecord, error)
	List(ctx context.Context, serverUUID string, limit int) ([]*models.ProvisionedRecord, error)
	Close() error
}

// Open connects to the ledger named by url: "postgres://..." or
// "postgresql://..." for Postgres, "sqlite:<path>" for SQLite.
func Open(ctx context.Context, url string) (RecordStore, error) {
	switch {
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		pool, err := db.NewPool(ctx, url)
		if err != nil {
			return nil, fmt.Errorf("open postgres ledger: %w", err)
		}
		return NewPostgresRecordRepository(pool), nil
	case strings.HasPrefix(url, "sqlite:"):
		sqlDB, err := db.OpenSQLite(strings.TrimPrefix(url, "sqlite:"))
		if err != nil {
			return nil, fmt.Errorf("open sqlite ledger: %w", err)
		}
		return NewSQLiteRecordRepository(sqlDB), nil
	}
	return nil, fmt.Errorf("unsupported DATABASE_URL scheme: %q", url)
}
