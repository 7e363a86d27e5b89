package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jptrhost/pelican-dns/internal/models"
)

// SQLiteRecordRepository stores the ledger in SQLite. Timestamps are UTC
// text in time.DateTime layout.
type SQLiteRecordRepository struct {
	db *sql.DB
}

func NewSQLiteRecordRepository(db *sql.DB) *SQLiteRecordRepository {
	return &SQLiteRecordRepository{db: db}
}

func (r *SQLiteRecordRepository) Reserve(ctx context.Context, rec *models.ProvisionedRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	staleBefore := now.Add(-StalePendingAfter).Format(time.DateTime)

	var createdAt, updatedAt string
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO provisioned_records (
			id, server_uuid, allocation_id, server_name, allocation, status, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, 'pending', ?, ?)
		ON CONFLICT (server_uuid, allocation_id) DO UPDATE SET
			server_name = excluded.server_name,
			allocation = excluded.allocation,
			status = 'pending',
			hostname = NULL,
			zone_id = NULL,
			record_id = NULL,
			error_message = NULL,
			updated_at = excluded.updated_at
		WHERE provisioned_records.status = 'failed'
		   OR (provisioned_records.status = 'pending' AND provisioned_records.updated_at < ?)
		RETURNING id, created_at, updated_at`,
		rec.ID, rec.ServerUUID, rec.AllocationID, rec.ServerName, rec.Allocation,
		now.Format(time.DateTime), now.Format(time.DateTime), staleBefore,
	).Scan(&rec.ID, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrAlreadyProvisioned
	}
	if err != nil {
		return fmt.Errorf("reserve provisioned_record: %w", err)
	}

	rec.Status = models.RecordStatusPending
	rec.CreatedAt, _ = time.Parse(time.DateTime, createdAt)
	rec.UpdatedAt, _ = time.Parse(time.DateTime, updatedAt)
	return nil
}

func (r *SQLiteRecordRepository) MarkProvisioned(ctx context.Context, id, hostname, zoneID, recordID string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE provisioned_records SET
			status = 'provisioned', hostname = ?, zone_id = ?, record_id = ?,
			error_message = NULL, updated_at = ?
		WHERE id = ?`,
		hostname, zoneID, recordID, time.Now().UTC().Format(time.DateTime), id,
	)
	if err != nil {
		return fmt.Errorf("update provisioned_record: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SQLiteRecordRepository) MarkFailed(ctx context.Context, id, errorMsg string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE provisioned_records SET status = 'failed', error_message = ?, updated_at = ? WHERE id = ?`,
		errorMsg, time.Now().UTC().Format(time.DateTime), id,
	)
	if err != nil {
		return fmt.Errorf("update provisioned_record status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SQLiteRecordRepository) GetByKey(ctx context.Context, serverUUID string, allocationID int64) (*models.ProvisionedRecord, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, server_uuid, allocation_id, server_name, hostname, allocation,
		       zone_id, record_id, status, error_message, created_at, updated_at
		FROM provisioned_records
		WHERE server_uuid = ? AND allocation_id = ?`,
		serverUUID, allocationID,
	)
	rec, err := scanSQLite(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return rec, err
}

func (r *SQLiteRecordRepository) List(ctx context.Context, serverUUID string, limit int) ([]*models.ProvisionedRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, server_uuid, allocation_id, server_name, hostname, allocation,
		       zone_id, record_id, status, error_message, created_at, updated_at
		FROM provisioned_records WHERE 1=1`
	args := []any{}
	if serverUUID != "" {
		query += ` AND server_uuid = ?`
		args = append(args, serverUUID)
	}
	query += ` ORDER BY created_at DESC, id LIMIT ?`
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query provisioned_records: %w", err)
	}
	defer rows.Close()

	var results []*models.ProvisionedRecord
	for rows.Next() {
		rec, err := scanSQLite(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, rec)
	}
	return results, rows.Err()
}

func (r *SQLiteRecordRepository) Close() error {
	return r.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLite(row rowScanner) (*models.ProvisionedRecord, error) {
	rec := &models.ProvisionedRecord{}
	var createdAt, updatedAt string
	err := row.Scan(
		&rec.ID, &rec.ServerUUID, &rec.AllocationID, &rec.ServerName, &rec.Hostname, &rec.Allocation,
		&rec.ZoneID, &rec.RecordID, &rec.Status, &rec.ErrorMessage, &createdAt, &updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan provisioned_record: %w", err)
	}
	rec.CreatedAt, _ = time.Parse(time.DateTime, createdAt)
	rec.UpdatedAt, _ = time.Parse(time.DateTime, updatedAt)
	return rec, nil
}
