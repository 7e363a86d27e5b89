package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jptrhost/pelican-dns/internal/models"
)

type PostgresRecordRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRecordRepository(pool *pgxpool.Pool) *PostgresRecordRepository {
	return &PostgresRecordRepository{pool: pool}
}

func (r *PostgresRecordRepository) Reserve(ctx context.Context, rec *models.ProvisionedRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}

	query := `
		INSERT INTO provisioned_records (
			id, server_uuid, allocation_id, server_name, allocation, status
		) VALUES (
			$1, $2, $3, $4, $5, 'pending'
		)
		ON CONFLICT (server_uuid, allocation_id) DO UPDATE SET
			server_name = EXCLUDED.server_name,
			allocation = EXCLUDED.allocation,
			status = 'pending',
			hostname = NULL,
			zone_id = NULL,
			record_id = NULL,
			error_message = NULL,
			updated_at = NOW()
		WHERE provisioned_records.status = 'failed'
		   OR (provisioned_records.status = 'pending' AND provisioned_records.updated_at < $6)
		RETURNING id, created_at, updated_at
	`
	err := r.pool.QueryRow(ctx, query,
		rec.ID, rec.ServerUUID, rec.AllocationID, rec.ServerName, rec.Allocation,
		time.Now().Add(-StalePendingAfter),
	).Scan(&rec.ID, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrAlreadyProvisioned
		}
		return fmt.Errorf("reserve provisioned_record: %w", err)
	}
	rec.Status = models.RecordStatusPending
	return nil
}

func (r *PostgresRecordRepository) MarkProvisioned(ctx context.Context, id, hostname, zoneID, recordID string) error {
	query := `
		UPDATE provisioned_records SET
			status = 'provisioned',
			hostname = $1,
			zone_id = $2,
			record_id = $3,
			error_message = NULL,
			updated_at = NOW()
		WHERE id = $4
	`
	tag, err := r.pool.Exec(ctx, query, hostname, zoneID, recordID, id)
	if err != nil {
		return fmt.Errorf("update provisioned_record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRecordRepository) MarkFailed(ctx context.Context, id, errorMsg string) error {
	query := `UPDATE provisioned_records SET status = 'failed', error_message = $1, updated_at = NOW() WHERE id = $2`
	tag, err := r.pool.Exec(ctx, query, errorMsg, id)
	if err != nil {
		return fmt.Errorf("update provisioned_record status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRecordRepository) GetByKey(ctx context.Context, serverUUID string, allocationID int64) (*models.ProvisionedRecord, error) {
	query := `
		SELECT id, server_uuid, allocation_id, server_name, hostname, allocation,
			   zone_id, record_id, status, error_message, created_at, updated_at
		FROM provisioned_records
		WHERE server_uuid = $1 AND allocation_id = $2
	`
	return r.scanOne(r.pool.QueryRow(ctx, query, serverUUID, allocationID))
}

func (r *PostgresRecordRepository) List(ctx context.Context, serverUUID string, limit int) ([]*models.ProvisionedRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, server_uuid, allocation_id, server_name, hostname, allocation,
			   zone_id, record_id, status, error_message, created_at, updated_at
		FROM provisioned_records
		WHERE ($1 = '' OR server_uuid = $1)
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, serverUUID, limit)
	if err != nil {
		return nil, fmt.Errorf("query provisioned_records: %w", err)
	}
	defer rows.Close()
	return r.scanMany(rows)
}

func (r *PostgresRecordRepository) Close() error {
	r.pool.Close()
	return nil
}

func (r *PostgresRecordRepository) scanOne(row pgx.Row) (*models.ProvisionedRecord, error) {
	rec := &models.ProvisionedRecord{}
	err := row.Scan(
		&rec.ID, &rec.ServerUUID, &rec.AllocationID, &rec.ServerName, &rec.Hostname, &rec.Allocation,
		&rec.ZoneID, &rec.RecordID, &rec.Status, &rec.ErrorMessage, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan provisioned_record: %w", err)
	}
	return rec, nil
}

func (r *PostgresRecordRepository) scanMany(rows pgx.Rows) ([]*models.ProvisionedRecord, error) {
	var results []*models.ProvisionedRecord
	for rows.Next() {
		rec := &models.ProvisionedRecord{}
		err := rows.Scan(
			&rec.ID, &rec.ServerUUID, &rec.AllocationID, &rec.ServerName, &rec.Hostname, &rec.Allocation,
			&rec.ZoneID, &rec.RecordID, &rec.Status, &rec.ErrorMessage, &rec.CreatedAt, &rec.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan provisioned_record row: %w", err)
		}
		results = append(results, rec)
	}
	return results, rows.Err()
}
