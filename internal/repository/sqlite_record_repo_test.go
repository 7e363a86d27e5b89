package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jptrhost/pelican-dns/internal/db"
	"github.com/jptrhost/pelican-dns/internal/models"
)

func newTestRepo(t *testing.T) *SQLiteRecordRepository {
	t.Helper()
	sqlDB, err := db.OpenSQLite(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	r := NewSQLiteRecordRepository(sqlDB)
	t.Cleanup(func() { r.Close() })
	return r
}

func newRecord(uuid string, allocationID int64) *models.ProvisionedRecord {
	return &models.ProvisionedRecord{
		ServerUUID:   uuid,
		AllocationID: allocationID,
		ServerName:   "Survival #1",
		Allocation:   "10.0.0.5:25565",
	}
}

func TestReserveAndMarkProvisioned(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	rec := newRecord("srv-1", 7)
	if err := r.Reserve(ctx, rec); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if rec.ID == "" {
		t.Fatal("expected reserve to assign an id")
	}
	if rec.Status != models.RecordStatusPending {
		t.Errorf("expected pending, got %q", rec.Status)
	}

	if err := r.MarkProvisioned(ctx, rec.ID, "survival-1-abc.jptr.host", "zone-1", "rec-1"); err != nil {
		t.Fatalf("mark provisioned: %v", err)
	}

	got, err := r.GetByKey(ctx, "srv-1", 7)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != models.RecordStatusProvisioned {
		t.Errorf("expected provisioned, got %q", got.Status)
	}
	if got.Hostname == nil || *got.Hostname != "survival-1-abc.jptr.host" {
		t.Errorf("unexpected hostname %v", got.Hostname)
	}
	if got.RecordID == nil || *got.RecordID != "rec-1" {
		t.Errorf("unexpected record id %v", got.RecordID)
	}
	if got.ErrorMessage != nil {
		t.Errorf("expected no error message, got %q", *got.ErrorMessage)
	}
	if got.CreatedAt.IsZero() {
		t.Error("expected created_at to be parsed")
	}
}

func TestReserveDuplicate(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	if err := r.Reserve(ctx, newRecord("srv-1", 7)); err != nil {
		t.Fatal(err)
	}

	// Still pending: a redelivery must not provision again.
	if err := r.Reserve(ctx, newRecord("srv-1", 7)); !errors.Is(err, ErrAlreadyProvisioned) {
		t.Fatalf("expected ErrAlreadyProvisioned for pending row, got %v", err)
	}

	// A different allocation of the same server is independent.
	if err := r.Reserve(ctx, newRecord("srv-1", 8)); err != nil {
		t.Fatalf("expected a new allocation to reserve, got %v", err)
	}
}

func TestReserveAfterProvisioned(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	rec := newRecord("srv-1", 7)
	if err := r.Reserve(ctx, rec); err != nil {
		t.Fatal(err)
	}
	if err := r.MarkProvisioned(ctx, rec.ID, "h.jptr.host", "z", "rec"); err != nil {
		t.Fatal(err)
	}

	if err := r.Reserve(ctx, newRecord("srv-1", 7)); !errors.Is(err, ErrAlreadyProvisioned) {
		t.Fatalf("expected ErrAlreadyProvisioned, got %v", err)
	}
}

func TestReserveReclaimsFailed(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	first := newRecord("srv-1", 7)
	if err := r.Reserve(ctx, first); err != nil {
		t.Fatal(err)
	}
	if err := r.MarkFailed(ctx, first.ID, "zone lookup failed"); err != nil {
		t.Fatal(err)
	}

	second := newRecord("srv-1", 7)
	if err := r.Reserve(ctx, second); err != nil {
		t.Fatalf("expected failed row to be re-claimed, got %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("expected re-claim to keep row id %q, got %q", first.ID, second.ID)
	}

	got, err := r.GetByKey(ctx, "srv-1", 7)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != models.RecordStatusPending || got.ErrorMessage != nil {
		t.Errorf("expected clean pending row, got status=%q err=%v", got.Status, got.ErrorMessage)
	}
}

func TestReserveReclaimsStalePending(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	rec := newRecord("srv-1", 7)
	if err := r.Reserve(ctx, rec); err != nil {
		t.Fatal(err)
	}

	old := time.Now().UTC().Add(-2 * StalePendingAfter).Format(time.DateTime)
	if _, err := r.db.Exec(`UPDATE provisioned_records SET updated_at = ? WHERE id = ?`, old, rec.ID); err != nil {
		t.Fatal(err)
	}

	if err := r.Reserve(ctx, newRecord("srv-1", 7)); err != nil {
		t.Fatalf("expected stale pending row to be re-claimed, got %v", err)
	}
}

func TestMarkUnknownID(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	if err := r.MarkFailed(ctx, "missing", "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := r.MarkProvisioned(ctx, "missing", "h", "z", "r"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := r.GetByKey(ctx, "nobody", 1); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestList(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	for _, k := range []struct {
		uuid string
		id   int64
	}{{"srv-1", 1}, {"srv-1", 2}, {"srv-2", 3}} {
		if err := r.Reserve(ctx, newRecord(k.uuid, k.id)); err != nil {
			t.Fatal(err)
		}
	}

	all, err := r.List(ctx, "", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 records, got %d", len(all))
	}

	filtered, err := r.List(ctx, "srv-1", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(filtered) != 2 {
		t.Fatalf("expected 2 records for srv-1, got %d", len(filtered))
	}

	limited, err := r.List(ctx, "", 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(limited) != 1 {
		t.Fatalf("expected limit 1, got %d", len(limited))
	}
}

func TestOpenUnsupportedScheme(t *testing.T) {
	if _, err := Open(context.Background(), "mysql://localhost/db"); err == nil {
		t.Fatal("expected error for unsupported scheme")
	}
}

func TestOpenSQLite(t *testing.T) {
	store, err := Open(context.Background(), "sqlite::memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer store.Close()

	if err := store.Reserve(context.Background(), newRecord("srv-1", 1)); err != nil {
		t.Fatalf("reserve: %v", err)
	}
}
