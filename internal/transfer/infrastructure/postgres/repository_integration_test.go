package postgres_test

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	transfer "certificate-transfer/internal/transfer/domain"
	"certificate-transfer/internal/transfer/infrastructure/postgres"
	"certificate-transfer/migrations"
)

// openTestDB uses PG_DSN when set. With TRANSFER_PG_CONTAINER=1 it boots a
// throwaway Postgres container instead.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	ctx := context.Background()

	dsn := os.Getenv("PG_DSN")
	if dsn == "" && os.Getenv("TRANSFER_PG_CONTAINER") == "1" {
		container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
			tcpostgres.WithDatabase("transfer"),
			tcpostgres.WithUsername("transfer"),
			tcpostgres.WithPassword("transfer"),
			tcpostgres.BasicWaitStrategies(),
		)
		if err != nil {
			t.Fatalf("start postgres container: %v", err)
		}
		t.Cleanup(func() { _ = container.Terminate(context.Background()) })
		dsn, err = container.ConnectionString(ctx, "sslmode=disable")
		if err != nil {
			t.Fatalf("connection string: %v", err)
		}
	}
	if dsn == "" {
		t.Skip("PG_DSN not set")
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := migrations.Apply(ctx, db); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	return db
}

func TestRequestStatusRepository_RoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	repo := postgres.NewRequestStatusRepository(db)

	sender := "org-" + uuid.NewString()
	receiver := "org-" + uuid.NewString()
	requestedAt := time.Date(2026, time.March, 1, 10, 0, 0, 0, time.UTC)

	row := transfer.NewRequestStatus(sender, receiver, uuid.New(), requestedAt)
	if err := repo.Add(ctx, row); err != nil {
		t.Fatalf("add: %v", err)
	}
	t.Cleanup(func() { _ = repo.Delete(context.Background(), row.ID) })

	for _, orgID := range []string{sender, receiver} {
		rows, err := repo.GetByOrganization(ctx, orgID)
		if err != nil {
			t.Fatalf("get %s: %v", orgID, err)
		}
		if len(rows) != 1 || rows[0].RequestID != row.RequestID {
			t.Fatalf("expected the row for %s, got %+v", orgID, rows)
		}
		if rows[0].Status != transfer.StatusPending {
			t.Fatalf("expected pending, got %s", rows[0].Status)
		}
	}

	row.Advance(transfer.StatusCompleted, requestedAt.Add(5*time.Minute))
	if err := repo.Update(ctx, row); err != nil {
		t.Fatalf("update: %v", err)
	}
	// A terminal row is not rewritten.
	stale := row
	stale.Status = transfer.StatusTimeout
	if err := repo.Update(ctx, stale); err != nil {
		t.Fatalf("update stale: %v", err)
	}
	rows, err := repo.GetByOrganization(ctx, sender)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rows[0].Status != transfer.StatusCompleted {
		t.Fatalf("expected completed, got %s", rows[0].Status)
	}
	if !rows[0].StatusTimestamp.Equal(requestedAt.Add(5 * time.Minute)) {
		t.Fatalf("status timestamp mismatch: %s", rows[0].StatusTimestamp)
	}

	if err := repo.Delete(ctx, row.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	rows, err = repo.GetByOrganization(ctx, sender)
	if err != nil {
		t.Fatalf("get after delete: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("expected no rows, got %d", len(rows))
	}
}

func TestAgreementRepository_ListActive(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	repo := postgres.NewAgreementRepository(db, 24*time.Hour)

	now := time.Date(2026, time.June, 15, 12, 0, 0, 0, time.UTC)
	endedYesterday := now.Add(-12 * time.Hour)
	endedLastWeek := now.Add(-7 * 24 * time.Hour)

	open := agreement(now.Add(-30*24*time.Hour), nil)
	recent := agreement(now.Add(-30*24*time.Hour), &endedYesterday)
	expired := agreement(now.Add(-30*24*time.Hour), &endedLastWeek)
	future := agreement(now.Add(24*time.Hour), nil)

	for _, a := range []transfer.TransferAgreement{open, recent, expired, future} {
		if err := repo.Save(ctx, a); err != nil {
			t.Fatalf("save: %v", err)
		}
		id := a.ID
		t.Cleanup(func() {
			_, _ = db.ExecContext(context.Background(), "DELETE FROM transfer_agreements WHERE id = $1", id)
		})
	}

	active, err := repo.ListActive(ctx, now)
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	seen := make(map[uuid.UUID]transfer.TransferAgreement)
	for _, a := range active {
		seen[a.ID] = a
	}
	if _, ok := seen[open.ID]; !ok {
		t.Fatalf("open-ended agreement missing")
	}
	if _, ok := seen[recent.ID]; !ok {
		t.Fatalf("agreement inside lookback missing")
	}
	if _, ok := seen[expired.ID]; ok {
		t.Fatalf("expired agreement returned")
	}
	if _, ok := seen[future.ID]; ok {
		t.Fatalf("future agreement returned")
	}
	if got := seen[recent.ID]; got.EndDate == nil || !got.EndDate.Equal(endedYesterday) {
		t.Fatalf("end date mismatch: %+v", got.EndDate)
	}

	loaded, err := repo.GetByID(ctx, open.ID)
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if loaded == nil || loaded.ReceiverReference != open.ReceiverReference || loaded.EndDate != nil {
		t.Fatalf("loaded agreement mismatch: %+v", loaded)
	}
	missing, err := repo.GetByID(ctx, uuid.New())
	if err != nil || missing != nil {
		t.Fatalf("expected nil for missing agreement, got %+v err=%v", missing, err)
	}
}

func agreement(start time.Time, end *time.Time) transfer.TransferAgreement {
	return transfer.TransferAgreement{
		ID:                uuid.New(),
		SenderID:          "org-sender-" + uuid.NewString(),
		SenderName:        "Sender A/S",
		ReceiverID:        "org-receiver-" + uuid.NewString(),
		ReceiverTIN:       "12345678",
		StartDate:         start,
		EndDate:           end,
		Type:              transfer.AgreementTypeTransferAll,
		ReceiverReference: uuid.New(),
	}
}
