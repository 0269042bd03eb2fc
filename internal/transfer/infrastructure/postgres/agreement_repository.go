package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	transfer "certificate-transfer/internal/transfer/domain"
)

// AgreementRepository reads transfer agreements.
type AgreementRepository struct {
	db       *sql.DB
	lookback time.Duration
}

// NewAgreementRepository constructs a repository. Agreements that ended less
// than lookback ago are still returned by ListActive.
func NewAgreementRepository(db *sql.DB, lookback time.Duration) *AgreementRepository {
	if lookback < 0 {
		lookback = 0
	}
	return &AgreementRepository{db: db, lookback: lookback}
}

// ListActive returns agreements whose window contains now.
func (r *AgreementRepository) ListActive(ctx context.Context, now time.Time) ([]transfer.TransferAgreement, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("agreement repo: nil db")
	}
	now = now.UTC()
	rows, err := r.db.QueryContext(ctx, `
SELECT id, sender_id, sender_name, receiver_id, receiver_tin, start_date, end_date,
	transfer_type, receiver_reference
FROM transfer_agreements
WHERE start_date <= $1 AND (end_date IS NULL OR end_date >= $2)
ORDER BY start_date ASC, id ASC`, now, now.Add(-r.lookback))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []transfer.TransferAgreement
	for rows.Next() {
		agreement, err := scanAgreement(rows)
		if err != nil {
			return nil, err
		}
		if agreement != nil {
			result = append(result, *agreement)
		}
	}
	return result, rows.Err()
}

// GetByID fetches one agreement.
func (r *AgreementRepository) GetByID(ctx context.Context, id uuid.UUID) (*transfer.TransferAgreement, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("agreement repo: nil db")
	}
	row := r.db.QueryRowContext(ctx, `
SELECT id, sender_id, sender_name, receiver_id, receiver_tin, start_date, end_date,
	transfer_type, receiver_reference
FROM transfer_agreements
WHERE id = $1
LIMIT 1`, id)
	return scanAgreement(row)
}

// Save upserts an agreement.
func (r *AgreementRepository) Save(ctx context.Context, agreement transfer.TransferAgreement) error {
	if r == nil || r.db == nil {
		return errors.New("agreement repo: nil db")
	}
	if !agreement.Type.Valid() {
		return fmt.Errorf("%w: %q", transfer.ErrUnsupportedAgreementType, agreement.Type)
	}
	var endDate sql.NullTime
	if agreement.EndDate != nil {
		endDate = sql.NullTime{Time: agreement.EndDate.UTC(), Valid: true}
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO transfer_agreements (
	id, sender_id, sender_name, receiver_id, receiver_tin, start_date, end_date,
	transfer_type, receiver_reference
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
ON CONFLICT (id) DO UPDATE SET
	sender_id = EXCLUDED.sender_id,
	sender_name = EXCLUDED.sender_name,
	receiver_id = EXCLUDED.receiver_id,
	receiver_tin = EXCLUDED.receiver_tin,
	start_date = EXCLUDED.start_date,
	end_date = EXCLUDED.end_date,
	transfer_type = EXCLUDED.transfer_type,
	receiver_reference = EXCLUDED.receiver_reference`,
		agreement.ID, agreement.SenderID, agreement.SenderName, nullString(agreement.ReceiverID),
		agreement.ReceiverTIN, agreement.StartDate.UTC(), endDate, string(agreement.Type), agreement.ReceiverReference)
	return err
}

func scanAgreement(row rowScanner) (*transfer.TransferAgreement, error) {
	var agreement transfer.TransferAgreement
	var receiver sql.NullString
	var endDate sql.NullTime
	var agreementType string
	err := row.Scan(
		&agreement.ID,
		&agreement.SenderID,
		&agreement.SenderName,
		&receiver,
		&agreement.ReceiverTIN,
		&agreement.StartDate,
		&endDate,
		&agreementType,
		&agreement.ReceiverReference,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if receiver.Valid {
		agreement.ReceiverID = receiver.String
	}
	if endDate.Valid {
		end := endDate.Time.UTC()
		agreement.EndDate = &end
	}
	agreement.StartDate = agreement.StartDate.UTC()
	agreement.Type = transfer.AgreementType(agreementType)
	return &agreement, nil
}
