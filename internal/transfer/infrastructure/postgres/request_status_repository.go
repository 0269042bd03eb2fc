package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	transfer "certificate-transfer/internal/transfer/domain"
)

// RequestStatusRepository persists transfer request statuses.
type RequestStatusRepository struct {
	db *sql.DB
}

// NewRequestStatusRepository constructs a repository.
func NewRequestStatusRepository(db *sql.DB) *RequestStatusRepository {
	return &RequestStatusRepository{db: db}
}

// Add inserts a new row.
func (r *RequestStatusRepository) Add(ctx context.Context, status transfer.RequestStatus) error {
	if r == nil || r.db == nil {
		return errors.New("request status repo: nil db")
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO request_statuses (
	id, sender_id, receiver_id, request_id, request_timestamp, status_timestamp, status
) VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		status.ID, status.SenderID, nullString(status.ReceiverID), status.RequestID,
		status.RequestTimestamp.UTC(), status.StatusTimestamp.UTC(), string(status.Status))
	return err
}

// Update writes status and status_timestamp. Terminal rows are never overwritten.
func (r *RequestStatusRepository) Update(ctx context.Context, status transfer.RequestStatus) error {
	if r == nil || r.db == nil {
		return errors.New("request status repo: nil db")
	}
	_, err := r.db.ExecContext(ctx, `
UPDATE request_statuses
SET status = $2, status_timestamp = $3
WHERE id = $1 AND (status = 'pending' OR status = $2)`,
		status.ID, string(status.Status), status.StatusTimestamp.UTC())
	return err
}

// Delete removes a row.
func (r *RequestStatusRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if r == nil || r.db == nil {
		return errors.New("request status repo: nil db")
	}
	_, err := r.db.ExecContext(ctx, `DELETE FROM request_statuses WHERE id = $1`, id)
	return err
}

// GetByOrganization lists rows the organization sends or receives, oldest first.
func (r *RequestStatusRepository) GetByOrganization(ctx context.Context, orgID string) ([]transfer.RequestStatus, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("request status repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, sender_id, receiver_id, request_id, request_timestamp, status_timestamp, status
FROM request_statuses
WHERE sender_id = $1 OR receiver_id = $1
ORDER BY request_timestamp ASC, id ASC`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []transfer.RequestStatus
	for rows.Next() {
		status, err := scanRequestStatus(rows)
		if err != nil {
			return nil, err
		}
		if status != nil {
			result = append(result, *status)
		}
	}
	return result, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequestStatus(row rowScanner) (*transfer.RequestStatus, error) {
	var status transfer.RequestStatus
	var receiver sql.NullString
	var value string
	err := row.Scan(
		&status.ID,
		&status.SenderID,
		&receiver,
		&status.RequestID,
		&status.RequestTimestamp,
		&status.StatusTimestamp,
		&value,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if receiver.Valid {
		status.ReceiverID = receiver.String
	}
	status.Status = transfer.Status(value)
	status.RequestTimestamp = status.RequestTimestamp.UTC()
	status.StatusTimestamp = status.StatusTimestamp.UTC()
	return &status, nil
}

func nullString(value string) sql.NullString {
	return sql.NullString{String: value, Valid: value != ""}
}
