package transfer

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Status is the local lifecycle state of a transfer request.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusTimeout   Status = "timeout"
)

// Terminal reports whether the status is final.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusTimeout
}

// ExternalRequestStatus is the status reported by the wallet service.
type ExternalRequestStatus string

const (
	ExternalStatusPending   ExternalRequestStatus = "pending"
	ExternalStatusCompleted ExternalRequestStatus = "completed"
	ExternalStatusFailed    ExternalRequestStatus = "failed"
)

// MapExternalStatus maps a wallet status onto the local enum.
func MapExternalStatus(status ExternalRequestStatus) (Status, error) {
	switch status {
	case ExternalStatusPending:
		return StatusPending, nil
	case ExternalStatusCompleted:
		return StatusCompleted, nil
	case ExternalStatusFailed:
		return StatusFailed, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnexpectedRequestStatus, status)
	}
}

// RequestStatus tracks one transfer request issued by the engine.
type RequestStatus struct {
	ID               uuid.UUID
	SenderID         string
	ReceiverID       string
	RequestID        uuid.UUID
	RequestTimestamp time.Time
	StatusTimestamp  time.Time
	Status           Status
}

// NewRequestStatus creates a pending row for an accepted transfer request.
func NewRequestStatus(senderID, receiverID string, requestID uuid.UUID, requestedAt time.Time) RequestStatus {
	requestedAt = requestedAt.UTC()
	return RequestStatus{
		ID:               uuid.New(),
		SenderID:         senderID,
		ReceiverID:       receiverID,
		RequestID:        requestID,
		RequestTimestamp: requestedAt,
		StatusTimestamp:  requestedAt,
		Status:           StatusPending,
	}
}

// Advance records a status observation. A terminal status is never replaced.
// It reports whether the status changed.
func (r *RequestStatus) Advance(status Status, at time.Time) bool {
	r.StatusTimestamp = at.UTC()
	if r.Status.Terminal() || status == r.Status {
		return false
	}
	r.Status = status
	return true
}

// AgingPolicy holds the three independent reconciliation thresholds.
type AgingPolicy struct {
	CheckInterval time.Duration
	TimeoutAfter  time.Duration
	DeleteAfter   time.Duration
}

// DefaultAgingPolicy returns 1m check, 120m timeout, 1440m delete.
func DefaultAgingPolicy() AgingPolicy {
	return AgingPolicy{
		CheckInterval: time.Minute,
		TimeoutAfter:  120 * time.Minute,
		DeleteAfter:   1440 * time.Minute,
	}
}

// ReconcileAction is the decision for one row in a reconciliation pass.
type ReconcileAction int

const (
	// ActionSkip leaves the row untouched.
	ActionSkip ReconcileAction = iota
	// ActionDelete removes the row from the store.
	ActionDelete
	// ActionTimeout marks the row timed out without asking the wallet.
	ActionTimeout
	// ActionQuery asks the wallet for the authoritative status.
	ActionQuery
	// ActionRefresh stamps a terminal row as checked without changing its status.
	ActionRefresh
)

func (a ReconcileAction) String() string {
	switch a {
	case ActionSkip:
		return "skip"
	case ActionDelete:
		return "delete"
	case ActionTimeout:
		return "timeout"
	case ActionQuery:
		return "query"
	case ActionRefresh:
		return "refresh"
	default:
		return "unknown"
	}
}

// NextAction decides what a reconciliation pass does with the row at now.
func (p AgingPolicy) NextAction(r RequestStatus, now time.Time) ReconcileAction {
	if r.StatusTimestamp.After(now.Add(-p.CheckInterval)) {
		return ActionSkip
	}
	if r.RequestTimestamp.Before(now.Add(-p.DeleteAfter)) {
		return ActionDelete
	}
	if r.Status.Terminal() {
		return ActionRefresh
	}
	if r.RequestTimestamp.Before(now.Add(-p.TimeoutAfter)) {
		return ActionTimeout
	}
	return ActionQuery
}
