package transfer

import (
	"time"

	"github.com/google/uuid"
)

// AgreementType selects the settlement strategy for an agreement.
type AgreementType string

const (
	AgreementTypeTransferAll                AgreementType = "transfer_all"
	AgreementTypeTransferBasedOnConsumption AgreementType = "transfer_based_on_consumption"
)

// Valid reports whether the type is one of the known values.
func (t AgreementType) Valid() bool {
	return t == AgreementTypeTransferAll || t == AgreementTypeTransferBasedOnConsumption
}

// TransferAgreement is the engine's read-only view of an agreement.
type TransferAgreement struct {
	ID                uuid.UUID
	SenderID          string
	SenderName        string
	ReceiverID        string
	ReceiverTIN       string
	StartDate         time.Time
	EndDate           *time.Time
	Type              AgreementType
	ReceiverReference uuid.UUID
}

// HasReceiver reports whether the agreement names a concrete receiver organization.
func (a TransferAgreement) HasReceiver() bool {
	return a.ReceiverID != ""
}

// Covers reports whether a certificate period lies inside the agreement window.
// An open end date has no upper bound.
func (a TransferAgreement) Covers(p Period) bool {
	if p.Start.Before(a.StartDate) {
		return false
	}
	if a.EndDate != nil && p.End.After(*a.EndDate) {
		return false
	}
	return true
}

// Organizations returns the organizations a settlement pass touches.
func (a TransferAgreement) Organizations() []string {
	if a.HasReceiver() && a.ReceiverID != a.SenderID {
		return []string{a.SenderID, a.ReceiverID}
	}
	return []string{a.SenderID}
}

// ActiveAt reports whether the agreement has started and has not ended
// before now minus lookback.
func (a TransferAgreement) ActiveAt(now time.Time, lookback time.Duration) bool {
	if a.StartDate.After(now) {
		return false
	}
	if a.EndDate == nil {
		return true
	}
	return !a.EndDate.Before(now.Add(-lookback))
}
