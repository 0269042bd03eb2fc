package application

import (
	"context"
	"time"

	"github.com/google/uuid"

	transfer "certificate-transfer/internal/transfer/domain"
)

// PageMetadata describes one page returned by the wallet service.
type PageMetadata struct {
	Count  int
	Offset int
	Limit  int
	Total  int
}

// CertificatePage is one page of certificates.
type CertificatePage struct {
	Result   []transfer.GranularCertificate
	Metadata PageMetadata
}

// TransferResponse is returned when the wallet accepts a transfer request.
type TransferResponse struct {
	TransferRequestID uuid.UUID
}

// CertificateClient talks to the wallet service on behalf of an organization.
// A nil page or response with a nil error means the wallet returned no body.
type CertificateClient interface {
	GetGranularCertificates(ctx context.Context, orgID string, limit, skip int, certType *transfer.CertificateType) (*CertificatePage, error)
	TransferCertificates(ctx context.Context, orgID string, cert transfer.GranularCertificate, quantity int64, receiverReference uuid.UUID) (*TransferResponse, error)
	GetRequestStatus(ctx context.Context, orgID string, requestID uuid.UUID) (transfer.ExternalRequestStatus, error)
}

// RequestStatusStore persists transfer request statuses.
type RequestStatusStore interface {
	Add(ctx context.Context, status transfer.RequestStatus) error
	Update(ctx context.Context, status transfer.RequestStatus) error
	Delete(ctx context.Context, id uuid.UUID) error
	GetByOrganization(ctx context.Context, orgID string) ([]transfer.RequestStatus, error)
}

// AgreementReader loads the agreements a dispatcher pass should settle.
type AgreementReader interface {
	ListActive(ctx context.Context, now time.Time) ([]transfer.TransferAgreement, error)
}

// OrganizationLocker serializes settlement passes per organization.
// The returned release func must be called exactly once.
type OrganizationLocker interface {
	Lock(ctx context.Context, orgIDs ...string) (func(), error)
}

// TransferSubmitted is emitted after a transfer request has been recorded.
type TransferSubmitted struct {
	AgreementID   uuid.UUID
	Strategy      string
	SenderID      string
	ReceiverID    string
	RequestID     uuid.UUID
	CertificateID string
	Period        transfer.Period
	Quantity      int64
	OccurredAt    time.Time
}

// TransferPublisher emits transfer events.
type TransferPublisher interface {
	PublishTransferSubmitted(ctx context.Context, event TransferSubmitted) error
}

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock uses time.Now.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }
