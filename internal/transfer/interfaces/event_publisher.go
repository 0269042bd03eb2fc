package interfaces

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"certificate-transfer/internal/eventing"
	"certificate-transfer/internal/transfer/application"
)

// EventTypeTransferSubmitted names the event emitted for every recorded transfer request.
const EventTypeTransferSubmitted = "transfer.submitted"

const transferSubmittedSchema = 1

// EnvelopePublisher sends a payload framed as eventType.
type EnvelopePublisher interface {
	Publish(ctx context.Context, eventType string, payload any, meta eventing.Meta) (eventing.Envelope, error)
}

// TransferSubmittedV1 is the wire payload of a submitted transfer.
type TransferSubmittedV1 struct {
	AgreementID   uuid.UUID `json:"agreement_id"`
	Strategy      string    `json:"strategy"`
	SenderID      string    `json:"sender_id"`
	ReceiverID    string    `json:"receiver_id,omitempty"`
	RequestID     uuid.UUID `json:"request_id"`
	CertificateID string    `json:"certificate_id"`
	PeriodStart   time.Time `json:"period_start"`
	PeriodEnd     time.Time `json:"period_end"`
	Quantity      int64     `json:"quantity"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// EventPublisher forwards transfer events to an envelope transport.
type EventPublisher struct {
	next EnvelopePublisher
}

// NewEventPublisher constructs the publisher.
func NewEventPublisher(next EnvelopePublisher) (*EventPublisher, error) {
	if next == nil {
		return nil, errors.New("transfer publisher: nil envelope publisher")
	}
	return &EventPublisher{next: next}, nil
}

// PublishTransferSubmitted sends the event keyed by its wallet request id.
func (p *EventPublisher) PublishTransferSubmitted(ctx context.Context, event application.TransferSubmitted) error {
	payload := TransferSubmittedV1{
		AgreementID:   event.AgreementID,
		Strategy:      event.Strategy,
		SenderID:      event.SenderID,
		ReceiverID:    event.ReceiverID,
		RequestID:     event.RequestID,
		CertificateID: event.CertificateID,
		PeriodStart:   event.Period.Start,
		PeriodEnd:     event.Period.End,
		Quantity:      event.Quantity,
		OccurredAt:    event.OccurredAt,
	}
	_, err := p.next.Publish(ctx, EventTypeTransferSubmitted, payload, eventing.Meta{
		EventID:        event.RequestID.String(),
		OccurredAt:     event.OccurredAt,
		CorrelationID:  event.AgreementID.String(),
		OrganizationID: event.SenderID,
		SchemaVersion:  transferSubmittedSchema,
	})
	return err
}
