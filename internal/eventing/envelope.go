package eventing

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidEvent is returned for an event that cannot be framed.
var ErrInvalidEvent = errors.New("eventing: invalid event")

// Envelope frames a JSON payload with the fields consumers route and dedupe on.
type Envelope struct {
	EventID        string          `json:"event_id"`
	EventType      string          `json:"event_type"`
	OccurredAt     time.Time       `json:"occurred_at"`
	CorrelationID  string          `json:"correlation_id,omitempty"`
	OrganizationID string          `json:"organization_id"`
	SchemaVersion  int             `json:"schema_version"`
	Payload        json.RawMessage `json:"payload"`
}

// Meta identifies one event. OrganizationID and OccurredAt are required; a
// missing EventID gets a random one.
type Meta struct {
	EventID        string
	OccurredAt     time.Time
	CorrelationID  string
	OrganizationID string
	SchemaVersion  int
}

// BuildEnvelope marshals payload and frames it as eventType.
func BuildEnvelope(eventType string, payload any, meta Meta) (Envelope, error) {
	switch {
	case eventType == "":
		return Envelope{}, fmt.Errorf("%w: empty event type", ErrInvalidEvent)
	case payload == nil:
		return Envelope{}, fmt.Errorf("%w: nil payload for %s", ErrInvalidEvent, eventType)
	case meta.OrganizationID == "":
		return Envelope{}, fmt.Errorf("%w: no organization for %s", ErrInvalidEvent, eventType)
	case meta.OccurredAt.IsZero():
		return Envelope{}, fmt.Errorf("%w: no occurrence time for %s", ErrInvalidEvent, eventType)
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("eventing: marshal %s: %w", eventType, err)
	}
	if meta.EventID == "" {
		meta.EventID = uuid.NewString()
	}
	if meta.SchemaVersion <= 0 {
		meta.SchemaVersion = 1
	}
	return Envelope{
		EventID:        meta.EventID,
		EventType:      eventType,
		OccurredAt:     meta.OccurredAt.UTC(),
		CorrelationID:  meta.CorrelationID,
		OrganizationID: meta.OrganizationID,
		SchemaVersion:  meta.SchemaVersion,
		Payload:        data,
	}, nil
}

// Subject is the NATS subject of the envelope under prefix.
func (e Envelope) Subject(prefix string) string {
	return prefix + "." + e.EventType
}

// Decode unmarshals the payload into out.
func (e Envelope) Decode(out any) error {
	if len(e.Payload) == 0 {
		return fmt.Errorf("%w: empty payload", ErrInvalidEvent)
	}
	return json.Unmarshal(e.Payload, out)
}
