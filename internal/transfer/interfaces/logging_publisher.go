package interfaces

import (
	"context"
	"errors"
	"log"

	"certificate-transfer/internal/transfer/application"
)

// LoggingPublisher logs transfer submitted events.
type LoggingPublisher struct {
	logger *log.Logger
}

// NewLoggingPublisher constructs a logging publisher.
func NewLoggingPublisher(logger *log.Logger) *LoggingPublisher {
	if logger == nil {
		logger = log.Default()
	}
	return &LoggingPublisher{logger: logger}
}

// PublishTransferSubmitted logs the event.
func (p *LoggingPublisher) PublishTransferSubmitted(ctx context.Context, event application.TransferSubmitted) error {
	_ = ctx
	if p == nil {
		return errors.New("transfer publisher: nil publisher")
	}
	p.logger.Printf("transfer submitted: agreement=%s strategy=%s sender=%s request=%s certificate=%s period=%s quantity=%d",
		event.AgreementID, event.Strategy, event.SenderID, event.RequestID, event.CertificateID, event.Period, event.Quantity)
	return nil
}
