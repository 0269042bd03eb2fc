package application

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"certificate-transfer/internal/observability/metrics"
	transfer "certificate-transfer/internal/transfer/domain"
)

const recordTimeout = 10 * time.Second

// Submitter sends single transfers to the wallet and records them.
type Submitter struct {
	client      CertificateClient
	store       RequestStatusStore
	publisher   TransferPublisher
	attempts    *AttemptCache
	maxAttempts int
	clock       Clock
	logger      *log.Logger
}

// SubmitterOption configures the submitter.
type SubmitterOption func(*Submitter)

// WithPublisher emits a TransferSubmitted event for every recorded request.
func WithPublisher(publisher TransferPublisher) SubmitterOption {
	return func(s *Submitter) {
		s.publisher = publisher
	}
}

// WithAttemptLimit skips certificates submitted max times within the cache window.
func WithAttemptLimit(cache *AttemptCache, max int) SubmitterOption {
	return func(s *Submitter) {
		if cache != nil && max > 0 {
			s.attempts = cache
			s.maxAttempts = max
		}
	}
}

// WithSubmitterClock overrides the default clock.
func WithSubmitterClock(clock Clock) SubmitterOption {
	return func(s *Submitter) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithSubmitterLogger overrides the default logger.
func WithSubmitterLogger(logger *log.Logger) SubmitterOption {
	return func(s *Submitter) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewSubmitter constructs a submitter.
func NewSubmitter(client CertificateClient, store RequestStatusStore, opts ...SubmitterOption) (*Submitter, error) {
	if client == nil {
		return nil, errors.New("transfer submitter: nil certificate client")
	}
	if store == nil {
		return nil, errors.New("transfer submitter: nil request status store")
	}
	s := &Submitter{
		client: client,
		store:  store,
		clock:  SystemClock{},
		logger: log.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Submit transfers quantity of cert from the agreement's sender to its receiver
// reference. It reports false without error when the certificate has used up
// its attempts. The request status row is only added after the wallet accepted
// the transfer, and is written even if ctx is cancelled meanwhile so the
// pending guard sees the accepted request on the next pass.
func (s *Submitter) Submit(ctx context.Context, strategy string, agreement transfer.TransferAgreement, cert transfer.GranularCertificate, quantity int64) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	key := cert.FederatedID.String()
	if s.attempts != nil {
		if attempts := s.attempts.Attempts(key); attempts >= s.maxAttempts {
			metrics.IncTransferSkip(metrics.SkipAttemptsExhausted)
			s.logger.Printf("transfer skipped: agreement=%s certificate=%s attempts=%d reason=attempts_exhausted", agreement.ID, key, attempts)
			return false, nil
		}
	}

	resp, err := s.client.TransferCertificates(ctx, agreement.SenderID, cert, quantity, agreement.ReceiverReference)
	if s.attempts != nil {
		s.attempts.Record(key)
	}
	if err != nil {
		return false, fmt.Errorf("transfer submitter: certificate=%s: %w", key, err)
	}
	if resp == nil {
		return false, fmt.Errorf("%w: transfer certificate=%s sender=%s", transfer.ErrTransferCertificates, key, agreement.SenderID)
	}

	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()

	now := s.clock.Now()
	row := transfer.NewRequestStatus(agreement.SenderID, agreement.ReceiverID, resp.TransferRequestID, now)
	if err := s.store.Add(recordCtx, row); err != nil {
		s.logger.Printf("transfer record error: agreement=%s request=%s err=%v", agreement.ID, resp.TransferRequestID, err)
		return false, err
	}
	metrics.AddTransferQuantity(strategy, quantity)

	if s.publisher != nil {
		event := TransferSubmitted{
			AgreementID:   agreement.ID,
			Strategy:      strategy,
			SenderID:      agreement.SenderID,
			ReceiverID:    agreement.ReceiverID,
			RequestID:     resp.TransferRequestID,
			CertificateID: key,
			Period:        cert.Period,
			Quantity:      quantity,
			OccurredAt:    now,
		}
		if err := s.publisher.PublishTransferSubmitted(recordCtx, event); err != nil {
			s.logger.Printf("transfer event publish error: agreement=%s request=%s err=%v", agreement.ID, resp.TransferRequestID, err)
		}
	}
	return true, nil
}
