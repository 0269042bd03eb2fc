package application

import (
	"context"
	"errors"
	"fmt"
	"log"

	"certificate-transfer/internal/observability/metrics"
	transfer "certificate-transfer/internal/transfer/domain"
)

// StrategyTransferAll is the metric label of the all-certificates strategy.
const StrategyTransferAll = "transfer_all"

// Strategy settles one agreement.
type Strategy interface {
	Name() string
	Supports(agreementType transfer.AgreementType) bool
	TransferCertificates(ctx context.Context, agreement transfer.TransferAgreement) error
}

// TransferAllStrategy moves every eligible production certificate in full.
type TransferAllStrategy struct {
	utility   *Utility
	submitter *Submitter
	logger    *log.Logger
}

// NewTransferAllStrategy constructs the strategy.
func NewTransferAllStrategy(utility *Utility, submitter *Submitter, logger *log.Logger) (*TransferAllStrategy, error) {
	if utility == nil {
		return nil, errors.New("transfer all strategy: nil utility")
	}
	if submitter == nil {
		return nil, errors.New("transfer all strategy: nil submitter")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &TransferAllStrategy{utility: utility, submitter: submitter, logger: logger}, nil
}

func (s *TransferAllStrategy) Name() string { return StrategyTransferAll }

// Supports reports whether the strategy handles the agreement type.
func (s *TransferAllStrategy) Supports(agreementType transfer.AgreementType) bool {
	return agreementType == transfer.AgreementTypeTransferAll
}

// TransferCertificates runs one settlement pass for the agreement.
func (s *TransferAllStrategy) TransferCertificates(ctx context.Context, agreement transfer.TransferAgreement) error {
	if !s.Supports(agreement.Type) {
		return fmt.Errorf("%w: %s for %s", transfer.ErrUnsupportedAgreementType, agreement.Type, StrategyTransferAll)
	}

	pending, err := s.utility.HasPendingTransactions(ctx, agreement.SenderID)
	if err != nil {
		return err
	}
	if pending {
		metrics.IncTransferSkip(metrics.SkipPendingTransactions)
		s.logger.Printf("transfer skipped: agreement=%s sender=%s reason=pending", agreement.ID, agreement.SenderID)
		return nil
	}

	certs, err := s.utility.GetCertificates(ctx, agreement.SenderID)
	if err != nil {
		return err
	}

	transferred := 0
	defer func() { metrics.AddCertificatesTransferred(StrategyTransferAll, transferred) }()
	for _, cert := range certs {
		if cert.Type != transfer.CertificateTypeProduction || !agreement.Covers(cert.Period) {
			continue
		}
		ok, err := s.submitter.Submit(ctx, StrategyTransferAll, agreement, cert, cert.Quantity)
		if err != nil {
			return err
		}
		if ok {
			transferred++
		}
	}
	s.logger.Printf("transfer all done: agreement=%s sender=%s transferred=%d", agreement.ID, agreement.SenderID, transferred)
	return nil
}
