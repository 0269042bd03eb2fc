package application

import (
	"context"
	"errors"
	"fmt"
	"log"

	"certificate-transfer/internal/observability/metrics"
	transfer "certificate-transfer/internal/transfer/domain"
)

// StrategyConsumption is the metric label of the consumption-matched strategy.
const StrategyConsumption = "transfer_based_on_consumption"

// ConsumptionStrategy moves only enough production to cover the receiver's
// unmatched consumption, period by period.
type ConsumptionStrategy struct {
	utility   *Utility
	submitter *Submitter
	logger    *log.Logger
}

// NewConsumptionStrategy constructs the strategy.
func NewConsumptionStrategy(utility *Utility, submitter *Submitter, logger *log.Logger) (*ConsumptionStrategy, error) {
	if utility == nil {
		return nil, errors.New("consumption strategy: nil utility")
	}
	if submitter == nil {
		return nil, errors.New("consumption strategy: nil submitter")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &ConsumptionStrategy{utility: utility, submitter: submitter, logger: logger}, nil
}

func (s *ConsumptionStrategy) Name() string { return StrategyConsumption }

// Supports reports whether the strategy handles the agreement type.
func (s *ConsumptionStrategy) Supports(agreementType transfer.AgreementType) bool {
	return agreementType == transfer.AgreementTypeTransferBasedOnConsumption
}

// TransferCertificates runs one settlement pass for the agreement.
func (s *ConsumptionStrategy) TransferCertificates(ctx context.Context, agreement transfer.TransferAgreement) error {
	if !s.Supports(agreement.Type) {
		return fmt.Errorf("%w: %s for %s", transfer.ErrUnsupportedAgreementType, agreement.Type, StrategyConsumption)
	}
	if !agreement.HasReceiver() {
		metrics.IncTransferSkip(metrics.SkipMissingReceiver)
		s.logger.Printf("transfer skipped: agreement=%s sender=%s reason=%q", agreement.ID, agreement.SenderID, transfer.ErrMissingReceiver)
		return nil
	}

	for _, orgID := range []string{agreement.SenderID, agreement.ReceiverID} {
		pending, err := s.utility.HasPendingTransactions(ctx, orgID)
		if err != nil {
			return err
		}
		if pending {
			metrics.IncTransferSkip(metrics.SkipPendingTransactions)
			s.logger.Printf("transfer skipped: agreement=%s organization=%s reason=pending", agreement.ID, orgID)
			return nil
		}
	}

	receiverCerts, err := s.utility.GetCertificates(ctx, agreement.ReceiverID)
	if err != nil {
		return err
	}
	demands, err := transfer.UnmatchedConsumption(receiverCerts)
	if err != nil {
		return err
	}
	if len(demands) == 0 {
		s.logger.Printf("transfer nothing to do: agreement=%s receiver=%s reason=no_unmatched_consumption", agreement.ID, agreement.ReceiverID)
		return nil
	}

	senderCerts, err := s.utility.GetProductionCertificates(ctx, agreement.SenderID)
	if err != nil {
		return err
	}
	supply := make(map[transfer.PeriodKey][]transfer.GranularCertificate)
	for _, group := range transfer.GroupByPeriod(senderCerts) {
		supply[group.Period.Key()] = group.Certificates
	}

	transferred := 0
	defer func() { metrics.AddCertificatesTransferred(StrategyConsumption, transferred) }()
	for _, demand := range demands {
		if !agreement.Covers(demand.Period) {
			continue
		}
		certs, ok := supply[demand.Period.Key()]
		if !ok {
			continue
		}
		for _, alloc := range transfer.AllocateFirstFit(certs, demand.Quantity) {
			ok, err := s.submitter.Submit(ctx, StrategyConsumption, agreement, alloc.Certificate, alloc.Quantity)
			if err != nil {
				return err
			}
			if ok {
				transferred++
			}
		}
	}
	s.logger.Printf("transfer consumption done: agreement=%s sender=%s receiver=%s transferred=%d", agreement.ID, agreement.SenderID, agreement.ReceiverID, transferred)
	return nil
}
