package application

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"certificate-transfer/internal/observability/metrics"
	transfer "certificate-transfer/internal/transfer/domain"
)

const defaultConcurrency = 4

// Engine loads active agreements and settles each with its strategy.
type Engine struct {
	agreements  AgreementReader
	strategies  map[transfer.AgreementType]Strategy
	locker      OrganizationLocker
	concurrency int
	logger      *log.Logger
}

// EngineOption configures the engine.
type EngineOption func(*Engine)

// WithLocker overrides the in-process organization locker.
func WithLocker(locker OrganizationLocker) EngineOption {
	return func(e *Engine) {
		if locker != nil {
			e.locker = locker
		}
	}
}

// WithConcurrency bounds how many agreements run at once.
func WithConcurrency(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// WithEngineLogger overrides the default logger.
func WithEngineLogger(logger *log.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewEngine registers each strategy under the agreement types it supports.
func NewEngine(agreements AgreementReader, strategies []Strategy, opts ...EngineOption) (*Engine, error) {
	if agreements == nil {
		return nil, errors.New("transfer engine: nil agreement reader")
	}
	e := &Engine{
		agreements:  agreements,
		strategies:  make(map[transfer.AgreementType]Strategy),
		locker:      NewKeyedLocker(),
		concurrency: defaultConcurrency,
		logger:      log.Default(),
	}
	agreementTypes := []transfer.AgreementType{
		transfer.AgreementTypeTransferAll,
		transfer.AgreementTypeTransferBasedOnConsumption,
	}
	for _, agreementType := range agreementTypes {
		for _, strategy := range strategies {
			if strategy != nil && strategy.Supports(agreementType) {
				e.strategies[agreementType] = strategy
				break
			}
		}
	}
	if len(e.strategies) == 0 {
		return nil, errors.New("transfer engine: no strategies")
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Tick runs one dispatcher pass. A failing agreement is logged and counted;
// it never stops the others.
func (e *Engine) Tick(ctx context.Context, now time.Time) error {
	if e == nil {
		return errors.New("transfer engine: nil")
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}
	agreements, err := e.agreements.ListActive(ctx, now.UTC())
	if err != nil {
		return err
	}
	metrics.SetAgreementsOnLastRun(len(agreements))

	var g errgroup.Group
	g.SetLimit(e.concurrency)
	for _, agreement := range agreements {
		agreement := agreement
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := e.Run(ctx, agreement); err != nil {
				e.logger.Printf("transfer agreement error: agreement=%s type=%s sender=%s err=%v", agreement.ID, agreement.Type, agreement.SenderID, err)
			}
			return nil
		})
	}
	_ = g.Wait()
	return ctx.Err()
}

// Run settles a single agreement while holding the locks of every
// organization it touches.
func (e *Engine) Run(ctx context.Context, agreement transfer.TransferAgreement) error {
	start := time.Now()
	strategy, ok := e.strategies[agreement.Type]
	if !ok {
		metrics.IncTransferError(string(agreement.Type))
		return fmt.Errorf("%w: %q", transfer.ErrUnsupportedAgreementType, agreement.Type)
	}
	if agreement.SenderID == "" {
		metrics.IncTransferError(strategy.Name())
		return transfer.ErrEmptyOrganizationID
	}

	release, err := e.locker.Lock(ctx, agreement.Organizations()...)
	if err != nil {
		metrics.ObserveTransferRun(metrics.ResultError, time.Since(start))
		return fmt.Errorf("transfer engine: lock agreement=%s: %w", agreement.ID, err)
	}
	defer release()

	if err := strategy.TransferCertificates(ctx, agreement); err != nil {
		metrics.IncTransferError(strategy.Name())
		metrics.ObserveTransferRun(metrics.ResultError, time.Since(start))
		return err
	}
	metrics.ObserveTransferRun(metrics.ResultSuccess, time.Since(start))
	return nil
}
