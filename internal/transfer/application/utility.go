package application

import (
	"context"
	"errors"
	"fmt"
	"log"

	"certificate-transfer/internal/observability/metrics"
	transfer "certificate-transfer/internal/transfer/domain"
)

const defaultBatchSize = 1000

// Utility holds the certificate fetching and request reconciliation shared by
// both strategies.
type Utility struct {
	client    CertificateClient
	store     RequestStatusStore
	clock     Clock
	logger    *log.Logger
	isTrial   bool
	batchSize int
	aging     transfer.AgingPolicy
}

// UtilityOption configures the utility.
type UtilityOption func(*Utility)

// WithTrial selects which certificate partition the engine moves.
func WithTrial(isTrial bool) UtilityOption {
	return func(u *Utility) {
		u.isTrial = isTrial
	}
}

// WithBatchSize overrides the page size used against the wallet.
func WithBatchSize(size int) UtilityOption {
	return func(u *Utility) {
		if size > 0 {
			u.batchSize = size
		}
	}
}

// WithAgingPolicy overrides the reconciliation thresholds.
func WithAgingPolicy(policy transfer.AgingPolicy) UtilityOption {
	return func(u *Utility) {
		if policy.CheckInterval > 0 && policy.TimeoutAfter > 0 && policy.DeleteAfter > 0 {
			u.aging = policy
		}
	}
}

// WithUtilityClock overrides the default clock.
func WithUtilityClock(clock Clock) UtilityOption {
	return func(u *Utility) {
		if clock != nil {
			u.clock = clock
		}
	}
}

// WithUtilityLogger overrides the default logger.
func WithUtilityLogger(logger *log.Logger) UtilityOption {
	return func(u *Utility) {
		if logger != nil {
			u.logger = logger
		}
	}
}

// NewUtility constructs the shared transfer utility.
func NewUtility(client CertificateClient, store RequestStatusStore, opts ...UtilityOption) (*Utility, error) {
	if client == nil {
		return nil, errors.New("transfer utility: nil certificate client")
	}
	if store == nil {
		return nil, errors.New("transfer utility: nil request status store")
	}
	u := &Utility{
		client:    client,
		store:     store,
		clock:     SystemClock{},
		logger:    log.Default(),
		batchSize: defaultBatchSize,
		aging:     transfer.DefaultAgingPolicy(),
	}
	for _, opt := range opts {
		opt(u)
	}
	return u, nil
}

// GetProductionCertificates returns the organization's production certificates
// of the configured trial partition.
func (u *Utility) GetProductionCertificates(ctx context.Context, orgID string) ([]transfer.GranularCertificate, error) {
	certType := transfer.CertificateTypeProduction
	certs, err := u.fetchCertificates(ctx, orgID, &certType)
	if err != nil {
		return nil, err
	}
	return transfer.FilterByType(certs, transfer.CertificateTypeProduction), nil
}

// GetCertificates returns all certificates of the configured trial partition.
func (u *Utility) GetCertificates(ctx context.Context, orgID string) ([]transfer.GranularCertificate, error) {
	return u.fetchCertificates(ctx, orgID, nil)
}

// HasPendingTransactions reconciles the organization's requests and reports
// whether any is still pending afterwards.
func (u *Utility) HasPendingTransactions(ctx context.Context, orgID string) (bool, error) {
	rows, err := u.ReconcileOrganization(ctx, orgID)
	if err != nil {
		return false, err
	}
	for _, row := range rows {
		if row.Status == transfer.StatusPending {
			return true, nil
		}
	}
	return false, nil
}

// ReconcileOrganization runs one reconciliation pass over every request the
// organization sends or receives and returns the rows as seen after the pass.
// Deleted rows are included with their in-memory status.
func (u *Utility) ReconcileOrganization(ctx context.Context, orgID string) ([]transfer.RequestStatus, error) {
	if orgID == "" {
		return nil, transfer.ErrEmptyOrganizationID
	}
	rows, err := u.store.GetByOrganization(ctx, orgID)
	if err != nil {
		return nil, err
	}
	for i := range rows {
		if err := u.reconcile(ctx, &rows[i]); err != nil {
			return nil, err
		}
	}
	return rows, nil
}

func (u *Utility) reconcile(ctx context.Context, row *transfer.RequestStatus) error {
	now := u.clock.Now()
	switch u.aging.NextAction(*row, now) {
	case transfer.ActionSkip:
		return nil
	case transfer.ActionDelete:
		if err := u.store.Delete(ctx, row.ID); err != nil {
			return err
		}
		metrics.IncRequestStatusDeleted()
		if row.Advance(transfer.StatusTimeout, now) {
			metrics.IncRequestStatusTransition(string(transfer.StatusTimeout))
		}
		u.logger.Printf("request status deleted: id=%s request=%s sender=%s", row.ID, row.RequestID, row.SenderID)
		return nil
	case transfer.ActionTimeout:
		if row.Advance(transfer.StatusTimeout, now) {
			metrics.IncRequestStatusTransition(string(transfer.StatusTimeout))
		}
		u.logger.Printf("request status timed out: id=%s request=%s sender=%s", row.ID, row.RequestID, row.SenderID)
		return u.store.Update(ctx, *row)
	case transfer.ActionRefresh:
		row.Advance(row.Status, now)
		return u.store.Update(ctx, *row)
	default:
		external, err := u.client.GetRequestStatus(ctx, row.SenderID, row.RequestID)
		if err != nil {
			return fmt.Errorf("transfer utility: request status %s: %w", row.RequestID, err)
		}
		status, err := transfer.MapExternalStatus(external)
		if err != nil {
			return err
		}
		if row.Advance(status, now) {
			metrics.IncRequestStatusTransition(string(status))
		}
		return u.store.Update(ctx, *row)
	}
}

// fetchCertificates pages through the wallet until the accumulated count
// reaches the total reported by the wallet.
func (u *Utility) fetchCertificates(ctx context.Context, orgID string, certType *transfer.CertificateType) ([]transfer.GranularCertificate, error) {
	if orgID == "" {
		return nil, transfer.ErrEmptyOrganizationID
	}
	var fetched []transfer.GranularCertificate
	skip := 0
	for {
		page, err := u.client.GetGranularCertificates(ctx, orgID, u.batchSize, skip, certType)
		if err != nil {
			return nil, fmt.Errorf("transfer utility: certificates org=%s skip=%d: %w", orgID, skip, err)
		}
		if page == nil {
			return nil, fmt.Errorf("%w: certificates org=%s skip=%d", transfer.ErrTransferCertificates, orgID, skip)
		}
		fetched = append(fetched, page.Result...)
		if len(fetched) >= page.Metadata.Total {
			break
		}
		if len(page.Result) == 0 {
			return nil, fmt.Errorf("%w: empty page at skip=%d before total=%d org=%s",
				transfer.ErrTransferCertificates, skip, page.Metadata.Total, orgID)
		}
		skip += len(page.Result)
	}

	result := make([]transfer.GranularCertificate, 0, len(fetched))
	for _, cert := range fetched {
		if cert.IsTrial == u.isTrial {
			result = append(result, cert)
		}
	}
	return result, nil
}
