package memory

import (
	"context"
	"sync"
	"time"

	transfer "certificate-transfer/internal/transfer/domain"
)

// AgreementRepository is an in-memory agreement reader.
type AgreementRepository struct {
	mu       sync.RWMutex
	items    []transfer.TransferAgreement
	lookback time.Duration
}

// NewAgreementRepository constructs a repository.
func NewAgreementRepository(lookback time.Duration, agreements ...transfer.TransferAgreement) *AgreementRepository {
	return &AgreementRepository{items: agreements, lookback: lookback}
}

// Put appends an agreement.
func (r *AgreementRepository) Put(agreement transfer.TransferAgreement) {
	r.mu.Lock()
	r.items = append(r.items, agreement)
	r.mu.Unlock()
}

// ListActive returns agreements active at now, in insertion order.
func (r *AgreementRepository) ListActive(ctx context.Context, now time.Time) ([]transfer.TransferAgreement, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []transfer.TransferAgreement
	for _, agreement := range r.items {
		if agreement.ActiveAt(now, r.lookback) {
			result = append(result, agreement)
		}
	}
	return result, nil
}
