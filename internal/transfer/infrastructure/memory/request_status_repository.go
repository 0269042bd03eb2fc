package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	transfer "certificate-transfer/internal/transfer/domain"
)

// RequestStatusRepository is an in-memory request status store.
type RequestStatusRepository struct {
	mu   sync.RWMutex
	data map[uuid.UUID]transfer.RequestStatus
}

// NewRequestStatusRepository constructs a repository.
func NewRequestStatusRepository() *RequestStatusRepository {
	return &RequestStatusRepository{data: make(map[uuid.UUID]transfer.RequestStatus)}
}

// Add stores a new row.
func (r *RequestStatusRepository) Add(ctx context.Context, status transfer.RequestStatus) error {
	_ = ctx
	r.mu.Lock()
	r.data[status.ID] = status
	r.mu.Unlock()
	return nil
}

// Update overwrites an existing row. Missing rows are ignored.
func (r *RequestStatusRepository) Update(ctx context.Context, status transfer.RequestStatus) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.data[status.ID]; ok {
		r.data[status.ID] = status
	}
	return nil
}

// Delete removes a row.
func (r *RequestStatusRepository) Delete(ctx context.Context, id uuid.UUID) error {
	_ = ctx
	r.mu.Lock()
	delete(r.data, id)
	r.mu.Unlock()
	return nil
}

// GetByOrganization returns rows the organization sends or receives, oldest first.
func (r *RequestStatusRepository) GetByOrganization(ctx context.Context, orgID string) ([]transfer.RequestStatus, error) {
	_ = ctx
	r.mu.RLock()
	var result []transfer.RequestStatus
	for _, status := range r.data {
		if status.SenderID == orgID || status.ReceiverID == orgID {
			result = append(result, status)
		}
	}
	r.mu.RUnlock()
	sortByRequestTimestamp(result)
	return result, nil
}

// All returns every row for assertion convenience.
func (r *RequestStatusRepository) All() []transfer.RequestStatus {
	r.mu.RLock()
	result := make([]transfer.RequestStatus, 0, len(r.data))
	for _, status := range r.data {
		result = append(result, status)
	}
	r.mu.RUnlock()
	sortByRequestTimestamp(result)
	return result
}

func sortByRequestTimestamp(rows []transfer.RequestStatus) {
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].RequestTimestamp.Equal(rows[j].RequestTimestamp) {
			return rows[i].ID.String() < rows[j].ID.String()
		}
		return rows[i].RequestTimestamp.Before(rows[j].RequestTimestamp)
	})
}
