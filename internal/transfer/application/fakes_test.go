package application

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	transfer "certificate-transfer/internal/transfer/domain"
	"certificate-transfer/internal/transfer/infrastructure/memory"
)

var baseTime = time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock(now time.Time) *fixedClock { return &fixedClock{now: now} }

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type transferCall struct {
	OrgID     string
	Cert      transfer.GranularCertificate
	Quantity  int64
	Receiver  uuid.UUID
	RequestID uuid.UUID
}

// fakeWallet serves certificates from memory. maxPage caps the page size the
// way a wallet may cap the requested limit.
type fakeWallet struct {
	mu          sync.Mutex
	certs       map[string][]transfer.GranularCertificate
	statuses    map[uuid.UUID]transfer.ExternalRequestStatus
	transfers   []transferCall
	maxPage     int
	extraTotal  int
	nilPage     bool
	nilTransfer bool
	transferErr error
	afterAccept func()
	pageCalls   int
	statusCalls int
}

func newFakeWallet() *fakeWallet {
	return &fakeWallet{
		certs:    make(map[string][]transfer.GranularCertificate),
		statuses: make(map[uuid.UUID]transfer.ExternalRequestStatus),
	}
}

func (w *fakeWallet) Add(orgID string, certs ...transfer.GranularCertificate) {
	w.mu.Lock()
	w.certs[orgID] = append(w.certs[orgID], certs...)
	w.mu.Unlock()
}

func (w *fakeWallet) SetStatus(requestID uuid.UUID, status transfer.ExternalRequestStatus) {
	w.mu.Lock()
	w.statuses[requestID] = status
	w.mu.Unlock()
}

func (w *fakeWallet) Transfers() []transferCall {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]transferCall(nil), w.transfers...)
}

func (w *fakeWallet) StatusCalls() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.statusCalls
}

func (w *fakeWallet) GetGranularCertificates(ctx context.Context, orgID string, limit, skip int, certType *transfer.CertificateType) (*CertificatePage, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pageCalls++
	if w.nilPage {
		return nil, nil
	}
	var all []transfer.GranularCertificate
	for _, cert := range w.certs[orgID] {
		if certType == nil || cert.Type == *certType {
			all = append(all, cert)
		}
	}
	if w.maxPage > 0 && limit > w.maxPage {
		limit = w.maxPage
	}
	end := skip + limit
	if skip > len(all) {
		skip = len(all)
	}
	if end > len(all) {
		end = len(all)
	}
	result := append([]transfer.GranularCertificate(nil), all[skip:end]...)
	return &CertificatePage{
		Result: result,
		Metadata: PageMetadata{
			Count:  len(result),
			Offset: skip,
			Limit:  limit,
			Total:  len(all) + w.extraTotal,
		},
	}, nil
}

func (w *fakeWallet) TransferCertificates(ctx context.Context, orgID string, cert transfer.GranularCertificate, quantity int64, receiverReference uuid.UUID) (*TransferResponse, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.transferErr != nil {
		return nil, w.transferErr
	}
	if w.nilTransfer {
		return nil, nil
	}
	requestID := uuid.New()
	w.transfers = append(w.transfers, transferCall{
		OrgID:     orgID,
		Cert:      cert,
		Quantity:  quantity,
		Receiver:  receiverReference,
		RequestID: requestID,
	})
	w.statuses[requestID] = transfer.ExternalStatusPending
	if w.afterAccept != nil {
		w.afterAccept()
	}
	return &TransferResponse{TransferRequestID: requestID}, nil
}

func (w *fakeWallet) GetRequestStatus(ctx context.Context, orgID string, requestID uuid.UUID) (transfer.ExternalRequestStatus, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.statusCalls++
	status, ok := w.statuses[requestID]
	if !ok {
		return "", transfer.ErrUnexpectedRequestStatus
	}
	return status, nil
}

// contextStore fails writes on a done context the way database/sql does.
type contextStore struct {
	*memory.RequestStatusRepository
}

func (s contextStore) Add(ctx context.Context, status transfer.RequestStatus) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.RequestStatusRepository.Add(ctx, status)
}

type eventRecorder struct {
	mu     sync.Mutex
	events []TransferSubmitted
}

func (r *eventRecorder) PublishTransferSubmitted(ctx context.Context, event TransferSubmitted) error {
	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()
	return nil
}

func (r *eventRecorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func hour(offset int) transfer.Period {
	start := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(offset) * time.Hour)
	return transfer.Period{Start: start, End: start.Add(time.Hour)}
}

func production(stream string, quantity int64, period transfer.Period) transfer.GranularCertificate {
	return transfer.GranularCertificate{
		FederatedID: transfer.FederatedStreamID{Registry: "energinet.dk", StreamID: stream},
		Quantity:    quantity,
		Period:      period,
		GridArea:    "DK1",
		Type:        transfer.CertificateTypeProduction,
	}
}

func consumption(stream string, quantity int64, period transfer.Period) transfer.GranularCertificate {
	cert := production(stream, quantity, period)
	cert.Type = transfer.CertificateTypeConsumption
	return cert
}

func newAgreement(agreementType transfer.AgreementType) transfer.TransferAgreement {
	return transfer.TransferAgreement{
		ID:                uuid.New(),
		SenderID:          "org-sender",
		SenderName:        "Sender A/S",
		ReceiverID:        "org-receiver",
		ReceiverTIN:       "12345678",
		StartDate:         time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC),
		Type:              agreementType,
		ReceiverReference: uuid.New(),
	}
}
