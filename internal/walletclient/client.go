package walletclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"certificate-transfer/internal/transfer/application"
	transfer "certificate-transfer/internal/transfer/domain"
)

const trialAttribute = "IsTrial"

// TokenSource issues a bearer token for the organization a call acts for.
type TokenSource interface {
	IssueWalletToken(orgID string) (string, error)
}

// Client is the wallet service REST client.
type Client struct {
	baseURL string
	tokens  TokenSource
	client  *http.Client
}

// Option configures the client.
type Option func(*Client)

// WithHTTPClient overrides the default http client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.client = client
		}
	}
}

// NewClient constructs a wallet client.
func NewClient(baseURL string, tokens TokenSource, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("walletclient: empty base url")
	}
	if tokens == nil {
		return nil, errors.New("walletclient: nil token source")
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		tokens:  tokens,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// HTTPError is returned for non-2xx responses.
type HTTPError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("walletclient: %s %s: http %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

type federatedStreamID struct {
	Registry string `json:"registry"`
	StreamID string `json:"stream_id"`
}

type certificateDTO struct {
	FederatedStreamID federatedStreamID `json:"federated_stream_id"`
	Quantity          int64             `json:"quantity"`
	Start             time.Time         `json:"start"`
	End               time.Time         `json:"end"`
	GridArea          string            `json:"grid_area"`
	Type              string            `json:"type"`
	Attributes        map[string]string `json:"attributes"`
}

type pageMetadataDTO struct {
	Count  int `json:"count"`
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
	Total  int `json:"total"`
}

type certificatePageDTO struct {
	Result   []certificateDTO `json:"result"`
	Metadata pageMetadataDTO  `json:"metadata"`
}

type transferRequestDTO struct {
	CertificateID federatedStreamID `json:"certificate_id"`
	Quantity      int64             `json:"quantity"`
	Receiver      uuid.UUID         `json:"receiver"`
}

type transferResponseDTO struct {
	TransferRequestID uuid.UUID `json:"transfer_request_id"`
}

type requestStatusDTO struct {
	Status string `json:"status"`
}

// GetGranularCertificates fetches one page of the organization's certificates.
// A missing or null body yields a nil page.
func (c *Client) GetGranularCertificates(ctx context.Context, orgID string, limit, skip int, certType *transfer.CertificateType) (*application.CertificatePage, error) {
	query := url.Values{}
	query.Set("limit", strconv.Itoa(limit))
	query.Set("skip", strconv.Itoa(skip))
	if certType != nil {
		query.Set("type", string(*certType))
	}
	var resp *certificatePageDTO
	if err := c.doJSON(ctx, orgID, http.MethodGet, "/v1/certificates?"+query.Encode(), nil, &resp); err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, nil
	}

	page := &application.CertificatePage{
		Result: make([]transfer.GranularCertificate, 0, len(resp.Result)),
		Metadata: application.PageMetadata{
			Count:  resp.Metadata.Count,
			Offset: resp.Metadata.Offset,
			Limit:  resp.Metadata.Limit,
			Total:  resp.Metadata.Total,
		},
	}
	for _, dto := range resp.Result {
		cert, err := toCertificate(dto)
		if err != nil {
			return nil, err
		}
		page.Result = append(page.Result, cert)
	}
	return page, nil
}

// TransferCertificates asks the wallet to move quantity of cert to the receiver.
// A missing or null body yields a nil response.
func (c *Client) TransferCertificates(ctx context.Context, orgID string, cert transfer.GranularCertificate, quantity int64, receiverReference uuid.UUID) (*application.TransferResponse, error) {
	body := transferRequestDTO{
		CertificateID: federatedStreamID{
			Registry: cert.FederatedID.Registry,
			StreamID: cert.FederatedID.StreamID,
		},
		Quantity: quantity,
		Receiver: receiverReference,
	}
	var resp *transferResponseDTO
	if err := c.doJSON(ctx, orgID, http.MethodPost, "/v1/transfers", body, &resp); err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, nil
	}
	return &application.TransferResponse{TransferRequestID: resp.TransferRequestID}, nil
}

// GetRequestStatus reads the wallet-side status of a transfer request.
func (c *Client) GetRequestStatus(ctx context.Context, orgID string, requestID uuid.UUID) (transfer.ExternalRequestStatus, error) {
	var resp *requestStatusDTO
	if err := c.doJSON(ctx, orgID, http.MethodGet, "/v1/request-status/"+url.PathEscape(requestID.String()), nil, &resp); err != nil {
		return "", err
	}
	if resp == nil {
		return "", fmt.Errorf("%w: empty body for request %s", transfer.ErrUnexpectedRequestStatus, requestID)
	}
	return transfer.ExternalRequestStatus(strings.ToLower(resp.Status)), nil
}

func toCertificate(dto certificateDTO) (transfer.GranularCertificate, error) {
	certType, err := transfer.ParseCertificateType(dto.Type)
	if err != nil {
		return transfer.GranularCertificate{}, err
	}
	period, err := transfer.NewPeriod(dto.Start, dto.End)
	if err != nil {
		return transfer.GranularCertificate{}, err
	}
	isTrial, _ := strconv.ParseBool(dto.Attributes[trialAttribute])
	return transfer.GranularCertificate{
		FederatedID: transfer.FederatedStreamID{
			Registry: dto.FederatedStreamID.Registry,
			StreamID: dto.FederatedStreamID.StreamID,
		},
		Quantity:   dto.Quantity,
		Period:     period,
		GridArea:   dto.GridArea,
		Type:       certType,
		Attributes: dto.Attributes,
		IsTrial:    isTrial,
	}, nil
}

func (c *Client) doJSON(ctx context.Context, orgID, method, path string, body any, out any) error {
	token, err := c.tokens.IssueWalletToken(orgID)
	if err != nil {
		return err
	}

	var reqBody *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(payload)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &HTTPError{
			Method:     method,
			Path:       strings.SplitN(path, "?", 2)[0],
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(snippet)),
		}
	}
	if out == nil {
		return nil
	}
	err = json.NewDecoder(resp.Body).Decode(out)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
