package transfer

import (
	"fmt"
	"time"
)

// CertificateType tags a granular certificate as production or consumption.
type CertificateType string

const (
	CertificateTypeProduction  CertificateType = "production"
	CertificateTypeConsumption CertificateType = "consumption"
)

// Valid reports whether the type is one of the known values.
func (t CertificateType) Valid() bool {
	return t == CertificateTypeProduction || t == CertificateTypeConsumption
}

// ParseCertificateType maps a wire value onto the closed enum.
func ParseCertificateType(value string) (CertificateType, error) {
	switch CertificateType(value) {
	case CertificateTypeProduction, "Production":
		return CertificateTypeProduction, nil
	case CertificateTypeConsumption, "Consumption":
		return CertificateTypeConsumption, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownCertificateType, value)
	}
}

// FederatedStreamID identifies a certificate across registries.
type FederatedStreamID struct {
	Registry string
	StreamID string
}

// String renders the id as registry/stream.
func (id FederatedStreamID) String() string {
	return id.Registry + "/" + id.StreamID
}

// Period is a half-open interval [Start, End). Periods are compared exactly.
type Period struct {
	Start time.Time
	End   time.Time
}

// NewPeriod builds a UTC period and rejects inverted bounds.
func NewPeriod(start, end time.Time) (Period, error) {
	if end.Before(start) {
		return Period{}, ErrInvalidPeriod
	}
	return Period{Start: start.UTC(), End: end.UTC()}, nil
}

// Key returns a comparable grouping key.
func (p Period) Key() PeriodKey {
	return PeriodKey{Start: p.Start.UnixNano(), End: p.End.UnixNano()}
}

func (p Period) String() string {
	return p.Start.UTC().Format(time.RFC3339) + "/" + p.End.UTC().Format(time.RFC3339)
}

// PeriodKey is the map key form of a Period. time.Time carries a location
// pointer, so it cannot be used as a key directly.
type PeriodKey struct {
	Start int64
	End   int64
}

// GranularCertificate is a snapshot of a wallet certificate.
type GranularCertificate struct {
	FederatedID FederatedStreamID
	Quantity    int64
	Period      Period
	GridArea    string
	Type        CertificateType
	Attributes  map[string]string
	IsTrial     bool
}
