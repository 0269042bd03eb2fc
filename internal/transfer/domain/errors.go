package transfer

import "errors"

var (
	// ErrUnsupportedAgreementType is returned when a strategy is invoked for another agreement type.
	ErrUnsupportedAgreementType = errors.New("transfer: unsupported agreement type")
	// ErrMissingReceiver marks a consumption agreement that has no receiver organization.
	ErrMissingReceiver = errors.New("transfer: missing receiver organization")
	// ErrTransferCertificates is returned when the wallet service gives no usable response.
	ErrTransferCertificates = errors.New("transfer: certificate client returned no response")
	// ErrUnknownCertificateType is returned for a certificate type outside the closed enum.
	ErrUnknownCertificateType = errors.New("transfer: unknown certificate type")
	// ErrUnexpectedRequestStatus is returned for an unmapped external request status.
	ErrUnexpectedRequestStatus = errors.New("transfer: unexpected request status")
	// ErrInvalidPeriod is returned when a period ends before it starts.
	ErrInvalidPeriod = errors.New("transfer: invalid period")
	// ErrEmptyOrganizationID is returned when an organization id is empty.
	ErrEmptyOrganizationID = errors.New("transfer: empty organization id")
)
