// Package domain holds typed identifiers and shared domain primitives.
//
// IDs are distinct types over uuid.UUID so a certificate ID can never be
// passed where an account ID is expected. Construct them from external input
// only through the Parse functions, which enforce validity at trust
// boundaries; direct casting bypasses validation.
package domain

import (
	"github.com/google/uuid"

	dErrors "veritag/pkg/domain-errors"
)

// CertificateID is the stable internal primary key of a certificate.
// It is never exposed in public responses.
type CertificateID uuid.UUID

// AccountID references an owning account.
type AccountID uuid.UUID

// maxIDLength bounds parser input; a UUID string is 36 characters and
// anything materially longer is an attack vector, not a typo.
const maxIDLength = 64

func parseUUID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id cannot be empty")
	}
	if len(s) > maxIDLength {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id too long")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid id format")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id cannot be nil")
	}
	return u, nil
}

// ParseCertificateID validates external input into a CertificateID.
func ParseCertificateID(s string) (CertificateID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return CertificateID(uuid.Nil), err
	}
	return CertificateID(u), nil
}

// ParseAccountID validates external input into an AccountID.
func ParseAccountID(s string) (AccountID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return AccountID(uuid.Nil), err
	}
	return AccountID(u), nil
}

// NewCertificateID returns a fresh random certificate ID.
func NewCertificateID() CertificateID {
	return CertificateID(uuid.New())
}

// NewAccountID returns a fresh random account ID.
func NewAccountID() AccountID {
	return AccountID(uuid.New())
}

func (id CertificateID) String() string { return uuid.UUID(id).String() }
func (id CertificateID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

func (id AccountID) String() string { return uuid.UUID(id).String() }
func (id AccountID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
