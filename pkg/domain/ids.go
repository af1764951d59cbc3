// Package domain holds typed identifiers shared across services.
//
// Each ID is a distinct type over uuid.UUID so the compiler rejects a
// SessionID where a QuoteID belongs. IDs arriving over trust boundaries go
// through the Parse helpers, which reject empty, malformed, and nil UUIDs.
package domain

import (
	"strings"

	"github.com/google/uuid"

	dErrors "lifeshield/pkg/domain-errors"
)

type (
	// SessionID identifies one applicant's conversation journey.
	SessionID uuid.UUID
	// QuoteID identifies a computed quote. Deterministic: derived from the
	// rating inputs and the rate-table version, so identical inputs always
	// produce the identical ID.
	QuoteID uuid.UUID
	// PaymentID identifies a payment attempt at the gateway.
	PaymentID uuid.UUID
)

func NewSessionID() SessionID { return SessionID(uuid.New()) }
func NewPaymentID() PaymentID { return PaymentID(uuid.New()) }

func (id SessionID) String() string { return uuid.UUID(id).String() }
func (id QuoteID) String() string   { return uuid.UUID(id).String() }
func (id PaymentID) String() string { return uuid.UUID(id).String() }

func (id SessionID) IsZero() bool { return uuid.UUID(id) == uuid.Nil }
func (id QuoteID) IsZero() bool   { return uuid.UUID(id) == uuid.Nil }
func (id PaymentID) IsZero() bool { return uuid.UUID(id) == uuid.Nil }

// Text marshalling keeps the canonical UUID string form on the wire and in
// stored session snapshots.

func (id SessionID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id QuoteID) MarshalText() ([]byte, error)   { return uuid.UUID(id).MarshalText() }
func (id PaymentID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }

func (id *SessionID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *QuoteID) UnmarshalText(b []byte) error   { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *PaymentID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }

// Short is the first UUID block, upper-cased. Used in human-facing
// references like policy numbers.
func (id SessionID) Short() string {
	return strings.ToUpper(uuid.UUID(id).String()[:8])
}

// ParseSessionID validates and converts an inbound session identifier.
func ParseSessionID(s string) (SessionID, error) {
	u, err := parse(s)
	return SessionID(u), err
}

// ParseQuoteID validates and converts an inbound quote identifier.
func ParseQuoteID(s string) (QuoteID, error) {
	u, err := parse(s)
	return QuoteID(u), err
}

// ParsePaymentID validates and converts an inbound payment identifier.
func ParsePaymentID(s string) (PaymentID, error) {
	u, err := parse(s)
	return PaymentID(u), err
}

func parse(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeBadRequest, "identifier must not be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeBadRequest, "identifier is not a valid UUID")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeBadRequest, "identifier must not be the nil UUID")
	}
	return u, nil
}
