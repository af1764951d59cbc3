// Package payment fronts the external payment gateway. The shipped
// implementation is a mock that issues redirect URLs and accepts webhook
// confirmations; a real gateway slots in behind the same interface.
package payment

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	id "lifeshield/pkg/domain"
)

// Order is an initiated payment awaiting confirmation.
type Order struct {
	PaymentID   id.PaymentID
	RedirectURL string
	Amount      decimal.Decimal
	Currency    string
}

// Gateway initiates payments. Confirmation arrives out of band as a webhook
// carrying the payment ID.
type Gateway interface {
	Initiate(ctx context.Context, sessionID id.SessionID, amount decimal.Decimal) (Order, error)
}

// Mock issues deterministic-looking redirect URLs without contacting any
// processor. Default gateway for development and tests.
type Mock struct {
	baseURL string
}

func NewMock() *Mock {
	return &Mock{baseURL: "https://pay.lifeshield.example/checkout"}
}

func (m *Mock) Initiate(_ context.Context, sessionID id.SessionID, amount decimal.Decimal) (Order, error) {
	paymentID := id.NewPaymentID()
	return Order{
		PaymentID:   paymentID,
		RedirectURL: fmt.Sprintf("%s/%s?session=%s", m.baseURL, paymentID, sessionID),
		Amount:      amount,
		Currency:    "INR",
	}, nil
}
