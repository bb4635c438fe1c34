package gateway

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Transaction statuses normalized across gateways.
const (
	StatusPending = "pending"
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// PaymentRequest is the internal shape of a payment-initialize call.
type PaymentRequest struct {
	OrderID     string
	InvoiceID   string
	ReferenceID string
	Amount      float64
	Currency    string
	Label       string
	Email       string
	ReturnURL   string
	CancelURL   string
}

// PaymentSession is the gateway's answer to an initialize call: where to
// send the customer and under which transaction id the gateway tracks it.
type PaymentSession struct {
	Gateway       string `json:"gateway"`
	TransactionID string `json:"transactionId"`
	ReferenceID   string `json:"referenceId"`
	RedirectURL   string `json:"redirectUrl"`
}

// Transaction is a normalized inbound callback.
type Transaction struct {
	Gateway       string
	TransactionID string
	ReferenceID   string
	Status        string
	Amount        string
	Currency      string
	RawPayload    []byte
}

// Adapter translates between the internal payment shapes and one concrete
// gateway protocol.
type Adapter interface {
	Name() string
	InitializePayment(ctx context.Context, req PaymentRequest) (*PaymentSession, error)
	ParseCallback(raw []byte) (*Transaction, error)
}

// ErrMissingTransactionID marks a callback payload without a transaction id;
// handlers answer 400 and must not touch the cache.
var ErrMissingTransactionID = errors.New("gateway: callback missing transaction id")

func (r PaymentRequest) validate() error {
	if strings.TrimSpace(r.InvoiceID) == "" {
		return errors.New("invoice_id is required")
	}
	if strings.TrimSpace(r.ReferenceID) == "" {
		return errors.New("reference_id is required")
	}
	if r.Amount <= 0 {
		return fmt.Errorf("amount must be positive, got %v", r.Amount)
	}
	if strings.TrimSpace(r.Currency) == "" {
		return errors.New("currency is required")
	}
	return nil
}

// amountToCents converts a decimal major-unit amount to the integer minor
// units both gateways bill in. Rounding is half-up on the second decimal.
func amountToCents(amount float64) int64 {
	return int64(amount*100 + 0.5)
}

// centsToAmount renders minor units back as a decimal string.
func centsToAmount(cents int64) string {
	return strconv.FormatFloat(float64(cents)/100, 'f', 2, 64)
}
