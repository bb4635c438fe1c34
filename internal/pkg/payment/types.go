package payment

import (
	"context"

	"github.com/cloudvps-cz/CloudVPS/internal/pkg/hostbill"
)

// BillingClient is the slice of the billing API the payment service drives.
type BillingClient interface {
	FindClientByEmail(ctx context.Context, email string) (*hostbill.ClientAccount, error)
	CreateClient(ctx context.Context, in hostbill.CreateClientInput) (*hostbill.ClientAccount, error)
	CreateOrder(ctx context.Context, in hostbill.CreateOrderInput) (*hostbill.OrderResult, error)
	GetInvoiceStatus(ctx context.Context, invoiceID string) (*hostbill.InvoiceStatus, error)
	MarkInvoicePaid(ctx context.Context, in hostbill.MarkPaidInput) (*hostbill.InvoiceStatus, error)
}

// Enqueuer hands follow-up work to the background queue. A nil Enqueuer
// degrades to synchronous-only behavior, which the tests use.
type Enqueuer interface {
	EnqueueMarkInvoicePaid(correlationID string) error
	EnqueueAccountingSync(invoiceID string) error
}

// OrderLine is one storefront order row before product-id mapping.
type OrderLine struct {
	StoreProductID string  `json:"productId" validate:"required"`
	Quantity       int     `json:"quantity" validate:"required,min=1"`
	UnitPrice      float64 `json:"unitPrice" validate:"required,gt=0"`
}

// StartOrderInput is the validated order-create request. UserID links the
// lifecycle to a logged-in storefront account and is set server side.
type StartOrderInput struct {
	UserID    uint        `json:"-"`
	Email     string      `json:"email" validate:"required,email"`
	FirstName string      `json:"firstName" validate:"required"`
	LastName  string      `json:"lastName" validate:"required"`
	Password  string      `json:"password"`
	Company   string      `json:"company"`
	CompanyID string      `json:"companyId" validate:"omitempty,len=8,numeric"`
	Currency  string      `json:"currency"`
	Items     []OrderLine `json:"items" validate:"required,min=1,dive"`
}

// OrderOutput is the reshaped order-create response.
type OrderOutput struct {
	OrderID       string  `json:"orderId"`
	InvoiceID     string  `json:"invoiceId"`
	CorrelationID string  `json:"correlationId"`
	ClientID      string  `json:"clientId"`
	Total         float64 `json:"total"`
	Currency      string  `json:"currency"`
}

// InitializePaymentInput selects the gateway for an existing lifecycle.
type InitializePaymentInput struct {
	CorrelationID string `json:"correlationId" validate:"required"`
	Gateway       string `json:"gateway" validate:"required"`
	Email         string `json:"email"`
	ReturnURL     string `json:"returnUrl"`
	CancelURL     string `json:"cancelUrl"`
}

// MarkPaidRequest is the manual/queued mark-paid call.
type MarkPaidRequest struct {
	InvoiceID     string  `json:"invoiceId" validate:"required"`
	Amount        float64 `json:"amount" validate:"required,gt=0"`
	Currency      string  `json:"currency" validate:"required,len=3"`
	TransactionID string  `json:"transactionId"`
}

// StatusOutput reports the lifecycle and last known transaction for a
// reference id.
type StatusOutput struct {
	ReferenceID   string `json:"referenceId"`
	InvoiceID     string `json:"invoiceId"`
	State         string `json:"state"`
	Gateway       string `json:"gateway,omitempty"`
	TransactionID string `json:"transactionId,omitempty"`
	Status        string `json:"status,omitempty"`
	Amount        string `json:"amount,omitempty"`
	Currency      string `json:"currency,omitempty"`
}
