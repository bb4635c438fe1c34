package hostbill

// ClientAccount is the subset of a billing-system client record the
// storefront cares about. Serialized into API responses, hence the tags.
type ClientAccount struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Company   string `json:"company,omitempty"`
	CompanyID string `json:"companyId,omitempty"`
}

// CreateClientInput carries the fields for an addClient call.
type CreateClientInput struct {
	Email     string
	FirstName string
	LastName  string
	Password  string
	Company   string
	CompanyID string
	Address   string
	City      string
	PostCode  string
	Country   string
}

// OrderItem is one (product, qty, unit price) line of an order.
type OrderItem struct {
	ProductID string
	Quantity  int
	UnitPrice float64
	Cycle     string
}

// CreateOrderInput carries the fields for an addOrder call.
type CreateOrderInput struct {
	ClientID      string
	Items         []OrderItem
	Currency      string
	PaymentModule string
}

// OrderResult is the reshaped addOrder response.
type OrderResult struct {
	OrderID   string
	InvoiceID string
	Total     float64
	Currency  string
}

// InvoiceStatus is the reshaped invoice detail response. Serialized into
// API responses, hence the tags.
type InvoiceStatus struct {
	InvoiceID string  `json:"invoiceId"`
	OrderID   string  `json:"orderId,omitempty"`
	Status    string  `json:"status"`
	Total     float64 `json:"total"`
	Currency  string  `json:"currency,omitempty"`
	PaidAt    string  `json:"paidAt,omitempty"`
}

// MarkPaidInput carries the fields for setInvoiceStatus + addInvoicePayment.
type MarkPaidInput struct {
	InvoiceID     string
	Amount        float64
	Currency      string
	TransactionID string
	PaymentModule string
}

// OrderTotal computes the order amount as the billing system would invoice
// it: sum of unit price times quantity per line.
func (in CreateOrderInput) OrderTotal() float64 {
	var total float64
	for _, item := range in.Items {
		qty := item.Quantity
		if qty <= 0 {
			qty = 1
		}
		total += item.UnitPrice * float64(qty)
	}
	return total
}
