package hostbill

import (
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

	"github.com/cloudvps-cz/CloudVPS/internal/pkg/env"
)

// Client performs remote procedure calls against the billing API. Every call
// carries the shared api_id/api_key pair plus a "call" parameter selecting
// the remote procedure. Failures are terminal: no retry, no backoff, no
// idempotency key.
type Client struct {
	APIID  string
	APIKey string
	APIURL string

	HTTPClient *http.Client
}

// ErrNotFound is returned when a lookup call succeeds but matches nothing.
var ErrNotFound = errors.New("hostbill: record not found")

func NewClientFromEnv() *Client {
	return &Client{
		APIID:  strings.TrimSpace(env.GetEnv("HOSTBILL_API_ID", "")),
		APIKey: strings.TrimSpace(env.GetEnv("HOSTBILL_API_KEY", "")),
		APIURL: strings.TrimRight(env.GetEnv("HOSTBILL_API_URL", ""), "/"),
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// call performs one API invocation. GET requests put the fields in the query
// string, POST requests send them form-encoded; both shapes appear in the
// billing API depending on the procedure.
func (c *Client) call(ctx context.Context, method, procedure string, fields url.Values) (map[string]json.RawMessage, error) {
	if c.APIID == "" || c.APIKey == "" {
		return nil, errors.New("HOSTBILL_API_ID/HOSTBILL_API_KEY are not configured")
	}
	if c.APIURL == "" {
		return nil, errors.New("HOSTBILL_API_URL is not configured")
	}

	if fields == nil {
		fields = url.Values{}
	}
	fields.Set("api_id", c.APIID)
	fields.Set("api_key", c.APIKey)
	fields.Set("call", procedure)

	var req *http.Request
	var err error
	if method == http.MethodGet {
		u, perr := url.Parse(c.APIURL)
		if perr != nil {
			return nil, fmt.Errorf("invalid HOSTBILL_API_URL: %w", perr)
		}
		u.RawQuery = fields.Encode()
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	} else {
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, c.APIURL, strings.NewReader(fields.Encode()))
		if req != nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	}
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("billing call %s failed: status=%d body=%s", procedure, resp.StatusCode, string(body))
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("billing call %s returned malformed JSON: %w", procedure, err)
	}

	var success bool
	if s, ok := raw["success"]; ok {
		_ = json.Unmarshal(s, &success)
	}
	if !success {
		return nil, fmt.Errorf("billing call %s rejected: %s", procedure, apiErrorText(raw))
	}
	return raw, nil
}

func apiErrorText(raw map[string]json.RawMessage) string {
	e, ok := raw["error"]
	if !ok {
		return "unknown error"
	}
	// The API reports errors as a plain string or a list of strings.
	var single string
	if json.Unmarshal(e, &single) == nil && single != "" {
		return single
	}
	var many []string
	if json.Unmarshal(e, &many) == nil && len(many) > 0 {
		return strings.Join(many, "; ")
	}
	return string(e)
}

// FindClientByEmail looks up an existing billing client. Returns ErrNotFound
// when no client carries the address.
func (c *Client) FindClientByEmail(ctx context.Context, email string) (*ClientAccount, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, errors.New("email is required")
	}

	fields := url.Values{}
	fields.Set("email", email)
	raw, err := c.call(ctx, http.MethodGet, "getClients", fields)
	if err != nil {
		return nil, err
	}

	var clients []struct {
		ID        string `json:"id"`
		Email     string `json:"email"`
		FirstName string `json:"firstname"`
		LastName  string `json:"lastname"`
		Company   string `json:"companyname"`
		CompanyID string `json:"registrationnumber"`
	}
	if data, ok := raw["clients"]; ok {
		_ = json.Unmarshal(data, &clients)
	}
	for _, cl := range clients {
		if strings.EqualFold(strings.TrimSpace(cl.Email), email) {
			return &ClientAccount{
				ID:        cl.ID,
				Email:     cl.Email,
				FirstName: cl.FirstName,
				LastName:  cl.LastName,
				Company:   cl.Company,
				CompanyID: cl.CompanyID,
			}, nil
		}
	}
	return nil, ErrNotFound
}

// CreateClient registers a new billing client and returns its id.
func (c *Client) CreateClient(ctx context.Context, in CreateClientInput) (*ClientAccount, error) {
	if strings.TrimSpace(in.Email) == "" {
		return nil, errors.New("email is required")
	}

	fields := url.Values{}
	fields.Set("email", strings.TrimSpace(in.Email))
	fields.Set("firstname", strings.TrimSpace(in.FirstName))
	fields.Set("lastname", strings.TrimSpace(in.LastName))
	fields.Set("password", in.Password)
	if in.Company != "" {
		fields.Set("companyname", in.Company)
	}
	if in.CompanyID != "" {
		fields.Set("registrationnumber", in.CompanyID)
	}
	if in.Address != "" {
		fields.Set("address1", in.Address)
	}
	if in.City != "" {
		fields.Set("city", in.City)
	}
	if in.PostCode != "" {
		fields.Set("postcode", in.PostCode)
	}
	if in.Country != "" {
		fields.Set("country", in.Country)
	}

	raw, err := c.call(ctx, http.MethodPost, "addClient", fields)
	if err != nil {
		return nil, err
	}

	id := rawString(raw, "client_id")
	if id == "" {
		id = rawString(raw, "id")
	}
	if id == "" {
		return nil, errors.New("addClient response missing client id")
	}
	return &ClientAccount{
		ID:        id,
		Email:     strings.TrimSpace(in.Email),
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Company:   in.Company,
		CompanyID: in.CompanyID,
	}, nil
}

// AuthClient verifies a client credential pair against the billing system.
func (c *Client) AuthClient(ctx context.Context, email, password string) (*ClientAccount, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return nil, errors.New("email and password are required")
	}

	fields := url.Values{}
	fields.Set("email", strings.TrimSpace(email))
	fields.Set("password", password)
	raw, err := c.call(ctx, http.MethodPost, "authClient", fields)
	if err != nil {
		return nil, err
	}

	id := rawString(raw, "client_id")
	if id == "" {
		return nil, errors.New("authClient response missing client id")
	}
	return &ClientAccount{ID: id, Email: strings.TrimSpace(email)}, nil
}

// CreateOrder places an order for a billing client and returns the new order
// and invoice ids.
func (c *Client) CreateOrder(ctx context.Context, in CreateOrderInput) (*OrderResult, error) {
	if strings.TrimSpace(in.ClientID) == "" {
		return nil, errors.New("client_id is required")
	}
	if len(in.Items) == 0 {
		return nil, errors.New("order needs at least one item")
	}

	fields := url.Values{}
	fields.Set("client_id", in.ClientID)
	if in.PaymentModule != "" {
		fields.Set("payment_module", in.PaymentModule)
	}
	for i, item := range in.Items {
		prefix := fmt.Sprintf("items[%d]", i)
		fields.Set(prefix+"[product_id]", item.ProductID)
		fields.Set(prefix+"[qty]", strconv.Itoa(item.Quantity))
		fields.Set(prefix+"[price]", strconv.FormatFloat(item.UnitPrice, 'f', 2, 64))
		cycle := item.Cycle
		if cycle == "" {
			cycle = "m"
		}
		fields.Set(prefix+"[cycle]", cycle)
	}

	raw, err := c.call(ctx, http.MethodPost, "addOrder", fields)
	if err != nil {
		return nil, err
	}

	orderID := rawString(raw, "order_id")
	invoiceID := rawString(raw, "invoice_id")
	if orderID == "" || invoiceID == "" {
		return nil, errors.New("addOrder response missing order or invoice id")
	}

	currency := in.Currency
	if currency == "" {
		currency = "CZK"
	}
	total := rawFloat(raw, "total")
	if total == 0 {
		total = in.OrderTotal()
	}
	return &OrderResult{
		OrderID:   orderID,
		InvoiceID: invoiceID,
		Total:     total,
		Currency:  currency,
	}, nil
}

// GetInvoiceStatus fetches the paid/unpaid state of an invoice.
func (c *Client) GetInvoiceStatus(ctx context.Context, invoiceID string) (*InvoiceStatus, error) {
	invoiceID = strings.TrimSpace(invoiceID)
	if invoiceID == "" {
		return nil, errors.New("invoice_id is required")
	}

	fields := url.Values{}
	fields.Set("id", invoiceID)
	raw, err := c.call(ctx, http.MethodGet, "getInvoices", fields)
	if err != nil {
		return nil, err
	}

	var invoice struct {
		ID       string  `json:"id"`
		OrderID  string  `json:"order_id"`
		Status   string  `json:"status"`
		Total    float64 `json:"total,string"`
		Currency string  `json:"currency"`
		DatePaid string  `json:"datepaid"`
	}
	data, ok := raw["invoice"]
	if !ok {
		return nil, ErrNotFound
	}
	if err := json.Unmarshal(data, &invoice); err != nil {
		return nil, fmt.Errorf("getInvoices returned malformed invoice: %w", err)
	}
	return &InvoiceStatus{
		InvoiceID: invoice.ID,
		OrderID:   invoice.OrderID,
		Status:    strings.ToLower(invoice.Status),
		Total:     invoice.Total,
		Currency:  invoice.Currency,
		PaidAt:    invoice.DatePaid,
	}, nil
}

// MarkInvoicePaid flips the invoice to paid and records the payment. The
// billing system accepts repeated calls for the same invoice; a duplicate
// payment record is its documented behavior, not an error.
func (c *Client) MarkInvoicePaid(ctx context.Context, in MarkPaidInput) (*InvoiceStatus, error) {
	if strings.TrimSpace(in.InvoiceID) == "" {
		return nil, errors.New("invoice_id is required")
	}

	statusFields := url.Values{}
	statusFields.Set("id", in.InvoiceID)
	statusFields.Set("status", "Paid")
	if _, err := c.call(ctx, http.MethodPost, "setInvoiceStatus", statusFields); err != nil {
		return nil, err
	}

	payFields := url.Values{}
	payFields.Set("invoice_id", in.InvoiceID)
	payFields.Set("amount", strconv.FormatFloat(in.Amount, 'f', 2, 64))
	payFields.Set("currency", in.Currency)
	if in.TransactionID != "" {
		payFields.Set("transnumber", in.TransactionID)
	}
	if in.PaymentModule != "" {
		payFields.Set("paymentmodule", in.PaymentModule)
	}
	if _, err := c.call(ctx, http.MethodPost, "addInvoicePayment", payFields); err != nil {
		return nil, err
	}

	return c.GetInvoiceStatus(ctx, in.InvoiceID)
}

// UpdatePaymentMethod switches the payment module stored on a client.
func (c *Client) UpdatePaymentMethod(ctx context.Context, clientID, paymentModule string) error {
	if strings.TrimSpace(clientID) == "" || strings.TrimSpace(paymentModule) == "" {
		return errors.New("client_id and payment_module are required")
	}

	fields := url.Values{}
	fields.Set("client_id", clientID)
	fields.Set("payment_module", paymentModule)
	_, err := c.call(ctx, http.MethodPost, "updateClient", fields)
	return err
}

func rawString(raw map[string]json.RawMessage, key string) string {
	v, ok := raw[key]
	if !ok {
		return ""
	}
	var s string
	if json.Unmarshal(v, &s) == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if json.Unmarshal(v, &n) == nil {
		return n.String()
	}
	return ""
}

func rawFloat(raw map[string]json.RawMessage, key string) float64 {
	v, ok := raw[key]
	if !ok {
		return 0
	}
	var f float64
	if json.Unmarshal(v, &f) == nil {
		return f
	}
	var s string
	if json.Unmarshal(v, &s) == nil {
		if parsed, err := strconv.ParseFloat(s, 64); err == nil {
			return parsed
		}
	}
	return 0
}
