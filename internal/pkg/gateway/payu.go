package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cloudvps-cz/CloudVPS/internal/pkg/env"
)

const defaultPayUAPIURL = "https://secure.payu.com/api/v2_1"

// PayU speaks the PayU REST protocol: JSON order create, JSON notify
// callbacks.
type PayU struct {
	PosID     string
	SecondKey string
	APIURL    string

	HTTPClient *http.Client
}

func NewPayUFromEnv() *PayU {
	return &PayU{
		PosID:     strings.TrimSpace(env.GetEnv("PAYU_POS_ID", "")),
		SecondKey: strings.TrimSpace(env.GetEnv("PAYU_SECOND_KEY", "")),
		APIURL:    strings.TrimRight(env.GetEnv("PAYU_API_URL", defaultPayUAPIURL), "/"),
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

func (g *PayU) Name() string { return "payu" }

type payuCreateRequest struct {
	MerchantPosID string        `json:"merchantPosId"`
	ExtOrderID    string        `json:"extOrderId"`
	Description   string        `json:"description"`
	CurrencyCode  string        `json:"currencyCode"`
	TotalAmount   string        `json:"totalAmount"`
	ContinueURL   string        `json:"continueUrl,omitempty"`
	NotifyURL     string        `json:"notifyUrl,omitempty"`
	Buyer         *payuBuyer    `json:"buyer,omitempty"`
	Products      []payuProduct `json:"products"`
}

type payuBuyer struct {
	Email string `json:"email"`
}

type payuProduct struct {
	Name      string `json:"name"`
	UnitPrice string `json:"unitPrice"`
	Quantity  string `json:"quantity"`
}

type payuCreateResponse struct {
	Status struct {
		StatusCode string `json:"statusCode"`
		StatusDesc string `json:"statusDesc"`
	} `json:"status"`
	RedirectURI string `json:"redirectUri"`
	OrderID     string `json:"orderId"`
	ExtOrderID  string `json:"extOrderId"`
}

func (g *PayU) InitializePayment(ctx context.Context, req PaymentRequest) (*PaymentSession, error) {
	if g.PosID == "" {
		return nil, errors.New("PAYU_POS_ID is not configured")
	}
	if err := req.validate(); err != nil {
		return nil, err
	}

	cents := amountToCents(req.Amount)
	payload := payuCreateRequest{
		MerchantPosID: g.PosID,
		ExtOrderID:    req.ReferenceID,
		Description:   req.Label,
		CurrencyCode:  req.Currency,
		TotalAmount:   strconv.FormatInt(cents, 10),
		ContinueURL:   req.ReturnURL,
		Products: []payuProduct{
			{Name: req.Label, UnitPrice: strconv.FormatInt(cents, 10), Quantity: "1"},
		},
	}
	if req.Email != "" {
		payload.Buyer = &payuBuyer{Email: req.Email}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.APIURL+"/orders", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := g.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	// PayU answers 302 with a JSON body when the order is accepted.
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusFound {
		return nil, fmt.Errorf("payu order create failed: status=%d body=%s", resp.StatusCode, string(respBody))
	}

	var out payuCreateResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("payu order create returned malformed JSON: %w", err)
	}
	if out.Status.StatusCode != "SUCCESS" {
		return nil, fmt.Errorf("payu order create rejected: %s %s", out.Status.StatusCode, out.Status.StatusDesc)
	}
	if out.OrderID == "" {
		return nil, errors.New("payu order create response missing orderId")
	}

	return &PaymentSession{
		Gateway:       g.Name(),
		TransactionID: out.OrderID,
		ReferenceID:   req.ReferenceID,
		RedirectURL:   out.RedirectURI,
	}, nil
}

// ParseCallback normalizes a PayU notify payload.
func (g *PayU) ParseCallback(raw []byte) (*Transaction, error) {
	var notify struct {
		Order struct {
			OrderID      string `json:"orderId"`
			ExtOrderID   string `json:"extOrderId"`
			Status       string `json:"status"`
			TotalAmount  string `json:"totalAmount"`
			CurrencyCode string `json:"currencyCode"`
		} `json:"order"`
	}
	if err := json.Unmarshal(raw, &notify); err != nil {
		return nil, fmt.Errorf("payu notify is not valid JSON: %w", err)
	}

	if strings.TrimSpace(notify.Order.OrderID) == "" {
		return nil, ErrMissingTransactionID
	}

	amount := ""
	if notify.Order.TotalAmount != "" {
		cents, err := strconv.ParseInt(notify.Order.TotalAmount, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("payu notify carries invalid totalAmount %q", notify.Order.TotalAmount)
		}
		amount = centsToAmount(cents)
	}

	return &Transaction{
		Gateway:       g.Name(),
		TransactionID: notify.Order.OrderID,
		ReferenceID:   strings.TrimSpace(notify.Order.ExtOrderID),
		Status:        payuStatus(notify.Order.Status),
		Amount:        amount,
		Currency:      notify.Order.CurrencyCode,
		RawPayload:    append([]byte(nil), raw...),
	}, nil
}

func payuStatus(status string) string {
	switch strings.ToUpper(strings.TrimSpace(status)) {
	case "COMPLETED":
		return StatusSuccess
	case "CANCELED", "CANCELLED", "REJECTED":
		return StatusFailed
	case "PENDING", "WAITING_FOR_CONFIRMATION", "NEW":
		return StatusPending
	default:
		return StatusPending
	}
}
