package gateway

import (
	"context"
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

const defaultComGateAPIURL = "https://payments.comgate.cz/v1.0"

// ComGate speaks the ComGate payment protocol: form-encoded create call with
// a query-string response body, form-encoded status callbacks.
type ComGate struct {
	Merchant string
	Secret   string
	APIURL   string
	Test     bool

	HTTPClient *http.Client
}

func NewComGateFromEnv() *ComGate {
	return &ComGate{
		Merchant: strings.TrimSpace(env.GetEnv("COMGATE_MERCHANT", "")),
		Secret:   strings.TrimSpace(env.GetEnv("COMGATE_SECRET", "")),
		APIURL:   strings.TrimRight(env.GetEnv("COMGATE_API_URL", defaultComGateAPIURL), "/"),
		Test:     env.GetEnv("COMGATE_TEST", "false") == "true",
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

func (g *ComGate) Name() string { return "comgate" }

func (g *ComGate) InitializePayment(ctx context.Context, req PaymentRequest) (*PaymentSession, error) {
	if g.Merchant == "" || g.Secret == "" {
		return nil, errors.New("COMGATE_MERCHANT/COMGATE_SECRET are not configured")
	}
	if err := req.validate(); err != nil {
		return nil, err
	}

	form := url.Values{}
	form.Set("merchant", g.Merchant)
	form.Set("secret", g.Secret)
	form.Set("price", strconv.FormatInt(amountToCents(req.Amount), 10))
	form.Set("curr", req.Currency)
	form.Set("refId", req.ReferenceID)
	form.Set("label", req.Label)
	form.Set("email", req.Email)
	form.Set("method", "ALL")
	form.Set("prepareOnly", "true")
	if req.ReturnURL != "" {
		form.Set("url_paid", req.ReturnURL)
	}
	if req.CancelURL != "" {
		form.Set("url_cancelled", req.CancelURL)
	}
	if g.Test {
		form.Set("test", "true")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.APIURL+"/create", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := g.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("comgate create failed: status=%d body=%s", resp.StatusCode, string(body))
	}

	// The create endpoint answers with a query-string encoded body:
	// code=0&message=OK&transId=AB12-CD34-EF56&redirect=...
	values, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, fmt.Errorf("comgate create returned malformed response: %w", err)
	}
	if code := values.Get("code"); code != "0" {
		return nil, fmt.Errorf("comgate create rejected: code=%s message=%s", code, values.Get("message"))
	}
	transID := values.Get("transId")
	if transID == "" {
		return nil, errors.New("comgate create response missing transId")
	}

	return &PaymentSession{
		Gateway:       g.Name(),
		TransactionID: transID,
		ReferenceID:   req.ReferenceID,
		RedirectURL:   values.Get("redirect"),
	}, nil
}

// ParseCallback normalizes a ComGate status push. The body is form encoded:
// merchant, transId, refId, status, price, curr, secret.
func (g *ComGate) ParseCallback(raw []byte) (*Transaction, error) {
	values, err := url.ParseQuery(string(raw))
	if err != nil {
		return nil, fmt.Errorf("comgate callback is not form encoded: %w", err)
	}

	transID := strings.TrimSpace(values.Get("transId"))
	if transID == "" {
		return nil, ErrMissingTransactionID
	}
	if g.Secret != "" && values.Get("secret") != g.Secret {
		return nil, errors.New("comgate callback secret mismatch")
	}

	amount := ""
	if price := values.Get("price"); price != "" {
		cents, perr := strconv.ParseInt(price, 10, 64)
		if perr != nil {
			return nil, fmt.Errorf("comgate callback carries invalid price %q", price)
		}
		amount = centsToAmount(cents)
	}

	return &Transaction{
		Gateway:       g.Name(),
		TransactionID: transID,
		ReferenceID:   strings.TrimSpace(values.Get("refId")),
		Status:        comGateStatus(values.Get("status")),
		Amount:        amount,
		Currency:      values.Get("curr"),
		RawPayload:    append([]byte(nil), raw...),
	}, nil
}

func comGateStatus(status string) string {
	switch strings.ToUpper(strings.TrimSpace(status)) {
	case "PAID":
		return StatusSuccess
	case "CANCELLED", "CANCELED":
		return StatusFailed
	case "PENDING", "AUTHORIZED":
		return StatusPending
	default:
		return StatusPending
	}
}
