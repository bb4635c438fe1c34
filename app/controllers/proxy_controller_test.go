package controllers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/cloudvps-cz/CloudVPS/app/models"
	"github.com/cloudvps-cz/CloudVPS/internal/pkg/hostbill"
	"github.com/cloudvps-cz/CloudVPS/internal/pkg/payment"
)

// stubRepository satisfies payment.Repository for handler tests whose flow
// never reaches the lifecycle tables.
type stubRepository struct{}

func (stubRepository) CreateLifecycle(*models.InvoiceLifecycle) error { return nil }
func (stubRepository) GetLifecycleByCorrelationID(string) (*models.InvoiceLifecycle, error) {
	return nil, gorm.ErrRecordNotFound
}
func (stubRepository) GetLifecycleByInvoiceID(string) (*models.InvoiceLifecycle, error) {
	return nil, gorm.ErrRecordNotFound
}
func (stubRepository) TransitionLifecycle(string, string, string) (*models.InvoiceLifecycle, error) {
	return nil, gorm.ErrRecordNotFound
}
func (stubRepository) ListStuckAuthorized(time.Duration) ([]models.InvoiceLifecycle, error) {
	return nil, nil
}
func (stubRepository) UpsertTransaction(*models.PaymentTransaction) error { return nil }
func (stubRepository) GetTransactionByReferenceID(string) (*models.PaymentTransaction, error) {
	return nil, gorm.ErrRecordNotFound
}
func (stubRepository) CreateWebhookEventIfNotExists(e *models.PaymentWebhookEvent) (bool, *models.PaymentWebhookEvent, error) {
	return true, e, nil
}
func (stubRepository) MarkWebhookProcessed(uint, string) error { return nil }
func (stubRepository) FindActiveProductMapping(string) (*models.ProductMapping, error) {
	return nil, gorm.ErrRecordNotFound
}
func (stubRepository) SeedProductMappings([]models.ProductMapping) error { return nil }

func TestProxyMarkInvoicePaidResponseShape(t *testing.T) {
	billingSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var procedure string
		if r.Method == http.MethodGet {
			procedure = r.URL.Query().Get("call")
		} else {
			require.NoError(t, r.ParseForm())
			procedure = r.PostForm.Get("call")
		}

		switch procedure {
		case "setInvoiceStatus", "addInvoicePayment":
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"success": true})
		case "getInvoices":
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"success": true,
				"invoice": map[string]interface{}{
					"id":       "123",
					"order_id": "77",
					"status":   "Paid",
					"total":    "100.00",
					"currency": "CZK",
					"datepaid": "2025-01-31 10:00:00",
				},
			})
		default:
			t.Fatalf("unexpected procedure %q", procedure)
		}
	}))
	defer billingSrv.Close()

	billing := &hostbill.Client{
		APIID:      "id",
		APIKey:     "key",
		APIURL:     billingSrv.URL,
		HTTPClient: http.DefaultClient,
	}
	SetPaymentService(payment.NewService(stubRepository{}, nil, billing, nil, nil))

	app := fiber.New()
	app.Post("/proxy/v1/invoices/mark-paid", HandleProxyMarkInvoicePaid)

	req := httptest.NewRequest(fiber.MethodPost, "/proxy/v1/invoices/mark-paid",
		strings.NewReader(`{"invoiceId":"123","amount":100,"currency":"CZK"}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	env := decodeEnvelope(t, resp)
	assert.True(t, env.Success)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, "123", got["invoiceId"])
	assert.Equal(t, "paid", got["status"])
	assert.Equal(t, 100.0, got["total"])
	// keys are camelCase, never Go field names
	assert.NotContains(t, got, "InvoiceID")
	assert.NotContains(t, got, "Status")
}
