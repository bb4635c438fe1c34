package hostbill

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(url string) *Client {
	return &Client{
		APIID:      "id",
		APIKey:     "key",
		APIURL:     url,
		HTTPClient: http.DefaultClient,
	}
}

func TestOrderTotal(t *testing.T) {
	tests := []struct {
		name string
		in   CreateOrderInput
		want float64
	}{
		{
			name: "single item times quantity",
			in: CreateOrderInput{Items: []OrderItem{
				{ProductID: "vps-1", Quantity: 2, UnitPrice: 299, Cycle: "m"},
			}},
			want: 598,
		},
		{
			name: "zero quantity counts as one",
			in: CreateOrderInput{Items: []OrderItem{
				{ProductID: "vps-1", Quantity: 0, UnitPrice: 100},
			}},
			want: 100,
		},
		{
			name: "multiple lines sum",
			in: CreateOrderInput{Items: []OrderItem{
				{ProductID: "vps-1", Quantity: 1, UnitPrice: 199},
				{ProductID: "ip-1", Quantity: 3, UnitPrice: 50},
			}},
			want: 349,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.in.OrderTotal())
		})
	}
}

func TestFindClientByEmail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		q := r.URL.Query()
		assert.Equal(t, "getClients", q.Get("call"))
		assert.Equal(t, "id", q.Get("api_id"))
		assert.Equal(t, "key", q.Get("api_key"))

		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true,
			"clients": []map[string]string{
				{"id": "42", "email": "jan@example.cz", "firstname": "Jan", "lastname": "Novak"},
				{"id": "43", "email": "other@example.cz"},
			},
		})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	account, err := c.FindClientByEmail(context.Background(), "jan@example.cz")
	require.NoError(t, err)
	assert.Equal(t, "42", account.ID)
	assert.Equal(t, "Jan", account.FirstName)

	_, err = c.FindClientByEmail(context.Background(), "missing@example.cz")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "addOrder", r.PostForm.Get("call"))
		assert.Equal(t, "42", r.PostForm.Get("client_id"))
		assert.Equal(t, "10", r.PostForm.Get("items[0][product_id]"))
		assert.Equal(t, "2", r.PostForm.Get("items[0][qty]"))
		assert.Equal(t, "299.00", r.PostForm.Get("items[0][price]"))
		assert.Equal(t, "m", r.PostForm.Get("items[0][cycle]"))

		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"success":    true,
			"order_id":   "1001",
			"invoice_id": "2001",
			"total":      598,
		})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	result, err := c.CreateOrder(context.Background(), CreateOrderInput{
		ClientID: "42",
		Currency: "CZK",
		Items: []OrderItem{
			{ProductID: "10", Quantity: 2, UnitPrice: 299, Cycle: "m"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "1001", result.OrderID)
	assert.Equal(t, "2001", result.InvoiceID)
	assert.Equal(t, float64(598), result.Total)
	assert.Equal(t, "CZK", result.Currency)
}

func TestCreateOrderRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"success": false,
			"error":   []string{"Invalid client"},
		})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.CreateOrder(context.Background(), CreateOrderInput{
		ClientID: "999",
		Items:    []OrderItem{{ProductID: "10", Quantity: 1, UnitPrice: 100}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid client")
}

func TestCreateOrderUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gateway timeout", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.CreateOrder(context.Background(), CreateOrderInput{
		ClientID: "42",
		Items:    []OrderItem{{ProductID: "10", Quantity: 1, UnitPrice: 100}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status=502")
}

func TestMarkInvoicePaid(t *testing.T) {
	var calls []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var procedure string
		if r.Method == http.MethodGet {
			procedure = r.URL.Query().Get("call")
		} else {
			require.NoError(t, r.ParseForm())
			procedure = r.PostForm.Get("call")
		}
		calls = append(calls, procedure)

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
	defer srv.Close()

	c := newTestClient(srv.URL)
	status, err := c.MarkInvoicePaid(context.Background(), MarkPaidInput{
		InvoiceID:     "123",
		Amount:        100,
		Currency:      "CZK",
		TransactionID: "TX-1",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"setInvoiceStatus", "addInvoicePayment", "getInvoices"}, calls)
	assert.Equal(t, "paid", status.Status)
	assert.Equal(t, float64(100), status.Total)

	// Second call keeps succeeding; duplicate payment rows are the billing
	// system's concern.
	status, err = c.MarkInvoicePaid(context.Background(), MarkPaidInput{
		InvoiceID: "123",
		Amount:    100,
		Currency:  "CZK",
	})
	require.NoError(t, err)
	assert.Equal(t, "paid", status.Status)
}

func TestAuthClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "authClient", r.PostForm.Get("call"))
		assert.Equal(t, "jan@example.cz", r.PostForm.Get("email"))

		if r.PostForm.Get("password") != "correct" {
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"success": false,
				"error":   []string{"Invalid credentials"},
			})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"success":   true,
			"client_id": "42",
		})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	account, err := c.AuthClient(context.Background(), "jan@example.cz", "correct")
	require.NoError(t, err)
	assert.Equal(t, "42", account.ID)
	assert.Equal(t, "jan@example.cz", account.Email)

	_, err = c.AuthClient(context.Background(), "jan@example.cz", "wrong")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid credentials")

	_, err = c.AuthClient(context.Background(), "", "correct")
	require.Error(t, err)
}

func TestUpdatePaymentMethod(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "updateClient", r.PostForm.Get("call"))
		assert.Equal(t, "42", r.PostForm.Get("client_id"))
		assert.Equal(t, "comgate", r.PostForm.Get("payment_module"))

		_ = json.NewEncoder(w).Encode(map[string]interface{}{"success": true})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	require.NoError(t, c.UpdatePaymentMethod(context.Background(), "42", "comgate"))

	err := c.UpdatePaymentMethod(context.Background(), "42", "")
	require.Error(t, err)
}

func TestCallMalformedJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>maintenance</html>"))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.GetInvoiceStatus(context.Background(), "123")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed JSON")
}
