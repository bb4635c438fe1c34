package accounting

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDocument() InvoiceDocument {
	return InvoiceDocument{
		InvoiceID:    "2001",
		VariableSym:  "2001",
		CustomerName: "Example s.r.o.",
		CustomerICO:  "12345678",
		Currency:     "CZK",
		Amount:       598,
		PaidAt:       time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC),
		Items: []InvoiceItem{
			{Text: "VPS Basic", Quantity: 2, UnitPrice: 299},
		},
	}
}

func TestBuildInvoiceXML(t *testing.T) {
	out, err := BuildInvoiceXML(testDocument(), "acc-user", "acc-pass")
	require.NoError(t, err)

	s := string(out)
	assert.True(t, strings.HasPrefix(s, "<?xml"))
	assert.Contains(t, s, `username="acc-user"`)
	assert.Contains(t, s, `password="acc-pass"`)
	assert.Contains(t, s, "<symVar>2001</symVar>")
	assert.Contains(t, s, "<company>Example s.r.o.</company>")
	assert.Contains(t, s, "<ico>12345678</ico>")
	assert.Contains(t, s, "<date>2025-03-14</date>")
	assert.Contains(t, s, "<quantity>2</quantity>")
	assert.Contains(t, s, "<unitPrice>299</unitPrice>")
}

func TestBuildInvoiceXMLDefaultsLineItem(t *testing.T) {
	doc := testDocument()
	doc.Items = nil

	out, err := BuildInvoiceXML(doc, "u", "p")
	require.NoError(t, err)
	assert.Contains(t, string(out), "<text>Invoice 2001</text>")
	assert.Contains(t, string(out), "<unitPrice>598</unitPrice>")
}

func TestBuildInvoiceXMLValidation(t *testing.T) {
	doc := testDocument()
	doc.InvoiceID = ""
	_, err := BuildInvoiceXML(doc, "u", "p")
	require.Error(t, err)

	doc = testDocument()
	doc.Amount = 0
	_, err = BuildInvoiceXML(doc, "u", "p")
	require.Error(t, err)
}

func TestSyncInvoice(t *testing.T) {
	var received []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/pohoda/import", r.URL.Path)
		assert.Equal(t, "application/xml", r.Header.Get("Content-Type"))
		assert.Equal(t, "Bearer key-1", r.Header.Get("Authorization"))

		buf := make([]byte, r.ContentLength)
		_, _ = r.Body.Read(buf)
		received = buf
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	b := &Broker{
		APIURL:     srv.URL,
		APIKey:     "key-1",
		Username:   "acc-user",
		Password:   "acc-pass",
		HTTPClient: http.DefaultClient,
	}
	payload, err := b.SyncInvoice(context.Background(), testDocument())
	require.NoError(t, err)
	assert.Contains(t, string(payload), "<symVar>2001</symVar>")
	assert.Contains(t, string(received), "dataPack")
}

func TestSyncInvoiceBrokerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte("schema rejected"))
	}))
	defer srv.Close()

	b := &Broker{APIURL: srv.URL, Username: "u", Password: "p", HTTPClient: http.DefaultClient}
	_, err := b.SyncInvoice(context.Background(), testDocument())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status=422")
}
