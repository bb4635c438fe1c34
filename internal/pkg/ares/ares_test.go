package ares

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateICO(t *testing.T) {
	tests := []struct {
		ico     string
		wantErr bool
	}{
		{ico: "12345678", wantErr: false},
		{ico: "00000001", wantErr: false},
		{ico: "1234567", wantErr: true},
		{ico: "123456789", wantErr: true},
		{ico: "1234567a", wantErr: true},
		{ico: "", wantErr: true},
	}

	for _, tt := range tests {
		err := ValidateICO(tt.ico)
		if tt.wantErr && err == nil {
			t.Fatalf("ValidateICO(%q) expected error, got nil", tt.ico)
		}
		if !tt.wantErr && err != nil {
			t.Fatalf("ValidateICO(%q) unexpected error: %v", tt.ico, err)
		}
	}
}

func TestLookup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/12345678", r.URL.Path)
		_, _ = w.Write([]byte(`{
			"ico": "12345678",
			"obchodniJmeno": "Example s.r.o.",
			"dic": "CZ12345678",
			"sidlo": {"nazevUlice": "Dlouha", "cisloDomovni": 12, "nazevObce": "Praha", "psc": 11000}
		}`))
	}))
	defer srv.Close()

	c := &Client{BaseURL: srv.URL, HTTPClient: http.DefaultClient}
	company, err := c.Lookup(context.Background(), "12345678")
	require.NoError(t, err)
	assert.Equal(t, "Example s.r.o.", company.Name)
	assert.Equal(t, "CZ12345678", company.VATID)
	assert.Equal(t, "Dlouha 12", company.Street)
	assert.Equal(t, "Praha", company.City)
	assert.Equal(t, "11000", company.ZipCode)
}

func TestLookupInvalidICOSkipsNetwork(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	c := &Client{BaseURL: srv.URL, HTTPClient: http.DefaultClient}
	_, err := c.Lookup(context.Background(), "123")
	assert.ErrorIs(t, err, ErrInvalidICO)
	assert.False(t, called)
}

func TestLookupNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := &Client{BaseURL: srv.URL, HTTPClient: http.DefaultClient}
	_, err := c.Lookup(context.Background(), "12345678")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLookupUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("maintenance"))
	}))
	defer srv.Close()

	c := &Client{BaseURL: srv.URL, HTTPClient: http.DefaultClient}
	_, err := c.Lookup(context.Background(), "12345678")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status=502")
}
