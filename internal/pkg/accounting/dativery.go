package accounting

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cloudvps-cz/CloudVPS/internal/pkg/env"
)

// Broker pushes accounting XML to the Dativery bridge which relays it into
// the bookkeeping system.
type Broker struct {
	APIURL     string
	APIKey     string
	Username   string
	Password   string
	HTTPClient *http.Client
}

// NewBrokerFromEnv creates a broker from DATIVERY_* environment variables.
func NewBrokerFromEnv() *Broker {
	return &Broker{
		APIURL:   env.GetEnv("DATIVERY_API_URL", "https://api.dativery.com/v1"),
		APIKey:   env.GetEnv("DATIVERY_API_KEY", ""),
		Username: env.GetEnv("POHODA_USERNAME", ""),
		Password: env.GetEnv("POHODA_PASSWORD", ""),
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// SyncInvoice builds the invoice payload and posts it to the broker.
// Returns the rendered XML so callers can archive it.
func (b *Broker) SyncInvoice(ctx context.Context, doc InvoiceDocument) ([]byte, error) {
	payload, err := BuildInvoiceXML(doc, b.Username, b.Password)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.APIURL+"/pohoda/import", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/xml")
	if b.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+b.APIKey)
	}

	resp, err := b.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("accounting sync request failed: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("accounting sync failed: status=%d body=%s", resp.StatusCode, string(body))
	}
	return payload, nil
}
