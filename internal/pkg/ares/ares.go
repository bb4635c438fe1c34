package ares

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cloudvps-cz/CloudVPS/internal/pkg/env"
)

// Client queries the Czech ARES business registry for company data by ICO
// (the 8-digit company registration number).
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// ErrInvalidICO is returned before any network call when the ICO is not
// exactly 8 digits.
var ErrInvalidICO = errors.New("ares: ico must be exactly 8 digits")

// ErrNotFound is returned when the registry has no record for the ICO.
var ErrNotFound = errors.New("ares: company not found")

// Company is the subset of the registry record the checkout form needs.
type Company struct {
	ICO     string `json:"ico"`
	Name    string `json:"name"`
	VATID   string `json:"vat_id,omitempty"`
	Street  string `json:"street,omitempty"`
	City    string `json:"city,omitempty"`
	ZipCode string `json:"zip_code,omitempty"`
}

type aresRecord struct {
	ICO          string `json:"ico"`
	CommerceName string `json:"obchodniJmeno"`
	DIC          string `json:"dic"`
	Headquarters struct {
		Street      string `json:"nazevUlice"`
		HouseNumber int    `json:"cisloDomovni"`
		Orientation string `json:"cisloOrientacni"`
		City        string `json:"nazevObce"`
		Zip         int    `json:"psc"`
		TextAddress string `json:"textovaAdresa"`
	} `json:"sidlo"`
}

// NewClientFromEnv builds a client against ARES_API_URL (default the public
// registry endpoint).
func NewClientFromEnv() *Client {
	return &Client{
		BaseURL: env.GetEnv("ARES_API_URL", "https://ares.gov.cz/ekonomicke-subjekty-v-be/rest/ekonomicke-subjekty"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// ValidateICO checks the 8-digit shape without touching the network.
func ValidateICO(ico string) error {
	if len(ico) != 8 {
		return ErrInvalidICO
	}
	for _, r := range ico {
		if r < '0' || r > '9' {
			return ErrInvalidICO
		}
	}
	return nil
}

// Lookup fetches the company record for an ICO. Malformed ICOs fail fast
// with ErrInvalidICO; a missing record maps to ErrNotFound.
func (c *Client) Lookup(ctx context.Context, ico string) (*Company, error) {
	ico = strings.TrimSpace(ico)
	if err := ValidateICO(ico); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/"+ico, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ares request failed: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("ares lookup failed: status=%d body=%s", resp.StatusCode, string(body))
	}

	var record aresRecord
	if err := json.Unmarshal(body, &record); err != nil {
		return nil, fmt.Errorf("failed to decode ares response: %v", err)
	}
	if record.ICO == "" || record.CommerceName == "" {
		return nil, ErrNotFound
	}

	company := &Company{
		ICO:    record.ICO,
		Name:   record.CommerceName,
		VATID:  record.DIC,
		Street: record.Headquarters.Street,
		City:   record.Headquarters.City,
	}
	if record.Headquarters.HouseNumber > 0 {
		company.Street = strings.TrimSpace(fmt.Sprintf("%s %d", record.Headquarters.Street, record.Headquarters.HouseNumber))
	}
	if record.Headquarters.Zip > 0 {
		company.ZipCode = fmt.Sprintf("%d", record.Headquarters.Zip)
	}
	return company, nil
}
