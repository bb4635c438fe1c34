package accounting

import (
	"encoding/xml"
	"errors"
	"fmt"
	"time"
)

// InvoiceDocument is the invoice data pushed into the accounting system.
type InvoiceDocument struct {
	InvoiceID     string
	VariableSym   string
	CustomerName  string
	CustomerICO   string
	CustomerVATID string
	Currency      string
	Amount        float64
	PaidAt        time.Time
	Items         []InvoiceItem
}

// InvoiceItem is one accounting line of an invoice.
type InvoiceItem struct {
	Text      string
	Quantity  int
	UnitPrice float64
}

// The broker expects credentials inside the payload envelope, not as HTTP
// auth. That is the wire contract of the accounting bridge.
type dataPack struct {
	XMLName     xml.Name       `xml:"dataPack"`
	ID          string         `xml:"id,attr"`
	Application string         `xml:"application,attr"`
	Version     string         `xml:"version,attr"`
	Username    string         `xml:"username,attr"`
	Password    string         `xml:"password,attr"`
	Items       []dataPackItem `xml:"dataPackItem"`
}

type dataPackItem struct {
	ID      string        `xml:"id,attr"`
	Version string        `xml:"version,attr"`
	Invoice pohodaInvoice `xml:"invoice"`
}

type pohodaInvoice struct {
	Header pohodaHeader `xml:"invoiceHeader"`
	Detail pohodaDetail `xml:"invoiceDetail"`
}

type pohodaHeader struct {
	InvoiceType  string `xml:"invoiceType"`
	SymVar       string `xml:"symVar"`
	Date         string `xml:"date"`
	Text         string `xml:"text"`
	PartnerName  string `xml:"partnerIdentity>address>company"`
	PartnerICO   string `xml:"partnerIdentity>address>ico,omitempty"`
	PartnerVATID string `xml:"partnerIdentity>address>dic,omitempty"`
	Currency     string `xml:"foreignCurrency>currency,omitempty"`
	PaymentType  string `xml:"paymentType"`
}

type pohodaDetail struct {
	Items []pohodaItem `xml:"invoiceItem"`
}

type pohodaItem struct {
	Text      string  `xml:"text"`
	Quantity  int     `xml:"quantity"`
	UnitPrice float64 `xml:"homeCurrency>unitPrice"`
}

// BuildInvoiceXML renders the accounting payload for one paid invoice.
func BuildInvoiceXML(doc InvoiceDocument, username, password string) ([]byte, error) {
	if doc.InvoiceID == "" {
		return nil, errors.New("accounting: invoice id is required")
	}
	if doc.Amount <= 0 {
		return nil, fmt.Errorf("accounting: invalid amount %v for invoice %s", doc.Amount, doc.InvoiceID)
	}

	items := make([]pohodaItem, 0, len(doc.Items))
	for _, it := range doc.Items {
		qty := it.Quantity
		if qty <= 0 {
			qty = 1
		}
		items = append(items, pohodaItem{
			Text:      it.Text,
			Quantity:  qty,
			UnitPrice: it.UnitPrice,
		})
	}
	if len(items) == 0 {
		items = append(items, pohodaItem{
			Text:      "Invoice " + doc.InvoiceID,
			Quantity:  1,
			UnitPrice: doc.Amount,
		})
	}

	paidAt := doc.PaidAt
	if paidAt.IsZero() {
		paidAt = time.Now()
	}

	pack := dataPack{
		ID:          "inv-" + doc.InvoiceID,
		Application: "CloudVPS",
		Version:     "2.0",
		Username:    username,
		Password:    password,
		Items: []dataPackItem{
			{
				ID:      doc.InvoiceID,
				Version: "2.0",
				Invoice: pohodaInvoice{
					Header: pohodaHeader{
						InvoiceType:  "issuedInvoice",
						SymVar:       doc.VariableSym,
						Date:         paidAt.Format("2006-01-02"),
						Text:         "Invoice " + doc.InvoiceID,
						PartnerName:  doc.CustomerName,
						PartnerICO:   doc.CustomerICO,
						PartnerVATID: doc.CustomerVATID,
						Currency:     doc.Currency,
						PaymentType:  "draft",
					},
					Detail: pohodaDetail{Items: items},
				},
			},
		},
	}

	out, err := xml.MarshalIndent(pack, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), out...), nil
}
