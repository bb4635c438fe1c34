package accounting

import (
	"context"
	"fmt"
	"strconv"

	"github.com/gofiber/fiber/v2/log"

	"github.com/cloudvps-cz/CloudVPS/internal/pkg/payment"
	"github.com/cloudvps-cz/CloudVPS/internal/pkg/s3archive"
)

// Syncer resolves a paid invoice from the payment records, pushes it to the
// accounting broker and archives the rendered export.
type Syncer struct {
	broker  *Broker
	repo    payment.Repository
	archive *s3archive.Client
}

// NewSyncer creates an invoice syncer. archive may be nil when S3 archiving
// is disabled.
func NewSyncer(broker *Broker, repo payment.Repository, archive *s3archive.Client) *Syncer {
	return &Syncer{
		broker:  broker,
		repo:    repo,
		archive: archive,
	}
}

// SyncPaidInvoice exports one invoice into the accounting system. It is the
// processor behind the accounting_sync queue job.
func (s *Syncer) SyncPaidInvoice(ctx context.Context, invoiceID string) error {
	lifecycle, err := s.repo.GetLifecycleByInvoiceID(invoiceID)
	if err != nil {
		return fmt.Errorf("accounting: resolve invoice %s: %w", invoiceID, err)
	}

	amount, err := strconv.ParseFloat(lifecycle.Amount, 64)
	if err != nil {
		return fmt.Errorf("accounting: invoice %s carries invalid amount %q", invoiceID, lifecycle.Amount)
	}

	doc := InvoiceDocument{
		InvoiceID:   invoiceID,
		VariableSym: invoiceID,
		Currency:    lifecycle.Currency,
		Amount:      amount,
		PaidAt:      lifecycle.UpdatedAt,
	}

	payload, err := s.broker.SyncInvoice(ctx, doc)
	if err != nil {
		return err
	}

	if s.archive != nil {
		if key, aerr := s.archive.ArchiveInvoiceExport(ctx, invoiceID, payload); aerr != nil {
			// The export reached the broker; a failed archive copy is not
			// worth a retry loop that would re-post the invoice.
			log.Warnf("[Accounting] archive of invoice %s export failed: %v", invoiceID, aerr)
		} else {
			log.Infof("[Accounting] archived invoice %s export as %s", invoiceID, key)
		}
	}
	return nil
}
