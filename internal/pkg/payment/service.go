package payment

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/cloudvps-cz/CloudVPS/app/models"
	"github.com/cloudvps-cz/CloudVPS/internal/pkg/gateway"
	"github.com/cloudvps-cz/CloudVPS/internal/pkg/hostbill"
)

// Service drives the order/payment proxy flow:
// created -> payment_initiated -> payment_authorized -> invoice_paid.
// Each transition is persisted on the lifecycle row; the follow-up from
// payment_authorized to invoice_paid runs through the job queue so a crash
// after a captured payment cannot strand the invoice unpaid.
type Service struct {
	repo     Repository
	cache    SessionCache
	billing  BillingClient
	adapters map[string]gateway.Adapter
	enqueuer Enqueuer
}

// NewService assembles the payment service. adapters maps gateway name to
// implementation; enqueuer may be nil (no async follow-ups).
func NewService(repo Repository, cache SessionCache, billing BillingClient, adapters map[string]gateway.Adapter, enqueuer Enqueuer) *Service {
	return &Service{
		repo:     repo,
		cache:    cache,
		billing:  billing,
		adapters: adapters,
		enqueuer: enqueuer,
	}
}

// Adapter resolves a configured gateway by name.
func (s *Service) Adapter(name string) (gateway.Adapter, error) {
	a, ok := s.adapters[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("unknown payment gateway %q", name)
	}
	return a, nil
}

// StartOrder performs find-or-create on the billing client, places the
// order and opens a lifecycle row. When CreateOrder fails after a fresh
// CreateClient there is no rollback; the billing system keeps the client.
func (s *Service) StartOrder(ctx context.Context, in StartOrderInput) (*OrderOutput, error) {
	currency := in.Currency
	if currency == "" {
		currency = "CZK"
	}

	items := make([]hostbill.OrderItem, 0, len(in.Items))
	for _, line := range in.Items {
		mapping, err := s.repo.FindActiveProductMapping(line.StoreProductID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, fmt.Errorf("unknown product %q", line.StoreProductID)
			}
			return nil, err
		}
		items = append(items, hostbill.OrderItem{
			ProductID: mapping.BillingProductID,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
			Cycle:     mapping.BillingCycle,
		})
	}

	account, err := s.billing.FindClientByEmail(ctx, in.Email)
	if err != nil {
		if !errors.Is(err, hostbill.ErrNotFound) {
			return nil, err
		}
		account, err = s.billing.CreateClient(ctx, hostbill.CreateClientInput{
			Email:     in.Email,
			FirstName: in.FirstName,
			LastName:  in.LastName,
			Password:  in.Password,
			Company:   in.Company,
			CompanyID: in.CompanyID,
		})
		if err != nil {
			return nil, err
		}
	}

	order, err := s.billing.CreateOrder(ctx, hostbill.CreateOrderInput{
		ClientID: account.ID,
		Items:    items,
		Currency: currency,
	})
	if err != nil {
		return nil, err
	}

	lifecycle := &models.InvoiceLifecycle{
		CorrelationID: uuid.New().String(),
		OrderID:       order.OrderID,
		InvoiceID:     order.InvoiceID,
		UserID:        in.UserID,
		State:         models.LifecycleStateCreated,
		Amount:        strconv.FormatFloat(order.Total, 'f', 2, 64),
		Currency:      order.Currency,
	}
	if err := s.repo.CreateLifecycle(lifecycle); err != nil {
		return nil, err
	}

	return &OrderOutput{
		OrderID:       order.OrderID,
		InvoiceID:     order.InvoiceID,
		CorrelationID: lifecycle.CorrelationID,
		ClientID:      account.ID,
		Total:         order.Total,
		Currency:      order.Currency,
	}, nil
}

// InitializePayment opens a gateway session for an order's invoice and
// advances the lifecycle to payment_initiated.
func (s *Service) InitializePayment(ctx context.Context, in InitializePaymentInput) (*gateway.PaymentSession, error) {
	adapter, err := s.Adapter(in.Gateway)
	if err != nil {
		return nil, err
	}

	lifecycle, err := s.repo.GetLifecycleByCorrelationID(in.CorrelationID)
	if err != nil {
		return nil, err
	}

	amount, err := strconv.ParseFloat(lifecycle.Amount, 64)
	if err != nil || amount <= 0 {
		return nil, fmt.Errorf("lifecycle %s carries invalid amount %q", lifecycle.CorrelationID, lifecycle.Amount)
	}

	session, err := adapter.InitializePayment(ctx, gateway.PaymentRequest{
		OrderID:     lifecycle.OrderID,
		InvoiceID:   lifecycle.InvoiceID,
		ReferenceID: lifecycle.CorrelationID,
		Amount:      amount,
		Currency:    lifecycle.Currency,
		Label:       "Order " + lifecycle.OrderID,
		Email:       in.Email,
		ReturnURL:   in.ReturnURL,
		CancelURL:   in.CancelURL,
	})
	if err != nil {
		return nil, err
	}

	if _, err := s.repo.TransitionLifecycle(lifecycle.CorrelationID, models.LifecycleStatePaymentInitiated, ""); err != nil {
		return nil, err
	}

	if cerr := s.cache.Store(ctx, CachedTransaction{
		Gateway:       session.Gateway,
		TransactionID: session.TransactionID,
		ReferenceID:   session.ReferenceID,
		InvoiceID:     lifecycle.InvoiceID,
		Status:        gateway.StatusPending,
		Amount:        lifecycle.Amount,
		Currency:      lifecycle.Currency,
	}); cerr != nil {
		log.Warnf("[Payment] session cache write failed for %s: %v", session.TransactionID, cerr)
	}

	return session, nil
}

// HandleCallback records an inbound gateway notification. The webhook row is
// idempotent per (gateway, transaction id, reported status); a redelivery is
// a no-op only when the prior attempt completed cleanly. Events whose
// processing errored (or that never got marked processed before a crash) are
// reprocessed, so the gateway's retry eventually lands the transition.
func (s *Service) HandleCallback(ctx context.Context, gatewayName string, raw []byte) (*gateway.Transaction, error) {
	adapter, err := s.Adapter(gatewayName)
	if err != nil {
		return nil, err
	}

	tx, err := adapter.ParseCallback(raw)
	if err != nil {
		return nil, err
	}

	created, stored, err := s.repo.CreateWebhookEventIfNotExists(&models.PaymentWebhookEvent{
		Gateway:         tx.Gateway,
		ProviderEventID: tx.TransactionID + ":" + tx.Status,
		PayloadJSON:     string(tx.RawPayload),
	})
	if err != nil {
		return nil, err
	}
	if !created && stored.ProcessedAt != nil && stored.ProcessingError == "" {
		return tx, nil
	}

	processingErr := s.applyCallback(ctx, tx)
	errMsg := ""
	if processingErr != nil {
		errMsg = processingErr.Error()
	}
	if err := s.repo.MarkWebhookProcessed(stored.ID, errMsg); err != nil {
		log.Errorf("[Payment] failed to mark webhook %d processed: %v", stored.ID, err)
	}
	if processingErr != nil {
		return nil, processingErr
	}
	return tx, nil
}

func (s *Service) applyCallback(ctx context.Context, tx *gateway.Transaction) error {
	invoiceID := ""
	if tx.ReferenceID != "" {
		if lifecycle, err := s.repo.GetLifecycleByCorrelationID(tx.ReferenceID); err == nil {
			invoiceID = lifecycle.InvoiceID
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
	}

	record := &models.PaymentTransaction{
		Gateway:        tx.Gateway,
		TransactionID:  tx.TransactionID,
		ReferenceID:    tx.ReferenceID,
		InvoiceID:      invoiceID,
		Amount:         tx.Amount,
		Currency:       tx.Currency,
		Status:         tx.Status,
		RawPayloadJSON: string(tx.RawPayload),
	}
	if err := s.repo.UpsertTransaction(record); err != nil {
		return err
	}

	if cerr := s.cache.Store(ctx, CachedTransaction{
		Gateway:       tx.Gateway,
		TransactionID: tx.TransactionID,
		ReferenceID:   tx.ReferenceID,
		InvoiceID:     invoiceID,
		Status:        tx.Status,
		Amount:        tx.Amount,
		Currency:      tx.Currency,
	}); cerr != nil {
		log.Warnf("[Payment] session cache write failed for %s: %v", tx.TransactionID, cerr)
	}

	if tx.Status != gateway.StatusSuccess || tx.ReferenceID == "" {
		return nil
	}

	if _, err := s.repo.TransitionLifecycle(tx.ReferenceID, models.LifecycleStatePaymentAuthorized, ""); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Callback for an order this instance never opened; keep the
			// transaction record and stop.
			return nil
		}
		return err
	}

	if s.enqueuer != nil {
		if err := s.enqueuer.EnqueueMarkInvoicePaid(tx.ReferenceID); err != nil {
			return fmt.Errorf("enqueue mark-paid for %s: %w", tx.ReferenceID, err)
		}
	}
	return nil
}

// MarkInvoicePaid forwards the mark-paid call to the billing system and
// closes the lifecycle. Repeated calls for the same invoice keep returning
// the paid status; the duplicate payment record on the billing side is
// accepted behavior.
func (s *Service) MarkInvoicePaid(ctx context.Context, in MarkPaidRequest) (*hostbill.InvoiceStatus, error) {
	status, err := s.billing.MarkInvoicePaid(ctx, hostbill.MarkPaidInput{
		InvoiceID:     in.InvoiceID,
		Amount:        in.Amount,
		Currency:      in.Currency,
		TransactionID: in.TransactionID,
	})
	if err != nil {
		return nil, err
	}

	lifecycle, err := s.repo.GetLifecycleByInvoiceID(in.InvoiceID)
	if err == nil {
		if _, terr := s.repo.TransitionLifecycle(lifecycle.CorrelationID, models.LifecycleStateInvoicePaid, ""); terr != nil && !errors.Is(terr, ErrIllegalTransition) {
			return nil, terr
		}
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	if s.enqueuer != nil {
		if qerr := s.enqueuer.EnqueueAccountingSync(in.InvoiceID); qerr != nil {
			log.Warnf("[Payment] accounting sync enqueue failed for invoice %s: %v", in.InvoiceID, qerr)
		}
	}
	return status, nil
}

// MarkPaidFromLifecycle runs the queued compensation step: resolve the
// authorized lifecycle and push the mark-paid call to the billing system.
func (s *Service) MarkPaidFromLifecycle(ctx context.Context, correlationID string) error {
	lifecycle, err := s.repo.GetLifecycleByCorrelationID(correlationID)
	if err != nil {
		return err
	}
	if lifecycle.State == models.LifecycleStateInvoicePaid {
		return nil
	}
	if lifecycle.State != models.LifecycleStatePaymentAuthorized {
		return fmt.Errorf("lifecycle %s not authorized (state %s)", correlationID, lifecycle.State)
	}

	amount, err := strconv.ParseFloat(lifecycle.Amount, 64)
	if err != nil {
		return fmt.Errorf("lifecycle %s carries invalid amount %q", correlationID, lifecycle.Amount)
	}

	transactionID := ""
	if tx, terr := s.repo.GetTransactionByReferenceID(correlationID); terr == nil {
		transactionID = tx.TransactionID
	}

	_, err = s.MarkInvoicePaid(ctx, MarkPaidRequest{
		InvoiceID:     lifecycle.InvoiceID,
		Amount:        amount,
		Currency:      lifecycle.Currency,
		TransactionID: transactionID,
	})
	return err
}

// PaymentStatus resolves the state of a payment by its reference id, cache
// first with a DB fallback.
func (s *Service) PaymentStatus(ctx context.Context, referenceID string) (*StatusOutput, error) {
	out := &StatusOutput{ReferenceID: referenceID}

	if lifecycle, err := s.repo.GetLifecycleByCorrelationID(referenceID); err == nil {
		out.InvoiceID = lifecycle.InvoiceID
		out.State = lifecycle.State
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	if cached, err := s.cache.LookupByReferenceID(ctx, referenceID); err == nil {
		out.Gateway = cached.Gateway
		out.TransactionID = cached.TransactionID
		out.Status = cached.Status
		out.Amount = cached.Amount
		out.Currency = cached.Currency
		if out.InvoiceID == "" {
			out.InvoiceID = cached.InvoiceID
		}
		return out, nil
	}

	if tx, err := s.repo.GetTransactionByReferenceID(referenceID); err == nil {
		out.Gateway = tx.Gateway
		out.TransactionID = tx.TransactionID
		out.Status = tx.Status
		out.Amount = tx.Amount
		out.Currency = tx.Currency
		if out.InvoiceID == "" {
			out.InvoiceID = tx.InvoiceID
		}
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	if out.State == "" && out.TransactionID == "" {
		return nil, gorm.ErrRecordNotFound
	}
	return out, nil
}

// InvoiceStatus proxies the invoice status query to the billing system.
func (s *Service) InvoiceStatus(ctx context.Context, invoiceID string) (*hostbill.InvoiceStatus, error) {
	return s.billing.GetInvoiceStatus(ctx, invoiceID)
}
