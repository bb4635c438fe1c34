package payment

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/cloudvps-cz/CloudVPS/app/models"
	"github.com/cloudvps-cz/CloudVPS/internal/pkg/gateway"
	"github.com/cloudvps-cz/CloudVPS/internal/pkg/hostbill"
)

type fakeRepository struct {
	lifecycles   map[string]*models.InvoiceLifecycle
	transactions map[string]*models.PaymentTransaction
	webhooks     map[string]*models.PaymentWebhookEvent
	mappings     map[string]*models.ProductMapping
	nextID       uint
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		lifecycles:   map[string]*models.InvoiceLifecycle{},
		transactions: map[string]*models.PaymentTransaction{},
		webhooks:     map[string]*models.PaymentWebhookEvent{},
		mappings:     map[string]*models.ProductMapping{},
	}
}

func (f *fakeRepository) CreateLifecycle(l *models.InvoiceLifecycle) error {
	f.nextID++
	l.ID = f.nextID
	f.lifecycles[l.CorrelationID] = l
	return nil
}

func (f *fakeRepository) GetLifecycleByCorrelationID(correlationID string) (*models.InvoiceLifecycle, error) {
	l, ok := f.lifecycles[correlationID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return l, nil
}

func (f *fakeRepository) GetLifecycleByInvoiceID(invoiceID string) (*models.InvoiceLifecycle, error) {
	for _, l := range f.lifecycles {
		if l.InvoiceID == invoiceID {
			return l, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepository) TransitionLifecycle(correlationID, next, lastError string) (*models.InvoiceLifecycle, error) {
	l, ok := f.lifecycles[correlationID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	if !l.CanTransition(next) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, l.State, next)
	}
	l.State = next
	l.LastError = lastError
	return l, nil
}

func (f *fakeRepository) ListStuckAuthorized(olderThan time.Duration) ([]models.InvoiceLifecycle, error) {
	var out []models.InvoiceLifecycle
	for _, l := range f.lifecycles {
		if l.State == models.LifecycleStatePaymentAuthorized {
			out = append(out, *l)
		}
	}
	return out, nil
}

func (f *fakeRepository) UpsertTransaction(t *models.PaymentTransaction) error {
	key := t.Gateway + ":" + t.TransactionID
	if existing, ok := f.transactions[key]; ok {
		t.ID = existing.ID
	} else {
		f.nextID++
		t.ID = f.nextID
	}
	f.transactions[key] = t
	return nil
}

func (f *fakeRepository) GetTransactionByReferenceID(referenceID string) (*models.PaymentTransaction, error) {
	for _, t := range f.transactions {
		if t.ReferenceID == referenceID {
			return t, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepository) CreateWebhookEventIfNotExists(event *models.PaymentWebhookEvent) (bool, *models.PaymentWebhookEvent, error) {
	key := event.Gateway + ":" + event.ProviderEventID
	if existing, ok := f.webhooks[key]; ok {
		return false, existing, nil
	}
	f.nextID++
	event.ID = f.nextID
	f.webhooks[key] = event
	return true, event, nil
}

func (f *fakeRepository) MarkWebhookProcessed(id uint, processingError string) error {
	for _, e := range f.webhooks {
		if e.ID == id {
			now := time.Now()
			e.ProcessedAt = &now
			e.ProcessingError = processingError
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (f *fakeRepository) FindActiveProductMapping(storeProductID string) (*models.ProductMapping, error) {
	m, ok := f.mappings[storeProductID]
	if !ok || !m.IsActive {
		return nil, gorm.ErrRecordNotFound
	}
	return m, nil
}

func (f *fakeRepository) SeedProductMappings(mappings []models.ProductMapping) error {
	for i := range mappings {
		f.mappings[mappings[i].StoreProductID] = &mappings[i]
	}
	return nil
}

type fakeCache struct {
	byTxn map[string]CachedTransaction
	byRef map[string]CachedTransaction
}

func newFakeCache() *fakeCache {
	return &fakeCache{byTxn: map[string]CachedTransaction{}, byRef: map[string]CachedTransaction{}}
}

func (f *fakeCache) Store(_ context.Context, t CachedTransaction) error {
	if t.TransactionID == "" {
		return errors.New("missing transaction id")
	}
	f.byTxn[t.Gateway+":"+t.TransactionID] = t
	if t.ReferenceID != "" {
		f.byRef[t.ReferenceID] = t
	}
	return nil
}

func (f *fakeCache) LookupByTransactionID(_ context.Context, gw, id string) (*CachedTransaction, error) {
	t, ok := f.byTxn[gw+":"+id]
	if !ok {
		return nil, errors.New("cache miss")
	}
	return &t, nil
}

func (f *fakeCache) LookupByReferenceID(_ context.Context, refID string) (*CachedTransaction, error) {
	t, ok := f.byRef[refID]
	if !ok {
		return nil, errors.New("cache miss")
	}
	return &t, nil
}

type fakeBilling struct {
	clients        map[string]*hostbill.ClientAccount
	createdClients int
	orders         []hostbill.CreateOrderInput
	markPaidCalls  []hostbill.MarkPaidInput
	orderErr       error
}

func newFakeBilling() *fakeBilling {
	return &fakeBilling{clients: map[string]*hostbill.ClientAccount{}}
}

func (f *fakeBilling) FindClientByEmail(_ context.Context, email string) (*hostbill.ClientAccount, error) {
	c, ok := f.clients[email]
	if !ok {
		return nil, hostbill.ErrNotFound
	}
	return c, nil
}

func (f *fakeBilling) CreateClient(_ context.Context, in hostbill.CreateClientInput) (*hostbill.ClientAccount, error) {
	f.createdClients++
	c := &hostbill.ClientAccount{ID: strconv.Itoa(100 + f.createdClients), Email: in.Email}
	f.clients[in.Email] = c
	return c, nil
}

func (f *fakeBilling) CreateOrder(_ context.Context, in hostbill.CreateOrderInput) (*hostbill.OrderResult, error) {
	if f.orderErr != nil {
		return nil, f.orderErr
	}
	f.orders = append(f.orders, in)
	return &hostbill.OrderResult{
		OrderID:   "1001",
		InvoiceID: "2001",
		Total:     in.OrderTotal(),
		Currency:  in.Currency,
	}, nil
}

func (f *fakeBilling) GetInvoiceStatus(_ context.Context, invoiceID string) (*hostbill.InvoiceStatus, error) {
	status := "Unpaid"
	if len(f.markPaidCalls) > 0 {
		status = "Paid"
	}
	return &hostbill.InvoiceStatus{InvoiceID: invoiceID, Status: status}, nil
}

func (f *fakeBilling) MarkInvoicePaid(_ context.Context, in hostbill.MarkPaidInput) (*hostbill.InvoiceStatus, error) {
	f.markPaidCalls = append(f.markPaidCalls, in)
	return &hostbill.InvoiceStatus{InvoiceID: in.InvoiceID, Status: "Paid"}, nil
}

type fakeEnqueuer struct {
	markPaid   []string
	accounting []string
}

func (f *fakeEnqueuer) EnqueueMarkInvoicePaid(correlationID string) error {
	f.markPaid = append(f.markPaid, correlationID)
	return nil
}

func (f *fakeEnqueuer) EnqueueAccountingSync(invoiceID string) error {
	f.accounting = append(f.accounting, invoiceID)
	return nil
}

func newTestService(t *testing.T) (*Service, *fakeRepository, *fakeCache, *fakeBilling, *fakeEnqueuer) {
	t.Helper()
	repo := newFakeRepository()
	require.NoError(t, repo.SeedProductMappings([]models.ProductMapping{
		{StoreProductID: "vps-basic", BillingProductID: "42", BillingCycle: "m", IsActive: true},
	}))

	cache := newFakeCache()
	billing := newFakeBilling()
	enq := &fakeEnqueuer{}
	comgate := &gateway.ComGate{Merchant: "merchant-1", Secret: "s3cret"}
	adapters := map[string]gateway.Adapter{
		"comgate": comgate,
		"fakegw":  &fakeAdapter{name: "fakegw"},
	}
	svc := NewService(repo, cache, billing, adapters, enq)
	return svc, repo, cache, billing, enq
}

type fakeAdapter struct {
	name    string
	initErr error
}

func (f *fakeAdapter) Name() string { return f.name }

func (f *fakeAdapter) InitializePayment(_ context.Context, req gateway.PaymentRequest) (*gateway.PaymentSession, error) {
	if f.initErr != nil {
		return nil, f.initErr
	}
	return &gateway.PaymentSession{
		Gateway:       f.name,
		TransactionID: "FAKE-1",
		ReferenceID:   req.ReferenceID,
		RedirectURL:   "https://pay.example/FAKE-1",
	}, nil
}

func (f *fakeAdapter) ParseCallback(_ []byte) (*gateway.Transaction, error) {
	return nil, errors.New("not implemented")
}

func initiatePayment(t *testing.T, repo *fakeRepository, correlationID string) {
	t.Helper()
	_, err := repo.TransitionLifecycle(correlationID, models.LifecycleStatePaymentInitiated, "")
	require.NoError(t, err)
}

func startOrder(t *testing.T, svc *Service) *OrderOutput {
	t.Helper()
	out, err := svc.StartOrder(context.Background(), StartOrderInput{
		Email:     "jan@example.cz",
		FirstName: "Jan",
		LastName:  "Novak",
		Items: []OrderLine{
			{StoreProductID: "vps-basic", Quantity: 2, UnitPrice: 299},
		},
	})
	require.NoError(t, err)
	return out
}

func TestStartOrderCreatesClientAndLifecycle(t *testing.T) {
	svc, repo, _, billing, _ := newTestService(t)

	out := startOrder(t, svc)

	assert.Equal(t, 1, billing.createdClients)
	assert.Equal(t, "1001", out.OrderID)
	assert.Equal(t, "2001", out.InvoiceID)
	assert.Equal(t, 598.0, out.Total)
	assert.NotEmpty(t, out.CorrelationID)

	lifecycle, err := repo.GetLifecycleByCorrelationID(out.CorrelationID)
	require.NoError(t, err)
	assert.Equal(t, models.LifecycleStateCreated, lifecycle.State)
	assert.Equal(t, "598.00", lifecycle.Amount)

	require.Len(t, billing.orders, 1)
	assert.Equal(t, "42", billing.orders[0].Items[0].ProductID)
}

func TestStartOrderReusesExistingClient(t *testing.T) {
	svc, _, _, billing, _ := newTestService(t)
	billing.clients["jan@example.cz"] = &hostbill.ClientAccount{ID: "55", Email: "jan@example.cz"}

	out := startOrder(t, svc)

	assert.Equal(t, 0, billing.createdClients)
	assert.Equal(t, "55", out.ClientID)
}

func TestStartOrderUnknownProduct(t *testing.T) {
	svc, _, _, _, _ := newTestService(t)

	_, err := svc.StartOrder(context.Background(), StartOrderInput{
		Email:     "jan@example.cz",
		FirstName: "Jan",
		LastName:  "Novak",
		Items:     []OrderLine{{StoreProductID: "no-such", Quantity: 1, UnitPrice: 10}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown product")
}

func TestStartOrderKeepsClientWhenOrderFails(t *testing.T) {
	svc, _, _, billing, _ := newTestService(t)
	billing.orderErr = errors.New("order rejected")

	_, err := svc.StartOrder(context.Background(), StartOrderInput{
		Email:     "jan@example.cz",
		FirstName: "Jan",
		LastName:  "Novak",
		Items:     []OrderLine{{StoreProductID: "vps-basic", Quantity: 1, UnitPrice: 299}},
	})
	require.Error(t, err)

	// No rollback of the freshly created billing client.
	assert.Equal(t, 1, billing.createdClients)
	_, ok := billing.clients["jan@example.cz"]
	assert.True(t, ok)
}

func comGateCallback(refID, status string) []byte {
	v := url.Values{}
	v.Set("merchant", "merchant-1")
	v.Set("transId", "AB12-CD34")
	v.Set("refId", refID)
	v.Set("status", status)
	v.Set("price", "59800")
	v.Set("curr", "CZK")
	v.Set("secret", "s3cret")
	return []byte(v.Encode())
}

func TestInitializePayment(t *testing.T) {
	svc, repo, cache, _, _ := newTestService(t)
	out := startOrder(t, svc)

	session, err := svc.InitializePayment(context.Background(), InitializePaymentInput{
		CorrelationID: out.CorrelationID,
		Gateway:       "fakegw",
		Email:         "jan@example.cz",
	})
	require.NoError(t, err)
	assert.Equal(t, "FAKE-1", session.TransactionID)
	assert.Equal(t, "https://pay.example/FAKE-1", session.RedirectURL)

	lifecycle, err := repo.GetLifecycleByCorrelationID(out.CorrelationID)
	require.NoError(t, err)
	assert.Equal(t, models.LifecycleStatePaymentInitiated, lifecycle.State)

	cached, err := cache.LookupByReferenceID(context.Background(), out.CorrelationID)
	require.NoError(t, err)
	assert.Equal(t, gateway.StatusPending, cached.Status)
}

func TestInitializePaymentGatewayError(t *testing.T) {
	svc, repo, _, _, _ := newTestService(t)
	out := startOrder(t, svc)

	svc.adapters["fakegw"] = &fakeAdapter{name: "fakegw", initErr: errors.New("gateway down")}

	_, err := svc.InitializePayment(context.Background(), InitializePaymentInput{
		CorrelationID: out.CorrelationID,
		Gateway:       "fakegw",
	})
	require.Error(t, err)

	// Lifecycle stays in created when the gateway never opened a session.
	lifecycle, err := repo.GetLifecycleByCorrelationID(out.CorrelationID)
	require.NoError(t, err)
	assert.Equal(t, models.LifecycleStateCreated, lifecycle.State)
}

func TestHandleCallbackSuccessAdvancesLifecycle(t *testing.T) {
	svc, repo, cache, _, enq := newTestService(t)
	out := startOrder(t, svc)
	initiatePayment(t, repo, out.CorrelationID)

	tx, err := svc.HandleCallback(context.Background(), "comgate", comGateCallback(out.CorrelationID, "PAID"))
	require.NoError(t, err)
	assert.Equal(t, gateway.StatusSuccess, tx.Status)

	lifecycle, err := repo.GetLifecycleByCorrelationID(out.CorrelationID)
	require.NoError(t, err)
	assert.Equal(t, models.LifecycleStatePaymentAuthorized, lifecycle.State)

	cached, err := cache.LookupByReferenceID(context.Background(), out.CorrelationID)
	require.NoError(t, err)
	assert.Equal(t, "AB12-CD34", cached.TransactionID)
	assert.Equal(t, out.InvoiceID, cached.InvoiceID)

	require.Len(t, enq.markPaid, 1)
	assert.Equal(t, out.CorrelationID, enq.markPaid[0])
}

func TestHandleCallbackDuplicateIsNoOp(t *testing.T) {
	svc, repo, _, _, enq := newTestService(t)
	out := startOrder(t, svc)
	initiatePayment(t, repo, out.CorrelationID)

	raw := comGateCallback(out.CorrelationID, "PAID")
	_, err := svc.HandleCallback(context.Background(), "comgate", raw)
	require.NoError(t, err)
	_, err = svc.HandleCallback(context.Background(), "comgate", raw)
	require.NoError(t, err)

	assert.Len(t, enq.markPaid, 1)
}

func TestHandleCallbackRedeliveryAfterFailureReprocesses(t *testing.T) {
	svc, repo, _, _, enq := newTestService(t)
	out := startOrder(t, svc)

	raw := comGateCallback(out.CorrelationID, "PAID")

	// Callback arrives before the payment was initialized; the
	// created -> payment_authorized edge is illegal and the attempt fails.
	_, err := svc.HandleCallback(context.Background(), "comgate", raw)
	require.Error(t, err)
	assert.Empty(t, enq.markPaid)

	initiatePayment(t, repo, out.CorrelationID)

	// The gateway redelivers after the error response. The stored event
	// carries a processing error, so it is reprocessed, not absorbed.
	_, err = svc.HandleCallback(context.Background(), "comgate", raw)
	require.NoError(t, err)

	lifecycle, err := repo.GetLifecycleByCorrelationID(out.CorrelationID)
	require.NoError(t, err)
	assert.Equal(t, models.LifecycleStatePaymentAuthorized, lifecycle.State)
	require.Len(t, enq.markPaid, 1)

	// Once processing completed cleanly, further redeliveries are no-ops.
	_, err = svc.HandleCallback(context.Background(), "comgate", raw)
	require.NoError(t, err)
	assert.Len(t, enq.markPaid, 1)
}

func TestHandleCallbackMissingTransactionID(t *testing.T) {
	svc, _, cache, _, _ := newTestService(t)

	_, err := svc.HandleCallback(context.Background(), "comgate",
		[]byte("merchant=merchant-1&refId=ref-1&status=PAID&secret=s3cret"))
	assert.ErrorIs(t, err, gateway.ErrMissingTransactionID)
	assert.Empty(t, cache.byTxn)
	assert.Empty(t, cache.byRef)
}

func TestHandleCallbackUnknownReferenceKeepsTransaction(t *testing.T) {
	svc, repo, _, _, enq := newTestService(t)

	_, err := svc.HandleCallback(context.Background(), "comgate", comGateCallback("ref-unknown", "PAID"))
	require.NoError(t, err)

	tx, err := repo.GetTransactionByReferenceID("ref-unknown")
	require.NoError(t, err)
	assert.Equal(t, gateway.StatusSuccess, tx.Status)
	assert.Empty(t, enq.markPaid)
}

func TestMarkPaidFromLifecycle(t *testing.T) {
	svc, repo, _, billing, enq := newTestService(t)
	out := startOrder(t, svc)
	initiatePayment(t, repo, out.CorrelationID)

	_, err := svc.HandleCallback(context.Background(), "comgate", comGateCallback(out.CorrelationID, "PAID"))
	require.NoError(t, err)

	require.NoError(t, svc.MarkPaidFromLifecycle(context.Background(), out.CorrelationID))

	require.Len(t, billing.markPaidCalls, 1)
	assert.Equal(t, out.InvoiceID, billing.markPaidCalls[0].InvoiceID)
	assert.Equal(t, 598.0, billing.markPaidCalls[0].Amount)
	assert.Equal(t, "AB12-CD34", billing.markPaidCalls[0].TransactionID)

	lifecycle, err := repo.GetLifecycleByCorrelationID(out.CorrelationID)
	require.NoError(t, err)
	assert.Equal(t, models.LifecycleStateInvoicePaid, lifecycle.State)

	require.Len(t, enq.accounting, 1)
	assert.Equal(t, out.InvoiceID, enq.accounting[0])
}

func TestMarkPaidFromLifecycleIdempotent(t *testing.T) {
	svc, repo, _, billing, _ := newTestService(t)
	out := startOrder(t, svc)
	initiatePayment(t, repo, out.CorrelationID)

	_, err := svc.HandleCallback(context.Background(), "comgate", comGateCallback(out.CorrelationID, "PAID"))
	require.NoError(t, err)

	require.NoError(t, svc.MarkPaidFromLifecycle(context.Background(), out.CorrelationID))
	require.NoError(t, svc.MarkPaidFromLifecycle(context.Background(), out.CorrelationID))

	// Second run sees invoice_paid and returns without touching billing again.
	assert.Len(t, billing.markPaidCalls, 1)
}

func TestMarkInvoicePaidDuplicateStaysPaid(t *testing.T) {
	svc, _, _, billing, _ := newTestService(t)

	req := MarkPaidRequest{InvoiceID: "2001", Amount: 598, Currency: "CZK", TransactionID: "AB12"}
	first, err := svc.MarkInvoicePaid(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "Paid", first.Status)

	// Direct duplicates are passed through; caller-level idempotency.
	second, err := svc.MarkInvoicePaid(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "Paid", second.Status)
	assert.Len(t, billing.markPaidCalls, 2)
}

func TestPaymentStatusFallsBackToDatabase(t *testing.T) {
	svc, repo, cache, _, _ := newTestService(t)
	out := startOrder(t, svc)
	initiatePayment(t, repo, out.CorrelationID)

	_, err := svc.HandleCallback(context.Background(), "comgate", comGateCallback(out.CorrelationID, "PAID"))
	require.NoError(t, err)

	// Simulate cache expiry.
	cache.byTxn = map[string]CachedTransaction{}
	cache.byRef = map[string]CachedTransaction{}

	status, err := svc.PaymentStatus(context.Background(), out.CorrelationID)
	require.NoError(t, err)
	assert.Equal(t, models.LifecycleStatePaymentAuthorized, status.State)
	assert.Equal(t, gateway.StatusSuccess, status.Status)
	assert.Equal(t, "AB12-CD34", status.TransactionID)
}

func TestPaymentStatusUnknownReference(t *testing.T) {
	svc, _, _, _, _ := newTestService(t)

	_, err := svc.PaymentStatus(context.Background(), "ref-missing")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestUnknownGateway(t *testing.T) {
	svc, _, _, _, _ := newTestService(t)

	_, err := svc.HandleCallback(context.Background(), "stripe", []byte("x=y"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown payment gateway")
}
