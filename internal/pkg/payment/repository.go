package payment

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cloudvps-cz/CloudVPS/app/models"
)

// Repository provides DB operations used by the payment service.
type Repository interface {
	CreateLifecycle(l *models.InvoiceLifecycle) error
	GetLifecycleByCorrelationID(correlationID string) (*models.InvoiceLifecycle, error)
	GetLifecycleByInvoiceID(invoiceID string) (*models.InvoiceLifecycle, error)
	TransitionLifecycle(correlationID, next, lastError string) (*models.InvoiceLifecycle, error)
	ListStuckAuthorized(olderThan time.Duration) ([]models.InvoiceLifecycle, error)
	UpsertTransaction(t *models.PaymentTransaction) error
	GetTransactionByReferenceID(referenceID string) (*models.PaymentTransaction, error)
	CreateWebhookEventIfNotExists(event *models.PaymentWebhookEvent) (bool, *models.PaymentWebhookEvent, error)
	MarkWebhookProcessed(id uint, processingError string) error
	FindActiveProductMapping(storeProductID string) (*models.ProductMapping, error)
	SeedProductMappings(mappings []models.ProductMapping) error
}

// ErrIllegalTransition is returned when a lifecycle update would skip or
// rewind the state machine.
var ErrIllegalTransition = errors.New("payment: illegal lifecycle transition")

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a payment repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) CreateLifecycle(l *models.InvoiceLifecycle) error {
	return r.db.Create(l).Error
}

func (r *gormRepository) GetLifecycleByCorrelationID(correlationID string) (*models.InvoiceLifecycle, error) {
	var l models.InvoiceLifecycle
	err := r.db.Where("correlation_id = ?", correlationID).First(&l).Error
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *gormRepository) GetLifecycleByInvoiceID(invoiceID string) (*models.InvoiceLifecycle, error) {
	var l models.InvoiceLifecycle
	err := r.db.Where("invoice_id = ?", invoiceID).Order("id DESC").First(&l).Error
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *gormRepository) TransitionLifecycle(correlationID, next, lastError string) (*models.InvoiceLifecycle, error) {
	var result *models.InvoiceLifecycle
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var l models.InvoiceLifecycle
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("correlation_id = ?", correlationID).First(&l).Error; err != nil {
			return err
		}
		if !l.CanTransition(next) {
			return fmt.Errorf("%w: %s -> %s (correlation %s)", ErrIllegalTransition, l.State, next, correlationID)
		}
		l.State = next
		l.LastError = lastError
		if err := tx.Save(&l).Error; err != nil {
			return err
		}
		result = &l
		return nil
	})
	return result, err
}

func (r *gormRepository) ListStuckAuthorized(olderThan time.Duration) ([]models.InvoiceLifecycle, error) {
	var lifecycles []models.InvoiceLifecycle
	cutoff := time.Now().Add(-olderThan)
	err := r.db.Where("state = ? AND updated_at < ?", models.LifecycleStatePaymentAuthorized, cutoff).
		Find(&lifecycles).Error
	if err != nil {
		return nil, err
	}
	return lifecycles, nil
}

func (r *gormRepository) UpsertTransaction(t *models.PaymentTransaction) error {
	if err := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "gateway"},
			{Name: "transaction_id"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"reference_id",
			"invoice_id",
			"amount",
			"currency",
			"status",
			"raw_payload_json",
			"updated_at",
		}),
	}).Create(t).Error; err != nil {
		return err
	}

	// Ensure ID is populated after upsert.
	return r.db.Where("gateway = ? AND transaction_id = ?", t.Gateway, t.TransactionID).
		First(t).Error
}

func (r *gormRepository) GetTransactionByReferenceID(referenceID string) (*models.PaymentTransaction, error) {
	var t models.PaymentTransaction
	err := r.db.Where("reference_id = ?", referenceID).Order("id DESC").First(&t).Error
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *gormRepository) CreateWebhookEventIfNotExists(event *models.PaymentWebhookEvent) (bool, *models.PaymentWebhookEvent, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "gateway"},
			{Name: "provider_event_id"},
		},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.PaymentWebhookEvent
	if err := r.db.Where("gateway = ? AND provider_event_id = ?", event.Gateway, event.ProviderEventID).
		First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

func (r *gormRepository) MarkWebhookProcessed(id uint, processingError string) error {
	now := time.Now()
	updates := map[string]interface{}{
		"processed_at":     &now,
		"processing_error": processingError,
	}
	return r.db.Model(&models.PaymentWebhookEvent{}).Where("id = ?", id).Updates(updates).Error
}

func (r *gormRepository) FindActiveProductMapping(storeProductID string) (*models.ProductMapping, error) {
	var m models.ProductMapping
	err := r.db.Where("store_product_id = ? AND is_active = ?", storeProductID, true).First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *gormRepository) SeedProductMappings(mappings []models.ProductMapping) error {
	for i := range mappings {
		if err := r.db.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "store_product_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"billing_product_id",
				"billing_cycle",
				"is_active",
				"updated_at",
			}),
		}).Create(&mappings[i]).Error; err != nil {
			return err
		}
	}
	return nil
}
