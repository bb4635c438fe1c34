package models

import "time"

// ProductMapping translates a storefront product identifier to the billing
// system's product id. Rows are seeded from configuration at startup; only
// the counters change afterwards.
type ProductMapping struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	StoreProductID   string    `gorm:"type:varchar(100);not null;uniqueIndex" json:"store_product_id"`
	BillingProductID string    `gorm:"type:varchar(50);not null" json:"billing_product_id"`
	BillingCycle     string    `gorm:"type:varchar(8);not null;default:'m'" json:"billing_cycle"`
	IsActive         bool      `gorm:"default:true;index" json:"is_active"`
	ViewCount        int64     `gorm:"default:0" json:"view_count"`
	OrderCount       int64     `gorm:"default:0" json:"order_count"`
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
