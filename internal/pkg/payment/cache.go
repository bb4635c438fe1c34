package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cloudvps-cz/CloudVPS/internal/pkg/cache"
	"github.com/cloudvps-cz/CloudVPS/internal/pkg/env"
)

const (
	txnKeyPrefix = "payment:txn:"
	refKeyPrefix = "payment:ref:"
)

// CachedTransaction is the slice of a transaction the return-URL handler
// needs before the database row is guaranteed visible.
type CachedTransaction struct {
	Gateway       string `json:"gateway"`
	TransactionID string `json:"transaction_id"`
	ReferenceID   string `json:"reference_id"`
	InvoiceID     string `json:"invoice_id"`
	Status        string `json:"status"`
	Amount        string `json:"amount"`
	Currency      string `json:"currency"`
}

// SessionCache mirrors callback results into Redis under both the gateway
// transaction id and the merchant reference id, with a TTL. It is a lookup
// convenience only; the PaymentTransaction table stays authoritative.
type SessionCache interface {
	Store(ctx context.Context, t CachedTransaction) error
	LookupByTransactionID(ctx context.Context, gateway, transactionID string) (*CachedTransaction, error)
	LookupByReferenceID(ctx context.Context, referenceID string) (*CachedTransaction, error)
}

type redisSessionCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSessionCache creates a Redis-backed payment session cache. TTL comes
// from PAYMENT_CACHE_TTL_MINUTES (default 60).
func NewSessionCache() SessionCache {
	return &redisSessionCache{
		client: cache.GetClient(),
		ttl:    time.Duration(env.GetEnvInt("PAYMENT_CACHE_TTL_MINUTES", 60)) * time.Minute,
	}
}

func (c *redisSessionCache) Store(ctx context.Context, t CachedTransaction) error {
	if t.TransactionID == "" {
		return fmt.Errorf("refusing to cache transaction without id")
	}

	data, err := json.Marshal(t)
	if err != nil {
		return err
	}

	pipe := c.client.Pipeline()
	pipe.Set(ctx, txnKeyPrefix+t.Gateway+":"+t.TransactionID, data, c.ttl)
	if t.ReferenceID != "" {
		pipe.Set(ctx, refKeyPrefix+t.ReferenceID, data, c.ttl)
	}
	_, err = pipe.Exec(ctx)
	return err
}

func (c *redisSessionCache) LookupByTransactionID(ctx context.Context, gateway, transactionID string) (*CachedTransaction, error) {
	return c.lookup(ctx, txnKeyPrefix+gateway+":"+transactionID)
}

func (c *redisSessionCache) LookupByReferenceID(ctx context.Context, referenceID string) (*CachedTransaction, error) {
	return c.lookup(ctx, refKeyPrefix+referenceID)
}

func (c *redisSessionCache) lookup(ctx context.Context, key string) (*CachedTransaction, error) {
	data, err := c.client.Get(ctx, key).Result()
	if err != nil {
		return nil, err
	}
	var t CachedTransaction
	if err := json.Unmarshal([]byte(data), &t); err != nil {
		return nil, err
	}
	return &t, nil
}
