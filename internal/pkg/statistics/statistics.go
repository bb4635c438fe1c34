package statistics

import (
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/cloudvps-cz/CloudVPS/app/models"
	"github.com/cloudvps-cz/CloudVPS/internal/pkg/cache"
	"github.com/cloudvps-cz/CloudVPS/internal/pkg/database"
)

const (
	CacheKeyOrdersTotal = "statistics:orders:total"
	CacheKeyOrdersDaily = "statistics:orders:daily:%s" // Format with date YYYY-MM-DD
	CacheKeyPaidTotal   = "statistics:invoices:paid"
	CacheKeyUsers       = "statistics:users:total"
	CacheExpiration     = 30 * time.Minute
)

// StatisticsData holds the storefront counters shown on the home page.
type StatisticsData struct {
	TodayOrders  int
	PaidInvoices int
	TotalUsers   int
	TotalOrders  int
}

var (
	lastCacheUpdate     time.Time
	cacheUpdateMutex    sync.Mutex
	cacheUpdateInterval = 5 * time.Minute
)

// ShouldUpdateCache checks whether the cache refresh interval has elapsed.
func ShouldUpdateCache() bool {
	cacheUpdateMutex.Lock()
	defer cacheUpdateMutex.Unlock()

	return time.Since(lastCacheUpdate) > cacheUpdateInterval
}

// UpdateCacheIfNeeded refreshes the cached counters when they are stale.
func UpdateCacheIfNeeded() {
	if ShouldUpdateCache() {
		cacheUpdateMutex.Lock()
		defer cacheUpdateMutex.Unlock()

		if err := UpdateStatisticsCache(); err != nil {
			log.Printf("Error updating statistics cache: %v", err)
		} else {
			lastCacheUpdate = time.Now()
		}
	}
}

// ResetCacheUpdateTimer forces the next UpdateCacheIfNeeded call to refresh.
func ResetCacheUpdateTimer() {
	cacheUpdateMutex.Lock()
	defer cacheUpdateMutex.Unlock()

	lastCacheUpdate = time.Time{}
}

// UpdateStatisticsCache updates all statistics in the cache
func UpdateStatisticsCache() error {
	db := database.GetDB()

	var totalOrders int64
	if err := db.Model(&models.InvoiceLifecycle{}).Count(&totalOrders).Error; err != nil {
		log.Printf("Error counting total orders: %v", err)
		return err
	}

	var todayOrders int64
	today := time.Now().Format("2006-01-02")
	todayStart, _ := time.Parse("2006-01-02", today)
	todayEnd := todayStart.Add(24 * time.Hour)

	if err := db.Model(&models.InvoiceLifecycle{}).Where("created_at BETWEEN ? AND ?", todayStart, todayEnd).Count(&todayOrders).Error; err != nil {
		log.Printf("Error counting today's orders: %v", err)
		return err
	}

	var paidInvoices int64
	if err := db.Model(&models.InvoiceLifecycle{}).Where("state = ?", models.LifecycleStateInvoicePaid).Count(&paidInvoices).Error; err != nil {
		log.Printf("Error counting paid invoices: %v", err)
		return err
	}

	var totalUsers int64
	if err := db.Model(&models.User{}).Count(&totalUsers).Error; err != nil {
		log.Printf("Error counting total users: %v", err)
		return err
	}

	if err := cache.Set(CacheKeyOrdersTotal, strconv.FormatInt(totalOrders, 10), CacheExpiration); err != nil {
		log.Printf("Error caching total orders: %v", err)
		return err
	}

	dailyKey := fmt.Sprintf(CacheKeyOrdersDaily, today)
	if err := cache.Set(dailyKey, strconv.FormatInt(todayOrders, 10), CacheExpiration); err != nil {
		log.Printf("Error caching today's orders: %v", err)
		return err
	}

	if err := cache.Set(CacheKeyPaidTotal, strconv.FormatInt(paidInvoices, 10), CacheExpiration); err != nil {
		log.Printf("Error caching paid invoices: %v", err)
		return err
	}

	if err := cache.Set(CacheKeyUsers, strconv.FormatInt(totalUsers, 10), CacheExpiration); err != nil {
		log.Printf("Error caching total users: %v", err)
		return err
	}

	return nil
}

// GetTotalOrders returns the number of orders from cache or database
func GetTotalOrders() int {
	val, err := cache.Get(CacheKeyOrdersTotal)
	if err != nil {
		var count int64
		if err := database.GetDB().Model(&models.InvoiceLifecycle{}).Count(&count).Error; err != nil {
			log.Printf("Error counting total orders: %v", err)
			return 0
		}

		if err := cache.Set(CacheKeyOrdersTotal, strconv.FormatInt(count, 10), CacheExpiration); err != nil {
			log.Printf("Error caching total orders: %v", err)
		}

		return int(count)
	}

	count, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0
	}

	return int(count)
}

// GetTodayOrders returns the number of orders placed today from cache or database
func GetTodayOrders() int {
	today := time.Now().Format("2006-01-02")
	dailyKey := fmt.Sprintf(CacheKeyOrdersDaily, today)

	val, err := cache.Get(dailyKey)
	if err != nil {
		todayStart, _ := time.Parse("2006-01-02", today)
		todayEnd := todayStart.Add(24 * time.Hour)

		var count int64
		if err := database.GetDB().Model(&models.InvoiceLifecycle{}).Where("created_at BETWEEN ? AND ?", todayStart, todayEnd).Count(&count).Error; err != nil {
			log.Printf("Error counting today's orders: %v", err)
			return 0
		}

		if err := cache.Set(dailyKey, strconv.FormatInt(count, 10), CacheExpiration); err != nil {
			log.Printf("Error caching today's orders: %v", err)
		}

		return int(count)
	}

	count, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0
	}

	return int(count)
}

// GetPaidInvoices returns the number of paid invoices from cache or database
func GetPaidInvoices() int {
	val, err := cache.Get(CacheKeyPaidTotal)
	if err != nil {
		var count int64
		if err := database.GetDB().Model(&models.InvoiceLifecycle{}).Where("state = ?", models.LifecycleStateInvoicePaid).Count(&count).Error; err != nil {
			log.Printf("Error counting paid invoices: %v", err)
			return 0
		}

		if err := cache.Set(CacheKeyPaidTotal, strconv.FormatInt(count, 10), CacheExpiration); err != nil {
			log.Printf("Error caching paid invoices: %v", err)
		}

		return int(count)
	}

	count, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0
	}

	return int(count)
}

// GetTotalUsers returns the total number of users from cache or database
func GetTotalUsers() int {
	val, err := cache.Get(CacheKeyUsers)
	if err != nil {
		var count int64
		if err := database.GetDB().Model(&models.User{}).Count(&count).Error; err != nil {
			log.Printf("Error counting total users: %v", err)
			return 0
		}

		if err := cache.Set(CacheKeyUsers, strconv.FormatInt(count, 10), CacheExpiration); err != nil {
			log.Printf("Error caching total users: %v", err)
		}

		return int(count)
	}

	count, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0
	}

	return int(count)
}

// GetStatisticsData returns all statistics data as StatisticsData structure
func GetStatisticsData() StatisticsData {
	UpdateCacheIfNeeded()

	return StatisticsData{
		TodayOrders:  GetTodayOrders(),
		PaidInvoices: GetPaidInvoices(),
		TotalUsers:   GetTotalUsers(),
		TotalOrders:  GetTotalOrders(),
	}
}
