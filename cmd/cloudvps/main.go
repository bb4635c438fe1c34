package main

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/favicon"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/template/html/v2"

	"github.com/cloudvps-cz/CloudVPS/app/controllers"
	"github.com/cloudvps-cz/CloudVPS/app/models"
	"github.com/cloudvps-cz/CloudVPS/app/repository"
	"github.com/cloudvps-cz/CloudVPS/internal/pkg/accounting"
	"github.com/cloudvps-cz/CloudVPS/internal/pkg/ares"
	"github.com/cloudvps-cz/CloudVPS/internal/pkg/cache"
	"github.com/cloudvps-cz/CloudVPS/internal/pkg/database"
	"github.com/cloudvps-cz/CloudVPS/internal/pkg/env"
	"github.com/cloudvps-cz/CloudVPS/internal/pkg/gateway"
	"github.com/cloudvps-cz/CloudVPS/internal/pkg/hostbill"
	"github.com/cloudvps-cz/CloudVPS/internal/pkg/jobqueue"
	"github.com/cloudvps-cz/CloudVPS/internal/pkg/payment"
	"github.com/cloudvps-cz/CloudVPS/internal/pkg/router"
	"github.com/cloudvps-cz/CloudVPS/internal/pkg/s3archive"
)

func main() {
	app := NewApplication()
	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	log.Fatal(err)
}

func NewApplication() *fiber.App {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()

	repository.InitializeFactory(database.GetDB())

	setupServices()

	// Define possible base paths
	basePaths := []string{
		"./",        // Current directory
		"../../",    // From cmd/cloudvps to project root
		"../../../", // Fallback
	}

	// Find the correct base path
	basePath := ""
	for _, path := range basePaths {
		if _, err := os.Stat(path + "views"); !os.IsNotExist(err) {
			basePath = path
			break
		}
	}

	if basePath == "" {
		panic("Could not find project root directory")
	}

	// init fiber app
	app := fiber.New(fiber.Config{
		Views: html.New(basePath+"views", ".html"),
	})

	// ignore and cache favicon
	app.Use(favicon.New(favicon.Config{
		File:         basePath + "public/assets/icons/favicon.ico",
		URL:          "/favicon.ico",
		CacheControl: "public, max-age=604800",
	}))

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// fiber metrics
	app.Get("/metrics", basicauth.New(basicauth.Config{
		Users: map[string]string{
			"admin": env.GetEnv("METRICS_PASSWORD", "test"),
		},
	}), monitor.New())

	// static files
	app.Static("/", basePath+"public/assets", fiber.Static{
		CacheDuration: 15 * time.Second,
		Compress:      true,
	})

	// SWAGGER / OPENAPI
	openAPICfg := swagger.Config{
		BasePath: "/docs/api/",
		FilePath: basePath + "public/docs/v1/openapi.yml",
		Path:     "v1",
	}
	app.Use(swagger.New(openAPICfg))

	// ROUTER
	router.InstallRouter(app)

	return app
}

// setupServices wires the billing client, the payment gateways, the job
// queue and the accounting sync into the shared payment service.
func setupServices() {
	repo := payment.NewRepository(database.GetDB())
	sessionCache := payment.NewSessionCache()
	billing := hostbill.NewClientFromEnv()

	comgate := gateway.NewComGateFromEnv()
	payu := gateway.NewPayUFromEnv()
	adapters := map[string]gateway.Adapter{
		comgate.Name(): comgate,
		payu.Name():    payu,
	}

	manager := jobqueue.GetManager()
	enqueuer := jobqueue.NewEnqueuer(manager.GetQueue())

	paymentService := payment.NewService(repo, sessionCache, billing, adapters, enqueuer)

	var archive *s3archive.Client
	if cfg, err := s3archive.LoadConfig(); err != nil {
		log.Printf("S3 archive disabled: %v", err)
	} else if cfg.IsEnabled() {
		if archive, err = s3archive.NewClient(cfg); err != nil {
			log.Printf("S3 archive disabled: %v", err)
			archive = nil
		}
	}
	syncer := accounting.NewSyncer(accounting.NewBrokerFromEnv(), repo, archive)

	manager.GetQueue().SetProcessors(paymentService, syncer)
	manager.SetReconciler(func(olderThan time.Duration) ([]string, error) {
		stuck, err := repo.ListStuckAuthorized(olderThan)
		if err != nil {
			return nil, err
		}
		ids := make([]string, 0, len(stuck))
		for _, l := range stuck {
			ids = append(ids, l.CorrelationID)
		}
		return ids, nil
	})
	manager.Start()

	if err := repo.SeedProductMappings(productMappingsFromEnv()); err != nil {
		log.Printf("Product mapping seed failed: %v", err)
	}

	controllers.SetPaymentService(paymentService)
	controllers.SetAresClient(ares.NewClientFromEnv())
	controllers.SetBillingClient(billing)
}

// productMappingsFromEnv parses PRODUCT_MAPPINGS, a comma separated list of
// store-id:billing-id:cycle triples, e.g. "vps-s:101:m,vps-m:102:m".
func productMappingsFromEnv() []models.ProductMapping {
	raw := strings.TrimSpace(env.GetEnv("PRODUCT_MAPPINGS", ""))
	if raw == "" {
		return nil
	}

	var mappings []models.ProductMapping
	for _, entry := range strings.Split(raw, ",") {
		parts := strings.Split(strings.TrimSpace(entry), ":")
		if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
			log.Printf("Skipping malformed product mapping entry %q", entry)
			continue
		}
		cycle := "m"
		if len(parts) >= 3 && parts[2] != "" {
			cycle = parts[2]
		}
		mappings = append(mappings, models.ProductMapping{
			StoreProductID:   parts[0],
			BillingProductID: parts[1],
			BillingCycle:     cycle,
			IsActive:         true,
		})
	}
	return mappings
}
