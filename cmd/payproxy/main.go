package main

import (
	"fmt"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/cloudvps-cz/CloudVPS/app/controllers"
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

// The payproxy binary serves the payment middleware alone: gateway
// callbacks, the key protected proxy API and the background queue. It runs
// headless next to the storefront, or standalone in front of a billing
// system.
func main() {
	app := NewApplication()
	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("PROXY_HOST", "localhost"), env.GetEnv("PROXY_PORT", "4100")))
	log.Fatal(err)
}

func NewApplication() *fiber.App {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()

	repository.InitializeFactory(database.GetDB())

	setupServices()

	app := fiber.New(fiber.Config{
		AppName: "cloudvps-payproxy",
	})

	app.Use(recover.New(), logger.New())
	app.Get("/metrics", monitor.New())

	router.InstallProxyRouter(app)

	return app
}

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

	controllers.SetPaymentService(paymentService)
	controllers.SetAresClient(ares.NewClientFromEnv())
	controllers.SetBillingClient(billing)
}
