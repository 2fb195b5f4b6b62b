// Package main provides the main entry point for the Sellora Engage rule engine
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/redis/go-redis/v9"
	"github.com/sellora/engage/app/handlers"
	"github.com/sellora/engage/app/router"
	"github.com/sellora/engage/app/scheduler"
	"github.com/sellora/engage/app/services"
	businessflow "github.com/sellora/engage/business_flow"
	"github.com/sellora/engage/config"
	"github.com/sellora/engage/repository"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Application represents the main application structure
type Application struct {
	router    *router.FiberRouter
	config    *config.ProductionConfig
	server    *fiber.App
	stopFuncs []func()
}

func main() {
	log.Println("Starting Sellora Engage application...")

	// Load production configuration
	cfg, err := config.LoadProductionConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize application
	app, err := initializeApplication(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	// Setup routes
	app.router.SetupRoutes()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start server in goroutine
	go func() {
		address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		log.Printf("Server starting on %s", address)

		if err := app.server.Listen(address); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for shutdown signal
	<-sigChan
	log.Println("Shutting down gracefully...")

	// Stop background workers
	for _, fn := range app.stopFuncs {
		fn()
	}

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := app.server.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}

	log.Println("Server stopped")
}

// initializeDatabase initializes the database connection with connection pooling
func initializeDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Get underlying sql.DB for connection pooling configuration
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	// Configure connection pooling
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	// Test the connection
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Printf("Database connection established with %d max open connections, %d max idle connections",
		cfg.MaxOpenConns, cfg.MaxIdleConns)

	return db, nil
}

// initializeCache initializes the Cache client and verifies connectivity
func initializeCache(cfg config.CacheConfig) (*redis.Client, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	// Override DB if provided in config
	opt.DB = cfg.RedisDB

	rc := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Printf("Redis connection established to %s (db=%d)", cfg.RedisURL, cfg.RedisDB)
	return rc, nil
}

// startCacheHealthMonitor starts a background goroutine that periodically pings Redis
// to detect connectivity issues. The returned cancel function stops the monitor.
func startCacheHealthMonitor(parent context.Context, client *redis.Client, interval time.Duration) func() {
	monitorCtx, cancel := context.WithCancel(parent)
	if interval <= 0 {
		interval = 30 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-monitorCtx.Done():
				return
			case <-ticker.C:
				ctx, c := context.WithTimeout(context.Background(), 3*time.Second)
				if err := client.Ping(ctx).Err(); err != nil {
					log.Printf("Redis healthcheck failed: %v", err)
				}
				c()
			}
		}
	}()
	return cancel
}

// initializeNotificationService initializes the notification service
func initializeNotificationService(cfg *config.ProductionConfig) services.NotificationService {
	var smsProvider services.SMSProvider
	var emailProvider services.EmailProvider

	switch cfg.SMS.Provider {
	case "gateway":
		smsProvider = services.NewGatewaySMSProvider(services.GatewaySMSConfig{
			APIURL:     cfg.SMS.APIURL,
			APIKey:     cfg.SMS.APIKey,
			FromNumber: cfg.SMS.FromNumber,
		})
	default:
		smsProvider = services.NewMockSMSProvider()
	}

	switch cfg.Email.Provider {
	case "smtp":
		emailProvider = services.NewSMTPEmailProvider(services.SMTPConfig{
			Host:      cfg.Email.Host,
			Port:      cfg.Email.Port,
			Username:  cfg.Email.Username,
			Password:  cfg.Email.Password,
			FromEmail: cfg.Email.FromEmail,
		})
	default:
		emailProvider = services.NewMockEmailProvider()
	}

	return services.NewNotificationService(smsProvider, emailProvider)
}

// initializeApplication initializes the main application components
func initializeApplication(cfg *config.ProductionConfig) (*Application, error) {
	var stopFuncs []func()

	// Initialize database
	db, err := initializeDatabase(cfg.Database)
	if err != nil {
		return nil, err
	}

	rc, err := initializeCache(cfg.Cache)
	if err != nil {
		return nil, err
	}

	if rc != nil {
		cancel := startCacheHealthMonitor(context.Background(), rc, 30*time.Second)
		stopFuncs = append(stopFuncs, cancel)
	}

	// Initialize repositories
	customerRepo := repository.NewCustomerRepository(db)
	walletRepo := repository.NewWalletRepository(db)
	segmentRepo := repository.NewSegmentRepository(db)
	membershipRepo := repository.NewSegmentMembershipRepository(db)
	triggerRepo := repository.NewTriggerRepository(db)
	executionRepo := repository.NewTriggerExecutionRepository(db)

	// Initialize services
	notificationService := initializeNotificationService(cfg)
	messagingService := services.NewMessagingService(customerRepo, notificationService)
	loyaltyService := services.NewLoyaltyService(customerRepo)
	walletService := services.NewWalletService(walletRepo)
	snapshotService := services.NewSnapshotService(customerRepo, walletRepo)

	// Initialize engine components
	guard := businessflow.NewCooldownGuard(executionRepo)
	dispatcher := businessflow.NewActionDispatcher(
		messagingService,
		loyaltyService,
		walletService,
		membershipRepo,
		executionRepo,
		triggerRepo,
		cfg.Engine.DispatchTimeout,
	)

	// Initialize flows
	segmentFlow := businessflow.NewSegmentFlow(
		segmentRepo,
		membershipRepo,
		snapshotService,
		db,
		rc,
		cfg.Engine.BatchPageSize,
	)

	triggerFlow := businessflow.NewTriggerFlow(
		triggerRepo,
		segmentRepo,
		customerRepo,
		executionRepo,
		membershipRepo,
		snapshotService,
		guard,
		dispatcher,
		rc,
		cfg.Engine.Workers,
		cfg.Engine.BatchPageSize,
		cfg.Engine.BatchLeaseTTL,
	)

	// Initialize handlers
	segmentHandler := handlers.NewSegmentHandler(segmentFlow)
	triggerHandler := handlers.NewTriggerHandler(triggerFlow)

	// Initialize router
	appRouter := router.NewFiberRouter(cfg, segmentHandler, triggerHandler)

	if cfg.Scheduler.Enabled {
		sched := scheduler.NewEngineScheduler(segmentFlow, triggerFlow, cfg.Scheduler, cfg.Logging)
		stopScheduler := sched.Start(context.Background())
		stopFuncs = append(stopFuncs, stopScheduler)
	}

	// Create application struct from FiberRouter
	fiberRouter := appRouter.(*router.FiberRouter)
	application := &Application{
		router:    fiberRouter,
		config:    cfg,
		server:    fiberRouter.GetApp(),
		stopFuncs: stopFuncs,
	}

	return application, nil
}
