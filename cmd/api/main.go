package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/sparesmarket/spares_api/internal/cache"
	"github.com/sparesmarket/spares_api/internal/config"
	"github.com/sparesmarket/spares_api/internal/database"
	"github.com/sparesmarket/spares_api/internal/events"
	"github.com/sparesmarket/spares_api/internal/handler"
	"github.com/sparesmarket/spares_api/internal/middleware"
	"github.com/sparesmarket/spares_api/internal/repository"
	"github.com/sparesmarket/spares_api/internal/service"
	"github.com/sparesmarket/spares_api/internal/sse"
	"github.com/sparesmarket/spares_api/internal/storage"
	"github.com/sparesmarket/spares_api/internal/worker"
	"github.com/sparesmarket/spares_api/pkg/commerceml"
)

// main is the entrypoint for the spare parts ERP exchange API.
func main() {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// 2. Setup logger
	setupLogger(cfg.Env)
	log.Info().Str("env", cfg.Env).Msg("starting spares exchange api")

	// 3. Connect database
	db, err := database.Connect(&cfg.DB)
	if err != nil {
		log.Error().Err(err).Msg("database connection failed")
		fmt.Fprintf(os.Stderr, "database connection failed: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	// 3a. Run migrations
	if err := runMigrations(db.DB); err != nil {
		log.Error().Err(err).Msg("migration failed")
		fmt.Fprintf(os.Stderr, "migration failed: %v\n", err)
		os.Exit(1)
	}
	log.Info().Msg("migrations completed successfully")

	// 3b. Connect to Redis
	redisClient, err := cache.NewRedisClient(&cfg.Redis)
	if err != nil {
		log.Error().Err(err).Msg("redis connection failed")
		fmt.Fprintf(os.Stderr, "redis connection failed: %v\n", err)
		os.Exit(1)
	}
	defer redisClient.Close()
	log.Info().Msg("redis connected successfully")

	exportQueue := cache.NewExportQueue(redisClient)

	// 4. Payload storage: S3 when configured, local disk otherwise
	var (
		payloads   service.PayloadStore
		localStore *storage.LocalStore
	)
	if cfg.S3.Enabled() {
		s3Store, err := storage.NewS3Store(context.Background(), &cfg.S3)
		if err != nil {
			log.Error().Err(err).Msg("s3 initialization failed")
			fmt.Fprintf(os.Stderr, "s3 initialization failed: %v\n", err)
			os.Exit(1)
		}
		payloads = s3Store
		log.Info().Str("bucket", cfg.S3.Bucket).Msg("export payloads stored in S3")
	} else {
		localStore, err = storage.NewLocalStore(cfg.Exchange.PayloadDir, cfg.PublicBaseURL, cfg.Exchange.FileLinkSecret, cfg.Exchange.FileLinkTTL)
		if err != nil {
			log.Error().Err(err).Msg("local payload storage failed")
			fmt.Fprintf(os.Stderr, "local payload storage failed: %v\n", err)
			os.Exit(1)
		}
		payloads = localStore
		log.Warn().Str("dir", cfg.Exchange.PayloadDir).Msg("S3 not configured - export payloads stored on local disk")
	}

	// 4a. Job notifications: admin SSE stream and optional broker
	hub := sse.NewHub()
	notifiers := service.JobNotifiers{sse.NewHubNotifier(hub)}
	if cfg.RabbitMQ.URL != "" {
		publisher, err := events.Dial(cfg.RabbitMQ.URL, cfg.RabbitMQ.Queue)
		if err != nil {
			log.Warn().Err(err).Msg("RabbitMQ unavailable - job events will not be published")
		} else {
			defer publisher.Close()
			notifiers = append(notifiers, publisher)
			log.Info().Str("queue", cfg.RabbitMQ.Queue).Msg("job events published to RabbitMQ")
		}
	}

	// 5. Initialize repositories
	productRepo := repository.NewProductRepository(db)
	categoryRepo := repository.NewCategoryRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	exportJobRepo := repository.NewExportJobRepository(db)
	clientRepo := repository.NewClientRepository(db)
	adminRepo := repository.NewAdminUserRepository(db)

	// 6. Initialize services
	mapper := service.NewCatalogMapper(productRepo, categoryRepo, orderRepo)
	encoders := service.NewEncoders(service.EncoderOptions{
		Owner: commerceml.Party{
			ID:        cfg.Exchange.OwnerID,
			Name:      cfg.Exchange.OwnerName,
			LegalName: cfg.Exchange.OwnerLegalName,
			INN:       cfg.Exchange.OwnerINN,
		},
		XMLOrderItems: cfg.Exchange.XMLOrderItems,
	})
	importSvc := service.NewImportService(productRepo, categoryRepo, orderRepo, cfg.Exchange.MaxImportBatch)
	exportSvc := service.NewExportService(exportJobRepo, mapper, encoders, payloads,
		service.WithJobQueue(exportQueue),
		service.WithJobNotifier(notifiers),
		service.WithPollInterval(250*time.Millisecond),
	)
	authSvc := service.NewAuthService(clientRepo)
	adminAuthSvc := service.NewAdminAuthService(adminRepo)
	clientSvc := service.NewClientService(clientRepo)

	bootstrapAdmin(adminAuthSvc)

	// 7. Initialize handlers
	exchange, err := handler.NewExchangeHandler(mapper, encoders, importSvc, exportSvc, handler.ExchangeConfig{
		WaitTimeout:     cfg.Worker.ExportWaitTimeout,
		RecentJobsLimit: cfg.Exchange.RecentJobsLimit,
	})
	if err != nil {
		log.Error().Err(err).Msg("exchange action registry invalid")
		fmt.Fprintf(os.Stderr, "exchange action registry invalid: %v\n", err)
		os.Exit(1)
	}
	handlers := &Handlers{
		Exchange:  exchange,
		ExportJob: handler.NewExportJobHandler(exportSvc),
		Client:    handler.NewClientHandler(clientSvc),
		Auth:      handler.NewAuthHandler(adminAuthSvc),
		SSE:       handler.NewSSEHandler(hub),
		Health: handler.NewHealthHandler(map[string]handler.HealthCheck{
			"database": db.PingContext,
			"redis":    redisClient.Ping,
		}),
	}
	if localStore != nil {
		handlers.Files = handler.NewFilesHandler(localStore)
	}

	// 8. Initialize middleware
	authLimiter := middleware.NewInvalidAuthRateLimiter(10, time.Minute)
	authMw := middleware.NewAuthMiddleware(authSvc, authLimiter)
	jwtMw := middleware.NewJWTMiddleware()

	// 9. Setup router
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORSMiddleware(cfg.CORSHosts))
	router.Use(middleware.LoggingMiddleware())
	router.Use(middleware.MetricsMiddleware())
	setupRoutes(router, handlers, authMw, jwtMw)

	// 10. Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 11. Start workers
	go authLimiter.Run(ctx)
	go worker.NewExportWorker(exportSvc, exportQueue, cfg.Worker.ExportWorkers, cfg.Worker.ExportPollInterval).Start(ctx)
	go worker.NewStaleJobWorker(exportSvc, cfg.Worker.StaleCheckInterval, cfg.Worker.ExportStaleAfter).Start(ctx)

	// 12. Start HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// 13. Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// 14. Cancel context to stop workers
	cancel()

	// 15. Shutdown HTTP server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited")
}

// Handlers groups all HTTP handlers used by the server.
type Handlers struct {
	Exchange  *handler.ExchangeHandler
	ExportJob *handler.ExportJobHandler
	Files     *handler.FilesHandler
	Client    *handler.ClientHandler
	Auth      *handler.AuthHandler
	SSE       *handler.SSEHandler
	Health    *handler.HealthHandler
}

// setupRoutes registers all routes.
func setupRoutes(router *gin.Engine, handlers *Handlers, authMiddleware *middleware.AuthMiddleware, jwtMiddleware *middleware.JWTMiddleware) {
	router.GET("/v1/health", handlers.Health.GetHealth)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// ERP interchange (protected with client API key). /api/exchange is kept
	// for ERP installations configured against the old path.
	for _, prefix := range []string{"/v1/exchange", "/api/exchange"} {
		router.GET(prefix, authMiddleware.Handle(), handlers.Exchange.Handle)
		router.POST(prefix, authMiddleware.Handle(), handlers.Exchange.Handle)
	}

	// Signed download links carry their own authorization.
	if handlers.Files != nil {
		router.GET(storage.FilesRoute+"*key", handlers.Files.Download)
	}

	// Admin routes
	admin := router.Group("/v1/admin")
	admin.POST("/auth/login", handlers.Auth.Login)

	// EventSource cannot send headers; the stream checks its token itself.
	admin.GET("/exchange/events", handlers.SSE.Stream)

	protected := admin.Group("/exchange")
	protected.Use(jwtMiddleware.Handle())
	{
		protected.GET("/jobs", handlers.ExportJob.List)
		protected.GET("/jobs/:id", handlers.ExportJob.Get)
		protected.POST("/jobs", handlers.ExportJob.Create)

		protected.GET("/clients", handlers.Client.List)
		protected.POST("/clients", handlers.Client.Create)
		protected.PUT("/clients/:id/status", handlers.Client.SetStatus)
		protected.POST("/clients/:id/regenerate", handlers.Client.RegenerateKey)
	}
}

// bootstrapAdmin creates the first admin from ADMIN_EMAIL/ADMIN_PASSWORD.
// An existing account with that email is left untouched.
func bootstrapAdmin(svc *service.AdminAuthService) {
	email, password := os.Getenv("ADMIN_EMAIL"), os.Getenv("ADMIN_PASSWORD")
	if email == "" || password == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := svc.CreateAdmin(ctx, email, password, "Administrator"); err != nil {
		log.Error().Err(err).Str("email", email).Msg("admin bootstrap failed")
		return
	}
	log.Info().Str("email", email).Msg("admin account ensured")
}

// setupLogger configures zerolog based on environment.
func setupLogger(env string) {
	if env == "production" {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// runMigrations applies pending migrations from the migrations directory.
func runMigrations(db *sql.DB) error {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://migrations", "postgres", driver)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("could not run migrations: %w", err)
	}
	return nil
}
