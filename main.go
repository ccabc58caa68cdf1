package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"taskify/backend/internal/cache"
	"taskify/backend/internal/config"
	"taskify/backend/internal/crypto"
	"taskify/backend/internal/database"
	"taskify/backend/internal/dav"
	"taskify/backend/internal/handlers"
	"taskify/backend/internal/middleware"
	"taskify/backend/internal/monitoring"
	"taskify/backend/internal/repositories"
	"taskify/backend/internal/services"
	"taskify/backend/internal/worker"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

// Application holds all application dependencies and state
type Application struct {
	Config     *config.Config
	DB         *gorm.DB
	Pool       *database.DatabasePool
	Cache      cache.Cache
	RedisCache *cache.RedisCache
	Redis      *redis.Client
	Logger     *slog.Logger
	Router     *gin.Engine
	Server     *http.Server

	ImportQueue  *worker.Queue
	ImportWorker *worker.Worker

	// Services
	TaskService    services.TaskService
	ContactService services.ContactService
	DAVService     services.DAVService
	SearchService  services.SearchService
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("❌ Failed to load configuration: %v", err)
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	app, err := initializeApplication(cfg)
	if err != nil {
		log.Fatalf("❌ Failed to initialize application: %v", err)
	}

	app.setupRoutes()
	app.startServer()
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

func initializeApplication(cfg *config.Config) (*Application, error) {
	app := &Application{
		Config: cfg,
		Logger: newLogger(cfg.Server.LogLevel),
	}
	slog.SetDefault(app.Logger)

	log.Println("🚀 Initializing Taskify Backend...")
	log.Printf("📋 Environment: %s", cfg.Server.Environment)

	pool, err := database.NewDatabasePool(database.PoolConfigFrom(cfg))
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}
	app.Pool = pool
	app.DB = pool.DB
	monitoring.RegisterHealthCheck("database", pool.Health)

	migrationConfig := &repositories.MigrationConfig{
		MigrationsPath: cfg.Database.MigrationsPath,
		DBName:         cfg.Database.Name,
		MaxRetries:     3,
		RetryDelay:     2 * time.Second,
	}
	if err := repositories.RunMigrations(app.DB, migrationConfig); err != nil {
		return nil, fmt.Errorf("database migration failed: %w", err)
	}

	if cfg.Redis.Enabled {
		app.connectRedis()
	}
	app.Cache = cache.NewMultiLevelCache(app.RedisCache, cfg.Cache.L1TTL)
	if app.RedisCache != nil {
		log.Println("✅ Multi-level cache initialized (Memory L1 + Redis L2)")
	} else {
		log.Println("✅ Memory cache initialized (Redis unavailable)")
	}

	encryptor, err := crypto.NewEncryptor(cfg.DAV.CredentialsKey)
	if err != nil {
		return nil, fmt.Errorf("credentials encryptor: %w", err)
	}

	connector := dav.NewDialer(dav.Options{
		Logger:        app.Logger.With("component", "dav"),
		ReportTimeout: cfg.DAV.ReportTimeout,
	})
	app.initServices(encryptor, connector)

	if app.Redis != nil {
		app.startImportWorker()
	}

	log.Println("✅ All services initialized")
	return app, nil
}

func (app *Application) connectRedis() {
	cfg := app.Config
	redisCache := cache.NewRedisCache(&cache.CacheConfig{
		Addr:         cfg.GetRedisAddr(),
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		MaxRetries:   cfg.Redis.MaxRetries,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := redisCache.Health(ctx); err != nil {
		log.Printf("⚠️  Redis unavailable: %v (continuing with memory cache only)", err)
		redisCache.Close()
		return
	}

	app.RedisCache = redisCache
	app.Redis = redisCache.Client()
	monitoring.RegisterHealthCheck("redis", redisCache.Health)
	log.Println("✅ Redis connected")
}

// initServices wires the sync services. connector is the DAV transport;
// tests pass one pointed at a fake server.
func (app *Application) initServices(encryptor *crypto.Encryptor, connector dav.Connector) {
	creds := services.NewCredentialService(encryptor)
	deps := services.SyncDeps{
		Connector:   connector,
		Credentials: creds,
		DAV:         app.Config.DAV,
		Logger:      app.Logger,
		Metrics:     monitoring.Sync(),
	}

	app.DAVService = creds
	app.TaskService = services.NewCachedTaskService(services.NewTaskService(deps), app.Cache, app.Config.Cache.ListTTL)
	app.ContactService = services.NewCachedContactService(services.NewContactService(deps), app.Cache, app.Config.Cache.ListTTL)
	app.SearchService = services.NewSearchService()
}

func (app *Application) startImportWorker() {
	app.ImportQueue = worker.NewQueue(app.Redis, "taskify:imports", 24*time.Hour)
	app.ImportWorker = worker.NewWorker(worker.WorkerConfig{
		Queue:       app.ImportQueue,
		Concurrency: 2,
		JobTimeout:  5 * time.Minute,
	})

	app.ImportWorker.RegisterHandler(worker.JobImportTasks, func(ctx context.Context, job *worker.Job) (interface{}, error) {
		return app.TaskService.ImportTasks(ctx, app.DB, job.UserID)
	})
	app.ImportWorker.RegisterHandler(worker.JobImportContacts, func(ctx context.Context, job *worker.Job) (interface{}, error) {
		return app.ContactService.ImportContacts(ctx, app.DB, job.UserID)
	})
	app.ImportWorker.Start()
}

func (app *Application) setupRoutes() {
	r := gin.New()

	// Global middleware stack (order matters!)
	r.Use(gin.Logger())
	r.Use(middleware.RecoveryWithLog())
	r.Use(monitoring.MetricsMiddleware())
	r.Use(middleware.SecureHeader())

	if app.Config.RateLimit.Enabled {
		rateLimit := rate.Limit(float64(app.Config.RateLimit.RequestsPerMin) / 60.0)
		r.Use(middleware.RateLimiter(rateLimit, app.Config.RateLimit.BurstSize, app.Config.RateLimit.CleanupInterval))
	}

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:3000", "http://host.docker.internal"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Health and monitoring endpoints (no auth required)
	r.GET("/health", monitoring.HealthHandler())
	r.GET("/ready", monitoring.ReadinessHandler())
	r.GET("/live", monitoring.LivenessHandler())
	r.GET("/metrics", monitoring.MetricsHandler())

	v1 := r.Group("/api/v1")
	v1.Use(middleware.Identity(middleware.IdentityConfig{
		Secret: app.Config.Auth.JWTSecret,
		Issuer: app.Config.Auth.Issuer,
	}))

	// Per-user import limit, shared across instances through redis.
	var importLimit gin.HandlerFunc = func(c *gin.Context) { c.Next() }
	if app.Redis != nil {
		importLimit = middleware.NewDistributedRateLimiter(app.Redis).CreateMiddleware("import", &middleware.RateLimit{
			Rate:    5,
			Window:  time.Minute,
			KeyFunc: middleware.UserKeyFunc,
		})
	}

	taskHandler := handlers.NewTaskHandler(app.DB, app.TaskService)
	taskRoutes := v1.Group("/tasks")
	{
		taskRoutes.POST("", taskHandler.CreateTask)
		taskRoutes.GET("", taskHandler.GetTasks)
		taskRoutes.POST("/import", importLimit, taskHandler.ImportTasks)
		taskRoutes.GET("/:id", taskHandler.GetTaskByID)
		taskRoutes.PUT("/:id", taskHandler.UpdateTask)
		taskRoutes.DELETE("/:id", taskHandler.DeleteTask)
	}

	contactHandler := handlers.NewContactHandler(app.DB, app.ContactService)
	contactRoutes := v1.Group("/contacts")
	{
		contactRoutes.POST("", contactHandler.CreateContact)
		contactRoutes.GET("", contactHandler.GetContacts)
		contactRoutes.GET("/map", contactHandler.GetContactMap)
		contactRoutes.POST("/import", importLimit, contactHandler.ImportContacts)
		contactRoutes.PUT("/:id", contactHandler.UpdateContact)
		contactRoutes.DELETE("/:id", contactHandler.DeleteContact)
	}

	if app.ImportQueue != nil {
		jobHandler := handlers.NewImportJobHandler(app.ImportQueue)
		importRoutes := v1.Group("/imports")
		importRoutes.POST("/tasks", importLimit, jobHandler.EnqueueTasks)
		importRoutes.POST("/contacts", importLimit, jobHandler.EnqueueContacts)
		importRoutes.GET("/:id", jobHandler.Status)
	}

	davHandler := handlers.NewDAVHandler(app.DB, app.DAVService)
	davRoutes := v1.Group("/dav")
	{
		davRoutes.POST("/setup", davHandler.Setup)
		davRoutes.GET("/check", davHandler.Check)
		davRoutes.POST("/disconnect", davHandler.Disconnect)
	}

	searchHandler := handlers.NewSearchHandler(app.DB, app.SearchService)
	v1.GET("/search", searchHandler.Search)

	app.Router = r
}

func (app *Application) startServer() {
	addr := app.Config.GetServerAddr()

	app.Server = &http.Server{
		Addr:         addr,
		Handler:      app.Router,
		ReadTimeout:  app.Config.Server.ReadTimeout,
		WriteTimeout: app.Config.Server.WriteTimeout,
		IdleTimeout:  app.Config.Server.IdleTimeout,
	}

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit

		log.Println("🛑 Shutting down server...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := app.Server.Shutdown(ctx); err != nil {
			log.Printf("❌ Server forced to shutdown: %v", err)
		}

		app.cleanup()
		log.Println("✅ Server stopped gracefully")
	}()

	log.Printf("🚀 Server starting on %s", addr)
	log.Printf("📊 Metrics available at http://%s/metrics", addr)
	log.Printf("💚 Health check at http://%s/health", addr)

	if err := app.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("❌ Server failed to start: %v", err)
	}
}

func (app *Application) cleanup() {
	log.Println("🧹 Cleaning up resources...")

	if app.ImportWorker != nil {
		app.ImportWorker.Stop()
	}

	// Closes the redis connection as well.
	if app.Cache != nil {
		if err := app.Cache.Close(); err != nil {
			log.Printf("⚠️  Error closing cache: %v", err)
		}
	}

	if app.Pool != nil {
		if err := app.Pool.Close(); err != nil {
			log.Printf("⚠️  Error closing database: %v", err)
		}
	}

	log.Println("✅ Cleanup complete")
}
