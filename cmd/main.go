package main

import (
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"catalog-sync-service/internal/cache"
	"catalog-sync-service/internal/clients"
	"catalog-sync-service/internal/clients/location"
	"catalog-sync-service/internal/clients/sheet"
	"catalog-sync-service/internal/clients/warehouse"
	"catalog-sync-service/internal/config"
	"catalog-sync-service/internal/database"
	"catalog-sync-service/internal/handlers"
	"catalog-sync-service/internal/middleware"
	"catalog-sync-service/internal/repository"
	"catalog-sync-service/internal/services"
)

func main() {
	// Load .env if present; real deployments use the environment
	if err := godotenv.Load(); err == nil {
		logrus.Info("Loaded configuration from .env")
	}

	cfg := config.Load()

	logrus.SetFormatter(&logrus.JSONFormatter{})
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Connect to database
	db, err := database.Connect(cfg)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to connect to database")
	}

	if err := database.Migrate(db); err != nil {
		logrus.WithError(err).Warn("Auto-migration failed")
	} else {
		logrus.Info("Database models migrated")
	}

	// Initialize repositories
	productRepo := repository.NewProductRepository(db)
	syncRunRepo := repository.NewSyncRunRepository(db)

	// One cache store per process, shared by sync and search
	store := cache.NewMemoryStore()

	// Initialize source adapters
	sources := []clients.SourceClient{
		sheet.NewClient(cfg.SheetFeedURL, cfg.SourceTimeout),
		warehouse.NewClient(cfg.WarehouseBaseURL, cfg.WarehouseAccessKey, cfg.WarehouseSecretKey, cfg.SourceTimeout),
	}
	locationClient := location.NewClient(cfg.LocationBaseURL, cfg.LocationAPIKey, cfg.SourceTimeout)

	// Initialize services
	syncService := services.NewSyncService(productRepo, syncRunRepo, sources, store, cfg.CacheTTL, cfg.SyncTimeout)
	searchService := services.NewSearchService(locationClient, store, cfg.CacheTTL)

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(db)
	syncHandler := handlers.NewSyncHandler(syncService, syncRunRepo)
	catalogHandler := handlers.NewCatalogHandler(productRepo)
	searchHandler := handlers.NewSearchHandler(searchService)

	router := setupRouter(cfg, healthHandler, syncHandler, catalogHandler, searchHandler)

	logrus.WithFields(logrus.Fields{
		"port": cfg.Port,
		"env":  cfg.Environment,
	}).Info("Catalog Sync Service starting")
	if err := router.Run(":" + cfg.Port); err != nil {
		logrus.WithError(err).Fatal("Failed to start server")
	}
}

// setupRouter configures the HTTP router
func setupRouter(
	cfg *config.Config,
	healthHandler *handlers.HealthHandler,
	syncHandler *handlers.SyncHandler,
	catalogHandler *handlers.CatalogHandler,
	searchHandler *handlers.SearchHandler,
) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.CORS(cfg.AllowedOrigins))

	// Health check
	router.GET("/health", healthHandler.Health)
	router.GET("/ready", healthHandler.Ready)

	v1 := router.Group("/api/v1")
	{
		// Sync runs
		sync := v1.Group("/sync")
		{
			sync.POST("/runs", syncHandler.TriggerRun)
			sync.GET("/runs", syncHandler.ListRuns)
			sync.GET("/runs/latest", syncHandler.LatestRun)
			sync.GET("/runs/failed", syncHandler.ListFailedRuns)
			sync.GET("/runs/stats", syncHandler.Stats)
			sync.DELETE("/runs", syncHandler.CleanupRuns)
			sync.GET("/runs/:id", syncHandler.GetRun)
			sync.POST("/runs/:id/cancel", syncHandler.CancelRun)
		}

		// Canonical catalog
		catalog := v1.Group("/catalog")
		{
			catalog.GET("/products", catalogHandler.ListProducts)
			catalog.GET("/products/:id", catalogHandler.GetProduct)
			catalog.POST("/products/:id/activate", catalogHandler.ActivateProduct)
			catalog.POST("/products/:id/deactivate", catalogHandler.DeactivateProduct)
		}

		// Location search
		v1.GET("/locations/search", searchHandler.SearchLocations)
	}

	return router
}
