package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver for database/sql (migrations)
	"go.uber.org/zap"

	"github.com/arborlabs/taxonomy-engine/pkg/audit"
	"github.com/arborlabs/taxonomy-engine/pkg/cache"
	"github.com/arborlabs/taxonomy-engine/pkg/config"
	"github.com/arborlabs/taxonomy-engine/pkg/database"
	"github.com/arborlabs/taxonomy-engine/pkg/handlers"
	"github.com/arborlabs/taxonomy-engine/pkg/logging"
	"github.com/arborlabs/taxonomy-engine/pkg/middleware"
	"github.com/arborlabs/taxonomy-engine/pkg/repositories"
	"github.com/arborlabs/taxonomy-engine/pkg/retry"
	"github.com/arborlabs/taxonomy-engine/pkg/services"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := newLogger(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck // stderr sync failure at exit is harmless

	logger.Info("Configuration loaded",
		zap.String("environment", cfg.Env),
		zap.String("version", cfg.Version),
		zap.String("database", logging.SanitizeConnectionString(cfg.Database.ConnectionString())),
		zap.String("redis", cfg.Redis.Addr()),
	)

	ctx := context.Background()

	db, err := retry.DoWithResult(ctx, retry.DefaultConfig(), func() (*database.DB, error) {
		return database.NewConnection(ctx, &database.Config{
			URL:            cfg.Database.ConnectionString(),
			MaxConnections: cfg.Database.MaxConnections,
		})
	})
	if err != nil {
		logger.Fatal("Failed to connect to database",
			zap.String("error", logging.SanitizeError(err)))
	}
	defer db.Close()

	// Migrations run over database/sql; the pgx pool stays dedicated to
	// request traffic.
	sqlDB, err := sql.Open("pgx", cfg.Database.ConnectionString())
	if err != nil {
		logger.Fatal("Failed to open migration connection",
			zap.String("error", logging.SanitizeError(err)))
	}
	if err := database.RunMigrations(sqlDB, cfg.Database.MigrationsPath, logger); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}
	if err := sqlDB.Close(); err != nil {
		logger.Warn("Failed to close migration connection", zap.Error(err))
	}

	redisClient, err := database.NewRedisClient(&cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to connect to Redis",
			zap.String("error", logging.SanitizeError(err)))
	}

	var store cache.Store
	if redisClient != nil {
		defer redisClient.Close() //nolint:errcheck // close on exit is best-effort
		store = cache.NewRedisStore(redisClient, logger)
		logger.Info("Cache enabled", zap.String("addr", cfg.Redis.Addr()))
	} else {
		logger.Info("Cache disabled, all reads go to the store")
	}

	cacheCoord := cache.NewCoordinator(store, cache.TTLs{
		Tree:   cfg.Cache.TreeTTL,
		Detail: cfg.Cache.DetailTTL,
		List:   cfg.Cache.ListTTL,
	}, logger)

	taxRepo := repositories.NewTaxonomyRepository()
	catRepo := repositories.NewCategoryRepository()
	clsRepo := repositories.NewClassificationRepository()

	getTenant := services.NewTenantContextFunc(db)
	auditor := audit.NewLogRecorder(logger)

	taxonomyService := services.NewTaxonomyService(taxRepo, catRepo, clsRepo, cacheCoord, auditor, getTenant, logger)
	categoryService := services.NewCategoryService(catRepo, taxRepo, cacheCoord, auditor, getTenant, logger)
	classificationService := services.NewClassificationService(clsRepo, catRepo, auditor, getTenant, logger)

	mux := http.NewServeMux()

	handlers.NewHealthHandler(cfg, logger).RegisterRoutes(mux)
	handlers.NewTaxonomyHandler(taxonomyService, logger).RegisterRoutes(mux)
	handlers.NewCategoryHandler(categoryService, logger).RegisterRoutes(mux)
	handlers.NewClassificationHandler(classificationService, logger).RegisterRoutes(mux)

	handler := middleware.RequestLogger(logger)(mux)

	addr := cfg.BindAddr + ":" + cfg.Port
	logger.Info("Starting taxonomy-engine",
		zap.String("addr", addr),
		zap.String("version", cfg.Version))
	if err := http.ListenAndServe(addr, handler); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
