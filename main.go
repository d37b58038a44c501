package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/etag"
	"github.com/robfig/cron/v3"

	"campusmap_backend/internals/cache"
	"campusmap_backend/internals/configs"
	database "campusmap_backend/internals/databases"
	trashScheduler "campusmap_backend/internals/features/trash/scheduler"
	authScheduler "campusmap_backend/internals/features/users/auth/scheduler"
	authService "campusmap_backend/internals/features/users/auth/service"
	helper "campusmap_backend/internals/helpers"
	helperOSS "campusmap_backend/internals/helpers/oss"
	"campusmap_backend/internals/logger"
	middlewares "campusmap_backend/internals/middlewares"
	routes "campusmap_backend/internals/route"
)

func main() {
	cfg := configs.LoadEnv()
	log := logger.App()

	app := fiber.New(fiber.Config{
		JSONEncoder:           sonic.Marshal,
		JSONDecoder:           sonic.Unmarshal,
		DisableStartupMessage: true,
		ProxyHeader:           fiber.HeaderXForwardedFor,
		BodyLimit:             20 * 1024 * 1024, // panoramas
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return helper.JsonErrorFrom(c, err)
		},
	})

	app.Use(compress.New(compress.Config{Level: compress.LevelDefault}))
	app.Use(etag.New())
	middlewares.SetupMiddlewares(app, cfg)

	// 🔌 DB connect + schema + pool
	if cfg.DBAutoMigrate {
		if err := database.Migrate(cfg.DSN(), 0); err != nil {
			log.Fatalf("❌ migrations failed: %v", err)
		}
	}
	database.ConnectDB(cfg)
	database.TunePool()
	database.WarmUpQueries()

	images, err := helperOSS.NewImageStore(cfg.ImageStoreConfig())
	if err != nil {
		log.Fatalf("❌ image store: %v", err)
	}
	publicCache, err := cache.New(cfg.RedisURL)
	if err != nil {
		log.WithError(err).Warn("⚠️ redis unavailable, public cache disabled")
		publicCache = cache.NopCache{}
	}

	auth := authService.NewAuthService(database.DB, cfg.JWTSecret, cfg.JWTTTL())
	deps := routes.NewDeps(database.DB, images, publicCache, auth)

	// ⏱ schedulers after the DB is ready
	jobs, err := trashScheduler.StartTrashReaper(deps.Trash, cfg.TrashSchedule, cfg.TrashRetentionPeriod())
	if err != nil {
		log.Fatalf("❌ trash reaper: %v", err)
	}
	if err := authScheduler.StartBlacklistCleanup(jobs, database.DB); err != nil {
		log.Fatalf("❌ blacklist cleanup: %v", err)
	}

	routes.SetupRoutes(app, deps)

	app.Server().ReadTimeout = 15 * time.Second
	app.Server().WriteTimeout = 30 * time.Second
	app.Server().IdleTimeout = 90 * time.Second

	go func() {
		log.Infof("✅ Listening on :%s", cfg.Port)
		if err := app.Listen("0.0.0.0:" + cfg.Port); err != nil {
			log.Fatalf("server error: %v", err)
		}
	}()

	// graceful shutdown: stop jobs, drain requests, close pools
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("🛑 shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	stopCron(ctx, jobs)
	_ = app.ShutdownWithContext(ctx)

	if rc, ok := publicCache.(*cache.RedisCache); ok {
		_ = rc.Close()
	}
	if sqlDB, err := database.DB.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func stopCron(ctx context.Context, c *cron.Cron) {
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
	}
}
