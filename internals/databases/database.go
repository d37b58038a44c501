package database

import (
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"campusmap_backend/internals/configs"
	"campusmap_backend/internals/logger"
)

var DB *gorm.DB

func ConnectDB(cfg *configs.Config) {
	log := logger.App()
	log.Info("🔌 connecting to PostgreSQL...")

	dsn := cfg.DSN() + "&options=-c%20statement_timeout=5000"

	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  dsn,
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		Logger: configs.NewGormLogger(),
	})
	if err != nil {
		log.Fatalf("❌ database connection failed: %v", err)
	}
	DB = db
	log.Info("✅ DB connected.")
}

func TunePool() {
	sqlDB, err := DB.DB()
	if err != nil {
		logger.App().Warnf("pool tune err: %v", err)
		return
	}
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxIdleTime(60 * time.Second)
	sqlDB.SetConnMaxLifetime(10 * time.Minute)
}

func WarmUpQueries() {
	go func() {
		time.Sleep(500 * time.Millisecond)
		if err := ping(); err != nil {
			logger.App().Warnf("warm-up ping err: %v", err)
			return
		}
		// the public app hits the active map first
		DB.Exec("SELECT id FROM maps WHERE is_active LIMIT 1")
	}()
}

func ping() error {
	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}
