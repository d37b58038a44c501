package configs

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	gormLogger "gorm.io/gorm/logger"
	"gorm.io/gorm/utils"

	helperOSS "campusmap_backend/internals/helpers/oss"
	"campusmap_backend/internals/logger"
)

// Config is the full runtime configuration, read from the environment.
type Config struct {
	Port string `env:"PORT" envDefault:"3000"`

	DBHost        string `env:"DB_HOST" envDefault:"localhost"`
	DBPort        string `env:"DB_PORT" envDefault:"5432"`
	DBUser        string `env:"DB_USER"`
	DBPassword    string `env:"DB_PASSWORD"`
	DBName        string `env:"DB_NAME"`
	DBSSLMode     string `env:"DB_SSLMODE" envDefault:"require"`
	DBAutoMigrate bool   `env:"DB_AUTO_MIGRATE" envDefault:"true"`

	JWTSecret   string `env:"JWT_SECRET"`
	JWTTTLHours int    `env:"JWT_TTL_HOURS" envDefault:"24"`

	CORSOrigins string `env:"CORS_ORIGINS" envDefault:"http://localhost:5173,http://localhost:3000"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`
	LogOutput string `env:"LOG_OUTPUT" envDefault:"stdout"`
	LogPath   string `env:"LOG_PATH" envDefault:"logs"`

	RedisURL string `env:"REDIS_URL"`

	ImageStore     string `env:"IMAGE_STORE" envDefault:"oss"`
	OSSEndpoint    string `env:"ALI_OSS_ENDPOINT"`
	OSSAccessKey   string `env:"ALI_OSS_ACCESS_KEY"`
	OSSSecretKey   string `env:"ALI_OSS_SECRET_KEY"`
	OSSBucket      string `env:"ALI_OSS_BUCKET"`
	OSSPrefix      string `env:"ALI_OSS_PREFIX"`
	OSSPublicBase  string `env:"ALI_OSS_PUBLIC_BASE"`
	TrashRetention int    `env:"TRASH_RETENTION_DAYS" envDefault:"30"`
	TrashSchedule  string `env:"TRASH_CRON_SCHEDULE" envDefault:"0 3 * * *"`
}

var (
	JWTSecret string
	Cfg       *Config
)

// LoadEnv reads .env (outside hosted environments), parses Config and
// initialises the loggers. It is safe to call more than once.
func LoadEnv() *Config {
	if os.Getenv("RAILWAY_ENVIRONMENT") == "" {
		if err := godotenv.Load(); err != nil {
			fmt.Println("⚠️ no .env file found, using system environment")
		}
	}

	cfg, err := Load()
	if err != nil {
		fmt.Printf("❌ invalid configuration: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.LogConfig()); err != nil {
		fmt.Printf("❌ logger init failed: %v\n", err)
	}

	log := logger.App()
	if cfg.JWTSecret == "" {
		log.Warn("❌ JWT_SECRET is not set, admin login is disabled")
	} else {
		log.Info("✅ JWT_SECRET loaded")
	}

	JWTSecret = cfg.JWTSecret
	Cfg = cfg
	return cfg
}

// Load parses the environment into a Config without side effects.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) LogConfig() *logger.LogConfig {
	lc := logger.DefaultConfig()
	lc.Level = c.LogLevel
	lc.Format = c.LogFormat
	lc.Output = c.LogOutput
	lc.Path = c.LogPath
	return lc
}

func (c *Config) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s&application_name=campusmap",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	)
}

func (c *Config) AllowedOrigins() []string {
	out := make([]string, 0, 4)
	for _, o := range strings.Split(c.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

func (c *Config) ImageStoreConfig() helperOSS.Config {
	return helperOSS.Config{
		Driver:     c.ImageStore,
		Endpoint:   c.OSSEndpoint,
		AccessKey:  c.OSSAccessKey,
		SecretKey:  c.OSSSecretKey,
		Bucket:     c.OSSBucket,
		Prefix:     c.OSSPrefix,
		PublicBase: c.OSSPublicBase,
	}
}

func (c *Config) JWTTTL() time.Duration {
	if c.JWTTTLHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.JWTTTLHours) * time.Hour
}

func (c *Config) TrashRetentionPeriod() time.Duration {
	days := c.TrashRetention
	if days <= 0 {
		days = 30
	}
	return time.Duration(days) * 24 * time.Hour
}

func GetEnv(key string, defaultValue ...string) string {
	value, exists := os.LookupEnv(key)
	if !exists && len(defaultValue) > 0 {
		return defaultValue[0]
	}
	return value
}

// =======================
// GORM LOGGER
// =======================

type GormLogger struct {
	SlowThreshold time.Duration
	LogLevel      gormLogger.LogLevel
	log           *logrus.Logger
}

func NewGormLogger() gormLogger.Interface {
	return &GormLogger{
		SlowThreshold: 200 * time.Millisecond,
		LogLevel:      gormLogger.Warn,
		log:           logger.GetLogger("gorm"),
	}
}

func (l *GormLogger) LogMode(level gormLogger.LogLevel) gormLogger.Interface {
	cp := *l
	cp.LogLevel = level
	return &cp
}

func (l *GormLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= gormLogger.Info {
		l.log.Infof(msg, data...)
	}
}

func (l *GormLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= gormLogger.Warn {
		l.log.Warnf(msg, data...)
	}
}

func (l *GormLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= gormLogger.Error {
		l.log.Errorf(msg, data...)
	}
}

func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.LogLevel <= gormLogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	sql, rows := fc()
	fields := logrus.Fields{
		"file":    utils.FileWithLineNum(),
		"elapsed": elapsed.String(),
		"rows":    rows,
	}

	switch {
	case err != nil && l.LogLevel >= gormLogger.Error && !isRecordNotFound(err):
		l.log.WithFields(fields).WithError(err).Error(sql)
	case elapsed > l.SlowThreshold && l.LogLevel >= gormLogger.Warn:
		l.log.WithFields(fields).Warn("[SLOW SQL] " + sql)
	case l.LogLevel >= gormLogger.Info:
		l.log.WithFields(fields).Debug(sql)
	}
}

func isRecordNotFound(err error) bool {
	return err != nil && err.Error() == "record not found"
}
