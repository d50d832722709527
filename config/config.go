package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

// Config is decoded from the process environment, optionally primed from a
// .env file in the working directory.
type Config struct {
	Port    string `env:"PORT,default=8080"`
	GinMode string `env:"GIN_MODE,default=debug"`

	DBDriver string `env:"DB_DRIVER,default=sqlite"`
	DBDSN    string `env:"DB_DSN,default=cafe.db"`

	// JWTSecret used to sign admin tokens
	JWTSecret string        `env:"JWT_SECRET,default=cafe_ordering_dev_secret"`
	TokenTTL  time.Duration `env:"TOKEN_TTL,default=24h"`

	ParcelCharge     float64 `env:"PARCEL_CHARGE,default=10"`
	OrderNumberStart int64   `env:"ORDER_NUMBER_START,default=1000"`

	UploadBackend   string `env:"UPLOAD_BACKEND,default=disk"`
	UploadDir       string `env:"UPLOAD_DIR,default=public/uploads"`
	UploadURLPrefix string `env:"UPLOAD_URL_PREFIX,default=/uploads"`
	UploadMaxBytes  int64  `env:"UPLOAD_MAX_BYTES,default=5242880"`
	S3Bucket        string `env:"S3_BUCKET"`
	S3Region        string `env:"S3_REGION,default=us-east-1"`
	S3Endpoint      string `env:"S3_ENDPOINT"`
	S3PublicURL     string `env:"S3_PUBLIC_URL"`

	RedisAddr    string `env:"REDIS_ADDR"`
	RedisChannel string `env:"REDIS_CHANNEL,default=cafe:events"`

	LogLevel  string `env:"LOG_LEVEL,default=info"`
	LogFormat string `env:"LOG_FORMAT,default=json"`

	LoginRatePerMin int `env:"LOGIN_RATE_PER_MIN,default=10"`
	// TrustedProxies lists proxy IPs/CIDRs (";"-separated) whose
	// X-Forwarded-For is believed. Empty trusts none.
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	SeedOnStart   bool   `env:"SEED_ON_START,default=false"`
	SeedAdminPass string `env:"SEED_ADMIN_PASSWORD,default=sippin2025"`
	StaticDir     string `env:"STATIC_DIR,default=public"`
}

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	UploadBackendDisk = "disk"
	UploadBackendS3   = "s3"
)

// Load reads .env (if present) and decodes the environment into a Config.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return Config{}, fmt.Errorf("decode environment: %w", err)
	}
	cfg.DBDriver = strings.ToLower(strings.TrimSpace(cfg.DBDriver))
	cfg.UploadBackend = strings.ToLower(strings.TrimSpace(cfg.UploadBackend))
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the server cannot start with.
func (c Config) Validate() error {
	switch strings.ToLower(c.DBDriver) {
	case DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("DB_DRIVER must be sqlite or postgres, got %q", c.DBDriver)
	}
	switch strings.ToLower(c.UploadBackend) {
	case UploadBackendDisk:
	case UploadBackendS3:
		if c.S3Bucket == "" {
			return errors.New("S3_BUCKET is required when UPLOAD_BACKEND=s3")
		}
	default:
		return fmt.Errorf("UPLOAD_BACKEND must be disk or s3, got %q", c.UploadBackend)
	}
	if c.ParcelCharge < 0 {
		return errors.New("PARCEL_CHARGE must not be negative")
	}
	if c.TokenTTL <= 0 {
		return errors.New("TOKEN_TTL must be positive")
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET must not be empty")
	}
	if c.UploadMaxBytes <= 0 {
		return errors.New("UPLOAD_MAX_BYTES must be positive")
	}
	return nil
}
