package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	LoginMethodEmail    = "EMAIL"
	LoginMethodUsername = "USERNAME"

	StoreDriverMongo  = "mongo"
	StoreDriverMemory = "memory"

	StorageDriverR2    = "r2"
	StorageDriverGCS   = "gcs"
	StorageDriverLocal = "local"
)

type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Auth      AuthConfig
	Cookie    CookieConfig
	Mail      MailConfig
	RateLimit RateLimitConfig
	Storage   StorageConfig
	Seed      SeedConfig
}

type AppConfig struct {
	Environment    string
	Port           string
	AllowedOrigins []string
	PublicBaseURL  string
}

type DatabaseConfig struct {
	Driver string
	URI    string
	Name   string
}

type AuthConfig struct {
	Secret               string
	AccessTokenTTL       time.Duration
	RefreshTokenTTL      time.Duration
	PasswordResetTTL     time.Duration
	EmailConfirmationTTL time.Duration
	PasswordMinLength    int
	LoginMethod          string
	// ResetRequiresVerifiedEmail refuses password reset mails for accounts
	// whose email was never confirmed.
	ResetRequiresVerifiedEmail bool
}

type CookieConfig struct {
	Secure bool
	Domain string
}

type MailConfig struct {
	SendGridAPIKey string
	From           string
}

type RateLimitConfig struct {
	RedisURL string
	Requests int
	Window   time.Duration
}

// SeedConfig describes an optional creator account inserted at start up.
type SeedConfig struct {
	Email    string
	Username string
	Password string
}

type StorageConfig struct {
	Driver             string
	R2Bucket           string
	R2AccessKeyID      string
	R2SecretAccessKey  string
	R2Endpoint         string
	R2PublicDomain     string
	GCSBucket          string
	GCSCredentialsFile string
	LocalDir           string
	MaxUploadSizeMB    int
	AllowedExtensions  []string
	AllowedMimeTypes   []string
}

// Load reads the process environment, after merging an optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		App: AppConfig{
			Environment:    getEnv("APP_ENV", "development"),
			Port:           getEnv("PORT", "8080"),
			AllowedOrigins: getEnvAsList("ALLOWED_ORIGINS", nil),
			PublicBaseURL:  strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),
		},
		Database: DatabaseConfig{
			Driver: getEnv("STORE_DRIVER", StoreDriverMongo),
			URI:    getEnv("MONGODB_URI", "mongodb://localhost:27017"),
			Name:   getEnv("DATABASE_NAME", "eventhub"),
		},
		Auth: AuthConfig{
			Secret:                     os.Getenv("JWT_SECRET"),
			AccessTokenTTL:             time.Duration(getEnvAsInt("ACCESS_TOKEN_TTL_MINUTES", 15)) * time.Minute,
			RefreshTokenTTL:            time.Duration(getEnvAsInt("REFRESH_TOKEN_TTL_DAYS", 30)) * 24 * time.Hour,
			PasswordResetTTL:           getEnvAsDuration("PASSWORD_RESET_TTL", 15*time.Minute),
			EmailConfirmationTTL:       getEnvAsDuration("EMAIL_CONFIRMATION_TTL", 24*time.Hour),
			PasswordMinLength:          getEnvAsInt("PASSWORD_MIN_LENGTH", 8),
			LoginMethod:                strings.ToUpper(getEnv("LOGIN_METHOD", LoginMethodEmail)),
			ResetRequiresVerifiedEmail: getEnvAsBool("RESET_REQUIRES_VERIFIED_EMAIL", true),
		},
		Cookie: CookieConfig{
			Secure: getEnvAsBool("COOKIE_SECURE", false),
			Domain: os.Getenv("COOKIE_DOMAIN"),
		},
		Mail: MailConfig{
			SendGridAPIKey: os.Getenv("SENDGRID_API_KEY"),
			From:           getEnv("MAIL_FROM", "no-reply@eventhub.local"),
		},
		RateLimit: RateLimitConfig{
			RedisURL: os.Getenv("REDIS_URL"),
			Requests: getEnvAsInt("RATE_LIMIT_REQUESTS", 10),
			Window:   getEnvAsDuration("RATE_LIMIT_WINDOW", time.Minute),
		},
		Storage: StorageConfig{
			Driver:             strings.ToLower(getEnv("STORAGE_DRIVER", StorageDriverLocal)),
			R2Bucket:           os.Getenv("R2_BUCKET"),
			R2AccessKeyID:      os.Getenv("R2_ACCESS_KEY_ID"),
			R2SecretAccessKey:  os.Getenv("R2_SECRET_ACCESS_KEY"),
			R2Endpoint:         os.Getenv("R2_ENDPOINT"),
			R2PublicDomain:     strings.TrimRight(os.Getenv("R2_PUBLIC_DOMAIN"), "/"),
			GCSBucket:          os.Getenv("GCS_BUCKET"),
			GCSCredentialsFile: os.Getenv("CREDENTIALS_FILE_LOCATION"),
			LocalDir:           getEnv("UPLOAD_DIR", "uploads"),
			MaxUploadSizeMB:    getEnvAsInt("MAX_UPLOAD_SIZE_MB", 5),
			AllowedExtensions:  getEnvAsList("ALLOWED_FILE_EXTENSIONS", []string{".jpg", ".jpeg", ".png", ".webp"}),
			AllowedMimeTypes:   getEnvAsList("ALLOWED_FILE_MIME_TYPES", []string{"image/jpeg", "image/png", "image/webp"}),
		},
		Seed: SeedConfig{
			Email:    strings.ToLower(strings.TrimSpace(os.Getenv("SEED_CREATOR_EMAIL"))),
			Username: strings.TrimSpace(os.Getenv("SEED_CREATOR_USERNAME")),
			Password: os.Getenv("SEED_CREATOR_PASSWORD"),
		},
	}

	if cfg.Auth.Secret == "" && !cfg.IsProduction() {
		cfg.Auth.Secret = "dev-secret-change-me"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

func (c *Config) Validate() error {
	var errs []error
	if c.Auth.Secret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	switch c.Auth.LoginMethod {
	case LoginMethodEmail, LoginMethodUsername:
	default:
		errs = append(errs, fmt.Errorf("unsupported LOGIN_METHOD %q", c.Auth.LoginMethod))
	}
	switch c.Database.Driver {
	case StoreDriverMongo, StoreDriverMemory:
	default:
		errs = append(errs, fmt.Errorf("unsupported STORE_DRIVER %q", c.Database.Driver))
	}
	switch c.Storage.Driver {
	case StorageDriverR2, StorageDriverGCS, StorageDriverLocal:
	default:
		errs = append(errs, fmt.Errorf("unsupported STORAGE_DRIVER %q", c.Storage.Driver))
	}
	if c.Auth.AccessTokenTTL <= 0 || c.Auth.RefreshTokenTTL <= 0 {
		errs = append(errs, errors.New("token TTLs must be positive"))
	}
	if c.Auth.PasswordMinLength < 1 {
		errs = append(errs, errors.New("PASSWORD_MIN_LENGTH must be positive"))
	}
	return errors.Join(errs...)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil && intValue > 0 {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	out := make([]string, 0)
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
