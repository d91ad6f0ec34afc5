package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port                     string        `mapstructure:"PORT"`
	Env                      string        `mapstructure:"ENV"`
	DatabaseURL              string        `mapstructure:"DATABASE_URL"`
	DBMaxConns               int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns               int32         `mapstructure:"DB_MIN_CONNS"`
	RedisURL                 string        `mapstructure:"REDIS_URL"`
	SecretKey                string        `mapstructure:"SECRET_KEY"`
	TokenIssuer              string        `mapstructure:"TOKEN_ISSUER"`
	AccessTokenExpireMinutes int           `mapstructure:"ACCESS_TOKEN_EXPIRE_MINUTES"`
	CORSOrigins              []string      `mapstructure:"CORS_ORIGINS"`
	PhoneDefaultRegion       string        `mapstructure:"PHONE_DEFAULT_REGION"`
	DoctorCacheTTL           time.Duration `mapstructure:"DOCTOR_CACHE_TTL"`
	MigrationsDir            string        `mapstructure:"MIGRATIONS_DIR"`

	LogLevel          string `mapstructure:"LOG_LEVEL"`
	LogFile           string `mapstructure:"LOG_FILE"`
	LogFileMaxSizeMB  int    `mapstructure:"LOG_FILE_MAX_SIZE_MB"`
	LogFileMaxBackups int    `mapstructure:"LOG_FILE_MAX_BACKUPS"`
	LogFileMaxAgeDays int    `mapstructure:"LOG_FILE_MAX_AGE_DAYS"`

	AdminEmail    string `mapstructure:"ADMIN_EMAIL"`
	AdminUsername string `mapstructure:"ADMIN_USERNAME"`
	AdminPassword string `mapstructure:"ADMIN_PASSWORD"`
}

// devSecretKey signs tokens when ENV=development and no key is set.
const devSecretKey = "development-secret-key-change-me"

const minSecretKeyLength = 32

var keys = []string{
	"PORT", "ENV", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS", "REDIS_URL",
	"SECRET_KEY", "TOKEN_ISSUER", "ACCESS_TOKEN_EXPIRE_MINUTES", "CORS_ORIGINS",
	"PHONE_DEFAULT_REGION", "DOCTOR_CACHE_TTL", "MIGRATIONS_DIR",
	"LOG_LEVEL", "LOG_FILE", "LOG_FILE_MAX_SIZE_MB", "LOG_FILE_MAX_BACKUPS", "LOG_FILE_MAX_AGE_DAYS",
	"ADMIN_EMAIL", "ADMIN_USERNAME", "ADMIN_PASSWORD",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("TOKEN_ISSUER", "hms")
	v.SetDefault("ACCESS_TOKEN_EXPIRE_MINUTES", 30)
	v.SetDefault("CORS_ORIGINS", "http://localhost:5173,http://localhost:3000")
	v.SetDefault("PHONE_DEFAULT_REGION", "US")
	v.SetDefault("DOCTOR_CACHE_TTL", "5m")
	v.SetDefault("MIGRATIONS_DIR", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FILE_MAX_SIZE_MB", 100)
	v.SetDefault("LOG_FILE_MAX_BACKUPS", 5)
	v.SetDefault("LOG_FILE_MAX_AGE_DAYS", 28)
	v.SetDefault("ADMIN_EMAIL", "admin@hospital.com")
	v.SetDefault("ADMIN_USERNAME", "admin")

	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	// .env is optional
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.CORSOrigins = splitList(v.GetString("CORS_ORIGINS"))

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.SecretKey == "" && cfg.IsDev() {
		cfg.SecretKey = devSecretKey
	}

	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

func (c *Config) AccessTokenTTL() time.Duration {
	return time.Duration(c.AccessTokenExpireMinutes) * time.Minute
}

// Validate rejects configurations that are unsafe to serve with.
func (c *Config) Validate() error {
	if c.SecretKey == "" {
		return fmt.Errorf("SECRET_KEY is required outside development")
	}
	if !c.IsDev() && len(c.SecretKey) < minSecretKeyLength {
		return fmt.Errorf("SECRET_KEY must be at least %d characters, got %d", minSecretKeyLength, len(c.SecretKey))
	}
	if !c.IsDev() && c.SecretKey == devSecretKey {
		return fmt.Errorf("SECRET_KEY must not be the development default outside development")
	}
	if c.AccessTokenExpireMinutes <= 0 {
		return fmt.Errorf("ACCESS_TOKEN_EXPIRE_MINUTES must be positive, got %d", c.AccessTokenExpireMinutes)
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) exceeds DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	if c.DoctorCacheTTL < 0 {
		return fmt.Errorf("DOCTOR_CACHE_TTL must not be negative")
	}
	return nil
}
