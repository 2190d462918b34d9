package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database      DatabaseConfig
	Redis         RedisConfig
	JWT           JWTConfig
	CORS          CORSConfig
	Log           LogConfig
	Mail          MailConfig
	Notifications NotificationsConfig
	AdmitCards    AdmitCardsConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
	Issuer     string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// MailConfig configures the outbound email gateway.
type MailConfig struct {
	Provider     string
	SendgridKey  string
	FromName     string
	FromAddress  string
	AppName      string
	DashboardURL string
}

// NotificationsConfig tunes fan-out behaviour and read caching.
type NotificationsConfig struct {
	EmailWorkers    int
	EmailBufferSize int
	EmailRetries    int
	FanOutWorkers   int
	UnreadCacheTTL  time.Duration
}

// AdmitCardsConfig governs admit card generation defaults.
type AdmitCardsConfig struct {
	DefaultReportingTime string
	ExportEnabled        bool
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		Issuer:     v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Mail = MailConfig{
		Provider:     v.GetString("MAIL_PROVIDER"),
		SendgridKey:  v.GetString("SENDGRID_API_KEY"),
		FromName:     v.GetString("MAIL_FROM_NAME"),
		FromAddress:  v.GetString("MAIL_FROM_ADDRESS"),
		AppName:      v.GetString("APP_NAME"),
		DashboardURL: v.GetString("DASHBOARD_BASE_URL"),
	}

	cfg.Notifications = NotificationsConfig{
		EmailWorkers:    v.GetInt("NOTIFICATIONS_EMAIL_WORKERS"),
		EmailBufferSize: v.GetInt("NOTIFICATIONS_EMAIL_BUFFER"),
		EmailRetries:    v.GetInt("NOTIFICATIONS_EMAIL_RETRIES"),
		FanOutWorkers:   v.GetInt("NOTIFICATIONS_FANOUT_WORKERS"),
		UnreadCacheTTL:  parseDuration(v.GetString("NOTIFICATIONS_UNREAD_CACHE_TTL"), time.Minute),
	}

	cfg.AdmitCards = AdmitCardsConfig{
		DefaultReportingTime: v.GetString("ADMIT_CARD_DEFAULT_REPORTING_TIME"),
		ExportEnabled:        v.GetBool("ENABLE_ADMIT_CARD_EXPORT"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "school_erp")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("JWT_ISSUER", "school-erp-api")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("MAIL_PROVIDER", "console")
	v.SetDefault("SENDGRID_API_KEY", "")
	v.SetDefault("MAIL_FROM_NAME", "School ERP")
	v.SetDefault("MAIL_FROM_ADDRESS", "noreply@school-erp.local")
	v.SetDefault("APP_NAME", "School ERP")
	v.SetDefault("DASHBOARD_BASE_URL", "http://localhost:3000")

	v.SetDefault("NOTIFICATIONS_EMAIL_WORKERS", 4)
	v.SetDefault("NOTIFICATIONS_EMAIL_BUFFER", 64)
	v.SetDefault("NOTIFICATIONS_EMAIL_RETRIES", 2)
	v.SetDefault("NOTIFICATIONS_FANOUT_WORKERS", 8)
	v.SetDefault("NOTIFICATIONS_UNREAD_CACHE_TTL", "1m")

	v.SetDefault("ADMIT_CARD_DEFAULT_REPORTING_TIME", "08:00")
	v.SetDefault("ENABLE_ADMIT_CARD_EXPORT", true)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
