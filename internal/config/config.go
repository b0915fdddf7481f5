package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	Stripe    StripeConfig
	AntiAbuse AntiAbuseConfig
	Booking   BookingConfig
	Auth      AuthConfig
}

type ServerConfig struct {
	Port           string
	ReconcilerPort string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
}

type DatabaseConfig struct {
	Driver       string // "postgres", or "sqlite" for the no-Postgres demo mode
	Host         string
	Port         string
	Username     string
	Password     string
	Database     string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
}

type RedisConfig struct {
	Addr     string
	Enabled  bool
	CacheTTL time.Duration
}

type KafkaConfig struct {
	Brokers []string
	Enabled bool
	Topics  TopicConfig
}

type TopicConfig struct {
	BookingConfirmed string
	BookingConflict  string
	GiftCardIssued   string
	PopupSold        string
}

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	SuccessURL    string
	CancelURL     string
	Currency      string
}

type AntiAbuseConfig struct {
	VerifyURL string
	Secret    string
	// AllowUnverified decides what happens when no Secret is configured:
	// true passes every request through (logged), false rejects them all.
	AllowUnverified bool
	Timeout         time.Duration
}

type BookingConfig struct {
	DepositRate            float64
	ResourceCapacityPerDay int
	ServiceAreaPrefixes    []string
	AccessCodes            []string
	QRSecret               string
}

type AuthConfig struct {
	Issuer   string
	Audience string
	Enabled  bool
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           getEnv("PORT", ":8080"),
			ReconcilerPort: getEnv("RECONCILER_PORT", ":8081"),
			ReadTimeout:    15 * time.Second,
			WriteTimeout:   15 * time.Second,
			IdleTimeout:    60 * time.Second,
		},
		Database: DatabaseConfig{
			Driver:       getEnv("DB_DRIVER", "postgres"),
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnv("DB_PORT", "5432"),
			Username:     getEnv("DB_USERNAME", "booking_user"),
			Password:     getEnv("DB_PASSWORD", "booking_pass"),
			Database:     getEnv("DB_NAME", "booking"),
			SSLMode:      getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 25),
			MaxLifetime:  time.Duration(getEnvInt("DB_MAX_LIFETIME_MINUTES", 5)) * time.Minute,
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Enabled:  getEnvBool("REDIS_ENABLED", true),
			CacheTTL: time.Duration(getEnvInt("REDIS_CACHE_TTL_SECONDS", 300)) * time.Second,
		},
		Kafka: KafkaConfig{
			Brokers: []string{getEnv("KAFKA_BROKERS", "localhost:9092")},
			Enabled: getEnvBool("KAFKA_ENABLED", true),
			Topics: TopicConfig{
				BookingConfirmed: getEnv("KAFKA_TOPIC_BOOKING_CONFIRMED", "booking.confirmed"),
				BookingConflict:  getEnv("KAFKA_TOPIC_BOOKING_CONFLICT", "booking.conflict"),
				GiftCardIssued:   getEnv("KAFKA_TOPIC_GIFTCARD_ISSUED", "giftcard.issued"),
				PopupSold:        getEnv("KAFKA_TOPIC_POPUP_SOLD", "popup.sold"),
			},
		},
		Stripe: StripeConfig{
			SecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
			WebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
			SuccessURL:    getEnv("CHECKOUT_SUCCESS_URL", "http://localhost:3000/thanks"),
			CancelURL:     getEnv("CHECKOUT_CANCEL_URL", "http://localhost:3000/book"),
			Currency:      getEnv("CHECKOUT_CURRENCY", "usd"),
		},
		AntiAbuse: AntiAbuseConfig{
			VerifyURL:       getEnv("ANTIABUSE_VERIFY_URL", "https://www.google.com/recaptcha/api/siteverify"),
			Secret:          getEnv("ANTIABUSE_SECRET", ""),
			AllowUnverified: getEnvBool("ANTIABUSE_ALLOW_UNVERIFIED", false),
			Timeout:         time.Duration(getEnvInt("ANTIABUSE_TIMEOUT_SECONDS", 5)) * time.Second,
		},
		Booking: BookingConfig{
			DepositRate:            getEnvFloat("BOOKING_DEPOSIT_RATE", 0.30),
			ResourceCapacityPerDay: getEnvInt("BOOKING_CAPACITY_PER_DAY", 1),
			ServiceAreaPrefixes:    getEnvList("BOOKING_SERVICE_AREA_PREFIXES", ""),
			AccessCodes:            getEnvList("BOOKING_ACCESS_CODES", ""),
			QRSecret:               getEnv("GIFTCARD_QR_SECRET", "dev-giftcard-qr-secret-32bytes!!"),
		},
		Auth: AuthConfig{
			Issuer:   getEnv("OIDC_ISSUER", "http://localhost:8088/realms/booking"),
			Audience: getEnv("OIDC_AUDIENCE", "booking-admin"),
			Enabled:  getEnvBool("AUTH_ENABLED", true),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvList(key, defaultValue string) []string {
	raw := getEnv(key, defaultValue)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
