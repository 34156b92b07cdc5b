package config

import (
	"errors"
	"log"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration values.
type Config struct {
	AppPort           string `mapstructure:"APP_PORT"`
	DatabaseURL       string `mapstructure:"DATABASE_URL"`
	DatabaseName      string `mapstructure:"DATABASE_NAME"`
	Env               string `mapstructure:"ENV"`
	JWTSecret         string `mapstructure:"JWT_SECRET"`
	AdminTokenHash    string `mapstructure:"ADMIN_TOKEN_HASH"`
	LogLevel          string `mapstructure:"LOG_LEVEL"`
	MaxRequestsPerMin int    `mapstructure:"MAX_REQUESTS_PER_MIN"`

	// Redis configuration.
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisCacheDB  int    `mapstructure:"REDIS_CACHE_DB"`
	RedisQueueDB  int    `mapstructure:"REDIS_QUEUE_DB"`

	// Gateway. GatewayKeySecret signs "orderId|paymentId" callbacks.
	GatewayKeyID        string `mapstructure:"GATEWAY_KEY_ID"`
	GatewayKeySecret    string `mapstructure:"GATEWAY_KEY_SECRET"`
	StripeSecretKey     string `mapstructure:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret string `mapstructure:"STRIPE_WEBHOOK_SECRET"`

	// Ledger.
	GatewayFeePercent  float64 `mapstructure:"GATEWAY_FEE_PERCENT"`
	PlatformFeePercent float64 `mapstructure:"PLATFORM_FEE_PERCENT"`
	GSTRatePercent     float64 `mapstructure:"GST_RATE_PERCENT"`
	DefaultCurrency    string  `mapstructure:"DEFAULT_CURRENCY"`

	// Invoice rendering and storage.
	InvoiceStore            string `mapstructure:"INVOICE_STORE"`
	InvoiceLocalDir         string `mapstructure:"INVOICE_LOCAL_DIR"`
	InvoiceBucket           string `mapstructure:"INVOICE_BUCKET"`
	FirebaseCredentialsPath string `mapstructure:"FIREBASE_CREDENTIALS_PATH"`
	CloudinaryURL           string `mapstructure:"CLOUDINARY_URL"`
	IssuerName              string `mapstructure:"ISSUER_NAME"`
	IssuerAddress           string `mapstructure:"ISSUER_ADDRESS"`
	IssuerContact           string `mapstructure:"ISSUER_CONTACT"`

	// Ledger events.
	KafkaBrokers     string `mapstructure:"KAFKA_BROKERS"`
	KafkaLedgerTopic string `mapstructure:"KAFKA_LEDGER_TOPIC"`

	// Reconciliation of stuck payments and unrendered invoices.
	ReconcileSchedule   string        `mapstructure:"RECONCILE_SCHEDULE"`
	ReconcileStaleAfter time.Duration `mapstructure:"RECONCILE_STALE_AFTER"`
	ReconcileBatchSize  int           `mapstructure:"RECONCILE_BATCH_SIZE"`
	ReconcileWorkers    int           `mapstructure:"RECONCILE_WORKERS"`

	CompletionCacheTTL time.Duration `mapstructure:"COMPLETION_CACHE_TTL"`
}

var AppConfig Config

func LoadConfig() {
	// Look for a config file named "config.yaml" in the current and "config" directory.
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		log.Println("No config file found, using environment variables only")
	}

	if err := viper.Unmarshal(&AppConfig); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
}

func setDefaults() {
	viper.SetDefault("APP_PORT", "8080")
	viper.SetDefault("ENV", "development")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("MAX_REQUESTS_PER_MIN", 200)
	viper.SetDefault("DATABASE_URL", "mongodb://localhost:27017")
	viper.SetDefault("DATABASE_NAME", "cms")
	viper.SetDefault("JWT_SECRET", "")
	viper.SetDefault("ADMIN_TOKEN_HASH", "")
	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("REDIS_PASSWORD", "")
	viper.SetDefault("REDIS_CACHE_DB", 0)
	viper.SetDefault("REDIS_QUEUE_DB", 3)

	viper.SetDefault("GATEWAY_KEY_ID", "")
	viper.SetDefault("GATEWAY_KEY_SECRET", "")
	viper.SetDefault("STRIPE_SECRET_KEY", "")
	viper.SetDefault("STRIPE_WEBHOOK_SECRET", "")

	viper.SetDefault("GATEWAY_FEE_PERCENT", 2.0)
	viper.SetDefault("PLATFORM_FEE_PERCENT", 0.0)
	viper.SetDefault("GST_RATE_PERCENT", 18.0)
	viper.SetDefault("DEFAULT_CURRENCY", "INR")

	viper.SetDefault("INVOICE_STORE", "local")
	viper.SetDefault("INVOICE_LOCAL_DIR", "uploads/invoices")
	viper.SetDefault("INVOICE_BUCKET", "")
	viper.SetDefault("FIREBASE_CREDENTIALS_PATH", "")
	viper.SetDefault("CLOUDINARY_URL", "")
	viper.SetDefault("ISSUER_NAME", "CMS - Courier Management System")
	viper.SetDefault("ISSUER_ADDRESS", "123 Business Street, City, State - 123456")
	viper.SetDefault("ISSUER_CONTACT", "Phone: +91 9876543210 | Email: billing@cms.com")

	viper.SetDefault("KAFKA_BROKERS", "")
	viper.SetDefault("KAFKA_LEDGER_TOPIC", "ledger.events")

	viper.SetDefault("RECONCILE_SCHEDULE", "@every 5m")
	viper.SetDefault("RECONCILE_STALE_AFTER", 15*time.Minute)
	viper.SetDefault("RECONCILE_BATCH_SIZE", 50)
	viper.SetDefault("RECONCILE_WORKERS", 5)

	viper.SetDefault("COMPLETION_CACHE_TTL", 24*time.Hour)
}

// Validate reports settings the ledger cannot run without.
func (c Config) Validate() error {
	if c.GatewayKeySecret == "" {
		return errors.New("GATEWAY_KEY_SECRET is required to verify payment callbacks")
	}
	if c.GatewayFeePercent < 0 || c.PlatformFeePercent < 0 {
		return errors.New("fee percentages must not be negative")
	}
	if c.GSTRatePercent < 0 {
		return errors.New("GST_RATE_PERCENT must not be negative")
	}
	return nil
}

func GetEnv() string {
	return AppConfig.Env
}

func IsProduction() bool {
	return GetEnv() == "production"
}
