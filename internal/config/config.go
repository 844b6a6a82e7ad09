package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

const (
	envPrefix              = "CLM"
	defaultHTTPAddress     = "0.0.0.0:8080"
	defaultDatabaseDriver  = "sqlite"
	defaultDatabasePath    = "clm-portal.db"
	defaultLogLevel        = "info"
	defaultCookieName      = "clm_session"
	defaultIssuer          = "clm-auth"
	defaultStorageType     = "local"
	defaultStoragePath     = "./uploads"
	defaultStorageURL      = "/files"
	defaultEmailDriver     = "log"
	defaultCurrency        = "ZAR"
	defaultCheckoutURL     = "https://pay.example.com/checkout"
	defaultBaseURL         = "http://localhost:3000"
	defaultDashboardPath   = "/dashboard"
	defaultOutboxBatchSize = 50
	defaultOutboxAttempts  = 5
	defaultOutboxInterval  = 5 * time.Second
	defaultMaxUploadBytes  = 10 * 1024 * 1024
)

// StorageConfig selects and configures the object store.
type StorageConfig struct {
	Type      string
	BasePath  string
	BaseURL   string
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

// EmailConfig configures outbound mail.
type EmailConfig struct {
	Driver    string
	SMTPHost  string
	SMTPPort  int
	Username  string
	Password  string
	FromEmail string
	FromName  string
}

// PaymentsConfig configures the hosted checkout and its signatures.
type PaymentsConfig struct {
	SigningSecret  string
	CallbackSecret string
	CheckoutURL    string
	Currency       string
}

// FeesConfig carries the application fees not stored on a course row.
type FeesConfig struct {
	BibleSchool decimal.Decimal
	Membership  decimal.Decimal
}

// OutboxConfig tunes the side-effect worker.
type OutboxConfig struct {
	BatchSize    int
	MaxAttempts  int
	PollInterval time.Duration
}

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress       string
	DatabaseDriver    string
	DatabasePath      string
	DatabaseDSN       string
	LogLevel          string
	AuthSigningSecret string
	AuthIssuer        string
	AuthCookieName    string
	BaseURL           string
	DashboardPath     string
	MaxUploadBytes    int64
	Storage           StorageConfig
	Email             EmailConfig
	Payments          PaymentsConfig
	Fees              FeesConfig
	Outbox            OutboxConfig
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("database.driver", defaultDatabaseDriver)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("auth.cookie_name", defaultCookieName)
	configViper.SetDefault("auth.issuer", defaultIssuer)
	configViper.SetDefault("app.base_url", defaultBaseURL)
	configViper.SetDefault("app.dashboard_path", defaultDashboardPath)
	configViper.SetDefault("upload.max_bytes", defaultMaxUploadBytes)
	configViper.SetDefault("storage.type", defaultStorageType)
	configViper.SetDefault("storage.base_path", defaultStoragePath)
	configViper.SetDefault("storage.base_url", defaultStorageURL)
	configViper.SetDefault("storage.region", "auto")
	configViper.SetDefault("email.driver", defaultEmailDriver)
	configViper.SetDefault("email.smtp_port", 587)
	configViper.SetDefault("email.from_name", "Christ Life Ministries")
	configViper.SetDefault("payments.checkout_url", defaultCheckoutURL)
	configViper.SetDefault("payments.currency", defaultCurrency)
	configViper.SetDefault("fees.bible_school", "350.00")
	configViper.SetDefault("fees.membership", "0")
	configViper.SetDefault("outbox.batch_size", defaultOutboxBatchSize)
	configViper.SetDefault("outbox.max_attempts", defaultOutboxAttempts)
	configViper.SetDefault("outbox.poll_interval", defaultOutboxInterval)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	bibleSchoolFee, err := decimal.NewFromString(configViper.GetString("fees.bible_school"))
	if err != nil {
		return AppConfig{}, fmt.Errorf("fees.bible_school: %w", err)
	}
	membershipFee, err := decimal.NewFromString(configViper.GetString("fees.membership"))
	if err != nil {
		return AppConfig{}, fmt.Errorf("fees.membership: %w", err)
	}

	cfg := AppConfig{
		HTTPAddress:       configViper.GetString("http.address"),
		DatabaseDriver:    strings.ToLower(configViper.GetString("database.driver")),
		DatabasePath:      configViper.GetString("database.path"),
		DatabaseDSN:       configViper.GetString("database.dsn"),
		LogLevel:          configViper.GetString("log.level"),
		AuthSigningSecret: configViper.GetString("auth.signing_secret"),
		AuthIssuer:        configViper.GetString("auth.issuer"),
		AuthCookieName:    configViper.GetString("auth.cookie_name"),
		BaseURL:           strings.TrimRight(configViper.GetString("app.base_url"), "/"),
		DashboardPath:     configViper.GetString("app.dashboard_path"),
		MaxUploadBytes:    configViper.GetInt64("upload.max_bytes"),
		Storage: StorageConfig{
			Type:      strings.ToLower(configViper.GetString("storage.type")),
			BasePath:  configViper.GetString("storage.base_path"),
			BaseURL:   configViper.GetString("storage.base_url"),
			Bucket:    configViper.GetString("storage.bucket"),
			Region:    configViper.GetString("storage.region"),
			Endpoint:  configViper.GetString("storage.endpoint"),
			AccessKey: configViper.GetString("storage.access_key"),
			SecretKey: configViper.GetString("storage.secret_key"),
		},
		Email: EmailConfig{
			Driver:    strings.ToLower(configViper.GetString("email.driver")),
			SMTPHost:  configViper.GetString("email.smtp_host"),
			SMTPPort:  configViper.GetInt("email.smtp_port"),
			Username:  configViper.GetString("email.username"),
			Password:  configViper.GetString("email.password"),
			FromEmail: configViper.GetString("email.from_email"),
			FromName:  configViper.GetString("email.from_name"),
		},
		Payments: PaymentsConfig{
			SigningSecret:  configViper.GetString("payments.signing_secret"),
			CallbackSecret: configViper.GetString("payments.callback_secret"),
			CheckoutURL:    configViper.GetString("payments.checkout_url"),
			Currency:       configViper.GetString("payments.currency"),
		},
		Fees: FeesConfig{
			BibleSchool: bibleSchoolFee,
			Membership:  membershipFee,
		},
		Outbox: OutboxConfig{
			BatchSize:    configViper.GetInt("outbox.batch_size"),
			MaxAttempts:  configViper.GetInt("outbox.max_attempts"),
			PollInterval: configViper.GetDuration("outbox.poll_interval"),
		},
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.AuthSigningSecret) == "" {
		return fmt.Errorf("auth.signing_secret is required")
	}
	if strings.TrimSpace(c.AuthCookieName) == "" {
		return fmt.Errorf("auth.cookie_name is required")
	}
	switch c.DatabaseDriver {
	case "sqlite":
		if strings.TrimSpace(c.DatabasePath) == "" {
			return fmt.Errorf("database.path is required")
		}
	case "postgres":
		if strings.TrimSpace(c.DatabaseDSN) == "" {
			return fmt.Errorf("database.dsn is required for postgres")
		}
	default:
		return fmt.Errorf("database.driver %q is not supported", c.DatabaseDriver)
	}
	if strings.TrimSpace(c.Payments.SigningSecret) == "" {
		return fmt.Errorf("payments.signing_secret is required")
	}
	if strings.TrimSpace(c.Payments.CallbackSecret) == "" {
		return fmt.Errorf("payments.callback_secret is required")
	}
	switch c.Storage.Type {
	case "local":
	case "s3":
		if strings.TrimSpace(c.Storage.Bucket) == "" {
			return fmt.Errorf("storage.bucket is required for s3")
		}
	default:
		return fmt.Errorf("storage.type %q is not supported", c.Storage.Type)
	}
	if c.Email.Driver == "smtp" && strings.TrimSpace(c.Email.SMTPHost) == "" {
		return fmt.Errorf("email.smtp_host is required for smtp")
	}
	if c.Fees.BibleSchool.IsNegative() || c.Fees.Membership.IsNegative() {
		return fmt.Errorf("fees must not be negative")
	}
	return nil
}
