package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix is passed to envconfig.Process; every field below carries its own explicit
// envconfig tag, so the prefix only has to satisfy envconfig's non-empty requirement.
const EnvPrefix = "receipt"

const (
	AppEnvDev  = "development"
	AppEnvProd = "production"
)

const (
	EnvDBDSN  = "RECEIPT_DB_DSN"
	EnvDBHost = "RECEIPT_DB_HOST"
	EnvDBUser = "RECEIPT_DB_USER"
	EnvDBName = "RECEIPT_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	FeatureFlags FeatureFlagsConfig
	GCP          GCPConfig
	GCS          GCSConfig
	Sendgrid     SendgridConfig
	Webhook      WebhookConfig
	Queue        QueueConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.App.Env == "" {
		return nil, fmt.Errorf("parsing config: required key RECEIPT_APP_ENV missing value")
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"RECEIPT_APP_ENV" required:"true"`
	Port         string `envconfig:"RECEIPT_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"RECEIPT_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"RECEIPT_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.HasPrefix(strings.ToLower(a.Env), "dev")
}

func (a AppConfig) IsProd() bool {
	return strings.HasPrefix(strings.ToLower(a.Env), "prod")
}

type ServiceConfig struct {
	Kind string `envconfig:"RECEIPT_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"RECEIPT_DB_DSN"`
	Driver string `envconfig:"RECEIPT_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"RECEIPT_DB_HOST"`
	LegacyPort     int    `envconfig:"RECEIPT_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"RECEIPT_DB_USER"`
	LegacyPassword string `envconfig:"RECEIPT_DB_PASSWORD"`
	LegacyName     string `envconfig:"RECEIPT_DB_NAME"`
	LegacySSLMode  string `envconfig:"RECEIPT_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"RECEIPT_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"RECEIPT_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"RECEIPT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"RECEIPT_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"RECEIPT_REDIS_URL" required:"true"`
	Address      string        `envconfig:"RECEIPT_REDIS_ADDR"`
	Password     string        `envconfig:"RECEIPT_REDIS_PASSWORD"`
	DB           int           `envconfig:"RECEIPT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"RECEIPT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"RECEIPT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"RECEIPT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"RECEIPT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"RECEIPT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"RECEIPT_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"RECEIPT_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"RECEIPT_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"RECEIPT_GOOGLE_APPLICATION_CREDENTIALS"`
}

type GCSConfig struct {
	BucketName        string        `envconfig:"RECEIPT_GCS_BUCKET_NAME" required:"true"`
	UploadURLExpiry   time.Duration `envconfig:"RECEIPT_GCS_UPLOAD_URL_EXPIRY" required:"true"`
	DownloadURLExpiry time.Duration `envconfig:"RECEIPT_GCS_DOWNLOAD_URL_EXPIRY" required:"true"`
}

type SendgridConfig struct {
	APIKey      string `envconfig:"RECEIPT_SENDGRID_API_KEY"`
	DefaultFrom string `envconfig:"RECEIPT_SENDGRID_FROM_EMAIL"`
}

// WebhookConfig carries per-provider signing secrets and the intake's mock bypass toggle.
// AllowMockProvider must stay false outside development (§4.1 item 1: "gated by config; off in
// production").
type WebhookConfig struct {
	StripeSecret      string `envconfig:"RECEIPT_WEBHOOK_STRIPE_SECRET"`
	GenericSecret     string `envconfig:"RECEIPT_WEBHOOK_GENERIC_SECRET"`
	AllowMockProvider bool   `envconfig:"RECEIPT_WEBHOOK_ALLOW_MOCK" default:"false"`
	MaxBodyBytes      int64  `envconfig:"RECEIPT_WEBHOOK_MAX_BODY_BYTES" default:"1048576"`
}

// Secret returns the signing secret configured for provider, or "" if unknown.
func (w WebhookConfig) Secret(provider string) string {
	switch strings.ToLower(provider) {
	case "stripe":
		return w.StripeSecret
	default:
		return w.GenericSecret
	}
}

// QueueConfig controls the worker pools and the recovery sweep cadence.
type QueueConfig struct {
	RecoverySweepInterval time.Duration `envconfig:"RECEIPT_QUEUE_RECOVERY_SWEEP_INTERVAL" default:"2m"`
	RecoveryBatchSize     int           `envconfig:"RECEIPT_QUEUE_RECOVERY_BATCH_SIZE" default:"50"`
	UploadsDir            string        `envconfig:"RECEIPT_UPLOADS_DIR" default:"uploads/receipts"`
	CleanupUploaded       bool          `envconfig:"RECEIPT_QUEUE_CLEANUP_UPLOADED" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
