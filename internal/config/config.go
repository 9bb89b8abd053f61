// Package config defines the process configuration for the daypass services.
// Configuration is loaded once at startup and is immutable thereafter.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File -> AWS SSM Parameter Store (Lowest)
//
// Any missing required value or invalid format fails startup.
package config

import (
	"time"

	"daypass/internal/types"
)

// SecretString is an alias for types.SecretString so config consumers do not
// need to import types for secret fields.
type SecretString = types.SecretString

// Config is the top-level configuration struct. Sub-components receive only
// the subsets they require.
type Config struct {
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"daypass"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	Server        ServerConfig
	Database      DatabaseConfig
	AWS           AWSConfig
	Scheduler     SchedulerConfig
	Wakeup        WakeupConfig
	Email         EmailConfig
	Activation    ActivationConfig
	Security      SecurityConfig
	Observability ObservabilityConfig

	// Build Metadata (Injected via ldflags, not Env)
	Build BuildInfo
}

// ServerConfig holds HTTP server and public URL configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8080"`
	// Public base URL of this API, used to build wake-up callback URLs (no trailing slash).
	APIExternalURL  string        `envconfig:"API_EXTERNAL_URL" validate:"required,url"`
	RequestTimeout  time.Duration `envconfig:"REQUEST_TIMEOUT" default:"29s"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
}

// DatabaseConfig holds database connection and pool tuning parameters.
type DatabaseConfig struct {
	URL SecretString `envconfig:"DATABASE_URL" validate:"required"`

	MaxConns          int           `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns          int           `envconfig:"DB_MIN_CONNS" default:"1"`
	MaxConnLifetime   time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	AcquireTimeout    time.Duration `envconfig:"DB_ACQUIRE_TIMEOUT" default:"2s"`
	HealthCheckPeriod time.Duration `envconfig:"DB_HEALTH_CHECK_PERIOD" default:"1m"`
	// Upper bound on any single repository call made by the pipeline.
	StatementTimeout time.Duration `envconfig:"DB_STATEMENT_TIMEOUT" default:"5s"`
}

// AWSConfig holds AWS resource identifiers and regional configuration.
type AWSConfig struct {
	Region string `envconfig:"AWS_REGION" default:"us-east-1"`
	// LocalStack Support (Empty in Prod)
	EndpointURL string `envconfig:"AWS_ENDPOINT_URL"`
}

// SchedulerConfig selects and configures the deferred job scheduler.
type SchedulerConfig struct {
	Backend        string        `envconfig:"SCHEDULER_BACKEND" default:"http" validate:"oneof=http sqs"`
	BaseURL        string        `envconfig:"SCHEDULER_BASE_URL" default:"https://qstash.upstash.io/v2" validate:"url"`
	Token          SecretString  `envconfig:"SCHEDULER_TOKEN"`
	RequestTimeout time.Duration `envconfig:"SCHEDULER_TIMEOUT" default:"5s"`
	MaxRetries     int           `envconfig:"SCHEDULER_MAX_RETRIES" default:"2"`
	// Queue used by the sqs backend (hop-chained delays).
	QueueURL string `envconfig:"SQS_WAKEUPS" validate:"omitempty,url"`
}

// WakeupConfig holds the secrets used to authenticate inbound wake-ups.
// When no key and no bearer secret is configured every wake-up is accepted.
type WakeupConfig struct {
	CurrentSigningKey SecretString  `envconfig:"WAKEUP_CURRENT_SIGNING_KEY"`
	NextSigningKey    SecretString  `envconfig:"WAKEUP_NEXT_SIGNING_KEY"`
	BearerSecret      SecretString  `envconfig:"WAKEUP_BEARER_SECRET"`
	Tolerance         time.Duration `envconfig:"WAKEUP_TIMESTAMP_TOLERANCE" default:"5m"`
}

// EmailConfig holds email delivery provider credentials and sender identity.
type EmailConfig struct {
	Provider        string        `envconfig:"EMAIL_PROVIDER" default:"ses" validate:"oneof=ses sendgrid stub"`
	SendGridAPIKey  SecretString  `envconfig:"SENDGRID_API_KEY"`
	SESConfigSet    string        `envconfig:"SES_CONFIGURATION_SET"`
	FromAddress     string        `envconfig:"EMAIL_FROM_ADDRESS" default:"passes@daypass.app" validate:"email"`
	FromName        string        `envconfig:"EMAIL_FROM_NAME" default:"DayPass"`
	OperatorAddress string        `envconfig:"OPERATOR_EMAIL" validate:"required,email"`
	SendTimeout     time.Duration `envconfig:"EMAIL_SEND_TIMEOUT" default:"10s"`
	Enabled         bool          `envconfig:"FEATURE_ENABLE_EMAIL" default:"true"`
}

// ActivationConfig tunes the activation pipeline.
type ActivationConfig struct {
	MaxRetries       int           `envconfig:"ACTIVATION_MAX_RETRIES" default:"2" validate:"min=0"`
	RenewalOffset    time.Duration `envconfig:"RENEWAL_OFFSET" default:"12h"`
	AccessTokenTTL   time.Duration `envconfig:"ACCESS_TOKEN_TTL" default:"720h"`
	PortalURL        string        `envconfig:"PORTAL_URL" validate:"required,url"`
	RenewalURL       string        `envconfig:"RENEWAL_URL" validate:"required,url"`
	SweepBatchSize   int           `envconfig:"SWEEP_BATCH_SIZE" default:"50"`
	SweepConcurrency int           `envconfig:"SWEEP_CONCURRENCY" default:"5"`
	SweepGrace       time.Duration `envconfig:"SWEEP_GRACE" default:"10m"`
}

// SecurityConfig holds the service API key for the pass request endpoint and
// CORS settings.
type SecurityConfig struct {
	ServiceAPIKey      SecretString `envconfig:"SERVICE_API_KEY" validate:"required"`
	CorsAllowedOrigins []string     `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
}

// ObservabilityConfig holds telemetry settings.
type ObservabilityConfig struct {
	MetricNamespace string `envconfig:"METRIC_NAMESPACE" default:"DayPass"`
	EnableMetrics   bool   `envconfig:"ENABLE_METRICS" default:"false"`
}

// BuildInfo holds build-time metadata injected via ldflags.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// ConfigErrorType categorizes configuration loading failures.
type ConfigErrorType string

const (
	ErrMissingEnv    ConfigErrorType = "MISSING_ENV"
	ErrSSMResolution ConfigErrorType = "SSM_FAILURE"
	ErrValidation    ConfigErrorType = "VALIDATION_FAILED"
	ErrParsing       ConfigErrorType = "PARSING_FAILED"
)
