package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	T212APIKey  string        `envconfig:"T212_API_KEY" required:"true"`
	T212BaseURL string        `envconfig:"T212_BASE_URL" default:"https://live.trading212.com"`
	T212Timeout time.Duration `envconfig:"T212_TIMEOUT" default:"1m"`

	CreateRetryInterval time.Duration `envconfig:"CREATE_RETRY_INTERVAL" default:"10s"`
	GenerationWait      time.Duration `envconfig:"GENERATION_WAIT" default:"10s"`
	PollInterval        time.Duration `envconfig:"POLL_INTERVAL" default:"10s"`
	CreateRateInterval  time.Duration `envconfig:"CREATE_RATE_INTERVAL" default:"30s"`
	ListRateInterval    time.Duration `envconfig:"LIST_RATE_INTERVAL" default:"1m"`
	MaxCreateAttempts   int           `envconfig:"MAX_CREATE_ATTEMPTS" default:"60"`
	MaxPollAttempts     int           `envconfig:"MAX_POLL_ATTEMPTS" default:"120"`
	MaxReportRequests   int           `envconfig:"MAX_REPORT_REQUESTS" default:"3"`
	AcquireTimeout      time.Duration `envconfig:"ACQUIRE_TIMEOUT" default:"2h"`

	ExtraTickerMap       map[string]string `envconfig:"EXTRA_TICKER_MAP"`
	ExtraTickerBlacklist []string          `envconfig:"EXTRA_TICKER_BLACKLIST"`

	BucketName        string        `envconfig:"BUCKET_NAME" required:"true"`
	RawPrefix         string        `envconfig:"RAW_PREFIX" default:"t212"`
	TransformedPrefix string        `envconfig:"TRANSFORMED_PREFIX" default:"digrin"`
	PresignTTL        time.Duration `envconfig:"PRESIGN_TTL" default:"5m"`
	AWSRegion         string        `envconfig:"AWS_REGION" default:"eu-central-1"`
	AWSProfile        string        `envconfig:"AWS_PROFILE"`

	Email          string `envconfig:"EMAIL"`
	EmailPassword  string `envconfig:"EMAIL_PASSWORD"`
	EmailRecipient string `envconfig:"EMAIL_RECIPIENT"`
	EmailSubject   string `envconfig:"EMAIL_SUBJECT" default:"T212 to Digrin"`
	SMTPHost       string `envconfig:"SMTP_HOST" default:"smtp.seznam.cz"`
	SMTPPort       int    `envconfig:"SMTP_PORT" default:"465"`
	SMTPStartTLS   bool   `envconfig:"SMTP_STARTTLS" default:"false"`
	SMTPTLS        bool   `envconfig:"SMTP_TLS" default:"true"`

	DatabaseURL         string        `envconfig:"DATABASE_URL"`
	DatabaseMaxConns    int32         `envconfig:"DATABASE_MAX_CONNS" default:"4"`
	DatabaseMinConns    int32         `envconfig:"DATABASE_MIN_CONNS" default:"1"`
	DatabaseMaxConnLife time.Duration `envconfig:"DATABASE_MAX_CONN_LIFE" default:"1h"`

	RedisURL string        `envconfig:"REDIS_URL"`
	CacheTTL time.Duration `envconfig:"CACHE_TTL" default:"24h"`

	APIHost         string        `envconfig:"API_HOST" default:"0.0.0.0"`
	APIPort         string        `envconfig:"API_PORT" default:"8000"`
	APIReadTimeout  time.Duration `envconfig:"API_READ_TIMEOUT" default:"10s"`
	APIWriteTimeout time.Duration `envconfig:"API_WRITE_TIMEOUT" default:"10s"`
	APIToken        string        `envconfig:"API_TOKEN"`

	MetricsEnabled bool `envconfig:"METRICS_ENABLED" default:"true"`

	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
}

// Recipient returns the notification address, falling back to the sender account.
func (c *Config) Recipient() string {
	if c.EmailRecipient != "" {
		return c.EmailRecipient
	}
	return c.Email
}

func Process() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func Load() *Config {
	cfg, err := Process()
	if err != nil {
		panic(err)
	}
	return cfg
}
