package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcess_Defaults(t *testing.T) {
	t.Setenv("T212_API_KEY", "key")
	t.Setenv("BUCKET_NAME", "reports")
	t.Setenv("EMAIL", "me@seznam.cz")
	for _, key := range []string{"EMAIL_RECIPIENT", "DATABASE_URL", "REDIS_URL", "T212_BASE_URL", "MAX_REPORT_REQUESTS", "API_TOKEN"} {
		unsetenv(t, key)
	}

	cfg, err := Process()
	require.NoError(t, err)

	assert.Equal(t, "https://live.trading212.com", cfg.T212BaseURL)
	assert.Equal(t, 10*time.Second, cfg.PollInterval)
	assert.Equal(t, 30*time.Second, cfg.CreateRateInterval)
	assert.Equal(t, time.Minute, cfg.ListRateInterval)
	assert.Equal(t, 5*time.Minute, cfg.PresignTTL)
	assert.Equal(t, 3, cfg.MaxReportRequests)
	assert.Equal(t, 2*time.Hour, cfg.AcquireTimeout)
	assert.Empty(t, cfg.APIToken)
	assert.Equal(t, "t212", cfg.RawPrefix)
	assert.Equal(t, "digrin", cfg.TransformedPrefix)
	assert.Equal(t, "smtp.seznam.cz", cfg.SMTPHost)
	assert.Equal(t, 465, cfg.SMTPPort)
	assert.True(t, cfg.SMTPTLS)
	assert.False(t, cfg.SMTPStartTLS)
	assert.Empty(t, cfg.DatabaseURL)
	assert.Empty(t, cfg.RedisURL)
	assert.Equal(t, "me@seznam.cz", cfg.Recipient())
}

func TestProcess_TickerOverrides(t *testing.T) {
	t.Setenv("T212_API_KEY", "key")
	t.Setenv("BUCKET_NAME", "reports")
	t.Setenv("EXTRA_TICKER_MAP", "IWDA:IWDA.AS,EUNL:EUNL.DE")
	t.Setenv("EXTRA_TICKER_BLACKLIST", "GME,AMC")
	t.Setenv("EMAIL_RECIPIENT", "other@example.com")

	cfg, err := Process()
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"IWDA": "IWDA.AS", "EUNL": "EUNL.DE"}, cfg.ExtraTickerMap)
	assert.Equal(t, []string{"GME", "AMC"}, cfg.ExtraTickerBlacklist)
	assert.Equal(t, "other@example.com", cfg.Recipient())
}

func TestProcess_MissingRequired(t *testing.T) {
	unsetenv(t, "T212_API_KEY")
	unsetenv(t, "BUCKET_NAME")

	_, err := Process()
	assert.Error(t, err)
}

func unsetenv(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	require.NoError(t, os.Unsetenv(key))
}
