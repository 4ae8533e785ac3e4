package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("EMAIL_ADDRESS", "bot@example.com")
	t.Setenv("EMAIL_PASSWORD", "app-password")
}

func TestParse_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Parse()

	require.NoError(t, err)
	creds := cfg.MailConfig.Credentials()
	assert.Equal(t, "imap.gmail.com", creds.InboundHost)
	assert.Equal(t, 993, creds.InboundPort)
	assert.Equal(t, "smtp.gmail.com", creds.OutboundHost)
	assert.Equal(t, 465, creds.OutboundPort)
	assert.Equal(t, "bot@example.com", creds.Address)
	assert.Equal(t, "app-password", creds.Secret)
	assert.Equal(t, "INBOX", cfg.MailConfig.ImapMailbox)
	assert.Equal(t, 60*time.Second, cfg.PollerConfig.Interval)
	assert.Equal(t, "some response text", cfg.PollerConfig.ResponseText)
	assert.Equal(t, "12222", cfg.AppConfig.APIPort)

	policy := cfg.RetryPolicy()
	assert.Equal(t, 3, policy.MaxAttempts)
	assert.Equal(t, 5*time.Second, policy.Delay)
}

func TestParse_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("IMAP_SERVER", "imap.example.com")
	t.Setenv("SMTP_PORT", "2465")
	t.Setenv("POLL_INTERVAL", "15s")
	t.Setenv("MAIL_RETRY_MAX_ATTEMPTS", "5")
	t.Setenv("MAIL_RETRY_DELAY", "250ms")
	t.Setenv("GEMINI_API_KEY", "gm-key")

	cfg, err := Parse()

	require.NoError(t, err)
	assert.Equal(t, "imap.example.com", cfg.MailConfig.ImapServer)
	assert.Equal(t, 2465, cfg.MailConfig.SmtpPort)
	assert.Equal(t, 15*time.Second, cfg.PollerConfig.Interval)
	assert.Equal(t, "gm-key", cfg.AIConfig.GeminiAPIKey)

	policy := cfg.RetryPolicy()
	assert.Equal(t, 5, policy.MaxAttempts)
	assert.Equal(t, 250*time.Millisecond, policy.Delay)
}

func TestParse_MissingCredentials(t *testing.T) {
	t.Setenv("EMAIL_ADDRESS", "")
	t.Setenv("EMAIL_PASSWORD", "")

	_, err := Parse()

	assert.Error(t, err)
}

func TestParse_RejectsNonPositiveInterval(t *testing.T) {
	setRequired(t)
	t.Setenv("POLL_INTERVAL", "0s")

	_, err := Parse()

	assert.ErrorContains(t, err, "POLL_INTERVAL")
}
