package config

import (
	"time"

	"github.com/customeros/mailresponder/dto"
)

type AppConfig struct {
	APIPort string `env:"PORT" envDefault:"12222"`
	PodName string `env:"POD_NAME" envDefault:"local"`
	// Namespace holds the leader election lease
	Namespace string `env:"POD_NAMESPACE" envDefault:"default"`
	LocalDev  bool   `env:"LOCAL_DEV" envDefault:"false"`
	// APIKey enables the /v1 endpoints
	APIKey string `env:"API_KEY"`
}

type MailConfig struct {
	ImapServer   string `env:"IMAP_SERVER" envDefault:"imap.gmail.com"`
	ImapPort     int    `env:"IMAP_PORT" envDefault:"993"`
	ImapMailbox  string `env:"IMAP_MAILBOX" envDefault:"INBOX"`
	SmtpServer   string `env:"SMTP_SERVER" envDefault:"smtp.gmail.com"`
	SmtpPort     int    `env:"SMTP_PORT" envDefault:"465"`
	EmailAddress string `env:"EMAIL_ADDRESS,notEmpty"`
	Password     string `env:"EMAIL_PASSWORD,notEmpty"`
}

func (c *MailConfig) Credentials() dto.Credentials {
	return dto.Credentials{
		InboundHost:  c.ImapServer,
		InboundPort:  c.ImapPort,
		OutboundHost: c.SmtpServer,
		OutboundPort: c.SmtpPort,
		Address:      c.EmailAddress,
		Secret:       c.Password,
	}
}

type RetryConfig struct {
	MaxAttempts int           `env:"MAIL_RETRY_MAX_ATTEMPTS" envDefault:"3"`
	Delay       time.Duration `env:"MAIL_RETRY_DELAY" envDefault:"5s"`
}

type PollerConfig struct {
	Interval     time.Duration `env:"POLL_INTERVAL" envDefault:"60s"`
	ResponseText string        `env:"RESPONSE_TEXT" envDefault:"some response text"`
	// SkipAutomated leaves bounces, auto-replies and bulk mail unanswered
	SkipAutomated bool `env:"SKIP_AUTOMATED_MAIL" envDefault:"false"`
}

// AIConfig is loaded for the response generators that will replace the static one.
type AIConfig struct {
	LangfuseSecretKey string `env:"LANGFUSE_SECRET_KEY"`
	LangfusePublicKey string `env:"LANGFUSE_PUBLIC_KEY"`
	LangfuseHost      string `env:"LANGFUSE_HOST" envDefault:"https://cloud.langfuse.com"`
	GeminiAPIKey      string `env:"GEMINI_API_KEY"`
	OpenAIAPIKey      string `env:"OPENAI_API_KEY"`
}
