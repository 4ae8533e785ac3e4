package services

import (
	"go.uber.org/zap"

	"github.com/customeros/mailresponder/config"
	"github.com/customeros/mailresponder/interfaces"
	"github.com/customeros/mailresponder/internal/logger"
	"github.com/customeros/mailresponder/services/email_filter"
	"github.com/customeros/mailresponder/services/imap"
	"github.com/customeros/mailresponder/services/processor"
	"github.com/customeros/mailresponder/services/responder"
	"github.com/customeros/mailresponder/services/smtp"
)

type Services struct {
	MailboxService    interfaces.MailboxConnection
	ReplySender       interfaces.ReplySender
	ResponseGenerator interfaces.ResponseGenerator
	Cycle             *responder.Cycle
}

func InitServices(cfg *config.Config, log logger.Logger) *Services {
	creds := cfg.MailConfig.Credentials()
	policy := cfg.RetryPolicy()

	mailbox := imap.NewMailboxService(creds, log.With(zap.String("component", "imap")),
		imap.WithRetryPolicy(policy),
		imap.WithMailbox(cfg.MailConfig.ImapMailbox),
	)
	sender := smtp.NewReplySender(creds.Address, smtp.NewTransport(creds), log.With(zap.String("component", "smtp")),
		smtp.WithRetryPolicy(policy),
	)
	generator := processor.NewStaticResponder(cfg.PollerConfig.ResponseText, log)

	return &Services{
		MailboxService:    mailbox,
		ReplySender:       sender,
		ResponseGenerator: generator,
		Cycle: responder.NewCycle(mailbox, generator, sender, log,
			responder.WithEmailFilter(email_filter.NewEmailFilterService(), cfg.PollerConfig.SkipAutomated),
		),
	}
}
