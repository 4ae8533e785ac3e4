package smtp

import (
	"context"
	"fmt"
	"time"

	"github.com/jhillyerd/enmime"
	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/customeros/mailresponder/dto"
	mailerrors "github.com/customeros/mailresponder/errors"
	"github.com/customeros/mailresponder/internal/logger"
	"github.com/customeros/mailresponder/internal/retry"
	"github.com/customeros/mailresponder/internal/tracing"
)

// ReplySender answers inbound messages. Each Send hands a fully encoded message to the
// underlying enmime.Sender, which is expected to open a fresh outbound session per call.
type ReplySender struct {
	from   string
	sender enmime.Sender
	retry  retry.Policy
	log    logger.Logger
	now    func() time.Time
}

type Option func(*ReplySender)

func WithRetryPolicy(policy retry.Policy) Option {
	return func(s *ReplySender) {
		s.retry = policy
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *ReplySender) {
		if now != nil {
			s.now = now
		}
	}
}

func NewReplySender(fromAddress string, sender enmime.Sender, log logger.Logger, opts ...Option) *ReplySender {
	s := &ReplySender{
		from:   fromAddress,
		sender: sender,
		retry:  retry.DefaultPolicy(),
		log:    log,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *ReplySender) Send(ctx context.Context, original *dto.RawMessage, responseText string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ReplySender.Send")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	reply, warnings, err := BuildReply(original, responseText, s.from)
	for _, warning := range warnings {
		s.log.Warnf("Error parsing address header: %v", warning)
	}
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}

	recipients := reply.Recipients()
	if len(recipients) == 0 {
		err = errors.Wrap(mailerrors.ErrNoRecipient, "empty recipient list")
		tracing.TraceErr(span, err)
		return err
	}
	span.SetTag("recipients", len(recipients))
	span.SetTag("message_id", reply.MessageID)

	msg, err := encodeReply(reply, s.now())
	if err != nil {
		err = fmt.Errorf("%w: %w", mailerrors.ErrSend, err)
		tracing.TraceErr(span, err)
		return err
	}

	policy := s.retry
	policy.OnRetry = func(attempt int, err error) {
		s.log.Errorf("Email send attempt %d failed: %v", attempt, err)
	}

	err = policy.Do(ctx, func(ctx context.Context, attempt int) error {
		span.LogKV("attempt", attempt)
		return s.sender.Send(s.from, recipients, msg)
	})
	if err != nil {
		s.log.Errorf("Failed to send email after %d attempts: %v", policy.MaxAttempts, err)
		err = fmt.Errorf("%w: %w", mailerrors.ErrSend, err)
		tracing.TraceErr(span, err)
		return err
	}

	s.log.Infof("Reply sent to %v", recipients)
	return nil
}
