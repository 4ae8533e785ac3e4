package imap

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/opentracing/opentracing-go"

	"github.com/customeros/mailresponder/dto"
	mailerrors "github.com/customeros/mailresponder/errors"
	"github.com/customeros/mailresponder/interfaces"
	"github.com/customeros/mailresponder/internal/logger"
	"github.com/customeros/mailresponder/internal/retry"
	"github.com/customeros/mailresponder/internal/tracing"
)

const DefaultMailbox = "INBOX"

// MailboxService holds at most one live inbound session. Connect, EnsureConnection and
// FetchLatest are not safe for concurrent use; Status may be called from any goroutine.
type MailboxService struct {
	creds   dto.Credentials
	mailbox string
	dial    Dialer
	retry   retry.Policy
	log     logger.Logger

	session Session

	statusMutex sync.RWMutex
	status      interfaces.MailboxStatus
}

type Option func(*MailboxService)

func WithDialer(dial Dialer) Option {
	return func(s *MailboxService) {
		s.dial = dial
	}
}

func WithRetryPolicy(policy retry.Policy) Option {
	return func(s *MailboxService) {
		s.retry = policy
	}
}

func WithMailbox(mailbox string) Option {
	return func(s *MailboxService) {
		if mailbox != "" {
			s.mailbox = mailbox
		}
	}
}

func NewMailboxService(creds dto.Credentials, log logger.Logger, opts ...Option) *MailboxService {
	s := &MailboxService{
		creds:   creds,
		mailbox: DefaultMailbox,
		dial:    TLSDialer,
		retry:   retry.DefaultPolicy(),
		log:     log,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.status = interfaces.MailboxStatus{
		Mailbox: s.mailbox,
		State:   interfaces.ConnectionDisconnected,
	}
	return s
}

// Connect replaces the current session with a freshly authenticated one.
func (s *MailboxService) Connect(ctx context.Context) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "MailboxService.Connect")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	span.SetTag("server", s.creds.InboundHost)

	s.setState(interfaces.ConnectionConnecting, nil)

	policy := s.retry
	policy.OnRetry = func(attempt int, err error) {
		s.log.Errorf("IMAP connection attempt %d failed: %v", attempt, err)
	}

	err := policy.Do(ctx, func(ctx context.Context, attempt int) error {
		s.teardown()

		session, err := s.dial(ctx, s.creds)
		if err != nil {
			return err
		}
		if err = session.Login(s.creds.Address, s.creds.Secret); err != nil {
			disconnectSession(session)
			return fmt.Errorf("failed to login as %s: %w", s.creds.Address, err)
		}

		s.session = session
		return nil
	})
	if err != nil {
		s.log.Errorf("IMAP connection failed after %d attempts: %v", policy.MaxAttempts, err)
		s.setState(interfaces.ConnectionDisconnected, err)
		err = fmt.Errorf("%w: %w", mailerrors.ErrConnection, err)
		tracing.TraceErr(span, err)
		return err
	}

	s.setState(interfaces.ConnectionConnected, nil)
	s.log.Infof("Successfully initialized IMAP connection to %s", s.creds.InboundHost)
	return nil
}

// EnsureConnection probes the session with NOOP and reconnects when the probe fails.
func (s *MailboxService) EnsureConnection(ctx context.Context) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "MailboxService.EnsureConnection")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	if s.session != nil {
		err := s.session.Noop()
		if err == nil {
			s.touch()
			return nil
		}
		s.log.Warnf("Connection check failed: %v. Attempting to reconnect...", err)
		span.LogKV("noop.error", err.Error())
	}

	err := s.Connect(ctx)
	tracing.TraceErr(span, err)
	return err
}

func (s *MailboxService) Status() interfaces.MailboxStatus {
	s.statusMutex.RLock()
	defer s.statusMutex.RUnlock()

	return s.status
}

// Close logs out of the current session, if any.
func (s *MailboxService) Close() {
	s.teardown()
	s.setState(interfaces.ConnectionDisconnected, nil)
}

func (s *MailboxService) teardown() {
	if s.session == nil {
		return
	}
	session := s.session
	s.session = nil
	disconnectSession(session)
}

func (s *MailboxService) setState(state interfaces.ConnectionState, err error) {
	s.statusMutex.Lock()
	defer s.statusMutex.Unlock()

	s.status.State = state
	s.status.LastChecked = time.Now()
	if err != nil {
		s.status.LastError = err.Error()
	} else if state == interfaces.ConnectionConnected {
		s.status.LastError = ""
	}
}

func (s *MailboxService) touch() {
	s.statusMutex.Lock()
	defer s.statusMutex.Unlock()

	s.status.LastChecked = time.Now()
}

func (s *MailboxService) recordOutcome(outcome fetchOutcome) {
	s.statusMutex.Lock()
	defer s.statusMutex.Unlock()

	s.status.LastOutcome = outcome.kind.String()
	if outcome.err != nil {
		s.status.LastError = outcome.err.Error()
	}
}
