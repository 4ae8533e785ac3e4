package imap

import (
	"context"
	"fmt"
	"io"

	"github.com/customeros/mailsherpa/mailvalidate"
	"github.com/emersion/go-imap"
	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/customeros/mailresponder/dto"
	mailerrors "github.com/customeros/mailresponder/errors"
	"github.com/customeros/mailresponder/internal/tracing"
	"github.com/customeros/mailresponder/internal/utils"
)

type outcomeKind int

const (
	outcomeEmpty outcomeKind = iota
	outcomeMessage
	outcomeTransientFailure
)

func (k outcomeKind) String() string {
	switch k {
	case outcomeMessage:
		return "message"
	case outcomeTransientFailure:
		return "transient_failure"
	default:
		return "empty"
	}
}

type fetchOutcome struct {
	kind    outcomeKind
	message *dto.RawMessage
	err     error
}

// FetchLatest returns the most recently arrived unseen message and marks it seen.
// Failures are logged, the session is rebuilt and the call reports no message.
func (s *MailboxService) FetchLatest(ctx context.Context) (*dto.RawMessage, bool) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "MailboxService.FetchLatest")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	outcome := s.fetchLatest(ctx)
	span.SetTag("outcome", outcome.kind.String())

	switch outcome.kind {
	case outcomeMessage:
		s.recordOutcome(outcome)
		return outcome.message, true
	case outcomeEmpty:
		s.recordOutcome(outcome)
		return nil, false
	}

	tracing.TraceErr(span, outcome.err)
	s.log.Errorf("Error fetching email: %v", outcome.err)

	s.teardown()
	if err := s.Connect(ctx); err != nil {
		s.log.Errorf("Reconnect after fetch failure did not succeed: %v", err)
	}
	// recorded after the reconnect so the fetch error stays visible in Status
	s.recordOutcome(outcome)
	return nil, false
}

func (s *MailboxService) fetchLatest(ctx context.Context) fetchOutcome {
	if err := s.EnsureConnection(ctx); err != nil {
		return fetchOutcome{kind: outcomeTransientFailure, err: err}
	}

	seqNums, err := s.searchUnseen(ctx)
	if err != nil {
		return fetchOutcome{kind: outcomeTransientFailure, err: err}
	}
	if len(seqNums) == 0 {
		s.log.Debug("No unread emails found")
		return fetchOutcome{kind: outcomeEmpty}
	}

	latest := seqNums[0]
	for _, seqNum := range seqNums[1:] {
		if seqNum > latest {
			latest = seqNum
		}
	}
	if len(seqNums) > 1 {
		s.log.Infof("%d unread emails found, processing the most recent one (seq %d)", len(seqNums), latest)
	}

	raw, err := s.fetchMessage(ctx, latest)
	if err != nil {
		return fetchOutcome{kind: outcomeTransientFailure, err: err}
	}

	s.markSeen(ctx, latest)

	msg, err := decomposeMessage(latest, raw, s.log)
	if err != nil {
		return fetchOutcome{kind: outcomeTransientFailure, err: err}
	}

	s.logSender(msg)
	s.log.Infof("Email processed with %d attachments", len(msg.Attachments))

	return fetchOutcome{kind: outcomeMessage, message: msg}
}

// searchUnseen selects the configured folder and lists the sequence numbers of unseen messages.
func (s *MailboxService) searchUnseen(ctx context.Context) ([]uint32, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "MailboxService.searchUnseen")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	span.SetTag("folder.name", s.mailbox)

	mbox, err := s.session.Select(s.mailbox, false)
	if err != nil {
		err = fmt.Errorf("[%s] error selecting folder: %w", s.mailbox, err)
		tracing.TraceErr(span, err)
		return nil, err
	}
	if mbox != nil {
		span.SetTag("messages.total", mbox.Messages)
		span.SetTag("messages.unseen", mbox.Unseen)
	}

	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}

	seqNums, err := s.session.Search(criteria)
	if err != nil {
		err = fmt.Errorf("[%s] error searching unseen messages: %w", s.mailbox, err)
		tracing.TraceErr(span, err)
		return nil, err
	}

	span.SetTag("messages.found", len(seqNums))
	return seqNums, nil
}

// fetchMessage downloads the full RFC 822 content of one message without setting \Seen.
func (s *MailboxService) fetchMessage(ctx context.Context, seqNum uint32) ([]byte, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "MailboxService.fetchMessage")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	span.SetTag("seq", seqNum)

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(seqNum)

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{section.FetchItem(), imap.FetchUid}

	messages := make(chan *imap.Message, 1)
	done := make(chan error, 1)
	go func() {
		done <- s.session.Fetch(seqSet, items, messages)
	}()

	var raw []byte
	var readErr error
	for msg := range messages {
		if msg == nil || raw != nil {
			continue
		}
		raw, readErr = extractFullMessage(msg)
	}

	if err := <-done; err != nil {
		err = errors.Wrapf(mailerrors.ErrFetch, "message %d: %v", seqNum, err)
		tracing.TraceErr(span, err)
		return nil, err
	}
	if readErr != nil {
		err := errors.Wrapf(mailerrors.ErrFetch, "message %d: reading body: %v", seqNum, readErr)
		tracing.TraceErr(span, err)
		return nil, err
	}
	if raw == nil {
		err := errors.Wrapf(mailerrors.ErrFetch, "message %d: no body returned", seqNum)
		tracing.TraceErr(span, err)
		return nil, err
	}

	span.SetTag("size", len(raw))
	return raw, nil
}

// extractFullMessage returns the BODY[] literal of a fetched message, or nil if absent.
func extractFullMessage(msg *imap.Message) ([]byte, error) {
	for section, literal := range msg.Body {
		if literal == nil {
			continue
		}
		if len(section.Path) == 0 && section.Specifier == imap.EntireSpecifier {
			return io.ReadAll(literal)
		}
	}
	return nil, nil
}

func (s *MailboxService) markSeen(ctx context.Context, seqNum uint32) {
	span, _ := opentracing.StartSpanFromContext(ctx, "MailboxService.markSeen")
	defer span.Finish()
	span.SetTag("seq", seqNum)

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(seqNum)

	item := imap.FormatFlagsOp(imap.AddFlags, true)
	flags := []interface{}{imap.SeenFlag}
	if err := s.session.Store(seqSet, item, flags, nil); err != nil {
		tracing.TraceErr(span, err)
		s.log.Warnf("Could not mark message %d as seen: %v", seqNum, err)
	}
}

func (s *MailboxService) logSender(msg *dto.RawMessage) {
	from, err := utils.ParseAddressList(msg.From())
	if err != nil {
		s.log.Warnf("Error parsing sender address %q: %v", msg.From(), err)
	}
	if len(from) == 0 {
		s.log.Warn("Could not determine sender address")
		return
	}

	validation := mailvalidate.ValidateEmailSyntax(from[0].Address)
	if !validation.IsValid {
		s.log.Warnf("Processing email from: %s (sender syntax looks invalid)", from[0].Address)
		return
	}
	s.log.Infof("Processing email from: %s (domain %s)", validation.CleanEmail, validation.Domain)
}
