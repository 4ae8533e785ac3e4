package responder

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/opentracing/opentracing-go"

	"github.com/customeros/mailresponder/interfaces"
	"github.com/customeros/mailresponder/internal/logger"
	"github.com/customeros/mailresponder/internal/tracing"
)

// Cycle runs one poll of the mailbox: fetch the latest unseen message, generate the
// response and send the reply. Concurrent calls to Run are serialised.
type Cycle struct {
	mailbox   interfaces.MailboxConnection
	generator interfaces.ResponseGenerator
	sender    interfaces.ReplySender
	log       logger.Logger

	filter        interfaces.EmailFilterService
	skipAutomated bool

	mutex sync.Mutex
}

type Option func(*Cycle)

// WithEmailFilter classifies every fetched message. With skipAutomated set, bounces,
// auto-replies and bulk mail are marked seen but not answered.
func WithEmailFilter(filter interfaces.EmailFilterService, skipAutomated bool) Option {
	return func(c *Cycle) {
		c.filter = filter
		c.skipAutomated = skipAutomated
	}
}

func NewCycle(mailbox interfaces.MailboxConnection, generator interfaces.ResponseGenerator,
	sender interfaces.ReplySender, log logger.Logger, opts ...Option,
) *Cycle {
	c := &Cycle{
		mailbox:   mailbox,
		generator: generator,
		sender:    sender,
		log:       log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run reports whether a reply was sent. Fetch problems never surface here; they show up as
// no message.
func (c *Cycle) Run(ctx context.Context) (replied bool, err error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	span, ctx := opentracing.StartSpanFromContext(ctx, "Cycle.Run")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	defer func() {
		if r := recover(); r != nil {
			stackTrace := string(debug.Stack())
			span.LogKV("event", "panic", "error.object", r, "stack", stackTrace)
			err = fmt.Errorf("panic during poll cycle: %v", r)
			tracing.TraceErr(span, err)
			c.log.Errorf("Recovered from panic: %v\nStack trace:\n%s", r, stackTrace)
			replied = false
		}
	}()

	msg, ok := c.mailbox.FetchLatest(ctx)
	if !ok {
		c.log.Debug("No new emails to process")
		return false, nil
	}
	span.SetTag("seq", msg.SeqNum)

	if c.filter != nil {
		classification, reason := c.filter.ScanEmail(ctx, msg)
		span.SetTag("classification", classification.String())
		if classification.Automated() {
			c.log.Infof("Message %d classified as %s: %s", msg.SeqNum, classification, reason)
			if c.skipAutomated {
				return false, nil
			}
		}
	}

	response, err := c.generator.GenerateResponse(ctx, msg)
	if err != nil {
		err = fmt.Errorf("generating response for message %d: %w", msg.SeqNum, err)
		tracing.TraceErr(span, err)
		return false, err
	}

	if err = c.sender.Send(ctx, msg, response); err != nil {
		tracing.TraceErr(span, err)
		return false, err
	}

	c.log.Infof("Replied to message %d", msg.SeqNum)
	return true, nil
}
