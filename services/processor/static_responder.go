package processor

import (
	"context"
	"unicode/utf8"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/customeros/mailresponder/dto"
	"github.com/customeros/mailresponder/internal/logger"
	"github.com/customeros/mailresponder/internal/tracing"
)

const DefaultResponseText = "some response text"

// StaticResponder answers every message with the same text.
type StaticResponder struct {
	text string
	log  logger.Logger
}

func NewStaticResponder(text string, log logger.Logger) *StaticResponder {
	if text == "" {
		text = DefaultResponseText
	}
	return &StaticResponder{
		text: text,
		log:  log,
	}
}

func (r *StaticResponder) GenerateResponse(ctx context.Context, msg *dto.RawMessage) (string, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "StaticResponder.GenerateResponse")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	if msg == nil {
		err := errors.New("message is nil")
		tracing.TraceErr(span, err)
		return "", err
	}

	summary := Summarize(msg)
	tracing.LogObjectAsJson(span, "summary", summary)
	r.log.Infof("Extracted email data: from=%q subject=%q body=%d chars attachments=%d",
		summary.From, summary.Subject, summary.BodyLength, summary.Attachments)

	return r.text, nil
}

// Summary describes an inbound message without its content.
type Summary struct {
	From            string   `json:"from"`
	Subject         string   `json:"subject"`
	BodyLength      int      `json:"bodyLength"`
	Attachments     int      `json:"attachments"`
	AttachmentNames []string `json:"attachmentNames,omitempty"`
}

func Summarize(msg *dto.RawMessage) Summary {
	summary := Summary{
		From:        msg.From(),
		Subject:     msg.Subject(),
		BodyLength:  utf8.RuneCountInString(msg.Body),
		Attachments: len(msg.Attachments),
	}
	for _, a := range msg.Attachments {
		if a.FileName != "" {
			summary.AttachmentNames = append(summary.AttachmentNames, a.FileName)
		}
	}
	return summary
}
