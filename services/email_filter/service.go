package email_filter

import (
	"context"
	"strings"

	"github.com/customeros/mailsherpa/mailvalidate"
	"github.com/opentracing/opentracing-go"

	"github.com/customeros/mailresponder/dto"
	"github.com/customeros/mailresponder/interfaces"
	"github.com/customeros/mailresponder/internal/enum"
	"github.com/customeros/mailresponder/internal/tracing"
	"github.com/customeros/mailresponder/internal/utils"
)

type emailFilterService struct{}

func NewEmailFilterService() interfaces.EmailFilterService {
	return &emailFilterService{}
}

// ScanEmail classifies an inbound message from its headers. The reason names the header
// that decided it.
func (s *emailFilterService) ScanEmail(ctx context.Context, msg *dto.RawMessage) (enum.EmailClassification, string) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailFilterService.ScanEmail")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	if msg == nil || msg.Headers == nil {
		return enum.EmailOK, ""
	}

	classification, reason := s.classify(msg)
	span.SetTag("classification", classification.String())
	if reason != "" {
		span.LogKV("reason", reason)
	}
	return classification, reason
}

func (s *emailFilterService) classify(msg *dto.RawMessage) (enum.EmailClassification, string) {
	headers := msg.Headers
	from := senderAddress(msg.From())

	if isBounce, reason := s.isBounceNotification(headers, msg.Subject(), from); isBounce {
		return enum.EmailBounceNotification, reason
	}
	if isAuto, reason := s.isAutoresponder(headers); isAuto {
		return enum.EmailAutoResponder, reason
	}
	if isBulk, reason := s.isBulkEmail(headers, from); isBulk {
		return enum.EmailBulk, reason
	}
	return enum.EmailOK, ""
}

func senderAddress(raw string) string {
	list, _ := utils.ParseAddressList(raw)
	if len(list) == 0 {
		return strings.TrimSpace(raw)
	}
	return list[0].Address
}

func (s *emailFilterService) isAutoresponder(headers dto.Header) (bool, string) {
	autoSubmitted := strings.ToLower(strings.TrimSpace(headers.Get("Auto-Submitted")))
	switch {
	case autoSubmitted != "" && autoSubmitted != "no":
		return true, "AUTO-SUBMITTED: " + strings.ToUpper(autoSubmitted)
	case headers.Get("X-Autoreply") != "":
		return true, "X-AUTOREPLY header present"
	case headers.Get("X-Autorespond") != "":
		return true, "X-AUTORESPOND header present"
	case headers.Get("X-Autoresponse") != "":
		return true, "X-AUTORESPONSE header present"
	case headers.Get("X-Loop") != "":
		return true, "X-LOOP header present"
	case strings.EqualFold(headers.Get("Precedence"), "auto_reply"):
		return true, "PRECEDENCE: AUTO_REPLY header present"
	default:
		return false, ""
	}
}

func (s *emailFilterService) isBulkEmail(headers dto.Header, from string) (bool, string) {
	precedence := strings.ToLower(strings.TrimSpace(headers.Get("Precedence")))
	switch {
	case headers.Get("List-Unsubscribe") != "":
		return true, "UNSUBSCRIBE header present"
	case headers.Get("List-Id") != "":
		return true, "LIST-ID header present"
	case precedence == "bulk" || precedence == "list" || precedence == "junk":
		return true, "PRECEDENCE: " + strings.ToUpper(precedence) + " header present"
	default:
		return s.mailsherpaChecks(from)
	}
}

func (s *emailFilterService) mailsherpaChecks(from string) (bool, string) {
	if from == "" {
		return false, ""
	}
	syntaxValidation := mailvalidate.ValidateEmailSyntax(from)
	if syntaxValidation.IsSystemGenerated {
		return true, "FROM is system generated"
	}
	return false, ""
}

func (s *emailFilterService) isBounceNotification(headers dto.Header, subject, from string) (bool, string) {
	switch {
	case headers.Get("X-Failed-Recipients") != "":
		return true, "X-FAILED-RECIPIENTS header present"
	case strings.EqualFold(headers.Get("Content-Description"), "delivery report"):
		return true, "CONTENT-DESCRIPTION: DELIVERY REPORT header present"
	case s.hasBounceKeywords(headers.Get("Return-Path")):
		return true, "RETURN-PATH contains bounce keywords"
	case s.hasBounceKeywords(from):
		return true, "FROM contains bounce keywords"
	case s.isBounceSubject(subject):
		return true, "SUBJECT contains bounce keywords"
	default:
		return false, ""
	}
}

func (s *emailFilterService) hasBounceKeywords(str string) bool {
	str = strings.ToLower(str)
	return strings.Contains(str, "mailer-daemon") || strings.Contains(str, "postmaster@")
}

func (s *emailFilterService) isBounceSubject(subject string) bool {
	subject = strings.ToLower(subject)
	keywords := []string{
		"mail delivery failure",
		"undelivered mail returned to sender",
		"delivery status notification",
		"undeliverable",
		"undelivered",
		"delivery failure",
		"failure notice",
		"returned mail",
		"returned to sender",
	}
	for _, phrase := range keywords {
		if strings.Contains(subject, phrase) {
			return true
		}
	}
	return false
}
