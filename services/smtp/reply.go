package smtp

import (
	"bytes"
	"time"

	"github.com/jhillyerd/enmime"
	"github.com/pkg/errors"

	"github.com/customeros/mailresponder/dto"
	mailerrors "github.com/customeros/mailresponder/errors"
	"github.com/customeros/mailresponder/internal/utils"
)

const PlainTextFallback = "This is an HTML email. Please use an email client that supports HTML to view this message."

// BuildReply derives the reply to original. The response text becomes the HTML alternative
// and the plain part carries a fixed notice. Address headers that only partly parse are
// reported through the returned warnings; the reply itself is still built from the usable
// entries. ErrNoRecipient is returned when original has no sender to answer.
func BuildReply(original *dto.RawMessage, responseText, fromAddress string) (*dto.ReplyMessage, []error, error) {
	if original == nil {
		return nil, nil, errors.Wrap(mailerrors.ErrNoRecipient, "no original message")
	}

	var warnings []error

	to, err := utils.ParseAddressList(original.From())
	if err != nil {
		warnings = append(warnings, errors.Wrap(err, "from"))
	}
	if len(to) == 0 {
		return nil, warnings, errors.Wrapf(mailerrors.ErrNoRecipient, "message %d has no usable sender", original.SeqNum)
	}

	cc, err := utils.ParseAddressList(original.Cc())
	if err != nil {
		warnings = append(warnings, errors.Wrap(err, "cc"))
	}

	reply := &dto.ReplyMessage{
		From:      fromAddress,
		MessageID: utils.GenerateMessageID(utils.ExtractDomainFromEmail(fromAddress), original.MessageID()),
		To:        to,
		Cc:        cc,
		Subject:   utils.ReplySubject(original.Subject()),
		Text:      PlainTextFallback,
		HTML:      responseText,
	}
	if id := original.MessageID(); id != "" {
		reply.InReplyTo = id
		reply.References = id
	}

	return reply, warnings, nil
}

// encodeReply renders the reply as a multipart/alternative RFC 5322 message.
func encodeReply(reply *dto.ReplyMessage, date time.Time) ([]byte, error) {
	builder := enmime.Builder().
		From("", reply.From).
		ToAddrs(reply.To).
		Subject(reply.Subject).
		Date(date).
		Header("Message-ID", reply.MessageID).
		Text([]byte(reply.Text)).
		HTML([]byte(reply.HTML))
	if len(reply.Cc) > 0 {
		builder = builder.CCAddrs(reply.Cc)
	}
	if reply.InReplyTo != "" {
		builder = builder.Header("In-Reply-To", reply.InReplyTo)
	}
	if reply.References != "" {
		builder = builder.Header("References", reply.References)
	}

	root, err := builder.Build()
	if err != nil {
		return nil, errors.Wrap(err, "building reply")
	}

	var buf bytes.Buffer
	if err := root.Encode(&buf); err != nil {
		return nil, errors.Wrap(err, "encoding reply")
	}
	return buf.Bytes(), nil
}
