package imap

import (
	"bytes"
	"strings"

	"github.com/jhillyerd/enmime"
	"github.com/pkg/errors"

	"github.com/customeros/mailresponder/dto"
	mailerrors "github.com/customeros/mailresponder/errors"
	"github.com/customeros/mailresponder/internal/logger"
)

const decodeErrorPlaceholder = "[Error: Could not decode part of the message]"

// decomposeMessage splits a raw message into headers, the concatenated text/plain body
// and its attachments. Undecodable text parts degrade to a placeholder.
func decomposeMessage(seqNum uint32, raw []byte, log logger.Logger) (*dto.RawMessage, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return nil, errors.Wrapf(mailerrors.ErrFetch, "message %d: parsing MIME structure: %v", seqNum, err)
	}

	headers := dto.Header{}
	for _, key := range env.GetHeaderKeys() {
		headers.Set(key, env.GetHeader(key))
	}

	body, attachments := extractParts(env.Root, log)

	return &dto.RawMessage{
		SeqNum:      seqNum,
		Headers:     headers,
		Body:        body,
		Attachments: attachments,
	}, nil
}

// extractParts concatenates the text/plain leaves of the tree and collects its attachments.
// Multipart containers and non-plain leaves are skipped.
func extractParts(root *enmime.Part, log logger.Logger) (string, []dto.Attachment) {
	attachments := []dto.Attachment{}

	var body strings.Builder
	walkParts(root, func(part *enmime.Part) {
		contentType := strings.ToLower(part.ContentType)
		if strings.HasPrefix(contentType, "multipart/") {
			return
		}

		if strings.Contains(strings.ToLower(part.Disposition), "attachment") {
			attachments = append(attachments, dto.Attachment{
				FileName:    part.FileName,
				ContentType: part.ContentType,
				Disposition: part.Disposition,
				Content:     part.Content,
			})
			return
		}

		// RFC 2045 defaults an untyped leaf to text/plain
		if contentType == "" && part.FirstChild == nil {
			contentType = "text/plain"
		}
		if contentType != "text/plain" {
			return
		}

		text, err := decodeTextPart(part)
		if err != nil {
			log.Errorf("Error decoding email body: %v", err)
			body.WriteString(decodeErrorPlaceholder)
			return
		}
		body.WriteString(text)
	})

	return body.String(), attachments
}

// walkParts visits root and its descendants depth first, in document order.
func walkParts(root *enmime.Part, visit func(*enmime.Part)) {
	if root == nil {
		return
	}
	visit(root)
	for child := root.FirstChild; child != nil; child = child.NextSibling {
		walkParts(child, visit)
	}
}

// decodeTextPart returns the UTF-8 content of a text part. enmime has already converted the
// declared charset; bytes that survived conversion as invalid UTF-8 become U+FFFD.
func decodeTextPart(part *enmime.Part) (string, error) {
	if len(part.Content) == 0 {
		for _, perr := range part.Errors {
			if perr != nil && perr.Severe {
				return "", errors.Wrapf(mailerrors.ErrDecode, "part %s (%s): %s", part.PartID, part.Charset, perr.Error())
			}
		}
		return "", nil
	}

	return strings.ToValidUTF8(string(part.Content), "\uFFFD"), nil
}
