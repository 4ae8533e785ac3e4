package imap

import (
	"testing"

	"github.com/jhillyerd/enmime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mailerrors "github.com/customeros/mailresponder/errors"
	"github.com/customeros/mailresponder/internal/logger"
)

func TestDecodeTextPart_ReplacesInvalidBytes(t *testing.T) {
	part := &enmime.Part{ContentType: "text/plain", Content: []byte("ok \xff done")}

	text, err := decodeTextPart(part)

	require.NoError(t, err)
	assert.Equal(t, "ok \uFFFD done", text)
}

func TestDecodeTextPart_SevereErrorWithoutContent(t *testing.T) {
	part := &enmime.Part{
		PartID:      "1",
		ContentType: "text/plain",
		Errors: []*enmime.Error{
			{Name: "Malformed Base64", Detail: "illegal data", Severe: true},
		},
	}

	_, err := decodeTextPart(part)

	assert.ErrorIs(t, err, mailerrors.ErrDecode)
}

func TestWalkParts_DocumentOrder(t *testing.T) {
	root := &enmime.Part{ContentType: "multipart/mixed"}
	alt := &enmime.Part{ContentType: "multipart/alternative"}
	plain := &enmime.Part{ContentType: "text/plain"}
	html := &enmime.Part{ContentType: "text/html"}
	file := &enmime.Part{ContentType: "application/pdf"}
	root.FirstChild = alt
	alt.FirstChild = plain
	plain.NextSibling = html
	alt.NextSibling = file

	var visited []*enmime.Part
	walkParts(root, func(p *enmime.Part) { visited = append(visited, p) })

	assert.Equal(t, []*enmime.Part{root, alt, plain, html, file}, visited)
}

func TestExtractParts_PlaceholderForUndecodablePart(t *testing.T) {
	root := &enmime.Part{ContentType: "multipart/mixed"}
	good := &enmime.Part{ContentType: "text/plain", Content: []byte("first ")}
	bad := &enmime.Part{
		PartID:      "2",
		ContentType: "text/plain",
		Errors:      []*enmime.Error{{Name: "Malformed Base64", Severe: true}},
	}
	last := &enmime.Part{ContentType: "text/plain", Content: []byte(" last")}
	root.FirstChild = good
	good.NextSibling = bad
	bad.NextSibling = last

	body, attachments := extractParts(root, logger.NewNopLogger())

	assert.Equal(t, "first [Error: Could not decode part of the message] last", body)
	assert.Empty(t, attachments)
}

func TestExtractParts_UntypedLeafIsPlainText(t *testing.T) {
	root := &enmime.Part{Content: []byte("no content type")}

	body, _ := extractParts(root, logger.NewNopLogger())

	assert.Equal(t, "no content type", body)
}

func TestExtractParts_InlineDispositionStaysInBody(t *testing.T) {
	root := &enmime.Part{ContentType: "multipart/mixed"}
	inline := &enmime.Part{ContentType: "text/plain", Disposition: "inline", Content: []byte("inline text")}
	attached := &enmime.Part{ContentType: "text/plain", Disposition: "Attachment", FileName: "a.txt", Content: []byte("file text")}
	root.FirstChild = inline
	inline.NextSibling = attached

	body, attachments := extractParts(root, logger.NewNopLogger())

	assert.Equal(t, "inline text", body)
	require.Len(t, attachments, 1)
	assert.Equal(t, "a.txt", attachments[0].FileName)
}

func TestDecomposeMessage_PlainMessage(t *testing.T) {
	raw := []byte(plainMessage("Alice <alice@example.com>", "greeting", "hello there"))

	msg, err := decomposeMessage(9, raw, logger.NewNopLogger())

	require.NoError(t, err)
	assert.Equal(t, uint32(9), msg.SeqNum)
	assert.Equal(t, "Alice <alice@example.com>", msg.From())
	assert.Equal(t, "greeting", msg.Headers.Get("subject"))
	assert.Contains(t, msg.Body, "hello there")
	assert.Empty(t, msg.Attachments)
}
