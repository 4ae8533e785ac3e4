package dto

import (
	"net/textproto"
	"strings"
)

// Header holds the first value of every header of a fetched message, keyed canonically.
type Header map[string]string

func (h Header) Get(key string) string {
	if h == nil {
		return ""
	}
	return h[textproto.CanonicalMIMEHeaderKey(key)]
}

func (h Header) Set(key, value string) {
	h[textproto.CanonicalMIMEHeaderKey(key)] = value
}

type Attachment struct {
	FileName    string
	ContentType string
	Disposition string
	Content     []byte
}

// RawMessage is the decomposed form of a fetched message.
type RawMessage struct {
	SeqNum      uint32
	Headers     Header
	Body        string
	Attachments []Attachment
}

func (m *RawMessage) From() string {
	return m.Headers.Get("From")
}

func (m *RawMessage) Cc() string {
	return m.Headers.Get("Cc")
}

func (m *RawMessage) Subject() string {
	return m.Headers.Get("Subject")
}

func (m *RawMessage) MessageID() string {
	return strings.TrimSpace(m.Headers.Get("Message-ID"))
}
