package dto

import "net/mail"

// AddressList keeps addresses in first-seen order. Duplicates are allowed.
type AddressList []mail.Address

func (l AddressList) Emails() []string {
	emails := make([]string, 0, len(l))
	for _, a := range l {
		emails = append(emails, a.Address)
	}
	return emails
}

type ReplyMessage struct {
	From       string
	MessageID  string
	To         AddressList
	Cc         AddressList
	Subject    string
	InReplyTo  string
	References string
	Text       string
	HTML       string
}

// Recipients is the transport envelope: To followed by Cc, not deduplicated.
func (r *ReplyMessage) Recipients() []string {
	return append(r.To.Emails(), r.Cc.Emails()...)
}
