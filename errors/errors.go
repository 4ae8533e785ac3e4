package errors

import "github.com/pkg/errors"

var (
	// inbound errors
	ErrConnection = errors.New("mailbox connection failed")
	ErrFetch      = errors.New("message fetch failed")
	ErrDecode     = errors.New("message part could not be decoded")

	// header errors
	ErrParse = errors.New("malformed address header")

	// outbound errors
	ErrNoRecipient = errors.New("reply has no recipient")
	ErrSend        = errors.New("reply could not be sent")
)
