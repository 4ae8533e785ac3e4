package interfaces

import (
	"context"
	"time"

	"github.com/customeros/mailresponder/dto"
)

type ConnectionState string

const (
	ConnectionDisconnected ConnectionState = "disconnected"
	ConnectionConnecting   ConnectionState = "connecting"
	ConnectionConnected    ConnectionState = "connected"
)

// MailboxConnection owns a single inbound session. Callers must serialize access.
type MailboxConnection interface {
	Connect(ctx context.Context) error
	EnsureConnection(ctx context.Context) error
	// FetchLatest returns the most recent unseen message, or false when there is none
	// or the fetch failed.
	FetchLatest(ctx context.Context) (*dto.RawMessage, bool)
	Status() MailboxStatus
	Close()
}

type MailboxStatus struct {
	Mailbox     string          `json:"mailbox"`
	State       ConnectionState `json:"state"`
	LastError   string          `json:"lastError,omitempty"`
	LastChecked time.Time       `json:"lastChecked"`
	LastOutcome string          `json:"lastOutcome,omitempty"`
}
