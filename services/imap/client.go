package imap

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/opentracing/opentracing-go"

	"github.com/customeros/mailresponder/dto"
	"github.com/customeros/mailresponder/internal/tracing"
)

const logoutTimeout = 5 * time.Second

// Session is the subset of *client.Client used by the mailbox connection.
type Session interface {
	Login(username, password string) error
	Noop() error
	Select(name string, readOnly bool) (*imap.MailboxStatus, error)
	Search(criteria *imap.SearchCriteria) ([]uint32, error)
	Fetch(seqset *imap.SeqSet, items []imap.FetchItem, ch chan *imap.Message) error
	Store(seqset *imap.SeqSet, item imap.StoreItem, value interface{}, ch chan *imap.Message) error
	Close() error
	Logout() error
}

// Dialer opens an unauthenticated session to the inbound server.
type Dialer func(ctx context.Context, creds dto.Credentials) (Session, error)

// TLSDialer connects over implicit TLS.
func TLSDialer(ctx context.Context, creds dto.Credentials) (Session, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "IMAP.TLSDialer")
	defer span.Finish()
	tracing.SetDefaultTransportSpanTags(ctx, span)
	span.SetTag("server", creds.InboundHost)
	span.SetTag("port", creds.InboundPort)

	serverAddr := net.JoinHostPort(creds.InboundHost, fmt.Sprintf("%d", creds.InboundPort))

	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	tlsConfig := &tls.Config{
		ServerName: creds.InboundHost,
	}

	c, err := client.DialWithDialerTLS(dialer, serverAddr, tlsConfig)
	if err != nil {
		err = fmt.Errorf("failed to connect to %s: %w", serverAddr, err)
		tracing.TraceErr(span, err)
		return nil, err
	}

	return c, nil
}

// disconnectSession closes and logs out a session. Errors are ignored and a hung
// logout is abandoned after logoutTimeout.
func disconnectSession(session Session) {
	if session == nil {
		return
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = session.Close()
		_ = session.Logout()
	}()

	select {
	case <-done:
	case <-time.After(logoutTimeout):
	}
}
