package smtp

import (
	"bytes"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"strconv"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"

	"github.com/customeros/mailresponder/dto"
)

// client is the subset of *smtp.Client used per transmission.
type client interface {
	Auth(a sasl.Client) error
	SendMail(from string, to []string, r io.Reader) error
	Quit() error
	Close() error
}

type dialFunc func(addr string, tlsConfig *tls.Config) (client, error)

func dialTLS(addr string, tlsConfig *tls.Config) (client, error) {
	c, err := smtp.DialTLS(addr, tlsConfig)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Transport submits messages over implicit TLS with PLAIN authentication. It implements
// enmime.Sender and uses a new session for every message.
type Transport struct {
	host      string
	port      int
	username  string
	password  string
	tlsConfig *tls.Config
	dial      dialFunc
}

func NewTransport(creds dto.Credentials) *Transport {
	return &Transport{
		host:     creds.OutboundHost,
		port:     creds.OutboundPort,
		username: creds.Address,
		password: creds.Secret,
		tlsConfig: &tls.Config{
			ServerName: creds.OutboundHost,
			MinVersion: tls.VersionTLS12,
		},
		dial: dialTLS,
	}
}

func (t *Transport) Send(reversePath string, recipients []string, msg []byte) error {
	addr := net.JoinHostPort(t.host, strconv.Itoa(t.port))

	c, err := t.dial(addr, t.tlsConfig)
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server %s: %w", addr, err)
	}
	defer c.Close()

	if err = c.Auth(sasl.NewPlainClient("", t.username, t.password)); err != nil {
		return fmt.Errorf("SMTP authentication failed: %w", err)
	}

	if err = c.SendMail(reversePath, recipients, bytes.NewReader(msg)); err != nil {
		return fmt.Errorf("SMTP transmission failed: %w", err)
	}

	return c.Quit()
}
