package smtp

import (
	"crypto/tls"
	"errors"
	"io"
	"testing"

	"github.com/emersion/go-sasl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/customeros/mailresponder/dto"
)

type fakeClient struct {
	authErr error
	sendErr error

	authCalls  int
	from       string
	to         []string
	body       string
	quitCalls  int
	closeCalls int
}

func (f *fakeClient) Auth(a sasl.Client) error {
	f.authCalls++
	return f.authErr
}

func (f *fakeClient) SendMail(from string, to []string, r io.Reader) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f.from, f.to, f.body = from, to, string(data)
	return nil
}

func (f *fakeClient) Quit() error {
	f.quitCalls++
	return nil
}

func (f *fakeClient) Close() error {
	f.closeCalls++
	return nil
}

func newTestTransport(clients ...*fakeClient) (*Transport, *[]string) {
	var addrs []string
	tr := NewTransport(dto.Credentials{
		OutboundHost: "smtp.example.com",
		OutboundPort: 465,
		Address:      "bot@example.com",
		Secret:       "secret",
	})
	tr.dial = func(addr string, cfg *tls.Config) (client, error) {
		addrs = append(addrs, addr)
		if len(clients) == 0 {
			return nil, errors.New("connection refused")
		}
		c := clients[0]
		clients = clients[1:]
		return c, nil
	}
	return tr, &addrs
}

func TestTransport_SendsOverFreshSession(t *testing.T) {
	first, second := &fakeClient{}, &fakeClient{}
	tr, addrs := newTestTransport(first, second)

	require.NoError(t, tr.Send("bot@example.com", []string{"alice@example.com"}, []byte("one")))
	require.NoError(t, tr.Send("bot@example.com", []string{"bob@example.com"}, []byte("two")))

	assert.Equal(t, []string{"smtp.example.com:465", "smtp.example.com:465"}, *addrs)
	assert.Equal(t, "one", first.body)
	assert.Equal(t, []string{"alice@example.com"}, first.to)
	assert.Equal(t, "bot@example.com", first.from)
	assert.Equal(t, 1, first.quitCalls)
	assert.Equal(t, 1, first.closeCalls)
	assert.Equal(t, "two", second.body)
}

func TestTransport_AuthFailureClosesSession(t *testing.T) {
	c := &fakeClient{authErr: errors.New("535 authentication failed")}
	tr, _ := newTestTransport(c)

	err := tr.Send("bot@example.com", []string{"alice@example.com"}, []byte("x"))

	assert.ErrorContains(t, err, "SMTP authentication failed")
	assert.Empty(t, c.body)
	assert.Equal(t, 0, c.quitCalls)
	assert.Equal(t, 1, c.closeCalls)
}

func TestTransport_DialFailure(t *testing.T) {
	tr, _ := newTestTransport()

	err := tr.Send("bot@example.com", []string{"alice@example.com"}, []byte("x"))

	assert.ErrorContains(t, err, "connection refused")
}

func TestTransport_UsesServerNameForTLS(t *testing.T) {
	tr, _ := newTestTransport()

	assert.Equal(t, "smtp.example.com", tr.tlsConfig.ServerName)
}
