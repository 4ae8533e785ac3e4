package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/customeros/mailresponder/api/middleware"
	"github.com/customeros/mailresponder/dto"
	"github.com/customeros/mailresponder/interfaces"
)

type stubMailbox struct {
	status interfaces.MailboxStatus
}

func (s *stubMailbox) Connect(context.Context) error          { return nil }
func (s *stubMailbox) EnsureConnection(context.Context) error { return nil }
func (s *stubMailbox) FetchLatest(context.Context) (*dto.RawMessage, bool) {
	return nil, false
}
func (s *stubMailbox) Status() interfaces.MailboxStatus { return s.status }
func (s *stubMailbox) Close()                           {}

type stubPoller struct {
	replied bool
	err     error
	calls   int
}

func (p *stubPoller) Run(context.Context) (bool, error) {
	p.calls++
	return p.replied, p.err
}

func newRouter(cfg RouteConfig) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterRoutes(context.Background(), r, cfg)
	return r
}

func serve(r *gin.Engine, method, path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	r := newRouter(RouteConfig{Mailbox: &stubMailbox{}})

	w := serve(r, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestStatus(t *testing.T) {
	checked := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	mailbox := &stubMailbox{status: interfaces.MailboxStatus{
		Mailbox:     "INBOX",
		State:       interfaces.ConnectionConnected,
		LastChecked: checked,
		LastOutcome: "empty",
	}}
	r := newRouter(RouteConfig{Mailbox: mailbox})

	w := serve(r, http.MethodGet, "/status", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var body interfaces.MailboxStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, mailbox.status.Mailbox, body.Mailbox)
	assert.Equal(t, mailbox.status.State, body.State)
	assert.Equal(t, mailbox.status.LastOutcome, body.LastOutcome)
	assert.True(t, checked.Equal(body.LastChecked))
}

func TestPoll_NotRegisteredWithoutAPIKey(t *testing.T) {
	r := newRouter(RouteConfig{Mailbox: &stubMailbox{}, Poller: &stubPoller{}})

	w := serve(r, http.MethodPost, "/v1/poll", nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPoll_RequiresAPIKey(t *testing.T) {
	poller := &stubPoller{}
	r := newRouter(RouteConfig{Mailbox: &stubMailbox{}, Poller: poller, APIKey: "secret"})

	missing := serve(r, http.MethodPost, "/v1/poll", nil)
	wrong := serve(r, http.MethodPost, "/v1/poll", map[string]string{middleware.DefaultAPIKeyHeader: "nope"})

	assert.Equal(t, http.StatusUnauthorized, missing.Code)
	assert.Equal(t, http.StatusUnauthorized, wrong.Code)
	assert.Equal(t, 0, poller.calls)
}

func TestPoll_RunsCycle(t *testing.T) {
	poller := &stubPoller{replied: true}
	r := newRouter(RouteConfig{Mailbox: &stubMailbox{}, Poller: poller, APIKey: "secret"})

	w := serve(r, http.MethodPost, "/v1/poll", map[string]string{middleware.DefaultAPIKeyHeader: "secret"})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"replied":true}`, w.Body.String())
	assert.Equal(t, 1, poller.calls)
}

func TestPoll_ReportsSendFailure(t *testing.T) {
	poller := &stubPoller{err: errors.New("reply could not be sent")}
	r := newRouter(RouteConfig{Mailbox: &stubMailbox{}, Poller: poller, APIKey: "secret"})

	w := serve(r, http.MethodPost, "/v1/poll", map[string]string{middleware.DefaultAPIKeyHeader: "secret"})

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), "reply could not be sent")
}
