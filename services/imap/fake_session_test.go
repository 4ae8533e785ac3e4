package imap

import (
	"bytes"
	"context"
	"errors"
	"sort"
	"time"

	"github.com/emersion/go-imap"

	"github.com/customeros/mailresponder/dto"
	"github.com/customeros/mailresponder/internal/logger"
	"github.com/customeros/mailresponder/internal/retry"
)

var errConnectionRefused = errors.New("connection refused")

// fakeServer keeps the mailbox state shared by every session dialled against it.
type fakeServer struct {
	messages     map[uint32]string
	seen         map[uint32]bool
	dialFailures int
	dials        int
	sessions     []*fakeSession
	onDial       func(n int, session *fakeSession)
}

func newFakeServer(messages map[uint32]string) *fakeServer {
	if messages == nil {
		messages = map[uint32]string{}
	}
	return &fakeServer{
		messages: messages,
		seen:     map[uint32]bool{},
	}
}

func (s *fakeServer) dial(_ context.Context, _ dto.Credentials) (Session, error) {
	s.dials++
	if s.dialFailures > 0 {
		s.dialFailures--
		return nil, errConnectionRefused
	}
	session := &fakeSession{server: s}
	if s.onDial != nil {
		s.onDial(len(s.sessions), session)
	}
	s.sessions = append(s.sessions, session)
	return session, nil
}

func (s *fakeServer) lastSession() *fakeSession {
	if len(s.sessions) == 0 {
		return nil
	}
	return s.sessions[len(s.sessions)-1]
}

type fakeSession struct {
	server *fakeServer

	loginErr  error
	noopErr   error
	selectErr error
	searchErr error
	fetchErr  error
	storeErr  error
	logoutErr error
	noBody    bool

	loginUser   string
	noopCalls   int
	fetchCalls  int
	closeCalls  int
	logoutCalls int
	stored      []uint32
}

func (f *fakeSession) Login(username, password string) error {
	f.loginUser = username
	return f.loginErr
}

func (f *fakeSession) Noop() error {
	f.noopCalls++
	return f.noopErr
}

func (f *fakeSession) Select(name string, readOnly bool) (*imap.MailboxStatus, error) {
	if f.selectErr != nil {
		return nil, f.selectErr
	}
	status := imap.NewMailboxStatus(name, nil)
	status.Messages = uint32(len(f.server.messages))
	return status, nil
}

func (f *fakeSession) Search(criteria *imap.SearchCriteria) ([]uint32, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	var unseen []uint32
	for seqNum := range f.server.messages {
		if !f.server.seen[seqNum] {
			unseen = append(unseen, seqNum)
		}
	}
	sort.Slice(unseen, func(i, j int) bool { return unseen[i] < unseen[j] })
	return unseen, nil
}

func (f *fakeSession) Fetch(seqset *imap.SeqSet, items []imap.FetchItem, ch chan *imap.Message) error {
	defer close(ch)
	f.fetchCalls++
	if f.fetchErr != nil {
		return f.fetchErr
	}
	for seqNum, raw := range f.server.messages {
		if !seqset.Contains(seqNum) {
			continue
		}
		msg := &imap.Message{SeqNum: seqNum, Uid: seqNum + 100}
		if !f.noBody {
			msg.Body = map[*imap.BodySectionName]imap.Literal{
				&imap.BodySectionName{}: bytes.NewBufferString(raw),
			}
		}
		ch <- msg
	}
	return nil
}

func (f *fakeSession) Store(seqset *imap.SeqSet, item imap.StoreItem, value interface{}, ch chan *imap.Message) error {
	if f.storeErr != nil {
		return f.storeErr
	}
	for seqNum := range f.server.messages {
		if seqset.Contains(seqNum) {
			f.stored = append(f.stored, seqNum)
			f.server.seen[seqNum] = true
		}
	}
	return nil
}

func (f *fakeSession) Close() error {
	f.closeCalls++
	return nil
}

func (f *fakeSession) Logout() error {
	f.logoutCalls++
	return f.logoutErr
}

type sleepRecorder struct {
	delays []time.Duration
}

func (r *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	r.delays = append(r.delays, d)
	return nil
}

func newTestService(server *fakeServer) (*MailboxService, *sleepRecorder) {
	recorder := &sleepRecorder{}
	policy := retry.DefaultPolicy()
	policy.Sleep = recorder.sleep

	creds := dto.Credentials{
		InboundHost: "imap.example.com",
		InboundPort: 993,
		Address:     "bot@example.com",
		Secret:      "secret",
	}
	svc := NewMailboxService(creds, logger.NewNopLogger(),
		WithDialer(server.dial),
		WithRetryPolicy(policy),
	)
	return svc, recorder
}

func plainMessage(from, subject, body string) string {
	return "From: " + from + "\r\n" +
		"To: bot@example.com\r\n" +
		"Subject: " + subject + "\r\n" +
		"Message-ID: <" + subject + "@example.com>\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"\r\n" +
		body + "\r\n"
}
