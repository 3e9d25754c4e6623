package dispatch

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/teemow/mailwarm/internal/gmail"
	"github.com/teemow/mailwarm/internal/gmail/gmailtest"
	"github.com/teemow/mailwarm/internal/server"
)

// fakeSession hands out a client pointed at a gmailtest server.
type fakeSession struct {
	client *gmail.Client
	err    error
	calls  atomic.Int32
}

func (s *fakeSession) Client() (*gmail.Client, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	return s.client, nil
}

func (s *fakeSession) HealthCheck() map[string]server.HealthStatus {
	if s.err != nil {
		return map[string]server.HealthStatus{server.HealthComponentGmail: {Message: s.err.Error()}}
	}
	return map[string]server.HealthStatus{server.HealthComponentGmail: {OK: true, Message: "Gmail service initialized"}}
}

func newTestDispatcher(t *testing.T, opts Options) (*Dispatcher, *gmailtest.Server, *fakeSession) {
	t.Helper()
	srv := gmailtest.NewServer()
	t.Cleanup(srv.Close)

	client, err := gmail.NewClient(context.Background(), srv.Client(), gmail.Options{Endpoint: srv.Endpoint()})
	require.NoError(t, err)

	session := &fakeSession{client: client}
	return New(session, opts), srv, session
}

func addInbox(srv *gmailtest.Server, id, subject, snippet string, labels ...string) {
	srv.AddMessage(gmailtest.Message(id, "t-"+id, "alice@example.com", subject, snippet,
		gmailtest.TextPart("text/plain", "body of "+id)), labels...)
}
