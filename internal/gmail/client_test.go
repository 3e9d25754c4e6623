package gmail

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gmailapi "google.golang.org/api/gmail/v1"

	"github.com/teemow/mailwarm/internal/gmail/gmailtest"
	"github.com/teemow/mailwarm/internal/instrumentation"
)

func newTestClient(t *testing.T, metrics *instrumentation.Metrics) (*Client, *gmailtest.Server) {
	t.Helper()
	srv := gmailtest.NewServer()
	t.Cleanup(srv.Close)

	c, err := NewClient(context.Background(), srv.Client(), Options{
		Endpoint: srv.Endpoint(),
		Metrics:  metrics,
	})
	require.NoError(t, err)
	return c, srv
}

func newMetricsProvider(t *testing.T) *instrumentation.Provider {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p, err := instrumentation.NewProvider(ctx, instrumentation.Config{
		ServiceName:     "gmail-test",
		Enabled:         true,
		MetricsExporter: instrumentation.ExporterPrometheus,
		TracingExporter: instrumentation.ExporterNone,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })
	return p
}

func scrapeMetrics(t *testing.T, h http.Handler) string {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)
	return string(body)
}

func addText(srv *gmailtest.Server, id, thread, from, subject, snippet string, labels ...string) {
	srv.AddMessage(gmailtest.Message(id, thread, from, subject, snippet,
		gmailtest.TextPart("text/plain", "body of "+id)), labels...)
}

func TestClient_Inbox(t *testing.T) {
	c, srv := newTestClient(t, nil)
	addText(srv, "m1", "t1", "alice@example.com", "First", strings.Repeat("x", 150), LabelInbox)
	addText(srv, "m2", "t2", "bob@example.com", "Second", "short", LabelInbox)
	addText(srv, "m3", "t3", "carol@example.com", "Archived", "gone")
	addText(srv, "m4", "t4", "dave@example.com", "Third", "third", LabelInbox)

	got, err := c.Inbox(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "m1", got[0].ID)
	assert.Equal(t, "t1", got[0].ThreadID)
	assert.Equal(t, "alice@example.com", got[0].From)
	assert.Equal(t, "First", got[0].Subject)
	assert.NotEmpty(t, got[0].Date)
	assert.Len(t, got[0].Snippet, SnippetLimit)
	assert.Equal(t, "m2", got[1].ID)
}

func TestClient_InboxPaginates(t *testing.T) {
	c, srv := newTestClient(t, nil)
	srv.SetPageSize(2)
	for _, id := range []string{"m1", "m2", "m3", "m4", "m5"} {
		addText(srv, id, "t-"+id, "a@example.com", "s", "snip", LabelInbox)
	}

	got, err := c.Inbox(context.Background(), 5)
	require.NoError(t, err)
	assert.Len(t, got, 5)
	assert.Equal(t, 3, srv.Calls(gmailtest.OpListMessages))

	got, err = c.Inbox(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, got, 5)
}

func TestClient_InboxEmpty(t *testing.T) {
	c, _ := newTestClient(t, nil)
	got, err := c.Inbox(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestClient_Unread(t *testing.T) {
	c, srv := newTestClient(t, nil)
	srv.SetLabel(&gmailapi.Label{Id: LabelUnread, Name: LabelUnread, MessagesUnread: 7})
	srv.SetResultSizeEstimate(201)
	for _, id := range []string{"u1", "u2", "u3", "u4", "u5"} {
		addText(srv, id, "t-"+id, "a@example.com", "Unread "+id, strings.Repeat("y", 200), LabelInbox, LabelUnread)
	}
	addText(srv, "r1", "t-r1", "a@example.com", "Read already", "seen", LabelInbox)

	got, err := c.Unread(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, int64(7), got.Count, "count comes from the label, not the listing estimate")
	require.Len(t, got.Messages, 5)
	for _, m := range got.Messages {
		assert.Len(t, m.Snippet, UnreadSnippetLimit)
		assert.True(t, strings.HasPrefix(m.Subject, "Unread "))
	}
}

func TestClient_Search(t *testing.T) {
	c, srv := newTestClient(t, nil)
	addText(srv, "m1", "t1", "alice@example.com", "Quarterly invoice", "pay me", LabelInbox)
	addText(srv, "m2", "t2", "bob@example.com", "Lunch", "tacos")

	got, err := c.Search(context.Background(), "invoice", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "m1", got[0].ID)

	got, err = c.Search(context.Background(), "nothing matches this", 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestClient_Read(t *testing.T) {
	c, srv := newTestClient(t, nil)
	srv.AddMessage(gmailtest.Message("m1", "t1", "alice@example.com", "Report", "see report",
		gmailtest.Multipart("multipart/mixed",
			gmailtest.Multipart("multipart/alternative",
				gmailtest.TextPart("text/plain", "plain body"),
				gmailtest.TextPart("text/html", "<p>html body</p>"),
			),
			gmailtest.AttachmentPart("application/pdf", "report.pdf", "att-1", 4096),
		)), LabelInbox)

	got, err := c.Read(context.Background(), "m1")
	require.NoError(t, err)
	assert.Equal(t, "t1", got.ThreadID)
	assert.Equal(t, "Report", got.Header("Subject"))
	require.NotNil(t, got.BodyText)
	require.NotNil(t, got.BodyHTML)
	assert.Equal(t, "plain body", *got.BodyText)
	assert.Equal(t, "<p>html body</p>", *got.BodyHTML)
	assert.Equal(t, []AttachmentRef{{ID: "att-1", Filename: "report.pdf", MimeType: "application/pdf", Size: 4096}}, got.Attachments)
}

func TestClient_Thread(t *testing.T) {
	c, srv := newTestClient(t, nil)
	addText(srv, "m1", "t1", "alice@example.com", "Plans", "first")
	addText(srv, "m2", "t2", "bob@example.com", "Other", "unrelated")
	addText(srv, "m3", "t1", "bob@example.com", "Re: Plans", "reply")

	got, err := c.Thread(context.Background(), "t1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "m1", got[0].ID)
	assert.Equal(t, "Re: Plans", got[1].Subject)
	assert.Equal(t, "bob@example.com", got[1].From)
}

func TestClient_Send(t *testing.T) {
	provider := newMetricsProvider(t)
	c, srv := newTestClient(t, provider.Metrics())

	sent, err := c.Send(context.Background(), OutgoingMessage{
		To:      "bob@example.com",
		Subject: "Hello",
		Body:    "Hi Bob",
		Attachments: []OutgoingAttachment{
			{Filename: "a.txt", Data: []byte("attachment")},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "sent-1", sent.ID)
	assert.Equal(t, "thread-sent-1", sent.ThreadID)
	assert.Equal(t, []AttachedFile{{Filename: "a.txt", Size: 10}}, sent.Attachments)

	raw := srv.Sent()
	require.Len(t, raw, 1)
	root, err := PartFromMIME(strings.NewReader(raw[0]))
	require.NoError(t, err)
	content := DecodeParts(root)
	assert.Equal(t, "Hello", content.Headers["Subject"])
	require.NotNil(t, content.BodyText)
	assert.Equal(t, "Hi Bob", *content.BodyText)

	body := scrapeMetrics(t, provider.MetricsHandler())
	assert.Contains(t, body, `direction="outbound"`)
	assert.Contains(t, body, `operation="messages.send"`)
}

func TestClient_SendValidatesBeforeCallingProvider(t *testing.T) {
	c, srv := newTestClient(t, nil)

	_, err := c.Send(context.Background(), OutgoingMessage{To: "bob@example.com", Body: "no subject"})
	assert.ErrorIs(t, err, ErrMissingField)
	assert.Zero(t, srv.Calls(gmailtest.OpSendMessage))
}

func TestClient_DownloadAttachment(t *testing.T) {
	provider := newMetricsProvider(t)
	c, srv := newTestClient(t, provider.Metrics())
	payload := []byte{0xde, 0xad, 0xbe, 0xef, '?', '>'}
	srv.AddAttachment("m1", "att-1", payload)

	got, err := c.DownloadAttachment(context.Background(), "m1", "att-1")
	require.NoError(t, err)
	assert.Equal(t, payload, got)
	assert.Contains(t, scrapeMetrics(t, provider.MetricsHandler()), `direction="inbound"`)

	_, err = c.DownloadAttachment(context.Background(), "m1", "missing")
	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.True(t, pe.NotFound())
}

func TestClient_ProviderErrors(t *testing.T) {
	tests := []struct {
		name       string
		op         string
		status     int
		reason     string
		call       func(*Client) error
		wantStatus int
		wantReason string
	}{
		{
			name:   "rate limited read",
			op:     gmailtest.OpGetMessage,
			status: http.StatusTooManyRequests,
			reason: "rateLimitExceeded",
			call: func(c *Client) error {
				_, err := c.Read(context.Background(), "m1")
				return err
			},
			wantStatus: http.StatusTooManyRequests,
			wantReason: "rateLimitExceeded",
		},
		{
			name:   "forbidden listing",
			op:     gmailtest.OpListMessages,
			status: http.StatusForbidden,
			reason: "insufficientPermissions",
			call: func(c *Client) error {
				_, err := c.Inbox(context.Background(), 5)
				return err
			},
			wantStatus: http.StatusForbidden,
			wantReason: "insufficientPermissions",
		},
		{
			name:   "unread label failure",
			op:     gmailtest.OpGetLabel,
			status: http.StatusInternalServerError,
			reason: "backendError",
			call: func(c *Client) error {
				_, err := c.Unread(context.Background(), 5)
				return err
			},
			wantStatus: http.StatusInternalServerError,
			wantReason: "backendError",
		},
		{
			name: "missing message",
			call: func(c *Client) error {
				_, err := c.Read(context.Background(), "nope")
				return err
			},
			wantStatus: http.StatusNotFound,
			wantReason: "notFound",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, srv := newTestClient(t, nil)
			addText(srv, "m1", "t1", "a@example.com", "s", "snip", LabelInbox)
			if tt.op != "" {
				srv.Fail(tt.op, tt.status, tt.reason)
			}

			err := tt.call(c)
			var pe *ProviderError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tt.wantStatus, pe.Status)
			assert.Equal(t, tt.wantReason, pe.Reason)
			assert.Contains(t, err.Error(), tt.wantReason)
		})
	}
}

func TestWrapProviderError_TransportFailure(t *testing.T) {
	err := wrapProviderError(instrumentation.OperationGetMessage, io.ErrUnexpectedEOF)
	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Zero(t, pe.Status)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.Nil(t, wrapProviderError("x", nil))
}
