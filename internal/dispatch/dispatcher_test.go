package dispatch

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gmailapi "google.golang.org/api/gmail/v1"

	"github.com/teemow/mailwarm/internal/gmail"
	"github.com/teemow/mailwarm/internal/gmail/gmailtest"
	"github.com/teemow/mailwarm/internal/google"
	"github.com/teemow/mailwarm/internal/server"
)

func TestDispatch_UnknownMethod(t *testing.T) {
	d, _, session := newTestDispatcher(t, Options{})

	_, err := d.Dispatch(context.Background(), "gmail.bogus", map[string]any{})
	assert.ErrorIs(t, err, ErrUnknownMethod)
	assert.Equal(t, CodeUnknownMethod, ErrorCode(err))
	assert.Zero(t, session.calls.Load())
}

func TestDispatch_MissingParameter(t *testing.T) {
	tests := []struct {
		method string
		params map[string]any
		want   string
	}{
		{MethodSearch, map[string]any{}, "query"},
		{MethodSearch, map[string]any{"query": ""}, "query"},
		{MethodRead, nil, "message_id"},
		{MethodThread, map[string]any{}, "thread_id"},
		{MethodSend, map[string]any{"to": "bob@example.com"}, "subject"},
		{MethodSend, map[string]any{"to": "bob@example.com", "subject": "s"}, "body"},
		{MethodDownloadAttachment, map[string]any{"message_id": "m1"}, "attachment_id"},
	}

	for _, tt := range tests {
		t.Run(tt.method+"/"+tt.want, func(t *testing.T) {
			d, _, session := newTestDispatcher(t, Options{})

			_, err := d.Dispatch(context.Background(), tt.method, tt.params)
			var missing *MissingParameterError
			require.ErrorAs(t, err, &missing)
			assert.Equal(t, tt.want, missing.Name)
			assert.Equal(t, CodeMissingParameter, ErrorCode(err))
			assert.Zero(t, session.calls.Load(), "parameters are validated before the session is used")
		})
	}
}

func TestDispatch_InvalidParameter(t *testing.T) {
	tests := []struct {
		name   string
		method string
		params map[string]any
		want   string
	}{
		{"limit as string", MethodInbox, map[string]any{"limit": "ten"}, "limit"},
		{"limit zero", MethodInbox, map[string]any{"limit": float64(0)}, "limit"},
		{"limit negative", MethodUnread, map[string]any{"limit": -3}, "limit"},
		{"limit fractional", MethodSearch, map[string]any{"query": "x", "limit": 2.5}, "limit"},
		{"query not a string", MethodSearch, map[string]any{"query": 42.0}, "query"},
		{"attachments not a list", MethodSend, map[string]any{"to": "a@example.com", "subject": "s", "body": "b", "attachments": "x"}, "attachments"},
		{"attachment item not an object", MethodSend, map[string]any{"to": "a@example.com", "subject": "s", "body": "b", "attachments": []any{"x"}}, "attachments"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, _, _ := newTestDispatcher(t, Options{})
			_, err := d.Dispatch(context.Background(), tt.method, tt.params)
			var invalid *InvalidParameterError
			require.ErrorAs(t, err, &invalid)
			assert.Equal(t, tt.want, invalid.Name)
			assert.Equal(t, CodeInvalidParameter, ErrorCode(err))
		})
	}
}

func TestDispatch_Inbox(t *testing.T) {
	d, srv, _ := newTestDispatcher(t, Options{})
	for _, id := range []string{"m1", "m2", "m3"} {
		addInbox(srv, id, "Subject "+id, strings.Repeat("s", 200), gmail.LabelInbox)
	}

	result, err := d.Dispatch(context.Background(), MethodInbox, map[string]any{"limit": float64(2)})
	require.NoError(t, err)
	assert.Equal(t, 2, result["count"])

	emails, ok := result["emails"].([]gmail.MessageSummary)
	require.True(t, ok)
	require.Len(t, emails, 2)
	assert.Equal(t, "m1", emails[0].ID)
	assert.Len(t, emails[0].Snippet, gmail.SnippetLimit)

	result, err = d.Dispatch(context.Background(), MethodInbox, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, result["count"], "limit defaults to %d", DefaultLimit)
}

func TestDispatch_UnreadCountFromLabel(t *testing.T) {
	d, srv, _ := newTestDispatcher(t, Options{})
	srv.SetLabel(&gmailapi.Label{Id: gmail.LabelUnread, MessagesUnread: 7})
	srv.SetResultSizeEstimate(5)
	for _, id := range []string{"u1", "u2", "u3", "u4", "u5"} {
		addInbox(srv, id, "Unread "+id, strings.Repeat("z", 200), gmail.LabelInbox, gmail.LabelUnread)
	}

	result, err := d.Dispatch(context.Background(), MethodUnread, map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, int64(7), result["unread_count"])

	entries, ok := result["messages"].([]unreadEntry)
	require.True(t, ok)
	require.Len(t, entries, 5)
	assert.Len(t, entries[0].Snippet, gmail.UnreadSnippetLimit)
	assert.Equal(t, "alice@example.com", entries[0].From)
}

func TestDispatch_Search(t *testing.T) {
	d, srv, _ := newTestDispatcher(t, Options{})
	addInbox(srv, "m1", "Invoice 42", "pay", gmail.LabelInbox)
	addInbox(srv, "m2", "Lunch", "tacos", gmail.LabelInbox)

	result, err := d.Dispatch(context.Background(), MethodSearch, map[string]any{"query": "invoice"})
	require.NoError(t, err)
	assert.Equal(t, "invoice", result["query"])
	assert.Equal(t, 1, result["count"])
}

func TestDispatch_Read(t *testing.T) {
	d, srv, _ := newTestDispatcher(t, Options{})
	srv.AddMessage(gmailtest.Message("m1", "t1", "alice@example.com", "Report", "see attached",
		gmailtest.Multipart("multipart/mixed",
			gmailtest.TextPart("text/plain", "plain"),
			gmailtest.AttachmentPart("application/pdf", "report.pdf", "att-1", 100),
		)), gmail.LabelInbox)
	addInbox(srv, "m2", "No attachments", "hi", gmail.LabelInbox)

	result, err := d.Dispatch(context.Background(), MethodRead, map[string]any{"message_id": "m1"})
	require.NoError(t, err)
	assert.Equal(t, "t1", result["thread_id"])
	assert.Equal(t, "alice@example.com", result["from"])
	assert.Equal(t, "me@example.com", result["to"])
	assert.Nil(t, result["cc"])
	assert.Equal(t, "Report", result["subject"])
	assert.Equal(t, true, result["has_attachments"])
	assert.Equal(t, []gmail.AttachmentRef{{ID: "att-1", Filename: "report.pdf", MimeType: "application/pdf", Size: 100}}, result["attachments"])

	text, ok := result["body_text"].(*string)
	require.True(t, ok)
	assert.Equal(t, "plain", *text)
	assert.Nil(t, result["body_html"].(*string))

	result, err = d.Dispatch(context.Background(), MethodRead, map[string]any{"message_id": "m2"})
	require.NoError(t, err)
	assert.Equal(t, false, result["has_attachments"])
	assert.Nil(t, result["attachments"].([]gmail.AttachmentRef))

	data, err := json.Marshal(result)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"attachments":null`)
	assert.Contains(t, string(data), `"cc":null`)
}

func TestDispatch_Thread(t *testing.T) {
	d, srv, _ := newTestDispatcher(t, Options{})
	srv.AddMessage(gmailtest.Message("m1", "t1", "alice@example.com", "Plans", "first", gmailtest.TextPart("text/plain", "a")))
	srv.AddMessage(gmailtest.Message("m2", "t1", "bob@example.com", "Re: Plans", "second", gmailtest.TextPart("text/plain", "b")))

	result, err := d.Dispatch(context.Background(), MethodThread, map[string]any{"thread_id": "t1"})
	require.NoError(t, err)
	assert.Equal(t, "t1", result["thread_id"])
	assert.Equal(t, 2, result["count"])
}

func TestDispatch_Send(t *testing.T) {
	d, srv, _ := newTestDispatcher(t, Options{})
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("from disk"), 0o600))

	result, err := d.Dispatch(context.Background(), MethodSend, map[string]any{
		"to":      "bob@example.com",
		"subject": "Files",
		"body":    "two files",
		"cc":      "carol@example.com",
		"attachments": []any{
			map[string]any{"path": path},
			map[string]any{"name": "inline.bin", "data": base64.StdEncoding.EncodeToString([]byte{1, 2, 3})},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, true, result["sent"])
	assert.Equal(t, "sent-1", result["message_id"])
	assert.Equal(t, "thread-sent-1", result["thread_id"])
	assert.Equal(t, []gmail.AttachedFile{
		{Filename: "notes.txt", Size: 9},
		{Filename: "inline.bin", Size: 3},
	}, result["attachments"])

	require.Len(t, srv.Sent(), 1)
	assert.Contains(t, srv.Sent()[0], "carol@example.com")

	result, err = d.Dispatch(context.Background(), MethodSend, map[string]any{"to": "bob@example.com", "subject": "s", "body": "b"})
	require.NoError(t, err)
	assert.Nil(t, result["attachments"].([]gmail.AttachedFile))
}

func TestDispatch_SendRejectsHeaderLineBreaks(t *testing.T) {
	tests := []struct {
		name      string
		params    map[string]any
		wantParam string
	}{
		{"to", map[string]any{"to": "bob@example.com\r\nBcc: eve@evil.example", "subject": "s", "body": "b"}, "to"},
		{"cc", map[string]any{"to": "bob@example.com", "cc": "carol@example.com\n", "subject": "s", "body": "b"}, "cc"},
		{"subject", map[string]any{"to": "bob@example.com", "subject": "s\r\nX-Injected: 1", "body": "b"}, "subject"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, srv, _ := newTestDispatcher(t, Options{})
			resp := d.Call(context.Background(), MethodSend, tt.params)
			assert.False(t, resp.OK)
			require.NotNil(t, resp.Error)
			assert.Equal(t, CodeInvalidParameter, resp.Error.Code)
			assert.Equal(t, tt.wantParam, resp.Error.Param)
			assert.Empty(t, srv.Sent())
		})
	}
}

func TestDispatch_SendEmptyInlineAttachment(t *testing.T) {
	d, srv, _ := newTestDispatcher(t, Options{})
	result, err := d.Dispatch(context.Background(), MethodSend, map[string]any{
		"to":          "bob@example.com",
		"subject":     "empty",
		"body":        "b",
		"attachments": []any{map[string]any{"filename": "empty.txt", "data": ""}},
	})
	require.NoError(t, err)
	assert.Equal(t, []gmail.AttachedFile{{Filename: "empty.txt", Size: 0}}, result["attachments"])
	assert.Len(t, srv.Sent(), 1)
}

func TestDispatch_SendAttachmentErrors(t *testing.T) {
	base := func(attachments ...any) map[string]any {
		return map[string]any{"to": "bob@example.com", "subject": "s", "body": "b", "attachments": attachments}
	}
	tests := []struct {
		name     string
		params   map[string]any
		wantCode string
	}{
		{"neither path nor data", base(map[string]any{"filename": "x.txt"}), CodeInvalidAttachment},
		{"bad base64", base(map[string]any{"filename": "x.txt", "data": "%%%"}), CodeInvalidAttachment},
		{"missing file", base(map[string]any{"path": "/nonexistent/mailwarm/file.txt"}), CodeAttachmentNotFound},
		{"inline without filename", base(map[string]any{"data": "AQID"}), CodeMissingFilename},
		{"null data", base(map[string]any{"filename": "x.txt", "data": nil}), CodeInvalidAttachment},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, srv, _ := newTestDispatcher(t, Options{})
			resp := d.Call(context.Background(), MethodSend, tt.params)
			assert.False(t, resp.OK)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
			assert.Empty(t, srv.Sent())
		})
	}
}

func TestDispatch_DownloadAttachment(t *testing.T) {
	d, srv, _ := newTestDispatcher(t, Options{})
	payload := []byte{0x00, 0xff, 0x10, '?', '>', 0x7f}
	srv.AddAttachment("m1", "att-1", payload)

	t.Run("inline", func(t *testing.T) {
		result, err := d.Dispatch(context.Background(), MethodDownloadAttachment, map[string]any{
			"message_id": "m1", "attachment_id": "att-1",
		})
		require.NoError(t, err)
		assert.Equal(t, base64.StdEncoding.EncodeToString(payload), result["data"])
		assert.Equal(t, len(payload), result["size"])
	})

	t.Run("save to path", func(t *testing.T) {
		target := filepath.Join(t.TempDir(), "nested", "file.bin")
		result, err := d.Dispatch(context.Background(), MethodDownloadAttachment, map[string]any{
			"message_id": "m1", "attachment_id": "att-1", "save_path": target,
		})
		require.NoError(t, err)
		assert.Equal(t, true, result["saved"])
		assert.Equal(t, target, result["path"])

		data, err := os.ReadFile(target)
		require.NoError(t, err)
		assert.Equal(t, payload, data)
	})
}

func TestDispatch_DownloadThenSendKeepsBytes(t *testing.T) {
	d, srv, _ := newTestDispatcher(t, Options{})
	payload := make([]byte, 1024)
	for i := range payload {
		payload[i] = byte(i * 7)
	}
	srv.AddAttachment("m1", "att-1", payload)

	downloaded, err := d.Dispatch(context.Background(), MethodDownloadAttachment, map[string]any{
		"message_id": "m1", "attachment_id": "att-1",
	})
	require.NoError(t, err)

	_, err = d.Dispatch(context.Background(), MethodSend, map[string]any{
		"to": "bob@example.com", "subject": "fwd", "body": "forwarding",
		"attachments": []any{map[string]any{"filename": "blob.bin", "data": downloaded["data"]}},
	})
	require.NoError(t, err)

	root, err := gmail.PartFromMIME(strings.NewReader(srv.Sent()[0]))
	require.NoError(t, err)
	var sent []byte
	root.Walk(func(p *gmail.Part) {
		if p.Filename == "blob.bin" {
			sent = p.Body.Data
		}
	})
	assert.Equal(t, payload, sent)
}

func TestCall_Envelope(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		d, srv, _ := newTestDispatcher(t, Options{})
		addInbox(srv, "m1", "s", "x", gmail.LabelInbox)

		resp := d.Call(context.Background(), MethodInbox, nil)
		assert.True(t, resp.OK)
		assert.Nil(t, resp.Error)
		assert.Equal(t, 1, resp.Result["count"])
	})

	t.Run("missing parameter names it", func(t *testing.T) {
		d, _, _ := newTestDispatcher(t, Options{})
		resp := d.Call(context.Background(), MethodSearch, map[string]any{})
		require.NotNil(t, resp.Error)
		assert.Equal(t, CodeMissingParameter, resp.Error.Code)
		assert.Equal(t, "query", resp.Error.Param)
	})

	t.Run("provider failure", func(t *testing.T) {
		d, srv, _ := newTestDispatcher(t, Options{})
		srv.Fail(gmailtest.OpListMessages, 429, "rateLimitExceeded")

		resp := d.Call(context.Background(), MethodInbox, nil)
		require.NotNil(t, resp.Error)
		assert.Equal(t, CodeProviderRequestFailed, resp.Error.Code)
		assert.Equal(t, 429, resp.Error.Status)
		assert.Equal(t, "rateLimitExceeded", resp.Error.Reason)
	})

	t.Run("auth flow required", func(t *testing.T) {
		d, _, session := newTestDispatcher(t, Options{})
		session.err = &google.AuthFlowRequiredError{AuthURL: "https://accounts.example.com/auth?x=1"}

		resp := d.Call(context.Background(), MethodInbox, nil)
		require.NotNil(t, resp.Error)
		assert.Equal(t, CodeAuthFlowRequired, resp.Error.Code)
		assert.Equal(t, "https://accounts.example.com/auth?x=1", resp.Error.AuthURL)
	})

	t.Run("session not ready", func(t *testing.T) {
		d, _, session := newTestDispatcher(t, Options{})
		session.err = server.ErrSessionNotReady

		resp := d.Call(context.Background(), MethodRead, map[string]any{"message_id": "m1"})
		require.NotNil(t, resp.Error)
		assert.Equal(t, CodeSessionNotReady, resp.Error.Code)
	})

	t.Run("json params", func(t *testing.T) {
		d, srv, _ := newTestDispatcher(t, Options{})
		addInbox(srv, "m1", "s", "x", gmail.LabelInbox)

		resp := d.CallJSON(context.Background(), MethodInbox, []byte(`{"limit": 1}`))
		assert.True(t, resp.OK)

		resp = d.CallJSON(context.Background(), MethodInbox, []byte(`{not json`))
		require.NotNil(t, resp.Error)
		assert.Equal(t, CodeInvalidParameter, resp.Error.Code)
		assert.Equal(t, "params", resp.Error.Param)
	})
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{google.ErrCredentialsMissing, CodeCredentialsMissing},
		{&google.AuthFlowRequiredError{}, CodeAuthFlowRequired},
		{google.ErrRefreshFailed, CodeRefreshFailed},
		{&gmail.ProviderError{Op: "messages.get", Err: google.ErrRefreshFailed}, CodeRefreshFailed},
		{&gmail.ProviderError{Op: "messages.get", Status: 500, Err: errors.New("boom")}, CodeProviderRequestFailed},
		{&gmail.MissingFieldError{Field: "to"}, CodeMissingField},
		{&gmail.InvalidFieldError{Field: "to", Reason: "contains a line break"}, CodeInvalidParameter},
		{gmail.ErrMalformedPart, CodeMalformedMessage},
		{server.ErrSessionNotReady, CodeSessionNotReady},
		{errors.New("something else"), CodeInternal},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ErrorCode(tt.err), "%v", tt.err)
	}
}

func TestMethodList(t *testing.T) {
	d, _, _ := newTestDispatcher(t, Options{})
	list := d.MethodList()

	names := make([]string, 0, len(list))
	for _, m := range list {
		names = append(names, m.Name)
		assert.NotEmpty(t, m.Description, m.Name)
	}
	assert.Equal(t, []string{
		MethodInbox, MethodUnread, MethodSearch, MethodRead, MethodSend, MethodThread, MethodDownloadAttachment,
	}, names)

	search := list[2]
	require.Len(t, search.Params, 2)
	assert.Equal(t, ParamInfo{Name: "query", Type: "string", Required: true,
		Description: "Gmail search query (e.g., 'from:user@example.com has:attachment')"}, search.Params[0])
	assert.Equal(t, "limit", search.Params[1].Name)
	assert.Equal(t, "number", search.Params[1].Type)
	assert.False(t, search.Params[1].Required)
	assert.EqualValues(t, DefaultLimit, search.Params[1].Default)

	send := list[4]
	assert.Equal(t, []string{"body", "subject", "to", "attachments", "bcc", "cc"}, paramNames(send.Params))
	assert.Equal(t, "array", send.Params[3].Type)
}

func TestHealthCheck(t *testing.T) {
	d, _, session := newTestDispatcher(t, Options{})
	assert.True(t, d.HealthCheck()[server.HealthComponentGmail].OK)

	session.err = google.ErrCredentialsMissing
	status := d.HealthCheck()[server.HealthComponentGmail]
	assert.False(t, status.OK)
	assert.NotEmpty(t, status.Message)
}

func paramNames(params []ParamInfo) []string {
	out := make([]string, 0, len(params))
	for _, p := range params {
		out = append(out, p.Name)
	}
	return out
}
