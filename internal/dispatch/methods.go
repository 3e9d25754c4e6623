package dispatch

import (
	"context"
	"encoding/base64"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/teemow/mailwarm/internal/gmail"
)

// Method names.
const (
	MethodInbox              = "gmail.inbox"
	MethodUnread             = "gmail.unread"
	MethodSearch             = "gmail.search"
	MethodRead               = "gmail.read"
	MethodSend               = "gmail.send"
	MethodThread             = "gmail.thread"
	MethodDownloadAttachment = "gmail.download_attachment"
)

// ClientFunc returns the session's Gmail client. Handlers call it only after
// their parameters validate.
type ClientFunc func() (*gmail.Client, error)

// Handler runs one method.
type Handler func(ctx context.Context, params Params, client ClientFunc) (map[string]any, error)

// Method is a registered method: its schema and its handler.
type Method struct {
	Tool    mcp.Tool
	Handler Handler
}

// Name returns the method name.
func (m Method) Name() string {
	return m.Tool.Name
}

func limitOption() mcp.ToolOption {
	return mcp.WithNumber("limit",
		mcp.Description("Maximum number of messages to return"),
		mcp.DefaultNumber(DefaultLimit),
	)
}

// gmailMethods returns the built-in Gmail methods in registration order.
func gmailMethods() []Method {
	return []Method{
		{
			Tool: mcp.NewTool(MethodInbox,
				mcp.WithDescription("List the newest messages in the inbox"),
				limitOption(),
			),
			Handler: handleInbox,
		},
		{
			Tool: mcp.NewTool(MethodUnread,
				mcp.WithDescription("Count unread messages and list the newest unread ones in the inbox"),
				limitOption(),
			),
			Handler: handleUnread,
		},
		{
			Tool: mcp.NewTool(MethodSearch,
				mcp.WithDescription("Search messages with a Gmail query"),
				mcp.WithString("query",
					mcp.Required(),
					mcp.Description("Gmail search query (e.g., 'from:user@example.com has:attachment')"),
				),
				limitOption(),
			),
			Handler: handleSearch,
		},
		{
			Tool: mcp.NewTool(MethodRead,
				mcp.WithDescription("Read a full message with its bodies and attachment list"),
				mcp.WithString("message_id",
					mcp.Required(),
					mcp.Description("The ID of the Gmail message"),
				),
			),
			Handler: handleRead,
		},
		{
			Tool: mcp.NewTool(MethodSend,
				mcp.WithDescription("Send a plain text message, optionally with attachments"),
				mcp.WithString("to",
					mcp.Required(),
					mcp.Description("Recipient addresses, comma separated"),
				),
				mcp.WithString("subject",
					mcp.Required(),
					mcp.Description("Message subject"),
				),
				mcp.WithString("body",
					mcp.Required(),
					mcp.Description("Plain text body"),
				),
				mcp.WithString("cc",
					mcp.Description("Cc addresses, comma separated"),
				),
				mcp.WithString("bcc",
					mcp.Description("Bcc addresses, comma separated"),
				),
				mcp.WithArray("attachments",
					mcp.Description("Attachments: objects with 'path', or 'filename' (or 'name') and base64 'data'"),
					mcp.Items(map[string]any{
						"type": "object",
						"properties": map[string]any{
							"path":     map[string]any{"type": "string"},
							"filename": map[string]any{"type": "string"},
							"name":     map[string]any{"type": "string"},
							"data":     map[string]any{"type": "string"},
						},
					}),
				),
			),
			Handler: handleSend,
		},
		{
			Tool: mcp.NewTool(MethodThread,
				mcp.WithDescription("List every message of a thread"),
				mcp.WithString("thread_id",
					mcp.Required(),
					mcp.Description("The ID of the Gmail thread"),
				),
			),
			Handler: handleThread,
		},
		{
			Tool: mcp.NewTool(MethodDownloadAttachment,
				mcp.WithDescription("Download an attachment, returning it as base64 or saving it to a file"),
				mcp.WithString("message_id",
					mcp.Required(),
					mcp.Description("The ID of the Gmail message"),
				),
				mcp.WithString("attachment_id",
					mcp.Required(),
					mcp.Description("The ID of the attachment"),
				),
				mcp.WithString("save_path",
					mcp.Description("File to write the attachment to; parent directories are created and an existing file is replaced"),
				),
			),
			Handler: handleDownloadAttachment,
		},
	}
}

func handleInbox(ctx context.Context, params Params, client ClientFunc) (map[string]any, error) {
	limit, err := params.limit()
	if err != nil {
		return nil, err
	}
	c, err := client()
	if err != nil {
		return nil, err
	}
	emails, err := c.Inbox(ctx, limit)
	if err != nil {
		return nil, err
	}
	return map[string]any{"emails": emails, "count": len(emails)}, nil
}

// unreadEntry is the compact summary listed by gmail.unread.
type unreadEntry struct {
	ID      string `json:"id"`
	From    string `json:"from"`
	Subject string `json:"subject"`
	Snippet string `json:"snippet"`
}

func handleUnread(ctx context.Context, params Params, client ClientFunc) (map[string]any, error) {
	limit, err := params.limit()
	if err != nil {
		return nil, err
	}
	c, err := client()
	if err != nil {
		return nil, err
	}
	summary, err := c.Unread(ctx, limit)
	if err != nil {
		return nil, err
	}

	entries := make([]unreadEntry, 0, len(summary.Messages))
	for _, m := range summary.Messages {
		entries = append(entries, unreadEntry{ID: m.ID, From: m.From, Subject: m.Subject, Snippet: m.Snippet})
	}
	return map[string]any{"unread_count": summary.Count, "messages": entries}, nil
}

func handleSearch(ctx context.Context, params Params, client ClientFunc) (map[string]any, error) {
	query, err := params.requireString("query")
	if err != nil {
		return nil, err
	}
	limit, err := params.limit()
	if err != nil {
		return nil, err
	}
	c, err := client()
	if err != nil {
		return nil, err
	}
	emails, err := c.Search(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	return map[string]any{"query": query, "emails": emails, "count": len(emails)}, nil
}

func handleRead(ctx context.Context, params Params, client ClientFunc) (map[string]any, error) {
	id, err := params.requireString("message_id")
	if err != nil {
		return nil, err
	}
	c, err := client()
	if err != nil {
		return nil, err
	}
	msg, err := c.Read(ctx, id)
	if err != nil {
		return nil, err
	}

	var attachments []gmail.AttachmentRef
	if msg.HasAttachments() {
		attachments = msg.Attachments
	}
	return map[string]any{
		"id":              msg.ID,
		"thread_id":       msg.ThreadID,
		"from":            msg.Header("From"),
		"to":              msg.Header("To"),
		"cc":              nullable(msg.Header("Cc")),
		"subject":         msg.Header("Subject"),
		"date":            msg.Header("Date"),
		"body_text":       msg.BodyText,
		"body_html":       msg.BodyHTML,
		"snippet":         msg.Snippet,
		"labels":          msg.Labels,
		"attachments":     attachments,
		"has_attachments": msg.HasAttachments(),
	}, nil
}

func handleSend(ctx context.Context, params Params, client ClientFunc) (map[string]any, error) {
	to, err := params.requireString("to")
	if err != nil {
		return nil, err
	}
	subject, err := params.requireString("subject")
	if err != nil {
		return nil, err
	}
	body, err := params.requireString("body")
	if err != nil {
		return nil, err
	}
	cc, err := params.optionalString("cc")
	if err != nil {
		return nil, err
	}
	bcc, err := params.optionalString("bcc")
	if err != nil {
		return nil, err
	}
	attachments, err := params.attachments()
	if err != nil {
		return nil, err
	}

	c, err := client()
	if err != nil {
		return nil, err
	}
	sent, err := c.Send(ctx, gmail.OutgoingMessage{
		To:          to,
		Subject:     subject,
		Body:        body,
		Cc:          cc,
		Bcc:         bcc,
		Attachments: attachments,
	})
	if err != nil {
		return nil, err
	}

	var manifest []gmail.AttachedFile
	if len(sent.Attachments) > 0 {
		manifest = sent.Attachments
	}
	return map[string]any{
		"sent":        true,
		"message_id":  sent.ID,
		"thread_id":   sent.ThreadID,
		"attachments": manifest,
	}, nil
}

func handleThread(ctx context.Context, params Params, client ClientFunc) (map[string]any, error) {
	id, err := params.requireString("thread_id")
	if err != nil {
		return nil, err
	}
	c, err := client()
	if err != nil {
		return nil, err
	}
	messages, err := c.Thread(ctx, id)
	if err != nil {
		return nil, err
	}
	return map[string]any{"thread_id": id, "messages": messages, "count": len(messages)}, nil
}

func handleDownloadAttachment(ctx context.Context, params Params, client ClientFunc) (map[string]any, error) {
	messageID, err := params.requireString("message_id")
	if err != nil {
		return nil, err
	}
	attachmentID, err := params.requireString("attachment_id")
	if err != nil {
		return nil, err
	}
	savePath, err := params.optionalString("save_path")
	if err != nil {
		return nil, err
	}

	c, err := client()
	if err != nil {
		return nil, err
	}
	data, err := c.DownloadAttachment(ctx, messageID, attachmentID)
	if err != nil {
		return nil, err
	}

	if savePath != "" {
		path, err := gmail.SaveAttachment(savePath, data)
		if err != nil {
			return nil, err
		}
		return map[string]any{"saved": true, "path": path, "size": len(data)}, nil
	}
	return map[string]any{"data": base64.StdEncoding.EncodeToString(data), "size": len(data)}, nil
}

// nullable maps an absent header to a JSON null.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
