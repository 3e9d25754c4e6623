package gmail

import (
	"context"

	gmailapi "google.golang.org/api/gmail/v1"

	"github.com/teemow/mailwarm/internal/instrumentation"
	"github.com/teemow/mailwarm/internal/logging"
)

var (
	summaryHeaders = []string{"From", "Subject", "Date"}
	unreadHeaders  = []string{"From", "Subject"}
)

// Inbox returns up to limit summaries of the newest INBOX messages.
func (c *Client) Inbox(ctx context.Context, limit int64) ([]MessageSummary, error) {
	return c.summaries(ctx, []string{LabelInbox}, "", limit, summaryHeaders, SnippetLimit)
}

// Search returns up to limit summaries of messages matching a Gmail query.
func (c *Client) Search(ctx context.Context, query string, limit int64) ([]MessageSummary, error) {
	return c.summaries(ctx, nil, query, limit, summaryHeaders, SnippetLimit)
}

// Unread returns the unread count from the UNREAD label and up to limit
// summaries of unread INBOX messages.
func (c *Client) Unread(ctx context.Context, limit int64) (*UnreadSummary, error) {
	label, err := c.GetLabel(ctx, LabelUnread)
	if err != nil {
		return nil, err
	}
	msgs, err := c.summaries(ctx, []string{LabelInbox, LabelUnread}, "", limit, unreadHeaders, UnreadSnippetLimit)
	if err != nil {
		return nil, err
	}
	return &UnreadSummary{Count: label.MessagesUnread, Messages: msgs}, nil
}

// summaries lists messages and fetches the metadata of each one.
func (c *Client) summaries(ctx context.Context, labels []string, query string, limit int64, headers []string, snippetLimit int) ([]MessageSummary, error) {
	refs, err := c.ListMessages(ctx, labels, query, limit)
	if err != nil {
		return nil, err
	}

	out := make([]MessageSummary, 0, len(refs))
	for _, ref := range refs {
		msg, err := c.GetMessageMetadata(ctx, ref.ID, headers...)
		if err != nil {
			return nil, err
		}
		s := summarize(msg, snippetLimit)
		s.ID = ref.ID
		out = append(out, s)
	}
	return out, nil
}

// Read fetches and decodes a full message.
func (c *Client) Read(ctx context.Context, id string) (*MessageDetail, error) {
	msg, err := c.GetMessage(ctx, id)
	if err != nil {
		return nil, err
	}
	return Decode(msg)
}

// Thread returns summaries of every message in a thread, in provider order.
func (c *Client) Thread(ctx context.Context, id string) ([]MessageSummary, error) {
	thread, err := c.GetThreadMetadata(ctx, id, summaryHeaders...)
	if err != nil {
		return nil, err
	}
	out := make([]MessageSummary, 0, len(thread.Messages))
	for _, msg := range thread.Messages {
		out = append(out, summarize(msg, SnippetLimit))
	}
	return out, nil
}

// Send encodes and submits an outgoing message.
func (c *Client) Send(ctx context.Context, msg OutgoingMessage) (*SentMessage, error) {
	encoded, err := Encode(msg)
	if err != nil {
		return nil, err
	}
	res, err := c.SendRaw(ctx, encoded.Raw)
	if err != nil {
		return nil, err
	}

	for _, a := range encoded.Attachments {
		c.metrics.RecordAttachmentBytes(ctx, instrumentation.DirectionOutbound, int64(a.Size))
	}
	c.logger.InfoContext(ctx, "message sent",
		logging.MessageID(res.Id),
		logging.Recipients(msg.To))

	return &SentMessage{ID: res.Id, ThreadID: res.ThreadId, Attachments: encoded.Attachments}, nil
}

// DownloadAttachment returns the decoded bytes of an attachment.
func (c *Client) DownloadAttachment(ctx context.Context, messageID, attachmentID string) ([]byte, error) {
	data, err := c.GetAttachment(ctx, messageID, attachmentID)
	if err != nil {
		return nil, err
	}
	c.metrics.RecordAttachmentBytes(ctx, instrumentation.DirectionInbound, int64(len(data)))
	return data, nil
}

func summarize(msg *gmailapi.Message, snippetLimit int) MessageSummary {
	headers := map[string]string{}
	if msg.Payload != nil {
		for _, h := range msg.Payload.Headers {
			if h != nil {
				headers[h.Name] = h.Value
			}
		}
	}
	return MessageSummary{
		ID:       msg.Id,
		ThreadID: msg.ThreadId,
		From:     headers["From"],
		Subject:  headers["Subject"],
		Date:     headers["Date"],
		Snippet:  Truncate(msg.Snippet, snippetLimit),
	}
}
