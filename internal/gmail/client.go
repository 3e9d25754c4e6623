package gmail

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	gmailapi "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/teemow/mailwarm/internal/instrumentation"
)

// maxPageSize is the largest page the messages.list endpoint returns.
const maxPageSize = 500

// Options configures a Client.
type Options struct {
	// Endpoint overrides the API base URL, for example a local fake.
	Endpoint string
	// User is the mailbox owner; defaults to "me".
	User    string
	Metrics *instrumentation.Metrics
	Logger  *slog.Logger
}

// Client performs Gmail API requests for one mailbox. Every request is
// traced, measured and has its error converted into a *ProviderError.
// A Client is safe for concurrent use.
type Client struct {
	svc     *gmailapi.Service
	user    string
	metrics *instrumentation.Metrics
	logger  *slog.Logger
}

// NewClient creates a Client that sends requests through httpClient, which
// is expected to authorize them.
func NewClient(ctx context.Context, httpClient *http.Client, opts Options) (*Client, error) {
	clientOpts := []option.ClientOption{option.WithHTTPClient(httpClient)}
	if opts.Endpoint != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(opts.Endpoint))
	}
	svc, err := gmailapi.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail service: %w", err)
	}

	if opts.User == "" {
		opts.User = "me"
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Client{
		svc:     svc,
		user:    opts.User,
		metrics: opts.Metrics,
		logger:  opts.Logger,
	}, nil
}

// call runs one API request inside a span and records its outcome.
func call[T any](ctx context.Context, c *Client, op string, attrs []attribute.KeyValue, fn func(context.Context) (T, error)) (T, error) {
	ctx, span := instrumentation.StartGmailSpan(ctx, op, attrs...)
	defer span.End()

	start := time.Now()
	v, err := fn(ctx)
	if err != nil {
		c.metrics.RecordGmailAPIOperation(ctx, op, instrumentation.StatusError, time.Since(start))
		err = wrapProviderError(op, err)
		instrumentation.SetSpanError(span, err)
		c.logger.DebugContext(ctx, "gmail request failed", slog.String("operation", op), slog.Any("error", err))
		return v, err
	}
	c.metrics.RecordGmailAPIOperation(ctx, op, instrumentation.StatusSuccess, time.Since(start))
	instrumentation.SetSpanSuccess(span)
	return v, nil
}

// ListMessages returns up to limit message references matching the labels and
// query, following pagination as needed.
func (c *Client) ListMessages(ctx context.Context, labelIDs []string, query string, limit int64) ([]MessageRef, error) {
	return call(ctx, c, instrumentation.OperationListMessages, nil, func(ctx context.Context) ([]MessageRef, error) {
		var refs []MessageRef
		pageToken := ""
		for int64(len(refs)) < limit {
			req := c.svc.Users.Messages.List(c.user).MaxResults(min(limit-int64(len(refs)), maxPageSize))
			if len(labelIDs) > 0 {
				req = req.LabelIds(labelIDs...)
			}
			if query != "" {
				req = req.Q(query)
			}
			if pageToken != "" {
				req = req.PageToken(pageToken)
			}
			res, err := req.Context(ctx).Do()
			if err != nil {
				return nil, err
			}
			for _, m := range res.Messages {
				refs = append(refs, MessageRef{ID: m.Id, ThreadID: m.ThreadId})
			}
			if res.NextPageToken == "" || len(res.Messages) == 0 {
				break
			}
			pageToken = res.NextPageToken
		}
		if int64(len(refs)) > limit {
			refs = refs[:limit]
		}
		return refs, nil
	})
}

// GetMessageMetadata fetches a message in "metadata" format with only the
// named headers.
func (c *Client) GetMessageMetadata(ctx context.Context, id string, headers ...string) (*gmailapi.Message, error) {
	attrs := []attribute.KeyValue{attribute.String(instrumentation.SpanAttrMessageID, id)}
	return call(ctx, c, instrumentation.OperationGetMessage, attrs, func(ctx context.Context) (*gmailapi.Message, error) {
		return c.svc.Users.Messages.Get(c.user, id).Format("metadata").MetadataHeaders(headers...).Context(ctx).Do()
	})
}

// GetMessage fetches a message in "full" format.
func (c *Client) GetMessage(ctx context.Context, id string) (*gmailapi.Message, error) {
	attrs := []attribute.KeyValue{attribute.String(instrumentation.SpanAttrMessageID, id)}
	return call(ctx, c, instrumentation.OperationGetMessage, attrs, func(ctx context.Context) (*gmailapi.Message, error) {
		return c.svc.Users.Messages.Get(c.user, id).Format("full").Context(ctx).Do()
	})
}

// GetLabel fetches a label including its message counters.
func (c *Client) GetLabel(ctx context.Context, id string) (*gmailapi.Label, error) {
	return call(ctx, c, instrumentation.OperationGetLabel, nil, func(ctx context.Context) (*gmailapi.Label, error) {
		return c.svc.Users.Labels.Get(c.user, id).Context(ctx).Do()
	})
}

// GetThreadMetadata fetches a thread with its messages in "metadata" format.
func (c *Client) GetThreadMetadata(ctx context.Context, id string, headers ...string) (*gmailapi.Thread, error) {
	attrs := []attribute.KeyValue{attribute.String(instrumentation.SpanAttrThreadID, id)}
	return call(ctx, c, instrumentation.OperationGetThread, attrs, func(ctx context.Context) (*gmailapi.Thread, error) {
		return c.svc.Users.Threads.Get(c.user, id).Format("metadata").MetadataHeaders(headers...).Context(ctx).Do()
	})
}

// GetAttachment fetches and decodes an attachment's bytes.
func (c *Client) GetAttachment(ctx context.Context, messageID, attachmentID string) ([]byte, error) {
	attrs := []attribute.KeyValue{
		attribute.String(instrumentation.SpanAttrMessageID, messageID),
		attribute.String(instrumentation.SpanAttrAttachmentID, attachmentID),
	}
	body, err := call(ctx, c, instrumentation.OperationGetAttachment, attrs, func(ctx context.Context) (*gmailapi.MessagePartBody, error) {
		return c.svc.Users.Messages.Attachments.Get(c.user, messageID, attachmentID).Context(ctx).Do()
	})
	if err != nil {
		return nil, err
	}
	data, err := decodeBase64(body.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: attachment %s: %w", ErrMalformedPart, attachmentID, err)
	}
	return data, nil
}

// SendRaw submits a base64url encoded RFC 5322 message.
func (c *Client) SendRaw(ctx context.Context, raw string) (*gmailapi.Message, error) {
	return call(ctx, c, instrumentation.OperationSendMessage, nil, func(ctx context.Context) (*gmailapi.Message, error) {
		return c.svc.Users.Messages.Send(c.user, &gmailapi.Message{Raw: raw}).Context(ctx).Do()
	})
}
