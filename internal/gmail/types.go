package gmail

// Default mailbox labels.
const (
	LabelInbox  = "INBOX"
	LabelUnread = "UNREAD"
)

// Snippet lengths, in characters, for message summaries.
const (
	SnippetLimit       = 100
	UnreadSnippetLimit = 80
)

// UntitledAttachment is the filename reported for attachments without one.
const UntitledAttachment = "untitled"

// MessageRef identifies a message returned by a listing.
type MessageRef struct {
	ID       string
	ThreadID string
}

// MessageSummary is the short form of a message used by listings.
type MessageSummary struct {
	ID       string `json:"id"`
	ThreadID string `json:"thread_id,omitempty"`
	From     string `json:"from"`
	Subject  string `json:"subject"`
	Date     string `json:"date,omitempty"`
	Snippet  string `json:"snippet"`
}

// AttachmentRef describes an attachment of a received message.
// ID is empty for attachments whose bytes are inline in the message.
type AttachmentRef struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	MimeType string `json:"mime_type"`
	Size     int64  `json:"size"`
}

// Content is the flat content model produced by decoding a part tree.
// BodyText and BodyHTML are nil when the message has no such part.
type Content struct {
	Headers     map[string]string
	BodyText    *string
	BodyHTML    *string
	Attachments []AttachmentRef
}

// HasAttachments reports whether any attachment was found.
func (c *Content) HasAttachments() bool {
	return len(c.Attachments) > 0
}

// MessageDetail is a fully decoded message.
type MessageDetail struct {
	ID       string
	ThreadID string
	Snippet  string
	Labels   []string
	Content
}

// Header returns the value of a header, or "" when it is absent.
func (d *MessageDetail) Header(name string) string {
	return d.Headers[name]
}

// OutgoingAttachment is one attachment of a message to send. Exactly one of
// Data or Path must be set; a non-nil empty Data is a zero-byte attachment.
// Filename defaults to the base name of Path.
type OutgoingAttachment struct {
	Filename string
	Data     []byte
	Path     string
}

// OutgoingMessage is a message to send.
type OutgoingMessage struct {
	To          string
	Subject     string
	Body        string
	Cc          string
	Bcc         string
	Attachments []OutgoingAttachment
}

// AttachedFile records an attachment that was encoded into a message.
type AttachedFile struct {
	Filename string `json:"filename"`
	Size     int    `json:"size"`
}

// EncodedMessage is an outgoing message in the provider's wire form.
type EncodedMessage struct {
	// Raw is the RFC 5322 message, base64url encoded.
	Raw         string
	Attachments []AttachedFile
}

// SentMessage is the provider's acknowledgement of a send.
type SentMessage struct {
	ID          string
	ThreadID    string
	Attachments []AttachedFile
}

// UnreadSummary is the result of an unread query.
type UnreadSummary struct {
	// Count is the authoritative number of unread messages, taken from the
	// UNREAD label rather than the listing's estimate.
	Count    int64
	Messages []MessageSummary
}
