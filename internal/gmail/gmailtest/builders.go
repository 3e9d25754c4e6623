package gmailtest

import (
	"encoding/base64"

	gmailapi "google.golang.org/api/gmail/v1"
)

// Encode returns data in the padded base64url form Gmail uses for bodies.
func Encode(data string) string {
	return base64.URLEncoding.EncodeToString([]byte(data))
}

// Headers builds a header list from name/value pairs.
func Headers(pairs ...string) []*gmailapi.MessagePartHeader {
	out := make([]*gmailapi.MessagePartHeader, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, &gmailapi.MessagePartHeader{Name: pairs[i], Value: pairs[i+1]})
	}
	return out
}

// TextPart is a leaf part with inline body data.
func TextPart(mimeType, body string) *gmailapi.MessagePart {
	return &gmailapi.MessagePart{
		MimeType: mimeType,
		Body:     &gmailapi.MessagePartBody{Data: Encode(body), Size: int64(len(body))},
	}
}

// AttachmentPart is a leaf part whose bytes are fetched by attachment id.
func AttachmentPart(mimeType, filename, attachmentID string, size int64) *gmailapi.MessagePart {
	return &gmailapi.MessagePart{
		MimeType: mimeType,
		Filename: filename,
		Body:     &gmailapi.MessagePartBody{AttachmentId: attachmentID, Size: size},
	}
}

// Multipart is a container part.
func Multipart(mimeType string, children ...*gmailapi.MessagePart) *gmailapi.MessagePart {
	return &gmailapi.MessagePart{
		MimeType: mimeType,
		Body:     &gmailapi.MessagePartBody{},
		Parts:    children,
	}
}

// Message builds a message with the standard From/Subject/Date headers on
// payload.
func Message(id, threadID, from, subject, snippet string, payload *gmailapi.MessagePart) *gmailapi.Message {
	payload.Headers = append(Headers(
		"From", from,
		"To", "me@example.com",
		"Subject", subject,
		"Date", "Mon, 2 Jun 2025 10:00:00 +0000",
	), payload.Headers...)
	return &gmailapi.Message{
		Id:       id,
		ThreadId: threadID,
		Snippet:  snippet,
		Payload:  payload,
	}
}
