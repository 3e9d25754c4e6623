package gmail

import (
	"fmt"
	"strings"
	"unicode/utf8"

	gmailapi "google.golang.org/api/gmail/v1"
)

// Decode converts a message fetched in "full" format into a MessageDetail.
func Decode(msg *gmailapi.Message) (*MessageDetail, error) {
	if msg == nil {
		return nil, fmt.Errorf("%w: nil message", ErrMalformedPart)
	}
	root, err := PartFromWire(msg.Payload)
	if err != nil {
		return nil, err
	}
	content := DecodeParts(root)
	return &MessageDetail{
		ID:       msg.Id,
		ThreadID: msg.ThreadId,
		Snippet:  msg.Snippet,
		Labels:   msg.LabelIds,
		Content:  *content,
	}, nil
}

// DecodeParts flattens a part tree into body text, body HTML and an
// attachment manifest.
//
// A leaf root fills a body slot only when it is text/plain or text/html. Otherwise the root's
// descendants are visited depth-first in tree order: the first text/plain
// and the first text/html part without a filename fill the two body slots,
// and every part with a filename or attachment id is listed as an
// attachment. Headers come from the root only; the last duplicate wins.
func DecodeParts(root *Part) *Content {
	c := &Content{Headers: make(map[string]string, len(root.Headers))}
	for _, h := range root.Headers {
		c.Headers[h.Name] = h.Value
	}

	if len(root.Children) == 0 {
		switch {
		case isBodyCandidate(root, "text/html"):
			c.BodyHTML = textPtr(root.Body.Data)
		case isBodyCandidate(root, "text/plain"):
			c.BodyText = textPtr(root.Body.Data)
		case isAttachment(root):
			c.Attachments = append(c.Attachments, attachmentRef(root))
		}
		return c
	}

	for _, child := range root.Children {
		child.Walk(func(p *Part) {
			switch {
			case isBodyCandidate(p, "text/plain"):
				if c.BodyText == nil {
					c.BodyText = textPtr(p.Body.Data)
				}
			case isBodyCandidate(p, "text/html"):
				if c.BodyHTML == nil {
					c.BodyHTML = textPtr(p.Body.Data)
				}
			case isAttachment(p):
				c.Attachments = append(c.Attachments, attachmentRef(p))
			}
		})
	}
	return c
}

func isBodyCandidate(p *Part, mediaType string) bool {
	return p.MimeType == mediaType && p.Filename == "" && p.HasData()
}

func isAttachment(p *Part) bool {
	return p.Filename != "" || p.Body.AttachmentID != ""
}

func attachmentRef(p *Part) AttachmentRef {
	name := p.Filename
	if name == "" {
		name = UntitledAttachment
	}
	size := p.Body.Size
	if size == 0 {
		size = int64(len(p.Body.Data))
	}
	return AttachmentRef{
		ID:       p.Body.AttachmentID,
		Filename: name,
		MimeType: p.MimeType,
		Size:     size,
	}
}

// textPtr converts body bytes to a string, replacing invalid UTF-8
// sequences with U+FFFD.
func textPtr(data []byte) *string {
	s := strings.ToValidUTF8(string(data), string(utf8.RuneError))
	return &s
}

// Truncate shortens s to at most n characters.
func Truncate(s string, n int) string {
	if n < 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
