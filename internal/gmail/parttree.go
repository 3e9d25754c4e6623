package gmail

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"strings"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	gmailapi "google.golang.org/api/gmail/v1"
)

// Header is a single message header in wire order.
type Header struct {
	Name  string
	Value string
}

// PartBody is the payload of a leaf part. Data holds decoded bytes when the
// content is inline; AttachmentID is set when the bytes must be fetched
// separately.
type PartBody struct {
	Data         []byte
	AttachmentID string
	Size         int64
}

// Part is one node of a message's MIME tree. A container node has Children
// and no body data; a leaf node carries a body.
type Part struct {
	PartID   string
	MimeType string
	Filename string
	Headers  []Header
	Body     PartBody
	Children []*Part
}

// HasData reports whether the part carries inline body bytes.
func (p *Part) HasData() bool {
	return len(p.Body.Data) > 0
}

// Walk visits p and then every descendant depth-first in tree order.
func (p *Part) Walk(fn func(*Part)) {
	if p == nil {
		return
	}
	fn(p)
	for _, c := range p.Children {
		c.Walk(fn)
	}
}

// PartFromWire converts the provider's payload into a Part tree, decoding
// every inline body. A nil payload or body data that is not base64 is an
// ErrMalformedPart error.
func PartFromWire(mp *gmailapi.MessagePart) (*Part, error) {
	if mp == nil {
		return nil, fmt.Errorf("%w: missing payload", ErrMalformedPart)
	}

	p := &Part{
		PartID:   mp.PartId,
		MimeType: normalizeMediaType(mp.MimeType),
		Filename: mp.Filename,
	}
	for _, h := range mp.Headers {
		if h == nil {
			continue
		}
		p.Headers = append(p.Headers, Header{Name: h.Name, Value: h.Value})
	}
	if mp.Body != nil {
		data, err := decodeBase64(mp.Body.Data)
		if err != nil {
			return nil, fmt.Errorf("%w: part %q body: %w", ErrMalformedPart, mp.PartId, err)
		}
		p.Body = PartBody{Data: data, AttachmentID: mp.Body.AttachmentId, Size: mp.Body.Size}
	}
	for _, child := range mp.Parts {
		c, err := PartFromWire(child)
		if err != nil {
			return nil, err
		}
		p.Children = append(p.Children, c)
	}
	return p, nil
}

// PartFromMIME parses a raw RFC 5322 message into a Part tree. Transfer
// encodings are removed and known charsets are converted to UTF-8.
func PartFromMIME(r io.Reader) (*Part, error) {
	entity, err := message.Read(r)
	if err != nil && !message.IsUnknownCharset(err) && !message.IsUnknownEncoding(err) {
		return nil, fmt.Errorf("%w: %w", ErrMalformedPart, err)
	}
	return partFromEntity(entity, "")
}

func partFromEntity(e *message.Entity, id string) (*Part, error) {
	mediaType, params, _ := e.Header.ContentType()
	if mediaType == "" {
		mediaType = "text/plain"
	}
	p := &Part{
		PartID:   id,
		MimeType: normalizeMediaType(mediaType),
		Filename: params["name"],
	}
	if _, dparams, err := e.Header.ContentDisposition(); err == nil && dparams["filename"] != "" {
		p.Filename = dparams["filename"]
	}

	fields := e.Header.Fields()
	for fields.Next() {
		value, err := fields.Text()
		if err != nil {
			value = fields.Value()
		}
		p.Headers = append(p.Headers, Header{Name: fields.Key(), Value: value})
	}

	if mr := e.MultipartReader(); mr != nil {
		for i := 0; ; i++ {
			child, err := mr.NextPart()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil && !message.IsUnknownCharset(err) && !message.IsUnknownEncoding(err) {
				return nil, fmt.Errorf("%w: %w", ErrMalformedPart, err)
			}
			childID := fmt.Sprint(i)
			if id != "" {
				childID = id + "." + childID
			}
			c, err := partFromEntity(child, childID)
			if err != nil {
				return nil, err
			}
			p.Children = append(p.Children, c)
		}
		return p, nil
	}

	data, err := io.ReadAll(e.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading part %q: %w", ErrMalformedPart, id, err)
	}
	p.Body = PartBody{Data: data, Size: int64(len(data))}
	return p, nil
}

// normalizeMediaType lowercases a media type and drops its parameters.
func normalizeMediaType(t string) string {
	if mt, _, err := mime.ParseMediaType(t); err == nil {
		return mt
	}
	return strings.ToLower(strings.TrimSpace(t))
}

// decodeBase64 decodes provider body data. Gmail uses the padded URL
// alphabet; unpadded and standard alphabet payloads are accepted too.
func decodeBase64(s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	var firstErr error
	for _, enc := range []*base64.Encoding{
		base64.URLEncoding,
		base64.RawURLEncoding,
		base64.StdEncoding,
		base64.RawStdEncoding,
	} {
		data, err := enc.DecodeString(s)
		if err == nil {
			return data, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return nil, firstErr
}
