package gmail

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
)

const defaultAttachmentType = "application/octet-stream"

// Encode builds the wire form of an outgoing message.
//
// Without attachments the message is a single text/plain part. With
// attachments it is multipart/mixed: the text body first, then one part per
// attachment in input order with a MIME type guessed from the filename.
func Encode(msg OutgoingMessage) (*EncodedMessage, error) {
	return encodeAt(msg, time.Now())
}

func encodeAt(msg OutgoingMessage, now time.Time) (*EncodedMessage, error) {
	switch {
	case msg.To == "":
		return nil, &MissingFieldError{Field: "to"}
	case msg.Subject == "":
		return nil, &MissingFieldError{Field: "subject"}
	case msg.Body == "":
		return nil, &MissingFieldError{Field: "body"}
	}
	for _, f := range []struct{ name, value string }{
		{"to", msg.To}, {"cc", msg.Cc}, {"bcc", msg.Bcc}, {"subject", msg.Subject},
	} {
		if strings.ContainsAny(f.value, "\r\n") {
			return nil, &InvalidFieldError{Field: f.name, Reason: "contains a line break"}
		}
	}

	type resolved struct {
		name string
		data []byte
	}
	files := make([]resolved, 0, len(msg.Attachments))
	for i, a := range msg.Attachments {
		name, data, err := ResolveAttachment(a)
		if err != nil {
			return nil, fmt.Errorf("attachment %d: %w", i, err)
		}
		files = append(files, resolved{name: name, data: data})
	}

	h, err := envelope(msg, now)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	var attached []AttachedFile
	if len(files) == 0 {
		h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})
		w, err := mail.CreateSingleInlineWriter(&buf, h)
		if err != nil {
			return nil, fmt.Errorf("failed to create message writer: %w", err)
		}
		if err := writeAndClose(w, []byte(msg.Body)); err != nil {
			return nil, err
		}
	} else {
		mw, err := mail.CreateWriter(&buf, h)
		if err != nil {
			return nil, fmt.Errorf("failed to create multipart writer: %w", err)
		}

		var th mail.InlineHeader
		th.SetContentType("text/plain", map[string]string{"charset": "utf-8"})
		tw, err := mw.CreateSingleInline(th)
		if err != nil {
			return nil, fmt.Errorf("failed to create body part: %w", err)
		}
		if err := writeAndClose(tw, []byte(msg.Body)); err != nil {
			return nil, err
		}

		for _, f := range files {
			var ah mail.AttachmentHeader
			ah.SetContentType(AttachmentMediaType(f.name), nil)
			ah.SetFilename(f.name)
			aw, err := mw.CreateAttachment(ah)
			if err != nil {
				return nil, fmt.Errorf("failed to create attachment part %q: %w", f.name, err)
			}
			if err := writeAndClose(aw, f.data); err != nil {
				return nil, err
			}
			attached = append(attached, AttachedFile{Filename: f.name, Size: len(f.data)})
		}
		if err := mw.Close(); err != nil {
			return nil, fmt.Errorf("failed to finish multipart message: %w", err)
		}
	}

	return &EncodedMessage{
		Raw:         base64.URLEncoding.EncodeToString(buf.Bytes()),
		Attachments: attached,
	}, nil
}

// envelope builds the top-level headers. Recipient lists that parse as
// RFC 5322 address lists are re-encoded; anything else is passed through.
func envelope(msg OutgoingMessage, now time.Time) (mail.Header, error) {
	var h mail.Header
	h.SetDate(now)
	h.Set("MIME-Version", "1.0")
	setAddresses(&h, "To", msg.To)
	if msg.Cc != "" {
		setAddresses(&h, "Cc", msg.Cc)
	}
	if msg.Bcc != "" {
		setAddresses(&h, "Bcc", msg.Bcc)
	}
	h.SetSubject(msg.Subject)
	if err := h.GenerateMessageID(); err != nil {
		return h, fmt.Errorf("failed to generate message id: %w", err)
	}
	return h, nil
}

func setAddresses(h *mail.Header, key, list string) {
	addrs, err := mail.ParseAddressList(list)
	if err != nil || len(addrs) == 0 {
		h.Set(key, list)
		return
	}
	h.SetAddressList(key, addrs)
}

func writeAndClose(w io.WriteCloser, data []byte) error {
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to write message part: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close message part: %w", err)
	}
	return nil
}

// AttachmentMediaType guesses a media type from a filename extension,
// falling back to application/octet-stream.
func AttachmentMediaType(filename string) string {
	t := mime.TypeByExtension(filepath.Ext(filename))
	if t == "" {
		return defaultAttachmentType
	}
	if mt, _, err := mime.ParseMediaType(t); err == nil {
		return mt
	}
	return defaultAttachmentType
}
