package gmail

import (
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/api/googleapi"
)

var (
	// ErrInvalidAttachment means an attachment has neither or both of
	// inline data and a path, or its inline data is not valid base64.
	ErrInvalidAttachment = errors.New("invalid attachment")

	// ErrAttachmentNotFound means an attachment path does not exist.
	ErrAttachmentNotFound = errors.New("attachment not found")

	// ErrMissingFilename means no filename could be determined for an attachment.
	ErrMissingFilename = errors.New("attachment filename missing")

	// ErrMissingField is matched by every *MissingFieldError.
	ErrMissingField = errors.New("required field missing")

	// ErrInvalidField is matched by every *InvalidFieldError.
	ErrInvalidField = errors.New("invalid field")

	// ErrMalformedPart means a message part tree could not be decoded.
	ErrMalformedPart = errors.New("malformed message part")
)

// MissingFieldError names the outgoing message field that is empty.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("%s: %s", ErrMissingField, e.Field)
}

func (e *MissingFieldError) Is(target error) bool {
	return target == ErrMissingField
}

// InvalidFieldError names the outgoing message field whose value cannot be
// written as a header.
type InvalidFieldError struct {
	Field  string
	Reason string
}

func (e *InvalidFieldError) Error() string {
	return fmt.Sprintf("%s %s: %s", ErrInvalidField, e.Field, e.Reason)
}

func (e *InvalidFieldError) Is(target error) bool {
	return target == ErrInvalidField
}

// ProviderError is a failed Gmail API request.
type ProviderError struct {
	Op     string // operation name, for example "messages.get"
	Status int    // HTTP status, 0 for transport failures
	Reason string // provider reason such as "notFound" or "rateLimitExceeded"
	Err    error
}

func (e *ProviderError) Error() string {
	switch {
	case e.Status != 0 && e.Reason != "":
		return fmt.Sprintf("gmail %s failed (%d %s): %v", e.Op, e.Status, e.Reason, e.Err)
	case e.Status != 0:
		return fmt.Sprintf("gmail %s failed (%d): %v", e.Op, e.Status, e.Err)
	default:
		return fmt.Sprintf("gmail %s failed: %v", e.Op, e.Err)
	}
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NotFound reports whether the provider answered 404.
func (e *ProviderError) NotFound() bool {
	return e.Status == http.StatusNotFound
}

// wrapProviderError converts an API client error into a *ProviderError,
// extracting the status and reason from a *googleapi.Error.
func wrapProviderError(op string, err error) error {
	if err == nil {
		return nil
	}
	pe := &ProviderError{Op: op, Err: err}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		pe.Status = gerr.Code
		if len(gerr.Errors) > 0 {
			pe.Reason = gerr.Errors[0].Reason
		}
		if pe.Reason == "" {
			pe.Reason = http.StatusText(gerr.Code)
		}
	}
	return pe
}
