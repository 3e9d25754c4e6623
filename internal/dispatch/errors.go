package dispatch

import (
	"errors"
	"fmt"

	"github.com/teemow/mailwarm/internal/gmail"
	"github.com/teemow/mailwarm/internal/google"
	"github.com/teemow/mailwarm/internal/server"
)

// ErrUnknownMethod is returned for a method name that is not registered.
var ErrUnknownMethod = errors.New("unknown method")

// Error codes carried in the response envelope.
const (
	CodeCredentialsMissing    = "CredentialsMissing"
	CodeAuthFlowRequired      = "AuthFlowRequired"
	CodeRefreshFailed         = "RefreshFailed"
	CodeUnknownMethod         = "UnknownMethod"
	CodeMissingParameter      = "MissingParameter"
	CodeInvalidParameter      = "InvalidParameter"
	CodeSessionNotReady       = "SessionNotReady"
	CodeInvalidAttachment     = "InvalidAttachment"
	CodeAttachmentNotFound    = "AttachmentNotFound"
	CodeMissingFilename       = "MissingFilename"
	CodeMissingField          = "MissingField"
	CodeMalformedMessage      = "MalformedMessage"
	CodeProviderRequestFailed = "ProviderRequestFailed"
	CodeInternal              = "Internal"
)

// MissingParameterError names a required parameter that is absent or empty.
type MissingParameterError struct {
	Name string
}

func (e *MissingParameterError) Error() string {
	return fmt.Sprintf("missing required parameter %q", e.Name)
}

// InvalidParameterError names a parameter whose value has the wrong type or
// is out of range.
type InvalidParameterError struct {
	Name   string
	Reason string
}

func (e *InvalidParameterError) Error() string {
	return fmt.Sprintf("invalid parameter %q: %s", e.Name, e.Reason)
}

// ErrorCode maps an error to its envelope code. Authentication errors are
// matched before provider errors because a failed refresh surfaces through
// the HTTP transport of a provider call.
func ErrorCode(err error) string {
	var (
		missing  *MissingParameterError
		invalid  *InvalidParameterError
		provider *gmail.ProviderError
	)
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnknownMethod):
		return CodeUnknownMethod
	case errors.As(err, &missing):
		return CodeMissingParameter
	case errors.As(err, &invalid):
		return CodeInvalidParameter
	case errors.Is(err, server.ErrSessionNotReady):
		return CodeSessionNotReady
	case errors.Is(err, google.ErrAuthFlowRequired):
		return CodeAuthFlowRequired
	case errors.Is(err, google.ErrCredentialsMissing):
		return CodeCredentialsMissing
	case errors.Is(err, google.ErrRefreshFailed):
		return CodeRefreshFailed
	case errors.Is(err, gmail.ErrInvalidAttachment):
		return CodeInvalidAttachment
	case errors.Is(err, gmail.ErrAttachmentNotFound):
		return CodeAttachmentNotFound
	case errors.Is(err, gmail.ErrMissingFilename):
		return CodeMissingFilename
	case errors.Is(err, gmail.ErrMissingField):
		return CodeMissingField
	case errors.Is(err, gmail.ErrInvalidField):
		return CodeInvalidParameter
	case errors.Is(err, gmail.ErrMalformedPart):
		return CodeMalformedMessage
	case errors.As(err, &provider):
		return CodeProviderRequestFailed
	default:
		return CodeInternal
	}
}

// paramOf returns the parameter named by a parameter error.
func paramOf(err error) string {
	var missing *MissingParameterError
	if errors.As(err, &missing) {
		return missing.Name
	}
	var invalid *InvalidParameterError
	if errors.As(err, &invalid) {
		return invalid.Name
	}
	var field *gmail.MissingFieldError
	if errors.As(err, &field) {
		return field.Field
	}
	var badField *gmail.InvalidFieldError
	if errors.As(err, &badField) {
		return badField.Field
	}
	return ""
}

func providerError(err error) *gmail.ProviderError {
	var pe *gmail.ProviderError
	if errors.As(err, &pe) {
		return pe
	}
	return nil
}

func authURL(err error) string {
	var flow *google.AuthFlowRequiredError
	if errors.As(err, &flow) {
		return flow.AuthURL
	}
	return ""
}
