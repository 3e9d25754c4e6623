package google

import (
	"errors"
	"fmt"
)

var (
	// ErrCredentialsMissing means no usable token and no client-secret file
	// exist in any of the search directories.
	ErrCredentialsMissing = errors.New("google credentials missing")

	// ErrAuthFlowRequired is matched by every *AuthFlowRequiredError.
	ErrAuthFlowRequired = errors.New("oauth consent flow required")

	// ErrRefreshFailed means a refresh token exists but the token endpoint
	// rejected the renewal.
	ErrRefreshFailed = errors.New("oauth token refresh failed")

	// ErrTokenNotFound is returned by a TokenStore that holds no token.
	ErrTokenNotFound = errors.New("token not found")
)

// AuthFlowRequiredError carries the consent URL a user must visit to grant
// access. Complete the flow with CredentialStore.CompleteAuthFlow.
type AuthFlowRequiredError struct {
	AuthURL string
}

func (e *AuthFlowRequiredError) Error() string {
	return fmt.Sprintf("%s: visit %s", ErrAuthFlowRequired, e.AuthURL)
}

func (e *AuthFlowRequiredError) Is(target error) bool {
	return target == ErrAuthFlowRequired
}
