// Package google holds the credential store for the Gmail session.
//
// A CredentialStore searches an ordered list of directories for a persisted
// OAuth2 token and the client-secret file, refreshes an expired token
// through golang.org/x/oauth2 and writes every refreshed token back. The
// token can alternatively live in the system keyring.
//
// Credential failures are reported as ErrCredentialsMissing,
// *AuthFlowRequiredError (matching ErrAuthFlowRequired) or ErrRefreshFailed.
package google
