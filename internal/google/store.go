package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/teemow/mailwarm/internal/config"
	"github.com/teemow/mailwarm/internal/instrumentation"
	"github.com/teemow/mailwarm/internal/logging"
)

// Options configures a CredentialStore.
type Options struct {
	// Dirs is the ordered credential search list. A leading "~" is expanded.
	Dirs             []string
	TokenFile        string
	ClientSecretFile string
	Scopes           []string

	// Store overrides where the token is kept. When nil the token file is
	// resolved from Dirs.
	Store TokenStore

	Logger  logging.Logger
	Metrics *instrumentation.Metrics
}

// Credentials is the output of a successful Acquire.
type Credentials struct {
	Token  *oauth2.Token
	Config *oauth2.Config // nil when no client secret was found
	Source string         // where the token was loaded from

	store TokenStore
}

// CredentialStore resolves, validates, refreshes and persists the Gmail
// OAuth2 token.
type CredentialStore struct {
	opts Options
	dirs []string
}

// NewCredentialStore expands the search directories and returns a store.
func NewCredentialStore(opts Options) (*CredentialStore, error) {
	if len(opts.Dirs) == 0 {
		return nil, errors.New("at least one credential directory is required")
	}
	if opts.TokenFile == "" || opts.ClientSecretFile == "" {
		return nil, errors.New("token and client secret file names are required")
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}

	dirs := make([]string, 0, len(opts.Dirs))
	for _, d := range opts.Dirs {
		expanded, err := config.ExpandPath(d)
		if err != nil {
			return nil, err
		}
		dirs = append(dirs, expanded)
	}
	return &CredentialStore{opts: opts, dirs: dirs}, nil
}

// NewFromConfig builds a CredentialStore from the auth section of the
// configuration, opening the system keyring when it is the configured store.
func NewFromConfig(cfg config.AuthConfig, logger logging.Logger, metrics *instrumentation.Metrics) (*CredentialStore, error) {
	opts := Options{
		Dirs:             cfg.Dirs,
		TokenFile:        cfg.TokenFile,
		ClientSecretFile: cfg.ClientSecretFile,
		Scopes:           cfg.Scopes,
		Logger:           logger,
		Metrics:          metrics,
	}
	if cfg.TokenStore == config.TokenStoreKeyring {
		ring, err := OpenKeyring(cfg.KeyringService)
		if err != nil {
			return nil, err
		}
		opts.Store = NewKeyringTokenStore(ring, cfg.KeyringService)
	}
	return NewCredentialStore(opts)
}

// Acquire returns usable credentials.
//
// The token is loaded from the first search directory that holds a token
// file (or from the configured store). A valid token is returned as is. An
// expired token with a refresh token is refreshed and persisted. Without a
// refresh token the consent flow is required, reported as
// *AuthFlowRequiredError when a client secret exists and as
// ErrCredentialsMissing otherwise.
func (s *CredentialStore) Acquire(ctx context.Context) (*Credentials, error) {
	store, err := s.tokenStore()
	if err != nil {
		return nil, err
	}

	oauthConfig, err := s.oauthConfig(store)
	if err != nil {
		return nil, err
	}

	tok, err := store.Load()
	switch {
	case errors.Is(err, ErrTokenNotFound):
		tok = nil
	case err != nil:
		return nil, err
	}

	if tok == nil && oauthConfig == nil {
		return nil, fmt.Errorf("%w: searched %v", ErrCredentialsMissing, s.dirs)
	}

	if tok.Valid() {
		s.opts.Logger.Debug("loaded valid token",
			logging.Location(store.Location()),
			slogToken(tok))
		return &Credentials{Token: tok, Config: oauthConfig, Source: store.Location(), store: store}, nil
	}

	s.opts.Logger.Info("token expired, refreshing", logging.Location(store.Location()))
	refreshed, err := refreshToken(ctx, oauthConfig, tok, store, s.opts.Logger, s.opts.Metrics)
	if err != nil {
		return nil, err
	}
	return &Credentials{Token: refreshed, Config: oauthConfig, Source: store.Location(), store: store}, nil
}

// AuthURL returns the consent URL for the resolved client secret.
func (s *CredentialStore) AuthURL() (string, error) {
	store, err := s.tokenStore()
	if err != nil {
		return "", err
	}
	oauthConfig, err := s.oauthConfig(store)
	if err != nil {
		return "", err
	}
	if oauthConfig == nil {
		return "", fmt.Errorf("%w: no %s in %v", ErrCredentialsMissing, s.opts.ClientSecretFile, s.dirs)
	}
	return authCodeURL(oauthConfig), nil
}

// CompleteAuthFlow exchanges an authorization code from the consent page
// for a token and persists it.
func (s *CredentialStore) CompleteAuthFlow(ctx context.Context, code string) (*Credentials, error) {
	if code == "" {
		return nil, errors.New("authorization code is required")
	}
	store, err := s.tokenStore()
	if err != nil {
		return nil, err
	}
	oauthConfig, err := s.oauthConfig(store)
	if err != nil {
		return nil, err
	}
	if oauthConfig == nil {
		return nil, fmt.Errorf("%w: no %s in %v", ErrCredentialsMissing, s.opts.ClientSecretFile, s.dirs)
	}

	tok, err := oauthConfig.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange auth code: %w", err)
	}
	if err := store.Save(tok); err != nil {
		return nil, fmt.Errorf("failed to persist token: %w", err)
	}
	s.opts.Logger.Info("stored new token", logging.Location(store.Location()))
	return &Credentials{Token: tok, Config: oauthConfig, Source: store.Location(), store: store}, nil
}

// TokenSource returns the refreshing, persisting token source for these
// credentials.
func (c *Credentials) TokenSource(ctx context.Context, logger logging.Logger, metrics *instrumentation.Metrics) *PersistingTokenSource {
	return NewPersistingTokenSource(ctx, c.Config, c.Token, c.store, logger, metrics)
}

// NewHTTPClient returns an HTTP client that authorizes every request with
// ts. HTTP/2 is disabled.
func NewHTTPClient(ts oauth2.TokenSource) *http.Client {
	base := http.DefaultTransport.(*http.Transport).Clone()
	base.ForceAttemptHTTP2 = false
	return &http.Client{
		Transport: &oauth2.Transport{Source: ts, Base: base},
	}
}

// tokenStore resolves where the token lives: the configured store, else the
// first directory holding a token file, else the first directory holding a
// client secret.
func (s *CredentialStore) tokenStore() (TokenStore, error) {
	if s.opts.Store != nil {
		return s.opts.Store, nil
	}
	if dir := s.firstDirWith(s.opts.TokenFile); dir != "" {
		return NewFileTokenStore(filepath.Join(dir, s.opts.TokenFile)), nil
	}
	if dir := s.firstDirWith(s.opts.ClientSecretFile); dir != "" {
		return NewFileTokenStore(filepath.Join(dir, s.opts.TokenFile)), nil
	}
	return nil, fmt.Errorf("%w: no %s or %s in %v", ErrCredentialsMissing, s.opts.TokenFile, s.opts.ClientSecretFile, s.dirs)
}

// oauthConfig loads the client secret, preferring the one next to the
// token. It returns nil without error when no client secret exists.
func (s *CredentialStore) oauthConfig(store TokenStore) (*oauth2.Config, error) {
	path := ""
	if fileStore, ok := store.(*FileTokenStore); ok {
		candidate := filepath.Join(filepath.Dir(fileStore.Location()), s.opts.ClientSecretFile)
		if fileExists(candidate) {
			path = candidate
		}
	}
	if path == "" {
		if dir := s.firstDirWith(s.opts.ClientSecretFile); dir != "" {
			path = filepath.Join(dir, s.opts.ClientSecretFile)
		}
	}
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read client secret: %w", err)
	}
	cfg, err := google.ConfigFromJSON(data, s.opts.Scopes...)
	if err != nil {
		return nil, fmt.Errorf("failed to parse client secret %s: %w", path, err)
	}
	return cfg, nil
}

func (s *CredentialStore) firstDirWith(name string) string {
	for _, d := range s.dirs {
		if fileExists(filepath.Join(d, name)) {
			return d
		}
	}
	return ""
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular()
}

func slogToken(tok *oauth2.Token) slog.Attr {
	return slog.Group("token",
		slog.String("access", logging.SanitizeToken(tok.AccessToken)),
		slog.Time("expiry", tok.Expiry))
}
