package google

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/oauth2"

	"github.com/teemow/mailwarm/internal/instrumentation"
	"github.com/teemow/mailwarm/internal/logging"
)

// PersistingTokenSource is an oauth2.TokenSource that refreshes an expired
// token through the client-secret configuration and writes every refreshed
// token back to its TokenStore.
//
// One mutex guards the token: the first caller that observes an expired
// token performs the refresh while concurrent callers block and then
// receive the refreshed token.
type PersistingTokenSource struct {
	ctx     context.Context
	config  *oauth2.Config
	store   TokenStore
	logger  logging.Logger
	metrics *instrumentation.Metrics

	mu  sync.Mutex
	tok *oauth2.Token
}

// NewPersistingTokenSource returns a token source seeded with tok. config may
// be nil when no client secret is available; an expired token then yields
// ErrCredentialsMissing.
func NewPersistingTokenSource(ctx context.Context, config *oauth2.Config, tok *oauth2.Token, store TokenStore, logger logging.Logger, metrics *instrumentation.Metrics) *PersistingTokenSource {
	if logger == nil {
		logger = logging.Discard()
	}
	return &PersistingTokenSource{
		// refreshes outlive the call that created the session
		ctx:     context.WithoutCancel(ctx),
		config:  config,
		store:   store,
		logger:  logger,
		metrics: metrics,
		tok:     tok,
	}
}

// Token returns a valid token, refreshing and persisting it first if needed.
func (s *PersistingTokenSource) Token() (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tok.Valid() {
		return s.tok, nil
	}

	refreshed, err := refreshToken(s.ctx, s.config, s.tok, s.store, s.logger, s.metrics)
	if err != nil {
		return nil, err
	}
	s.tok = refreshed
	return refreshed, nil
}

// refreshToken renews tok against the token endpoint and persists the
// result. A failed persist is logged and the new token is still returned:
// the in-memory token stays usable and the next refresh retries the write.
func refreshToken(ctx context.Context, config *oauth2.Config, tok *oauth2.Token, store TokenStore, logger logging.Logger, metrics *instrumentation.Metrics) (*oauth2.Token, error) {
	if tok == nil || tok.RefreshToken == "" {
		if config == nil {
			return nil, ErrCredentialsMissing
		}
		return nil, &AuthFlowRequiredError{AuthURL: authCodeURL(config)}
	}
	if config == nil {
		return nil, fmt.Errorf("%w: token expired and no client secret is available to refresh it", ErrCredentialsMissing)
	}

	expired := *tok
	expired.AccessToken = ""
	refreshed, err := config.TokenSource(ctx, &expired).Token()
	if err != nil {
		metrics.RecordTokenRefresh(ctx, instrumentation.RefreshResultFailure)
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && re.ErrorCode != "" {
			return nil, fmt.Errorf("%w: %s: %w", ErrRefreshFailed, re.ErrorCode, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrRefreshFailed, err)
	}
	metrics.RecordTokenRefresh(ctx, instrumentation.RefreshResultSuccess)

	if store != nil {
		if err := store.Save(refreshed); err != nil {
			logger.Warn("failed to persist refreshed token",
				logging.Location(store.Location()),
				logging.Err(err))
		} else {
			logger.Debug("persisted refreshed token",
				logging.Location(store.Location()),
				slogToken(refreshed))
		}
	}
	return refreshed, nil
}

func authCodeURL(config *oauth2.Config) string {
	return config.AuthCodeURL("state-token", oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}
