package google

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func TestPersistingTokenSource_ValidTokenIsReused(t *testing.T) {
	srv := newTokenServer(t)
	tok := validToken()
	ts := NewPersistingTokenSource(context.Background(), nil, tok, nil, nil, nil)

	got, err := ts.Token()
	require.NoError(t, err)
	assert.Same(t, tok, got)
	assert.Zero(t, srv.hits.Load())
}

func TestPersistingTokenSource_ConcurrentRefresh(t *testing.T) {
	srv := newTokenServer(t)
	srv.delay = 50 * time.Millisecond

	dir := t.TempDir()
	writeSecret(t, dir, srv.URL)
	oauthConfig := loadTestConfig(t, dir)
	store := NewFileTokenStore(filepath.Join(dir, testTokenFile))
	require.NoError(t, store.Save(expiredToken()))

	// cancelling the creating context must not break later refreshes
	ctx, cancel := context.WithCancel(context.Background())
	ts := NewPersistingTokenSource(ctx, oauthConfig, expiredToken(), store, nil, nil)
	cancel()

	const callers = 16
	var wg sync.WaitGroup
	tokens := make([]*oauth2.Token, callers)
	errs := make([]error, callers)
	for i := range callers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tokens[i], errs[i] = ts.Token()
		}(i)
	}
	wg.Wait()

	for i := range callers {
		require.NoError(t, errs[i])
		assert.Equal(t, "refreshed-access", tokens[i].AccessToken)
	}
	assert.Equal(t, int32(1), srv.hits.Load(), "exactly one refresh for concurrent callers")

	persisted, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "refreshed-access", persisted.AccessToken)
}

func TestPersistingTokenSource_ExpiredWithoutConfig(t *testing.T) {
	ts := NewPersistingTokenSource(context.Background(), nil, expiredToken(), nil, nil, nil)
	_, err := ts.Token()
	assert.ErrorIs(t, err, ErrCredentialsMissing)
}

func loadTestConfig(t *testing.T, dir string) *oauth2.Config {
	t.Helper()
	s := newStore(t, dir)
	cfg, err := s.oauthConfig(NewFileTokenStore(filepath.Join(dir, testTokenFile)))
	require.NoError(t, err)
	require.NotNil(t, cfg)
	return cfg
}
