package google

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

const (
	testTokenFile  = "gmail_token.json"
	testSecretFile = "credentials.json"
)

// tokenServer fakes the OAuth2 token endpoint.
type tokenServer struct {
	*httptest.Server
	hits   atomic.Int32
	status int
	delay  time.Duration
}

func newTokenServer(t *testing.T) *tokenServer {
	t.Helper()
	ts := &tokenServer{status: http.StatusOK}
	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ts.hits.Add(1)
		if ts.delay > 0 {
			time.Sleep(ts.delay)
		}
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if ts.status != http.StatusOK {
			w.WriteHeader(ts.status)
			_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"Token has been expired or revoked."}`))
			return
		}
		access := "refreshed-access"
		if r.Form.Get("grant_type") == "authorization_code" {
			access = "exchanged-access-" + r.Form.Get("code")
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  access,
			"token_type":    "Bearer",
			"expires_in":    3600,
			"refresh_token": "",
		})
	}))
	t.Cleanup(ts.Close)
	return ts
}

func writeSecret(t *testing.T, dir, tokenURL string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o700))
	secret := map[string]any{
		"installed": map[string]any{
			"client_id":     "test-client.apps.googleusercontent.com",
			"client_secret": "test-secret",
			"auth_uri":      "https://accounts.example.com/o/oauth2/auth",
			"token_uri":     tokenURL,
			"redirect_uris": []string{"http://localhost"},
		},
	}
	data, err := json.Marshal(secret)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, testSecretFile), data, 0o600))
}

func writeToken(t *testing.T, dir string, tok *oauth2.Token) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o700))
	require.NoError(t, NewFileTokenStore(filepath.Join(dir, testTokenFile)).Save(tok))
}

func readToken(t *testing.T, dir string) *oauth2.Token {
	t.Helper()
	tok, err := NewFileTokenStore(filepath.Join(dir, testTokenFile)).Load()
	require.NoError(t, err)
	return tok
}

func validToken() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  "valid-access",
		TokenType:    "Bearer",
		RefreshToken: "refresh-1",
		Expiry:       time.Now().Add(time.Hour),
	}
}

func expiredToken() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  "stale-access",
		TokenType:    "Bearer",
		RefreshToken: "refresh-1",
		Expiry:       time.Now().Add(-time.Hour),
	}
}

func newStore(t *testing.T, dirs ...string) *CredentialStore {
	t.Helper()
	s, err := NewCredentialStore(Options{
		Dirs:             dirs,
		TokenFile:        testTokenFile,
		ClientSecretFile: testSecretFile,
		Scopes:           []string{"https://www.googleapis.com/auth/gmail.readonly"},
	})
	require.NoError(t, err)
	return s
}

// failingStore accepts loads but rejects every save.
type failingStore struct {
	tok *oauth2.Token
}

func (f *failingStore) Load() (*oauth2.Token, error) { return f.tok, nil }
func (f *failingStore) Save(*oauth2.Token) error     { return os.ErrPermission }
func (f *failingStore) Location() string             { return "failing" }
