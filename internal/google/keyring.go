package google

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/99designs/keyring"
	"golang.org/x/oauth2"
)

// KeyringTokenKey is the item key the token is stored under.
const KeyringTokenKey = "gmail-token"

// KeyringTokenStore keeps the token in the operating system keyring.
type KeyringTokenStore struct {
	ring    keyring.Keyring
	service string
	key     string
}

// OpenKeyring opens the platform keyring for service, falling back to an
// encrypted file backend under ~/.config/<service>/keyring.
func OpenKeyring(service string) (keyring.Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: service,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  "~/.config/" + service + "/keyring",
		FilePasswordFunc:         keyring.FixedStringPrompt(service + "-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

// NewKeyringTokenStore returns a store that keeps the token in ring.
func NewKeyringTokenStore(ring keyring.Keyring, service string) *KeyringTokenStore {
	return &KeyringTokenStore{ring: ring, service: service, key: KeyringTokenKey}
}

// Location identifies the keyring item.
func (s *KeyringTokenStore) Location() string {
	return "keyring:" + s.service + "/" + s.key
}

// Load reads the token from the keyring.
func (s *KeyringTokenStore) Load() (*oauth2.Token, error) {
	item, err := s.ring.Get(s.key)
	if err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return nil, fmt.Errorf("%w in %s", ErrTokenNotFound, s.Location())
		}
		return nil, fmt.Errorf("getting credential %q: %w", s.key, err)
	}

	var tok oauth2.Token
	if err := json.Unmarshal(item.Data, &tok); err != nil {
		return nil, fmt.Errorf("failed to parse token in %s: %w", s.Location(), err)
	}
	return &tok, nil
}

// Save replaces the keyring item.
func (s *KeyringTokenStore) Save(tok *oauth2.Token) error {
	if tok == nil {
		return errors.New("refusing to persist nil token")
	}
	data, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}
	err = s.ring.Set(keyring.Item{
		Key:   s.key,
		Data:  data,
		Label: s.service + " Gmail token",
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", s.key, err)
	}
	return nil
}
