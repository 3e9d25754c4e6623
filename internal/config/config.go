// Package config loads mailwarm's configuration from defaults, an optional
// YAML file and MAILWARM_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, with dots in keys
// replaced by underscores: auth.token_store becomes MAILWARM_AUTH_TOKEN_STORE.
const EnvPrefix = "MAILWARM"

// Token store backends.
const (
	TokenStoreFile    = "file"
	TokenStoreKeyring = "keyring"
)

// AuthConfig controls where credentials are looked up and persisted.
type AuthConfig struct {
	// Dirs is the ordered list of directories searched for the token and
	// client-secret files.
	Dirs []string `mapstructure:"dirs" yaml:"dirs"`

	TokenFile        string   `mapstructure:"token_file" yaml:"token_file"`
	ClientSecretFile string   `mapstructure:"client_secret_file" yaml:"client_secret_file"`
	Scopes           []string `mapstructure:"scopes" yaml:"scopes"`

	// TokenStore is "file" or "keyring".
	TokenStore     string `mapstructure:"token_store" yaml:"token_store"`
	KeyringService string `mapstructure:"keyring_service" yaml:"keyring_service"`
}

// GmailConfig controls the provider client.
type GmailConfig struct {
	// Endpoint overrides the Gmail API base URL. Empty means the public API.
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`
	User     string `mapstructure:"user" yaml:"user"`
}

// LogConfig controls the process logger.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// Config is the top-level configuration.
type Config struct {
	Auth  AuthConfig  `mapstructure:"auth" yaml:"auth"`
	Gmail GmailConfig `mapstructure:"gmail" yaml:"gmail"`
	Log   LogConfig   `mapstructure:"log" yaml:"log"`
}

// DefaultScopes are the Gmail scopes requested when none are configured.
var DefaultScopes = []string{
	"https://www.googleapis.com/auth/gmail.readonly",
	"https://www.googleapis.com/auth/gmail.send",
	"https://www.googleapis.com/auth/gmail.modify",
}

// DefaultAuthDirs is the credential search order: the current location first,
// then the legacy one.
var DefaultAuthDirs = []string{
	"~/.fgp/auth/google",
	"~/.wolfie-gateway/auth/google",
}

// DefaultPath returns ~/.config/mailwarm/config.yaml.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "mailwarm", "config.yaml")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("auth.dirs", DefaultAuthDirs)
	v.SetDefault("auth.token_file", "gmail_token.json")
	v.SetDefault("auth.client_secret_file", "credentials.json")
	v.SetDefault("auth.scopes", DefaultScopes)
	v.SetDefault("auth.token_store", TokenStoreFile)
	v.SetDefault("auth.keyring_service", "mailwarm")
	v.SetDefault("gmail.endpoint", "")
	v.SetDefault("gmail.user", "me")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Load reads the configuration. An empty path or a missing file yields the
// defaults with environment overrides applied.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("reading config %s: %w", path, err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the values Load cannot default.
func (c *Config) Validate() error {
	if len(c.Auth.Dirs) == 0 {
		return errors.New("auth.dirs must name at least one directory")
	}
	if c.Auth.TokenFile == "" || c.Auth.ClientSecretFile == "" {
		return errors.New("auth.token_file and auth.client_secret_file must be set")
	}
	switch c.Auth.TokenStore {
	case TokenStoreFile, TokenStoreKeyring:
	default:
		return fmt.Errorf("invalid auth.token_store %q, must be one of: file, keyring", c.Auth.TokenStore)
	}
	if c.Gmail.User == "" {
		return errors.New("gmail.user must be set")
	}
	return nil
}

// ExpandPath replaces a leading "~" with the user's home directory.
func ExpandPath(p string) (string, error) {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~")), nil
}
