package repo

import (
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/gritvcs/grit/pkg/errs"
)

// Environment variables consulted at startup.
const (
	// EnvToken supplies the remote bearer token, taking precedence
	// over the settings file.
	EnvToken = "GRIT_TOKEN"
	// EnvConfig overrides the settings file location.
	EnvConfig = "GRIT_CONFIG"
)

// Settings is the per-user settings file, TOML at
// ~/.config/grit/config.toml.
type Settings struct {
	Token          string `toml:"token"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	RetryAttempts  int    `toml:"retry_attempts"`
	SigningKey     string `toml:"signing_key"`

	// TokenPrompt, when set, is invoked once to ask the user for a
	// token after an unauthenticated request is rejected. Not part of
	// the settings file.
	TokenPrompt func() (string, error) `toml:"-"`
}

func settingsPath() (string, error) {
	if p := os.Getenv(EnvConfig); p != "" {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errs.Wrap(errs.KindUnknown, err, "locating home directory")
	}
	return filepath.Join(home, ".config", "grit", "config.toml"), nil
}

// LoadSettings reads the settings file and applies environment
// overrides. A missing file yields defaults.
func LoadSettings() (*Settings, error) {
	s := &Settings{}
	path, err := settingsPath()
	if err != nil {
		return nil, err
	}
	if _, err := toml.DecodeFile(path, s); err != nil && !os.IsNotExist(err) {
		return nil, errs.Wrap(errs.KindCorrupt, err, "settings file %s", path)
	}
	if tok := os.Getenv(EnvToken); tok != "" {
		s.Token = tok
	}
	return s, nil
}

// Timeout returns the configured per-request timeout.
func (s *Settings) Timeout() time.Duration {
	if s.TimeoutSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(s.TimeoutSeconds) * time.Second
}
