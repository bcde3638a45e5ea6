package repo

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadSettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `token = "file-token"
timeout_seconds = 5
retry_attempts = 7
signing_key = "/home/u/.ssh/id_ed25519"
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(EnvConfig, path)
	t.Setenv(EnvToken, "")

	s, err := LoadSettings()
	if err != nil {
		t.Fatalf("LoadSettings: %v", err)
	}
	if s.Token != "file-token" || s.RetryAttempts != 7 {
		t.Fatalf("settings = %+v", s)
	}
	if s.Timeout() != 5*time.Second {
		t.Fatalf("Timeout = %v", s.Timeout())
	}
	if s.SigningKey != "/home/u/.ssh/id_ed25519" {
		t.Fatalf("signing key = %q", s.SigningKey)
	}
}

func TestLoadSettingsEnvOverridesToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(`token = "file-token"`), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(EnvConfig, path)
	t.Setenv(EnvToken, "env-token")

	s, err := LoadSettings()
	if err != nil {
		t.Fatal(err)
	}
	if s.Token != "env-token" {
		t.Fatalf("token = %q, want env-token", s.Token)
	}
}

func TestLoadSettingsMissingFile(t *testing.T) {
	t.Setenv(EnvConfig, filepath.Join(t.TempDir(), "absent.toml"))
	t.Setenv(EnvToken, "")
	s, err := LoadSettings()
	if err != nil {
		t.Fatalf("LoadSettings on missing file: %v", err)
	}
	if s.Timeout() != 60*time.Second {
		t.Fatalf("default timeout = %v", s.Timeout())
	}
}
