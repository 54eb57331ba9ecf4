package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
)

const sampleNetrc = `# OOI credentials
machine ooinet.oceanobservatories.org
    login OOIAPI-KEY123
    account someone@example.org
    password TOKEN456

macdef init
cd /pub
quit

machine ooinet-dev-01.oceanobservatories.org login DEVKEY password DEVTOKEN
default login anonymous password guest
`

func TestParseNetrc(t *testing.T) {
	n, err := ParseNetrc(sampleNetrc)
	if err != nil {
		t.Fatalf("ParseNetrc() error = %v", err)
	}

	m, ok := Lookup(n, "ooinet.oceanobservatories.org")
	if !ok || m.Login != "OOIAPI-KEY123" || m.Account != "someone@example.org" || m.Password != "TOKEN456" {
		t.Fatalf("unexpected production entry: %+v", m)
	}
	m, ok = Lookup(n, "OOINET-DEV-01.oceanobservatories.org")
	if !ok || m.Login != "DEVKEY" || m.Password != "DEVTOKEN" {
		t.Fatalf("unexpected dev entry: %+v", m)
	}
	m, ok = Lookup(n, "elsewhere.example.org")
	if !ok || m.Login != "anonymous" {
		t.Fatalf("expected default entry, got %+v", m)
	}
}

func TestLookupWithoutDefault(t *testing.T) {
	n, err := ParseNetrc("machine ooinet.oceanobservatories.org login K password T\n")
	if err != nil {
		t.Fatalf("ParseNetrc() error = %v", err)
	}
	if m, ok := Lookup(n, "elsewhere.example.org"); ok {
		t.Fatalf("Lookup() = %+v, want no entry", m)
	}
	if _, ok := Lookup(nil, "ooinet.oceanobservatories.org"); ok {
		t.Fatalf("Lookup(nil) ok = true")
	}
}

func TestParseNetrcFileMissing(t *testing.T) {
	_, err := ParseNetrcFile(filepath.Join(t.TempDir(), "absent"))
	if !os.IsNotExist(err) {
		t.Fatalf("ParseNetrcFile() error = %v, want not-exist", err)
	}
}

func resetViper(t *testing.T) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
}

func TestLoadDefaults(t *testing.T) {
	resetViper(t)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BaseURL != DefaultBaseURL || cfg.Timeout != DefaultTimeout || cfg.Concurrency != 1 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if len(cfg.Exclusions) == 0 || len(cfg.WildcardRefDes) != 8 {
		t.Fatalf("classifier defaults not applied: %+v", cfg)
	}
	if !cfg.Classifier().Classify("RS01SBPS-PC01A-4A-CTDPFA103").Excluded {
		t.Fatalf("default classifier should exclude RS designators")
	}
}

func TestLoadOverrides(t *testing.T) {
	resetViper(t)
	viper.Set("base-url", "http://localhost:9000/")
	viper.Set("timeout", "5s")
	viper.Set("concurrency", 4)
	viper.Set("exclusions", []string{"CE09"})

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BaseURL != "http://localhost:9000" || cfg.Timeout != 5*time.Second || cfg.Concurrency != 4 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.Classifier().Classify("RS01SBPS-PC01A-4A-CTDPFA103").Excluded {
		t.Fatalf("configured exclusions should replace the defaults")
	}

	viper.Set("base-url", "not a url")
	if _, err := Load(); err == nil {
		t.Fatalf("Load() error = nil for invalid base-url")
	}
}

func TestCredentialsFromNetrc(t *testing.T) {
	path := filepath.Join(t.TempDir(), "netrc")
	if err := os.WriteFile(path, []byte(sampleNetrc), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg := &Config{BaseURL: "https://ooinet.oceanobservatories.org", NetrcPath: path}
	creds, err := cfg.Credentials()
	if err != nil {
		t.Fatalf("Credentials() error = %v", err)
	}
	if creds.APIKey != "OOIAPI-KEY123" || creds.Token != "TOKEN456" || creds.Account != "someone@example.org" {
		t.Fatalf("unexpected credentials: %+v", creds)
	}
	if got := cfg.IngestUsername(creds); got != "someone@example.org" {
		t.Fatalf("IngestUsername() = %q", got)
	}

	cfg.Username = "datateam"
	if got := cfg.IngestUsername(creds); got != "datateam" {
		t.Fatalf("IngestUsername() = %q, want override", got)
	}
}

func TestCredentialsPreferConfig(t *testing.T) {
	cfg := &Config{BaseURL: DefaultBaseURL, APIKey: "K", Token: "T", NetrcPath: filepath.Join(t.TempDir(), "absent")}
	creds, err := cfg.Credentials()
	if err != nil {
		t.Fatalf("Credentials() error = %v", err)
	}
	if creds.APIKey != "K" || creds.Token != "T" {
		t.Fatalf("unexpected credentials: %+v", creds)
	}
}

func TestCredentialsMissing(t *testing.T) {
	cfg := &Config{BaseURL: DefaultBaseURL, NetrcPath: filepath.Join(t.TempDir(), "absent")}
	if _, err := cfg.Credentials(); !errors.Is(err, ErrNoCredentials) {
		t.Fatalf("Credentials() error = %v, want ErrNoCredentials", err)
	}
}

func TestLoadEnvFiles(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, "custom.env")
	if err := os.WriteFile(envFile, []byte("INGESTCTL_TEST_VALUE=from-file\n"), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	t.Setenv("ENV_FILE", envFile)
	t.Setenv("INGESTCTL_TEST_VALUE", "")
	os.Unsetenv("INGESTCTL_TEST_VALUE")

	if err := LoadEnvFiles(); err != nil {
		t.Fatalf("LoadEnvFiles() error = %v", err)
	}
	if got := os.Getenv("INGESTCTL_TEST_VALUE"); got != "from-file" {
		t.Fatalf("INGESTCTL_TEST_VALUE = %q", got)
	}
}
