package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ooi-datateam/ingestctl/internal/refdes"
)

const (
	DefaultBaseURL = "https://ooinet.oceanobservatories.org"
	DefaultTimeout = 60 * time.Second
)

// ErrNoCredentials is returned when neither config nor netrc provide an API key.
var ErrNoCredentials = errors.New("no M2M credentials: set api-key/token or add a netrc entry for the host")

// Config holds the application configuration
type Config struct {
	BaseURL        string
	Timeout        time.Duration
	Output         string
	APIKey         string
	Token          string
	Account        string
	Username       string
	NetrcPath      string
	Exclusions     []string
	WildcardRefDes []string
	Concurrency    int
	RateLimit      float64
	HistoryDB      string
}

// Credentials authenticate against the M2M API. Account is the OOINet user name or
// e-mail, used as the ingest username and the annotation source.
type Credentials struct {
	APIKey  string
	Token   string
	Account string
}

// Load loads the configuration from viper (flags, config file and environment).
func Load() (*Config, error) {
	cfg := &Config{
		BaseURL:        strings.TrimSuffix(viper.GetString("base-url"), "/"),
		Timeout:        viper.GetDuration("timeout"),
		Output:         viper.GetString("output"),
		APIKey:         viper.GetString("api-key"),
		Token:          viper.GetString("token"),
		Account:        viper.GetString("account"),
		Username:       viper.GetString("username"),
		NetrcPath:      viper.GetString("netrc"),
		Exclusions:     viper.GetStringSlice("exclusions"),
		WildcardRefDes: viper.GetStringSlice("wildcard-refdes"),
		Concurrency:    viper.GetInt("concurrency"),
		RateLimit:      viper.GetFloat64("rate-limit"),
		HistoryDB:      viper.GetString("history-db"),
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if _, err := url.ParseRequestURI(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid base-url %q: %w", cfg.BaseURL, err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if len(cfg.Exclusions) == 0 {
		cfg.Exclusions = refdes.DefaultExclusions
	}
	if len(cfg.WildcardRefDes) == 0 {
		cfg.WildcardRefDes = refdes.DefaultWildcardRefDes
	}
	if cfg.HistoryDB == "" {
		cfg.HistoryDB = filepath.Join(GetConfigDir(), "history.db")
	}
	return cfg, nil
}

// Classifier builds the reference designator classifier from the configured lists.
func (c *Config) Classifier() *refdes.Classifier {
	return refdes.NewClassifier(c.Exclusions, c.WildcardRefDes)
}

// Credentials returns the configured credentials, falling back to the netrc entry
// whose machine is the base URL host.
func (c *Config) Credentials() (Credentials, error) {
	creds := Credentials{APIKey: c.APIKey, Token: c.Token, Account: c.Account}
	if creds.APIKey != "" && creds.Token != "" {
		return creds, nil
	}

	path := c.NetrcPath
	if path == "" {
		path = DefaultNetrcPath()
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return creds, fmt.Errorf("invalid base-url %q: %w", c.BaseURL, err)
	}

	n, err := ParseNetrcFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return creds, ErrNoCredentials
		}
		return creds, err
	}
	m, ok := Lookup(n, u.Hostname())
	if !ok {
		return creds, ErrNoCredentials
	}
	if creds.APIKey == "" {
		creds.APIKey = m.Login
	}
	if creds.Token == "" {
		creds.Token = m.Password
	}
	if creds.Account == "" {
		creds.Account = m.Account
	}
	if creds.APIKey == "" {
		return creds, ErrNoCredentials
	}
	return creds, nil
}

// IngestUsername is the username written into ingest requests.
func (c *Config) IngestUsername(creds Credentials) string {
	if c.Username != "" {
		return c.Username
	}
	return creds.Account
}

// GetConfigDir returns the directory holding config.yaml and the run history.
func GetConfigDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "ingestctl")
}

// GetConfigPath returns the default config file path
func GetConfigPath() string {
	return filepath.Join(GetConfigDir(), "config.yaml")
}

// EnsureConfigDir ensures the config directory exists
func EnsureConfigDir() error {
	return os.MkdirAll(GetConfigDir(), 0755)
}
