package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ooi-datateam/ingestctl/internal/config"
	"github.com/ooi-datateam/ingestctl/internal/logx"
	"github.com/ooi-datateam/ingestctl/pkg/m2m"
)

var (
	cfgFile      string
	baseURL      string
	timeout      time.Duration
	verbose      bool
	outputFormat string
	forceFlag    bool

	closeLog func() error
)

var envKeyReplacer = strings.NewReplacer("-", "_")

var rootCmd = &cobra.Command{
	Use:   "ingestctl",
	Short: "ingestctl - Reconcile OOI ingestion sheets against M2M ingest jobs",
	Long: `ingestctl turns ingestion sheets into OOINet M2M ingest requests.

It compares the rows of one or more sheets with the ingest jobs already running,
lets the operator cancel, suspend or keep recurring jobs, optionally purges old
records, submits the new requests and writes a report of every call it made.`,
	Version:       "dev",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_, closer, err := logx.Init("ingestctl", logx.Options{
			Level:      viper.GetString("log-level"),
			Format:     viper.GetString("log-format"),
			File:       viper.GetString("log-file"),
			Verbose:    viper.GetBool("verbose"),
			MaxSizeMB:  viper.GetInt("log-max-size-mb"),
			MaxBackups: viper.GetInt("log-max-backups"),
			MaxAgeDays: viper.GetInt("log-max-age-days"),
		})
		if err != nil {
			return fmt.Errorf("failed to initialize logging: %w", err)
		}
		closeLog = closer
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if closeLog != nil {
			return closeLog()
		}
		return nil
	},
}

// Execute runs the root command
func Execute(version, commit, date string) error {
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built at: %s)", version, commit, date)
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file path (default: ~/.config/ingestctl/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&baseURL, "base-url", "s", config.DefaultBaseURL, "M2M API base URL")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", config.DefaultTimeout, "Request timeout")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().String("netrc", "", "netrc file holding M2M credentials (default: ~/.netrc)")
	rootCmd.PersistentFlags().Float64("rate-limit", 0, "Maximum M2M requests per second (0 = unlimited)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-file", "", "Also write JSON logs to this file, rotated")
	rootCmd.PersistentFlags().String("history-db", "", "Run history database (default: ~/.config/ingestctl/history.db)")

	// Bind to viper
	viper.BindPFlag("base-url", rootCmd.PersistentFlags().Lookup("base-url"))
	viper.BindPFlag("timeout", rootCmd.PersistentFlags().Lookup("timeout"))
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	viper.BindPFlag("netrc", rootCmd.PersistentFlags().Lookup("netrc"))
	viper.BindPFlag("rate-limit", rootCmd.PersistentFlags().Lookup("rate-limit"))
	viper.BindPFlag("history-db", rootCmd.PersistentFlags().Lookup("history-db"))
	viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log-file", rootCmd.PersistentFlags().Lookup("log-file"))
}

// initConfig reads in .env files, the config file and ENV variables if set
func initConfig() {
	if err := config.LoadEnvFiles(); err != nil {
		fmt.Fprintln(os.Stderr, "Warning:", err)
	}

	if cfgFile != "" {
		// Use config file from the flag
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(config.GetConfigDir())
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// Read environment variables, e.g. INGESTCTL_API_KEY
	viper.SetEnvPrefix("INGESTCTL")
	viper.SetEnvKeyReplacer(envKeyReplacer)
	viper.AutomaticEnv()

	// If a config file is found, read it in
	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// loadConfig resolves the configuration after flags and environment are bound.
func loadConfig() (*config.Config, error) {
	return config.Load()
}

// getAPIClient creates an M2M client from cfg and the resolved credentials.
func getAPIClient(cfg *config.Config) (*m2m.Client, config.Credentials, error) {
	creds, err := cfg.Credentials()
	if err != nil {
		return nil, creds, err
	}
	client := m2m.NewClient(
		cfg.BaseURL,
		m2m.WithTimeout(cfg.Timeout),
		m2m.WithBasicAuth(creds.APIKey, creds.Token),
		m2m.WithRateLimit(cfg.RateLimit, 1),
	)
	slog.Debug("m2m client configured", "base_url", client.BaseURL(), "rate_limit", cfg.RateLimit)
	return client, creds, nil
}

// getContext returns a context with timeout
func getContext() (context.Context, context.CancelFunc) {
	timeout := viper.GetDuration("timeout")
	if timeout == 0 {
		timeout = config.DefaultTimeout
	}
	return context.WithTimeout(context.Background(), timeout)
}
