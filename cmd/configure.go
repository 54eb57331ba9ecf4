package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ooi-datateam/ingestctl/internal/config"
	"github.com/ooi-datateam/ingestctl/internal/output"
	"github.com/ooi-datateam/ingestctl/internal/refdes"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the ingestctl config file",
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file path",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintln(cmd.OutOrStdout(), configFilePath())
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file with the default settings",
	Example: `  ingestctl config init --account jdoe@example.org
  ingestctl config init --force`,
	RunE: runConfigInit,
}

var configViewCmd = &cobra.Command{
	Use:   "view",
	Short: "Show the resolved configuration (secrets masked)",
	RunE:  runConfigView,
}

var configAccount string

// configFile is the on-disk layout of config.yaml; keys match the viper keys.
type configFile struct {
	BaseURL        string   `json:"base-url" yaml:"base-url"`
	Timeout        string   `json:"timeout" yaml:"timeout"`
	APIKey         string   `json:"api-key,omitempty" yaml:"api-key,omitempty"`
	Token          string   `json:"token,omitempty" yaml:"token,omitempty"`
	Account        string   `json:"account,omitempty" yaml:"account,omitempty"`
	Username       string   `json:"username,omitempty" yaml:"username,omitempty"`
	Concurrency    int      `json:"concurrency" yaml:"concurrency"`
	RateLimit      float64  `json:"rate-limit" yaml:"rate-limit"`
	HistoryDB      string   `json:"history-db,omitempty" yaml:"history-db,omitempty"`
	Exclusions     []string `json:"exclusions" yaml:"exclusions"`
	WildcardRefDes []string `json:"wildcard-refdes" yaml:"wildcard-refdes"`
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configPathCmd)

	configInitCmd.Flags().BoolVarP(&forceFlag, "force", "f", false, "Overwrite an existing config file")
	configInitCmd.Flags().StringVar(&configAccount, "account", "", "OOINet account used as ingest username and annotation source")
	configCmd.AddCommand(configInitCmd)

	configCmd.AddCommand(configViewCmd)
}

func configFilePath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return config.GetConfigPath()
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configFilePath()
	if _, err := os.Stat(path); err == nil && !forceFlag {
		return fmt.Errorf("%s already exists; pass --force to overwrite", path)
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	if cfgFile == "" {
		if err := config.EnsureConfigDir(); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	data, err := yaml.Marshal(configFile{
		BaseURL:        config.DefaultBaseURL,
		Timeout:        config.DefaultTimeout.String(),
		Account:        configAccount,
		Concurrency:    1,
		Exclusions:     refdes.DefaultExclusions,
		WildcardRefDes: refdes.DefaultWildcardRefDes,
	})
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
	return nil
}

func runConfigView(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	view := configFile{
		BaseURL:        cfg.BaseURL,
		Timeout:        cfg.Timeout.String(),
		APIKey:         mask(cfg.APIKey),
		Token:          mask(cfg.Token),
		Account:        cfg.Account,
		Username:       cfg.Username,
		Concurrency:    cfg.Concurrency,
		RateLimit:      cfg.RateLimit,
		HistoryDB:      cfg.HistoryDB,
		Exclusions:     cfg.Exclusions,
		WildcardRefDes: cfg.WildcardRefDes,
	}
	return output.NewFormatter(output.FormatYAML, nil, nil).Write(cmd.OutOrStdout(), view)
}

// mask keeps the first four characters of a secret.
func mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 4 {
		return strings.Repeat("*", len(s))
	}
	return s[:4] + strings.Repeat("*", len(s)-4)
}
