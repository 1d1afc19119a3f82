// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the paper-digest CLI. A run searches
// arXiv for each configured keyword set, summarizes new papers and posts
// the summaries, recording every finished paper so it is never handled
// twice.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/paper-digest/internal/config"
	"github.com/pdiddy/paper-digest/internal/secrets"
	"github.com/pdiddy/paper-digest/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds API keys loaded from .secrets/ at startup.
var loadedSecrets secrets.Secrets

// rootCmd is the base command for the paper-digest CLI.
var rootCmd = &cobra.Command{
	Use:   "paper-digest",
	Short: "Summarize and post new arXiv papers for keyword sets",
	Long: `paper-digest searches arXiv for every configured search set, downloads
new papers, extracts their text, summarizes it with an LLM and posts the
summary. An idempotency ledger records every finished paper so that a paper
matched by several sets, or seen again on a later run, is processed once.

Typical use is a scheduled "paper-digest run". The ledger and manifest
subcommands inspect the state a run leaves behind.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		s, err := secrets.Load(".secrets/")
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			fmt.Fprintf(os.Stderr, "Loaded secrets: %v\n", s.Keys())
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./paper-digest.yaml or ~/.config/paper-digest/paper-digest.yaml)")
}

func initConfig() {
	config.SetDefaults(viper.GetViper())

	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("paper-digest")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "paper-digest"))
		}
	}

	viper.SetEnvPrefix("PAPER_DIGEST")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// loadConfig validates the merged settings.
func loadConfig() (*types.Config, error) {
	return config.Load(viper.GetViper(), loadedSecrets)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
