package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/hyperjump/ragstore/internal/config"
)

const defaultConfigPath = "/usr/local/etc/ragstore/config.yaml"

// NewRootCmd creates the root ragstore command with all subcommands registered.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "ragstore",
		Short:         "ragstore - retrieval store for RAG pipelines",
		Long:          "ragstore chunks documents into a vector store and answers dense or hybrid similarity queries.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringP("config", "c", defaultConfigPath, "config file path")
	root.PersistentFlags().String("env-file", "", "load environment variables from this file (default ./.env when present)")
	root.PersistentFlags().Bool("debug", false, "enable debug logging")

	root.AddCommand(
		newServeCmd(),
		newAddCmd(),
		newSearchCmd(),
		newDeleteAllCmd(),
		newStatusCmd(),
		newWatchCmd(),
		newVersionCmd(),
	)
	return root
}

// loadConfig loads the config named by --config. When the flag is left at its
// default, ./config.yaml is preferred if it exists (for development), and a
// missing default file falls back to built-in defaults. Returns the config and
// the path it was read from, empty when defaults were used.
func loadConfig(cmd *cobra.Command) (*config.Config, string, error) {
	envFile, _ := cmd.Flags().GetString("env-file")
	if envFile != "" {
		if err := config.LoadEnv(envFile); err != nil {
			return nil, "", err
		}
	} else if err := config.LoadEnv(); err != nil {
		return nil, "", err
	}

	path, _ := cmd.Flags().GetString("config")
	explicit := cmd.Flags().Changed("config")
	if !explicit {
		if cwd, err := os.Getwd(); err == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, err := os.Stat(fallback); err == nil {
				path = fallback
			}
		}
	}

	var (
		cfg      *config.Config
		resolved string
	)
	if _, statErr := os.Stat(path); statErr != nil && !explicit {
		cfg = &config.Config{}
		config.ApplyDefaults(cfg)
		config.ApplyEnv(cfg)
	} else {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, "", err
		}
		cfg, resolved = loaded, path
	}

	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		cfg.Debug = true
	}
	if err := config.Validate(cfg); err != nil {
		return nil, "", err
	}
	return cfg, resolved, nil
}
