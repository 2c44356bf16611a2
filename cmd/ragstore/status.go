package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"slices"

	"github.com/spf13/cobra"

	"github.com/hyperjump/ragstore/internal/store"
	rserr "github.com/hyperjump/ragstore/pkg/errors"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show store status",
		Long:  "Show the store type, dimensions, entry count and disk usage, directly or from a running server.",
		Args:  cobra.NoArgs,
		RunE:  runStatus,
	}
	cmd.Flags().String("server", "", "read status from a running server at this URL")
	cmd.Flags().StringP("output", "o", "text", "output format: text or json")
	return cmd
}

func runStatus(cmd *cobra.Command, _ []string) error {
	format, _ := cmd.Flags().GetString("output")
	if format != "text" && format != "json" {
		return rserr.New(rserr.CodeConfigInvalidValue, "unknown output format; use text or json", rserr.Field("format", format))
	}

	status := map[string]any{}
	if serverURL, _ := cmd.Flags().GetString("server"); serverURL != "" {
		if err := newAPIClient(serverURL).do(cmd.Context(), http.MethodGet, "/api/v1/status", nil, &status, http.StatusOK); err != nil {
			return err
		}
	} else {
		cfg, _, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		components, err := initializeComponents(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer components.Close()
		status["store"] = cfg.Store.Type
		status["hybrid"] = components.Engine.IsHybrid()
		status["dimensions"] = components.Store.Dimensions()
		if reporter, ok := components.Store.(store.StatsReporter); ok {
			stats, err := reporter.Stats(cmd.Context())
			if err != nil {
				return err
			}
			status["entries"] = stats.Entries
			if stats.DiskBytes > 0 {
				status["disk_usage_bytes"] = stats.DiskBytes
			}
		}
	}

	out := cmd.OutOrStdout()
	if format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(status)
	}
	keys := make([]string, 0, len(status))
	for k := range status {
		if _, nested := status[k].(map[string]any); !nested {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	for _, k := range keys {
		_, _ = fmt.Fprintf(out, "%-18s %v\n", k+":", status[k])
	}
	return nil
}
