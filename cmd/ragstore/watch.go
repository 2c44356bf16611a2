package main

import (
	"fmt"
	"net/http"
	"net/url"
	"path/filepath"

	"github.com/spf13/cobra"
)

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Manage the directories a running server watches",
	}
	cmd.PersistentFlags().String("server", "http://localhost:8000", "server URL")

	add := &cobra.Command{
		Use:   "add <path>",
		Short: "Add a directory to watch and ingest its files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			noSync, _ := cmd.Flags().GetBool("no-sync")
			body := map[string]any{"path": path, "sync": !noSync}
			if err := watchClient(cmd).do(cmd.Context(), http.MethodPost, "/api/v1/watch/directories", body, nil, http.StatusCreated); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Added: %s\n", path)
			return nil
		},
	}
	add.Flags().Bool("no-sync", false, "do not ingest files already in the directory")

	remove := &cobra.Command{
		Use:   "remove <path>",
		Short: "Stop watching a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			if err := watchClient(cmd).do(cmd.Context(), http.MethodDelete, "/api/v1/watch/directories?path="+url.QueryEscape(path), nil, nil, http.StatusOK); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Removed: %s\n", path)
			return nil
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List watched directories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var out struct {
				Directories []string `json:"directories"`
			}
			if err := watchClient(cmd).do(cmd.Context(), http.MethodGet, "/api/v1/watch/directories", nil, &out, http.StatusOK); err != nil {
				return err
			}
			for _, d := range out.Directories {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), d)
			}
			return nil
		},
	}

	cmd.AddCommand(add, remove, list)
	return cmd
}

func watchClient(cmd *cobra.Command) *apiClient {
	serverURL, _ := cmd.Flags().GetString("server")
	return newAPIClient(serverURL)
}
