package main

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	rserr "github.com/hyperjump/ragstore/pkg/errors"
)

func newDeleteAllCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete-all",
		Short: "Delete every stored entry",
		Long:  "Delete every entry from the configured store. The schema or index itself is kept.",
		Args:  cobra.NoArgs,
		RunE:  runDeleteAll,
	}
	cmd.Flags().Bool("yes", false, "confirm deletion")
	cmd.Flags().String("server", "", "delete through a running server at this URL")
	return cmd
}

func runDeleteAll(cmd *cobra.Command, _ []string) error {
	if yes, _ := cmd.Flags().GetBool("yes"); !yes {
		return rserr.New(rserr.CodeConfigInvalidValue, "refusing to delete all entries without --yes")
	}
	out := cmd.OutOrStdout()

	if serverURL, _ := cmd.Flags().GetString("server"); serverURL != "" {
		if err := newAPIClient(serverURL).do(cmd.Context(), http.MethodDelete, "/api/v1/documents", nil, nil, http.StatusOK); err != nil {
			return err
		}
		_, _ = fmt.Fprintln(out, "All entries deleted")
		return nil
	}

	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	components, err := initializeComponents(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer components.Close()
	if err := components.Engine.DeleteAll(cmd.Context()); err != nil {
		return err
	}
	_, _ = fmt.Fprintln(out, "All entries deleted")
	return nil
}
