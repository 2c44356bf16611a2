package main

import (
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hyperjump/ragstore/internal/cli"
	"github.com/hyperjump/ragstore/internal/models"
	rserr "github.com/hyperjump/ragstore/pkg/errors"
)

func newSearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search [flags] <query>",
		Short: "Search stored entries",
		Long: `Search the configured store. Hybrid stores (local, weaviate) fuse vector
and keyword relevance weighted by --alpha; other stores run a dense search.

The query is all remaining arguments joined by spaces, so multi-word queries
work with or without quotes.`,
		Example: `  ragstore search machine learning
  ragstore search --k 10 --alpha 0.2 "attention heads"
  ragstore search --filter source=/docs/paper.pdf --output json transformers
  ragstore search --server http://localhost:8000 retrieval`,
		Args: cobra.MinimumNArgs(1),
		RunE: runSearch,
	}
	cmd.Flags().Int("k", 0, "number of results (default from config)")
	cmd.Flags().Float64("alpha", models.DefaultAlpha, "hybrid vector weight in [0,1]; 1 is pure vector, 0 pure keyword")
	cmd.Flags().StringArray("filter", nil, "metadata filter key=value (repeatable)")
	cmd.Flags().StringP("output", "o", string(cli.OutputText), "output format: text, compact or json")
	cmd.Flags().String("server", "", "query a running server at this URL instead of opening the store")
	return cmd
}

// buildSearchQuery joins all positional args with spaces so multi-word queries
// work the same with or without shell quoting.
func buildSearchQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := buildSearchQuery(args)
	if query == "" {
		return rserr.New(rserr.CodeInputEmptyQuery, "query must not be empty")
	}
	outputFlag, _ := cmd.Flags().GetString("output")
	format, err := cli.ParseOutputFormat(outputFlag)
	if err != nil {
		return err
	}
	filterPairs, _ := cmd.Flags().GetStringArray("filter")
	filter, err := cli.ParseFilter(filterPairs)
	if err != nil {
		return err
	}
	k, _ := cmd.Flags().GetInt("k")
	searchQuery := &models.SearchQuery{Query: query, K: k, Filter: filter}
	if cmd.Flags().Changed("alpha") {
		alpha, _ := cmd.Flags().GetFloat64("alpha")
		searchQuery.Alpha = &alpha
	}

	var response *models.SearchResponse
	if serverURL, _ := cmd.Flags().GetString("server"); serverURL != "" {
		// A running server holds the local store's locks; go through its API.
		response = &models.SearchResponse{}
		if err := newAPIClient(serverURL).do(cmd.Context(), http.MethodPost, "/api/v1/search", searchQuery, response, http.StatusOK); err != nil {
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
		response, err = components.Engine.Query(cmd.Context(), searchQuery)
		if err != nil {
			return err
		}
	}
	return cli.WriteSearchResults(cmd.OutOrStdout(), response, format)
}
