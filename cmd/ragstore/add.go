package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hyperjump/ragstore/internal/cli"
	"github.com/hyperjump/ragstore/internal/models"
	rserr "github.com/hyperjump/ragstore/pkg/errors"
)

func newAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add [flags] [file-or-directory...]",
		Short: "Add files, directories or inline text",
		Long: `Add chunks documents into the configured store.

Files are extracted by extension; directories are walked using the watch
extensions. --text adds inline documents, with --meta key=value metadata
applied to each of them.`,
		Example: `  ragstore add notes.md papers/
  ragstore add --text "Transformers use self attention." --meta source=inline`,
		RunE: runAdd,
	}
	cmd.Flags().StringArray("text", nil, "inline document text (repeatable)")
	cmd.Flags().StringArray("meta", nil, "metadata key=value for inline documents (repeatable)")
	return cmd
}

func runAdd(cmd *cobra.Command, args []string) error {
	texts, _ := cmd.Flags().GetStringArray("text")
	metaPairs, _ := cmd.Flags().GetStringArray("meta")
	if len(args) == 0 && len(texts) == 0 {
		return rserr.New(rserr.CodeInputEmptyDocument, "nothing to add: pass paths or --text")
	}
	meta, err := cli.ParseFilter(metaPairs)
	if err != nil {
		return err
	}

	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	components, err := initializeComponents(ctx, cfg)
	if err != nil {
		return err
	}
	defer components.Close()
	out := cmd.OutOrStdout()

	if len(texts) > 0 {
		docs := make([]models.Document, len(texts))
		for i, text := range texts {
			docs[i] = models.Document{Text: text, Metadata: meta}
		}
		ids, err := components.Engine.AddDocuments(ctx, docs)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(out, "Added %d document(s) as %d chunk(s)\n", len(docs), len(ids))
	}

	for _, path := range args {
		info, err := os.Stat(path)
		if err != nil {
			return rserr.Wrap(err, rserr.CodeInputUnsupported, "cannot read path", rserr.Field("path", path))
		}
		if info.IsDir() {
			n, err := components.Indexer.IndexDirectory(ctx, path, cfg.Watch.Extensions)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(out, "Indexed %d file(s) from %s\n", n, path)
			continue
		}
		// A named file is indexed regardless of the watch extensions.
		ids, err := components.Indexer.IndexFile(ctx, path, nil)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(out, "Indexed %s as %d chunk(s)\n", path, len(ids))
	}
	return nil
}
