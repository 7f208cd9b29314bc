package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var ingestSkipHidden bool

var ingestCmd = &cobra.Command{
	Use:     "ingest [path...]",
	Aliases: []string{"process"},
	Short:   "Submit invoice files or directories to the pipeline",
	Long: `Submit one or more files or directories.

Directories are walked recursively; files with unsupported extensions are
skipped. Requires a running stage processor (a serve instance for the http
backend, or the topic queue for the topic backend).`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		a, err := buildApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()
		a.startConsumer(ctx)

		for _, path := range args {
			info, err := os.Stat(path)
			if err != nil {
				return err
			}
			if info.IsDir() {
				results, stats, err := a.ingestor.IngestDirectory(ctx, path, ingestSkipHidden)
				if err != nil {
					return err
				}
				printJSON(map[string]any{"root": path, "stats": stats, "results": results})
				continue
			}
			res, err := a.ingestor.IngestPath(ctx, path)
			if err != nil {
				return fmt.Errorf("ingest %s: %w", path, err)
			}
			printJSON(res)
		}
		return nil
	},
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func init() {
	ingestCmd.Flags().BoolVar(&ingestSkipHidden, "skip-hidden", true, "skip hidden files and directories")
}
