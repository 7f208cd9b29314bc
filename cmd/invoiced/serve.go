package main

import (
	"github.com/spf13/cobra"

	"github.com/scanvoice/invoice-pipeline/internal/ingest"
	"github.com/scanvoice/invoice-pipeline/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the pipeline server",
	Long: `Start the HTTP server and the pipeline workers.

With DISPATCH_BACKEND=http the server processes stages posted back to its
own /internal/pipeline/stage endpoint. With DISPATCH_BACKEND=topic a queue
consumer is started alongside the server.

When INGEST_ROOTS is set the inbox watcher also runs and submits every
invoice file dropped into those directories.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		a, err := buildApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		a.startConsumer(ctx)

		if len(a.cfg.Ingest.Roots) > 0 {
			go func() {
				err := a.ingestor.Watch(ctx, ingest.WatchConfig{
					Roots:       a.cfg.Ingest.Roots,
					InitialScan: a.cfg.Ingest.InitialScan,
					Debounce:    a.cfg.Ingest.Debounce,
				})
				if err != nil && ctx.Err() == nil {
					a.logger.Error("serve.watcher_stopped", "error", err)
				}
			}()
		}

		srv := server.New(
			a.cfg.Server.Addr,
			a.repo,
			a.coordinator,
			a.corrections,
			a.exporter,
			a.ingestor,
			a.logger,
		)
		return srv.Start(ctx)
	},
}
