package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/aretw0/strata/pkg/ingest"
	"github.com/spf13/cobra"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Consume Kafka topics and index their messages",
	Long: `Run a consumer that routes Kafka topics to repositories.
Messages are committed to the search engine in batches; offsets are committed after each batch.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		m := openManager(cfg)

		worker, err := ingest.NewWorker(m, cfg.Ingest(slog.Default()))
		if err != nil {
			fatal("Failed to start ingest", err)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := worker.Run(ctx); err != nil {
			fatal("Ingest failed", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}
