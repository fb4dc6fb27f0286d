package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/aretw0/strata/internal/config"
	"github.com/aretw0/strata/pkg/adapters/lifecycle"
	"github.com/aretw0/strata/pkg/metadata"
	"github.com/spf13/cobra"
)

var (
	mappingsJSON  bool
	mappingsWatch bool
)

var mappingsCmd = &cobra.Command{
	Use:   "mappings",
	Short: "List the document mappings found in the mapping directory",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()

		collector, err := loadCollector(cfg)
		if err != nil {
			fatal("Failed to load mappings", err)
		}
		if err := printMappings(os.Stdout, collector, mappingsJSON); err != nil {
			fatal("Failed to print mappings", err)
		}

		if !mappingsWatch {
			return
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		events, err := metadata.Watch(ctx, cfg.MappingDir,
			metadata.WithWatchPattern(cfg.MappingPattern),
			metadata.WithWatchLogger(slog.Default()),
		)
		if err != nil {
			fatal("Failed to watch mappings", err)
		}
		src := lifecycle.NewSource(events, func() (*metadata.Collector, error) {
			return loadCollector(cfg)
		})
		if err := src.Start(ctx); err != nil {
			fatal("Failed to watch mappings", err)
		}

		fmt.Fprintf(os.Stderr, "Watching %s (Ctrl+C to stop)\n", cfg.MappingDir)
		for e := range src.Events() {
			reload, ok := e.(lifecycle.Reload)
			if !ok {
				continue
			}
			if reload.Err != nil {
				slog.Error("reload failed", "path", reload.Trigger.Path, "error", reload.Err)
				continue
			}
			slog.Info("mappings reloaded", "event", reload.Trigger.String())
			if err := printMappings(os.Stdout, reload.Collector, mappingsJSON); err != nil {
				fatal("Failed to print mappings", err)
			}
		}
	},
}

func loadCollector(cfg *config.Config) (*metadata.Collector, error) {
	return metadata.Load(cfg.MappingDir,
		metadata.WithPattern(cfg.MappingPattern),
		metadata.WithLogger(slog.Default()),
	)
}

func printMappings(w io.Writer, c *metadata.Collector, asJSON bool) error {
	if asJSON {
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(c.Definitions())
	}

	descriptors := c.Descriptors()
	for _, key := range descriptors.Keys() {
		d := descriptors[key]
		line := fmt.Sprintf("%s\t%s\t%s", key, d.Type, d.Namespace)
		if d.ProxyNamespace != "" {
			line += fmt.Sprintf(" (proxy %s)", d.ProxyNamespace)
		}
		if src := c.Source(key); src != "" {
			line += "\t" + src
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

func init() {
	rootCmd.AddCommand(mappingsCmd)
	mappingsCmd.Flags().BoolVar(&mappingsJSON, "json", false, "Output in JSON format")
	mappingsCmd.Flags().BoolVarP(&mappingsWatch, "watch", "w", false, "Keep running and print mappings again when files change")
}
