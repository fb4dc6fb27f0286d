package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Make committed documents visible to searches",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		m := openManager(loadConfig())
		if err := m.Refresh(context.Background()); err != nil {
			fatal("Failed to refresh", err)
		}
		fmt.Println("Indices refreshed.")
	},
}

var flushCmd = &cobra.Command{
	Use:   "flush",
	Short: "Persist index segments to disk",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		m := openManager(loadConfig())
		if err := m.Flush(context.Background()); err != nil {
			fatal("Failed to flush", err)
		}
		fmt.Println("Indices flushed.")
	},
}

func init() {
	rootCmd.AddCommand(refreshCmd)
	rootCmd.AddCommand(flushCmd)
}
