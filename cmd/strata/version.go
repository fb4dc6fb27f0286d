package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/strata"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of strata",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("strata version %s\n", strings.TrimSpace(strata.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
