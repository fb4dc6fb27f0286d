package main

import (
	"context"
	"fmt"

	"github.com/aretw0/strata/pkg/core"
	"github.com/spf13/cobra"
)

var ensureCmd = &cobra.Command{
	Use:   "ensure [repository...]",
	Short: "Create missing indices with their field mappings",
	Long:  `Create the index of every mapped storage type (or of the given repositories) if it does not exist yet.`,
	Run: func(cmd *cobra.Command, args []string) {
		m := openManager(loadConfig())
		ensurer, ok := m.Connection().(core.IndexEnsurer)
		if !ok {
			fatal("Failed to ensure indices", core.ErrUnsupported)
		}

		if len(args) == 0 {
			args = m.BundlesMapping().Keys()
		}
		repo, err := m.GetRepository(args...)
		if err != nil {
			fatal("Failed to resolve repositories", err)
		}

		ctx := context.Background()
		for _, storageType := range repo.StorageTypes() {
			mapping, _ := m.MetadataCollector().Mapping(storageType)
			if err := ensurer.EnsureIndex(ctx, storageType, mapping); err != nil {
				fatal(fmt.Sprintf("Failed to ensure %s", storageType), err)
			}
			fmt.Printf("Index for '%s' is ready.\n", storageType)
		}
	},
}

func init() {
	rootCmd.AddCommand(ensureCmd)
}
