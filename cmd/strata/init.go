package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aretw0/strata/pkg/core"
	"github.com/aretw0/strata/pkg/metadata"
	"github.com/spf13/cobra"
)

const configTemplate = `# strata configuration; every key can be overridden with STRATA_<KEY> (dots become underscores).
adapter: elastic
mapping_dir: mappings

elastic:
  addresses:
    - http://localhost:9200
  index_prefix: ""
  bulk_commit_size: 100

kafka:
  brokers: []
  group_id: strata
  topics: []
  routes: []
  batch_size: 100
  flush_interval: 5s
`

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a strata project",
	Long:  `Create strata.yaml and an example mapping descriptor in the current directory.`,
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cwd, err := os.Getwd()
		if err != nil {
			fatal("Failed to get CWD", err)
		}

		if err := initProject(cwd); err != nil {
			fatal("Failed to initialize project", err)
		}
		fmt.Println("Initialized strata project in", cwd)
	},
}

// initProject writes the config file and the example descriptor. Existing files are left untouched.
func initProject(dir string) error {
	configFile := filepath.Join(dir, "strata.yaml")
	if _, err := os.Stat(configFile); err == nil {
		return fmt.Errorf("%s already exists", configFile)
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}
	if err := os.WriteFile(configFile, []byte(configTemplate), 0644); err != nil {
		return err
	}

	example := filepath.Join(dir, "mappings", "example.yaml")
	if _, err := os.Stat(example); err == nil {
		return nil
	}
	return metadata.WriteFile(example, []metadata.Definition{{
		Repository: "example",
		Descriptor: core.Descriptor{Namespace: `App\Document\Example`, Type: "example"},
		Properties: map[string]any{
			"title": map[string]any{"type": "text"},
		},
	}})
}

func init() {
	rootCmd.AddCommand(initCmd)
}
