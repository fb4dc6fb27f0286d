package platform

import (
	"fmt"
	"os"
	"path/filepath"
)

// RootIndicators mark a project root: a .strata directory or a strata config file.
var RootIndicators = []string{".strata", "strata.yaml", "strata.yml"}

// FindRoot recursively looks upwards for a project root indicator.
// If found, returns the absolute path to the root.
// If not found (reached root of FS), returns an error.
func FindRoot(startDir string) (string, error) {
	abs, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	dir := abs
	for {
		for _, name := range RootIndicators {
			if hasFile(dir, name) {
				return dir, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached filesystem root
			break
		}
		dir = parent
	}

	return "", fmt.Errorf("root not found")
}

func hasFile(dir, name string) bool {
	path := filepath.Join(dir, name)
	_, err := os.Stat(path)
	return err == nil
}
