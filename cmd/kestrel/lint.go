package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"datakite-hq/kestrel/pkg/suite"
)

var lintFlags struct {
	file   string
	dir    string
	format string
}

var lintCmd = &cobra.Command{
	Use:   "lint",
	Short: "Statically check suite files",
	Long: `Statically check suite documents without running them:
  - YAML syntax
  - expectation types against the registry
  - keyword arguments (types, ranges, regex syntax)

Column existence is a dataset-bound check and is only verified at run time.

Examples:
  # Lint a single file
  kestrel lint --file orders.yaml

  # Lint a directory
  kestrel lint --dir suites/

  # JSON output for CI
  kestrel lint --dir suites/ --format json`,
	RunE: runLint,
}

func init() {
	rootCmd.AddCommand(lintCmd)

	lintCmd.Flags().StringVarP(&lintFlags.file, "file", "f", "", "suite file to check")
	lintCmd.Flags().StringVarP(&lintFlags.dir, "dir", "d", "", "directory of suite files")
	lintCmd.Flags().StringVar(&lintFlags.format, "format", "text", "output format: text, json")
}

type lintResult struct {
	Path  string `json:"path,omitempty"`
	Suite string `json:"suite,omitempty"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

func runLint(cmd *cobra.Command, args []string) error {
	if lintFlags.file == "" && lintFlags.dir == "" {
		return fmt.Errorf("either --file or --dir must be specified")
	}

	loader := suite.NewLoader(nil)
	var results []lintResult

	if lintFlags.file != "" {
		results = append(results, lintOne(loader, lintFlags.file))
	}
	if lintFlags.dir != "" {
		suites, err := loader.LoadFromDir(lintFlags.dir)
		if err != nil {
			results = append(results, lintResult{Path: lintFlags.dir, Error: err.Error()})
		} else {
			for _, s := range suites {
				results = append(results, lintResult{Suite: s.Name, OK: true})
			}
		}
	}

	failed := false
	for _, r := range results {
		if !r.OK {
			failed = true
		}
	}

	if lintFlags.format == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(results); err != nil {
			return err
		}
	} else {
		for _, r := range results {
			if r.OK {
				name := r.Suite
				if name == "" {
					name = r.Path
				}
				fmt.Printf("OK    %s\n", name)
			} else {
				fmt.Printf("ERROR %s: %s\n", r.Path, r.Error)
			}
		}
	}

	if failed {
		os.Exit(1)
	}
	return nil
}

func lintOne(loader *suite.Loader, path string) lintResult {
	s, err := loader.LoadFromFile(path)
	if err != nil {
		return lintResult{Path: path, Error: err.Error()}
	}
	return lintResult{Path: path, Suite: s.Name, OK: true}
}
