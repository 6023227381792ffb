package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"bim-reconciler/core/match"
	"bim-reconciler/core/rowstore"

	"github.com/spf13/cobra"
)

var (
	matchElementsPath  string
	matchRowsPath      string
	matchThreshold     float64
	matchAmbiguousBand float64
	matchSummaryOnly   bool
)

// matchCmd runs the reconciliation engine offline against JSON files,
// useful for re-running a report against captured inputs when triaging a
// low match rate.
var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Build a match report from element and row JSON files",
	Long: `Reads geometry elements and schedule rows from JSON files, runs the
reconciliation engine, and prints the resulting report to stdout.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var elements []match.ModelElement
		if err := readJSONFile(matchElementsPath, &elements); err != nil {
			return fmt.Errorf("failed to read elements: %w", err)
		}

		var rows []rowstore.ExternalRow
		if err := readJSONFile(matchRowsPath, &rows); err != nil {
			return fmt.Errorf("failed to read rows: %w", err)
		}

		report := match.BuildMatchReport(elements, rows, match.Options{
			MatchThreshold:     matchThreshold,
			AmbiguousThreshold: matchAmbiguousBand,
		})

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if matchSummaryOnly {
			return enc.Encode(report.Summary())
		}
		return enc.Encode(report)
	},
}

func readJSONFile(path string, v any) error {
	if path == "" {
		return fmt.Errorf("path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func init() {
	matchCmd.Flags().StringVar(&matchElementsPath, "elements", "", "JSON file with geometry elements")
	matchCmd.Flags().StringVar(&matchRowsPath, "rows", "", "JSON file with schedule rows")
	matchCmd.Flags().Float64Var(&matchThreshold, "match-threshold", 0.85, "minimum score for a confident match")
	matchCmd.Flags().Float64Var(&matchAmbiguousBand, "ambiguous-threshold", 0.65, "minimum score for the ambiguous band")
	matchCmd.Flags().BoolVar(&matchSummaryOnly, "summary", false, "print only the report summary")
	_ = matchCmd.MarkFlagRequired("elements")
	_ = matchCmd.MarkFlagRequired("rows")

	RootCmd.AddCommand(matchCmd)
}
