package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/termsheet-cli/internal/pipeline"
)

var (
	compareA      string
	compareB      string
	compareOutDir string
)

var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Compare a structured sheet against a mapsheet",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx, "compare", nil)
		if err != nil {
			return err
		}
		defer env.Close()

		if err := os.MkdirAll(compareOutDir, 0o755); err != nil {
			return eris.Wrapf(err, "create %s", compareOutDir)
		}

		tr := pipeline.NewTracker("compare")
		rows, err := env.Pipeline.CompareFiles(ctx, tr, compareA, compareB)
		if err != nil {
			return err
		}
		report, xlsxPath, err := pipeline.WriteValidation(compareOutDir, rows)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d matches, %d discrepancies\n",
			xlsxPath, len(report.Matches), len(report.Discrepancies))
		return nil
	},
}

func init() {
	compareCmd.Flags().StringVar(&compareA, "structured", "", "structured sheet (csv or xlsx)")
	compareCmd.Flags().StringVar(&compareB, "mapsheet", "", "reference mapsheet (csv or xlsx)")
	compareCmd.Flags().StringVar(&compareOutDir, "out-dir", ".", "directory for validation_sheet.xlsx and the JSON reports")
	_ = compareCmd.MarkFlagRequired("structured")
	_ = compareCmd.MarkFlagRequired("mapsheet")
	rootCmd.AddCommand(compareCmd)
}
