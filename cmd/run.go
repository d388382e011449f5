package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type runSummary struct {
	TermsheetID   string `json:"termsheet_id"`
	Status        string `json:"status"`
	Error         string `json:"error,omitempty"`
	Matches       int    `json:"matches"`
	Discrepancies int    `json:"discrepancies"`
	Highlighted   int    `json:"highlighted"`
	Notified      int    `json:"notified"`
}

var runCmd = &cobra.Command{
	Use:   "run <termsheet-id>...",
	Short: "Run the full pipeline for stored termsheets",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx, "run", nil)
		if err != nil {
			return err
		}
		defer env.Close()

		results := env.Pipeline.RunBatch(ctx, args)

		summaries := make([]runSummary, 0, len(results))
		var failed int
		for _, r := range results {
			s := runSummary{TermsheetID: r.ID, Status: "ok"}
			if r.Err != nil {
				failed++
				s.Status = "failed"
				s.Error = r.Err.Error()
			}
			if r.Result != nil {
				s.Matches = len(r.Result.Report.Matches)
				s.Discrepancies = len(r.Result.Report.Discrepancies)
				s.Notified = r.Result.Notified
				if r.Result.Highlight != nil {
					s.Highlighted = r.Result.Highlight.Highlighted
				}
			}
			summaries = append(summaries, s)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(summaries); err != nil {
			return eris.Wrap(err, "encode summary")
		}

		if failed > 0 {
			zap.L().Error("run finished with failures", zap.Int("failed", failed), zap.Int("total", len(args)))
			return eris.Errorf("%d of %d termsheets failed", failed, len(args))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
