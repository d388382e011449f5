package main

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/termsheet-cli/internal/model"
	"github.com/sells-group/termsheet-cli/internal/tabular"
)

var (
	structureInput    string
	structureMapsheet string
	structureOut      string
	structureJSON     bool
)

var structureCmd = &cobra.Command{
	Use:   "structure",
	Short: "Extract structured fields from a local document",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx, "structure", nil)
		if err != nil {
			return err
		}
		defer env.Close()

		schema := env.Schema
		if structureMapsheet != "" {
			if schema, err = tabular.ReadHeader(structureMapsheet); err != nil {
				return err
			}
		}

		spans, err := env.Decoder.Spans(ctx, structureInput, model.DetectFileType(structureInput))
		if err != nil {
			return err
		}
		out, err := env.Pipeline.Structure(ctx, filepath.Base(structureInput), spans, schema)
		if err != nil {
			return err
		}

		w := io.Writer(os.Stdout)
		if structureOut != "" {
			f, err := os.Create(structureOut)
			if err != nil {
				return eris.Wrapf(err, "create %s", structureOut)
			}
			defer f.Close() //nolint:errcheck
			w = f
		}

		if structureJSON {
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			return enc.Encode(out.Record)
		}
		return tabular.WriteCSV(w, tabular.RecordTable(out.Record, "null"))
	},
}

func init() {
	structureCmd.Flags().StringVar(&structureInput, "input", "", "document to structure (pdf, xlsx, csv, json)")
	structureCmd.Flags().StringVar(&structureMapsheet, "mapsheet", "", "mapsheet whose header row is the field schema")
	structureCmd.Flags().StringVar(&structureOut, "out", "", "output file (default stdout)")
	structureCmd.Flags().BoolVar(&structureJSON, "json", false, "write the record as JSON instead of CSV")
	_ = structureCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(structureCmd)
}
