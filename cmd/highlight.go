package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/termsheet-cli/internal/highlight"
	"github.com/sells-group/termsheet-cli/internal/model"
	"github.com/sells-group/termsheet-cli/internal/pipeline"
	"github.com/sells-group/termsheet-cli/internal/tabular"
)

var (
	highlightPDF         string
	highlightReference   string
	highlightOut         string
	highlightAnnotations string
)

// sidecarRenderer renders the PDF and also writes the annotations as JSON.
type sidecarRenderer struct {
	next pipeline.Renderer
	path string
}

func (r sidecarRenderer) Render(doc *model.AnnotatedDocument, src, dst string) error {
	if err := r.next.Render(doc, src, dst); err != nil {
		return err
	}
	if r.path == "" {
		return nil
	}
	f, err := os.Create(r.path)
	if err != nil {
		return eris.Wrapf(err, "create %s", r.path)
	}
	if err := highlight.WriteJSON(doc, f); err != nil {
		f.Close() //nolint:errcheck
		return err
	}
	return f.Close()
}

var highlightCmd = &cobra.Command{
	Use:   "highlight",
	Short: "Highlight discrepancies in a local PDF against a validated sheet",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		renderer := sidecarRenderer{next: highlight.NewPDFRenderer(), path: highlightAnnotations}
		env, err := initPipeline(ctx, "highlight", renderer)
		if err != nil {
			return err
		}
		defer env.Close()

		ref, err := tabular.Read(highlightReference)
		if err != nil {
			return err
		}

		tr := pipeline.NewTracker("highlight")
		res, err := env.Pipeline.HighlightFile(ctx, tr, highlightPDF, highlightOut, pipeline.ReferenceData(ref))
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d highlighted, %d not found\n", highlightOut, res.Highlighted, res.Missed)
		return nil
	},
}

func init() {
	highlightCmd.Flags().StringVar(&highlightPDF, "pdf", "", "termsheet PDF")
	highlightCmd.Flags().StringVar(&highlightReference, "reference", "", "validated sheet (xlsx or csv)")
	highlightCmd.Flags().StringVar(&highlightOut, "out", "highlighted.pdf", "annotated PDF to write")
	highlightCmd.Flags().StringVar(&highlightAnnotations, "annotations", "", "also write annotations as JSON to this file")
	_ = highlightCmd.MarkFlagRequired("pdf")
	_ = highlightCmd.MarkFlagRequired("reference")
	rootCmd.AddCommand(highlightCmd)
}
