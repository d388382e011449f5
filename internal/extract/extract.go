// Package extract turns source documents into text spans for chunking.
package extract

import (
	"context"
	"os"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/termsheet-cli/internal/config"
	"github.com/sells-group/termsheet-cli/internal/model"
	"github.com/sells-group/termsheet-cli/internal/tabular"
)

// ErrUnsupportedType is returned for file types with no text decoder.
var ErrUnsupportedType = eris.New("extract: unsupported file type")

// Decoder produces spans for any supported source file.
type Decoder struct {
	pdf *PdfToText
}

// NewDecoder creates a Decoder from OCR settings.
func NewDecoder(cfg config.OCRConfig) *Decoder {
	return &Decoder{pdf: NewPdfToText(cfg.PdfToTextPath)}
}

// Spans decodes the file at path. PDFs keep their layout; tables and JSON
// become one span per line on page 0.
func (d *Decoder) Spans(ctx context.Context, path string, ft model.FileType) ([]model.TextSpan, error) {
	if ft == "" {
		ft = model.DetectFileType(path)
	}
	switch ft {
	case model.FileTypePDF:
		return d.pdf.Spans(ctx, path)
	case model.FileTypeExcel, model.FileTypeCSV:
		t, err := tabular.Read(path)
		if err != nil {
			return nil, err
		}
		return LineSpans(Markdown(t)), nil
	case model.FileTypeJSON:
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, eris.Wrapf(err, "extract: read %s", path)
		}
		return LineSpans(string(data)), nil
	}
	return nil, eris.Wrapf(ErrUnsupportedType, "%s (%s)", path, ft)
}

// LineSpans splits text into one span per non-blank line.
func LineSpans(text string) []model.TextSpan {
	var spans []model.TextSpan
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		spans = append(spans, model.TextSpan{Text: line})
	}
	return spans
}

// Markdown renders a table as a markdown pipe table.
func Markdown(t model.Table) string {
	var b strings.Builder
	writeRow := func(cells []string) {
		b.WriteString("|")
		for _, c := range cells {
			b.WriteString(" ")
			b.WriteString(strings.ReplaceAll(c, "|", `\|`))
			b.WriteString(" |")
		}
		b.WriteString("\n")
	}

	writeRow(t.Header)
	sep := make([]string, len(t.Header))
	for i := range sep {
		sep[i] = "---"
	}
	writeRow(sep)
	for _, r := range t.Rows {
		writeRow(r)
	}
	return b.String()
}
