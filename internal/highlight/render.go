package highlight

import (
	"bytes"
	"encoding/json"
	"io"
	"os"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/color"
	pdfmodel "github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"github.com/rotisserie/eris"

	"github.com/sells-group/termsheet-cli/internal/model"
)

// PDFRenderer writes a document's annotations into the source PDF as
// highlight annotations carrying the discrepancy comment.
type PDFRenderer struct {
	conf *pdfmodel.Configuration
}

// NewPDFRenderer creates a renderer with relaxed validation, since term sheets
// come from many generators.
func NewPDFRenderer() *PDFRenderer {
	conf := pdfmodel.NewDefaultConfiguration()
	conf.ValidationMode = pdfmodel.ValidationRelaxed
	return &PDFRenderer{conf: conf}
}

// Render reads the PDF at src and writes the annotated copy to dst.
func (r *PDFRenderer) Render(doc *model.AnnotatedDocument, src, dst string) error {
	in, err := os.ReadFile(src)
	if err != nil {
		return eris.Wrapf(err, "highlight: read %s", src)
	}

	out, err := os.Create(dst)
	if err != nil {
		return eris.Wrapf(err, "highlight: create %s", dst)
	}
	defer out.Close() //nolint:errcheck

	if err := r.Write(doc, bytes.NewReader(in), out); err != nil {
		return err
	}
	return out.Sync()
}

// Write annotates the PDF read from rs and writes it to w. A document without
// annotations is copied through unchanged.
func (r *PDFRenderer) Write(doc *model.AnnotatedDocument, rs io.ReadSeeker, w io.Writer) error {
	if len(doc.Annotations) == 0 {
		_, err := io.Copy(w, rs)
		return eris.Wrap(err, "highlight: copy pdf")
	}

	dims, err := api.PageDims(rs, r.conf)
	if err != nil {
		return eris.Wrap(err, "highlight: read page dimensions")
	}
	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return eris.Wrap(err, "highlight: rewind pdf")
	}

	m := make(map[int][]pdfmodel.AnnotationRenderer)
	for page, anns := range doc.AnnotationsByPage() {
		if page < 0 || page >= len(dims) {
			return eris.Errorf("highlight: annotation on page %d, document has %d pages", page, len(dims))
		}
		for _, a := range anns {
			m[page+1] = append(m[page+1], highlightAnnotation(a, dims[page].Height))
		}
	}

	if err := api.AddAnnotationsMap(rs, w, m, r.conf); err != nil {
		return eris.Wrap(err, "highlight: add annotations")
	}
	return nil
}

// highlightAnnotation converts a top-left span box into PDF user space.
func highlightAnnotation(a model.Annotation, pageHeight float64) pdfmodel.AnnotationRenderer {
	rect := types.NewRectangle(a.Rect.X0, pageHeight-a.Rect.Y1, a.Rect.X1, pageHeight-a.Rect.Y0)
	col := color.SimpleColor{R: float32(a.Color.R), G: float32(a.Color.G), B: float32(a.Color.B)}

	return pdfmodel.NewHighlightAnnotation(
		*rect,
		0,
		a.Comment,
		"",
		"",
		0,
		&col,
		0, 0, 0,
		a.Field,
		nil,
		nil,
		"",
		"Discrepancy",
		nil,
	)
}

// WriteJSON writes the annotations as a JSON sidecar next to the PDF.
func WriteJSON(doc *model.AnnotatedDocument, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(struct {
		Source      string             `json:"source"`
		Annotations []model.Annotation `json:"annotations"`
	}{doc.Source, doc.Annotations}), "highlight: encode annotations")
}
