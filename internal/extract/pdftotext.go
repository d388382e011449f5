package extract

import (
	"bytes"
	"context"
	"encoding/xml"
	"io"
	"os/exec"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/sells-group/termsheet-cli/internal/model"
)

// PdfToText extracts positioned text from PDFs using the pdftotext CLI tool.
type PdfToText struct {
	binPath string
}

// NewPdfToText creates a PdfToText extractor. If binPath is empty, "pdftotext" is used.
func NewPdfToText(binPath string) *PdfToText {
	if binPath == "" {
		binPath = "pdftotext"
	}
	return &PdfToText{binPath: binPath}
}

// Spans runs pdftotext -bbox-layout and returns one span per text line.
func (p *PdfToText) Spans(ctx context.Context, pdfPath string) ([]model.TextSpan, error) {
	out, err := p.run(ctx, "-bbox-layout", pdfPath)
	if err != nil {
		return nil, err
	}
	return ParseBBoxLayout(bytes.NewReader(out))
}

// ExtractText runs pdftotext -layout and returns the page text.
func (p *PdfToText) ExtractText(ctx context.Context, pdfPath string) (string, error) {
	out, err := p.run(ctx, "-layout", pdfPath)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func (p *PdfToText) run(ctx context.Context, mode, pdfPath string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, p.binPath, mode, pdfPath, "-")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, eris.Wrapf(err, "extract: pdftotext failed for %s: %s", pdfPath, stderr.String())
	}
	return stdout.Bytes(), nil
}

type bboxWord struct {
	XMin float64 `xml:"xMin,attr"`
	YMin float64 `xml:"yMin,attr"`
	XMax float64 `xml:"xMax,attr"`
	YMax float64 `xml:"yMax,attr"`
	Text string  `xml:",chardata"`
}

type bboxLine struct {
	Words []bboxWord `xml:"word"`
}

// ParseBBoxLayout decodes pdftotext -bbox-layout XHTML. Pages are numbered
// from 0 in document order; each line becomes a span whose box covers its
// words. Coordinates keep the top-left origin pdftotext reports.
func ParseBBoxLayout(r io.Reader) ([]model.TextSpan, error) {
	decoder := xml.NewDecoder(r)
	decoder.Strict = false
	decoder.AutoClose = xml.HTMLAutoClose
	decoder.Entity = xml.HTMLEntity
	decoder.CharsetReader = func(charset string, input io.Reader) (io.Reader, error) {
		enc, err := htmlindex.Get(charset)
		if err != nil {
			return nil, eris.Wrapf(err, "extract: unsupported charset %q", charset)
		}
		return enc.NewDecoder().Reader(input), nil
	}

	var spans []model.TextSpan
	page := -1
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "extract: read bbox token")
		}

		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		switch se.Name.Local {
		case "page":
			page++
		case "line":
			var line bboxLine
			if err := decoder.DecodeElement(&line, &se); err != nil {
				return nil, eris.Wrap(err, "extract: decode line")
			}
			if s, ok := lineSpan(line, max(page, 0)); ok {
				spans = append(spans, s)
			}
		}
	}
	return spans, nil
}

func lineSpan(line bboxLine, page int) (model.TextSpan, bool) {
	words := make([]string, 0, len(line.Words))
	var box model.BBox
	for _, w := range line.Words {
		text := strings.TrimSpace(w.Text)
		if text == "" {
			continue
		}
		words = append(words, text)
		box = box.Union(model.BBox{X0: w.XMin, Y0: w.YMin, X1: w.XMax, Y1: w.YMax})
	}
	if len(words) == 0 {
		return model.TextSpan{}, false
	}
	return model.TextSpan{Text: strings.Join(words, " "), Page: page, BBox: box}, true
}
