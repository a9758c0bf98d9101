package report

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-pdf/fpdf"
	"golang.org/x/text/encoding/charmap"
)

// Font selects a TrueType font for the report. A zero Font uses core Helvetica,
// which covers cp1252 only; rendering a name outside it fails.
type Font struct {
	Dir  string
	File string
	Name string
}

type painter struct {
	pdf    *fpdf.Fpdf
	family string
	encode func(string) (string, error)
}

func newPainter(font Font, title string, created time.Time) (*painter, error) {
	pdf := fpdf.New("P", "pt", "Letter", "")
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetCatalogSort(true)
	pdf.SetCreationDate(created)
	pdf.SetTitle(title, true)
	pdf.SetCreator("rollcall", true)

	p := &painter{pdf: pdf}
	if font.File != "" {
		path := font.File
		if !filepath.IsAbs(path) {
			path = filepath.Join(font.Dir, font.File)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%w: font %q: %v", ErrRender, path, err)
		}
		p.family = font.Name
		if p.family == "" {
			p.family = "ReportFont"
		}
		pdf.AddUTF8FontFromBytes(p.family, "", data)
		p.encode = func(s string) (string, error) { return s, nil }
	} else {
		p.family = "Helvetica"
		enc := charmap.Windows1252.NewEncoder()
		p.encode = func(s string) (string, error) {
			out, err := enc.String(s)
			if err != nil {
				return "", fmt.Errorf("%w: %q is not representable in the core font; set report.font_file to a UTF-8 font", ErrRender, s)
			}
			return out, nil
		}
	}

	pdf.SetFont(p.family, "", RowSize)
	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("%w: load font: %v", ErrRender, err)
	}
	return p, nil
}

// measure reports the width of text at size in the painter's font. Text the
// font cannot encode is measured by rune count at the average glyph width.
func (p *painter) measure(text string, size float64) float64 {
	p.pdf.SetFontSize(size)
	encoded, err := p.encode(text)
	if err != nil {
		return float64(len([]rune(text))) * size * 0.5
	}
	return p.pdf.GetStringWidth(encoded)
}

// paint draws every page of doc and returns the encoded PDF.
func (p *painter) paint(doc Document) ([]byte, error) {
	for _, page := range doc.Pages {
		p.pdf.AddPage()
		for _, t := range page.Texts {
			body, err := p.encode(t.Body)
			if err != nil {
				return nil, err
			}
			p.pdf.SetFontSize(t.Size)
			p.pdf.Text(t.X, t.Y, body)
		}
	}

	var buf bytes.Buffer
	if err := p.pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("%w: encode pdf: %v", ErrRender, err)
	}
	return buf.Bytes(), nil
}
