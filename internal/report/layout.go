package report

import "fmt"

// Page geometry in points, US Letter, y measured down from the top edge.
const (
	PageWidth  = 612.0
	PageHeight = 792.0

	titleY        = 40.0
	firstSectionY = 80.0
	sectionGap    = 20.0
	rowStep       = 15.0
	bottomMargin  = 50.0
	absentReserve = 100.0

	TitleSize   = 14.0
	SectionSize = 12.0
	RowSize     = 10.0

	ColName     = 100.0
	ColCheckin  = 260.0
	ColCheckout = 360.0
	timeInset   = 10.0

	// NotAvailable marks a missing checkout time.
	NotAvailable = "N/A"
	ellipsis     = "..."
)

// Section headings.
const (
	PresentHeading = "Checked in"
	AbsentHeading  = "Absents"
)

// Text is one string drawn at a baseline position.
type Text struct {
	X, Y float64
	Size float64
	Body string
}

// Page is the ordered text operations for one page.
type Page struct {
	Texts []Text
}

// Document is a laid out report ready for painting.
type Document struct {
	Title string
	Pages []Page
}

// PresentRow is one checked in host, times already formatted.
type PresentRow struct {
	HostID   string
	Name     string
	Checkin  string
	Checkout string
}

// Sheet is everything a report shows for one date.
type Sheet struct {
	Date    string
	Zone    string
	Present []PresentRow
	Absent  []string
}

// Measure reports the rendered width of text at the given font size.
type Measure func(text string, size float64) float64

// Title returns the banner text for the sheet.
func (s Sheet) Title() string {
	return fmt.Sprintf("Check-in Report for %s (%s)", s.Date, s.Zone)
}

type layouter struct {
	doc     Document
	measure Measure
	y       float64
}

// Layout paginates the sheet. It only depends on its inputs, so equal sheets
// give equal documents.
func Layout(s Sheet, measure Measure) Document {
	l := &layouter{doc: Document{Title: s.Title()}, measure: measure}
	l.newPage()

	nameWidth := ColCheckin - ColName - timeInset

	if len(s.Present) > 0 {
		header := func() {
			l.text(ColName, SectionSize, PresentHeading)
			l.y += sectionGap
			l.text(ColName, RowSize, "Name")
			l.text(ColCheckin, RowSize, "Check-in")
			l.text(ColCheckout, RowSize, "Check-out")
			l.y += rowStep
		}
		header()
		for _, row := range s.Present {
			if l.y > PageHeight-bottomMargin {
				l.newPage()
				header()
			}
			l.text(ColName, RowSize, truncate(row.Name, nameWidth, RowSize, measure))
			l.text(ColCheckin+timeInset, RowSize, row.Checkin)
			l.text(ColCheckout+timeInset, RowSize, row.Checkout)
			l.y += rowStep
		}
		if len(s.Absent) > 0 {
			l.y += sectionGap
		}
	}

	if len(s.Absent) > 0 {
		if l.y > PageHeight-absentReserve {
			l.newPage()
		}
		header := func() {
			l.text(ColName, SectionSize, AbsentHeading)
			l.y += sectionGap
			l.text(ColName, RowSize, "Name")
			l.y += rowStep
		}
		header()
		for _, name := range s.Absent {
			if l.y > PageHeight-bottomMargin {
				l.newPage()
				header()
			}
			l.text(ColName, RowSize, truncate(name, nameWidth, RowSize, measure))
			l.y += rowStep
		}
	}

	return l.doc
}

func (l *layouter) newPage() {
	l.doc.Pages = append(l.doc.Pages, Page{})
	l.y = titleY
	l.text(ColName, TitleSize, l.doc.Title)
	l.y = firstSectionY
}

func (l *layouter) text(x, size float64, body string) {
	p := &l.doc.Pages[len(l.doc.Pages)-1]
	p.Texts = append(p.Texts, Text{X: x, Y: l.y, Size: size, Body: body})
}

// truncate shortens text with an ellipsis until it fits maxWidth.
func truncate(text string, maxWidth, size float64, measure Measure) string {
	if measure == nil || measure(text, size) <= maxWidth {
		return text
	}
	runes := []rune(text)
	for n := len(runes) - 1; n > 0; n-- {
		candidate := string(runes[:n]) + ellipsis
		if measure(candidate, size) <= maxWidth {
			return candidate
		}
	}
	return ellipsis
}
