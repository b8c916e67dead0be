package pipeline

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	pdf "github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"

	"elcotec/internal"
)

type TableKind string

const (
	TableOrderLines    TableKind = "order_lines"
	TableQuoteLines    TableKind = "quote_lines"
	TableRevisionLines TableKind = "revision_lines"
	TableUnknown       TableKind = "unknown"
)

// Table is one tokenized block of rows: trimmed cell strings plus the header
// row that was used to tag it. Column meaning is extractor-specific.
type Table struct {
	Kind    TableKind
	Method  internal.ExtractionMethod
	Headers []string
	Rows    [][]string
}

var (
	orderHeaderProbes    = []string{"order", "po", "bestel", "unit price", "stukprijs", "total", "levering", "delivery"}
	quoteHeaderProbes    = []string{"rfq", "quote", "offerte", "target", "richtprijs", "valid"}
	revisionHeaderProbes = []string{"rev", "revisie", "drawing", "tekening", "reason", "reden", "change"}
)

// Signal summarizes which row kinds are present, for the classifier.
func Signal(tables []Table) RowSignal {
	sig := RowSignal{}
	for _, t := range tables {
		switch t.Kind {
		case TableOrderLines:
			sig.HasOrderRows = true
		case TableQuoteLines:
			sig.HasQuoteRows = true
		case TableRevisionLines:
			sig.HasRevisionRows = true
		}
	}
	return sig
}

// TablesOfKind filters, keeping input order.
func TablesOfKind(tables []Table, kind TableKind) []Table {
	out := []Table{}
	for _, t := range tables {
		if t.Kind == kind {
			out = append(out, t)
		}
	}
	return out
}

func ParseTablesFromHTML(html string) []Table {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	out := []Table{}
	doc.Find("table").Each(func(_ int, table *goquery.Selection) {
		trs := table.Find("tr")
		if trs.Length() < 2 {
			return
		}

		headers := []string{}
		trs.First().Find("th,td").Each(func(_ int, cell *goquery.Selection) {
			headers = append(headers, normalizeSpaces(cell.Text()))
		})

		rows := [][]string{}
		trs.Slice(1, trs.Length()).Each(func(_ int, tr *goquery.Selection) {
			cells := []string{}
			tr.Find("th,td").Each(func(_ int, cell *goquery.Selection) {
				cells = append(cells, normalizeSpaces(cell.Text()))
			})
			if rowHasContent(cells) {
				rows = append(rows, cells)
			}
		})
		if len(rows) == 0 {
			return
		}

		out = append(out, Table{
			Kind:    tagHeaders(headers),
			Method:  internal.MethodHTMLTable,
			Headers: headers,
			Rows:    rows,
		})
	})
	return out
}

func ParseTablesFromXLSX(content []byte) ([]Table, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	out := []Table{}
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil || len(rows) < 2 {
			continue
		}

		headers := normalizeCells(rows[0])
		body := [][]string{}
		for _, row := range rows[1:] {
			cells := normalizeCells(row)
			if rowHasContent(cells) {
				body = append(body, cells)
			}
		}
		if len(body) == 0 {
			continue
		}

		out = append(out, Table{
			Kind:    tagHeaders(headers),
			Method:  internal.MethodXLSX,
			Headers: headers,
			Rows:    body,
		})
	}
	return out, nil
}

// ParseLinesFromPDF flattens a PDF attachment into trimmed text lines; PDFs
// rarely keep table structure, so the extractors treat these as body text.
func ParseLinesFromPDF(content []byte) ([]string, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, err
	}

	out := []string{}
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			continue
		}
		out = append(out, splitLines(text)...)
	}
	return out, nil
}

// tagHeaders decides what kind of lines a table holds by scoring its header
// vocabulary. Revision probes are checked first: an engineering-change table
// often also carries order-ish columns.
func tagHeaders(headers []string) TableKind {
	joined := strings.ToLower(strings.Join(headers, " | "))

	score := func(probes []string) int {
		n := 0
		for _, probe := range probes {
			if strings.Contains(joined, probe) {
				n++
			}
		}
		return n
	}

	rev := score(revisionHeaderProbes)
	ord := score(orderHeaderProbes)
	quo := score(quoteHeaderProbes)

	switch {
	case rev >= 2 && rev >= ord && rev >= quo:
		return TableRevisionLines
	case quo >= 1 && quo >= ord:
		return TableQuoteLines
	case ord >= 1:
		return TableOrderLines
	}
	return TableUnknown
}

func splitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	parts := strings.Split(text, "\n")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func normalizeSpaces(input string) string {
	return strings.TrimSpace(regexp.MustCompile(`\s+`).ReplaceAllString(input, " "))
}

func normalizeCells(row []string) []string {
	out := make([]string, 0, len(row))
	for _, c := range row {
		out = append(out, normalizeSpaces(c))
	}
	return out
}

func rowHasContent(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return true
		}
	}
	return false
}

func findHeaderIndex(headers []string, probes []string) int {
	for i, h := range headers {
		lower := strings.ToLower(h)
		for _, probe := range probes {
			if strings.Contains(lower, probe) {
				return i
			}
		}
	}
	return -1
}

func pickCell(cells []string, idx int, fallback int) string {
	if idx >= 0 && idx < len(cells) {
		return strings.TrimSpace(cells[idx])
	}
	if fallback >= 0 && fallback < len(cells) {
		return strings.TrimSpace(cells[fallback])
	}
	return ""
}
