package pipeline

import (
	"testing"

	"elcotec/internal"
)

func TestParseTablesFromHTML(t *testing.T) {
	html := `
<html><body>
<table>
  <tr><th>Pos</th><th>Artikel</th><th>Aantal</th><th>Stukprijs</th></tr>
  <tr><td>10</td><td>340.221.06 Flenslager</td><td>10</td><td>14,50</td></tr>
  <tr><td></td><td></td><td></td><td></td></tr>
</table>
<table>
  <tr><td>only one row, no data rows</td></tr>
</table>
</body></html>`

	tables := ParseTablesFromHTML(html)
	if len(tables) != 1 {
		t.Fatalf("expected 1 usable table, got %d", len(tables))
	}
	tbl := tables[0]
	if tbl.Kind != TableOrderLines {
		t.Fatalf("expected order lines, got %s", tbl.Kind)
	}
	if tbl.Method != internal.MethodHTMLTable {
		t.Fatalf("unexpected method %s", tbl.Method)
	}
	if len(tbl.Rows) != 1 {
		t.Fatalf("empty rows must be dropped, got %d rows", len(tbl.Rows))
	}
	if tbl.Rows[0][1] != "340.221.06 Flenslager" {
		t.Fatalf("unexpected cell %q", tbl.Rows[0][1])
	}
}

func TestTagHeaders(t *testing.T) {
	cases := []struct {
		name    string
		headers []string
		want    TableKind
	}{
		{"dutch order", []string{"Pos", "Artikel", "Aantal", "Stukprijs"}, TableOrderLines},
		{"quote", []string{"Item", "Qty", "Target price", "Valid until"}, TableQuoteLines},
		{"revision", []string{"Artikel", "Huidige rev", "Nieuwe rev", "Reden"}, TableRevisionLines},
		{"single rev word is not enough", []string{"Artikel", "Rev"}, TableUnknown},
		{"nothing", []string{"A", "B", "C"}, TableUnknown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tagHeaders(tc.headers); got != tc.want {
				t.Fatalf("tagHeaders(%v) = %s, want %s", tc.headers, got, tc.want)
			}
		})
	}
}

func TestSenderDomain(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Jan de Vries <jan@nts-group.nl>", "nts-group.nl"},
		{"inkoop@vdlgroep.com", "vdlgroep.com"},
		{"Inkoop <INKOOP@MAIL.VDLGROEP.COM>", "mail.vdlgroep.com"},
		{"no-address-here", ""},
		{"", ""},
	}
	for _, tc := range cases {
		if got := SenderDomain(tc.in); got != tc.want {
			t.Fatalf("SenderDomain(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSignal(t *testing.T) {
	tables := []Table{
		{Kind: TableOrderLines},
		{Kind: TableUnknown},
	}
	sig := Signal(tables)
	if !sig.HasOrderRows || sig.HasQuoteRows || sig.HasRevisionRows {
		t.Fatalf("unexpected signal %+v", sig)
	}
}
