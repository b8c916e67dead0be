package pipeline

import (
	"testing"
	"time"

	"elcotec/internal"
)

func TestExtractQuotesFromTable(t *testing.T) {
	e := testExtractor()
	tables := []Table{{
		Kind:    TableQuoteLines,
		Method:  internal.MethodHTMLTable,
		Headers: []string{"Pos", "Artikel", "Aantal", "Eenheid", "Richtprijs", "Opmerking"},
		Rows: [][]string{
			{"1", "340.221.06 klemplaat", "50", "st", "€ 11,20", "incl. certificaat"},
		},
	}}
	msg := internal.MessageContext{
		Subject:    "RFQ-2231 klemplaten",
		Domain:     "frencken.nl",
		ReceivedAt: time.Now(),
	}
	items := e.ExtractQuotes(tables, msg)
	if len(items) != 1 {
		t.Fatalf("len=%d", len(items))
	}
	q := items[0]
	if q.ArticleCode != "340.221.06" {
		t.Fatalf("code=%q", q.ArticleCode)
	}
	if q.Quote == nil || q.Quote.RFQNumber != "RFQ2231" && q.Quote.RFQNumber != "2231" {
		t.Fatalf("rfq=%+v", q.Quote)
	}
	if q.Quote.QuotedPrice == nil || *q.Quote.QuotedPrice != 11.2 {
		t.Fatalf("price=%v", q.Quote.QuotedPrice)
	}
}

func TestProcessQuotesValidation(t *testing.T) {
	e := testExtractor()
	now := time.Now()
	qty := 50.0
	zero := 0.0
	items := []internal.LineItem{
		{Kind: internal.KindQuote, ArticleCode: "340.221.06", Quantity: &qty, Quote: &internal.QuoteFields{RFQNumber: "RFQ-2231"}},
		{Kind: internal.KindQuote, ArticleCode: "340.221.07", Quantity: &zero, Quote: &internal.QuoteFields{RFQNumber: "RFQ-2231"}},
		{Kind: internal.KindQuote, ArticleCode: "340.221.08", Quantity: &qty, Quote: &internal.QuoteFields{}},
	}
	kept, dropped := e.ProcessQuotesForInjection(items, "frencken.nl", now)
	if len(kept) != 1 {
		t.Fatalf("kept=%d", len(kept))
	}
	if len(dropped) != 2 {
		t.Fatalf("dropped=%d", len(dropped))
	}
	if kept[0].Unit != "PCS" || kept[0].Status != "Draft" {
		t.Fatalf("defaults: %+v", kept[0])
	}
}

func TestQuoteSubjectFallback(t *testing.T) {
	e := testExtractor()
	msg := internal.MessageContext{
		Subject:    "Offerteaanvraag artikel 340.221.06, 50 stuks",
		Domain:     "frencken.nl",
		ReceivedAt: time.Now(),
	}
	items := e.ExtractQuotes(nil, msg)
	if len(items) != 1 {
		t.Fatalf("len=%d items=%+v", len(items), items)
	}
	if items[0].Method != internal.MethodSubjectFallback {
		t.Fatalf("method=%s", items[0].Method)
	}
	if items[0].Quantity == nil || *items[0].Quantity != 50 {
		t.Fatalf("qty=%v", items[0].Quantity)
	}
}
