package pipeline

import (
	"strings"
	"time"

	"elcotec/internal"
	"elcotec/internal/articles"
	"elcotec/internal/util"
)

// Quote row layout fallback:
// [line#, article+description, qty, unit, target date, notes].
const (
	quoteColBlob  = 1
	quoteColQty   = 2
	quoteColUnit  = 3
	quoteColDate  = 4
	quoteColNotes = 5
)

func (e *Extractor) ExtractQuotes(tables []Table, msg internal.MessageContext) []internal.LineItem {
	rfq := findRFQNumber(msg.Subject, msg.Body)

	out := []internal.LineItem{}
	for _, table := range TablesOfKind(tables, TableQuoteLines) {
		blobIdx := findHeaderIndex(table.Headers, []string{"artikel", "article", "omschrijving", "description", "item"})
		qtyIdx := findHeaderIndex(table.Headers, []string{"aantal", "qty", "quantity"})
		unitIdx := findHeaderIndex(table.Headers, []string{"eenheid", "unit"})
		dateIdx := findHeaderIndex(table.Headers, []string{"valid", "target", "datum", "date"})
		priceIdx := findHeaderIndex(table.Headers, []string{"richtprijs", "target price", "prijs", "price"})
		notesIdx := findHeaderIndex(table.Headers, []string{"notes", "opmerking", "remark"})

		for _, cells := range table.Rows {
			blob := pickCell(cells, blobIdx, quoteColBlob)
			code, desc := splitArticleBlob(blob)
			if code == "" {
				continue
			}

			qty := util.ParseQty(pickCell(cells, qtyIdx, quoteColQty))
			item := internal.LineItem{
				ID:           itemID(),
				Kind:         internal.KindQuote,
				ArticleCode:  code,
				Description:  desc,
				Quantity:     qty.Qty,
				Method:       table.Method,
				SourceDomain: msg.Domain,
				CreatedAt:    msg.ReceivedAt,
				Quote: &internal.QuoteFields{
					RFQNumber:   rfq,
					QuotedPrice: util.ParsePrice(pickCell(cells, priceIdx, -1)),
					ValidUntil:  pickCell(cells, dateIdx, quoteColDate),
					Notes:       pickCell(cells, notesIdx, quoteColNotes),
				},
			}
			if unit := pickCell(cells, unitIdx, quoteColUnit); unit != "" {
				item.Unit = unit
			}
			out = append(out, item)
		}
	}

	if len(out) > 0 {
		return out
	}
	return e.quotesFromSubject(msg, rfq)
}

func (e *Extractor) quotesFromSubject(msg internal.MessageContext, rfq string) []internal.LineItem {
	codes := articles.RecognizeSubject(msg.Subject)
	if len(codes) == 0 {
		codes = articles.Recognize(msg.Body)
	}
	if len(codes) > maxFallbackItems {
		codes = codes[:maxFallbackItems]
	}

	qty := util.ParseQty(msg.Subject)
	out := make([]internal.LineItem, 0, len(codes))
	for _, code := range codes {
		out = append(out, internal.LineItem{
			ID:           itemID(),
			Kind:         internal.KindQuote,
			ArticleCode:  code,
			Description:  util.NormalizeSpaces(msg.Subject),
			Quantity:     qty.Qty,
			Method:       internal.MethodSubjectFallback,
			SourceDomain: msg.Domain,
			CreatedAt:    msg.ReceivedAt,
			Quote:        &internal.QuoteFields{RFQNumber: rfq},
		})
	}
	return out
}

func (e *Extractor) ProcessQuotesForInjection(items []internal.LineItem, domain string, now time.Time) ([]internal.LineItem, []internal.DroppedItem) {
	kept := make([]internal.LineItem, 0, len(items))
	dropped := []internal.DroppedItem{}

	for _, item := range items {
		if reason := validateQuote(item); reason != "" {
			dropped = dropItem(dropped, item, "validate", reason)
			continue
		}
		item = e.applyQuoteDefaults(item, now)
		item = e.assessQuoteImpact(item, domain)
		item = formatQuote(item)
		kept = append(kept, item)
	}
	return kept, dropped
}

func validateQuote(item internal.LineItem) string {
	if strings.TrimSpace(item.ArticleCode) == "" {
		return "missing article code"
	}
	if item.Quote == nil || strings.TrimSpace(item.Quote.RFQNumber) == "" {
		return "missing RFQ number"
	}
	if item.Quantity == nil || *item.Quantity <= 0 {
		return "missing or non-positive quantity"
	}
	return ""
}

func (e *Extractor) applyQuoteDefaults(item internal.LineItem, now time.Time) internal.LineItem {
	if item.Unit == "" {
		item.Unit = "PCS"
	}
	if item.Status == "" {
		item.Status = statusDraft
	}
	if item.Priority == "" {
		item.Priority = priorityNormal
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	return item
}

func (e *Extractor) assessQuoteImpact(item internal.LineItem, domain string) internal.LineItem {
	if e.reg.IsStrategic(domain) {
		item.Priority = priorityHigh
	}
	if item.Quantity != nil && *item.Quantity >= e.cfg.LargeQtyThreshold {
		item.Priority = priorityHigh
	}
	if e.isHighValue(item.ArticleCode) {
		item.Priority = priorityHigh
	}
	if hasEmergencyLanguage(item.Description, item.Quote.Notes) {
		item.Priority = priorityHigh
	}
	return item
}

func formatQuote(item internal.LineItem) internal.LineItem {
	item.ArticleCode = util.NormalizeCode(item.ArticleCode)
	item.Quote.RFQNumber = util.NormalizeCode(item.Quote.RFQNumber)
	item.Unit = util.CanonicalUnit(item.Unit)
	item.Description = util.Truncate(util.NormalizeSpaces(item.Description), maxFreeTextLen)
	item.Quote.Notes = util.Truncate(util.NormalizeSpaces(item.Quote.Notes), maxFreeTextLen)
	if d := util.NormalizeDate(item.Quote.ValidUntil); d != "" {
		item.Quote.ValidUntil = d
	}
	return item
}

func findRFQNumber(subject, body string) string {
	for _, text := range []string{subject, body} {
		if m := rfqRefPattern.FindStringSubmatch(text); len(m) > 1 {
			return strings.ToUpper(strings.Trim(m[1], "-"))
		}
	}
	return ""
}
