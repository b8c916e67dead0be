package pipeline

import (
	"strings"
	"time"

	"elcotec/internal"
	"elcotec/internal/articles"
	"elcotec/internal/util"
)

// Order row layout, when headers give nothing better:
// [line#, article+description, requested date, qty, unit, unit price, total price].
const (
	orderColBlob      = 1
	orderColReqDate   = 2
	orderColQty       = 3
	orderColUnit      = 4
	orderColUnitPrice = 5
	orderColTotal     = 6
)

// ExtractOrders builds raw order items from the message's order tables, or
// from the subject line when no rows are usable.
func (e *Extractor) ExtractOrders(tables []Table, msg internal.MessageContext) []internal.LineItem {
	po := findPONumber(msg.Subject, msg.Body)

	out := []internal.LineItem{}
	for _, table := range TablesOfKind(tables, TableOrderLines) {
		blobIdx := findHeaderIndex(table.Headers, []string{"artikel", "article", "omschrijving", "description", "item"})
		dateIdx := findHeaderIndex(table.Headers, []string{"levering", "delivery", "date", "datum"})
		qtyIdx := findHeaderIndex(table.Headers, []string{"aantal", "qty", "quantity", "kol"})
		unitIdx := findHeaderIndex(table.Headers, []string{"eenheid", "unit", "ehd"})
		priceIdx := findHeaderIndex(table.Headers, []string{"stukprijs", "unit price", "prijs", "price"})
		totalIdx := findHeaderIndex(table.Headers, []string{"totaal", "total"})

		for _, cells := range table.Rows {
			blob := pickCell(cells, blobIdx, orderColBlob)
			code, desc := splitArticleBlob(blob)
			if code == "" {
				continue
			}

			qty := util.ParseQty(pickCell(cells, qtyIdx, orderColQty))
			item := internal.LineItem{
				ID:           itemID(),
				Kind:         internal.KindOrder,
				ArticleCode:  code,
				Description:  desc,
				Quantity:     qty.Qty,
				Method:       table.Method,
				SourceDomain: msg.Domain,
				CreatedAt:    msg.ReceivedAt,
				Order: &internal.OrderFields{
					PONumber:      po,
					UnitPrice:     util.ParsePrice(pickCell(cells, priceIdx, orderColUnitPrice)),
					TotalPrice:    util.ParsePrice(pickCell(cells, totalIdx, orderColTotal)),
					RequestedDate: pickCell(cells, dateIdx, orderColReqDate),
				},
			}
			if unit := pickCell(cells, unitIdx, orderColUnit); unit != "" {
				item.Unit = unit
			}
			out = append(out, item)
		}
	}

	if len(out) > 0 {
		return out
	}
	return e.ordersFromSubject(msg, po)
}

// Subject fallback: a handful of generic items, never silence.
func (e *Extractor) ordersFromSubject(msg internal.MessageContext, po string) []internal.LineItem {
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
			Kind:         internal.KindOrder,
			ArticleCode:  code,
			Description:  util.NormalizeSpaces(msg.Subject),
			Quantity:     qty.Qty,
			Method:       internal.MethodSubjectFallback,
			SourceDomain: msg.Domain,
			CreatedAt:    msg.ReceivedAt,
			Order:        &internal.OrderFields{PONumber: po},
		})
	}
	return out
}

// ProcessOrdersForInjection runs the four injection stages over raw order
// items. Items that fail a mandatory stage are dropped with a recorded
// reason; the batch never aborts.
func (e *Extractor) ProcessOrdersForInjection(items []internal.LineItem, domain string, now time.Time) ([]internal.LineItem, []internal.DroppedItem) {
	kept := make([]internal.LineItem, 0, len(items))
	dropped := []internal.DroppedItem{}

	for _, item := range items {
		if reason := validateOrder(item); reason != "" {
			dropped = dropItem(dropped, item, "validate", reason)
			continue
		}
		item = e.applyOrderDefaults(item, now)
		item = e.assessOrderImpact(item, domain)
		item = formatOrder(item)
		kept = append(kept, item)
	}
	return kept, dropped
}

func validateOrder(item internal.LineItem) string {
	if strings.TrimSpace(item.ArticleCode) == "" {
		return "missing article code"
	}
	if item.Order == nil || strings.TrimSpace(item.Order.PONumber) == "" {
		return "missing PO number"
	}
	return ""
}

func (e *Extractor) applyOrderDefaults(item internal.LineItem, now time.Time) internal.LineItem {
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
	if item.Order.RequestedDate == "" {
		item.Order.RequestedDate = item.CreatedAt.Format(util.DateLayout)
	}
	return item
}

func (e *Extractor) assessOrderImpact(item internal.LineItem, domain string) internal.LineItem {
	if e.reg.IsStrategic(domain) {
		item.Priority = priorityHigh
	}
	if item.Quantity != nil && *item.Quantity >= e.cfg.LargeQtyThreshold {
		item.Priority = priorityHigh
	}
	if e.isHighValue(item.ArticleCode) {
		item.Priority = priorityHigh
	}
	if hasEmergencyLanguage(item.Description) {
		item.Priority = priorityHigh
	}
	return item
}

func formatOrder(item internal.LineItem) internal.LineItem {
	item.ArticleCode = util.NormalizeCode(item.ArticleCode)
	item.Order.PONumber = util.NormalizeCode(item.Order.PONumber)
	item.Unit = util.CanonicalUnit(item.Unit)
	item.Description = util.Truncate(util.NormalizeSpaces(item.Description), maxFreeTextLen)
	if d := util.NormalizeDate(item.Order.RequestedDate); d != "" {
		item.Order.RequestedDate = d
	}
	if d := util.NormalizeDate(item.Order.ConfirmedDate); d != "" {
		item.Order.ConfirmedDate = d
	}
	return item
}

func findPONumber(subject, body string) string {
	for _, text := range []string{subject, body} {
		if m := poNumberPattern.FindStringSubmatch(text); len(m) > 1 {
			return m[1]
		}
	}
	// Bare 8-10 digit token in the subject is the usual portal shape.
	if m := bareOrderNumber.FindString(subject); m != "" {
		return m
	}
	return ""
}

