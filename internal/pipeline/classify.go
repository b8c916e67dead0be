package pipeline

import (
	"regexp"
	"strings"

	"elcotec/internal"
	"elcotec/internal/articles"
	"elcotec/internal/customers"
	"elcotec/internal/trace"
)

// RowSignal tells the classifier which structured row kinds the message body
// carries. Purely structural; the rows themselves are not inspected here.
type RowSignal struct {
	HasOrderRows    bool
	HasQuoteRows    bool
	HasRevisionRows bool
}

type ClassifyInput struct {
	Subject string
	Body    string
	Domain  string
	Profile *customers.Profile
	Rows    RowSignal
}

type classifyRule struct {
	name string
	eval func(in ClassifyInput, subject, body, combined string) (internal.ContentType, bool)
}

// Rule order is load-bearing: revision vocabulary overlaps with order
// vocabulary, so revision runs first but is vetoed by unambiguous order or
// quote phrases, and order always beats quote.
var classifyRules = []classifyRule{
	{name: "empty", eval: evalEmpty},
	{name: "revision", eval: evalRevision},
	{name: "order", eval: evalOrder},
	{name: "quote", eval: evalQuote},
}

var (
	revisionNarrowKeywords = []string{
		"drawing revision", "revised drawing", "revisie tekening",
		"tekening revisie", "engineering change", "rev change",
	}
	revisionGenericKeywords = []string{"revision", "revisie", "update", "wijziging"}
	revisionPairPattern     = regexp.MustCompile(`\brev\.?\s*([a-z0-9]{1,3})\s*(?:->|=>|to|naar)\s*(?:rev\.?\s*)?([a-z0-9]{1,3})\b`)
	revisionLetterPattern   = regexp.MustCompile(`\brev\.?\s*[a-z0-9]{1,3}\b`)
	technicalVocabulary     = []string{"drawing", "tekening", "material", "materiaal", "dxf", "step", "dimension", "tolerantie", "tolerance"}

	// Phrases that make a revision reading impossible regardless of what
	// else the text says.
	revisionExclusions = []string{
		"purchase order", "po #", "po#", "rfq", "quote request",
		"order confirmation", "inkooporder",
	}

	orderKeywords = []string{
		"purchase order", "order confirmation", "order number",
		"bestelling", "inkooporder", "bestellung", "po number",
	}
	orderNumberPattern = regexp.MustCompile(`\bpo[-#]?\s*\d+`)
	bareOrderNumber    = regexp.MustCompile(`\b\d{8,10}\b`)

	quoteKeywords = []string{
		"rfq", "request for quote", "request for quotation", "quotation",
		"offerte", "offerteaanvraag", "sourcing event",
	}
	rfqNumberPattern = regexp.MustCompile(`\brfq[-#]?\s*\d+`)
)

// Classify decides what kind of business content a message carries. Pure
// given its inputs; the only side effect is trace output.
func Classify(in ClassifyInput) internal.ContentType {
	subject := strings.ToLower(in.Subject)
	body := strings.ToLower(in.Body)
	combined := subject + "\n" + body

	for _, rule := range classifyRules {
		if result, ok := rule.eval(in, subject, body, combined); ok {
			trace.Printf("classify rule=%s result=%s domain=%s", rule.name, result, in.Domain)
			return result
		}
	}
	trace.Printf("classify rule=none result=%s domain=%s", internal.ContentUnknown, in.Domain)
	return internal.ContentUnknown
}

func evalEmpty(_ ClassifyInput, subject, body, _ string) (internal.ContentType, bool) {
	if strings.TrimSpace(subject) == "" && strings.TrimSpace(body) == "" {
		return internal.ContentNone, true
	}
	return "", false
}

func evalRevision(in ClassifyInput, subject, body, combined string) (internal.ContentType, bool) {
	for _, phrase := range revisionExclusions {
		if strings.Contains(combined, phrase) {
			return "", false
		}
	}

	match := func(text string) bool {
		for _, kw := range revisionNarrowKeywords {
			if strings.Contains(text, kw) {
				return true
			}
		}
		if in.Profile != nil {
			for _, kw := range in.Profile.RevisionKeywords {
				if strings.Contains(text, strings.ToLower(kw)) {
					return true
				}
			}
		}
		if revisionPairPattern.MatchString(text) {
			return true
		}
		// Generic words count only next to a technical signal, otherwise
		// every "quick update" mail would land here.
		for _, kw := range revisionGenericKeywords {
			if strings.Contains(text, kw) && hasTechnicalSignal(combined) {
				return true
			}
		}
		return false
	}

	if match(subject) || match(body) {
		return internal.ContentRevision, true
	}
	if in.Rows.HasRevisionRows {
		return internal.ContentRevision, true
	}
	return "", false
}

func hasTechnicalSignal(text string) bool {
	if len(articles.Recognize(text)) > 0 {
		return true
	}
	if revisionLetterPattern.MatchString(text) {
		return true
	}
	for _, word := range technicalVocabulary {
		if strings.Contains(text, word) {
			return true
		}
	}
	return false
}

func evalOrder(in ClassifyInput, _, _, combined string) (internal.ContentType, bool) {
	if in.Profile != nil {
		for _, kw := range in.Profile.OrderKeywords {
			if strings.Contains(combined, strings.ToLower(kw)) {
				return internal.ContentOrder, true
			}
		}
	}
	for _, kw := range orderKeywords {
		if strings.Contains(combined, kw) {
			return internal.ContentOrder, true
		}
	}
	if orderNumberPattern.MatchString(combined) || bareOrderNumber.MatchString(combined) {
		return internal.ContentOrder, true
	}
	if in.Rows.HasOrderRows && !in.Rows.HasQuoteRows {
		return internal.ContentOrder, true
	}
	return "", false
}

func evalQuote(in ClassifyInput, _, _, combined string) (internal.ContentType, bool) {
	// Explicit veto: a text that also reads as an order is never a quote.
	for _, kw := range orderKeywords {
		if strings.Contains(combined, kw) {
			return "", false
		}
	}
	if in.Profile != nil {
		for _, kw := range in.Profile.QuoteKeywords {
			if strings.Contains(combined, strings.ToLower(kw)) {
				return internal.ContentQuote, true
			}
		}
	}
	for _, kw := range quoteKeywords {
		if strings.Contains(combined, kw) {
			return internal.ContentQuote, true
		}
	}
	if rfqNumberPattern.MatchString(combined) {
		return internal.ContentQuote, true
	}
	if in.Rows.HasQuoteRows {
		return internal.ContentQuote, true
	}
	return "", false
}
