package pipeline

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"regexp"
	"time"

	"elcotec/internal"
	"elcotec/internal/articles"
	"elcotec/internal/config"
	"elcotec/internal/customers"
	"elcotec/internal/trace"
	"elcotec/internal/util"
)

const (
	statusDraft    = "Draft"
	priorityNormal = "Normal"
	priorityHigh   = "High"

	maxFallbackItems = 3
	maxFreeTextLen   = 200
)

// Extractor turns classified content into typed line items and runs the
// injection stages (validate, defaults, impact, format) over them.
type Extractor struct {
	cfg       config.Config
	reg       *customers.Registry
	highValue *regexp.Regexp
}

func NewExtractor(cfg config.Config, reg *customers.Registry) *Extractor {
	highValue, err := regexp.Compile(cfg.HighValuePattern)
	if err != nil {
		highValue = regexp.MustCompile(`^(?:89|9\d)\d*\.`)
	}
	return &Extractor{cfg: cfg, reg: reg, highValue: highValue}
}

var (
	poNumberPattern  = regexp.MustCompile(`(?i)(?:purchase\s+order|inkooporder|order|po)\s*[#:nr.]*\s*(\d{6,10})`)
	rfqRefPattern    = regexp.MustCompile(`(?i)(?:rfq|offerte(?:aanvraag)?|quotation)\s*(?:nr|no)?\s*[#:.-]*\s*([A-Z]{0,4}-?\d{3,10})`)
	emergencyPattern = regexp.MustCompile(`(?i)\b(urgent|spoed|asap|emergency|immediately|machine\s+down|breakdown)\b`)
)

func itemID() string {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return fmt.Sprintf("item-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b[:])
}

// splitArticleBlob separates the article code from the description in a
// combined cell ("897.010.1478 RVS beugel 40x40").
func splitArticleBlob(blob string) (code, description string) {
	codes := articles.Recognize(blob)
	if len(codes) == 0 {
		return "", util.NormalizeSpaces(blob)
	}
	code = codes[0]
	desc := blob
	// The raw spelling can differ from the canonical code; drop the first
	// code-shaped token instead of searching for the canonical form.
	for _, p := range articles.Patterns {
		if loc := p.Re.FindStringIndex(desc); loc != nil {
			desc = desc[:loc[0]] + " " + desc[loc[1]:]
			break
		}
	}
	return code, util.NormalizeSpaces(desc)
}

func hasEmergencyLanguage(texts ...string) bool {
	for _, t := range texts {
		if emergencyPattern.MatchString(t) {
			return true
		}
	}
	return false
}

func (e *Extractor) isHighValue(code string) bool {
	return e.highValue.MatchString(code)
}

func dropItem(dropped []internal.DroppedItem, item internal.LineItem, stage, reason string) []internal.DroppedItem {
	trace.Printf("item dropped stage=%s article=%s reason=%s", stage, item.ArticleCode, reason)
	return append(dropped, internal.DroppedItem{ArticleCode: item.ArticleCode, Stage: stage, Reason: reason})
}
