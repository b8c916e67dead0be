package pipeline

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"elcotec/internal"
	"elcotec/internal/articles"
	"elcotec/internal/util"
)

// Revision row layout fallback:
// [article, current rev, new rev, reason, drawing#, change notes].
const (
	revColArticle = 0
	revColCurrent = 1
	revColNew     = 2
	revColReason  = 3
	revColDrawing = 4
	revColNotes   = 5
)

var (
	revisionAlpha   = regexp.MustCompile(`^[A-Z]{1,2}$`)
	revisionNumeric = regexp.MustCompile(`^\d{1,3}$`)
)

func (e *Extractor) ExtractRevisions(tables []Table, msg internal.MessageContext) []internal.LineItem {
	out := []internal.LineItem{}
	for _, table := range TablesOfKind(tables, TableRevisionLines) {
		artIdx := findHeaderIndex(table.Headers, []string{"artikel", "article", "item"})
		curIdx := findHeaderIndex(table.Headers, []string{"current", "huidige", "van", "from"})
		newIdx := findHeaderIndex(table.Headers, []string{"new", "nieuwe", "naar", "to"})
		reasonIdx := findHeaderIndex(table.Headers, []string{"reason", "reden"})
		drawingIdx := findHeaderIndex(table.Headers, []string{"drawing", "tekening"})
		notesIdx := findHeaderIndex(table.Headers, []string{"change", "wijziging", "notes", "opmerking"})

		for _, cells := range table.Rows {
			code, _ := splitArticleBlob(pickCell(cells, artIdx, revColArticle))
			if code == "" {
				continue
			}
			item := internal.LineItem{
				ID:           itemID(),
				Kind:         internal.KindRevision,
				ArticleCode:  code,
				Description:  pickCell(cells, notesIdx, revColNotes),
				Method:       table.Method,
				SourceDomain: msg.Domain,
				CreatedAt:    msg.ReceivedAt,
				Revision: &internal.RevisionFields{
					CurrentRev:      pickCell(cells, curIdx, revColCurrent),
					NewRev:          pickCell(cells, newIdx, revColNew),
					Reason:          pickCell(cells, reasonIdx, revColReason),
					DrawingNumber:   pickCell(cells, drawingIdx, revColDrawing),
					TechnicalChange: pickCell(cells, notesIdx, revColNotes),
				},
			}
			out = append(out, item)
		}
	}

	if len(out) > 0 {
		return out
	}
	return e.revisionsFromText(msg)
}

// revisionsFromText reads "rev A to rev B" style subjects and bodies.
func (e *Extractor) revisionsFromText(msg internal.MessageContext) []internal.LineItem {
	codes := articles.RecognizeSubject(msg.Subject)
	if len(codes) == 0 {
		codes = articles.Recognize(msg.Body)
	}
	if len(codes) > maxFallbackItems {
		codes = codes[:maxFallbackItems]
	}

	cur, next := findRevisionPair(msg.Subject + "\n" + msg.Body)
	out := make([]internal.LineItem, 0, len(codes))
	for _, code := range codes {
		out = append(out, internal.LineItem{
			ID:           itemID(),
			Kind:         internal.KindRevision,
			ArticleCode:  code,
			Description:  util.NormalizeSpaces(msg.Subject),
			Method:       internal.MethodSubjectFallback,
			SourceDomain: msg.Domain,
			CreatedAt:    msg.ReceivedAt,
			Revision: &internal.RevisionFields{
				CurrentRev: cur,
				NewRev:     next,
				Reason:     util.NormalizeSpaces(msg.Subject),
			},
		})
	}
	return out
}

func findRevisionPair(text string) (current, next string) {
	m := revisionPairPattern.FindStringSubmatch(strings.ToLower(text))
	if len(m) < 3 {
		return "", ""
	}
	return strings.ToUpper(m[1]), strings.ToUpper(m[2])
}

func (e *Extractor) ProcessRevisionsForInjection(items []internal.LineItem, domain string, now time.Time) ([]internal.LineItem, []internal.DroppedItem) {
	kept := make([]internal.LineItem, 0, len(items))
	dropped := []internal.DroppedItem{}

	for _, item := range items {
		reason, major := validateRevision(item)
		if reason != "" {
			dropped = dropItem(dropped, item, "validate", reason)
			continue
		}
		item.Revision.Major = major
		item = e.applyRevisionDefaults(item, now)
		item = e.assessRevisionImpact(item, domain)
		item = formatRevision(item)
		kept = append(kept, item)
	}
	return kept, dropped
}

func validateRevision(item internal.LineItem) (string, bool) {
	if strings.TrimSpace(item.ArticleCode) == "" {
		return "missing article code", false
	}
	r := item.Revision
	if r == nil {
		return "missing revision fields", false
	}
	cur := strings.ToUpper(strings.TrimSpace(r.CurrentRev))
	next := strings.ToUpper(strings.TrimSpace(r.NewRev))
	if cur == "" || next == "" {
		return "missing revision tokens", false
	}
	if cur == next {
		return "current and new revision are identical", false
	}
	if strings.TrimSpace(r.Reason) == "" {
		return "missing revision reason", false
	}

	forward, major, known := revisionStep(cur, next)
	if known && !forward {
		return fmt.Sprintf("revision moves backwards (%s -> %s)", cur, next), false
	}
	// Unrecognized revision formats pass as-is. Deliberately fails open;
	// domain owners have not decided whether to harden this.
	return "", major
}

// revisionStep reports whether new is a forward step from current, and
// whether the jump spans more than one step.
func revisionStep(current, next string) (forward, major, known bool) {
	switch {
	case revisionAlpha.MatchString(current) && revisionAlpha.MatchString(next):
		a, b := alphaRevValue(current), alphaRevValue(next)
		return b > a, b-a > 1, true
	case revisionNumeric.MatchString(current) && revisionNumeric.MatchString(next):
		a, _ := strconv.Atoi(current)
		b, _ := strconv.Atoi(next)
		return b > a, b-a > 1, true
	}
	return false, false, false
}

// alphaRevValue treats revision letters as base-26 ordinals (A=1, Z=26,
// AA=27).
func alphaRevValue(rev string) int {
	value := 0
	for _, r := range rev {
		value = value*26 + int(r-'A') + 1
	}
	return value
}

func (e *Extractor) applyRevisionDefaults(item internal.LineItem, now time.Time) internal.LineItem {
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

func (e *Extractor) assessRevisionImpact(item internal.LineItem, domain string) internal.LineItem {
	r := item.Revision
	if e.reg.IsStrategic(domain) {
		item.Priority = priorityHigh
		r.ApprovalRequired = true
	}
	if strings.TrimSpace(r.DrawingNumber) != "" || r.Major {
		r.ApprovalRequired = true
	}
	if hasEmergencyLanguage(r.Reason, item.Description) {
		item.Priority = priorityHigh
	}
	return item
}

func formatRevision(item internal.LineItem) internal.LineItem {
	r := item.Revision
	item.ArticleCode = util.NormalizeCode(item.ArticleCode)
	item.Unit = util.CanonicalUnit(item.Unit)
	item.Description = util.Truncate(util.NormalizeSpaces(item.Description), maxFreeTextLen)
	r.CurrentRev = formatRevToken(r.CurrentRev)
	r.NewRev = formatRevToken(r.NewRev)
	r.Reason = util.Truncate(util.NormalizeSpaces(r.Reason), maxFreeTextLen)
	r.TechnicalChange = util.Truncate(util.NormalizeSpaces(r.TechnicalChange), maxFreeTextLen)
	r.CommercialChange = util.Truncate(util.NormalizeSpaces(r.CommercialChange), maxFreeTextLen)
	r.DrawingNumber = util.NormalizeCode(r.DrawingNumber)
	return item
}

// Numeric revision tokens are zero-padded to two digits so MKG sorts them.
func formatRevToken(rev string) string {
	rev = strings.ToUpper(strings.TrimSpace(rev))
	if revisionNumeric.MatchString(rev) && len(rev) < 2 {
		return "0" + rev
	}
	return rev
}
