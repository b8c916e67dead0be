// Package guard protects the downstream MKG administration from the damage
// a mailbox can do: duplicate transactions, silently diverging prices and
// line items that violate hard business rules. State is scoped to one
// processing run and owned by the caller.
package guard

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"elcotec/internal"
	"elcotec/internal/config"
	"elcotec/internal/trace"
)

// Thresholds are business policy values, injected from config.
type Thresholds struct {
	GroupSpreadAlertPct float64
	GroupSpreadHighPct  float64
	RunDriftAlertPct    float64
	RunDriftHighPct     float64
	UnitPriceCeiling    float64
	HighValuePattern    string
}

func ThresholdsFromConfig(cfg config.Config) Thresholds {
	return Thresholds{
		GroupSpreadAlertPct: cfg.GroupSpreadAlertPct,
		GroupSpreadHighPct:  cfg.GroupSpreadHighPct,
		RunDriftAlertPct:    cfg.RunDriftAlertPct,
		RunDriftHighPct:     cfg.RunDriftHighPct,
		UnitPriceCeiling:    cfg.UnitPriceCeiling,
		HighValuePattern:    cfg.HighValuePattern,
	}
}

type priceRef struct {
	price  float64
	source string
}

// Tracker holds the run-scoped duplicate and price state. Construct one per
// run; constructing is the reset. Not safe for concurrent use: duplicate and
// price decisions are order-sensitive (first seen wins), so callers must
// serialize Observe.
type Tracker struct {
	thresholds Thresholds
	highValue  *regexp.Regexp

	seenOrderKeys    map[string]struct{}
	seenQuoteKeys    map[string]struct{}
	seenRevisionKeys map[string]struct{}
	lastPrice        map[string]priceRef

	DuplicateCount int
	CriticalCount  int
}

// Observation is everything Observe decided about one message.
type Observation struct {
	CleanedItems   []internal.LineItem
	Duplicates     []internal.DuplicateFinding
	PriceAlerts    []internal.PriceAlert
	CriticalErrors []internal.CriticalError
}

func NewTracker(t Thresholds) *Tracker {
	highValue, err := regexp.Compile(t.HighValuePattern)
	if err != nil || strings.TrimSpace(t.HighValuePattern) == "" {
		highValue = regexp.MustCompile(`^(?:89|9\d)\d*\.`)
	}
	tracker := &Tracker{thresholds: t, highValue: highValue}
	tracker.Reset()
	return tracker
}

// Reset clears all run state. Must not be called mid-run.
func (t *Tracker) Reset() {
	t.seenOrderKeys = map[string]struct{}{}
	t.seenQuoteKeys = map[string]struct{}{}
	t.seenRevisionKeys = map[string]struct{}{}
	t.lastPrice = map[string]priceRef{}
	t.DuplicateCount = 0
	t.CriticalCount = 0
}

// Observe runs all protection checks for one message and updates the run
// state. Mutations for prior messages always stand; there is no rollback.
func (t *Tracker) Observe(msg internal.MessageContext, items []internal.LineItem) Observation {
	obs := Observation{CleanedItems: items}

	groups, groupPricesOK := t.checkCrossSource(msg, items, &obs)
	t.checkRunPrices(msg, items, &obs)
	crossMessage := t.checkCrossMessage(msg, items, &obs)
	t.checkCritical(msg, items, &obs)

	obs.CleanedItems = cleanedItems(items, groups, groupPricesOK, crossMessage)

	t.DuplicateCount += len(obs.Duplicates)
	t.CriticalCount += len(obs.CriticalErrors)
	return obs
}

// checkCrossSource flags articles that arrived through two or more distinct
// extraction paths within one message and compares prices across each group.
func (t *Tracker) checkCrossSource(msg internal.MessageContext, items []internal.LineItem, obs *Observation) (map[string][]int, map[string]bool) {
	byCode := map[string][]int{}
	order := []string{}
	for i, item := range items {
		if item.ArticleCode == "" {
			continue
		}
		if _, ok := byCode[item.ArticleCode]; !ok {
			order = append(order, item.ArticleCode)
		}
		byCode[item.ArticleCode] = append(byCode[item.ArticleCode], i)
	}

	groups := map[string][]int{}
	pricesOK := map[string]bool{}

	for _, code := range order {
		idxs := byCode[code]
		methods := map[string]struct{}{}
		for _, i := range idxs {
			methods[string(items[i].Method)] = struct{}{}
		}
		if len(methods) < 2 {
			continue
		}

		groups[code] = idxs
		methodList := make([]string, 0, len(methods))
		for m := range methods {
			methodList = append(methodList, m)
		}
		sort.Strings(methodList)

		obs.Duplicates = append(obs.Duplicates, internal.DuplicateFinding{
			Type:               internal.DuplicateCrossSource,
			ArticleCode:        code,
			Description:        fmt.Sprintf("article %s extracted via %d different paths", code, len(methods)),
			Methods:            methodList,
			ItemCount:          len(idxs),
			MessageID:          msg.MessageID,
			RequiresPriceCheck: true,
		})
		trace.Printf("guard cross-source article=%s methods=%v", code, methodList)

		pricesOK[code] = t.compareGroupPrices(code, idxs, items, obs)
	}
	return groups, pricesOK
}

func (t *Tracker) compareGroupPrices(code string, idxs []int, items []internal.LineItem, obs *Observation) bool {
	observations := []internal.PriceObservation{}
	min, max := 0.0, 0.0
	for _, i := range idxs {
		p := items[i].Price()
		if p == nil {
			continue
		}
		if len(observations) == 0 || *p < min {
			min = *p
		}
		if len(observations) == 0 || *p > max {
			max = *p
		}
		observations = append(observations, internal.PriceObservation{Price: *p, Source: string(items[i].Method)})
	}
	if len(observations) < 2 || min <= 0 {
		return true
	}

	spreadPct := (max - min) / min * 100
	if spreadPct <= t.thresholds.GroupSpreadAlertPct {
		return true
	}

	risk := internal.RiskMedium
	if spreadPct > t.thresholds.GroupSpreadHighPct {
		risk = internal.RiskHigh
	}
	obs.PriceAlerts = append(obs.PriceAlerts, internal.PriceAlert{
		ArticleCode:    code,
		Observations:   observations,
		AbsDifference:  max - min,
		PctDifference:  spreadPct,
		Risk:           risk,
		ReviewRequired: risk == internal.RiskHigh,
		Method:         "cross_source_group",
		DetectedAt:     time.Now().UTC(),
	})
	trace.Printf("guard price spread article=%s pct=%.1f risk=%s", code, spreadPct, risk)
	return false
}

// checkRunPrices compares the message's first price per article against the
// run-wide reference. The first observed price stays the reference until a
// human resolves a conflict, so a drifting price is reported on every later
// message that still carries it.
func (t *Tracker) checkRunPrices(msg internal.MessageContext, items []internal.LineItem, obs *Observation) {
	seenThisMsg := map[string]struct{}{}
	for _, item := range items {
		p := item.Price()
		if p == nil || item.ArticleCode == "" {
			continue
		}
		if _, done := seenThisMsg[item.ArticleCode]; done {
			continue
		}
		seenThisMsg[item.ArticleCode] = struct{}{}

		ref, ok := t.lastPrice[item.ArticleCode]
		if !ok {
			t.lastPrice[item.ArticleCode] = priceRef{price: *p, source: msg.MessageID}
			continue
		}
		if ref.price <= 0 {
			continue
		}

		diffPct := (*p - ref.price) / ref.price * 100
		if diffPct < 0 {
			diffPct = -diffPct
		}
		if diffPct <= t.thresholds.RunDriftAlertPct {
			continue
		}

		risk := internal.RiskMedium
		if diffPct > t.thresholds.RunDriftHighPct {
			risk = internal.RiskHigh
		}
		obs.PriceAlerts = append(obs.PriceAlerts, internal.PriceAlert{
			ArticleCode: item.ArticleCode,
			Observations: []internal.PriceObservation{
				{Price: ref.price, Source: ref.source},
				{Price: *p, Source: msg.MessageID},
			},
			AbsDifference:  abs(*p - ref.price),
			PctDifference:  diffPct,
			Risk:           risk,
			ReviewRequired: risk == internal.RiskHigh,
			Method:         "run_reference",
			DetectedAt:     time.Now().UTC(),
		})
		trace.Printf("guard price drift article=%s pct=%.1f risk=%s", item.ArticleCode, diffPct, risk)
	}
}

// checkCrossMessage flags business keys already seen earlier in the run.
// Keys repeated inside a single message are the cross-source engine's
// problem and are not re-flagged here.
func (t *Tracker) checkCrossMessage(msg internal.MessageContext, items []internal.LineItem, obs *Observation) map[int]bool {
	duplicates := map[int]bool{}
	seenThisMsg := map[string]struct{}{}

	for i, item := range items {
		key, set := t.compositeKey(item)
		if key == "" {
			continue
		}
		if _, intra := seenThisMsg[key]; intra {
			continue
		}
		seenThisMsg[key] = struct{}{}

		if _, hit := set[key]; hit {
			duplicates[i] = true
			obs.Duplicates = append(obs.Duplicates, internal.DuplicateFinding{
				Type:        internal.DuplicateCrossMessage,
				ArticleCode: item.ArticleCode,
				Description: fmt.Sprintf("business key %s already processed earlier in this run", key),
				Methods:     []string{string(item.Method)},
				ItemCount:   1,
				MessageID:   msg.MessageID,
				AutoHandled: true,
			})
			trace.Printf("guard cross-message key=%s", key)
			continue
		}
		set[key] = struct{}{}
	}
	return duplicates
}

func (t *Tracker) compositeKey(item internal.LineItem) (string, map[string]struct{}) {
	switch {
	case item.Order != nil && item.Order.PONumber != "":
		return item.Order.PONumber + "|" + item.ArticleCode, t.seenOrderKeys
	case item.Quote != nil && item.Quote.RFQNumber != "":
		return item.Quote.RFQNumber + "|" + item.ArticleCode, t.seenQuoteKeys
	case item.Revision != nil && item.Revision.CurrentRev != "" && item.Revision.NewRev != "":
		return item.ArticleCode + "|" + item.Revision.CurrentRev + "|" + item.Revision.NewRev, t.seenRevisionKeys
	}
	return "", nil
}

func (t *Tracker) checkCritical(msg internal.MessageContext, items []internal.LineItem, obs *Observation) {
	for _, item := range items {
		if t.highValue.MatchString(item.ArticleCode) && (item.Quantity == nil || *item.Quantity <= 0) {
			obs.CriticalErrors = append(obs.CriticalErrors, internal.CriticalError{
				Category:       "high_value_without_quantity",
				Description:    fmt.Sprintf("high-value article %s has no usable quantity", item.ArticleCode),
				Risk:           internal.RiskHigh,
				ReviewRequired: true,
				MessageID:      msg.MessageID,
				ArticleCode:    item.ArticleCode,
			})
		}
		if p := item.Price(); p != nil && (*p <= 0 || *p > t.thresholds.UnitPriceCeiling) {
			obs.CriticalErrors = append(obs.CriticalErrors, internal.CriticalError{
				Category:       "unit_price_out_of_range",
				Description:    fmt.Sprintf("unit price %.2f for %s outside accepted range (0, %.0f]", *p, item.ArticleCode, t.thresholds.UnitPriceCeiling),
				Risk:           internal.RiskHigh,
				ReviewRequired: true,
				MessageID:      msg.MessageID,
				ArticleCode:    item.ArticleCode,
			})
		}
	}
}

// cleanedItems builds the deduplicated item list. Cross-source groups only
// collapse to their first occurrence when the group's prices agreed;
// disagreeing groups are kept whole for human review. If generation goes
// wrong the original list is returned unchanged, losing data is worse than
// repeating it.
func cleanedItems(items []internal.LineItem, groups map[string][]int, pricesOK map[string]bool, crossMessage map[int]bool) (out []internal.LineItem) {
	defer func() {
		if r := recover(); r != nil {
			out = items
		}
	}()

	drop := map[int]bool{}
	for code, idxs := range groups {
		if !pricesOK[code] {
			continue
		}
		for _, i := range idxs[1:] {
			drop[i] = true
		}
	}
	for i := range crossMessage {
		drop[i] = true
	}

	out = make([]internal.LineItem, 0, len(items))
	for i, item := range items {
		if drop[i] {
			continue
		}
		out = append(out, item)
	}
	return out
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
