package guard

import (
	"testing"

	"elcotec/internal"
	"elcotec/internal/util"
)

func testThresholds() Thresholds {
	return Thresholds{
		GroupSpreadAlertPct: 5,
		GroupSpreadHighPct:  20,
		RunDriftAlertPct:    10,
		RunDriftHighPct:     25,
		UnitPriceCeiling:    50000,
		HighValuePattern:    `^(?:89|9\d)\d*\.`,
	}
}

func orderItem(code string, method internal.ExtractionMethod, po string, qty, price float64) internal.LineItem {
	return internal.LineItem{
		Kind:        internal.KindOrder,
		ArticleCode: code,
		Quantity:    util.FloatPtr(qty),
		Unit:        "PCS",
		Method:      method,
		Order:       &internal.OrderFields{PONumber: po, UnitPrice: util.FloatPtr(price)},
	}
}

func msgCtx(id string) internal.MessageContext {
	return internal.MessageContext{Provider: "gmail", MessageID: id, Domain: "vdlgroep.com"}
}

func TestCrossSourceGroupSpreadTiers(t *testing.T) {
	cases := []struct {
		name      string
		priceA    float64
		priceB    float64
		alerts    int
		risk      internal.RiskTier
		duplicate bool
	}{
		{name: "4 percent no alert", priceA: 100, priceB: 104, alerts: 0, duplicate: true},
		{name: "6 percent medium", priceA: 100, priceB: 106, alerts: 1, risk: internal.RiskMedium, duplicate: true},
		{name: "25 percent high", priceA: 100, priceB: 125, alerts: 1, risk: internal.RiskHigh, duplicate: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tr := NewTracker(testThresholds())
			items := []internal.LineItem{
				orderItem("340.221.06", internal.MethodHTMLTable, "40012345", 10, tc.priceA),
				orderItem("340.221.06", internal.MethodSubjectFallback, "40012345", 10, tc.priceB),
			}
			obs := tr.Observe(msgCtx("m1"), items)

			if tc.duplicate && len(obs.Duplicates) != 1 {
				t.Fatalf("expected 1 duplicate finding, got %d", len(obs.Duplicates))
			}
			if len(obs.PriceAlerts) != tc.alerts {
				t.Fatalf("expected %d price alerts, got %d: %+v", tc.alerts, len(obs.PriceAlerts), obs.PriceAlerts)
			}
			if tc.alerts > 0 && obs.PriceAlerts[0].Risk != tc.risk {
				t.Fatalf("expected risk %s, got %s", tc.risk, obs.PriceAlerts[0].Risk)
			}
		})
	}
}

func TestRunPriceDrift(t *testing.T) {
	tr := NewTracker(testThresholds())

	obs := tr.Observe(msgCtx("m1"), []internal.LineItem{
		orderItem("120.500.10", internal.MethodHTMLTable, "40010001", 5, 100),
	})
	if len(obs.PriceAlerts) != 0 {
		t.Fatalf("first observation must set the reference silently, got %+v", obs.PriceAlerts)
	}

	obs = tr.Observe(msgCtx("m2"), []internal.LineItem{
		orderItem("120.500.10", internal.MethodHTMLTable, "40010002", 5, 115),
	})
	if len(obs.PriceAlerts) != 1 {
		t.Fatalf("15%% drift must alert, got %d alerts", len(obs.PriceAlerts))
	}
	if obs.PriceAlerts[0].Risk != internal.RiskMedium {
		t.Fatalf("15%% drift must be medium, got %s", obs.PriceAlerts[0].Risk)
	}
	if obs.PriceAlerts[0].Method != "run_reference" {
		t.Fatalf("unexpected method %q", obs.PriceAlerts[0].Method)
	}

	// Reference is the first seen price, never the most recent one.
	obs = tr.Observe(msgCtx("m3"), []internal.LineItem{
		orderItem("120.500.10", internal.MethodHTMLTable, "40010003", 5, 130),
	})
	if len(obs.PriceAlerts) != 1 || obs.PriceAlerts[0].Risk != internal.RiskHigh {
		t.Fatalf("30%% drift against the original reference must be high, got %+v", obs.PriceAlerts)
	}
}

func TestCrossMessageDuplicateKey(t *testing.T) {
	tr := NewTracker(testThresholds())

	obs := tr.Observe(msgCtx("m1"), []internal.LineItem{
		orderItem("340.221.06", internal.MethodHTMLTable, "40012345", 10, 50),
	})
	if len(obs.Duplicates) != 0 {
		t.Fatalf("first sighting must not flag, got %+v", obs.Duplicates)
	}

	obs = tr.Observe(msgCtx("m2"), []internal.LineItem{
		orderItem("340.221.06", internal.MethodHTMLTable, "40012345", 10, 50),
	})
	if len(obs.Duplicates) != 1 {
		t.Fatalf("repeat of PO+article must flag, got %d", len(obs.Duplicates))
	}
	d := obs.Duplicates[0]
	if d.Type != internal.DuplicateCrossMessage || !d.AutoHandled {
		t.Fatalf("expected auto-handled cross-message finding, got %+v", d)
	}
	if len(obs.CleanedItems) != 0 {
		t.Fatalf("duplicate item must be dropped from the cleaned list, got %d items", len(obs.CleanedItems))
	}

	// Same PO with a different article is a new business fact.
	obs = tr.Observe(msgCtx("m3"), []internal.LineItem{
		orderItem("512.774.01", internal.MethodHTMLTable, "40012345", 3, 12),
	})
	if len(obs.Duplicates) != 0 {
		t.Fatalf("different article under same PO must not flag, got %+v", obs.Duplicates)
	}

	// A third occurrence still flags: handled keys are not re-armed.
	obs = tr.Observe(msgCtx("m4"), []internal.LineItem{
		orderItem("340.221.06", internal.MethodHTMLTable, "40012345", 10, 50),
	})
	if len(obs.Duplicates) != 1 {
		t.Fatalf("third occurrence must still flag once, got %d", len(obs.Duplicates))
	}
}

func TestRevisionDuplicateKey(t *testing.T) {
	tr := NewTracker(testThresholds())
	rev := internal.LineItem{
		Kind:        internal.KindRevision,
		ArticleCode: "340.221.06",
		Method:      internal.MethodBodyText,
		Revision:    &internal.RevisionFields{CurrentRev: "A", NewRev: "B"},
	}

	if obs := tr.Observe(msgCtx("m1"), []internal.LineItem{rev}); len(obs.Duplicates) != 0 {
		t.Fatalf("first revision must pass, got %+v", obs.Duplicates)
	}
	if obs := tr.Observe(msgCtx("m2"), []internal.LineItem{rev}); len(obs.Duplicates) != 1 {
		t.Fatalf("same revision transition must flag")
	}

	// B -> C is a different transition for the same article.
	rev.Revision = &internal.RevisionFields{CurrentRev: "B", NewRev: "C"}
	if obs := tr.Observe(msgCtx("m3"), []internal.LineItem{rev}); len(obs.Duplicates) != 0 {
		t.Fatalf("new transition must pass, got %+v", obs.Duplicates)
	}
}

func TestCriticalErrors(t *testing.T) {
	tr := NewTracker(testThresholds())

	highValueNoQty := internal.LineItem{
		Kind:        internal.KindOrder,
		ArticleCode: "897.010.1478",
		Method:      internal.MethodHTMLTable,
		Order:       &internal.OrderFields{PONumber: "40019999", UnitPrice: util.FloatPtr(100)},
	}
	overCeiling := orderItem("120.500.10", internal.MethodHTMLTable, "40019998", 1, 75000)
	negative := orderItem("130.600.20", internal.MethodHTMLTable, "40019997", 1, -5)

	obs := tr.Observe(msgCtx("m1"), []internal.LineItem{highValueNoQty, overCeiling, negative})
	if len(obs.CriticalErrors) != 3 {
		t.Fatalf("expected 3 critical errors, got %d: %+v", len(obs.CriticalErrors), obs.CriticalErrors)
	}
	for _, ce := range obs.CriticalErrors {
		if ce.Risk != internal.RiskHigh || !ce.ReviewRequired {
			t.Fatalf("critical errors must be high risk and review-required: %+v", ce)
		}
	}
	if tr.CriticalCount != 3 {
		t.Fatalf("expected running critical count 3, got %d", tr.CriticalCount)
	}
}

func TestTrackerResetIsIdempotent(t *testing.T) {
	item := orderItem("340.221.06", internal.MethodHTMLTable, "40012345", 10, 50)

	tr := NewTracker(testThresholds())
	tr.Observe(msgCtx("m1"), []internal.LineItem{item})
	tr.Observe(msgCtx("m2"), []internal.LineItem{item})
	if tr.DuplicateCount != 1 {
		t.Fatalf("expected 1 duplicate before reset, got %d", tr.DuplicateCount)
	}

	tr.Reset()
	obs := tr.Observe(msgCtx("m3"), []internal.LineItem{item})
	if len(obs.Duplicates) != 0 || tr.DuplicateCount != 0 {
		t.Fatalf("reset must clear all duplicate state, got %+v count=%d", obs.Duplicates, tr.DuplicateCount)
	}

	tr.Reset()
	tr.Reset()
	obs = tr.Observe(msgCtx("m4"), []internal.LineItem{item})
	if len(obs.Duplicates) != 0 {
		t.Fatalf("repeated reset must behave like a single reset")
	}
}

// Two extraction paths report the same article at the same price: one
// cross-source finding with a price check demanded, no alert, and a single
// surviving line.
func TestAgreeingCrossSourceCollapsesToOneLine(t *testing.T) {
	tr := NewTracker(testThresholds())
	items := []internal.LineItem{
		orderItem("340.221.06", internal.MethodHTMLTable, "40012345", 10, 50),
		orderItem("340.221.06", internal.MethodSubjectFallback, "40012345", 10, 50),
	}

	obs := tr.Observe(msgCtx("m1"), items)

	if len(obs.Duplicates) != 1 {
		t.Fatalf("expected exactly 1 finding, got %d: %+v", len(obs.Duplicates), obs.Duplicates)
	}
	d := obs.Duplicates[0]
	if d.Type != internal.DuplicateCrossSource {
		t.Fatalf("expected cross-source finding, got %s", d.Type)
	}
	if !d.RequiresPriceCheck {
		t.Fatalf("cross-source finding must demand a price check")
	}
	if d.ItemCount != 2 || len(d.Methods) != 2 {
		t.Fatalf("finding must describe both sources: %+v", d)
	}
	if len(obs.PriceAlerts) != 0 {
		t.Fatalf("matching prices must not alert, got %+v", obs.PriceAlerts)
	}
	if len(obs.CleanedItems) != 1 {
		t.Fatalf("cleaned list must hold exactly one line, got %d", len(obs.CleanedItems))
	}
	if obs.CleanedItems[0].Method != internal.MethodHTMLTable {
		t.Fatalf("first occurrence must survive, got %s", obs.CleanedItems[0].Method)
	}
}

func TestDisagreeingCrossSourceKeepsAllLines(t *testing.T) {
	tr := NewTracker(testThresholds())
	items := []internal.LineItem{
		orderItem("340.221.06", internal.MethodHTMLTable, "40012345", 10, 100),
		orderItem("340.221.06", internal.MethodSubjectFallback, "40012345", 10, 130),
	}

	obs := tr.Observe(msgCtx("m1"), items)

	if len(obs.PriceAlerts) != 1 || obs.PriceAlerts[0].Risk != internal.RiskHigh {
		t.Fatalf("30%% spread must raise a high alert, got %+v", obs.PriceAlerts)
	}
	if len(obs.CleanedItems) != 2 {
		t.Fatalf("disagreeing group must be kept whole for review, got %d items", len(obs.CleanedItems))
	}
}
