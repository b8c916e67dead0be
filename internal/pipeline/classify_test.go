package pipeline

import (
	"testing"

	"elcotec/internal"
	"elcotec/internal/customers"
)

func classify(subject, body string) internal.ContentType {
	return Classify(ClassifyInput{Subject: subject, Body: body, Domain: "kmwe.com"})
}

func TestClassifyEmpty(t *testing.T) {
	cases := []struct{ subject, body string }{
		{"", ""},
		{"   ", "\n\t "},
	}
	for _, tc := range cases {
		if got := classify(tc.subject, tc.body); got != internal.ContentNone {
			t.Fatalf("classify(%q,%q)=%s", tc.subject, tc.body, got)
		}
	}
}

func TestClassifyOrder(t *testing.T) {
	cases := []struct{ subject, body string }{
		{"Purchase Order #4501508414", "please confirm"},
		{"Bestelling week 12", "zie bijlage"},
		{"PO-123456", ""},
		{"Confirmation", "your order number is 45015084"},
	}
	for _, tc := range cases {
		if got := classify(tc.subject, tc.body); got != internal.ContentOrder {
			t.Fatalf("classify(%q,%q)=%s want order", tc.subject, tc.body, got)
		}
	}
}

func TestClassifyQuote(t *testing.T) {
	cases := []struct{ subject, body string }{
		{"RFQ-2231 stainless brackets", "please quote"},
		{"Offerteaanvraag frame delen", ""},
		{"Sourcing event Q3", "three positions attached"},
	}
	for _, tc := range cases {
		if got := classify(tc.subject, tc.body); got != internal.ContentQuote {
			t.Fatalf("classify(%q,%q)=%s want quote", tc.subject, tc.body, got)
		}
	}
}

func TestClassifyRevision(t *testing.T) {
	cases := []struct{ subject, body string }{
		{"Drawing revision 897.010.1478", "rev B to rev C, see attached drawing"},
		{"Revised drawing bracket", ""},
		{"Update artikel 340.221.06", "materiaal gewijzigd, zie tekening"},
	}
	for _, tc := range cases {
		if got := classify(tc.subject, tc.body); got != internal.ContentRevision {
			t.Fatalf("classify(%q,%q)=%s want revision", tc.subject, tc.body, got)
		}
	}
}

// Order vocabulary always beats revision vocabulary, whichever order the
// words appear in.
func TestClassifyOrderBeatsRevision(t *testing.T) {
	got := classify("Purchase order 4501508414", "includes revision B of drawing 897.010.1478")
	if got != internal.ContentOrder {
		t.Fatalf("got %s want order", got)
	}
	got = classify("Revision info", "rev a to rev b, also see purchase order 4501508414")
	if got != internal.ContentOrder {
		t.Fatalf("got %s want order", got)
	}
}

func TestClassifyGenericUpdateWithoutSignalIsNotRevision(t *testing.T) {
	got := classify("Quick update", "just a status update on our planning")
	if got == internal.ContentRevision {
		t.Fatalf("generic update must not classify as revision")
	}
}

func TestClassifyUnknown(t *testing.T) {
	if got := classify("Lunch friday?", "see you at noon"); got != internal.ContentUnknown {
		t.Fatalf("got %s want unknown", got)
	}
}

func TestClassifyProfileKeywords(t *testing.T) {
	profile := &customers.Profile{Domain: "vdlgroep.com", OrderKeywords: []string{"vdl purchasing portal"}}
	got := Classify(ClassifyInput{
		Subject: "New release in VDL purchasing portal",
		Body:    "two lines added",
		Domain:  "vdlgroep.com",
		Profile: profile,
	})
	if got != internal.ContentOrder {
		t.Fatalf("got %s want order", got)
	}
}

func TestClassifyStructuralSignals(t *testing.T) {
	got := Classify(ClassifyInput{Subject: "attached", Body: "see table", Rows: RowSignal{HasOrderRows: true}})
	if got != internal.ContentOrder {
		t.Fatalf("order rows signal: got %s", got)
	}
	got = Classify(ClassifyInput{Subject: "attached", Body: "see table", Rows: RowSignal{HasOrderRows: true, HasQuoteRows: true}})
	if got == internal.ContentOrder {
		t.Fatalf("mixed rows must not resolve as order structurally")
	}
}
