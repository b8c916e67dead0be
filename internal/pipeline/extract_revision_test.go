package pipeline

import (
	"testing"
	"time"

	"elcotec/internal"
)

func revisionItem(cur, next, reason string) internal.LineItem {
	return internal.LineItem{
		Kind:        internal.KindRevision,
		ArticleCode: "897.010.1478",
		Revision:    &internal.RevisionFields{CurrentRev: cur, NewRev: next, Reason: reason},
	}
}

func TestValidateRevisionIdenticalRevs(t *testing.T) {
	// Identical revisions are rejected no matter what else is filled in.
	item := revisionItem("A", "A", "material change")
	item.Revision.DrawingNumber = "TEK-001"
	item.Revision.TechnicalChange = "all dims rechecked"
	if reason, _ := validateRevision(item); reason == "" {
		t.Fatalf("identical revisions must be rejected")
	}
}

func TestValidateRevisionBackwards(t *testing.T) {
	if reason, _ := validateRevision(revisionItem("C", "B", "rollback")); reason == "" {
		t.Fatalf("backward step must be rejected")
	}
	if reason, _ := validateRevision(revisionItem("3", "2", "rollback")); reason == "" {
		t.Fatalf("backward numeric step must be rejected")
	}
}

func TestValidateRevisionMajorJump(t *testing.T) {
	reason, major := validateRevision(revisionItem("A", "D", "redesign"))
	if reason != "" {
		t.Fatalf("multi-step jump must pass validation, got %q", reason)
	}
	if !major {
		t.Fatalf("A->D must be tagged major")
	}

	reason, major = validateRevision(revisionItem("1", "2", "minor"))
	if reason != "" || major {
		t.Fatalf("single numeric step: reason=%q major=%v", reason, major)
	}
}

func TestValidateRevisionUnknownFormatFailsOpen(t *testing.T) {
	reason, major := validateRevision(revisionItem("A1", "B2", "mixed scheme"))
	if reason != "" {
		t.Fatalf("unknown formats pass through, got %q", reason)
	}
	if major {
		t.Fatalf("unknown formats are never major")
	}
}

func TestValidateRevisionMissingFields(t *testing.T) {
	if reason, _ := validateRevision(revisionItem("A", "B", "")); reason == "" {
		t.Fatalf("missing reason must be rejected")
	}
	if reason, _ := validateRevision(revisionItem("", "B", "x")); reason == "" {
		t.Fatalf("missing current rev must be rejected")
	}
}

func TestProcessRevisionsApproval(t *testing.T) {
	e := testExtractor()
	now := time.Now()

	drawing := revisionItem("A", "B", "hole moved")
	drawing.Revision.DrawingNumber = "897.010.1478"
	kept, _ := e.ProcessRevisionsForInjection([]internal.LineItem{drawing}, "kmwe.com", now)
	if len(kept) != 1 || !kept[0].Revision.ApprovalRequired {
		t.Fatalf("drawing change must require approval: %+v", kept)
	}

	major := revisionItem("A", "C", "redesign")
	kept, _ = e.ProcessRevisionsForInjection([]internal.LineItem{major}, "kmwe.com", now)
	if !kept[0].Revision.ApprovalRequired || !kept[0].Revision.Major {
		t.Fatalf("major revision must require approval: %+v", kept[0].Revision)
	}

	strategic := revisionItem("A", "B", "tolerance update")
	kept, _ = e.ProcessRevisionsForInjection([]internal.LineItem{strategic}, "vdlgroep.com", now)
	if !kept[0].Revision.ApprovalRequired || kept[0].Priority != "High" {
		t.Fatalf("strategic revision: %+v", kept[0])
	}
}

func TestFormatRevisionPadsNumericTokens(t *testing.T) {
	e := testExtractor()
	item := revisionItem("1", "2", "minor fix")
	kept, _ := e.ProcessRevisionsForInjection([]internal.LineItem{item}, "kmwe.com", time.Now())
	if kept[0].Revision.CurrentRev != "01" || kept[0].Revision.NewRev != "02" {
		t.Fatalf("rev tokens: %q -> %q", kept[0].Revision.CurrentRev, kept[0].Revision.NewRev)
	}
}

func TestExtractRevisionsFromTable(t *testing.T) {
	e := testExtractor()
	tables := []Table{{
		Kind:    TableRevisionLines,
		Method:  internal.MethodXLSX,
		Headers: []string{"Artikel", "Huidige rev", "Nieuwe rev", "Reden", "Tekening", "Wijziging"},
		Rows: [][]string{
			{"897.010.1478", "B", "C", "materiaal gewijzigd", "TEK-4420", "RVS 304 -> 316"},
		},
	}}
	msg := internal.MessageContext{Domain: "nts-group.nl", ReceivedAt: time.Now()}
	items := e.ExtractRevisions(tables, msg)
	if len(items) != 1 {
		t.Fatalf("len=%d", len(items))
	}
	r := items[0].Revision
	if r.CurrentRev != "B" || r.NewRev != "C" || r.Reason != "materiaal gewijzigd" {
		t.Fatalf("revision fields: %+v", r)
	}
}

func TestExtractRevisionsSubjectFallback(t *testing.T) {
	e := testExtractor()
	msg := internal.MessageContext{
		Subject:    "Drawing revision 897.010.1478 rev B to rev C",
		Domain:     "nts-group.nl",
		ReceivedAt: time.Now(),
	}
	items := e.ExtractRevisions(nil, msg)
	if len(items) != 1 {
		t.Fatalf("len=%d", len(items))
	}
	if items[0].Revision.CurrentRev != "B" || items[0].Revision.NewRev != "C" {
		t.Fatalf("pair: %+v", items[0].Revision)
	}
}
