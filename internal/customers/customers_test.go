package customers

import (
	"testing"

	"elcotec/internal/config"
)

func testConfig() config.Config {
	return config.Config{
		DefaultAdministration: "01",
		DefaultDebtorNumber:   "199999",
		DefaultRelationNumber: "9999",
	}
}

func TestLookupExactAndSubstring(t *testing.T) {
	r := NewRegistry(testConfig())

	if p := r.Lookup("vdlgroep.com"); p == nil || p.Name != "VDL Groep" {
		t.Fatalf("exact lookup failed: %+v", p)
	}
	if p := r.Lookup("mail.vdlgroep.com"); p == nil || p.Name != "VDL Groep" {
		t.Fatalf("subdomain lookup failed: %+v", p)
	}
	if p := r.Lookup("unknown-sender.de"); p != nil {
		t.Fatalf("expected nil for unknown domain, got %+v", p)
	}
}

func TestResolveFallback(t *testing.T) {
	r := NewRegistry(testConfig())
	p := r.Resolve("unknown-sender.de")
	if p.Name != "Onbekende klant" {
		t.Fatalf("fallback name: %q", p.Name)
	}
	if p.DebtorNumber != "199999" || p.Administration != "01" {
		t.Fatalf("fallback accounts: %+v", p)
	}
	if p.HighPriority {
		t.Fatalf("fallback must be low priority")
	}
}

func TestLiteMode(t *testing.T) {
	cfg := testConfig()
	cfg.LiteMode = true
	cfg.LiteCustomerDomain = "nts-group.nl"
	r := NewRegistry(cfg)

	if !r.IsPriority(r.Resolve("nts-group.nl")) {
		t.Fatalf("lite customer must be in scope")
	}
	if r.IsPriority(r.Resolve("vdlgroep.com")) {
		t.Fatalf("other customers must be skipped in lite mode")
	}
}

func TestIsStrategic(t *testing.T) {
	cfg := testConfig()
	cfg.StrategicCustomers = []string{"vdlgroep.com"}
	r := NewRegistry(cfg)
	if !r.IsStrategic("mail.vdlgroep.com") {
		t.Fatalf("strategic match failed")
	}
	if r.IsStrategic("kmwe.com") {
		t.Fatalf("unexpected strategic hit")
	}
}

func TestParseExtraProfiles(t *testing.T) {
	profiles := ParseExtraProfiles("acme.de=Acme GmbH=02,100900,2900,priority; bad-entry ;weird.nl=Weird BV=03,100901,2901")
	if len(profiles) != 2 {
		t.Fatalf("len=%d", len(profiles))
	}
	if profiles[0].Domain != "acme.de" || !profiles[0].HighPriority || profiles[0].DebtorNumber != "100900" {
		t.Fatalf("first profile: %+v", profiles[0])
	}
	if profiles[1].HighPriority {
		t.Fatalf("second profile should not be priority")
	}
}
