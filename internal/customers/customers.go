// Package customers maps sender mail domains onto customer profiles. The
// built-in table covers the accounts Elcotec trades with today; extra
// entries can be merged in from the environment without a rebuild.
package customers

import (
	"strings"

	"elcotec/internal/config"
)

// Profile carries the MKG account coordinates and classification overrides
// for one customer domain.
type Profile struct {
	Domain           string
	Name             string
	Administration   string
	DebtorNumber     string
	RelationNumber   string
	OrderKeywords    []string
	QuoteKeywords    []string
	RevisionKeywords []string
	HighPriority     bool
	Strategy         string
}

var builtin = []Profile{
	{
		Domain:           "vdlgroep.com",
		Name:             "VDL Groep",
		Administration:   "01",
		DebtorNumber:     "100245",
		RelationNumber:   "2045",
		OrderKeywords:    []string{"vdl purchasing portal", "inkooporder vdl"},
		RevisionKeywords: []string{"tekening wijziging"},
		HighPriority:     true,
		Strategy:         "table_first",
	},
	{
		Domain:         "nts-group.nl",
		Name:           "NTS Group",
		Administration: "01",
		DebtorNumber:   "100310",
		RelationNumber: "2110",
		OrderKeywords:  []string{"nts order release"},
		QuoteKeywords:  []string{"nts sourcing event"},
		HighPriority:   true,
		Strategy:       "table_first",
	},
	{
		Domain:         "kmwe.com",
		Name:           "KMWE Precision",
		Administration: "01",
		DebtorNumber:   "100472",
		RelationNumber: "2172",
	},
	{
		Domain:         "frencken.nl",
		Name:           "Frencken Mechatronics",
		Administration: "02",
		DebtorNumber:   "100518",
		RelationNumber: "2218",
		QuoteKeywords:  []string{"frencken rfq"},
	},
	{
		Domain:         "aalberts.com",
		Name:           "Aalberts Industries",
		Administration: "02",
		DebtorNumber:   "100633",
		RelationNumber: "2333",
	},
}

// Registry resolves sender domains. Construct once at startup; read-only
// afterwards.
type Registry struct {
	profiles map[string]Profile
	cfg      config.Config
}

func NewRegistry(cfg config.Config) *Registry {
	r := &Registry{profiles: map[string]Profile{}, cfg: cfg}
	for _, p := range builtin {
		r.profiles[p.Domain] = p
	}
	for _, p := range ParseExtraProfiles(cfg.ExtraCustomers) {
		r.profiles[p.Domain] = p
	}
	return r
}

// Lookup returns the profile for a domain, or nil when nothing matches.
// Matching is exact first, then substring containment in either direction so
// host variants (mail.vdlgroep.com) still resolve.
func (r *Registry) Lookup(domain string) *Profile {
	key := strings.ToLower(strings.TrimSpace(domain))
	if key == "" {
		return nil
	}
	if p, ok := r.profiles[key]; ok {
		return &p
	}
	for known, p := range r.profiles {
		if strings.Contains(key, known) || strings.Contains(known, key) {
			profile := p
			return &profile
		}
	}
	return nil
}

// Resolve never returns nil: unknown senders get a synthesized fallback
// profile with the default account numbers, flagged low priority.
func (r *Registry) Resolve(domain string) Profile {
	if p := r.Lookup(domain); p != nil {
		return *p
	}
	return Profile{
		Domain:         strings.ToLower(strings.TrimSpace(domain)),
		Name:           "Onbekende klant",
		Administration: r.cfg.DefaultAdministration,
		DebtorNumber:   r.cfg.DefaultDebtorNumber,
		RelationNumber: r.cfg.DefaultRelationNumber,
	}
}

// IsPriority reports whether a sender is in scope for the current
// deployment tier. In lite mode only the configured customer is accepted.
func (r *Registry) IsPriority(p Profile) bool {
	if !r.cfg.LiteMode {
		return true
	}
	lite := strings.ToLower(strings.TrimSpace(r.cfg.LiteCustomerDomain))
	if lite == "" {
		return p.HighPriority
	}
	return strings.Contains(p.Domain, lite) || strings.Contains(lite, p.Domain)
}

// IsStrategic reports whether the domain is on the configured strategic
// customer list (always high priority, revisions need approval).
func (r *Registry) IsStrategic(domain string) bool {
	key := strings.ToLower(strings.TrimSpace(domain))
	for _, s := range r.cfg.StrategicCustomers {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		if strings.Contains(key, s) || strings.Contains(s, key) {
			return true
		}
	}
	return false
}

// ParseExtraProfiles reads env-configured profiles in the form
// "domain=Name=admin,debtor,relation[,priority];domain2=...".
func ParseExtraProfiles(raw string) []Profile {
	out := []Profile{}
	for _, entry := range strings.Split(raw, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, "=", 3)
		if len(parts) != 3 {
			continue
		}
		nums := strings.Split(parts[2], ",")
		p := Profile{
			Domain: strings.ToLower(strings.TrimSpace(parts[0])),
			Name:   strings.TrimSpace(parts[1]),
		}
		if p.Domain == "" || p.Name == "" {
			continue
		}
		if len(nums) > 0 {
			p.Administration = strings.TrimSpace(nums[0])
		}
		if len(nums) > 1 {
			p.DebtorNumber = strings.TrimSpace(nums[1])
		}
		if len(nums) > 2 {
			p.RelationNumber = strings.TrimSpace(nums[2])
		}
		if len(nums) > 3 {
			p.HighPriority = strings.EqualFold(strings.TrimSpace(nums[3]), "priority")
		}
		out = append(out, p)
	}
	return out
}
