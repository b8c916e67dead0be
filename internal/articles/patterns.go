// Package articles turns free text into canonical article codes. One shared
// pattern registry feeds both the full recognizer and the terser subject-line
// variant, so the extractors and the classifier agree on what counts as a
// code.
package articles

import "regexp"

type Shape string

const (
	ShapeDotted   Shape = "dotted"
	ShapeDashed   Shape = "dashed"
	ShapePrefixed Shape = "prefixed"
)

type Pattern struct {
	Shape Shape
	Re    *regexp.Regexp
	Group int
}

// Body text patterns, tried in order. The prefixed pattern runs first so an
// explicit "art./part/sku" tag wins over an incidental numeric hit.
var Patterns = []Pattern{
	{Shape: ShapePrefixed, Re: regexp.MustCompile(`(?i)\b(?:art(?:ikel|icle)?|part|sku|item)\s*(?:nr|no|number)?\s*[.:#-]?\s*([A-Za-z0-9][A-Za-z0-9.\-/]{3,})`), Group: 1},
	{Shape: ShapeDotted, Re: regexp.MustCompile(`\b(\d{2,4}(?:\.\d{1,4}){1,3}[A-Za-z]*)\b`), Group: 1},
	{Shape: ShapeDashed, Re: regexp.MustCompile(`\b(\d{3,6}-\d{2,6}(?:-\d{1,4})?[A-Za-z]*)\b`), Group: 1},
}

// Subject lines carry terse codes without tags, so the prefixed pattern also
// accepts a bare alphanumeric token and dashed codes may be shorter.
var SubjectPatterns = []Pattern{
	{Shape: ShapePrefixed, Re: regexp.MustCompile(`(?i)\b(?:art(?:ikel|icle)?|part|sku|item)\s*(?:nr|no|number)?\s*[.:#-]?\s*([A-Za-z0-9][A-Za-z0-9.\-/]{3,})`), Group: 1},
	{Shape: ShapeDotted, Re: regexp.MustCompile(`\b(\d{2,4}(?:\.\d{1,4}){1,3}[A-Za-z]*)\b`), Group: 1},
	{Shape: ShapeDashed, Re: regexp.MustCompile(`\b(\d{2,6}-\d{2,6}(?:-\d{1,4})?[A-Za-z]*)\b`), Group: 1},
	{Shape: ShapePrefixed, Re: regexp.MustCompile(`\b([A-Z]{1,4}\d{3,10})\b`), Group: 1},
}

// Canonical shapes an accepted code must match after normalization.
var canonicalShapes = []*regexp.Regexp{
	regexp.MustCompile(`^\d{2,4}(?:\.\d{1,4}){1,3}$`),
	regexp.MustCompile(`^\d{3,6}-\d{2,6}(?:-\d{1,4})?$`),
	regexp.MustCompile(`^[A-Z]{1,4}\d{3,10}$`),
}

// Subject codes may be one segment shorter on the dashed shape.
var subjectShapes = append([]*regexp.Regexp{
	regexp.MustCompile(`^\d{2,6}-\d{2,6}(?:-\d{1,4})?$`),
}, canonicalShapes...)

// Known false positives: VAT-style tokens, standards references and internal
// shorthand that survive the shape gate.
var blacklist = map[string]struct{}{
	"NL001":    {},
	"NL002":    {},
	"NL003":    {},
	"ISO9001":  {},
	"ISO14001": {},
	"EN10204":  {},
	"DIN933":   {},
	"RAL9005":  {},
	"REV01":    {},
	"KVK12345": {},
}

// Unit and shipping words that end up glued onto a code when senders omit
// whitespace.
var artifactSuffixes = []string{
	"DELIVERY", "DELIVER", "STUKS", "EACH", "PCS", "QTY", "EA", "PC", "ST",
}
