package articles

import (
	"regexp"
	"strings"

	"elcotec/internal/trace"
	"elcotec/internal/util"
)

// Recognize returns the canonical article codes found in free text, in
// first-seen order and without repeats. Malformed input yields an empty set.
func Recognize(text string) []string {
	return recognize(text, Patterns, canonicalShapes)
}

// RecognizeSubject is the looser variant for subject lines.
func RecognizeSubject(subject string) []string {
	return recognize(subject, SubjectPatterns, subjectShapes)
}

func recognize(text string, patterns []Pattern, shapes []*regexp.Regexp) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	seen := map[string]struct{}{}
	out := []string{}
	for _, p := range patterns {
		for _, m := range p.Re.FindAllStringSubmatch(text, -1) {
			if p.Group >= len(m) {
				continue
			}
			code := stripArtifacts(util.NormalizeCode(m[p.Group]))
			if code == "" {
				continue
			}
			if _, dup := seen[code]; dup {
				continue
			}
			if !matchesShape(code, shapes) {
				trace.Printf("article reject shape=%s code=%s", p.Shape, code)
				continue
			}
			if _, bad := blacklist[code]; bad {
				trace.Printf("article reject blacklist code=%s", code)
				continue
			}
			trace.Printf("article accept shape=%s code=%s", p.Shape, code)
			seen[code] = struct{}{}
			out = append(out, code)
		}
	}
	return out
}

func stripArtifacts(code string) string {
	for changed := true; changed; {
		changed = false
		for _, suffix := range artifactSuffixes {
			if len(code) > len(suffix) && strings.HasSuffix(code, suffix) {
				code = strings.TrimRight(strings.TrimSuffix(code, suffix), ".-/")
				changed = true
			}
		}
	}
	return code
}

func matchesShape(code string, shapes []*regexp.Regexp) bool {
	for _, re := range shapes {
		if re.MatchString(code) {
			return true
		}
	}
	return false
}
