package ontology

import (
	"regexp"
	"strings"
	"time"
)

// identifierPattern extracts bare alphanumeric identifiers (ticker
// symbols, EINs, account numbers) from free text (spec §4.6 step 1
// "identifier regex extraction"). Deliberately permissive: false
// positives are harmless since identifier scoring only fires on an
// exact match between two candidates' extracted sets.
var identifierPattern = regexp.MustCompile(`\b[A-Z]{2,}[-]?[0-9A-Z]{2,}\b|\b\d{2}-\d{7}\b|\b\d{9}\b`)

// NormalizeName lowercases, strips honorifics/punctuation, and
// collapses whitespace so two spellings of the same name block and
// score together (spec §4.6 step 1).
func NormalizeName(name string, honorifics []string) string {
	lower := strings.ToLower(strings.TrimSpace(name))
	lower = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == ' ':
			return r
		default:
			return ' '
		}
	}, lower)

	honor := make(map[string]bool, len(honorifics))
	for _, h := range honorifics {
		honor[strings.ToLower(h)] = true
	}

	fields := strings.Fields(lower)
	out := fields[:0]
	for _, f := range fields {
		if honor[f] {
			continue
		}
		out = append(out, f)
	}
	return strings.Join(out, " ")
}

// CanonicalizeAddress lowercases and expands common abbreviations
// (spec §4.6 step 1, config.OntologyConfig.AddressExpansions).
func CanonicalizeAddress(address string, expansions map[string]string) string {
	lower := strings.ToLower(strings.TrimSpace(address))
	lower = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == ' ':
			return r
		default:
			return ' '
		}
	}, lower)

	fields := strings.Fields(lower)
	for i, f := range fields {
		trimmed := strings.TrimSuffix(f, "s")
		if exp, ok := expansions[trimmed]; ok {
			fields[i] = exp
		}
	}
	return strings.Join(fields, " ")
}

// ExtractIdentifiers pulls candidate identifiers out of free text.
func ExtractIdentifiers(text string) []string {
	matches := identifierPattern.FindAllString(strings.ToUpper(text), -1)
	seen := make(map[string]bool, len(matches))
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		if !seen[m] {
			seen[m] = true
			out = append(out, m)
		}
	}
	return out
}

// dateLayouts are tried in order when parsing a candidate's free-text
// date property into time.Time.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02",
	"2006-01-02T15:04:05",
	"01/02/2006",
	"Jan 2, 2006",
	"January 2, 2006",
}

// ParseDate parses a free-text date using the first layout that fits,
// returning the zero time if none match (spec §4.6 step 1 "date to
// ISO-8601").
func ParseDate(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t
		}
	}
	return time.Time{}
}

// phoneticKey is the "Metaphone if available, otherwise first-3-chars"
// fallback named in spec §4.6 step 2: no phonetic library is wired into
// this module (see DESIGN.md), so the fallback is the permanent
// behavior rather than a degraded path.
func phoneticKey(normalizedName string) string {
	first := strings.Fields(normalizedName)
	if len(first) == 0 {
		return ""
	}
	token := first[0]
	if len(token) > 3 {
		token = token[:3]
	}
	return token
}
