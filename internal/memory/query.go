package memory

import (
	"strings"
)

// defaultStopwords is the fixed stopword set spec §4.5's "keyword"
// variant filters against.
var defaultStopwords = map[string]bool{
	"a": true, "an": true, "the": true, "and": true, "or": true, "but": true,
	"is": true, "are": true, "was": true, "were": true, "be": true, "been": true,
	"being": true, "to": true, "of": true, "in": true, "on": true, "at": true,
	"for": true, "with": true, "by": true, "from": true, "about": true,
	"as": true, "into": true, "this": true, "that": true, "these": true,
	"those": true, "it": true, "its": true, "do": true, "does": true,
	"did": true, "can": true, "could": true, "would": true, "should": true,
	"will": true, "shall": true, "may": true, "might": true, "must": true,
	"i": true, "you": true, "he": true, "she": true, "we": true, "they": true,
	"me": true, "him": true, "her": true, "us": true, "them": true,
	"my": true, "your": true, "his": true, "our": true, "their": true,
	"not": true, "no": true, "so": true, "if": true, "then": true, "than": true,
}

// QueryVariants is the three query forms spec §4.5 derives from a
// message and domain.
type QueryVariants struct {
	Original string
	Keyword  string
	Domain   string // empty when domain == ""
}

// ExpandQuery forms the original/keyword/domain variants. keyword is
// built from stopword-filtered tokens of length > 2, first 12 retained,
// joined with spaces; domain is "<domain>: <keyword>" when both a
// domain and a non-empty keyword variant exist.
func ExpandQuery(message, domain string, stopwords map[string]bool) QueryVariants {
	if stopwords == nil {
		stopwords = defaultStopwords
	}

	var kept []string
	for _, tok := range strings.Fields(message) {
		word := strings.ToLower(strings.Trim(tok, ".,!?;:\"'()[]{}"))
		if len(word) <= 2 || stopwords[word] {
			continue
		}
		kept = append(kept, word)
		if len(kept) == 12 {
			break
		}
	}
	keyword := strings.Join(kept, " ")

	variants := QueryVariants{Original: message, Keyword: keyword}
	if domain != "" && keyword != "" {
		variants.Domain = domain + ": " + keyword
	}
	return variants
}

// List returns the non-empty variant strings in original/keyword/domain
// order, for issuing one similarity search per variant.
func (v QueryVariants) List() []string {
	out := []string{v.Original}
	if v.Keyword != "" {
		out = append(out, v.Keyword)
	}
	if v.Domain != "" {
		out = append(out, v.Domain)
	}
	return out
}
