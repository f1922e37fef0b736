package ontology

import (
	"math"
	"time"

	"github.com/corescaffold/cogkernel/internal/config"
)

// nameSimilarity is a longest-common-subsequence-based similarity ratio
// (spec §4.6 step 3 "name axis"): 2*lcsLen / (len(a)+len(b)), the same
// ratio difflib.SequenceMatcher uses. No pack example imports a
// difflib-style library directly (see DESIGN.md), so this is a small
// direct DP implementation of the named algorithm itself rather than a
// stand-in for one.
func nameSimilarity(a, b string) float64 {
	if a == "" && b == "" {
		return 1
	}
	if a == "" || b == "" {
		return 0
	}
	l := lcsLength(a, b)
	return 2 * float64(l) / float64(len(a)+len(b))
}

func lcsLength(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for i := 1; i <= len(ra); i++ {
		for j := 1; j <= len(rb); j++ {
			if ra[i-1] == rb[j-1] {
				curr[j] = prev[j-1] + 1
			} else if prev[j] >= curr[j-1] {
				curr[j] = prev[j]
			} else {
				curr[j] = curr[j-1]
			}
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

// identifierSimilarity returns 1 when the two identifier sets share any
// exact value, 0 otherwise (spec §4.6 step 3 "identifier axis").
func identifierSimilarity(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := make(map[string]bool, len(a))
	for _, v := range a {
		set[v] = true
	}
	for _, v := range b {
		if set[v] {
			return 1
		}
	}
	return 0
}

// tokenOverlap is a Jaccard-index similarity over whitespace-tokenized
// strings, used for both the address and context axes (spec §4.6 step
// 3).
func tokenOverlap(a, b string) float64 {
	setA := toTokenSet(a)
	setB := toTokenSet(b)
	if len(setA) == 0 && len(setB) == 0 {
		return 1
	}
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}
	intersection := 0
	for tok := range setA {
		if setB[tok] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func toTokenSet(s string) map[string]bool {
	set := make(map[string]bool)
	tok := ""
	flush := func() {
		if tok != "" {
			set[tok] = true
			tok = ""
		}
	}
	for _, r := range s {
		if r == ' ' {
			flush()
			continue
		}
		tok += string(r)
	}
	flush()
	return set
}

// dateSimilarity plateaus at 1.0 within one day, then decays linearly
// to 0 over one year of difference (spec §4.6 step 3 "date axis").
// Either date being zero (unknown) yields a neutral 0.5 rather than
// penalizing the pair.
func dateSimilarity(a, b time.Time) float64 {
	if a.IsZero() || b.IsZero() {
		return 0.5
	}
	diff := a.Sub(b)
	if diff < 0 {
		diff = -diff
	}
	days := diff.Hours() / 24
	const window = 365.0
	if days <= 1 {
		return 1.0
	}
	if days >= window {
		return 0
	}
	return 1 - days/window
}

// Composite combines the five axes using the configured weights
// (spec §4.6 step 3).
func Composite(sb ScoreBreakdown, weights config.ResolutionWeights) float64 {
	total := weights.Name + weights.Identifier + weights.Address + weights.Date + weights.Context
	if total == 0 {
		return 0
	}
	return (sb.Name*weights.Name + sb.Identifier*weights.Identifier + sb.Address*weights.Address +
		sb.Date*weights.Date + sb.Context*weights.Context) / total
}

// Score computes the five-axis breakdown and composite for two entities.
func Score(x, y Entity, weights config.ResolutionWeights) ScoreBreakdown {
	sb := ScoreBreakdown{
		Name:       nameSimilarity(x.NormalizedName, y.NormalizedName),
		Identifier: identifierSimilarity(x.Identifiers, y.Identifiers),
		Address:    tokenOverlap(x.Address, y.Address),
		Date:       dateSimilarity(x.Date, y.Date),
		Context:    tokenOverlap(joinTerms(x.ContextTerms), joinTerms(y.ContextTerms)),
	}
	sb.Composite = Composite(sb, weights)
	return sb
}

func joinTerms(terms []string) string {
	out := ""
	for i, t := range terms {
		if i > 0 {
			out += " "
		}
		out += t
	}
	return out
}

func decide(composite float64, cfg config.OntologyConfig) Decision {
	switch {
	case composite >= cfg.MergeThreshold:
		return DecisionMerge
	case composite >= cfg.ReviewThreshold:
		return DecisionReview
	default:
		return DecisionDistinct
	}
}

// clamp01 keeps a derived score within [0,1]; ResolveRelationships
// applies it to a relationship's confidence.
func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
