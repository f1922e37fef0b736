package belief

import (
	"fmt"
	"sort"
	"strings"

	"github.com/corescaffold/cogkernel/internal/config"
	"github.com/corescaffold/cogkernel/internal/logging"
	"github.com/corescaffold/cogkernel/internal/outcome"
)

// Tracker runs the Belief State Tracker pipeline described in spec §4.1.
type Tracker struct {
	cfg      config.BeliefConfig
	taxonomy SlotTaxonomy
	ttlTurns int
}

// NewTracker builds a Tracker from config, loading the slot taxonomy
// from disk (falling back to DefaultTaxonomy on a missing file).
func NewTracker(cfg config.BeliefConfig, ttlTurns int) (*Tracker, error) {
	taxonomy, err := LoadTaxonomy(cfg.SlotTaxonomyPath)
	if err != nil {
		return nil, fmt.Errorf("load slot taxonomy: %w", err)
	}
	return &Tracker{cfg: cfg, taxonomy: taxonomy, ttlTurns: ttlTurns}, nil
}

// Process runs one turn of the BST pipeline against message, given
// recent conversation history (oldest first) and the prior belief
// state if any. It never returns an error: every failure mode degrades
// to a passthrough Outcome per spec §4.1 "Failure semantics".
func (t *Tracker) Process(turn int, message string, history []string, prior *BeliefState) (out outcome.Outcome[Result]) {
	if !t.cfg.Enabled {
		return outcome.Skip[Result]("belief tracker disabled")
	}

	defer func() {
		if r := recover(); r != nil {
			logging.Get(logging.CategoryBelief).Error("belief tracker panic recovered: %v", r)
			out = outcome.Fail[Result](fmt.Sprintf("belief tracker panic: %v", r))
		}
	}()

	// Step 1: underspecified check. Also reused when the prior turn left
	// a required slot unfilled (a clarifying question was asked): the
	// current message is treated as the direct answer to that question
	// rather than reclassified from scratch, since the answer itself
	// (e.g. a bare file path) carries none of the domain's own trigger
	// keywords.
	if prior != nil && prior.TTLRemaining > 0 {
		domain, ok := t.taxonomy.Domains[prior.Domain]
		if ok && (t.isUnderspecified(message) || hasUnfilledRequiredSlot(domain, prior.Slots)) {
			slots, filled, _ := t.resolveSlots(domain, message, history, prior)
			for k, v := range prior.Slots {
				if _, ok := slots[k]; !ok {
					slots[k] = v
				}
			}
			fillRate := requiredFillRate(domain, slots)
			confidence := 0.4*1.0 + 0.6*fillRate
			res := t.buildResult(turn, prior.Domain, domain, slots, message, history, prior, confidence)
			res.FilledSlots = filled
			logging.Belief("turn=%d domain=%s confidence=%.2f filled=%v (reused continuation)",
				turn, res.Domain, res.Confidence, res.FilledSlots)
			return outcome.Ok(res)
		}
	}

	// Step 2: domain classification.
	domainID, domain, triggerScore := t.classify(message)

	// Step 3+4: slot resolution and confidence.
	slots, filled, fillRate := t.resolveSlots(domain, message, history, prior)
	finalConfidence := 0.4*triggerScore + 0.6*fillRate

	res := t.buildResult(turn, domainID, domain, slots, message, history, prior, finalConfidence)
	res.FilledSlots = filled

	logging.Belief("turn=%d domain=%s confidence=%.2f filled=%v", turn, res.Domain, res.Confidence, res.FilledSlots)
	return outcome.Ok(res)
}

func (t *Tracker) isUnderspecified(message string) bool {
	lower := strings.ToLower(message)
	for _, pattern := range t.cfg.UnderspecifiedPatterns {
		if strings.Contains(lower, strings.ToLower(pattern)) {
			return true
		}
	}
	return false
}

// classify picks the domain with the highest matched-trigger-count
// score, ties broken by taxonomy order; conversational is the floor
// sentinel (spec §4.1 step 2).
func (t *Tracker) classify(message string) (string, DomainDef, float64) {
	lower := strings.ToLower(message)

	order := t.taxonomy.DomainOrder
	if len(order) == 0 {
		order = sortedKeys(t.taxonomy.Domains)
	}

	bestID := "conversational"
	bestScore := t.cfg.ConversationalFloor
	bestDomain := t.taxonomy.Domains["conversational"]

	for _, id := range order {
		domain, ok := t.taxonomy.Domains[id]
		if !ok || id == "conversational" || len(domain.TriggerKeywords) == 0 {
			continue
		}
		matched := 0
		for _, kw := range domain.TriggerKeywords {
			if strings.Contains(lower, strings.ToLower(kw)) {
				matched++
			}
		}
		score := float64(matched) / float64(len(domain.TriggerKeywords))
		if score > bestScore {
			bestScore = score
			bestID = id
			bestDomain = domain
		}
	}
	return bestID, bestDomain, bestScore
}

func (t *Tracker) resolveSlots(domain DomainDef, message string, history []string, prior *BeliefState) (map[string]interface{}, []string, float64) {
	slots := map[string]interface{}{}
	var filled []string

	allSlotNames := append(append([]string{}, domain.RequiredSlots...), domain.OptionalSlots...)
	for _, name := range allSlotNames {
		def, ok := domain.Slots[name]
		if !ok {
			continue
		}
		v, ok := Resolve(def.Resolvers, name, message, history, prior)
		if ok {
			slots[name] = v
			filled = append(filled, name)
		}
	}

	if len(domain.RequiredSlots) == 0 {
		return slots, filled, 1.0
	}
	filledRequired := 0
	for _, name := range domain.RequiredSlots {
		if _, ok := slots[name]; ok {
			filledRequired++
		}
	}
	return slots, filled, float64(filledRequired) / float64(len(domain.RequiredSlots))
}

func (t *Tracker) buildResult(turn int, domainID string, domain DomainDef, slots map[string]interface{}, message string, history []string, prior *BeliefState, confidence float64) Result {
	if domainID == "conversational" {
		return Result{Passthrough: message, Domain: domainID, Confidence: confidence}
	}

	if confidence >= domain.ConfidenceThreshold {
		state := &BeliefState{
			Domain:       domainID,
			Slots:        slots,
			Confidence:   confidence,
			TTLRemaining: t.ttlTurns,
			CreatedTurn:  turn,
		}
		return Result{
			Enriched: &EnrichedMessage{
				TaskContext: slots,
				Instruction: domain.Preamble,
				UserMessage: message,
			},
			State:      state,
			Domain:     domainID,
			Confidence: confidence,
		}
	}

	for _, name := range domain.RequiredSlots {
		if _, ok := slots[name]; ok {
			continue
		}
		def := domain.Slots[name]
		if def.ClarifyingQuestion == "" {
			continue
		}
		pending := map[string]interface{}{}
		for _, req := range domain.RequiredSlots {
			pending[req] = slots[req] // nil if unfilled
		}
		for k, v := range slots {
			pending[k] = v
		}
		return Result{
			ClarifyingQuestion: def.ClarifyingQuestion,
			Domain:             domainID,
			Confidence:         confidence,
			State: &BeliefState{
				Domain:       domainID,
				Slots:        pending,
				Confidence:   confidence,
				TTLRemaining: t.ttlTurns,
				CreatedTurn:  turn,
			},
		}
	}

	return Result{
		Passthrough: message,
		Domain:      domainID,
		Confidence:  confidence,
	}
}

func hasUnfilledRequiredSlot(domain DomainDef, slots map[string]interface{}) bool {
	for _, name := range domain.RequiredSlots {
		if v, ok := slots[name]; !ok || v == nil {
			return true
		}
	}
	return false
}

func requiredFillRate(domain DomainDef, slots map[string]interface{}) float64 {
	if len(domain.RequiredSlots) == 0 {
		return 1.0
	}
	filled := 0
	for _, name := range domain.RequiredSlots {
		if v, ok := slots[name]; ok && v != nil {
			filled++
		}
	}
	return float64(filled) / float64(len(domain.RequiredSlots))
}

func sortedKeys(m map[string]DomainDef) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
