// Package belief implements the Belief State Tracker (spec §4.1): the
// turn pipeline's front end, which classifies a user message into a
// domain, fills the domain's slots, and either enriches the message,
// asks a clarifying question, or passes it through unchanged.
package belief

// BeliefState is the per-conversation classification carried across
// turns with a TTL (spec §3).
type BeliefState struct {
	Domain       string                 `json:"domain"`
	Slots        map[string]interface{} `json:"slots"`
	Confidence   float64                `json:"confidence"`
	TTLRemaining int                    `json:"ttl_remaining_turns"`
	CreatedTurn  int                    `json:"created_turn"`
}

// Tick decrements the TTL by one turn and reports whether the state is
// still alive.
func (b *BeliefState) Tick() bool {
	if b == nil {
		return false
	}
	b.TTLRemaining--
	return b.TTLRemaining > 0
}

// SlotDef describes one slot of a domain: its resolver chain, type,
// nullability, and the clarifying question to ask when unfilled.
type SlotDef struct {
	Resolvers          []string `json:"resolvers"`
	Type               string   `json:"type"`
	Nullable           bool     `json:"nullable"`
	ClarifyingQuestion string   `json:"clarifying_question"`
}

// DomainDef is one entry of the SlotTaxonomy.
type DomainDef struct {
	Description         string             `json:"description"`
	TriggerKeywords      []string          `json:"trigger_keywords"`
	RequiredSlots        []string          `json:"required_slots"`
	OptionalSlots        []string          `json:"optional_slots"`
	Slots                map[string]SlotDef `json:"slots"`
	ConfidenceThreshold  float64            `json:"confidence_threshold"`
	Preamble             string             `json:"preamble"`
}

// SlotTaxonomy is the BST's configuration (spec §3 SlotTaxonomy):
// ordered domains with trigger keywords, slot resolver chains, and
// per-domain thresholds/preambles. Domain order in DomainOrder breaks
// ties in classification (spec §4.1 step 2).
type SlotTaxonomy struct {
	DomainOrder []string             `json:"domain_order"`
	Domains     map[string]DomainDef `json:"domains"`
}

// EnrichedMessage is the BST's positive-path output: the three labeled
// sections concatenated in order (spec §4.1 step 5).
type EnrichedMessage struct {
	TaskContext map[string]interface{}
	Instruction string
	UserMessage string
}

// Render composes the enriched message text in the spec's fixed
// section order: [TASK CONTEXT], [INSTRUCTION], [USER MESSAGE].
func (e EnrichedMessage) Render() string {
	var b builder
	b.writeSection("TASK CONTEXT", renderTaskContext(e.TaskContext))
	b.writeSection("INSTRUCTION", e.Instruction)
	b.writeSection("USER MESSAGE", e.UserMessage)
	return b.String()
}

// Result is what the tracker returns for a single turn: either an
// enriched message, a clarifying question, or a verbatim passthrough.
type Result struct {
	// Enriched is set when classification cleared the domain threshold.
	Enriched *EnrichedMessage
	// ClarifyingQuestion is set when a required slot could not be
	// resolved and no clarification was yet issued this turn.
	ClarifyingQuestion string
	// Passthrough is the original message, used whenever Enriched and
	// ClarifyingQuestion are both unset.
	Passthrough string
	// State is the belief state to persist (nil clears it).
	State *BeliefState
	// Domain, Confidence and FilledSlots are recorded for the single
	// observable log line spec §4.1 requires.
	Domain      string
	Confidence  float64
	FilledSlots []string
}
