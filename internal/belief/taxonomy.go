package belief

import (
	"github.com/corescaffold/cogkernel/internal/store"
)

// LoadTaxonomy reads the slot taxonomy JSON at path, falling back to
// DefaultTaxonomy when the file does not yet exist (spec §6: BST
// taxonomy is a config file the workspace may or may not have seeded).
func LoadTaxonomy(path string) (SlotTaxonomy, error) {
	t := DefaultTaxonomy()
	if err := store.ReadJSON(path, &t); err != nil {
		return SlotTaxonomy{}, err
	}
	return t, nil
}

// SaveTaxonomy persists t to path atomically.
func SaveTaxonomy(path string, t SlotTaxonomy) error {
	return store.WriteJSON(path, t)
}

// DefaultTaxonomy ships a small, illustrative taxonomy covering the
// domains spec.md's scenarios exercise (refactor, bugfix, codegen) plus
// the conversational sentinel (spec §4.1 step 2).
func DefaultTaxonomy() SlotTaxonomy {
	return SlotTaxonomy{
		DomainOrder: []string{"refactor", "bugfix", "codegen", "conversational"},
		Domains: map[string]DomainDef{
			"refactor": {
				Description:         "Restructure existing code without changing behavior.",
				TriggerKeywords:      []string{"refactor", "clean up", "restructure", "rename", "extract"},
				RequiredSlots:        []string{"target_file"},
				OptionalSlots:        []string{"target_symbol"},
				ConfidenceThreshold:  0.5,
				Preamble:             "Refactor the named target without changing observable behavior.",
				Slots: map[string]SlotDef{
					"target_file": {
						Resolvers:          []string{"file_extension_inference", "last_mentioned_file", "last_mentioned_path"},
						Type:               "string",
						Nullable:           false,
						ClarifyingQuestion: "Which file?",
					},
					"target_symbol": {
						Resolvers: []string{"last_mentioned_entity"},
						Type:      "string",
						Nullable:  true,
					},
				},
			},
			"bugfix": {
				Description:         "Diagnose and fix a defect.",
				TriggerKeywords:      []string{"bug", "fix", "broken", "crash", "error", "fails"},
				RequiredSlots:        []string{"target_file"},
				OptionalSlots:        []string{"symptom"},
				ConfidenceThreshold:  0.5,
				Preamble:             "Diagnose the reported defect in the named target and fix it.",
				Slots: map[string]SlotDef{
					"target_file": {
						Resolvers:          []string{"keyword_map", "file_extension_inference", "last_mentioned_file"},
						Type:               "string",
						Nullable:           false,
						ClarifyingQuestion: "Which file is affected?",
					},
					"symptom": {
						Resolvers: []string{"history_scan", "context_inference"},
						Type:      "string",
						Nullable:  true,
					},
				},
			},
			"codegen": {
				Description:        "Generate new code from a description.",
				TriggerKeywords:     []string{"create", "generate", "add", "implement", "write a", "build a"},
				RequiredSlots:       []string{},
				OptionalSlots:       []string{"target_path"},
				ConfidenceThreshold: 0.5,
				Preamble:            "Implement the requested new functionality.",
				Slots: map[string]SlotDef{
					"target_path": {
						Resolvers: []string{"last_mentioned_path", "last_mentioned_file"},
						Type:      "string",
						Nullable:  true,
					},
				},
			},
			"conversational": {
				Description:        "No task classification applies; pass through.",
				TriggerKeywords:     []string{},
				RequiredSlots:       []string{},
				OptionalSlots:       []string{},
				ConfidenceThreshold: 0.0,
				Preamble:            "",
			},
		},
	}
}
