package ontology

// blockKeys returns the set of block keys an entity participates in
// (spec §4.6 step 2): exact identifier, type + first-3-chars, and the
// phonetic proxy key. Two entities are candidates for scoring only if
// they share at least one block key; this keeps resolution from
// degrading to an O(n^2) scan of the whole store.
func blockKeys(e Entity) []string {
	keys := make([]string, 0, len(e.Identifiers)+2)
	for _, id := range e.Identifiers {
		keys = append(keys, "id:"+id)
	}
	if e.NormalizedName != "" {
		prefix := e.NormalizedName
		if len(prefix) > 3 {
			prefix = prefix[:3]
		}
		keys = append(keys, "type:"+e.EntityType+":"+prefix)
		keys = append(keys, "phonetic:"+e.EntityType+":"+phoneticKey(e.NormalizedName))
	}
	return keys
}

// candidateBlock indexes existing entities by block key so Resolve can
// find scoring candidates for a new entity in roughly O(1) per key.
type candidateBlock struct {
	byKey map[string][]string // block key -> entity ids
}

func newCandidateBlock() *candidateBlock {
	return &candidateBlock{byKey: make(map[string][]string)}
}

func (b *candidateBlock) add(e Entity) {
	for _, k := range blockKeys(e) {
		b.byKey[k] = append(b.byKey[k], e.ID)
	}
}

// matches returns the ids of entities sharing at least one block key
// with e, deduplicated, excluding e.ID itself.
func (b *candidateBlock) matches(e Entity) []string {
	seen := map[string]bool{e.ID: true}
	var out []string
	for _, k := range blockKeys(e) {
		for _, id := range b.byKey[k] {
			if !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
	}
	return out
}
