package ontology

import (
	"strings"

	"github.com/corescaffold/cogkernel/internal/memory"
)

// FindMentions implements memory.EntityIndex: a resolved entity is a
// "mention" in message when its canonical name or any alias appears
// anywhere in message, case-insensitively. No word-boundary check is
// made, so a name also matches inside a longer word.
func (s *Store) FindMentions(message string) []memory.EntityHit {
	lower := strings.ToLower(message)

	s.mu.Lock()
	defer s.mu.Unlock()

	var hits []memory.EntityHit
	for _, e := range s.entities {
		if e.SupersededBy != "" {
			continue
		}
		names := append([]string{e.CanonicalName}, e.Aliases...)
		for _, name := range names {
			if name == "" {
				continue
			}
			if strings.Contains(lower, strings.ToLower(name)) {
				hits = append(hits, memory.EntityHit{Name: name, EntityType: e.EntityType, EntityID: e.ID})
				break
			}
		}
	}
	return hits
}
