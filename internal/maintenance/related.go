package maintenance

import (
	"context"

	"github.com/corescaffold/cogkernel/internal/logging"
	"github.com/corescaffold/cogkernel/internal/memory"
	"github.com/corescaffold/cogkernel/internal/store"
)

// linkRelated pairwise compares tag sets and mutually adds each pair's
// id to lineage.related_memory_ids once overlap reaches
// TagOverlapThreshold, capped at MaxRelatedPerMemory (spec §4.7
// "Related-memory linking").
func (p *Pass) linkRelated(ctx context.Context, records []store.Record) []RelatedLink {
	var links []RelatedLink
	pairs := 0

	for i := 0; i < len(records) && pairs < p.cfg.MaxPairsPerCycle; i++ {
		for j := i + 1; j < len(records) && pairs < p.cfg.MaxPairsPerCycle; j++ {
			a, b := records[i], records[j]
			tagsA := readTags(a.Metadata)
			tagsB := readTags(b.Metadata)
			if overlapCount(tagsA, tagsB) < p.cfg.TagOverlapThreshold {
				continue
			}
			pairs++

			if p.addRelated(ctx, a, b.ID) {
				links = append(links, RelatedLink{A: a.ID, B: b.ID})
			}
			p.addRelated(ctx, b, a.ID)
		}
	}
	return links
}

func readTags(metadata map[string]interface{}) map[string]bool {
	out := make(map[string]bool)
	raw, ok := metadata["tags"]
	if !ok {
		return out
	}
	list, ok := raw.([]interface{})
	if !ok {
		return out
	}
	for _, v := range list {
		if s, ok := v.(string); ok {
			out[s] = true
		}
	}
	return out
}

func overlapCount(a, b map[string]bool) int {
	n := 0
	for tag := range a {
		if b[tag] {
			n++
		}
	}
	return n
}

// addRelated appends relatedID to rec's lineage.related_memory_ids
// (lazily initialized, spec §4.7) up to MaxRelatedPerMemory and writes
// the record back. Returns true if a new link was actually added.
func (p *Pass) addRelated(ctx context.Context, rec store.Record, relatedID string) bool {
	lineage := memory.LineageFromMetadata(rec.Metadata, rec.CreatedAt)
	if lineage.RelatedMemoryIDs == nil {
		lineage.RelatedMemoryIDs = []string{}
	}
	for _, id := range lineage.RelatedMemoryIDs {
		if id == relatedID {
			return false
		}
	}
	if len(lineage.RelatedMemoryIDs) >= p.cfg.MaxRelatedPerMemory {
		return false
	}
	lineage.RelatedMemoryIDs = append(lineage.RelatedMemoryIDs, relatedID)
	rec.Metadata = memory.LineageToMetadata(rec.Metadata, lineage)
	if err := p.vectors.Store(ctx, rec); err != nil {
		logging.MaintenanceDebug("related-link write-back failed for %s: %v", rec.ID, err)
		return false
	}
	return true
}
