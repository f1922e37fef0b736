package maintenance

import (
	"context"
	"sort"

	"github.com/corescaffold/cogkernel/internal/logging"
	"github.com/corescaffold/cogkernel/internal/memory"
	"github.com/corescaffold/cogkernel/internal/store"
)

const dedupSimilarityThreshold = 0.90

// deduplicate scans memory pairs with similarity above
// dedupSimilarityThreshold, capped at MaxPairsPerCycle, and resolves
// each pair per spec §4.7's priority: confirmed > user_asserted >
// agent_inferred > deprecated; within a tier, newer supersedes older;
// load_bearing is never auto-deprecated (flagged instead); two
// user_asserted records in conflict are flagged for review rather than
// resolved automatically.
func (p *Pass) deduplicate(ctx context.Context, records []store.Record) []DedupOutcome {
	var out []DedupOutcome
	pairs := 0

	for i := 0; i < len(records) && pairs < p.cfg.MaxPairsPerCycle; i++ {
		for j := i + 1; j < len(records) && pairs < p.cfg.MaxPairsPerCycle; j++ {
			a, b := records[i], records[j]
			if len(a.Embedding) == 0 || len(b.Embedding) == 0 {
				continue
			}
			sim := store.CosineSimilarity(a.Embedding, b.Embedding)
			if sim <= dedupSimilarityThreshold {
				continue
			}
			pairs++

			lineageA := memory.LineageFromMetadata(a.Metadata, a.CreatedAt)
			lineageB := memory.LineageFromMetadata(b.Metadata, b.CreatedAt)
			outcome := resolveDuplicate(a.ID, lineageA, b.ID, lineageB)
			out = append(out, outcome)

			if !outcome.Flagged && outcome.LoserID != "" {
				p.supersede(ctx, outcome.LoserID, outcome.WinnerID, records)
			}
		}
	}
	return out
}

func resolveDuplicate(idA string, a memory.Lineage, idB string, b memory.Lineage) DedupOutcome {
	if a.Utility == memory.UtilityLoadBearing && b.Utility == memory.UtilityLoadBearing {
		return DedupOutcome{WinnerID: idA, LoserID: idB, Flagged: true, Reason: "both load_bearing"}
	}
	if a.Source == memory.SourceUserAsserted && b.Source == memory.SourceUserAsserted {
		return DedupOutcome{WinnerID: idA, LoserID: idB, Flagged: true, Reason: "both user_asserted"}
	}

	rankA, rankB := validityRank[a.Validity], validityRank[b.Validity]
	var winnerID, loserID string
	var winner, loser memory.Lineage
	switch {
	case rankA > rankB:
		winnerID, loserID, winner, loser = idA, idB, a, b
	case rankB > rankA:
		winnerID, loserID, winner, loser = idB, idA, b, a
	default:
		if newerTime(a, b) {
			winnerID, loserID, winner, loser = idA, idB, a, b
		} else {
			winnerID, loserID, winner, loser = idB, idA, b, a
		}
	}

	if loser.Utility == memory.UtilityLoadBearing {
		return DedupOutcome{WinnerID: winnerID, LoserID: loserID, Flagged: true, Reason: "loser is load_bearing"}
	}
	_ = winner
	return DedupOutcome{WinnerID: winnerID, LoserID: loserID}
}

func newerTime(a, b memory.Lineage) bool {
	return a.CreatedAt.After(b.CreatedAt)
}

// supersede writes the loser's metadata with superseded_by set to the
// winner, leaving the record itself in place for audit history.
func (p *Pass) supersede(ctx context.Context, loserID, winnerID string, records []store.Record) {
	for _, rec := range records {
		if rec.ID != loserID {
			continue
		}
		if rec.Metadata == nil {
			rec.Metadata = make(map[string]interface{})
		}
		rec.Metadata["superseded_by"] = winnerID
		if err := p.vectors.Store(ctx, rec); err != nil {
			logging.MaintenanceDebug("supersede write-back failed for %s: %v", loserID, err)
		}
		return
	}
}

func sortByID(records []store.Record) {
	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })
}
