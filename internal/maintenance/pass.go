package maintenance

import (
	"context"
	"encoding/json"
	"time"

	"github.com/corescaffold/cogkernel/internal/config"
	"github.com/corescaffold/cogkernel/internal/logging"
	"github.com/corescaffold/cogkernel/internal/ontology"
	"github.com/corescaffold/cogkernel/internal/store"
)

// Pass runs the Maintenance Pass (spec §4.7) over the shared memory
// store and, when wired, the ontology store. It is the out-of-band
// counterpart to internal/memory's per-turn access tracking — spec §5
// requires mutual exclusion between the two over the memory store,
// relationship store, and co-retrieval log; callers are expected to
// invoke Run only between turns, never concurrently with one (the
// single-threaded-cooperative-turn model spec §5 describes makes a
// dedicated lock unnecessary as long as that invariant holds).
type Pass struct {
	cfg         config.MaintenanceConfig
	vectors     store.VectorStore
	ontology    *ontology.Store
	ontologyCfg config.OntologyConfig

	coRetrievalLogPath string
	sinceLastRun       int
}

// NewPass wires the shared VectorStore and an optional ontology.Store
// (nil disables the ontology-upkeep step only; the rest of the pass
// still runs). ontologyCfg supplies the ingestion-queue path the
// upkeep step drains; it is ignored when ontologyStore is nil.
func NewPass(cfg config.MaintenanceConfig, vectors store.VectorStore, ontologyStore *ontology.Store, ontologyCfg config.OntologyConfig, coRetrievalLogPath string) *Pass {
	return &Pass{cfg: cfg, vectors: vectors, ontology: ontologyStore, ontologyCfg: ontologyCfg, coRetrievalLogPath: coRetrievalLogPath}
}

// Tick advances the idle-turn counter and reports whether a maintenance
// cycle is due (spec §4.7: "every maintenance_interval_loops turns
// ... when the turn pipeline is idle"). Callers reset the counter by
// calling Run.
func (p *Pass) Tick() bool {
	p.sinceLastRun++
	interval := p.cfg.IntervalLoops
	if interval <= 0 {
		interval = 25
	}
	return p.cfg.Enabled && p.sinceLastRun >= interval
}

// Run executes one maintenance cycle and resets the idle-turn counter.
func (p *Pass) Run(ctx context.Context, turn int) Report {
	p.sinceLastRun = 0
	report := Report{RunAt: time.Now().UTC(), Turn: turn}
	if !p.cfg.Enabled || p.vectors == nil {
		return report
	}

	records := p.loadMemoryRecords(ctx)
	sortByID(records)

	report.Deduped = p.deduplicate(ctx, records)
	report.RelatedLinksAdded = p.linkRelated(ctx, records)
	report.ClusterCandidates = p.detectClusters(p.coRetrievalLogPath)
	report.DormancyFlags = p.flagDormant(records, time.Now().UTC())

	if p.ontology != nil {
		merged, discovered := p.ontologyUpkeep(ctx)
		report.OntologyMerges = merged
		report.OntologyRelationships = discovered
	}

	if err := store.WriteJSON(p.cfg.ReportPath, report); err != nil {
		logging.MaintenanceDebug("maintenance report write failed: %v", err)
	}
	logging.Maintenance("cycle complete: dedup=%d related=%d clusters=%d dormant=%d ontology_merges=%d",
		len(report.Deduped), len(report.RelatedLinksAdded), len(report.ClusterCandidates), len(report.DormancyFlags), report.OntologyMerges)
	return report
}

// loadMemoryRecords returns every non-ontology record in the shared
// store (entities live in the same store tagged area=="ontology" and
// are excluded here; they are maintained via ontologyUpkeep instead).
func (p *Pass) loadMemoryRecords(ctx context.Context) []store.Record {
	var out []store.Record
	_ = p.vectors.IterateAll(ctx, func(rec store.Record) error {
		if area, _ := rec.Metadata["area"].(string); area == "ontology" {
			return nil
		}
		out = append(out, rec)
		return nil
	})
	return out
}

// ontologyUpkeep drains any pending ingestion candidates through
// Ingest and re-runs maintenance-time relationship discovery (spec
// §4.7 "Ontology upkeep"). It does not compact the relationship log,
// does not update relationship confidence from co-retrieval, and does
// not rebuild entity summaries: SPEC_FULL.md's ontology components
// store entities directly as classified memories rather than a
// separate summary document (documented in DESIGN.md).
func (p *Pass) ontologyUpkeep(ctx context.Context) (merged int, discovered int) {
	var pending []ontology.Candidate
	_ = store.ReadJSONL(p.ontologyCfg.IngestionQueuePath, func(line []byte) error {
		var c ontology.Candidate
		if err := json.Unmarshal(line, &c); err != nil {
			return nil
		}
		pending = append(pending, c)
		return nil
	})

	for _, c := range pending {
		res := p.ontology.Ingest(ctx, c)
		if res.IsOk() {
			result, _ := res.Effect()
			if result.Decision == ontology.DecisionMerge {
				merged++
			}
		}
	}
	if len(pending) > 0 {
		if err := store.TruncateJSONL(p.ontologyCfg.IngestionQueuePath, 0); err != nil {
			logging.MaintenanceDebug("ingestion queue drain failed: %v", err)
		}
	}

	rels := p.ontology.DiscoverRelationships(ctx)
	return merged, len(rels)
}
